// Package training runs tensor training jobs in parallel.
//
// A ParallelTrainer enqueues one job per tensor in the job queue and drives
// a bounded pool of workers over them. Workers claim jobs through the
// queue's compare-and-swap acquisition, so no job is trained twice even when
// several trainers share a store. Each training cycle asks a Strategy for
// the next tensor state and persists it as a new tensor version.
//
// Training failures never abort a batch; they are reported per tensor in the
// returned results.
package training
