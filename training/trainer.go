package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultMaxWorkers is the default number of concurrent workers.
	DefaultMaxWorkers = 4

	// DefaultMaxCycles bounds the cycles spent on one job.
	DefaultMaxCycles = 1000

	// DefaultPollInterval is how long Run waits when the queue is empty.
	DefaultPollInterval = time.Second

	releaseTimeout = 5 * time.Second
)

// ProgressCallback is invoked after every persisted training cycle.
type ProgressCallback func(tensorID string, maturity float64, cycles int64)

// TrainingResult is the outcome of training one tensor.
type TrainingResult struct {
	TensorID        string
	JobID           string
	WorkerID        string
	Success         bool
	FinalMaturity   float64
	CyclesCompleted int64
	Err             error
	Duration        time.Duration
}

// ParallelTrainer trains tensors on a bounded worker pool.
type ParallelTrainer struct {
	tensors      storage.TensorRepository
	jobs         storage.JobRepository
	pool         *ants.Pool
	maxWorkers   int
	strategy     Strategy
	progress     ProgressCallback
	maxCycles    int64
	pollInterval time.Duration
	trainerID    string
	logger       *slog.Logger

	mu     sync.Mutex
	active map[string]string // job id -> worker id
}

// Option configures a ParallelTrainer.
type Option func(*ParallelTrainer) error

// WithMaxWorkers sets the number of concurrent workers.
// Default is DefaultMaxWorkers, with a minimum of 1.
func WithMaxWorkers(n int) Option {
	return func(t *ParallelTrainer) error {
		if n < 1 {
			n = 1
		}
		if t.pool != nil {
			t.pool.Release()
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		t.pool = pool
		t.maxWorkers = n
		return nil
	}
}

// WithStrategy sets the training strategy.
// Default is an IncrementalStrategy with DefaultStepSize.
func WithStrategy(s Strategy) Option {
	return func(t *ParallelTrainer) error {
		if s == nil {
			return ErrStrategyRequired
		}
		t.strategy = s
		return nil
	}
}

// WithProgressCallback sets a callback invoked after every cycle.
// It is called from worker goroutines and must be safe for concurrent use.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(t *ParallelTrainer) error {
		t.progress = cb
		return nil
	}
}

// WithMaxCycles caps the cycles spent on a single job.
func WithMaxCycles(n int64) Option {
	return func(t *ParallelTrainer) error {
		if n < 1 {
			n = DefaultMaxCycles
		}
		t.maxCycles = n
		return nil
	}
}

// WithPollInterval sets how often Run polls an empty queue.
func WithPollInterval(d time.Duration) Option {
	return func(t *ParallelTrainer) error {
		if d <= 0 {
			d = DefaultPollInterval
		}
		t.pollInterval = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *ParallelTrainer) error {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
		return nil
	}
}

// NewParallelTrainer creates a trainer over the given repositories.
// Call Release when the trainer is no longer needed.
func NewParallelTrainer(tensors storage.TensorRepository, jobs storage.JobRepository, opts ...Option) (*ParallelTrainer, error) {
	if tensors == nil {
		return nil, ErrTensorRepositoryRequired
	}
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}

	pool, err := ants.NewPool(DefaultMaxWorkers)
	if err != nil {
		return nil, err
	}

	t := &ParallelTrainer{
		tensors:      tensors,
		jobs:         jobs,
		pool:         pool,
		maxWorkers:   DefaultMaxWorkers,
		strategy:     NewIncrementalStrategy(),
		maxCycles:    DefaultMaxCycles,
		pollInterval: DefaultPollInterval,
		trainerID:    uuid.NewString()[:8],
		logger:       slog.Default(),
		active:       make(map[string]string),
	}

	for _, opt := range opts {
		if optErr := opt(t); optErr != nil {
			t.Release()
			return nil, optErr
		}
	}
	t.logger = t.logger.With("component", "trainer", "trainer_id", t.trainerID)

	return t, nil
}

// MaxWorkers returns the configured worker count.
func (t *ParallelTrainer) MaxWorkers() int {
	return t.maxWorkers
}

// Release releases the worker pool and waits briefly for its goroutines to
// exit. The trainer should not be used after calling Release.
func (t *ParallelTrainer) Release() {
	if t.pool == nil {
		return
	}
	if err := t.pool.ReleaseTimeout(releaseTimeout); err != nil {
		t.logger.Warn("worker pool did not stop in time", "err", err)
	}
}

// ActiveJobs returns the IDs of jobs currently held by this trainer's
// workers, sorted.
func (t *ParallelTrainer) ActiveJobs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.active))
	for id := range t.active {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TrainBatch trains every tensor in ids to targetMaturity and returns one
// result per distinct tensor ID. Only jobs created by this call are
// processed. An error is returned only when the jobs cannot be enqueued.
// After ctx is canceled, a job already training is released back to
// pending and jobs not yet started are marked failed.
func (t *ParallelTrainer) TrainBatch(ctx context.Context, ids []string, targetMaturity float64) (map[string]*TrainingResult, error) {
	ids = uniqueIDs(ids)
	results := make(map[string]*TrainingResult, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	batch := make([]*core.TrainingJob, 0, len(ids))
	for _, id := range ids {
		job, err := t.jobs.CreateJob(ctx, id, targetMaturity)
		if err != nil {
			return nil, fmt.Errorf("enqueue %s: %w", id, err)
		}
		batch = append(batch, job)
	}
	t.logger.Info("training batch started", "tensors", len(batch), "target", targetMaturity, "workers", t.maxWorkers)

	var (
		mu   sync.Mutex
		next int
		wg   sync.WaitGroup
	)
	claim := func() *core.TrainingJob {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(batch) {
			return nil
		}
		job := batch[next]
		next++
		return job
	}
	record := func(r *TrainingResult) {
		mu.Lock()
		results[r.TensorID] = r
		mu.Unlock()
	}
	// Jobs never started are failed so they do not linger in the shared queue.
	abandon := func(job *core.TrainingJob, cause error) *TrainingResult {
		if err := t.jobs.FailJob(context.WithoutCancel(ctx), job.ID, cause.Error()); err != nil {
			t.logger.Error("failed to fail unstarted job", "job_id", job.ID, "err", err)
		}
		return &TrainingResult{TensorID: job.TensorID, JobID: job.ID, Err: cause}
	}

	workers := min(t.maxWorkers, len(batch))
	for i := range workers {
		workerID := fmt.Sprintf("%s-w%d", t.trainerID, i)
		wg.Add(1)
		err := t.pool.Submit(func() {
			defer wg.Done()
			for job := claim(); job != nil; job = claim() {
				if ctx.Err() != nil {
					record(abandon(job, ctx.Err()))
					continue
				}
				record(t.runJob(ctx, job, workerID))
			}
		})
		if err != nil {
			wg.Done()
			t.logger.Error("failed to submit worker", "worker_id", workerID, "err", err)
		}
	}
	wg.Wait()

	// Anything left unclaimed means no worker could be started.
	for job := claim(); job != nil; job = claim() {
		results[job.TensorID] = abandon(job, ants.ErrPoolClosed)
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	t.logger.Info("training batch finished", "tensors", len(results), "succeeded", succeeded)
	return results, nil
}

// Run serves the shared job queue until ctx is canceled, training any
// pending job regardless of who created it.
func (t *ParallelTrainer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := range t.maxWorkers {
		workerID := fmt.Sprintf("%s-w%d", t.trainerID, i)
		wg.Add(1)
		err := t.pool.Submit(func() {
			defer wg.Done()
			t.serve(ctx, workerID)
		})
		if err != nil {
			wg.Done()
			return err
		}
	}
	wg.Wait()
	return ctx.Err()
}

func (t *ParallelTrainer) serve(ctx context.Context, workerID string) {
	logger := t.logger.With("worker_id", workerID)
	for ctx.Err() == nil {
		job, err := t.jobs.AcquireNextPending(ctx, workerID)
		if err != nil && ctx.Err() == nil {
			logger.Error("failed to acquire job", "err", err)
		}
		if job == nil {
			select {
			case <-ctx.Done():
			case <-time.After(t.pollInterval):
			}
			continue
		}
		jobsAcquired.Inc()
		t.train(ctx, job, workerID)
	}
}

// runJob acquires job for workerID and trains it.
func (t *ParallelTrainer) runJob(ctx context.Context, job *core.TrainingJob, workerID string) *TrainingResult {
	ok, err := t.jobs.AcquireJob(ctx, job.ID, workerID)
	if err != nil {
		return &TrainingResult{TensorID: job.TensorID, JobID: job.ID, WorkerID: workerID, Err: err}
	}
	if !ok {
		return &TrainingResult{TensorID: job.TensorID, JobID: job.ID, WorkerID: workerID, Err: ErrJobUnavailable}
	}
	jobsAcquired.Inc()
	return t.train(ctx, job, workerID)
}

// train runs cycles on an acquired job and records the terminal transition.
func (t *ParallelTrainer) train(ctx context.Context, job *core.TrainingJob, workerID string) *TrainingResult {
	start := time.Now()
	result := &TrainingResult{TensorID: job.TensorID, JobID: job.ID, WorkerID: workerID}

	t.setActive(job.ID, workerID)
	defer t.clearActive(job.ID)

	ctx, span := tracer.Start(ctx, "training.TrainTensor",
		trace.WithAttributes(
			attribute.String("tensor.id", job.TensorID),
			attribute.String("job.id", job.ID),
			attribute.Float64("training.target", job.TargetMaturity),
		),
	)
	defer span.End()

	logger := t.logger.With("worker_id", workerID, "job_id", job.ID, "tensor_id", job.TensorID)
	logger.Debug("training started", "target", job.TargetMaturity)

	err := t.trainCycles(ctx, job, result)
	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int64("training.cycles", result.CyclesCompleted),
		attribute.Float64("training.final_maturity", result.FinalMaturity),
	)

	// Terminal transitions use a fresh context so a canceled batch still
	// leaves the queue consistent.
	finishCtx := context.WithoutCancel(ctx)
	switch {
	case err == nil:
		result.Success = true
		if cerr := t.jobs.CompleteJob(finishCtx, job.ID, result.CyclesCompleted); cerr != nil {
			logger.Error("failed to complete job", "err", cerr)
		}
		jobsFinished.WithLabelValues("completed").Inc()
		span.SetStatus(codes.Ok, "")
		logger.Debug("training completed", "cycles", result.CyclesCompleted, "maturity", result.FinalMaturity)

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result.Err = err
		if rerr := t.jobs.ReleaseJob(finishCtx, job.ID); rerr != nil {
			logger.Error("failed to release job", "err", rerr)
		}
		jobsFinished.WithLabelValues("released").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "context canceled")

	default:
		result.Err = err
		if ferr := t.jobs.FailJob(finishCtx, job.ID, err.Error()); ferr != nil {
			logger.Error("failed to mark job failed", "err", ferr)
		}
		jobsFinished.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("training failed", "err", err)
	}
	return result
}

// trainCycles steps the tensor until it reaches the job target.
func (t *ParallelTrainer) trainCycles(ctx context.Context, job *core.TrainingJob, result *TrainingResult) error {
	for {
		record, err := t.tensors.Get(ctx, job.TensorID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrTensorNotFound, job.TensorID)
			}
			return err
		}
		result.FinalMaturity = record.Maturity

		if record.Maturity >= job.TargetMaturity {
			return nil
		}
		if result.CyclesCompleted >= t.maxCycles {
			return fmt.Errorf("%w: %d cycles, maturity %.3f", ErrMaxCyclesReached, result.CyclesCompleted, record.Maturity)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := t.cycle(ctx, job, record, result); err != nil {
			return err
		}
	}
}

// cycle performs one strategy step and persists the new state.
func (t *ParallelTrainer) cycle(ctx context.Context, job *core.TrainingJob, record *core.TensorRecord, result *TrainingResult) error {
	start := time.Now()
	defer func() { cycleDuration.Observe(time.Since(start).Seconds()) }()

	tensor, err := core.DecodeTensor(record.Blob)
	if err != nil {
		return err
	}
	nextTensor, nextMaturity, err := t.strategy.Step(ctx, record, tensor, job.TargetMaturity)
	if err != nil {
		return fmt.Errorf("strategy step: %w", err)
	}
	blob, err := core.EncodeTensor(nextTensor)
	if err != nil {
		return err
	}

	next := record.Clone()
	next.Blob = blob
	next.Maturity = clampMaturity(nextMaturity, record.Maturity, job.TargetMaturity)
	next.TrainingCycles = record.TrainingCycles + 1
	saved, err := t.tensors.Save(ctx, next)
	if err != nil {
		return err
	}

	result.CyclesCompleted++
	result.FinalMaturity = saved.Maturity
	if t.progress != nil {
		t.progress(saved.ID, saved.Maturity, result.CyclesCompleted)
	}
	return nil
}

func (t *ParallelTrainer) setActive(jobID, workerID string) {
	t.mu.Lock()
	t.active[jobID] = workerID
	t.mu.Unlock()
}

func (t *ParallelTrainer) clearActive(jobID string) {
	t.mu.Lock()
	delete(t.active, jobID)
	t.mu.Unlock()
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
