package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
)

// DefaultStaleTimeout is used by CleanupStaleJobs when no timeout is given.
const DefaultStaleTimeout = 300 * time.Second

// JobQueue implements storage.JobRepository for BadgerDB.
//
// Every transition reads the job and writes it back inside a single
// optimistic transaction. Badger aborts the commit with ErrConflict if a
// concurrent transaction wrote the job in between, which makes acquisition
// a compare-and-swap: exactly one competing caller commits.
type JobQueue struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.JobRepository = (*JobQueue)(nil)

// NewJobQueue creates a new JobQueue.
func NewJobQueue(backend *Backend) (storage.JobRepository, error) {
	return newJobQueue(backend)
}

func newJobQueue(backend *Backend) (*JobQueue, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &JobQueue{
		backend: backend,
		logger:  slog.Default().With("component", "job-queue"),
	}, nil
}

// Close releases resources. JobQueue has no resources to release.
func (q *JobQueue) Close() error {
	return nil
}

// CreateJob enqueues a pending job for tensorID.
func (q *JobQueue) CreateJob(ctx context.Context, tensorID string, targetMaturity float64) (*core.TrainingJob, error) {
	if err := core.ValidateID(tensorID); err != nil {
		return nil, err
	}
	if !core.IsValidMaturity(targetMaturity) {
		return nil, fmt.Errorf("%w: target %v", core.ErrInvalidMaturity, targetMaturity)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate job id: %w", err)
	}
	job := &core.TrainingJob{
		ID:             id.String(),
		TensorID:       tensorID,
		Status:         core.JobPending,
		TargetMaturity: targetMaturity,
		CreatedAt:      core.Now(),
	}

	err = q.backend.update(ctx, func(tx *badger.Txn) error {
		if err := writeJob(tx, job); err != nil {
			return err
		}
		if err := tx.Set(makeJobPendingKey(job.CreatedAt, job.ID), nil); err != nil {
			return err
		}
		return tx.Set(makeJobTensorKey(job.TensorID, job.CreatedAt, job.ID), nil)
	})
	if err != nil {
		return nil, err
	}

	jobTransitions.WithLabelValues(string(core.JobPending)).Inc()
	q.logger.Debug("created job", "job_id", job.ID, "tensor_id", tensorID, "target", targetMaturity)
	return job, nil
}

// GetJob retrieves a job by ID.
func (q *JobQueue) GetJob(ctx context.Context, id string) (*core.TrainingJob, error) {
	var job *core.TrainingJob
	err := q.backend.view(func(tx *badger.Txn) error {
		var err error
		job, err = readJob(tx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return job, err
}

// ListPending returns pending jobs in FIFO order.
func (q *JobQueue) ListPending(ctx context.Context) ([]*core.TrainingJob, error) {
	var jobs []*core.TrainingJob
	err := q.backend.view(func(tx *badger.Txn) error {
		ids, err := pendingIDs(tx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			job, err := readJob(tx, id)
			if err != nil {
				return err
			}
			if job != nil && job.Status == core.JobPending {
				jobs = append(jobs, job)
			}
		}
		return nil
	})
	return jobs, err
}

// ListRunning returns running jobs ordered by start time.
func (q *JobQueue) ListRunning(ctx context.Context) ([]*core.TrainingJob, error) {
	var jobs []*core.TrainingJob
	err := q.backend.view(func(tx *badger.Txn) error {
		var err error
		jobs, err = runningJobs(tx)
		return err
	})
	return jobs, err
}

// AcquireJob assigns a pending, unassigned job to workerID.
func (q *JobQueue) AcquireJob(ctx context.Context, jobID, workerID string) (bool, error) {
	if workerID == "" {
		return false, fmt.Errorf("%w: worker id", core.ErrEmptyID)
	}

	ok, err := q.backend.updateOnce(func(tx *badger.Txn) (bool, error) {
		job, err := readJob(tx, jobID)
		if err != nil || job == nil {
			return false, err
		}
		if job.Status != core.JobPending || job.WorkerID != "" {
			return false, nil
		}

		job.Status = core.JobRunning
		job.WorkerID = workerID
		job.StartedAt = core.Now()
		if err := writeJob(tx, job); err != nil {
			return false, err
		}
		if err := tx.Delete(makeJobPendingKey(job.CreatedAt, job.ID)); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}

	if ok {
		jobAcquisitions.WithLabelValues("won").Inc()
		jobTransitions.WithLabelValues(string(core.JobRunning)).Inc()
		q.logger.Debug("acquired job", "job_id", jobID, "worker_id", workerID)
	} else {
		jobAcquisitions.WithLabelValues("lost").Inc()
	}
	return ok, nil
}

// AcquireNextPending acquires the oldest pending job, moving past jobs that
// other workers win in the meantime.
func (q *JobQueue) AcquireNextPending(ctx context.Context, workerID string) (*core.TrainingJob, error) {
	var candidates []string
	err := q.backend.view(func(tx *badger.Txn) error {
		var err error
		candidates, err = pendingIDs(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := q.AcquireJob(ctx, id, workerID)
		if err != nil {
			return nil, err
		}
		if ok {
			return q.GetJob(ctx, id)
		}
	}
	return nil, nil
}

// CompleteJob marks a job completed.
func (q *JobQueue) CompleteJob(ctx context.Context, jobID string, cyclesCompleted int64) error {
	return q.finish(ctx, jobID, func(job *core.TrainingJob) {
		job.Status = core.JobCompleted
		job.CyclesCompleted = cyclesCompleted
	})
}

// FailJob marks a job failed.
func (q *JobQueue) FailJob(ctx context.Context, jobID string, message string) error {
	return q.finish(ctx, jobID, func(job *core.TrainingJob) {
		job.Status = core.JobFailed
		job.ErrorMessage = message
	})
}

// finish applies a terminal transition. Terminal jobs are left untouched.
func (q *JobQueue) finish(ctx context.Context, jobID string, apply func(*core.TrainingJob)) error {
	var status core.JobStatus
	err := q.backend.update(ctx, func(tx *badger.Txn) error {
		status = ""
		job, err := readJob(tx, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}
		if job.Status.IsTerminal() {
			return nil
		}
		if job.Status == core.JobPending {
			if err := tx.Delete(makeJobPendingKey(job.CreatedAt, job.ID)); err != nil {
				return err
			}
		}
		apply(job)
		job.CompletedAt = core.Now()
		status = job.Status
		return writeJob(tx, job)
	})
	if err != nil {
		return err
	}
	if status != "" {
		jobTransitions.WithLabelValues(string(status)).Inc()
		q.logger.Debug("finished job", "job_id", jobID, "status", status)
	}
	return nil
}

// ReleaseJob returns a running job to the pending queue.
func (q *JobQueue) ReleaseJob(ctx context.Context, jobID string) error {
	var released bool
	err := q.backend.update(ctx, func(tx *badger.Txn) error {
		released = false
		job, err := readJob(tx, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}
		if job.Status != core.JobRunning {
			return nil
		}
		released = true
		return releaseJob(tx, job)
	})
	if err == nil && released {
		jobTransitions.WithLabelValues(string(core.JobPending)).Inc()
		q.logger.Debug("released job", "job_id", jobID)
	}
	return err
}

// GetJobsForTensor returns jobs for tensorID, newest first.
func (q *JobQueue) GetJobsForTensor(ctx context.Context, tensorID string) ([]*core.TrainingJob, error) {
	var jobs []*core.TrainingJob
	err := q.backend.view(func(tx *badger.Txn) error {
		prefix := makeJobTensorPrefix(tensorID)
		var ids []string
		err := scanPrefix(tx, prefix, scanOptions{reverse: true, keysOnly: true}, func(item *badger.Item) error {
			ids = append(ids, trailingID(item.Key(), len(prefix)+8))
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range ids {
			job, err := readJob(tx, id)
			if err != nil {
				return err
			}
			if job != nil {
				jobs = append(jobs, job)
			}
		}
		return nil
	})
	return jobs, err
}

// CleanupStaleJobs releases running jobs whose StartedAt is older than
// timeout. A non-positive timeout means DefaultStaleTimeout.
func (q *JobQueue) CleanupStaleJobs(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = DefaultStaleTimeout
	}
	cutoff := core.Now().Add(-timeout)

	var released int
	err := q.backend.update(ctx, func(tx *badger.Txn) error {
		released = 0
		running, err := runningJobs(tx)
		if err != nil {
			return err
		}
		for _, job := range running {
			if !job.StartedAt.Before(cutoff) {
				continue
			}
			if err := releaseJob(tx, job); err != nil {
				return err
			}
			released++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if released > 0 {
		staleJobsReleased.Add(float64(released))
		q.logger.Info("released stale jobs", "count", released, "timeout", timeout)
	}
	return released, nil
}

// Helper methods

// releaseJob resets a running job to pending and restores its FIFO slot.
func releaseJob(tx *badger.Txn, job *core.TrainingJob) error {
	job.Status = core.JobPending
	job.WorkerID = ""
	job.StartedAt = time.Time{}
	if err := writeJob(tx, job); err != nil {
		return err
	}
	return tx.Set(makeJobPendingKey(job.CreatedAt, job.ID), nil)
}

func pendingIDs(tx *badger.Txn) ([]string, error) {
	prefix := []byte(jobPendingPrefix)
	var ids []string
	err := scanPrefix(tx, prefix, scanOptions{keysOnly: true}, func(item *badger.Item) error {
		ids = append(ids, trailingID(item.Key(), len(prefix)+8))
		return nil
	})
	return ids, err
}

func runningJobs(tx *badger.Txn) ([]*core.TrainingJob, error) {
	var jobs []*core.TrainingJob
	err := scanPrefix(tx, []byte(jobRecordPrefix), scanOptions{}, func(item *badger.Item) error {
		return item.Value(func(val []byte) error {
			job, err := storage.UnmarshalTrainingJob(val)
			if err != nil {
				return err
			}
			if job.Status == core.JobRunning {
				jobs = append(jobs, job)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(jobs, func(a, b *core.TrainingJob) int {
		return cmp.Compare(a.StartedAt.UnixMicro(), b.StartedAt.UnixMicro())
	})
	return jobs, nil
}

func writeJob(tx *badger.Txn, job *core.TrainingJob) error {
	return tx.Set(makeJobKey(job.ID), storage.MarshalTrainingJob(job))
}

// readJob reads a job from the transaction, returning nil if absent.
func readJob(tx *badger.Txn, id string) (*core.TrainingJob, error) {
	item, err := tx.Get(makeJobKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var job *core.TrainingJob
	err = item.Value(func(val []byte) error {
		var err error
		job, err = storage.UnmarshalTrainingJob(val)
		return err
	})
	return job, err
}
