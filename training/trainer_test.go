package training

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTrainer(t *testing.T, opts ...Option) (*ParallelTrainer, *badger.Repositories) {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)

	trainer, err := NewParallelTrainer(repos.Tensors, repos.Jobs, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		trainer.Release()
		repos.Close()
	})
	return trainer, repos
}

func seedTensors(t *testing.T, repos *badger.Repositories, n int, maturity float64) []string {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, n)
	for i := range n {
		ids[i] = fmt.Sprintf("tensor-%02d", i)
		_, err := repos.Tensors.Save(ctx, &core.TensorRecord{
			ID:       ids[i],
			EntityID: fmt.Sprintf("entity-%02d", i),
			Blob:     core.MustEncodeTensor(core.DefaultTensor()),
			Maturity: maturity,
		})
		require.NoError(t, err)
	}
	return ids
}

func TestNewParallelTrainer(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	_, err = NewParallelTrainer(nil, repos.Jobs)
	assert.ErrorIs(t, err, ErrTensorRepositoryRequired)
	_, err = NewParallelTrainer(repos.Tensors, nil)
	assert.ErrorIs(t, err, ErrJobRepositoryRequired)
	_, err = NewParallelTrainer(repos.Tensors, repos.Jobs, WithStrategy(nil))
	assert.ErrorIs(t, err, ErrStrategyRequired)

	trainer, err := NewParallelTrainer(repos.Tensors, repos.Jobs)
	require.NoError(t, err)
	defer trainer.Release()
	assert.Equal(t, DefaultMaxWorkers, trainer.MaxWorkers())

	sized, err := NewParallelTrainer(repos.Tensors, repos.Jobs, WithMaxWorkers(0))
	require.NoError(t, err)
	defer sized.Release()
	assert.Equal(t, 1, sized.MaxWorkers())
}

func TestTrainBatch_SingleTensor(t *testing.T) {
	trainer, repos := newTestTrainer(t, WithMaxWorkers(2))
	ids := seedTensors(t, repos, 1, 0.1)
	ctx := context.Background()

	results, err := trainer.TrainBatch(ctx, ids, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[ids[0]]
	require.NotNil(t, result)
	require.NoError(t, result.Err)
	assert.True(t, result.Success)
	assert.GreaterOrEqual(t, result.FinalMaturity, 0.5)
	assert.Less(t, result.FinalMaturity, 0.5+MaturityTolerance+1e-9)
	assert.Positive(t, result.CyclesCompleted)

	record, err := repos.Tensors.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, result.FinalMaturity, record.Maturity)
	assert.Equal(t, result.CyclesCompleted, record.TrainingCycles)
	assert.Equal(t, result.CyclesCompleted+1, record.Version)

	job, err := repos.Jobs.GetJob(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, result.CyclesCompleted, job.CyclesCompleted)
}

func TestTrainBatch_ManyTensorsEachOnce(t *testing.T) {
	var mu sync.Mutex
	cycles := map[string][]float64{}
	progress := func(tensorID string, maturity float64, _ int64) {
		mu.Lock()
		defer mu.Unlock()
		cycles[tensorID] = append(cycles[tensorID], maturity)
	}

	trainer, repos := newTestTrainer(t, WithMaxWorkers(5), WithProgressCallback(progress))
	ids := seedTensors(t, repos, 12, 0)
	ctx := context.Background()

	results, err := trainer.TrainBatch(ctx, ids, 0.3)
	require.NoError(t, err)
	require.Len(t, results, len(ids))

	workers := map[string]bool{}
	for _, id := range ids {
		result := results[id]
		require.NotNil(t, result, id)
		assert.True(t, result.Success, id)
		workers[result.WorkerID] = true

		jobs, err := repos.Jobs.GetJobsForTensor(ctx, id)
		require.NoError(t, err)
		assert.Len(t, jobs, 1, "one job per tensor")

		// Progress is reported once per cycle and never decreases.
		history := cycles[id]
		assert.Len(t, history, int(result.CyclesCompleted))
		for i := 1; i < len(history); i++ {
			assert.GreaterOrEqual(t, history[i], history[i-1])
		}
	}
	assert.GreaterOrEqual(t, len(workers), 1)
	assert.LessOrEqual(t, len(workers), 5)
	assert.Empty(t, trainer.ActiveJobs())
}

func TestTrainBatch_MissingTensor(t *testing.T) {
	trainer, repos := newTestTrainer(t)
	ids := seedTensors(t, repos, 2, 0.2)
	ctx := context.Background()

	results, err := trainer.TrainBatch(ctx, append(ids, "ghost"), 0.4)
	require.NoError(t, err)
	require.Len(t, results, 3)

	ghost := results["ghost"]
	require.NotNil(t, ghost)
	assert.False(t, ghost.Success)
	assert.ErrorIs(t, ghost.Err, ErrTensorNotFound)
	assert.Contains(t, ghost.Err.Error(), "not found")

	job, err := repos.Jobs.GetJob(ctx, ghost.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "not found")

	for _, id := range ids {
		assert.True(t, results[id].Success)
	}
}

func TestTrainBatch_AlreadyMature(t *testing.T) {
	trainer, repos := newTestTrainer(t)
	ids := seedTensors(t, repos, 1, 0.97)

	results, err := trainer.TrainBatch(context.Background(), ids, 0.9)
	require.NoError(t, err)
	result := results[ids[0]]
	assert.True(t, result.Success)
	assert.Zero(t, result.CyclesCompleted)
	assert.Equal(t, 0.97, result.FinalMaturity)
}

func TestTrainBatch_DuplicateIDs(t *testing.T) {
	trainer, repos := newTestTrainer(t)
	ids := seedTensors(t, repos, 1, 0.1)
	ctx := context.Background()

	results, err := trainer.TrainBatch(ctx, []string{ids[0], ids[0], ids[0]}, 0.3)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	jobs, err := repos.Jobs.GetJobsForTensor(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestTrainBatch_Empty(t *testing.T) {
	trainer, _ := newTestTrainer(t)
	results, err := trainer.TrainBatch(context.Background(), nil, 0.5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTrainBatch_InvalidTarget(t *testing.T) {
	trainer, repos := newTestTrainer(t)
	ids := seedTensors(t, repos, 1, 0.1)

	_, err := trainer.TrainBatch(context.Background(), ids, 1.5)
	assert.ErrorIs(t, err, core.ErrInvalidMaturity)
}

func TestTrainBatch_IgnoresForeignJobs(t *testing.T) {
	trainer, repos := newTestTrainer(t, WithMaxWorkers(3))
	ids := seedTensors(t, repos, 3, 0.1)
	ctx := context.Background()

	foreign, err := repos.Jobs.CreateJob(ctx, ids[0], 0.9)
	require.NoError(t, err)

	_, err = trainer.TrainBatch(ctx, ids[1:], 0.3)
	require.NoError(t, err)

	job, err := repos.Jobs.GetJob(ctx, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobPending, job.Status)
}

func TestTrainBatch_StrategyFailure(t *testing.T) {
	failing := StrategyFunc(func(ctx context.Context, record *core.TensorRecord, tensor *core.Tensor, target float64) (*core.Tensor, float64, error) {
		if record.TrainingCycles >= 2 {
			return nil, 0, errors.New("diverged")
		}
		return tensor, record.Maturity + 0.01, nil
	})
	trainer, repos := newTestTrainer(t, WithStrategy(failing))
	ids := seedTensors(t, repos, 1, 0)
	ctx := context.Background()

	results, err := trainer.TrainBatch(ctx, ids, 0.9)
	require.NoError(t, err)
	result := results[ids[0]]
	assert.False(t, result.Success)
	assert.ErrorContains(t, result.Err, "diverged")
	assert.Equal(t, int64(2), result.CyclesCompleted)

	job, err := repos.Jobs.GetJob(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobFailed, job.Status)
}

func TestTrainBatch_MaxCycles(t *testing.T) {
	stalled := StrategyFunc(func(ctx context.Context, record *core.TensorRecord, tensor *core.Tensor, target float64) (*core.Tensor, float64, error) {
		return tensor, record.Maturity, nil
	})
	trainer, repos := newTestTrainer(t, WithStrategy(stalled), WithMaxCycles(3))
	ids := seedTensors(t, repos, 1, 0.1)

	results, err := trainer.TrainBatch(context.Background(), ids, 0.5)
	require.NoError(t, err)
	result := results[ids[0]]
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrMaxCyclesReached)
	assert.Equal(t, int64(3), result.CyclesCompleted)
}

func TestTrainBatch_ClampsStrategyOutput(t *testing.T) {
	wild := StrategyFunc(func(ctx context.Context, record *core.TensorRecord, tensor *core.Tensor, target float64) (*core.Tensor, float64, error) {
		return tensor, 5.0, nil
	})
	trainer, repos := newTestTrainer(t, WithStrategy(wild))
	ids := seedTensors(t, repos, 1, 0.1)

	results, err := trainer.TrainBatch(context.Background(), ids, 0.5)
	require.NoError(t, err)
	result := results[ids[0]]
	assert.True(t, result.Success)
	assert.InDelta(t, 0.6, result.FinalMaturity, 1e-9)
	assert.Equal(t, int64(1), result.CyclesCompleted)
}

func TestTrainBatch_CanceledReleasesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slow := StrategyFunc(func(c context.Context, record *core.TensorRecord, tensor *core.Tensor, target float64) (*core.Tensor, float64, error) {
		cancel()
		return tensor, record.Maturity + 0.01, nil
	})
	trainer, repos := newTestTrainer(t, WithStrategy(slow), WithMaxWorkers(1))
	ids := seedTensors(t, repos, 1, 0.1)

	results, err := trainer.TrainBatch(ctx, ids, 0.9)
	require.NoError(t, err)
	result := results[ids[0]]
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, context.Canceled)

	job, err := repos.Jobs.GetJob(context.Background(), result.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobPending, job.Status)
}

func TestTrainBatch_CanceledFailsUnstartedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slow := StrategyFunc(func(c context.Context, record *core.TensorRecord, tensor *core.Tensor, target float64) (*core.Tensor, float64, error) {
		cancel()
		return tensor, record.Maturity + 0.01, nil
	})
	trainer, repos := newTestTrainer(t, WithStrategy(slow), WithMaxWorkers(1))
	ids := seedTensors(t, repos, 3, 0.1)

	results, err := trainer.TrainBatch(ctx, ids, 0.9)
	require.NoError(t, err)
	require.Len(t, results, len(ids))

	bg := context.Background()
	first, err := repos.Jobs.GetJob(bg, results[ids[0]].JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobPending, first.Status)

	for _, id := range ids[1:] {
		result := results[id]
		assert.False(t, result.Success, id)
		assert.ErrorIs(t, result.Err, context.Canceled, id)

		job, err := repos.Jobs.GetJob(bg, result.JobID)
		require.NoError(t, err)
		assert.Equal(t, core.JobFailed, job.Status, id)
		assert.Equal(t, context.Canceled.Error(), job.ErrorMessage)
	}

	pending, err := repos.Jobs.ListPending(bg)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRun_ServesSharedQueue(t *testing.T) {
	trainer, repos := newTestTrainer(t, WithMaxWorkers(2), WithPollInterval(5*time.Millisecond))
	ids := seedTensors(t, repos, 4, 0)
	bg := context.Background()

	var jobIDs []string
	for _, id := range ids {
		job, err := repos.Jobs.CreateJob(bg, id, 0.2)
		require.NoError(t, err)
		jobIDs = append(jobIDs, job.ID)
	}

	ctx, cancel := context.WithCancel(bg)
	done := make(chan error, 1)
	go func() { done <- trainer.Run(ctx) }()

	require.Eventually(t, func() bool {
		for _, id := range jobIDs {
			job, err := repos.Jobs.GetJob(bg, id)
			if err != nil || job.Status != core.JobCompleted {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
