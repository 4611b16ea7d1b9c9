package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
	"github.com/poiesic/tensorvault/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) storage.TensorRepository {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos.Tensors
}

// seedTensors stores n records named t00, t01, ... with descriptions.
func seedTensors(t *testing.T, repo storage.TensorRepository, n int, world string) []*core.TensorRecord {
	t.Helper()
	records := make([]*core.TensorRecord, n)
	for i := range records {
		records[i] = &core.TensorRecord{
			ID:          fmt.Sprintf("%s-t%02d", world, i),
			EntityID:    fmt.Sprintf("entity-%d", i),
			WorldID:     world,
			Blob:        core.MustEncodeTensor(core.DefaultTensor()),
			Description: fmt.Sprintf("tensor number %d", i),
		}
	}
	saved, err := repo.SaveBatch(context.Background(), records...)
	require.NoError(t, err)
	return saved
}

func TestTensorIterator_Batches(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedTensors(t, repo, 5, "w")

	var sizes []int
	var ids []string
	err := NewTensorIterator(repo, 2).ForEach(ctx, func(records []*core.TensorRecord) error {
		sizes = append(sizes, len(records))
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, []string{"w-t00", "w-t01", "w-t02", "w-t03", "w-t04"}, ids)

	count, err := NewTensorIterator(repo, 0).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestTensorIterator_Empty(t *testing.T) {
	repo := setupTestRepo(t)

	called := false
	err := NewTensorIterator(repo, 10).ForEach(context.Background(), func([]*core.TensorRecord) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestTensorIterator_Filter(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedTensors(t, repo, 3, "alpha")
	seedTensors(t, repo, 2, "beta")

	it := NewTensorIterator(repo, 10).WithFilter(storage.TensorFilter{WorldID: "beta"})
	count, err := it.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	err = it.ForEach(ctx, func(records []*core.TensorRecord) error {
		for _, r := range records {
			assert.Equal(t, "beta", r.WorldID)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestTensorIterator_StopsOnError(t *testing.T) {
	repo := setupTestRepo(t)
	seedTensors(t, repo, 6, "w")

	boom := errors.New("boom")
	batches := 0
	err := NewTensorIterator(repo, 2).ForEach(context.Background(), func([]*core.TensorRecord) error {
		batches++
		if batches == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, batches)
}

func TestTensorIterator_Canceled(t *testing.T) {
	repo := setupTestRepo(t)
	seedTensors(t, repo, 6, "w")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTensorIterator(repo, 2).ForEach(ctx, func([]*core.TensorRecord) error {
		t.Fatal("no batch expected after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithCancel(context.Background())
	batches := 0
	err = NewTensorIterator(repo, 2).ForEach(ctx, func([]*core.TensorRecord) error {
		batches++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, batches)
}
