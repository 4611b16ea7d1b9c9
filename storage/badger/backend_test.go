package badger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepos opens in-memory repositories closed at test cleanup.
func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

// testRecord builds a valid record with a neutral tensor blob.
func testRecord(id string, maturity float64) *core.TensorRecord {
	return &core.TensorRecord{
		ID:       id,
		EntityID: "entity-" + id,
		Blob:     core.MustEncodeTensor(core.DefaultTensor()),
		Maturity: maturity,
	}
}

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
	info, err := os.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0o644))

	_, err := OpenBackend(tmpFile, false)
	assert.Error(t, err)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_WithGC(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = 10 * time.Millisecond
	backend, err := Open(cfg)
	require.NoError(t, err)
	require.NotNil(t, backend.gc)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(func(tx *badger.Txn) error { return nil }, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestPersistence_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	repo, err := NewTensorRepository(backend)
	require.NoError(t, err)
	_, err = repo.Save(ctx, testRecord("t1", 0.4))
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	repo, err = NewTensorRepository(backend)
	require.NoError(t, err)

	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, 0.4, got.Maturity)
}

func TestUpdate_PropagatesError(t *testing.T) {
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()

	err = backend.update(context.Background(), func(tx *badger.Txn) error {
		return assert.AnError
	})
	assert.Equal(t, assert.AnError, err)
}

func TestUpdate_RetriesConflicts(t *testing.T) {
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()
	key := []byte("test:counter")

	// The first attempt reads the key, then a competing writer commits
	// before the attempt does, which must force a retry.
	var attempts atomic.Int32
	err = backend.update(ctx, func(tx *badger.Txn) error {
		if _, err := tx.Get(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if attempts.Add(1) == 1 {
			require.NoError(t, backend.update(ctx, func(other *badger.Txn) error {
				return other.Set(key, []byte("other"))
			}))
		}
		return tx.Set(key, []byte("mine"))
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())

	err = backend.view(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		assert.Equal(t, "mine", string(val))
		return err
	})
	require.NoError(t, err)
}

func TestUpdate_GivesUpAfterRetries(t *testing.T) {
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()
	backend.retries = 2
	ctx := context.Background()
	key := []byte("test:contended")

	err = backend.update(ctx, func(tx *badger.Txn) error {
		if _, err := tx.Get(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		require.NoError(t, backend.update(ctx, func(other *badger.Txn) error {
			return other.Set(key, []byte("other"))
		}))
		return tx.Set(key, []byte("mine"))
	})
	assert.ErrorIs(t, err, storage.ErrTransactionFailed)
}

func TestUpdateOnce_ReportsConflict(t *testing.T) {
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()
	key := []byte("test:cas")

	ok, err := backend.updateOnce(func(tx *badger.Txn) (bool, error) {
		if _, err := tx.Get(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return false, err
		}
		require.NoError(t, backend.update(ctx, func(other *badger.Txn) error {
			return other.Set(key, []byte("winner"))
		}))
		return true, tx.Set(key, []byte("loser"))
	})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = backend.updateOnce(func(tx *badger.Txn) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeys_Ordering(t *testing.T) {
	t.Run("maturity keys sort numerically", func(t *testing.T) {
		values := []float64{0, 0.05, 0.3, 0.5, 0.95, 1}
		for i := 1; i < len(values); i++ {
			prev := makePartialMaturityKey(values[i-1])
			next := makePartialMaturityKey(values[i])
			assert.Less(t, string(prev), string(next), "%v < %v", values[i-1], values[i])
		}
	})

	t.Run("version prefix is not shared between ids", func(t *testing.T) {
		a := makeTensorVersionKey("t1", 3)
		prefix := makeTensorVersionPrefix("t")
		assert.NotEqual(t, string(prefix), string(a[:len(prefix)]))
	})

	t.Run("trailing id", func(t *testing.T) {
		key := makeJobPendingKey(time.UnixMicro(42), "job-1")
		assert.Equal(t, "job-1", trailingID(key, len(jobPendingPrefix)+8))
		assert.Equal(t, "", trailingID(key, len(key)))
	})
}
