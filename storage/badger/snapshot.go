package badger

import (
	"context"
	"errors"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
)

// SnapshotRepository implements storage.IndexSnapshotRepository for BadgerDB.
type SnapshotRepository struct {
	backend *Backend
}

var _ storage.IndexSnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(backend *Backend) (storage.IndexSnapshotRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &SnapshotRepository{backend: backend}, nil
}

// Close releases resources. SnapshotRepository has no resources to release.
func (r *SnapshotRepository) Close() error {
	return nil
}

// PutSnapshot stores data under name.
func (r *SnapshotRepository) PutSnapshot(ctx context.Context, name string, data []byte) error {
	if err := core.ValidateID(name); err != nil {
		return err
	}
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeIndexSnapshotKey(name), slices.Clone(data))
	})
}

// GetSnapshot returns the snapshot stored under name.
func (r *SnapshotRepository) GetSnapshot(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := r.backend.view(func(tx *badger.Txn) error {
		item, err := tx.Get(makeIndexSnapshotKey(name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}
