package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
)

// PermissionRepository implements storage.PermissionRepository for BadgerDB.
type PermissionRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.PermissionRepository = (*PermissionRepository)(nil)

// NewPermissionRepository creates a new PermissionRepository.
func NewPermissionRepository(backend *Backend) (storage.PermissionRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &PermissionRepository{
		backend: backend,
		logger:  slog.Default().With("component", "permission-repository"),
	}, nil
}

// Close releases resources. PermissionRepository has no resources to release.
func (r *PermissionRepository) Close() error {
	return nil
}

// GetPermission retrieves the permission for a tensor.
func (r *PermissionRepository) GetPermission(ctx context.Context, tensorID string) (*core.TensorPermission, error) {
	var perm *core.TensorPermission
	err := r.backend.view(func(tx *badger.Txn) error {
		var err error
		perm, err = readPermission(tx, tensorID)
		if err != nil {
			return err
		}
		if perm == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return perm, err
}

// PutPermission creates or replaces a permission.
func (r *PermissionRepository) PutPermission(ctx context.Context, perm *core.TensorPermission) error {
	if err := validatePermission(perm); err != nil {
		return err
	}
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		current, err := readPermission(tx, perm.TensorID)
		if err != nil {
			return err
		}
		return writePermission(tx, perm, current)
	})
}

// UpdatePermission runs fn against the stored permission in one
// read-modify-write transaction. fn may be called more than once when the
// commit conflicts, so it must only mutate the value it is given.
func (r *PermissionRepository) UpdatePermission(ctx context.Context, tensorID string, fn func(*core.TensorPermission) (bool, error)) (*core.TensorPermission, error) {
	var result *core.TensorPermission
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		current, err := readPermission(tx, tensorID)
		if err != nil {
			return err
		}
		if current == nil {
			return storage.ErrNotFound
		}

		next := current.Clone()
		changed, err := fn(next)
		if err != nil {
			return err
		}
		if !changed {
			result = current
			return nil
		}
		if err := validatePermission(next); err != nil {
			return err
		}
		if next.TensorID != tensorID {
			return fmt.Errorf("%w: tensor id changed", storage.ErrInvalidQuery)
		}
		result = next
		return writePermission(tx, next, current)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeletePermission removes a permission.
func (r *PermissionRepository) DeletePermission(ctx context.Context, tensorID string) (bool, error) {
	var deleted bool
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		deleted = false
		current, err := readPermission(tx, tensorID)
		if err != nil || current == nil {
			return err
		}
		if err := tx.Delete(makePermissionOwnerKey(current.OwnerID, tensorID)); err != nil {
			return err
		}
		if err := tx.Delete(makePermissionKey(tensorID)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// ListPermissions returns all permissions ordered by tensor ID.
func (r *PermissionRepository) ListPermissions(ctx context.Context) ([]*core.TensorPermission, error) {
	var perms []*core.TensorPermission
	err := r.backend.view(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(permissionPrefix), scanOptions{}, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				perm, err := storage.UnmarshalTensorPermission(val)
				if err != nil {
					return err
				}
				perms = append(perms, perm)
				return nil
			})
		})
	})
	return perms, err
}

// ListByOwner returns permissions owned by ownerID.
func (r *PermissionRepository) ListByOwner(ctx context.Context, ownerID string) ([]*core.TensorPermission, error) {
	var perms []*core.TensorPermission
	err := r.backend.view(func(tx *badger.Txn) error {
		prefix := makePermissionOwnerPrefix(ownerID)
		var ids []string
		err := scanPrefix(tx, prefix, scanOptions{keysOnly: true}, func(item *badger.Item) error {
			ids = append(ids, trailingID(item.Key(), len(prefix)))
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range ids {
			perm, err := readPermission(tx, id)
			if err != nil {
				return err
			}
			if perm != nil {
				perms = append(perms, perm)
			}
		}
		return nil
	})
	return perms, err
}

// Helper methods

func validatePermission(perm *core.TensorPermission) error {
	if perm == nil {
		return fmt.Errorf("%w: permission is nil", storage.ErrInvalidQuery)
	}
	if err := core.ValidateID(perm.TensorID); err != nil {
		return fmt.Errorf("tensor id: %w", err)
	}
	if err := core.ValidateID(perm.OwnerID); err != nil {
		return fmt.Errorf("owner id: %w", err)
	}
	if !perm.AccessLevel.IsValid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidAccessLevel, perm.AccessLevel)
	}
	return nil
}

// writePermission stores perm and keeps the owner index in step with the
// previously stored value, if any.
func writePermission(tx *badger.Txn, perm, previous *core.TensorPermission) error {
	if previous != nil && previous.OwnerID != perm.OwnerID {
		if err := tx.Delete(makePermissionOwnerKey(previous.OwnerID, previous.TensorID)); err != nil {
			return err
		}
	}
	if err := tx.Set(makePermissionKey(perm.TensorID), storage.MarshalTensorPermission(perm)); err != nil {
		return err
	}
	return tx.Set(makePermissionOwnerKey(perm.OwnerID, perm.TensorID), nil)
}

// readPermission reads a permission from the transaction, returning nil if absent.
func readPermission(tx *badger.Txn, tensorID string) (*core.TensorPermission, error) {
	item, err := tx.Get(makePermissionKey(tensorID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var perm *core.TensorPermission
	err = item.Value(func(val []byte) error {
		var err error
		perm, err = storage.UnmarshalTensorPermission(val)
		return err
	})
	return perm, err
}
