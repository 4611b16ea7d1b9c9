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

// GroupRepository implements storage.GroupRepository for BadgerDB.
// Membership is stored as two key-only indexes, user to group and group to
// user, written together in one transaction.
type GroupRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.GroupRepository = (*GroupRepository)(nil)

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(backend *Backend) (storage.GroupRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &GroupRepository{
		backend: backend,
		logger:  slog.Default().With("component", "group-repository"),
	}, nil
}

// Close releases resources. GroupRepository has no resources to release.
func (r *GroupRepository) Close() error {
	return nil
}

// AddMember adds userID to groupID.
func (r *GroupRepository) AddMember(ctx context.Context, userID, groupID string) (bool, error) {
	if err := validateMembership(userID, groupID); err != nil {
		return false, err
	}
	var added bool
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		added = false
		exists, err := keyExists(tx, makeUserGroupKey(userID, groupID))
		if err != nil || exists {
			return err
		}
		if err := tx.Set(makeUserGroupKey(userID, groupID), nil); err != nil {
			return err
		}
		if err := tx.Set(makeGroupUserKey(groupID, userID), nil); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err == nil && added {
		r.logger.Debug("added group member", "user_id", userID, "group_id", groupID)
	}
	return added, err
}

// RemoveMember removes userID from groupID.
func (r *GroupRepository) RemoveMember(ctx context.Context, userID, groupID string) (bool, error) {
	if err := validateMembership(userID, groupID); err != nil {
		return false, err
	}
	var removed bool
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		removed = false
		exists, err := keyExists(tx, makeUserGroupKey(userID, groupID))
		if err != nil || !exists {
			return err
		}
		if err := tx.Delete(makeUserGroupKey(userID, groupID)); err != nil {
			return err
		}
		if err := tx.Delete(makeGroupUserKey(groupID, userID)); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err == nil && removed {
		r.logger.Debug("removed group member", "user_id", userID, "group_id", groupID)
	}
	return removed, err
}

// GetUserGroups returns the groups userID belongs to, sorted.
func (r *GroupRepository) GetUserGroups(ctx context.Context, userID string) ([]string, error) {
	return r.listTrailing(makeUserGroupPrefix(userID))
}

// GetGroupMembers returns the members of groupID, sorted.
func (r *GroupRepository) GetGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	return r.listTrailing(makeGroupUserPrefix(groupID))
}

func (r *GroupRepository) listTrailing(prefix []byte) ([]string, error) {
	var ids []string
	err := r.backend.view(func(tx *badger.Txn) error {
		return scanPrefix(tx, prefix, scanOptions{keysOnly: true}, func(item *badger.Item) error {
			ids = append(ids, trailingID(item.Key(), len(prefix)))
			return nil
		})
	})
	return ids, err
}

func validateMembership(userID, groupID string) error {
	if err := core.ValidateID(userID); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	if err := core.ValidateID(groupID); err != nil {
		return fmt.Errorf("group id: %w", err)
	}
	return nil
}

// keyExists reports whether key is present, registering the read with the
// transaction for conflict detection.
func keyExists(tx *badger.Txn, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
