package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
)

// auditDeleteBatch caps how many entries one delete transaction removes so
// large retention sweeps stay under badger's transaction size limit.
const auditDeleteBatch = 500

// AuditRepository implements storage.AuditRepository for BadgerDB.
//
// Each entry is stored once under its ID and indexed three ways: globally
// by time, per tensor and per user. Index keys end in (timestamp, id) with
// the timestamp big-endian, so reverse prefix scans return newest first.
type AuditRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.AuditRepository = (*AuditRepository)(nil)

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(backend *Backend) (storage.AuditRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &AuditRepository{
		backend: backend,
		logger:  slog.Default().With("component", "audit-repository"),
	}, nil
}

// Close releases resources. AuditRepository has no resources to release.
func (r *AuditRepository) Close() error {
	return nil
}

// AppendEntries stores entries in one transaction, assigning IDs and
// timestamps where they are unset.
func (r *AuditRepository) AppendEntries(ctx context.Context, entries ...*core.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for i, entry := range entries {
		if entry == nil {
			return fmt.Errorf("%w: entry %d is nil", storage.ErrInvalidQuery, i)
		}
		if err := core.ValidateID(entry.TensorID); err != nil {
			return fmt.Errorf("entry %d tensor id: %w", i, err)
		}
		if err := core.ValidateID(entry.UserID); err != nil {
			return fmt.Errorf("entry %d user id: %w", i, err)
		}
		if !entry.Action.IsValid() {
			return fmt.Errorf("entry %d: %w", i, core.ErrInvalidAction)
		}
		if entry.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("generate audit id: %w", err)
			}
			entry.ID = id.String()
		}
		if entry.Timestamp.IsZero() {
			entry.Timestamp = core.Now()
		}
	}

	return r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, entry := range entries {
			if err := tx.Set(makeAuditKey(entry.ID), storage.MarshalAuditEntry(entry)); err != nil {
				return err
			}
			for _, key := range auditIndexKeys(entry) {
				if err := tx.Set(key, nil); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// QueryEntries returns entries matching query, newest first. The narrowest
// index available for the query is scanned.
func (r *AuditRepository) QueryEntries(ctx context.Context, query storage.AuditQuery) ([]*core.AuditEntry, error) {
	var prefix []byte
	switch {
	case query.TensorID != "":
		prefix = makeAuditTensorPrefix(query.TensorID)
	case query.UserID != "":
		prefix = makeAuditUserPrefix(query.UserID)
	default:
		prefix = []byte(auditTimePrefix)
	}

	var entries []*core.AuditEntry
	err := r.backend.view(func(tx *badger.Txn) error {
		so := scanOptions{reverse: true, keysOnly: true}
		return scanPrefix(tx, prefix, so, func(item *badger.Item) error {
			ts, id, ok := splitAuditIndexKey(item.Key(), len(prefix))
			if !ok {
				return nil
			}
			if !query.Since.IsZero() && ts.Before(query.Since) {
				return errStopIteration
			}
			entry, err := readAuditEntry(tx, id)
			if err != nil {
				return err
			}
			if entry == nil {
				return nil
			}
			if query.UserID != "" && entry.UserID != query.UserID {
				return nil
			}
			entries = append(entries, entry)
			if query.Limit > 0 && len(entries) >= query.Limit {
				return errStopIteration
			}
			return nil
		})
	})
	return entries, err
}

// DeleteEntriesBefore removes entries with a timestamp before cutoff.
func (r *AuditRepository) DeleteEntriesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	prefix := []byte(auditTimePrefix)
	total, err := r.deleteInBatches(ctx, prefix, func(ts time.Time) bool {
		return ts.Before(cutoff)
	})
	if err == nil && total > 0 {
		r.logger.Info("deleted audit entries", "count", total, "before", cutoff)
	}
	return total, err
}

// DeleteTensorEntries removes every entry recorded for tensorID.
func (r *AuditRepository) DeleteTensorEntries(ctx context.Context, tensorID string) (int, error) {
	total, err := r.deleteInBatches(ctx, makeAuditTensorPrefix(tensorID), func(time.Time) bool {
		return true
	})
	if err == nil && total > 0 {
		r.logger.Info("cleared tensor audit entries", "tensor_id", tensorID, "count", total)
	}
	return total, err
}

// CountEntries counts all entries, or only those for tensorID when set.
func (r *AuditRepository) CountEntries(ctx context.Context, tensorID string) (int, error) {
	prefix := []byte(auditRecordPrefix)
	if tensorID != "" {
		prefix = makeAuditTensorPrefix(tensorID)
	}
	var count int
	err := r.backend.view(func(tx *badger.Txn) error {
		return scanPrefix(tx, prefix, scanOptions{keysOnly: true}, func(*badger.Item) error {
			count++
			return nil
		})
	})
	return count, err
}

// deleteInBatches scans an index in ascending time order and deletes the
// entries it references until match reports false or the index is exhausted.
func (r *AuditRepository) deleteInBatches(ctx context.Context, prefix []byte, match func(time.Time) bool) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var deleted int
		var more bool
		err := r.backend.update(ctx, func(tx *badger.Txn) error {
			deleted, more = 0, false
			var ids []string
			err := scanPrefix(tx, prefix, scanOptions{keysOnly: true}, func(item *badger.Item) error {
				ts, id, ok := splitAuditIndexKey(item.Key(), len(prefix))
				if !ok {
					return nil
				}
				if !match(ts) {
					return errStopIteration
				}
				if len(ids) == auditDeleteBatch {
					more = true
					return errStopIteration
				}
				ids = append(ids, id)
				return nil
			})
			if err != nil {
				return err
			}

			for _, id := range ids {
				entry, err := readAuditEntry(tx, id)
				if err != nil {
					return err
				}
				if entry == nil {
					continue
				}
				for _, key := range auditIndexKeys(entry) {
					if err := tx.Delete(key); err != nil {
						return err
					}
				}
				if err := tx.Delete(makeAuditKey(id)); err != nil {
					return err
				}
				deleted++
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		total += deleted
		if !more {
			return total, nil
		}
	}
}

// Helper methods

func auditIndexKeys(entry *core.AuditEntry) [][]byte {
	return [][]byte{
		makeAuditTimeKey(entry.Timestamp, entry.ID),
		makeAuditTensorKey(entry.TensorID, entry.Timestamp, entry.ID),
		makeAuditUserKey(entry.UserID, entry.Timestamp, entry.ID),
	}
}

// splitAuditIndexKey decodes the (timestamp, id) suffix following a prefix
// of n bytes.
func splitAuditIndexKey(key []byte, n int) (time.Time, string, bool) {
	if len(key) <= n+8 {
		return time.Time{}, "", false
	}
	micros := int64(binary.BigEndian.Uint64(key[n : n+8]))
	return time.UnixMicro(micros).UTC(), string(key[n+8:]), true
}

// readAuditEntry reads an entry from the transaction, returning nil if absent.
func readAuditEntry(tx *badger.Txn, id string) (*core.AuditEntry, error) {
	item, err := tx.Get(makeAuditKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var entry *core.AuditEntry
	err = item.Value(func(val []byte) error {
		var err error
		entry, err = storage.UnmarshalAuditEntry(val)
		return err
	})
	return entry, err
}
