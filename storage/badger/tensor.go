package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
)

// TensorRepository implements storage.TensorRepository for BadgerDB.
type TensorRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.TensorRepository = (*TensorRepository)(nil)

// NewTensorRepository creates a new TensorRepository.
func NewTensorRepository(backend *Backend) (storage.TensorRepository, error) {
	return newTensorRepository(backend)
}

func newTensorRepository(backend *Backend) (*TensorRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &TensorRepository{
		backend: backend,
		logger:  slog.Default().With("component", "tensor-repository"),
	}, nil
}

// Close releases resources. TensorRepository has no resources to release.
func (r *TensorRepository) Close() error {
	return nil
}

// Save upserts a record, bumping its version and appending a snapshot.
func (r *TensorRepository) Save(ctx context.Context, record *core.TensorRecord) (*core.TensorRecord, error) {
	if err := core.ValidateTensorRecord(record); err != nil {
		return nil, err
	}

	var saved *core.TensorRecord
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		current, err := readTensor(tx, makeTensorKey(record.ID))
		if err != nil {
			return err
		}
		saved, err = writeTensor(tx, record, current)
		return err
	})
	if err != nil {
		tensorSaves.WithLabelValues("save", "error").Inc()
		return nil, err
	}

	tensorSaves.WithLabelValues("save", "ok").Inc()
	r.logger.Debug("saved tensor", "id", saved.ID, "version", saved.Version, "maturity", saved.Maturity)
	return saved, nil
}

// SaveWithLock writes the record only if the stored version matches.
func (r *TensorRepository) SaveWithLock(ctx context.Context, record *core.TensorRecord, expectedVersion int64) (bool, error) {
	if err := core.ValidateTensorRecord(record); err != nil {
		return false, err
	}
	if expectedVersion < 0 {
		return false, fmt.Errorf("%w: negative expected version", storage.ErrInvalidQuery)
	}

	ok, err := r.backend.updateOnce(func(tx *badger.Txn) (bool, error) {
		current, err := readTensor(tx, makeTensorKey(record.ID))
		if err != nil {
			return false, err
		}
		switch {
		case expectedVersion == 0 && current != nil:
			return false, nil
		case expectedVersion > 0 && (current == nil || current.Version != expectedVersion):
			return false, nil
		}
		if _, err := writeTensor(tx, record, current); err != nil {
			return false, err
		}
		return true, nil
	})
	switch {
	case err != nil:
		tensorSaves.WithLabelValues("lock", "error").Inc()
	case ok:
		tensorSaves.WithLabelValues("lock", "ok").Inc()
	default:
		tensorSaves.WithLabelValues("lock", "conflict").Inc()
		r.logger.Debug("optimistic lock collision", "id", record.ID, "expected_version", expectedVersion)
	}
	return ok, err
}

// SaveBatch validates all records, then writes them in one transaction.
func (r *TensorRepository) SaveBatch(ctx context.Context, records ...*core.TensorRecord) ([]*core.TensorRecord, error) {
	for i, record := range records {
		if err := core.ValidateTensorRecord(record); err != nil {
			tensorSaves.WithLabelValues("batch", "invalid").Inc()
			return nil, fmt.Errorf("batch record %d: %w", i, err)
		}
	}

	var saved []*core.TensorRecord
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		saved = make([]*core.TensorRecord, 0, len(records))
		for _, record := range records {
			current, err := readTensor(tx, makeTensorKey(record.ID))
			if err != nil {
				return err
			}
			next, err := writeTensor(tx, record, current)
			if err != nil {
				return err
			}
			saved = append(saved, next)
		}
		return nil
	})
	if err != nil {
		tensorSaves.WithLabelValues("batch", "error").Inc()
		return nil, err
	}
	tensorSaves.WithLabelValues("batch", "ok").Add(float64(len(saved)))
	return saved, nil
}

// Get retrieves a single record by ID.
func (r *TensorRepository) Get(ctx context.Context, id string) (*core.TensorRecord, error) {
	var result *core.TensorRecord
	err := r.backend.view(func(tx *badger.Txn) error {
		var err error
		result, err = readTensor(tx, makeTensorKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// GetBatch retrieves multiple records, skipping missing ones.
func (r *TensorRepository) GetBatch(ctx context.Context, ids ...string) ([]*core.TensorRecord, error) {
	var result []*core.TensorRecord
	err := r.backend.view(func(tx *badger.Txn) error {
		for _, id := range ids {
			record, err := readTensor(tx, makeTensorKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				result = append(result, record)
			}
		}
		return nil
	})
	return result, err
}

// Delete removes a record with its versions and index entries.
func (r *TensorRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		deleted = false
		key := makeTensorKey(id)
		current, err := readTensor(tx, key)
		if err != nil || current == nil {
			return err
		}

		versionKeys, err := collectKeys(tx, makeTensorVersionPrefix(id))
		if err != nil {
			return err
		}
		if err := deleteKeys(tx, versionKeys); err != nil {
			return err
		}
		if err := tx.Delete(makeMaturityKey(current.Maturity, id)); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err == nil && deleted {
		r.logger.Debug("deleted tensor", "id", id)
	}
	return deleted, err
}

// List scans all records, applying the filter.
func (r *TensorRepository) List(ctx context.Context, filter storage.TensorFilter) ([]*core.TensorRecord, error) {
	var results []*core.TensorRecord
	err := r.backend.view(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(tensorRecordPrefix), scanOptions{}, func(item *badger.Item) error {
			record, err := itemTensor(item)
			if err != nil {
				return err
			}
			if filter.EntityID != "" && record.EntityID != filter.EntityID {
				return nil
			}
			if filter.WorldID != "" && record.WorldID != filter.WorldID {
				return nil
			}
			results = append(results, record)
			return nil
		})
	})
	return results, err
}

// GetByMaturity range-scans the maturity index: min <= maturity < max.
func (r *TensorRepository) GetByMaturity(ctx context.Context, min, max float64) ([]*core.TensorRecord, error) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return nil, fmt.Errorf("%w: NaN maturity bound", storage.ErrInvalidQuery)
	}
	if min < 0 {
		min = 0
	}

	var results []*core.TensorRecord
	err := r.backend.view(func(tx *badger.Txn) error {
		prefix := []byte(tensorMaturityPrefix)
		var ids []string
		so := scanOptions{keysOnly: true, start: makePartialMaturityKey(min)}
		err := scanPrefix(tx, prefix, so, func(item *badger.Item) error {
			key := item.Key()
			if len(key) < len(prefix)+8 {
				return nil
			}
			maturity := math.Float64frombits(binary.BigEndian.Uint64(key[len(prefix):]))
			if max >= 0 && maturity >= max {
				return errStopIteration
			}
			ids = append(ids, trailingID(key, len(prefix)+8))
			return nil
		})
		if err != nil {
			return err
		}

		for _, id := range ids {
			record, err := readTensor(tx, makeTensorKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	})
	return results, err
}

// GetVersionHistory returns snapshots ordered by ascending version.
func (r *TensorRepository) GetVersionHistory(ctx context.Context, id string) ([]*core.TensorVersion, error) {
	var versions []*core.TensorVersion
	err := r.backend.view(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeTensorVersionPrefix(id), scanOptions{}, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				v, err := storage.UnmarshalTensorVersion(val)
				if err != nil {
					return err
				}
				versions = append(versions, v)
				return nil
			})
		})
	})
	return versions, err
}

// GetVersion returns one snapshot.
func (r *TensorRepository) GetVersion(ctx context.Context, id string, version int64) (*core.TensorVersion, error) {
	var result *core.TensorVersion
	err := r.backend.view(func(tx *badger.Txn) error {
		item, err := tx.Get(makeTensorVersionKey(id, version))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			result, err = storage.UnmarshalTensorVersion(val)
			return err
		})
	})
	return result, err
}

// GetTrainingHistory projects the version history onto training progress.
func (r *TensorRepository) GetTrainingHistory(ctx context.Context, id string) ([]storage.TrainingSnapshot, error) {
	versions, err := r.GetVersionHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	history := make([]storage.TrainingSnapshot, len(versions))
	for i, v := range versions {
		history[i] = storage.TrainingSnapshot{
			Version:        v.Version,
			Maturity:       v.Maturity,
			TrainingCycles: v.TrainingCycles,
			CreatedAt:      v.CreatedAt,
		}
	}
	return history, nil
}

// Stats summarizes record counts and maturity.
func (r *TensorRepository) Stats(ctx context.Context) (*core.TensorStats, error) {
	stats := &core.TensorStats{}
	err := r.backend.view(func(tx *badger.Txn) error {
		var total float64
		err := scanPrefix(tx, []byte(tensorRecordPrefix), scanOptions{}, func(item *badger.Item) error {
			record, err := itemTensor(item)
			if err != nil {
				return err
			}
			stats.TotalTensors++
			total += record.Maturity
			if record.IsOperational() {
				stats.OperationalCount++
			} else {
				stats.TrainingCount++
			}
			return nil
		})
		if err != nil {
			return err
		}
		if stats.TotalTensors > 0 {
			stats.AvgMaturity = total / float64(stats.TotalTensors)
		}

		return scanPrefix(tx, []byte(tensorVersionPrefix), scanOptions{keysOnly: true}, func(*badger.Item) error {
			stats.TotalVersions++
			return nil
		})
	})
	return stats, err
}

// Helper methods

// writeTensor stores record as the successor of current (nil when new),
// maintaining the maturity index and appending a version snapshot.
func writeTensor(tx *badger.Txn, record, current *core.TensorRecord) (*core.TensorRecord, error) {
	next := record.Clone()
	now := core.Now()
	if current == nil {
		next.Version = 1
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
	} else {
		next.Version = current.Version + 1
		next.CreatedAt = current.CreatedAt
		if err := tx.Delete(makeMaturityKey(current.Maturity, current.ID)); err != nil {
			return nil, err
		}
	}
	next.UpdatedAt = now

	if err := tx.Set(makeTensorKey(next.ID), storage.MarshalTensorRecord(next)); err != nil {
		return nil, err
	}
	if err := tx.Set(makeMaturityKey(next.Maturity, next.ID), nil); err != nil {
		return nil, err
	}

	version := &core.TensorVersion{
		TensorID:       next.ID,
		Version:        next.Version,
		Blob:           slices.Clone(next.Blob),
		Maturity:       next.Maturity,
		TrainingCycles: next.TrainingCycles,
		CreatedAt:      now,
	}
	if err := tx.Set(makeTensorVersionKey(next.ID, next.Version), storage.MarshalTensorVersion(version)); err != nil {
		return nil, err
	}
	return next, nil
}

// readTensor reads a record from the transaction, returning nil if absent.
func readTensor(tx *badger.Txn, key []byte) (*core.TensorRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return itemTensor(item)
}

func itemTensor(item *badger.Item) (*core.TensorRecord, error) {
	var record *core.TensorRecord
	err := item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalTensorRecord(val)
		return err
	})
	return record, err
}
