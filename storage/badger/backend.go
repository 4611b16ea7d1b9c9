package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/tensorvault/storage"
)

const (
	// defaultConflictRetries bounds how often an update transaction is
	// retried after badger.ErrConflict.
	defaultConflictRetries = 16

	// conflictBaseDelay is the first backoff delay; it doubles per retry.
	conflictBaseDelay = 500 * time.Microsecond
)

// Config configures a Backend.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// GCInterval is how often to run value log garbage collection.
	// Zero disables GC. Ignored for in-memory databases.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64

	// Logger receives BadgerDB's internal logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the configuration for a persistent database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db       *badger.DB
	gc       *gcRunner
	retries  int
	logger   *slog.Logger
	inMemory bool
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path with default
// settings, or an in-memory database when inMemory is true.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	cfg := DefaultConfig(filePath)
	if inMemory {
		cfg = Config{InMemory: true}
	}
	return Open(cfg)
}

// Open opens a BadgerDB database described by cfg.
func Open(cfg Config) (*Backend, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "badger-backend")

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("path is required for persistent database")
		}
		// Ensure directory exists
		info, err := os.Stat(cfg.Path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.MkdirAll(cfg.Path, 0755); err != nil {
				return nil, err
			}
			info, err = os.Stat(cfg.Path)
			if err != nil {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}

	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	b := &Backend{
		db:       db,
		retries:  defaultConflictRetries,
		logger:   logger,
		inMemory: cfg.InMemory,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		b.gc = newGCRunner(db, cfg.GCInterval, ratio, logger)
		b.gc.start()
	}

	return b, nil
}

// NewMemoryBackend opens an in-memory backend, typically for tests.
func NewMemoryBackend() (*Backend, error) {
	return OpenBackend("", true)
}

// Close stops background GC and closes the BadgerDB database.
func (b *Backend) Close() error {
	if b.gc != nil {
		b.gc.stop()
	}
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction which fn must commit.
// The transaction is automatically discarded when WithTx returns.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// view runs fn in a read-only transaction.
func (b *Backend) view(fn func(tx *badger.Txn) error) error {
	return b.WithTx(fn, false)
}

// update runs fn in a read-write transaction and commits it, retrying with
// exponential backoff and jitter when the commit loses an optimistic
// concurrency race. fn must be safe to run more than once.
func (b *Backend) update(ctx context.Context, fn func(tx *badger.Txn) error) error {
	delay := conflictBaseDelay
	for attempt := 1; ; attempt++ {
		err := b.WithTx(func(tx *badger.Txn) error {
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		conflictRetries.Inc()
		if attempt >= b.retries {
			return fmt.Errorf("%w: %d conflicting attempts", storage.ErrTransactionFailed, attempt)
		}

		jitter := time.Duration(rand.Int64N(int64(delay)))
		timer := time.NewTimer(delay + jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay < 50*time.Millisecond {
			delay *= 2
		}
	}
}

// updateOnce runs fn in a read-write transaction and commits it without
// retrying. It reports false when the commit lost a conflict race, which is
// how compare-and-swap operations signal that another writer won.
func (b *Backend) updateOnce(fn func(tx *badger.Txn) (bool, error)) (bool, error) {
	var applied bool
	err := b.WithTx(func(tx *badger.Txn) error {
		ok, err := fn(tx)
		if err != nil || !ok {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		applied = true
		return nil
	}, true)
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	return applied, err
}

// gcRunner periodically runs value log garbage collection.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *slog.Logger
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			// ErrNoRewrite means no GC was needed
			if err := r.db.RunValueLogGC(r.ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				r.logger.Warn("value log GC failed", "err", err)
			}
		}
	}
}
