package storage

import (
	"context"
	"time"

	"github.com/poiesic/tensorvault/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	// The shared backend is closed separately.
	Close() error
}

// TensorFilter narrows List results. Empty fields match everything.
type TensorFilter struct {
	EntityID string
	WorldID  string
}

// TrainingSnapshot is one point of a tensor's training history.
type TrainingSnapshot struct {
	Version        int64
	Maturity       float64
	TrainingCycles int64
	CreatedAt      time.Time
}

// TensorRepository persists tensor records and their version history.
type TensorRepository interface {
	Repository

	// Save upserts a record. New records start at version 1; existing
	// records are written at version+1 and keep their CreatedAt. A version
	// snapshot is appended in the same transaction.
	// Returns the stored record with version and timestamps populated.
	Save(ctx context.Context, record *core.TensorRecord) (*core.TensorRecord, error)

	// SaveWithLock writes the record only if the stored version still equals
	// expectedVersion at commit time. expectedVersion 0 means the record
	// must not exist yet. Returns false without mutating anything when
	// another writer got there first.
	SaveWithLock(ctx context.Context, record *core.TensorRecord, expectedVersion int64) (bool, error)

	// SaveBatch validates every record and then writes all of them in one
	// transaction. Any invalid record aborts the batch before any write.
	SaveBatch(ctx context.Context, records ...*core.TensorRecord) ([]*core.TensorRecord, error)

	// Get retrieves a record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, id string) (*core.TensorRecord, error)

	// GetBatch retrieves multiple records.
	// Returns only the records that exist (no error for missing records).
	GetBatch(ctx context.Context, ids ...string) ([]*core.TensorRecord, error)

	// Delete removes a record and all of its versions.
	// Returns false if the record didn't exist.
	Delete(ctx context.Context, id string) (bool, error)

	// List returns records matching the filter, ordered by ID.
	List(ctx context.Context, filter TensorFilter) ([]*core.TensorRecord, error)

	// GetByMaturity returns records where min <= Maturity < max, ordered by
	// maturity. A negative max means no upper bound.
	GetByMaturity(ctx context.Context, min, max float64) ([]*core.TensorRecord, error)

	// GetVersionHistory returns every snapshot ordered by ascending version.
	GetVersionHistory(ctx context.Context, id string) ([]*core.TensorVersion, error)

	// GetVersion returns a single snapshot.
	// Returns ErrNotFound if the version doesn't exist.
	GetVersion(ctx context.Context, id string, version int64) (*core.TensorVersion, error)

	// GetTrainingHistory returns maturity and cycle progression by version.
	GetTrainingHistory(ctx context.Context, id string) ([]TrainingSnapshot, error)

	// Stats summarizes the store.
	Stats(ctx context.Context) (*core.TensorStats, error)
}

// JobRepository is the training job queue. Every state transition is a
// single atomic compare-and-swap against the store.
type JobRepository interface {
	Repository

	// CreateJob enqueues a pending job for a tensor.
	CreateJob(ctx context.Context, tensorID string, targetMaturity float64) (*core.TrainingJob, error)

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.TrainingJob, error)

	// ListPending returns pending jobs oldest first.
	ListPending(ctx context.Context) ([]*core.TrainingJob, error)

	// ListRunning returns jobs currently held by a worker.
	ListRunning(ctx context.Context) ([]*core.TrainingJob, error)

	// AcquireJob assigns a pending, unassigned job to workerID.
	// Exactly one of any number of concurrent callers succeeds.
	AcquireJob(ctx context.Context, jobID, workerID string) (bool, error)

	// AcquireNextPending atomically acquires the oldest pending job.
	// Returns nil when no pending job could be acquired.
	AcquireNextPending(ctx context.Context, workerID string) (*core.TrainingJob, error)

	// CompleteJob marks a job completed. No-op for terminal jobs.
	CompleteJob(ctx context.Context, jobID string, cyclesCompleted int64) error

	// FailJob marks a job failed. No-op for terminal jobs.
	FailJob(ctx context.Context, jobID string, message string) error

	// ReleaseJob returns a running job to pending. No-op otherwise.
	ReleaseJob(ctx context.Context, jobID string) error

	// GetJobsForTensor returns every job for a tensor, newest first.
	GetJobsForTensor(ctx context.Context, tensorID string) ([]*core.TrainingJob, error)

	// CleanupStaleJobs releases jobs running longer than timeout.
	// Returns the number of jobs released.
	CleanupStaleJobs(ctx context.Context, timeout time.Duration) (int, error)
}

// PermissionRepository stores one TensorPermission per tensor.
type PermissionRepository interface {
	Repository

	// GetPermission retrieves the permission for a tensor.
	// Returns ErrNotFound if none exists.
	GetPermission(ctx context.Context, tensorID string) (*core.TensorPermission, error)

	// PutPermission creates or replaces a permission.
	PutPermission(ctx context.Context, perm *core.TensorPermission) error

	// UpdatePermission applies fn to the stored permission inside a single
	// read-modify-write transaction, retrying on write conflicts. fn returns
	// false to leave the record untouched. Returns ErrNotFound if none exists.
	UpdatePermission(ctx context.Context, tensorID string, fn func(*core.TensorPermission) (bool, error)) (*core.TensorPermission, error)

	// DeletePermission removes a permission. Returns false if absent.
	DeletePermission(ctx context.Context, tensorID string) (bool, error)

	// ListPermissions returns all permissions ordered by tensor ID.
	ListPermissions(ctx context.Context) ([]*core.TensorPermission, error)

	// ListByOwner returns permissions owned by a user.
	ListByOwner(ctx context.Context, ownerID string) ([]*core.TensorPermission, error)
}

// GroupRepository stores user to group membership.
type GroupRepository interface {
	Repository

	// AddMember adds a user to a group. Returns false if already a member.
	AddMember(ctx context.Context, userID, groupID string) (bool, error)

	// RemoveMember removes a user from a group. Returns false if not a member.
	RemoveMember(ctx context.Context, userID, groupID string) (bool, error)

	// GetUserGroups returns the groups a user belongs to, sorted.
	GetUserGroups(ctx context.Context, userID string) ([]string, error)

	// GetGroupMembers returns the members of a group, sorted.
	GetGroupMembers(ctx context.Context, groupID string) ([]string, error)
}

// AuditQuery selects audit entries. All entries are returned newest first.
type AuditQuery struct {
	TensorID string    // Optional
	UserID   string    // Optional
	Since    time.Time // Zero means no lower bound
	Limit    int       // <= 0 means no limit
}

// AuditRepository is an append-only store of access events.
type AuditRepository interface {
	Repository

	// AppendEntries stores entries. IDs are assigned when empty.
	AppendEntries(ctx context.Context, entries ...*core.AuditEntry) error

	// QueryEntries returns entries matching the query, newest first.
	QueryEntries(ctx context.Context, query AuditQuery) ([]*core.AuditEntry, error)

	// DeleteEntriesBefore removes entries older than cutoff.
	DeleteEntriesBefore(ctx context.Context, cutoff time.Time) (int, error)

	// DeleteTensorEntries removes every entry for a tensor.
	DeleteTensorEntries(ctx context.Context, tensorID string) (int, error)

	// CountEntries counts entries, optionally for one tensor.
	CountEntries(ctx context.Context, tensorID string) (int, error)
}

// IndexSnapshotRepository persists serialized embedding index snapshots.
type IndexSnapshotRepository interface {
	Repository

	// PutSnapshot stores a snapshot under name, replacing any previous one.
	PutSnapshot(ctx context.Context, name string, data []byte) error

	// GetSnapshot returns a snapshot.
	// Returns ErrNotFound if none exists.
	GetSnapshot(ctx context.Context, name string) ([]byte, error)
}
