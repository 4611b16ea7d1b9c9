package badger

import (
	"encoding/binary"
	"math"
	"time"
)

// Key prefixes for different data types. Variable-length segments are
// terminated with keySep so that one ID can never be a prefix of another's
// key range; core.ValidateID rejects IDs containing it.
const (
	tensorRecordPrefix    = "tns:"
	tensorVersionPrefix   = "tnv:"
	tensorMaturityPrefix  = "tnm:"
	jobRecordPrefix       = "job:"
	jobPendingPrefix      = "jbp:"
	jobTensorPrefix       = "jbt:"
	permissionPrefix      = "prm:"
	permissionOwnerPrefix = "pro:"
	userGroupPrefix       = "ugm:"
	groupUserPrefix       = "gmu:"
	auditRecordPrefix     = "aud:"
	auditTimePrefix       = "aut:"
	auditTensorPrefix     = "aus:"
	auditUserPrefix       = "aux:"
	indexSnapshotPrefix   = "idx:"

	keySep = 0x00
)

// keyBuilder assembles composite keys.
type keyBuilder struct {
	buf []byte
}

func newKey(prefix string) *keyBuilder {
	return &keyBuilder{buf: append(make([]byte, 0, 64), prefix...)}
}

// str appends a variable-length segment followed by the separator.
func (k *keyBuilder) str(s string) *keyBuilder {
	k.buf = append(k.buf, s...)
	k.buf = append(k.buf, keySep)
	return k
}

// raw appends a trailing segment without a separator.
func (k *keyBuilder) raw(s string) *keyBuilder {
	k.buf = append(k.buf, s...)
	return k
}

// uint64 appends v in BigEndian order so lexicographic sort works correctly.
func (k *keyBuilder) uint64(v uint64) *keyBuilder {
	k.buf = binary.BigEndian.AppendUint64(k.buf, v)
	return k
}

// time appends a timestamp as BigEndian Unix microseconds.
func (k *keyBuilder) time(t time.Time) *keyBuilder {
	return k.uint64(uint64(t.UnixMicro()))
}

// maturity appends a non-negative float so byte order matches numeric order.
func (k *keyBuilder) maturity(m float64) *keyBuilder {
	return k.uint64(math.Float64bits(m))
}

func (k *keyBuilder) bytes() []byte {
	return k.buf
}

// makeTensorKey generates a key for a tensor record by ID.
func makeTensorKey(id string) []byte {
	return newKey(tensorRecordPrefix).raw(id).bytes()
}

// makeTensorVersionKey generates a composite key for a version snapshot.
// Format: prefix:id\0version
func makeTensorVersionKey(id string, version int64) []byte {
	return newKey(tensorVersionPrefix).str(id).uint64(uint64(version)).bytes()
}

// makeTensorVersionPrefix generates the scan prefix for all versions of a tensor.
func makeTensorVersionPrefix(id string) []byte {
	return newKey(tensorVersionPrefix).str(id).bytes()
}

// makeMaturityKey generates a composite key for the maturity index.
// Format: prefix:maturity:id
func makeMaturityKey(maturity float64, id string) []byte {
	return newKey(tensorMaturityPrefix).maturity(maturity).raw(id).bytes()
}

// makePartialMaturityKey generates a seek key for maturity range queries.
func makePartialMaturityKey(maturity float64) []byte {
	return newKey(tensorMaturityPrefix).maturity(maturity).bytes()
}

// makeJobKey generates a key for a training job by ID.
func makeJobKey(id string) []byte {
	return newKey(jobRecordPrefix).raw(id).bytes()
}

// makeJobPendingKey generates a composite key for the pending FIFO index.
// Format: prefix:created:id. Job IDs are time-ordered UUIDs so ties within
// one microsecond still sort by creation.
func makeJobPendingKey(created time.Time, id string) []byte {
	return newKey(jobPendingPrefix).time(created).raw(id).bytes()
}

// makeJobTensorKey generates a composite key for the per-tensor job index.
// Format: prefix:tensorID\0created:jobID
func makeJobTensorKey(tensorID string, created time.Time, jobID string) []byte {
	return newKey(jobTensorPrefix).str(tensorID).time(created).raw(jobID).bytes()
}

func makeJobTensorPrefix(tensorID string) []byte {
	return newKey(jobTensorPrefix).str(tensorID).bytes()
}

// makePermissionKey generates a key for a tensor permission.
func makePermissionKey(tensorID string) []byte {
	return newKey(permissionPrefix).raw(tensorID).bytes()
}

// makePermissionOwnerKey generates a composite key for the owner index.
func makePermissionOwnerKey(ownerID, tensorID string) []byte {
	return newKey(permissionOwnerPrefix).str(ownerID).raw(tensorID).bytes()
}

func makePermissionOwnerPrefix(ownerID string) []byte {
	return newKey(permissionOwnerPrefix).str(ownerID).bytes()
}

// makeUserGroupKey and makeGroupUserKey index membership in both directions.
func makeUserGroupKey(userID, groupID string) []byte {
	return newKey(userGroupPrefix).str(userID).raw(groupID).bytes()
}

func makeUserGroupPrefix(userID string) []byte {
	return newKey(userGroupPrefix).str(userID).bytes()
}

func makeGroupUserKey(groupID, userID string) []byte {
	return newKey(groupUserPrefix).str(groupID).raw(userID).bytes()
}

func makeGroupUserPrefix(groupID string) []byte {
	return newKey(groupUserPrefix).str(groupID).bytes()
}

// makeAuditKey generates a key for an audit entry by ID.
func makeAuditKey(id string) []byte {
	return newKey(auditRecordPrefix).raw(id).bytes()
}

// makeAuditTimeKey generates a composite key for the global time index.
// Format: prefix:timestamp:id
func makeAuditTimeKey(ts time.Time, id string) []byte {
	return newKey(auditTimePrefix).time(ts).raw(id).bytes()
}

// makeAuditTensorKey generates a composite key for the per-tensor index.
// Format: prefix:tensorID\0timestamp:id
func makeAuditTensorKey(tensorID string, ts time.Time, id string) []byte {
	return newKey(auditTensorPrefix).str(tensorID).time(ts).raw(id).bytes()
}

func makeAuditTensorPrefix(tensorID string) []byte {
	return newKey(auditTensorPrefix).str(tensorID).bytes()
}

// makeAuditUserKey generates a composite key for the per-user index.
func makeAuditUserKey(userID string, ts time.Time, id string) []byte {
	return newKey(auditUserPrefix).str(userID).time(ts).raw(id).bytes()
}

func makeAuditUserPrefix(userID string) []byte {
	return newKey(auditUserPrefix).str(userID).bytes()
}

// makeIndexSnapshotKey generates a key for a named embedding index snapshot.
func makeIndexSnapshotKey(name string) []byte {
	return newKey(indexSnapshotPrefix).raw(name).bytes()
}

// trailingID extracts the ID after a fixed-length prefix of n bytes.
func trailingID(key []byte, n int) string {
	if len(key) <= n {
		return ""
	}
	return string(key[n:])
}

// seekEnd returns a key greater than every key carrying prefix, used to
// start reverse iteration.
func seekEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix), len(prefix)+1)
	copy(end, prefix)
	return append(end, 0xFF)
}
