package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditAt(tensorID, userID string, action core.Action, ts time.Time) *core.AuditEntry {
	return &core.AuditEntry{
		TensorID:  tensorID,
		UserID:    userID,
		Action:    action,
		Success:   true,
		Timestamp: ts,
	}
}

func TestAppendEntries(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	entry := &core.AuditEntry{
		TensorID: "t1",
		UserID:   "alice",
		Action:   core.ActionRead,
		Success:  true,
		Metadata: map[string]string{"source": "api"},
	}
	require.NoError(t, repos.Audit.AppendEntries(ctx, entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())

	got, err := repos.Audit.QueryEntries(ctx, storage.AuditQuery{TensorID: "t1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entry, got[0])

	require.NoError(t, repos.Audit.AppendEntries(ctx))

	t.Run("rejects invalid entries", func(t *testing.T) {
		err := repos.Audit.AppendEntries(ctx, &core.AuditEntry{TensorID: "t1", UserID: "alice"})
		assert.ErrorIs(t, err, core.ErrInvalidAction)
		err = repos.Audit.AppendEntries(ctx, &core.AuditEntry{UserID: "alice", Action: core.ActionRead})
		assert.ErrorIs(t, err, core.ErrEmptyID)
		err = repos.Audit.AppendEntries(ctx, nil)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestQueryEntries(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	base := core.Now().Add(-10 * time.Hour)

	entries := []*core.AuditEntry{
		auditAt("t1", "alice", core.ActionRead, base),
		auditAt("t1", "bob", core.ActionRead, base.Add(time.Hour)),
		auditAt("t2", "bob", core.ActionWrite, base.Add(2*time.Hour)),
		auditAt("t1", "alice", core.ActionWrite, base.Add(3*time.Hour)),
		auditAt("t10", "alice", core.ActionDelete, base.Add(4*time.Hour)),
	}
	require.NoError(t, repos.Audit.AppendEntries(ctx, entries...))

	times := func(es []*core.AuditEntry) []time.Time {
		out := make([]time.Time, len(es))
		for i, e := range es {
			out[i] = e.Timestamp
		}
		return out
	}

	tests := []struct {
		name  string
		query storage.AuditQuery
		want  []*core.AuditEntry
	}{
		{"all newest first", storage.AuditQuery{}, []*core.AuditEntry{entries[4], entries[3], entries[2], entries[1], entries[0]}},
		{"by tensor", storage.AuditQuery{TensorID: "t1"}, []*core.AuditEntry{entries[3], entries[1], entries[0]}},
		{"by user", storage.AuditQuery{UserID: "bob"}, []*core.AuditEntry{entries[2], entries[1]}},
		{"tensor and user", storage.AuditQuery{TensorID: "t1", UserID: "alice"}, []*core.AuditEntry{entries[3], entries[0]}},
		{"limit", storage.AuditQuery{Limit: 2}, []*core.AuditEntry{entries[4], entries[3]}},
		{"since", storage.AuditQuery{Since: base.Add(150 * time.Minute)}, []*core.AuditEntry{entries[4], entries[3]}},
		{"since is inclusive", storage.AuditQuery{TensorID: "t1", Since: base.Add(time.Hour)}, []*core.AuditEntry{entries[3], entries[1]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repos.Audit.QueryEntries(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, times(tt.want), times(got))
		})
	}
}

func TestCountAndDeleteEntries(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	now := core.Now()

	var entries []*core.AuditEntry
	for i := range 5 {
		entries = append(entries, auditAt("t1", "alice", core.ActionRead, now.Add(-time.Duration(i)*24*time.Hour)))
	}
	entries = append(entries, auditAt("t2", "bob", core.ActionRead, now))
	require.NoError(t, repos.Audit.AppendEntries(ctx, entries...))

	count, err := repos.Audit.CountEntries(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 6, count)
	count, err = repos.Audit.CountEntries(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	deleted, err := repos.Audit.DeleteEntriesBefore(ctx, now.Add(-36*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	remaining, err := repos.Audit.QueryEntries(ctx, storage.AuditQuery{UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	deleted, err = repos.Audit.DeleteTensorEntries(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err = repos.Audit.CountEntries(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	remaining, err = repos.Audit.QueryEntries(ctx, storage.AuditQuery{UserID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestDeleteEntriesBefore_SpansBatches(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	base := core.Now().Add(-time.Hour)

	total := auditDeleteBatch*2 + 7
	entries := make([]*core.AuditEntry, total)
	for i := range entries {
		entries[i] = auditAt(fmt.Sprintf("t%d", i%3), "alice", core.ActionRead, base.Add(time.Duration(i)*time.Microsecond))
	}
	require.NoError(t, repos.Audit.AppendEntries(ctx, entries...))

	deleted, err := repos.Audit.DeleteEntriesBefore(ctx, core.Now())
	require.NoError(t, err)
	assert.Equal(t, total, deleted)

	count, err := repos.Audit.CountEntries(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, count)
}
