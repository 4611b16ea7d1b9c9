package access

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/tensorvault/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuditLogger(t *testing.T) *AuditLogger {
	t.Helper()
	audit, err := NewAuditLogger(newTestRepos(t).Audit)
	require.NoError(t, err)
	return audit
}

func entryAt(tensorID, userID string, action core.Action, success bool, ts time.Time) *core.AuditEntry {
	return &core.AuditEntry{TensorID: tensorID, UserID: userID, Action: action, Success: success, Timestamp: ts}
}

func TestLogAccess(t *testing.T) {
	audit := newTestAuditLogger(t)
	ctx := context.Background()

	meta := map[string]string{"client": "cli"}
	entry, err := audit.LogAccess(ctx, "t1", "alice", core.ActionRead, true, meta)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, meta, entry.Metadata)

	meta["client"] = "changed"
	history, err := audit.GetTensorHistory(ctx, "t1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "cli", history[0].Metadata["client"])

	_, err = audit.LogAccess(ctx, "t1", "alice", core.Action(0), true, nil)
	assert.ErrorIs(t, err, core.ErrInvalidAction)
}

func TestAuditQueries(t *testing.T) {
	audit := newTestAuditLogger(t)
	ctx := context.Background()
	now := core.Now()

	require.NoError(t, audit.LogBatch(ctx,
		entryAt("t1", "alice", core.ActionRead, true, now.Add(-48*time.Hour)),
		entryAt("t1", "bob", core.ActionRead, false, now.Add(-3*time.Hour)),
		entryAt("t1", "bob", core.ActionWrite, false, now.Add(-2*time.Hour)),
		entryAt("t1", "carol", core.ActionRead, true, now.Add(-time.Hour)),
		entryAt("t2", "bob", core.ActionFork, true, now.Add(-30*time.Minute)),
		entryAt("t2", "alice", core.ActionRead, false, now.Add(-10*time.Minute)),
	))

	t.Run("tensor history", func(t *testing.T) {
		history, err := audit.GetTensorHistory(ctx, "t1", 2)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "carol", history[0].UserID)
		assert.Equal(t, "bob", history[1].UserID)
	})

	t.Run("user activity", func(t *testing.T) {
		activity, err := audit.GetUserActivity(ctx, "bob", 0)
		require.NoError(t, err)
		require.Len(t, activity, 3)
		assert.Equal(t, core.ActionFork, activity[0].Action)
	})

	t.Run("recent access", func(t *testing.T) {
		recent, err := audit.GetRecentAccess(ctx, "t1", 0)
		require.NoError(t, err)
		assert.Len(t, recent, 3)
	})

	t.Run("failed attempts", func(t *testing.T) {
		failed, err := audit.GetFailedAttempts(ctx, FailedFilter{})
		require.NoError(t, err)
		assert.Len(t, failed, 3)

		failed, err = audit.GetFailedAttempts(ctx, FailedFilter{TensorID: "t1", UserID: "bob"})
		require.NoError(t, err)
		assert.Len(t, failed, 2)

		failed, err = audit.GetFailedAttempts(ctx, FailedFilter{UserID: "bob", Hours: 1})
		require.NoError(t, err)
		assert.Empty(t, failed)
	})

	t.Run("action counts", func(t *testing.T) {
		counts, err := audit.GetActionCounts(ctx, "t1", 0)
		require.NoError(t, err)
		assert.Equal(t, map[core.Action]int{core.ActionRead: 3, core.ActionWrite: 1}, counts)

		counts, err = audit.GetActionCounts(ctx, "t1", 24)
		require.NoError(t, err)
		assert.Equal(t, map[core.Action]int{core.ActionRead: 2, core.ActionWrite: 1}, counts)
	})

	t.Run("user count", func(t *testing.T) {
		n, err := audit.GetUserCount(ctx, "t1", 0)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		n, err = audit.GetUserCount(ctx, "t1", 24)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("rankings", func(t *testing.T) {
		tensors, err := audit.GetMostAccessedTensors(ctx, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []TensorAccessCount{{"t1", 4}, {"t2", 2}}, tensors)

		users, err := audit.GetMostActiveUsers(ctx, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, []UserActionCount{{"bob", 3}, {"alice", 2}}, users)

		users, err = audit.GetMostActiveUsers(ctx, 0, 24)
		require.NoError(t, err)
		assert.Equal(t, []UserActionCount{{"bob", 3}, {"alice", 1}, {"carol", 1}}, users)
	})

	t.Run("summary", func(t *testing.T) {
		summary, err := audit.GetAccessSummary(ctx, "t1", 0)
		require.NoError(t, err)
		assert.Equal(t, &AccessSummary{
			TensorID:    "t1",
			WindowHours: DefaultWindowHours,
			Total:       3,
			Successful:  1,
			Failed:      2,
			UniqueUsers: 2,
			Actions:     map[core.Action]int{core.ActionRead: 2, core.ActionWrite: 1},
		}, summary)
	})
}

func TestAuditRetention(t *testing.T) {
	audit := newTestAuditLogger(t)
	ctx := context.Background()
	now := core.Now()

	require.NoError(t, audit.LogBatch(ctx,
		entryAt("t1", "alice", core.ActionRead, true, now.AddDate(0, 0, -120)),
		entryAt("t1", "alice", core.ActionRead, true, now.AddDate(0, 0, -30)),
		entryAt("t1", "alice", core.ActionRead, true, now),
		entryAt("t2", "bob", core.ActionRead, true, now),
	))

	deleted, err := audit.CleanupOldLogs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	deleted, err = audit.CleanupOldLogs(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	count, err := audit.GetLogCount(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	deleted, err = audit.ClearTensorLogs(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	count, err = audit.GetLogCount(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
