package access

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"time"

	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
)

// Audit defaults.
const (
	DefaultHistoryLimit  = 100
	DefaultWindowHours   = 24
	DefaultRankingLimit  = 10
	DefaultRetentionDays = 90
)

// AuditLogger records access events and answers questions about them.
type AuditLogger struct {
	repo storage.AuditRepository
}

// NewAuditLogger creates an AuditLogger over repo.
func NewAuditLogger(repo storage.AuditRepository) (*AuditLogger, error) {
	if repo == nil {
		return nil, ErrAuditRepositoryRequired
	}
	return &AuditLogger{repo: repo}, nil
}

// FailedFilter selects failed attempts. Empty IDs match everything; Hours
// <= 0 means DefaultWindowHours.
type FailedFilter struct {
	TensorID string
	UserID   string
	Hours    int
}

// TensorAccessCount is one row of GetMostAccessedTensors.
type TensorAccessCount struct {
	TensorID string
	Count    int
}

// UserActionCount is one row of GetMostActiveUsers.
type UserActionCount struct {
	UserID string
	Count  int
}

// AccessSummary aggregates a tensor's events within a time window.
type AccessSummary struct {
	TensorID    string
	WindowHours int
	Total       int
	Successful  int
	Failed      int
	UniqueUsers int
	Actions     map[core.Action]int
}

// LogAccess appends one event and returns it with ID and timestamp set.
func (a *AuditLogger) LogAccess(ctx context.Context, tensorID, userID string, action core.Action, success bool, metadata map[string]string) (*core.AuditEntry, error) {
	entry := &core.AuditEntry{
		TensorID:  tensorID,
		UserID:    userID,
		Action:    action,
		Success:   success,
		Timestamp: core.Now(),
		Metadata:  maps.Clone(metadata),
	}
	if err := a.repo.AppendEntries(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// LogBatch appends several events in one write.
func (a *AuditLogger) LogBatch(ctx context.Context, entries ...*core.AuditEntry) error {
	return a.repo.AppendEntries(ctx, entries...)
}

// GetTensorHistory returns a tensor's events, newest first.
// A non-positive limit means DefaultHistoryLimit.
func (a *AuditLogger) GetTensorHistory(ctx context.Context, tensorID string, limit int) ([]*core.AuditEntry, error) {
	return a.repo.QueryEntries(ctx, storage.AuditQuery{TensorID: tensorID, Limit: orDefault(limit, DefaultHistoryLimit)})
}

// GetUserActivity returns a user's events, newest first.
// A non-positive limit means DefaultHistoryLimit.
func (a *AuditLogger) GetUserActivity(ctx context.Context, userID string, limit int) ([]*core.AuditEntry, error) {
	return a.repo.QueryEntries(ctx, storage.AuditQuery{UserID: userID, Limit: orDefault(limit, DefaultHistoryLimit)})
}

// GetRecentAccess returns a tensor's events from the last hours.
func (a *AuditLogger) GetRecentAccess(ctx context.Context, tensorID string, hours int) ([]*core.AuditEntry, error) {
	return a.repo.QueryEntries(ctx, storage.AuditQuery{TensorID: tensorID, Since: since(orDefault(hours, DefaultWindowHours))})
}

// GetFailedAttempts returns denied events matching filter, newest first.
func (a *AuditLogger) GetFailedAttempts(ctx context.Context, filter FailedFilter) ([]*core.AuditEntry, error) {
	entries, err := a.repo.QueryEntries(ctx, storage.AuditQuery{
		TensorID: filter.TensorID,
		UserID:   filter.UserID,
		Since:    since(orDefault(filter.Hours, DefaultWindowHours)),
	})
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(entries, func(e *core.AuditEntry) bool { return e.Success }), nil
}

// GetActionCounts counts a tensor's events per action. Hours <= 0 counts
// the whole log.
func (a *AuditLogger) GetActionCounts(ctx context.Context, tensorID string, hours int) (map[core.Action]int, error) {
	entries, err := a.window(ctx, storage.AuditQuery{TensorID: tensorID}, hours)
	if err != nil {
		return nil, err
	}
	counts := make(map[core.Action]int)
	for _, e := range entries {
		counts[e.Action]++
	}
	return counts, nil
}

// GetUserCount counts distinct users who touched a tensor. Hours <= 0
// counts the whole log.
func (a *AuditLogger) GetUserCount(ctx context.Context, tensorID string, hours int) (int, error) {
	entries, err := a.window(ctx, storage.AuditQuery{TensorID: tensorID}, hours)
	if err != nil {
		return 0, err
	}
	return len(distinctUsers(entries)), nil
}

// GetMostAccessedTensors ranks tensors by event count, ties by ID.
// A non-positive limit means DefaultRankingLimit; hours <= 0 ranks the
// whole log.
func (a *AuditLogger) GetMostAccessedTensors(ctx context.Context, limit, hours int) ([]TensorAccessCount, error) {
	entries, err := a.window(ctx, storage.AuditQuery{}, hours)
	if err != nil {
		return nil, err
	}
	ranked := rank(entries, func(e *core.AuditEntry) string { return e.TensorID }, orDefault(limit, DefaultRankingLimit))
	out := make([]TensorAccessCount, len(ranked))
	for i, r := range ranked {
		out[i] = TensorAccessCount{TensorID: r.key, Count: r.count}
	}
	return out, nil
}

// GetMostActiveUsers ranks users by event count, ties by ID.
func (a *AuditLogger) GetMostActiveUsers(ctx context.Context, limit, hours int) ([]UserActionCount, error) {
	entries, err := a.window(ctx, storage.AuditQuery{}, hours)
	if err != nil {
		return nil, err
	}
	ranked := rank(entries, func(e *core.AuditEntry) string { return e.UserID }, orDefault(limit, DefaultRankingLimit))
	out := make([]UserActionCount, len(ranked))
	for i, r := range ranked {
		out[i] = UserActionCount{UserID: r.key, Count: r.count}
	}
	return out, nil
}

// GetAccessSummary aggregates a tensor's events from the last hours.
// Hours <= 0 means DefaultWindowHours.
func (a *AuditLogger) GetAccessSummary(ctx context.Context, tensorID string, hours int) (*AccessSummary, error) {
	hours = orDefault(hours, DefaultWindowHours)
	entries, err := a.window(ctx, storage.AuditQuery{TensorID: tensorID}, hours)
	if err != nil {
		return nil, err
	}

	summary := &AccessSummary{
		TensorID:    tensorID,
		WindowHours: hours,
		Total:       len(entries),
		UniqueUsers: len(distinctUsers(entries)),
		Actions:     make(map[core.Action]int),
	}
	for _, e := range entries {
		if e.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
		summary.Actions[e.Action]++
	}
	return summary, nil
}

// CleanupOldLogs deletes events older than days and returns how many were
// removed. Days <= 0 means DefaultRetentionDays.
func (a *AuditLogger) CleanupOldLogs(ctx context.Context, days int) (int, error) {
	cutoff := core.Now().AddDate(0, 0, -orDefault(days, DefaultRetentionDays))
	return a.repo.DeleteEntriesBefore(ctx, cutoff)
}

// ClearTensorLogs deletes every event for a tensor.
func (a *AuditLogger) ClearTensorLogs(ctx context.Context, tensorID string) (int, error) {
	return a.repo.DeleteTensorEntries(ctx, tensorID)
}

// GetLogCount counts stored events, for one tensor when tensorID is set.
func (a *AuditLogger) GetLogCount(ctx context.Context, tensorID string) (int, error) {
	return a.repo.CountEntries(ctx, tensorID)
}

func (a *AuditLogger) window(ctx context.Context, query storage.AuditQuery, hours int) ([]*core.AuditEntry, error) {
	if hours > 0 {
		query.Since = since(hours)
	}
	return a.repo.QueryEntries(ctx, query)
}

type rankedKey struct {
	key   string
	count int
}

func rank(entries []*core.AuditEntry, key func(*core.AuditEntry) string, limit int) []rankedKey {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[key(e)]++
	}
	ranked := make([]rankedKey, 0, len(counts))
	for k, n := range counts {
		ranked = append(ranked, rankedKey{key: k, count: n})
	}
	slices.SortFunc(ranked, func(a, b rankedKey) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func distinctUsers(entries []*core.AuditEntry) map[string]struct{} {
	users := make(map[string]struct{})
	for _, e := range entries {
		users[e.UserID] = struct{}{}
	}
	return users
}

func since(hours int) time.Time {
	return core.Now().Add(-time.Duration(hours) * time.Hour)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
