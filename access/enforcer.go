package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/storage"
)

// Enforcer answers permission checks and applies owner-only permission
// changes.
type Enforcer struct {
	permissions storage.PermissionRepository
	groups      storage.GroupRepository
	membership  *membershipCache
	limiter     *apiLimiter
	audit       *AuditLogger
	logger      *slog.Logger
}

// Option configures an Enforcer.
type Option func(*Enforcer) error

// WithAuditLogger records every Enforce decision.
func WithAuditLogger(audit *AuditLogger) Option {
	return func(e *Enforcer) error {
		e.audit = audit
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enforcer) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEnforcer creates an Enforcer over the given repositories.
func NewEnforcer(permissions storage.PermissionRepository, groups storage.GroupRepository, opts ...Option) (*Enforcer, error) {
	if permissions == nil {
		return nil, ErrPermissionRepositoryRequired
	}
	if groups == nil {
		return nil, ErrGroupRepositoryRequired
	}

	e := &Enforcer{
		permissions: permissions,
		groups:      groups,
		membership:  newMembershipCache(groups),
		limiter:     newAPILimiter(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "access-enforcer")
	return e, nil
}

// CreateDefaultPermission creates or replaces the permission for a tensor
// with ownerID as owner. An empty level means private.
func (e *Enforcer) CreateDefaultPermission(ctx context.Context, tensorID, ownerID string, level core.AccessLevel) (*core.TensorPermission, error) {
	if level == "" {
		level = core.AccessPrivate
	}
	if !level.IsValid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidAccessLevel, level)
	}

	now := core.Now()
	perm := &core.TensorPermission{
		TensorID:    tensorID,
		OwnerID:     ownerID,
		AccessLevel: level,
		RateLimit:   core.DefaultRateLimit,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	normalizeLevel(perm)
	if err := e.permissions.PutPermission(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// GetPermission returns the stored permission.
// Returns storage.ErrNotFound if the tensor has none.
func (e *Enforcer) GetPermission(ctx context.Context, tensorID string) (*core.TensorPermission, error) {
	return e.permissions.GetPermission(ctx, tensorID)
}

// DeletePermission removes the permission when callerID owns it.
func (e *Enforcer) DeletePermission(ctx context.Context, callerID, tensorID string) (bool, error) {
	perm, err := e.lookup(ctx, tensorID)
	if err != nil || perm == nil || perm.OwnerID != callerID {
		return false, err
	}
	deleted, err := e.permissions.DeletePermission(ctx, tensorID)
	if err != nil {
		return false, err
	}
	e.limiter.forget(tensorID)
	return deleted, nil
}

// CanRead reports whether userID may read the tensor.
func (e *Enforcer) CanRead(ctx context.Context, userID, tensorID string) (bool, error) {
	return e.check(ctx, userID, tensorID, core.ActionRead)
}

// CanWrite reports whether userID may modify the tensor. Only the owner may.
func (e *Enforcer) CanWrite(ctx context.Context, userID, tensorID string) (bool, error) {
	return e.check(ctx, userID, tensorID, core.ActionWrite)
}

// CanDelete reports whether userID may delete the tensor. Only the owner may.
func (e *Enforcer) CanDelete(ctx context.Context, userID, tensorID string) (bool, error) {
	return e.check(ctx, userID, tensorID, core.ActionDelete)
}

// CanFork reports whether userID may fork the tensor. Forking needs read
// access only.
func (e *Enforcer) CanFork(ctx context.Context, userID, tensorID string) (bool, error) {
	return e.check(ctx, userID, tensorID, core.ActionFork)
}

// Enforce returns a *PermissionDeniedError when userID may not perform
// action on the tensor. The decision is audited when an AuditLogger is
// attached; a failed audit write is returned in place of the decision.
func (e *Enforcer) Enforce(ctx context.Context, userID, tensorID string, action core.Action) error {
	if !action.IsValid() {
		return fmt.Errorf("%w: %s", core.ErrInvalidAction, action)
	}

	allowed, err := e.check(ctx, userID, tensorID, action)
	if err != nil {
		return err
	}

	outcome := "allow"
	if !allowed {
		outcome = "deny"
	}
	decisions.WithLabelValues(action.String(), outcome).Inc()

	if e.audit != nil {
		if _, err := e.audit.LogAccess(ctx, tensorID, userID, action, allowed, nil); err != nil {
			return fmt.Errorf("audit %s on %s: %w", action, tensorID, err)
		}
	}

	if !allowed {
		e.logger.Debug("access denied", "user", userID, "tensor", tensorID, "action", action.String())
		return &PermissionDeniedError{UserID: userID, TensorID: tensorID, Action: action}
	}
	return nil
}

// GrantAccess shares the tensor with userID. A private tensor becomes
// shared. Returns false when callerID is not the owner.
func (e *Enforcer) GrantAccess(ctx context.Context, callerID, tensorID, userID string) (bool, error) {
	if err := core.ValidateID(userID); err != nil {
		return false, err
	}
	return e.mutateAsOwner(ctx, callerID, tensorID, func(p *core.TensorPermission) bool {
		changed := p.AddUser(userID)
		return upgradeLevel(p) || changed
	})
}

// RevokeAccess removes a user share. Removing the last share makes the
// tensor private again. Returns false when callerID is not the owner.
func (e *Enforcer) RevokeAccess(ctx context.Context, callerID, tensorID, userID string) (bool, error) {
	return e.mutateAsOwner(ctx, callerID, tensorID, func(p *core.TensorPermission) bool {
		changed := p.RemoveUser(userID)
		return normalizeLevel(p) || changed
	})
}

// GrantGroupAccess shares the tensor with every member of groupID.
// Returns false when callerID is not the owner.
func (e *Enforcer) GrantGroupAccess(ctx context.Context, callerID, tensorID, groupID string) (bool, error) {
	if err := core.ValidateID(groupID); err != nil {
		return false, err
	}
	return e.mutateAsOwner(ctx, callerID, tensorID, func(p *core.TensorPermission) bool {
		changed := p.AddGroup(groupID)
		return upgradeLevel(p) || changed
	})
}

// RevokeGroupAccess removes a group share. Returns false when callerID is
// not the owner.
func (e *Enforcer) RevokeGroupAccess(ctx context.Context, callerID, tensorID, groupID string) (bool, error) {
	return e.mutateAsOwner(ctx, callerID, tensorID, func(p *core.TensorPermission) bool {
		changed := p.RemoveGroup(groupID)
		return normalizeLevel(p) || changed
	})
}

// SetAccessLevel changes the tensor's visibility. Shared without any share
// is stored as private. Returns false when callerID is not the owner.
func (e *Enforcer) SetAccessLevel(ctx context.Context, callerID, tensorID string, level core.AccessLevel) (bool, error) {
	if !level.IsValid() {
		return false, fmt.Errorf("%w: %q", core.ErrInvalidAccessLevel, level)
	}
	return e.mutateAsOwner(ctx, callerID, tensorID, func(p *core.TensorPermission) bool {
		previous := p.AccessLevel
		p.AccessLevel = level
		normalizeLevel(p)
		return p.AccessLevel != previous
	})
}

// SetAPIAccess toggles API access and, when rateLimit is positive, sets the
// hourly request limit. Returns false when callerID is not the owner.
func (e *Enforcer) SetAPIAccess(ctx context.Context, callerID, tensorID string, enabled bool, rateLimit int) (bool, error) {
	return e.mutateAsOwner(ctx, callerID, tensorID, func(p *core.TensorPermission) bool {
		changed := p.APIEnabled != enabled
		p.APIEnabled = enabled
		if rateLimit > 0 && rateLimit != p.RateLimit {
			p.RateLimit = rateLimit
			changed = true
		}
		return changed
	})
}

// AllowAPI reports whether an API request by userID may proceed. The
// tensor must be readable by the user and have API access enabled, and
// the request must fit within the tensor's hourly rate limit.
func (e *Enforcer) AllowAPI(ctx context.Context, userID, tensorID string) (bool, error) {
	perm, err := e.lookup(ctx, tensorID)
	if err != nil || perm == nil || !perm.APIEnabled {
		return false, err
	}
	readable, err := e.readable(ctx, perm, userID)
	if err != nil || !readable {
		return false, err
	}

	limit := perm.RateLimit
	if limit <= 0 {
		limit = core.DefaultRateLimit
	}
	if !e.limiter.allow(tensorID, limit) {
		apiThrottled.Inc()
		return false, nil
	}
	return true, nil
}

// RecordAccess increments the tensor's access counter.
// Returns storage.ErrNotFound if the tensor has no permission.
func (e *Enforcer) RecordAccess(ctx context.Context, tensorID string) error {
	_, err := e.permissions.UpdatePermission(ctx, tensorID, func(p *core.TensorPermission) (bool, error) {
		p.AccessCount++
		p.AccessedAt = core.Now()
		return true, nil
	})
	return err
}

// ListAccessible returns the IDs of tensors userID can read, ordered by ID.
// Public tensors owned by others are included only when includePublic is set.
func (e *Enforcer) ListAccessible(ctx context.Context, userID string, includePublic bool) ([]string, error) {
	perms, err := e.permissions.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, p := range perms {
		if p.AccessLevel == core.AccessPublic && p.OwnerID != userID && !includePublic {
			continue
		}
		ok, err := e.readable(ctx, p, userID)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, p.TensorID)
		}
	}
	return ids, nil
}

// ListOwned returns the IDs of tensors owned by userID.
func (e *Enforcer) ListOwned(ctx context.Context, userID string) ([]string, error) {
	perms, err := e.permissions.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(perms))
	for i, p := range perms {
		ids[i] = p.TensorID
	}
	return ids, nil
}

// ListShared returns the IDs of shared tensors userID can read but does
// not own. Public tensors are excluded.
func (e *Enforcer) ListShared(ctx context.Context, userID string) ([]string, error) {
	perms, err := e.permissions.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, p := range perms {
		if p.OwnerID == userID || p.AccessLevel != core.AccessShared {
			continue
		}
		ok, err := e.readable(ctx, p, userID)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, p.TensorID)
		}
	}
	return ids, nil
}

// GetUserGroups returns the groups userID belongs to, sorted.
func (e *Enforcer) GetUserGroups(ctx context.Context, userID string) ([]string, error) {
	groups, err := e.membership.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(groups), nil
}

// GetGroupMembers returns the members of groupID, sorted.
func (e *Enforcer) GetGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	return e.groups.GetGroupMembers(ctx, groupID)
}

// AddUserToGroup adds userID to groupID. The user's cached membership is
// dropped before returning.
func (e *Enforcer) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	defer e.membership.invalidate(userID)
	_, err := e.groups.AddMember(ctx, userID, groupID)
	return err
}

// RemoveUserFromGroup removes userID from groupID. The user's cached
// membership is dropped before returning.
func (e *Enforcer) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	defer e.membership.invalidate(userID)
	_, err := e.groups.RemoveMember(ctx, userID, groupID)
	return err
}

// ClearCache drops every cached group membership.
func (e *Enforcer) ClearCache() {
	e.membership.clear()
}

func (e *Enforcer) check(ctx context.Context, userID, tensorID string, action core.Action) (bool, error) {
	if !action.IsValid() {
		return false, fmt.Errorf("%w: %s", core.ErrInvalidAction, action)
	}
	perm, err := e.lookup(ctx, tensorID)
	if err != nil || perm == nil {
		return false, err
	}

	switch action {
	case core.ActionWrite, core.ActionDelete:
		return perm.OwnerID == userID, nil
	default:
		return e.readable(ctx, perm, userID)
	}
}

// readable resolves read access in order: owner, public, direct share,
// group share.
func (e *Enforcer) readable(ctx context.Context, perm *core.TensorPermission, userID string) (bool, error) {
	if perm.OwnerID == userID || perm.AccessLevel == core.AccessPublic {
		return true, nil
	}
	if perm.AccessLevel != core.AccessShared {
		return false, nil
	}
	if perm.IsSharedWith(userID) {
		return true, nil
	}
	if len(perm.SharedGroups) == 0 {
		return false, nil
	}

	groups, err := e.membership.get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("resolve groups for %s: %w", userID, err)
	}
	for _, g := range groups {
		if perm.HasGroup(g) {
			return true, nil
		}
	}
	return false, nil
}

// lookup returns nil without error when the tensor has no permission.
func (e *Enforcer) lookup(ctx context.Context, tensorID string) (*core.TensorPermission, error) {
	perm, err := e.permissions.GetPermission(ctx, tensorID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return perm, err
}

// mutateAsOwner applies fn inside one read-modify-write transaction when
// callerID owns the tensor. It reports whether the caller was the owner,
// whether or not fn changed anything.
func (e *Enforcer) mutateAsOwner(ctx context.Context, callerID, tensorID string, fn func(*core.TensorPermission) bool) (bool, error) {
	var owner bool
	_, err := e.permissions.UpdatePermission(ctx, tensorID, func(p *core.TensorPermission) (bool, error) {
		owner = p.OwnerID == callerID
		if !owner || !fn(p) {
			return false, nil
		}
		p.ModifiedAt = core.Now()
		return true, nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner, nil
}

// upgradeLevel makes a private tensor shared once it has a share.
func upgradeLevel(p *core.TensorPermission) bool {
	if p.AccessLevel == core.AccessPrivate && p.HasShares() {
		p.AccessLevel = core.AccessShared
		return true
	}
	return false
}

// normalizeLevel downgrades shared to private when no share is left.
func normalizeLevel(p *core.TensorPermission) bool {
	if p.AccessLevel == core.AccessShared && !p.HasShares() {
		p.AccessLevel = core.AccessPrivate
		return true
	}
	return false
}
