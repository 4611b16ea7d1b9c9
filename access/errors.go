package access

import (
	"errors"
	"fmt"

	"github.com/poiesic/tensorvault/core"
)

var (
	// ErrPermissionRepositoryRequired is returned when a permission repository is not provided.
	ErrPermissionRepositoryRequired = errors.New("permission repository required")

	// ErrGroupRepositoryRequired is returned when a group repository is not provided.
	ErrGroupRepositoryRequired = errors.New("group repository required")

	// ErrAuditRepositoryRequired is returned when an audit repository is not provided.
	ErrAuditRepositoryRequired = errors.New("audit repository required")

	// ErrPermissionDenied matches every *PermissionDeniedError.
	ErrPermissionDenied = errors.New("permission denied")
)

// PermissionDeniedError reports a failed Enforce check.
type PermissionDeniedError struct {
	UserID   string
	TensorID string
	Action   core.Action
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("user %q cannot %s tensor %q", e.UserID, e.Action, e.TensorID)
}

// Is lets errors.Is(err, ErrPermissionDenied) match.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}
