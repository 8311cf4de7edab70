package user

import (
	"github.com/google/uuid"

	"github.com/ignite/identity-service/internal/domain"
)

// Actor identifies the caller of an operation, taken from verified token
// claims.
type Actor struct {
	ID   uuid.UUID
	Role domain.Role
}

// canManageUsers gates listing and reading arbitrary accounts.
func canManageUsers(a Actor) bool {
	return a.Role == domain.RoleAdmin
}

// canSuspend additionally forbids self-suspension.
func canSuspend(a Actor, targetID uuid.UUID) bool {
	return canManageUsers(a) && a.ID != targetID
}
