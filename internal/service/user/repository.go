package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignite/identity-service/internal/domain"
)

// Repository defines the data access contract for the User aggregate.
// Implementations must be safe for concurrent use and must resolve the
// active unit-of-work transaction from the context when one is open.
type Repository interface {
	// FindByID returns a single user. Returns ErrNotFound if it doesn't exist.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// FindByUsername returns the user owning the username, or ErrNotFound.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// FindByEmail returns the user owning the address, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindAll returns all users ordered by created_at.
	FindAll(ctx context.Context) ([]*domain.User, error)

	// Save upserts the aggregate keyed by id. Unique-constraint violations
	// map to ErrUsernameTaken or ErrEmailTaken. Inside a unit of work a
	// successful save hands the aggregate to the entity tracker so its
	// pending events are flushed at commit time.
	Save(ctx context.Context, u *domain.User) error
}

// UnitOfWork runs fn inside one database transaction. Aggregate mutations
// saved within fn and the domain events they emitted commit atomically, or
// not at all. The original error from fn is preserved across rollback.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// PasswordHasher hashes and verifies raw passwords. Verify must run in
// constant time.
type PasswordHasher interface {
	Hash(raw string) (string, error)
	Verify(raw, hashed string) bool
}

// TokenService issues signed session tokens.
type TokenService interface {
	Issue(userID uuid.UUID, role domain.Role) (string, error)
}

// LoginThrottle rate-limits login attempts per key. A nil throttle disables
// limiting.
type LoginThrottle interface {
	Allow(ctx context.Context, key string) (bool, error)
}
