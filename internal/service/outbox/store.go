package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/identity-service/internal/domain"
)

// Sentinel errors for the outbox subsystem.
var (
	// ErrNoTransaction is returned by store operations that must run inside
	// an open unit-of-work transaction but were called without one.
	ErrNoTransaction = errors.New("outbox operation requires an open transaction")

	// ErrReconstruction is returned when an envelope's payload cannot be
	// decoded back into handlers. The envelope stays failed and is retried.
	ErrReconstruction = errors.New("envelope reconstruction failed")
)

// Store is the durable queue of outbox envelopes. Implementations must
// resolve the active unit-of-work transaction from the context.
type Store interface {
	// InsertMany persists new envelopes within the caller's transaction.
	// New rows start pending with retry_count 0 and next_attempt_at equal
	// to created_at.
	InsertMany(ctx context.Context, envelopes []domain.Envelope) error

	// LeasePending selects up to limit envelopes that are due for delivery
	// (status pending or failed, next_attempt_at <= now), ordered by
	// next_attempt_at ascending, locking the rows and skipping rows locked
	// by concurrent relays. The lock is held for the duration of the
	// surrounding transaction; calling without one is ErrNoTransaction.
	LeasePending(ctx context.Context, limit int) ([]domain.Envelope, error)

	// SaveAll upserts the mutated state of leased envelopes.
	SaveAll(ctx context.Context, envelopes []domain.Envelope) error

	// WasHandled reports whether the named handler already succeeded for
	// the envelope.
	WasHandled(ctx context.Context, handlerName string, envelopeID uuid.UUID) (bool, error)

	// MarkHandled records a handler success so retries skip it.
	MarkHandled(ctx context.Context, handlerName string, envelopeID uuid.UUID, at time.Time) error
}

// UnitOfWork runs fn inside one database transaction. The relay leases,
// dispatches, and persists each batch under a single transaction so the
// row locks cover the whole attempt.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}
