package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/identity-service/internal/domain"
)

// HandlerContext identifies the envelope a handler is working for, so its
// side effects and logs can be correlated with the originating request.
type HandlerContext struct {
	EnvelopeID uuid.UUID
	TraceID    string
}

// Handler is a side-effecting consumer of one envelope. Handlers must be
// idempotent: at-least-once delivery means Handle can run more than once for
// the same envelope.
type Handler interface {
	// Name identifies the handler type. Used for span names, logs, and the
	// per-handler idempotency ledger.
	Name() string
	Handle(ctx context.Context) error
}

// Factory builds the handlers for one envelope from its raw payload. Zero
// handlers is legal; the envelope completes immediately. Payloads that
// cannot be decoded wrap ErrReconstruction.
type Factory func(payload json.RawMessage, hctx HandlerContext) ([]Handler, error)

// Registry maps event_type discriminators to handler factories. Immutable
// after construction; safe for concurrent reads.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry over the given factory map.
func NewRegistry(factories map[string]Factory) *Registry {
	return &Registry{factories: factories}
}

// HandlersFor produces the ready-to-invoke handlers for an envelope. An
// event_type no factory claims wraps domain.ErrUnknownEventType; the relay
// leaves such envelopes failed for retry, in case a deploy that knows the
// type is on its way.
func (r *Registry) HandlersFor(env domain.Envelope) ([]Handler, error) {
	factory, ok := r.factories[env.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEventType, env.EventType)
	}
	return factory(env.Payload, HandlerContext{EnvelopeID: env.ID, TraceID: env.TraceID})
}

// decode unmarshals an event payload for a factory, wrapping failures as
// reconstruction errors.
func decode[E any](payload json.RawMessage) (E, error) {
	var e E
	if err := json.Unmarshal(payload, &e); err != nil {
		return e, fmt.Errorf("%w: %v", ErrReconstruction, err)
	}
	return e, nil
}
