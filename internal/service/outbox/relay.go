package outbox

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ignite/identity-service/internal/domain"
	"github.com/ignite/identity-service/internal/pkg/clock"
	"github.com/ignite/identity-service/internal/pkg/logger"
)

// Relay leases due envelopes and dispatches each to its handler set,
// reclassifying the outcome and rescheduling failures through the backoff
// calculator. One ProcessBatch call is one database transaction, so the
// skip-locked leases stay held until the outcomes commit.
type Relay struct {
	uow      UnitOfWork
	store    Store
	registry *Registry
	backoff  *Backoff
	clock    clock.Clock
	tracer   trace.Tracer
}

// NewRelay creates the relay service.
func NewRelay(uow UnitOfWork, store Store, registry *Registry, backoff *Backoff, clk clock.Clock) *Relay {
	return &Relay{
		uow:      uow,
		store:    store,
		registry: registry,
		backoff:  backoff,
		clock:    clk,
		tracer:   otel.Tracer("identity-service/outbox"),
	}
}

// ProcessBatch leases up to limit envelopes and dispatches them in
// next_attempt_at order. A handler failure marks its envelope failed and
// moves on; the rest of the batch is still attempted. Returns the number of
// envelopes leased, so the caller can tell a drained queue (count < limit)
// from a likely backlog (count == limit).
func (r *Relay) ProcessBatch(ctx context.Context, limit int) (int, error) {
	var count int
	err := r.uow.Execute(ctx, func(ctx context.Context) error {
		envelopes, err := r.store.LeasePending(ctx, limit)
		if err != nil {
			return fmt.Errorf("lease pending: %w", err)
		}
		count = len(envelopes)
		if count == 0 {
			return nil
		}

		for i := range envelopes {
			r.processEnvelope(ctx, &envelopes[i])
		}

		if err := r.store.SaveAll(ctx, envelopes); err != nil {
			return fmt.Errorf("save envelopes: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// processEnvelope runs the envelope's handlers sequentially, stopping at the
// first failure. The outcome is a single boolean: completed, or failed with
// the next attempt scheduled by the backoff policy.
func (r *Relay) processEnvelope(ctx context.Context, env *domain.Envelope) {
	handlers, err := r.registry.HandlersFor(*env)
	if err == nil {
		for _, h := range handlers {
			if err = r.runHandler(ctx, env, h); err != nil {
				break
			}
		}
	}

	now := r.clock.Now()
	if err == nil {
		env.MarkCompleted(now)
		return
	}

	logger.Error("envelope dispatch failed",
		"envelope_id", env.ID.String(),
		"event_type", env.EventType,
		"trace_id", env.TraceID,
		"retry_count", fmt.Sprintf("%d", env.RetryCount),
		"error", err.Error(),
	)

	if next, ok := r.backoff.Next(env.RetryCount+1, now); ok {
		env.MarkFailed(now, next)
	} else {
		env.MarkPermanentlyFailed(now)
		logger.Warn("envelope permanently failed",
			"envelope_id", env.ID.String(),
			"event_type", env.EventType,
			"trace_id", env.TraceID,
		)
	}
}

// runHandler invokes one handler under a tracing span, skipping handlers
// that already succeeded for this envelope on an earlier attempt. A fresh
// success is recorded in the batch transaction, so the ledger survives even
// when a later handler fails the envelope.
func (r *Relay) runHandler(ctx context.Context, env *domain.Envelope, h Handler) error {
	done, err := r.store.WasHandled(ctx, h.Name(), env.ID)
	if err != nil {
		return fmt.Errorf("idempotency lookup for %s: %w", h.Name(), err)
	}
	if done {
		return nil
	}

	ctx, span := r.startHandlerSpan(ctx, env, h)
	err = h.Handle(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if err != nil {
		return err
	}

	if err := r.store.MarkHandled(ctx, h.Name(), env.ID, r.clock.Now()); err != nil {
		return fmt.Errorf("record handler success for %s: %w", h.Name(), err)
	}
	return nil
}

// startHandlerSpan opens a child span named after the handler. When the
// envelope carries the originating trace id, the span is attached as a
// remote parent so the deferred work shows up under the request's trace.
func (r *Relay) startHandlerSpan(ctx context.Context, env *domain.Envelope, h Handler) (context.Context, trace.Span) {
	if env.TraceID != "" {
		if traceID, err := trace.TraceIDFromHex(env.TraceID); err == nil {
			// The originating span id is not stored; derive a stable one
			// from the envelope id so the link stays valid.
			var spanID trace.SpanID
			copy(spanID[:], env.ID[:8])
			ctx = trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
				TraceID: traceID,
				SpanID:  spanID,
				Remote:  true,
			}))
		}
	}
	return r.tracer.Start(ctx, h.Name())
}
