// Package postgres implements the repository ports against PostgreSQL:
// the user aggregate repository, the outbox envelope store, and the unit of
// work that binds them into one transaction.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/ignite/identity-service/internal/domain"
	"github.com/ignite/identity-service/internal/pkg/clock"
	"github.com/ignite/identity-service/internal/pkg/ids"
	"github.com/ignite/identity-service/internal/pkg/logger"
	"github.com/ignite/identity-service/internal/service/outbox"
)

type ctxKey int

const (
	txKey ctxKey = iota
	trackerKey
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// repositories run inside the active transaction when one is open and
// against the pool otherwise.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func runnerFrom(ctx context.Context, db *sql.DB) querier {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return db
}

func txFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

func trackerFrom(ctx context.Context) *EntityTracker {
	t, _ := ctx.Value(trackerKey).(*EntityTracker)
	return t
}

// EventSource is an aggregate that buffers domain events until drained.
type EventSource interface {
	DrainEvents() []domain.Event
}

// EntityTracker collects the envelopes produced by aggregates saved within
// one unit of work. Envelopes are stamped at Track time: fresh UUIDv7,
// the trace id active in the saving context, and the current clock reading.
type EntityTracker struct {
	ids   ids.Generator
	clock clock.Clock

	mu        sync.Mutex
	envelopes []domain.Envelope
}

// NewEntityTracker creates a tracker for a single unit-of-work invocation.
func NewEntityTracker(gen ids.Generator, clk clock.Clock) *EntityTracker {
	return &EntityTracker{ids: gen, clock: clk}
}

// Track drains the aggregate's pending events into envelopes. Called by
// repository save paths after a successful write.
func (t *EntityTracker) Track(ctx context.Context, src EventSource) error {
	traceID := ""
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	for _, ev := range src.DrainEvents() {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", ev.EventType(), err)
		}
		id, err := t.ids.NewID()
		if err != nil {
			return fmt.Errorf("envelope id: %w", err)
		}
		env := domain.NewEnvelope(id, ev.EventType(), payload, traceID, t.clock.Now())

		t.mu.Lock()
		t.envelopes = append(t.envelopes, env)
		t.mu.Unlock()
	}
	return nil
}

// Drain returns the collected envelopes and clears the tracker.
func (t *EntityTracker) Drain() []domain.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	envs := t.envelopes
	t.envelopes = nil
	return envs
}

// UnitOfWork runs a closure inside one database transaction and flushes the
// domain events its aggregate saves recorded into the outbox before commit.
// Aggregate state and envelopes therefore commit atomically or not at all.
type UnitOfWork struct {
	db     *sql.DB
	outbox outbox.Store
	ids    ids.Generator
	clock  clock.Clock
}

// NewUnitOfWork creates the transaction manager.
func NewUnitOfWork(db *sql.DB, store outbox.Store, gen ids.Generator, clk clock.Clock) *UnitOfWork {
	return &UnitOfWork{db: db, outbox: store, ids: gen, clock: clk}
}

// Execute begins a transaction, installs it and a fresh entity tracker in
// the context, and invokes fn. On success the tracked envelopes are
// inserted through the outbox store in the same transaction, then the
// transaction commits. On any error the transaction rolls back and fn's
// original error is preserved; rollback failures are only logged.
func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tracker := NewEntityTracker(u.ids, u.clock)
	txCtx := context.WithValue(ctx, txKey, tx)
	txCtx = context.WithValue(txCtx, trackerKey, tracker)

	if err := fn(txCtx); err != nil {
		u.rollback(tx)
		return err
	}

	if envelopes := tracker.Drain(); len(envelopes) > 0 {
		if err := u.outbox.InsertMany(txCtx, envelopes); err != nil {
			u.rollback(tx)
			return fmt.Errorf("insert outbox envelopes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (u *UnitOfWork) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		logger.Error("transaction rollback failed", "error", err.Error())
	}
}
