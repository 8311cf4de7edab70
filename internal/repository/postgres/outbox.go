package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/identity-service/internal/domain"
	"github.com/ignite/identity-service/internal/service/outbox"
)

const envelopeColumns = `id, event_type, payload, status, trace_id, created_at,
	       processed_at, retry_count, next_attempt_at, last_attempted_at`

// OutboxStore implements outbox.Store against PostgreSQL.
type OutboxStore struct{ db *sql.DB }

// NewOutboxStore creates a Postgres-backed outbox store.
func NewOutboxStore(db *sql.DB) *OutboxStore { return &OutboxStore{db: db} }

// InsertMany persists new envelopes in the caller's transaction.
func (s *OutboxStore) InsertMany(ctx context.Context, envelopes []domain.Envelope) error {
	run := runnerFrom(ctx, s.db)
	for _, env := range envelopes {
		_, err := run.ExecContext(ctx, `
			INSERT INTO outbox_envelopes
				(id, event_type, payload, status, trace_id, created_at,
				 processed_at, retry_count, next_attempt_at, last_attempted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, env.ID, env.EventType, []byte(env.Payload), string(env.Status),
			nullString(env.TraceID), env.CreatedAt,
			env.ProcessedAt, env.RetryCount, env.NextAttemptAt, env.LastAttemptedAt)
		if err != nil {
			return fmt.Errorf("insert envelope %s: %w", env.ID, err)
		}
	}
	return nil
}

// LeasePending selects and row-locks up to limit due envelopes, skipping
// rows another relay already holds. Must run inside a unit-of-work
// transaction; the locks live until that transaction ends.
func (s *OutboxStore) LeasePending(ctx context.Context, limit int) ([]domain.Envelope, error) {
	tx, ok := txFrom(ctx)
	if !ok {
		return nil, outbox.ErrNoTransaction
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+envelopeColumns+`
		FROM outbox_envelopes
		WHERE status IN ('pending', 'failed')
		  AND next_attempt_at <= NOW()
		ORDER BY next_attempt_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("lease envelopes: %w", err)
	}
	defer rows.Close()

	var out []domain.Envelope
	for rows.Next() {
		env, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lease envelopes: %w", err)
	}
	return out, nil
}

// SaveAll upserts the mutated state of leased envelopes.
func (s *OutboxStore) SaveAll(ctx context.Context, envelopes []domain.Envelope) error {
	run := runnerFrom(ctx, s.db)
	for _, env := range envelopes {
		_, err := run.ExecContext(ctx, `
			UPDATE outbox_envelopes
			SET status = $2,
			    processed_at = $3,
			    retry_count = $4,
			    next_attempt_at = $5,
			    last_attempted_at = $6
			WHERE id = $1
		`, env.ID, string(env.Status), env.ProcessedAt,
			env.RetryCount, env.NextAttemptAt, env.LastAttemptedAt)
		if err != nil {
			return fmt.Errorf("save envelope %s: %w", env.ID, err)
		}
	}
	return nil
}

// WasHandled consults the per-handler idempotency ledger.
func (s *OutboxStore) WasHandled(ctx context.Context, handlerName string, envelopeID uuid.UUID) (bool, error) {
	var exists bool
	err := runnerFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM processed_handler_executions
			WHERE handler_name = $1 AND envelope_id = $2
		)
	`, handlerName, envelopeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup handler execution: %w", err)
	}
	return exists, nil
}

// MarkHandled records a handler success. Conflicts are ignored; the ledger
// only ever grows towards "handled".
func (s *OutboxStore) MarkHandled(ctx context.Context, handlerName string, envelopeID uuid.UUID, at time.Time) error {
	_, err := runnerFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO processed_handler_executions (handler_name, envelope_id, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (handler_name, envelope_id) DO NOTHING
	`, handlerName, envelopeID, at)
	if err != nil {
		return fmt.Errorf("record handler execution: %w", err)
	}
	return nil
}

// PendingDepth counts envelopes still awaiting delivery. Used by the health
// endpoint to expose relay backlog.
func (s *OutboxStore) PendingDepth(ctx context.Context) (int, error) {
	var n int
	err := runnerFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM outbox_envelopes WHERE status IN ('pending', 'failed')
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("outbox depth: %w", err)
	}
	return n, nil
}

func scanEnvelope(row rowScanner) (domain.Envelope, error) {
	var (
		env       domain.Envelope
		status    string
		traceID   sql.NullString
		payload   []byte
		processed sql.NullTime
		nextAt    sql.NullTime
		lastAt    sql.NullTime
	)
	err := row.Scan(&env.ID, &env.EventType, &payload, &status, &traceID,
		&env.CreatedAt, &processed, &env.RetryCount, &nextAt, &lastAt)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("scan envelope: %w", err)
	}

	env.Payload = payload
	env.Status = domain.EnvelopeStatus(status)
	env.TraceID = traceID.String
	if processed.Valid {
		env.ProcessedAt = &processed.Time
	}
	if nextAt.Valid {
		t := nextAt.Time
		env.NextAttemptAt = &t
	}
	if lastAt.Valid {
		t := lastAt.Time
		env.LastAttemptedAt = &t
	}
	return env, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
