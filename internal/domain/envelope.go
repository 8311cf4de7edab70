package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EnvelopeStatus enumerates the relay lifecycle of an outbox row.
type EnvelopeStatus string

const (
	EnvelopePending           EnvelopeStatus = "pending"
	EnvelopeCompleted         EnvelopeStatus = "completed"
	EnvelopeFailed            EnvelopeStatus = "failed"
	EnvelopePermanentlyFailed EnvelopeStatus = "permanently_failed"
)

// IsTerminal returns true if no further transitions are allowed.
func (s EnvelopeStatus) IsTerminal() bool {
	return s == EnvelopeCompleted || s == EnvelopePermanentlyFailed
}

// Envelope wraps one domain event with relay metadata. Envelopes are created
// inside the transaction that persisted the causing mutation and are mutated
// only by the relay worker afterwards.
type Envelope struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	EventType       string          `json:"event_type" db:"event_type"`
	Payload         json.RawMessage `json:"payload" db:"payload"`
	Status          EnvelopeStatus  `json:"status" db:"status"`
	TraceID         string          `json:"trace_id,omitempty" db:"trace_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	RetryCount      int             `json:"retry_count" db:"retry_count"`
	NextAttemptAt   *time.Time      `json:"next_attempt_at,omitempty" db:"next_attempt_at"`
	LastAttemptedAt *time.Time      `json:"last_attempted_at,omitempty" db:"last_attempted_at"`
}

// NewEnvelope wraps an already serialised event. New envelopes start pending
// with next_attempt_at equal to created_at, so the relay picks them up on its
// next poll.
func NewEnvelope(id uuid.UUID, eventType string, payload []byte, traceID string, now time.Time) Envelope {
	createdAt := now
	nextAttempt := createdAt
	return Envelope{
		ID:            id,
		EventType:     eventType,
		Payload:       payload,
		Status:        EnvelopePending,
		TraceID:       traceID,
		CreatedAt:     createdAt,
		RetryCount:    0,
		NextAttemptAt: &nextAttempt,
	}
}

// MarkCompleted finalises a successfully handled envelope.
func (e *Envelope) MarkCompleted(now time.Time) {
	e.Status = EnvelopeCompleted
	e.ProcessedAt = &now
	e.NextAttemptAt = nil
}

// MarkFailed schedules the next delivery attempt.
func (e *Envelope) MarkFailed(attemptedAt, nextAttemptAt time.Time) {
	e.Status = EnvelopeFailed
	e.RetryCount++
	e.LastAttemptedAt = &attemptedAt
	e.NextAttemptAt = &nextAttemptAt
}

// MarkPermanentlyFailed retires the envelope after the retry budget ran out.
func (e *Envelope) MarkPermanentlyFailed(attemptedAt time.Time) {
	e.Status = EnvelopePermanentlyFailed
	e.RetryCount++
	e.LastAttemptedAt = &attemptedAt
	e.NextAttemptAt = nil
}
