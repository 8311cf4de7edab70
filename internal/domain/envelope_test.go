package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewEnvelope(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()

	env := NewEnvelope(id, EventTypeUserCreated, []byte(`{"user_id":"x"}`), "0af7651916cd43dd8448eb211c80319c", now)

	if env.Status != EnvelopePending {
		t.Errorf("status = %s, want pending", env.Status)
	}
	if env.RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0", env.RetryCount)
	}
	if env.NextAttemptAt == nil || env.NextAttemptAt.After(env.CreatedAt) {
		t.Errorf("next_attempt_at must be set and not after created_at, got %v", env.NextAttemptAt)
	}
	if env.ProcessedAt != nil || env.LastAttemptedAt != nil {
		t.Error("fresh envelope must not carry attempt timestamps")
	}
	if env.TraceID != "0af7651916cd43dd8448eb211c80319c" {
		t.Errorf("trace_id = %q", env.TraceID)
	}
}

func TestEnvelopeStatusTerminal(t *testing.T) {
	tests := []struct {
		status   EnvelopeStatus
		terminal bool
	}{
		{EnvelopePending, false},
		{EnvelopeFailed, false},
		{EnvelopeCompleted, true},
		{EnvelopePermanentlyFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestEnvelopeMarkTransitions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := NewEnvelope(uuid.New(), EventTypeUserSuspended, []byte(`{}`), "", now)

	attempt1 := now.Add(time.Second)
	next := attempt1.Add(30 * time.Second)
	env.MarkFailed(attempt1, next)
	if env.Status != EnvelopeFailed {
		t.Errorf("status = %s, want failed", env.Status)
	}
	if env.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", env.RetryCount)
	}
	if env.LastAttemptedAt == nil || !env.LastAttemptedAt.Equal(attempt1) {
		t.Errorf("last_attempted_at = %v, want %s", env.LastAttemptedAt, attempt1)
	}
	if env.NextAttemptAt == nil || !env.NextAttemptAt.Equal(next) {
		t.Errorf("next_attempt_at = %v, want %s", env.NextAttemptAt, next)
	}

	done := next.Add(time.Second)
	env.MarkCompleted(done)
	if env.Status != EnvelopeCompleted {
		t.Errorf("status = %s, want completed", env.Status)
	}
	if env.ProcessedAt == nil || !env.ProcessedAt.Equal(done) {
		t.Errorf("processed_at = %v, want %s", env.ProcessedAt, done)
	}
	if env.NextAttemptAt != nil {
		t.Error("completed envelope must not be scheduled again")
	}
}

func TestEnvelopeMarkPermanentlyFailed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := NewEnvelope(uuid.New(), EventTypeUserSuspended, []byte(`{}`), "", now)
	env.RetryCount = 2

	env.MarkPermanentlyFailed(now.Add(time.Minute))
	if env.Status != EnvelopePermanentlyFailed {
		t.Errorf("status = %s, want permanently_failed", env.Status)
	}
	if env.RetryCount != 3 {
		t.Errorf("retry_count = %d, want 3", env.RetryCount)
	}
	if env.NextAttemptAt != nil {
		t.Error("permanently failed envelope must not be scheduled again")
	}
}
