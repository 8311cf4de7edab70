package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestEventRoundTrip serialises every event variant and decodes it back
// through the discriminator, which is exactly what the outbox does between
// save time and dispatch time.
func TestEventRoundTrip(t *testing.T) {
	uid := uuid.MustParse("0190a1b2-c3d4-7000-8000-000000000001")
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	events := []Event{
		UserCreated{UserID: uid, Username: "alice", Email: "a@x.io", RegisteredAt: at},
		UserSuspended{UserID: uid, Username: "alice", Email: "a@x.io", Reason: "Violation", SuspendedAt: at},
		UserUnlocked{UserID: uid, Username: "alice", Email: "a@x.io", UnlockedAt: at},
		UserDeactivated{UserID: uid, Username: "alice", Email: "a@x.io", DeactivatedAt: at},
		UserReactivated{UserID: uid, Username: "alice", Email: "a@x.io", ReactivatedAt: at},
		UserPromotedToAdmin{UserID: uid, PromotedAt: at},
		UsernameChanged{UserID: uid, OldUsername: "alice", NewUsername: "bob", Email: "a@x.io", ChangedAt: at},
		UserEmailChanged{UserID: uid, Username: "alice", NewEmail: "b@x.io", ChangedAt: at},
		UserEmailVerified{UserID: uid, VerifiedAt: at},
	}

	for _, ev := range events {
		t.Run(ev.EventType(), func(t *testing.T) {
			payload, err := json.Marshal(ev)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			decoded, err := DecodeEvent(ev.EventType(), payload)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(decoded, ev) {
				t.Errorf("round trip mismatch:\n got %#v\nwant %#v", decoded, ev)
			}
			if !decoded.OccurredAt().Equal(at) {
				t.Errorf("occurred_at = %s, want %s", decoded.OccurredAt(), at)
			}
		})
	}
}

func TestDecodeEventUnknownType(t *testing.T) {
	_, err := DecodeEvent("UserEvent::Nonsense", []byte(`{}`))
	if !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("expected ErrUnknownEventType, got %v", err)
	}
}

// Payloads must tolerate additive changes: decoding ignores fields this
// version does not know.
func TestDecodeEventIgnoresUnknownFields(t *testing.T) {
	payload := []byte(`{"user_id":"0190a1b2-c3d4-7000-8000-000000000001","username":"alice","email":"a@x.io","registered_at":"2025-06-01T12:00:00Z","added_later":true}`)

	decoded, err := DecodeEvent(EventTypeUserCreated, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	created := decoded.(UserCreated)
	if created.Username != "alice" {
		t.Errorf("username = %q, want alice", created.Username)
	}
}

func TestDecodeEventMalformedPayload(t *testing.T) {
	if _, err := DecodeEvent(EventTypeUserSuspended, []byte(`{not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestSuspendedPayloadFieldNames(t *testing.T) {
	ev := UserSuspended{
		UserID:      uuid.MustParse("0190a1b2-c3d4-7000-8000-000000000001"),
		Username:    "alice",
		Email:       "a@x.io",
		Reason:      "Violation",
		SuspendedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"user_id", "username", "email", "reason", "suspended_at"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("payload missing %q: %s", key, payload)
		}
	}
	if raw["reason"] != "Violation" {
		t.Errorf("reason = %v, want Violation", raw["reason"])
	}
}
