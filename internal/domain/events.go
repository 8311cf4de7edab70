package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type discriminators as stored in the outbox event_type column. The
// wire form is the contract between save time and handler dispatch time;
// payloads must stay forward-compatible (unknown fields are ignored).
const (
	EventTypeUserCreated         = "UserEvent::Created"
	EventTypeUserSuspended       = "UserEvent::Suspended"
	EventTypeUserUnlocked        = "UserEvent::Unlocked"
	EventTypeUserDeactivated     = "UserEvent::Deactivated"
	EventTypeUserReactivated     = "UserEvent::Reactivated"
	EventTypeUserPromotedToAdmin = "UserEvent::PromotedToAdmin"
	EventTypeUsernameChanged     = "UserEvent::UsernameChanged"
	EventTypeUserEmailChanged    = "UserEvent::EmailChanged"
	EventTypeUserEmailVerified   = "UserEvent::EmailVerified"
)

// ErrUnknownEventType is returned when decoding a payload whose discriminator
// no event variant claims.
var ErrUnknownEventType = errors.New("unknown event type")

// Event is a fact about a completed state change of the User aggregate.
type Event interface {
	// EventType returns the outbox discriminator for the variant.
	EventType() string
	// OccurredAt returns when the change happened.
	OccurredAt() time.Time
}

// UserCreated records a successful signup.
type UserCreated struct {
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (e UserCreated) EventType() string     { return EventTypeUserCreated }
func (e UserCreated) OccurredAt() time.Time { return e.RegisteredAt }

// UserSuspended records an admin suspension.
type UserSuspended struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Reason      string    `json:"reason"`
	SuspendedAt time.Time `json:"suspended_at"`
}

func (e UserSuspended) EventType() string     { return EventTypeUserSuspended }
func (e UserSuspended) OccurredAt() time.Time { return e.SuspendedAt }

// UserUnlocked records a lifted suspension.
type UserUnlocked struct {
	UserID     uuid.UUID `json:"user_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

func (e UserUnlocked) EventType() string     { return EventTypeUserUnlocked }
func (e UserUnlocked) OccurredAt() time.Time { return e.UnlockedAt }

// UserDeactivated records a self-service account closure.
type UserDeactivated struct {
	UserID        uuid.UUID `json:"user_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}

func (e UserDeactivated) EventType() string     { return EventTypeUserDeactivated }
func (e UserDeactivated) OccurredAt() time.Time { return e.DeactivatedAt }

// UserReactivated records a reopened account.
type UserReactivated struct {
	UserID        uuid.UUID `json:"user_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	ReactivatedAt time.Time `json:"reactivated_at"`
}

func (e UserReactivated) EventType() string     { return EventTypeUserReactivated }
func (e UserReactivated) OccurredAt() time.Time { return e.ReactivatedAt }

// UserPromotedToAdmin records a role promotion.
type UserPromotedToAdmin struct {
	UserID     uuid.UUID `json:"user_id"`
	PromotedAt time.Time `json:"promoted_at"`
}

func (e UserPromotedToAdmin) EventType() string     { return EventTypeUserPromotedToAdmin }
func (e UserPromotedToAdmin) OccurredAt() time.Time { return e.PromotedAt }

// UsernameChanged records a rename.
type UsernameChanged struct {
	UserID      uuid.UUID `json:"user_id"`
	OldUsername string    `json:"old_username"`
	NewUsername string    `json:"new_username"`
	Email       string    `json:"email"`
	ChangedAt   time.Time `json:"changed_at"`
}

func (e UsernameChanged) EventType() string     { return EventTypeUsernameChanged }
func (e UsernameChanged) OccurredAt() time.Time { return e.ChangedAt }

// UserEmailChanged records a new, not yet verified address.
type UserEmailChanged struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	NewEmail  string    `json:"new_email"`
	ChangedAt time.Time `json:"changed_at"`
}

func (e UserEmailChanged) EventType() string     { return EventTypeUserEmailChanged }
func (e UserEmailChanged) OccurredAt() time.Time { return e.ChangedAt }

// UserEmailVerified records a confirmed address.
type UserEmailVerified struct {
	UserID     uuid.UUID `json:"user_id"`
	VerifiedAt time.Time `json:"verified_at"`
}

func (e UserEmailVerified) EventType() string     { return EventTypeUserEmailVerified }
func (e UserEmailVerified) OccurredAt() time.Time { return e.VerifiedAt }

// DecodeEvent rebuilds a concrete event from its discriminator and JSON
// payload.
func DecodeEvent(eventType string, payload []byte) (Event, error) {
	var (
		ev  Event
		err error
	)
	switch eventType {
	case EventTypeUserCreated:
		var e UserCreated
		err = json.Unmarshal(payload, &e)
		ev = e
	case EventTypeUserSuspended:
		var e UserSuspended
		err = json.Unmarshal(payload, &e)
		ev = e
	case EventTypeUserUnlocked:
		var e UserUnlocked
		err = json.Unmarshal(payload, &e)
		ev = e
	case EventTypeUserDeactivated:
		var e UserDeactivated
		err = json.Unmarshal(payload, &e)
		ev = e
	case EventTypeUserReactivated:
		var e UserReactivated
		err = json.Unmarshal(payload, &e)
		ev = e
	case EventTypeUserPromotedToAdmin:
		var e UserPromotedToAdmin
		err = json.Unmarshal(payload, &e)
		ev = e
	case EventTypeUsernameChanged:
		var e UsernameChanged
		err = json.Unmarshal(payload, &e)
		ev = e
	case EventTypeUserEmailChanged:
		var e UserEmailChanged
		err = json.Unmarshal(payload, &e)
		ev = e
	case EventTypeUserEmailVerified:
		var e UserEmailVerified
		err = json.Unmarshal(payload, &e)
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return ev, nil
}
