package domain

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role enumerates the authorization roles a user can hold. Transitions only
// ever raise a role; there is no demotion path.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole maps a stored role string back to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Email is an address that is either verified or unverified. Only the Active
// state carries a verified email.
type Email struct {
	address  string
	verified bool
}

// NewUnverifiedEmail wraps an address that has not been confirmed.
func NewUnverifiedEmail(address string) Email {
	return Email{address: address}
}

// NewVerifiedEmail wraps an address that has been confirmed.
func NewVerifiedEmail(address string) Email {
	return Email{address: address, verified: true}
}

// Address returns the raw address.
func (e Email) Address() string { return e.address }

// IsVerified reports whether the address has been confirmed.
func (e Email) IsVerified() bool { return e.verified }

// AsUnverified returns the same address demoted to unverified.
func (e Email) AsUnverified() Email { return Email{address: e.address} }

// AsVerified returns the same address promoted to verified.
func (e Email) AsVerified() Email { return Email{address: e.address, verified: true} }

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateEmailFormat rejects addresses that cannot be a deliverable email.
func ValidateEmailFormat(address string) error {
	if strings.TrimSpace(address) == "" {
		return &ValidationError{Field: "email", Reason: "must not be empty"}
	}
	if len(address) > 254 || !emailPattern.MatchString(address) {
		return &ValidationError{Field: "email", Reason: "invalid email format"}
	}
	return nil
}

// ValidateUsername rejects empty or oversized usernames.
func ValidateUsername(username string) error {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if len(trimmed) > 64 {
		return &ValidationError{Field: "username", Reason: "must be at most 64 characters"}
	}
	return nil
}

// EmailVerifier checks an address before it may be marked verified.
type EmailVerifier interface {
	Verify(address string) error
}

// FormatEmailVerifier verifies addresses by format alone.
type FormatEmailVerifier struct{}

// Verify implements EmailVerifier.
func (FormatEmailVerifier) Verify(address string) error {
	return ValidateEmailFormat(address)
}

// StateTag is the persisted discriminator of a user lifecycle state.
type StateTag string

const (
	StatePendingVerification       StateTag = "pending_verification"
	StateActive                    StateTag = "active"
	StateActiveWithUnverifiedEmail StateTag = "active_with_unverified_email"
	StateSuspendedByAdmin          StateTag = "suspended_by_admin"
	StateDeactivatedByUser         StateTag = "deactivated_by_user"
)

// State is the lifecycle variant of a user. Exactly one variant holds at any
// time; transitions happen only through User methods.
type State interface {
	// Tag returns the persisted discriminator for the variant.
	Tag() StateTag
	// Email returns the address the variant carries.
	Email() Email
	isState()
}

type pendingVerification struct{ email Email }

func (s pendingVerification) Tag() StateTag { return StatePendingVerification }
func (s pendingVerification) Email() Email  { return s.email }
func (pendingVerification) isState()        {}

type active struct{ email Email }

func (s active) Tag() StateTag { return StateActive }
func (s active) Email() Email  { return s.email }
func (active) isState()        {}

type activeWithUnverifiedEmail struct{ email Email }

func (s activeWithUnverifiedEmail) Tag() StateTag { return StateActiveWithUnverifiedEmail }
func (s activeWithUnverifiedEmail) Email() Email  { return s.email }
func (activeWithUnverifiedEmail) isState()        {}

type suspendedByAdmin struct{ email Email }

func (s suspendedByAdmin) Tag() StateTag { return StateSuspendedByAdmin }
func (s suspendedByAdmin) Email() Email  { return s.email }
func (suspendedByAdmin) isState()        {}

type deactivatedByUser struct{ email Email }

func (s deactivatedByUser) Tag() StateTag { return StateDeactivatedByUser }
func (s deactivatedByUser) Email() Email  { return s.email }
func (deactivatedByUser) isState()        {}

// StateFromTag rebuilds a state variant from its stored tag and email column.
// The email's verified flag is implied by the variant: only Active carries a
// verified address.
func StateFromTag(tag StateTag, address string) (State, error) {
	switch tag {
	case StatePendingVerification:
		return pendingVerification{email: NewUnverifiedEmail(address)}, nil
	case StateActive:
		return active{email: NewVerifiedEmail(address)}, nil
	case StateActiveWithUnverifiedEmail:
		return activeWithUnverifiedEmail{email: NewUnverifiedEmail(address)}, nil
	case StateSuspendedByAdmin:
		return suspendedByAdmin{email: NewUnverifiedEmail(address)}, nil
	case StateDeactivatedByUser:
		return deactivatedByUser{email: NewUnverifiedEmail(address)}, nil
	default:
		return nil, fmt.Errorf("unknown user state %q", tag)
	}
}

// User is the identity aggregate. It owns its lifecycle state machine and
// buffers one domain event per completed transition until a unit of work
// drains them.
type User struct {
	id           uuid.UUID
	username     string
	passwordHash string
	role         Role
	createdAt    time.Time
	updatedAt    time.Time
	state        State

	mu     sync.Mutex
	events []Event
}

// NewUser creates a user in PendingVerification and records UserCreated.
func NewUser(id uuid.UUID, username string, email Email, passwordHash string, now time.Time) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmailFormat(email.Address()); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, &ValidationError{Field: "password_hash", Reason: "must not be empty"}
	}

	u := &User{
		id:           id,
		username:     strings.TrimSpace(username),
		passwordHash: passwordHash,
		role:         RoleUser,
		createdAt:    now,
		updatedAt:    now,
		state:        pendingVerification{email: email.AsUnverified()},
	}
	u.recordEvent(UserCreated{
		UserID:       u.id,
		Username:     u.username,
		Email:        u.state.Email().Address(),
		RegisteredAt: now,
	})
	return u, nil
}

// ReconstructUser rehydrates a persisted user. No events are recorded.
func ReconstructUser(id uuid.UUID, username, passwordHash string, role Role, state State, createdAt, updatedAt time.Time) *User {
	return &User{
		id:           id,
		username:     username,
		passwordHash: passwordHash,
		role:         role,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
		state:        state,
	}
}

// ID returns the immutable user id.
func (u *User) ID() uuid.UUID { return u.id }

// Username returns the current username.
func (u *User) Username() string { return u.username }

// PasswordHash returns the stored password hash.
func (u *User) PasswordHash() string { return u.passwordHash }

// Role returns the authorization role.
func (u *User) Role() Role { return u.role }

// CreatedAt returns the creation time.
func (u *User) CreatedAt() time.Time { return u.createdAt }

// UpdatedAt returns the last mutation time.
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// State returns the current lifecycle variant.
func (u *User) State() State { return u.state }

// Email returns the address carried by the current state.
func (u *User) Email() Email { return u.state.Email() }

// ChangeUsername renames the user. Legal in every state; records exactly one
// UsernameChanged event.
func (u *User) ChangeUsername(newUsername string, now time.Time) error {
	if err := ValidateUsername(newUsername); err != nil {
		return err
	}
	old := u.username
	u.username = strings.TrimSpace(newUsername)
	u.touch(now)
	u.recordEvent(UsernameChanged{
		UserID:      u.id,
		OldUsername: old,
		NewUsername: u.username,
		Email:       u.state.Email().Address(),
		ChangedAt:   u.updatedAt,
	})
	return nil
}

// ChangeEmail replaces the address with a new unverified one. Rejected while
// suspended or deactivated; from Active the state drops to
// ActiveWithUnverifiedEmail until the new address is verified.
func (u *User) ChangeEmail(newAddress string, now time.Time) error {
	if err := ValidateEmailFormat(newAddress); err != nil {
		return err
	}

	next := NewUnverifiedEmail(newAddress)
	switch u.state.(type) {
	case pendingVerification:
		u.state = pendingVerification{email: next}
	case active, activeWithUnverifiedEmail:
		u.state = activeWithUnverifiedEmail{email: next}
	case suspendedByAdmin:
		return transitionErr("change_email", u.state.Tag(), TransitionAlreadySuspended)
	case deactivatedByUser:
		return transitionErr("change_email", u.state.Tag(), TransitionAlreadyDeactivated)
	default:
		return transitionErr("change_email", u.state.Tag(), TransitionIllegal)
	}

	u.touch(now)
	u.recordEvent(UserEmailChanged{
		UserID:    u.id,
		Username:  u.username,
		NewEmail:  newAddress,
		ChangedAt: u.updatedAt,
	})
	return nil
}

// VerifyEmail confirms the current address and moves the user to Active.
// Idempotent on Active; rejected while suspended or deactivated.
func (u *User) VerifyEmail(verifier EmailVerifier, now time.Time) error {
	switch u.state.(type) {
	case active:
		return nil
	case pendingVerification, activeWithUnverifiedEmail:
		if err := verifier.Verify(u.state.Email().Address()); err != nil {
			return err
		}
		u.state = active{email: u.state.Email().AsVerified()}
	case suspendedByAdmin:
		return transitionErr("verify_email", u.state.Tag(), TransitionAlreadySuspended)
	case deactivatedByUser:
		return transitionErr("verify_email", u.state.Tag(), TransitionAlreadyDeactivated)
	default:
		return transitionErr("verify_email", u.state.Tag(), TransitionIllegal)
	}

	u.touch(now)
	u.recordEvent(UserEmailVerified{
		UserID:     u.id,
		VerifiedAt: u.updatedAt,
	})
	return nil
}

// Suspend locks the account by admin decision. Any verified email is demoted
// to unverified. Idempotent when already suspended.
func (u *User) Suspend(reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Field: "reason", Reason: "must not be empty"}
	}
	if _, ok := u.state.(suspendedByAdmin); ok {
		return nil
	}

	u.state = suspendedByAdmin{email: u.state.Email().AsUnverified()}
	u.touch(now)
	u.recordEvent(UserSuspended{
		UserID:      u.id,
		Username:    u.username,
		Email:       u.state.Email().Address(),
		Reason:      reason,
		SuspendedAt: u.updatedAt,
	})
	return nil
}

// UnlockSuspension lifts an admin suspension. The email stays unverified, so
// the user lands in ActiveWithUnverifiedEmail.
func (u *User) UnlockSuspension(now time.Time) error {
	if _, ok := u.state.(suspendedByAdmin); !ok {
		return transitionErr("unlock_suspension", u.state.Tag(), TransitionNotSuspended)
	}

	u.state = activeWithUnverifiedEmail{email: u.state.Email().AsUnverified()}
	u.touch(now)
	u.recordEvent(UserUnlocked{
		UserID:     u.id,
		Username:   u.username,
		Email:      u.state.Email().Address(),
		UnlockedAt: u.updatedAt,
	})
	return nil
}

// Deactivate closes the account at the user's request. Only legal from
// Active; idempotent when already deactivated.
func (u *User) Deactivate(now time.Time) error {
	switch u.state.(type) {
	case deactivatedByUser:
		return nil
	case active:
		u.state = deactivatedByUser{email: u.state.Email().AsUnverified()}
	case pendingVerification, activeWithUnverifiedEmail:
		return transitionErr("deactivate", u.state.Tag(), TransitionNotVerified)
	case suspendedByAdmin:
		return transitionErr("deactivate", u.state.Tag(), TransitionAlreadySuspended)
	default:
		return transitionErr("deactivate", u.state.Tag(), TransitionIllegal)
	}

	u.touch(now)
	u.recordEvent(UserDeactivated{
		UserID:        u.id,
		Username:      u.username,
		Email:         u.state.Email().Address(),
		DeactivatedAt: u.updatedAt,
	})
	return nil
}

// Activate reopens a deactivated account. The email must be re-verified, so
// the user lands in ActiveWithUnverifiedEmail. Idempotent on Active.
func (u *User) Activate(now time.Time) error {
	switch u.state.(type) {
	case active:
		return nil
	case deactivatedByUser:
		u.state = activeWithUnverifiedEmail{email: u.state.Email().AsUnverified()}
	case suspendedByAdmin:
		return transitionErr("activate", u.state.Tag(), TransitionAlreadySuspended)
	case pendingVerification, activeWithUnverifiedEmail:
		return transitionErr("activate", u.state.Tag(), TransitionNotDeactivated)
	default:
		return transitionErr("activate", u.state.Tag(), TransitionIllegal)
	}

	u.touch(now)
	u.recordEvent(UserReactivated{
		UserID:        u.id,
		Username:      u.username,
		Email:         u.state.Email().Address(),
		ReactivatedAt: u.updatedAt,
	})
	return nil
}

// PromoteToAdmin raises the role to admin. Roles are never lowered again.
// Idempotent when already admin.
func (u *User) PromoteToAdmin(now time.Time) error {
	if u.role == RoleAdmin {
		return nil
	}

	u.role = RoleAdmin
	u.touch(now)
	u.recordEvent(UserPromotedToAdmin{
		UserID:     u.id,
		PromotedAt: u.updatedAt,
	})
	return nil
}

// DrainEvents returns the buffered events and clears the buffer. The caller
// takes ownership; the aggregate is single-writer by contract.
func (u *User) DrainEvents() []Event {
	u.mu.Lock()
	defer u.mu.Unlock()
	evs := u.events
	u.events = nil
	return evs
}

// PendingEventCount reports the number of undrained events.
func (u *User) PendingEventCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.events)
}

func (u *User) recordEvent(ev Event) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.events = append(u.events, ev)
}

// touch advances updated_at, keeping it strictly increasing even when the
// clock reports the same instant twice.
func (u *User) touch(now time.Time) {
	if !now.After(u.updatedAt) {
		now = u.updatedAt.Add(time.Microsecond)
	}
	u.updatedAt = now
}
