package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/identity-service/internal/domain"
	"github.com/ignite/identity-service/internal/pkg/clock"
	"github.com/ignite/identity-service/internal/pkg/ids"
)

// MinPasswordLength is the smallest accepted raw password.
const MinPasswordLength = 8

// Deps wires the collaborators of the identity service.
type Deps struct {
	UoW      UnitOfWork
	Repo     Repository
	Hasher   PasswordHasher
	Tokens   TokenService
	IDs      ids.Generator
	Clock    clock.Clock
	Verifier domain.EmailVerifier // defaults to domain.FormatEmailVerifier
	Throttle LoginThrottle        // nil disables login throttling
}

// Service implements the identity use-cases. All public methods are safe for
// concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	uow      UnitOfWork
	repo     Repository
	hasher   PasswordHasher
	tokens   TokenService
	ids      ids.Generator
	clock    clock.Clock
	verifier domain.EmailVerifier
	throttle LoginThrottle
}

// NewService creates the identity service.
func NewService(d Deps) *Service {
	verifier := d.Verifier
	if verifier == nil {
		verifier = domain.FormatEmailVerifier{}
	}
	return &Service{
		uow:      d.UoW,
		repo:     d.Repo,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		ids:      d.IDs,
		clock:    d.Clock,
		verifier: verifier,
		throttle: d.Throttle,
	}
}

// SignupInput holds the fields for registering a new account.
type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers a new user in pending_verification and records the
// UserCreated event in the same transaction.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	if err := domain.ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := domain.ValidateEmailFormat(in.Email); err != nil {
		return nil, err
	}
	if len(in.Password) < MinPasswordLength {
		return nil, &domain.ValidationError{
			Field:  "password",
			Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLength),
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}

	var created *domain.User
	err = s.uow.Execute(ctx, func(ctx context.Context) error {
		u, err := domain.NewUser(id, in.Username, domain.NewUnverifiedEmail(in.Email), hash, s.clock.Now())
		if err != nil {
			return err
		}
		if err := s.repo.Save(ctx, u); err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// LoginInput holds the credential fields for login.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token  string      `json:"token"`
	UserID uuid.UUID   `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Login verifies credentials and issues a session token. Suspended accounts
// cannot log in; deactivated accounts can, so their owner may reactivate.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, strings.ToLower(username))
		if err != nil {
			return LoginResult{}, fmt.Errorf("login throttle: %w", err)
		}
		if !allowed {
			return LoginResult{}, ErrThrottled
		}
	}

	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !s.hasher.Verify(in.Password, u.PasswordHash()) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if u.State().Tag() == domain.StateSuspendedByAdmin {
		return LoginResult{}, ErrSuspended
	}

	token, err := s.tokens.Issue(u.ID(), u.Role())
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: token, UserID: u.ID(), Role: u.Role()}, nil
}

// GetProfile returns the caller's own account.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.repo.FindByID(ctx, userID)
}

// ChangeUsername renames the caller's account.
func (s *Service) ChangeUsername(ctx context.Context, userID uuid.UUID, newUsername string) (*domain.User, error) {
	return s.mutate(ctx, userID, func(u *domain.User) error {
		return u.ChangeUsername(newUsername, s.clock.Now())
	})
}

// ChangeEmail replaces the caller's address with a new unverified one.
func (s *Service) ChangeEmail(ctx context.Context, userID uuid.UUID, newEmail string) (*domain.User, error) {
	return s.mutate(ctx, userID, func(u *domain.User) error {
		return u.ChangeEmail(newEmail, s.clock.Now())
	})
}

// VerifyEmail confirms the caller's current address.
func (s *Service) VerifyEmail(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.mutate(ctx, userID, func(u *domain.User) error {
		return u.VerifyEmail(s.verifier, s.clock.Now())
	})
}

// Deactivate closes the caller's account.
func (s *Service) Deactivate(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.mutate(ctx, userID, func(u *domain.User) error {
		return u.Deactivate(s.clock.Now())
	})
}

// Activate reopens the caller's deactivated account.
func (s *Service) Activate(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.mutate(ctx, userID, func(u *domain.User) error {
		return u.Activate(s.clock.Now())
	})
}

// Suspend locks the target account by admin decision. Self-suspension is
// forbidden.
func (s *Service) Suspend(ctx context.Context, actor Actor, targetID uuid.UUID, reason string) (*domain.User, error) {
	if !canSuspend(actor, targetID) {
		return nil, ErrForbidden
	}
	return s.mutate(ctx, targetID, func(u *domain.User) error {
		return u.Suspend(reason, s.clock.Now())
	})
}

// Unlock lifts an admin suspension.
func (s *Service) Unlock(ctx context.Context, actor Actor, targetID uuid.UUID) (*domain.User, error) {
	if !canManageUsers(actor) {
		return nil, ErrForbidden
	}
	return s.mutate(ctx, targetID, func(u *domain.User) error {
		return u.UnlockSuspension(s.clock.Now())
	})
}

// Promote raises the target's role to admin.
func (s *Service) Promote(ctx context.Context, actor Actor, targetID uuid.UUID) (*domain.User, error) {
	if !canManageUsers(actor) {
		return nil, ErrForbidden
	}
	return s.mutate(ctx, targetID, func(u *domain.User) error {
		return u.PromoteToAdmin(s.clock.Now())
	})
}

// ListUsers returns all accounts. Admin only.
func (s *Service) ListUsers(ctx context.Context, actor Actor) ([]*domain.User, error) {
	if !canManageUsers(actor) {
		return nil, ErrForbidden
	}
	return s.repo.FindAll(ctx)
}

// GetUser returns an arbitrary account. Admin only.
func (s *Service) GetUser(ctx context.Context, actor Actor, id uuid.UUID) (*domain.User, error) {
	if !canManageUsers(actor) {
		return nil, ErrForbidden
	}
	return s.repo.FindByID(ctx, id)
}

// mutate loads the aggregate, applies op, and saves it inside one unit of
// work, so the mutation and its events commit together.
func (s *Service) mutate(ctx context.Context, userID uuid.UUID, op func(*domain.User) error) (*domain.User, error) {
	var out *domain.User
	err := s.uow.Execute(ctx, func(ctx context.Context) error {
		u, err := s.repo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := op(u); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
