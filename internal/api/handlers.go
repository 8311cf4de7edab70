// Package api exposes the identity service over HTTP: public auth routes,
// bearer-token self-service routes, and admin account management.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/identity-service/internal/domain"
	"github.com/ignite/identity-service/internal/pkg/httputil"
	"github.com/ignite/identity-service/internal/service/user"
)

// UserService is the application surface the handlers call.
type UserService interface {
	Signup(ctx context.Context, in user.SignupInput) (*domain.User, error)
	Login(ctx context.Context, in user.LoginInput) (user.LoginResult, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ChangeUsername(ctx context.Context, userID uuid.UUID, newUsername string) (*domain.User, error)
	ChangeEmail(ctx context.Context, userID uuid.UUID, newEmail string) (*domain.User, error)
	VerifyEmail(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	Deactivate(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	Activate(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	Suspend(ctx context.Context, actor user.Actor, targetID uuid.UUID, reason string) (*domain.User, error)
	Unlock(ctx context.Context, actor user.Actor, targetID uuid.UUID) (*domain.User, error)
	Promote(ctx context.Context, actor user.Actor, targetID uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context, actor user.Actor) ([]*domain.User, error)
	GetUser(ctx context.Context, actor user.Actor, id uuid.UUID) (*domain.User, error)
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	users  UserService
	health *HealthHandler
}

// NewHandlers creates the handler set.
func NewHandlers(users UserService, health *HealthHandler) *Handlers {
	return &Handlers{users: users, health: health}
}

// userResponse is the public shape of an account.
type userResponse struct {
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Role          string    `json:"role"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		UserID:        u.ID().String(),
		Username:      u.Username(),
		Email:         u.Email().Address(),
		EmailVerified: u.Email().IsVerified(),
		Role:          string(u.Role()),
		Status:        string(u.State().Tag()),
		CreatedAt:     u.CreatedAt(),
		UpdatedAt:     u.UpdatedAt(),
	}
}

// Signup handles POST /api/auth/signup
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var in user.SignupInput
	if !httputil.Decode(w, r, &in) {
		return
	}

	u, err := h.users.Signup(r.Context(), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, map[string]string{"user_id": u.ID().String()})
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in user.LoginInput
	if !httputil.Decode(w, r, &in) {
		return
	}

	result, err := h.users.Login(r.Context(), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{
		"token":   result.Token,
		"user_id": result.UserID.String(),
		"role":    string(result.Role),
	})
}

// GetMe handles GET /api/users/me
func (h *Handlers) GetMe(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	u, err := h.users.GetProfile(r.Context(), actor.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, toUserResponse(u))
}

// ChangeUsername handles PUT /api/users/me/username
func (h *Handlers) ChangeUsername(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.selfMutation(w, r, func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
		return h.users.ChangeUsername(ctx, id, in.Username)
	})
}

// ChangeEmail handles PUT /api/users/me/email
func (h *Handlers) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}
	h.selfMutation(w, r, func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
		return h.users.ChangeEmail(ctx, id, in.Email)
	})
}

// VerifyEmail handles POST /api/users/me/email/verify
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	h.selfMutation(w, r, h.users.VerifyEmail)
}

// Deactivate handles POST /api/users/me/deactivate
func (h *Handlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.selfMutation(w, r, h.users.Deactivate)
}

// Activate handles POST /api/users/me/activate
func (h *Handlers) Activate(w http.ResponseWriter, r *http.Request) {
	h.selfMutation(w, r, h.users.Activate)
}

// selfMutation runs an operation against the caller's own account and
// responds with the updated profile.
func (h *Handlers) selfMutation(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) (*domain.User, error)) {
	actor := actorFrom(r.Context())
	u, err := op(r.Context(), actor.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, toUserResponse(u))
}

// ListUsers handles GET /api/admin/users
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), actorFrom(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	httputil.OK(w, map[string]any{"users": out, "total": len(out)})
}

// GetUser handles GET /api/admin/users/{id}
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := h.users.GetUser(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, toUserResponse(u))
}

// SuspendUser handles POST /api/admin/users/{id}/suspend
func (h *Handlers) SuspendUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in struct {
		Reason string `json:"reason"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}
	u, err := h.users.Suspend(r.Context(), actorFrom(r.Context()), id, in.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, toUserResponse(u))
}

// UnlockUser handles POST /api/admin/users/{id}/unlock
func (h *Handlers) UnlockUser(w http.ResponseWriter, r *http.Request) {
	h.adminMutation(w, r, h.users.Unlock)
}

// PromoteUser handles POST /api/admin/users/{id}/promote
func (h *Handlers) PromoteUser(w http.ResponseWriter, r *http.Request) {
	h.adminMutation(w, r, h.users.Promote)
}

func (h *Handlers) adminMutation(w http.ResponseWriter, r *http.Request, op func(context.Context, user.Actor, uuid.UUID) (*domain.User, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := op(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, toUserResponse(u))
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}
