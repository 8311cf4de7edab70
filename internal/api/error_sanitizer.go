package api

import (
	"errors"
	"net/http"

	"github.com/ignite/identity-service/internal/domain"
	"github.com/ignite/identity-service/internal/pkg/httputil"
	"github.com/ignite/identity-service/internal/pkg/logger"
	"github.com/ignite/identity-service/internal/service/user"
)

// respondServiceError maps service-layer errors onto HTTP statuses. Expected
// errors return their own message; anything unrecognized is a 500 with the
// real error logged and a generic body, so internals never leak to clients.
func respondServiceError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		httputil.BadRequest(w, validation.Error())
		return
	}
	var transition *domain.StateTransitionError
	if errors.As(err, &transition) {
		httputil.Error(w, http.StatusConflict, transition.Error())
		return
	}

	switch {
	case errors.Is(err, user.ErrNotFound):
		httputil.NotFound(w, "user not found")
	case errors.Is(err, user.ErrUsernameTaken), errors.Is(err, user.ErrEmailTaken):
		httputil.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, user.ErrInvalidCredentials):
		httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, user.ErrSuspended):
		httputil.Error(w, http.StatusForbidden, "account is suspended")
	case errors.Is(err, user.ErrForbidden):
		httputil.Error(w, http.StatusForbidden, "operation not allowed")
	case errors.Is(err, user.ErrThrottled):
		httputil.Error(w, http.StatusTooManyRequests, "too many login attempts")
	default:
		logger.Error("unhandled service error", "error", err.Error())
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
