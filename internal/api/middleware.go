package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ignite/identity-service/internal/auth"
	"github.com/ignite/identity-service/internal/domain"
	"github.com/ignite/identity-service/internal/pkg/httputil"
	"github.com/ignite/identity-service/internal/service/user"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

type actorCtxKey struct{}

// actorFrom returns the authenticated caller. Only valid below the
// authenticate middleware; routes outside it see a zero Actor.
func actorFrom(ctx context.Context) user.Actor {
	a, _ := ctx.Value(actorCtxKey{}).(user.Actor)
	return a
}

// authenticate verifies the Authorization bearer token and installs the
// resulting actor in the request context.
func authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			actor := user.Actor{ID: claims.UserID, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorCtxKey{}, actor)))
		})
	}
}

// requireAdmin gates a route group on the admin role. The service layer
// checks again; this middleware just fails fast with a clean 403.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actorFrom(r.Context()).Role != domain.RoleAdmin {
			httputil.Error(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
