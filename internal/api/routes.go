package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router: public auth and health routes, then the
// authenticated /api/users/me group, then the admin group which additionally
// requires the admin role.
func SetupRoutes(h *Handlers, verifier TokenVerifier) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health checks (no auth required)
	r.Get("/health", h.health.Ready)
	r.Get("/health/live", h.health.Live)
	r.Get("/health/ready", h.health.Ready)

	// Public auth routes
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
	})

	// Self-service routes
	r.Route("/api/users/me", func(r chi.Router) {
		r.Use(authenticate(verifier))
		r.Get("/", h.GetMe)
		r.Put("/username", h.ChangeUsername)
		r.Put("/email", h.ChangeEmail)
		r.Post("/email/verify", h.VerifyEmail)
		r.Post("/deactivate", h.Deactivate)
		r.Post("/activate", h.Activate)
	})

	// Admin routes
	r.Route("/api/admin/users", func(r chi.Router) {
		r.Use(authenticate(verifier))
		r.Use(requireAdmin)
		r.Get("/", h.ListUsers)
		r.Get("/{id}", h.GetUser)
		r.Post("/{id}/suspend", h.SuspendUser)
		r.Post("/{id}/unlock", h.UnlockUser)
		r.Post("/{id}/promote", h.PromoteUser)
	})

	return r
}
