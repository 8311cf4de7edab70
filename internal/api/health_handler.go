package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/identity-service/internal/pkg/httputil"
)

// BacklogReader reports how many envelopes await relay delivery.
type BacklogReader interface {
	PendingDepth(ctx context.Context) (int, error)
}

// HealthHandler serves liveness and readiness probes. Readiness checks the
// database, Redis when configured, and reports the outbox backlog.
type HealthHandler struct {
	db      *sql.DB
	redis   *redis.Client // nil when throttling is disabled
	backlog BacklogReader
}

// NewHealthHandler creates the health probe handlers.
func NewHealthHandler(db *sql.DB, redisClient *redis.Client, backlog BacklogReader) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, backlog: backlog}
}

// Live handles GET /health/live. It answers 200 whenever the process serves
// requests at all.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready and GET /health.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "unreachable"
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unreachable"
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	body := map[string]any{"checks": checks}
	if depth, err := h.backlog.PendingDepth(ctx); err == nil {
		body["outbox_backlog"] = depth
	}

	if !healthy {
		body["status"] = "degraded"
		httputil.JSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ok"
	httputil.OK(w, body)
}
