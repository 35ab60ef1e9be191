package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and, on /readyz, the state of the
// store and the cache.  A failing cache degrades readiness but does not
// fail it: the service keeps serving from the store.
type HealthHandler struct {
	db    Pinger
	cache func(ctx context.Context) error
}

// NewHealthHandler accepts a nil cache probe when caching is off.
func NewHealthHandler(db Pinger, cache func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Health answers load balancers with a plain "ok".
func (h *HealthHandler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	status := echo.Map{"database": "up", "cache": "disabled"}
	if err := h.db.PingContext(ctx); err != nil {
		status["database"] = "down"
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	if h.cache != nil {
		status["cache"] = "up"
		if err := h.cache(ctx); err != nil {
			status["cache"] = "degraded"
		}
	}
	return c.JSON(http.StatusOK, status)
}
