package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/highway-inspection/internal/service"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports database reachability and sweeper counters.
type HealthHandler struct {
	db    Pinger
	stats func() service.SweeperStats
}

// NewHealthHandler builds the health endpoint. stats may be nil when the
// sweeper is disabled.
func NewHealthHandler(db Pinger, stats func() service.SweeperStats) *HealthHandler {
	return &HealthHandler{db: db, stats: stats}
}

// Health returns 200 when the database answers a ping, 503 otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	body := echo.Map{"status": "ok"}
	if h.stats != nil {
		body["sweeper"] = h.stats()
	}
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, body)
		}
	}
	return c.JSON(http.StatusOK, body)
}
