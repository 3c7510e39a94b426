package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/highway-inspection/internal/handler"
)

// RegisterAirspaces registers the airspace registry. Reads are open to any
// signed-in user; writes are admin only.
func RegisterAirspaces(e *echo.Echo, h *handler.AirspaceHandler, g Guards) {
	r := e.Group("/api/airspaces", g.Auth, g.Limit)
	r.GET("", h.List)
	r.GET("/available", h.Available)
	r.GET("/:id", h.Get)
	r.POST("/:id/check-conflict", h.CheckConflict)

	r.POST("", h.Create, adminOnly)
	r.PUT("/:id", h.Update, adminOnly)
	r.PATCH("/:id", h.Update, adminOnly)
	r.DELETE("/:id", h.Delete, adminOnly)
}
