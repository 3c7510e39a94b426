package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/highway-inspection/internal/handler"
)

// RegisterFlights registers flight applications and missions. Ownership is
// enforced by the services; review actions are admin only.
func RegisterFlights(e *echo.Echo, f *handler.FlightHandler, m *handler.MissionHandler, g Guards) {
	apps := e.Group("/api/flight-applications", g.Auth, g.Limit)
	apps.POST("", f.Create)
	apps.GET("", f.List)
	apps.GET("/pending", f.Pending, adminOnly)
	apps.GET("/:id", f.Get)
	apps.PUT("/:id", f.Update)
	apps.DELETE("/:id", f.Delete)
	apps.GET("/:id/reservations", f.Reservations)
	apps.POST("/:id/submit", f.Submit)
	apps.POST("/:id/withdraw", f.Withdraw)
	apps.POST("/:id/approve", f.Approve, adminOnly)
	apps.POST("/:id/reject", f.Reject, adminOnly)
	apps.POST("/:id/terminate", f.Terminate, adminOnly)
	apps.POST("/:id/launch", m.Launch)

	missions := e.Group("/api/missions", g.Auth, g.Limit)
	missions.GET("", m.List)
	missions.GET("/active", m.Active)
	missions.GET("/:id", m.Get)
	missions.POST("/:id/complete", m.Complete)
}
