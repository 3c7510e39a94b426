package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/highway-inspection/internal/handler"
)

// RegisterDashboard registers the reporting endpoints behind the response
// cache. Cache keys include the user, so operators never share entries.
func RegisterDashboard(e *echo.Echo, d *handler.DashboardHandler, g Guards) {
	r := e.Group("/api/dashboard", g.Auth, g.Limit, g.Cache)
	r.GET("/overview", d.Overview)
	r.GET("/flights", d.Flights)
	r.GET("/airspace", d.Airspace)
	r.GET("/alerts", d.Alerts)
	r.GET("/trend", d.Trend)
}
