package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/highway-inspection/internal/handler"
)

// RegisterArtifacts registers videos, alerts and the AI ingestion
// endpoints. The AI collaborator is trusted and only rate limited.
func RegisterArtifacts(e *echo.Echo, a *handler.ArtifactHandler, in *handler.IngestHandler, g Guards) {
	videos := e.Group("/api/videos", g.Auth, g.Limit)
	videos.POST("", a.CreateVideo)
	videos.GET("", a.ListVideos)
	videos.GET("/:id", a.GetVideo)
	videos.GET("/:id/results", a.VideoResults)

	e.POST("/api/alerts", a.CreateAlert, g.Ingest)
	alerts := e.Group("/api/alerts", g.Auth, g.Limit)
	alerts.GET("", a.ListAlerts)
	alerts.GET("/active", a.ActiveAlerts)
	alerts.GET("/:id", a.GetAlert)
	alerts.PATCH("/:id/status", a.UpdateAlertStatus, adminOnly)

	ai := e.Group("/api/ai", g.Ingest)
	ai.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	ai.POST("/analysis/results", in.Result)
	ai.POST("/analysis/results/batch", in.Batch)
	ai.POST("/alerts", a.CreateAlert)
}
