// Package router registers the HTTP routes of the inspection API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/config"
	"github.com/iliyamo/highway-inspection/internal/handler"
	"github.com/iliyamo/highway-inspection/internal/middleware"
	"github.com/iliyamo/highway-inspection/internal/model"
)

// Guards are the middlewares shared by the route groups.
type Guards struct {
	Auth   echo.MiddlewareFunc // JWT
	Limit  echo.MiddlewareFunc // API token bucket
	Ingest echo.MiddlewareFunc // token bucket for the AI collaborator
	Cache  echo.MiddlewareFunc // dashboard response cache
}

// NewGuards builds the guards. A nil rdb disables rate limiting and caching.
func NewGuards(jwtSecret string, api, ingest config.RateLimitConfig, cache config.CacheConfig, rdb *redis.Client, log *zap.Logger) Guards {
	return Guards{
		Auth:   middleware.JWTAuth(jwtSecret, log),
		Limit:  middleware.NewTokenBucket(api, rdb, log),
		Ingest: middleware.NewTokenBucket(ingest, rdb, log),
		Cache:  middleware.NewRedisCache(cache, rdb, log),
	}
}

var adminOnly = middleware.RequireRole(model.RoleAdmin)

// RegisterRoutes registers the unauthenticated health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers account routes. Register, login, refresh and
// logout need no session; me and the user routes do. The handlers decide
// self-or-admin access for a single user.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guards) {
	pub := e.Group("/api/auth", g.Limit)
	pub.POST("/register", a.Register)
	pub.POST("/login", a.Login)
	pub.POST("/refresh", a.Refresh)
	pub.POST("/logout", a.Logout)

	e.GET("/api/auth/me", a.Me, g.Auth, g.Limit)

	users := e.Group("/api/users", g.Auth, g.Limit)
	users.GET("", a.ListUsers, adminOnly)
	users.GET("/:id", a.GetUser)
	users.PUT("/:id", a.UpdateUser)
	users.DELETE("/:id", a.DeleteUser, adminOnly)
}
