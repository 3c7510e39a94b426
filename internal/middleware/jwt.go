package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/utils"
)

// JWTAuth validates a Bearer access token and stores the user id (uint64)
// and role (model.Role) in the context under CtxUserID and CtxRole.
func JWTAuth(secret string, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				log.Debug("rejected access token", zap.Error(err), zap.String("path", c.Path()))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid or expired token"})
			}
			id, _ := claims.UserID()
			c.Set(CtxUserID, id)
			c.Set(CtxRole, claims.Role)
			return next(c)
		}
	}
}
