package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/config"
	"github.com/iliyamo/highway-inspection/internal/middleware"
	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/repository"
	"github.com/iliyamo/highway-inspection/internal/service"
	"github.com/iliyamo/highway-inspection/internal/utils"
)

// UserStore is the account storage used by AuthHandler.
type UserStore interface {
	Create(ctx context.Context, username, password string, role model.Role, cost int) (uint64, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	List(ctx context.Context, p model.Page) ([]model.User, int, error)
	Update(ctx context.Context, id uint64, password *string, role *model.Role, cost int) (model.User, error)
	Delete(ctx context.Context, id uint64) error
}

// TokenStore keeps hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
	log    *zap.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, log: log}
}

type registerReq struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}
type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type userUpdateReq struct {
	Password *string     `json:"password"`
	Role     *model.Role `json:"role"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64     `json:"id"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// bearer returns the claims of a valid Authorization header, if any. Auth
// routes are not behind JWTAuth, so they read the header themselves.
func (h *AuthHandler) bearer(c echo.Context) *utils.AccessClaims {
	raw, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return claims
}

// issue creates and stores a fresh token pair for u.
func (h *AuthHandler) issue(ctx context.Context, u userPart) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

// Register creates an operator account and returns tokens immediately.
// Only an authenticated admin may create another admin.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 3 || len(req.Username) > 64 {
		return badRequest(c, "username must be 3-64 characters")
	}
	if len(req.Password) < 6 {
		return badRequest(c, "password must be at least 6 characters")
	}
	if req.Role == "" {
		req.Role = model.RoleOperator
	}
	if !req.Role.Valid() {
		return badRequest(c, "role must be admin or operator")
	}
	if req.Role == model.RoleAdmin {
		if claims := h.bearer(c); claims == nil || claims.Role != model.RoleAdmin {
			return c.JSON(http.StatusForbidden, errorBody{Error: "forbidden", Message: "only admins can create admins"})
		}
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Username, req.Password, req.Role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return c.JSON(http.StatusConflict, errorBody{Error: "username_taken", Message: "username already exists"})
		}
		return fail(c, h.log, err)
	}
	resp, err := h.issue(ctx, userPart{ID: uid, Username: req.Username, Role: req.Role})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username and password required")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return unauthorized(c, "invalid credentials")
		}
		return fail(c, h.log, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return unauthorized(c, "invalid credentials")
	}
	resp, err := h.issue(ctx, userPart{ID: u.ID, Username: u.Username, Role: u.Role})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates by hash, revokes the old token and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := withTimeout(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return unauthorized(c, "invalid refresh token")
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return fail(c, h.log, err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return unauthorized(c, "invalid refresh token")
		}
		return fail(c, h.log, err)
	}
	resp, err := h.issue(ctx, userPart{ID: u.ID, Username: u.Username, Role: u.Role})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes a single refresh token from the body, or every token of
// the bearer when no body token is given.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := withTimeout(c)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return unauthorized(c, "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return fail(c, h.log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	if claims := h.bearer(c); claims != nil {
		uid, err := claims.UserID()
		if err != nil {
			return unauthorized(c, "unauthorized")
		}
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return fail(c, h.log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	return badRequest(c, "provide Authorization header or refresh_token")
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// ListUsers pages through accounts; admin only at the router.
func (h *AuthHandler) ListUsers(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	p := page(c).Normalize()
	users, total, err := h.Users.List(ctx, p)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, model.NewPageResult(users, total, p))
}

// GetUser returns one account. Operators may only read themselves.
func (h *AuthHandler) GetUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if who := caller(c); !who.IsAdmin() && who.UserID != id {
		return fail(c, h.log, service.ErrForbidden)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateUser changes a password or role. Operators may change their own
// password but never a role.
func (h *AuthHandler) UpdateUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req userUpdateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	who := caller(c)
	if !who.IsAdmin() && (who.UserID != id || req.Role != nil) {
		return fail(c, h.log, service.ErrForbidden)
	}
	if req.Password != nil && (len(*req.Password) < 6 || len(*req.Password) > 128) {
		return badRequest(c, "password must be 6-128 characters")
	}
	if req.Role != nil && !req.Role.Valid() {
		return badRequest(c, "role must be admin or operator")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.Update(ctx, id, req.Password, req.Role, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// DeleteUser removes an account; admin only at the router. Admins cannot
// delete themselves.
func (h *AuthHandler) DeleteUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if caller(c).UserID == id {
		return badRequest(c, "cannot delete yourself")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		return fail(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: msg})
}
