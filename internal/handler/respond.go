// Package handler exposes the inspection workflow over HTTP. Handlers bind
// requests, resolve the caller from the JWT context and translate domain
// errors into status codes.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/middleware"
	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
)

// requestTimeout bounds the storage work of a single request.
const requestTimeout = 5 * time.Second

var statusByCode = map[string]int{
	"not_found":                 http.StatusNotFound,
	"not_owner":                 http.StatusForbidden,
	"forbidden":                 http.StatusForbidden,
	"invalid_state":             http.StatusConflict,
	"validation_failed":         http.StatusBadRequest,
	"airspace_conflict":         http.StatusConflict,
	"expired":                   http.StatusGone,
	"out_of_window":             http.StatusUnprocessableEntity,
	"insufficient_time":         http.StatusUnprocessableEntity,
	"airspace_no_fly":           http.StatusConflict,
	"airspace_busy":             http.StatusConflict,
	"duplicate_number":          http.StatusConflict,
	"has_dependents":            http.StatusConflict,
	"invalid_status_transition": http.StatusConflict,
}

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// fail writes err as a JSON error. Anything outside the domain taxonomy is
// logged and reported as 500 without detail.
func fail(c echo.Context, log *zap.Logger, err error) error {
	code := service.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody{Error: service.CodeInternal})
	}
	body := errorBody{Error: code, Message: err.Error()}
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}

// caller builds the service identity from the JWT context.
func caller(c echo.Context) service.Caller {
	id, _ := middleware.UserID(c)
	return service.Caller{UserID: id, Role: middleware.Role(c)}
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// queryID parses an optional positive integer query parameter; ok is false
// only when the value is present and malformed.
func queryID(c echo.Context, name string) (uint64, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	return id, err == nil
}

// page reads page and page_size; services clamp the values.
func page(c echo.Context) model.Page {
	p, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	return model.Page{Page: p, PageSize: size}
}
