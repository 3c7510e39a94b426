package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/service"
)

// Ingester stores analysis results from the AI collaborator.
type Ingester interface {
	SubmitResult(ctx context.Context, in service.ResultInput) (int, error)
	SubmitResults(ctx context.Context, in []service.ResultInput) (int, error)
}

// IngestHandler serves /api/ai.
type IngestHandler struct {
	svc Ingester
	log *zap.Logger
}

func NewIngestHandler(svc Ingester, log *zap.Logger) *IngestHandler {
	return &IngestHandler{svc: svc, log: log}
}

type batchReq struct {
	Results []service.ResultInput `json:"results"`
}

func (h *IngestHandler) Result(c echo.Context) error {
	var in service.ResultInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	n, err := h.svc.SubmitResult(ctx, in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": n})
}

// Batch stores every result or none.
func (h *IngestHandler) Batch(c echo.Context) error {
	var req batchReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	n, err := h.svc.SubmitResults(ctx, req.Results)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": n})
}
