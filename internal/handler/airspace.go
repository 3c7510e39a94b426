package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
)

// Airspaces is the registry surface used over HTTP.
type Airspaces interface {
	Create(ctx context.Context, caller service.Caller, in service.AirspaceInput) (*model.Airspace, error)
	Get(ctx context.Context, id uint64) (*model.Airspace, error)
	List(ctx context.Context, f service.AirspaceFilter) (model.PageResult[model.Airspace], error)
	ListAvailable(ctx context.Context) ([]model.Airspace, error)
	Update(ctx context.Context, caller service.Caller, id uint64, in service.AirspaceInput) (*model.Airspace, error)
	Delete(ctx context.Context, caller service.Caller, id uint64) error
	CheckConflict(ctx context.Context, id uint64, start, end string) (bool, error)
}

// AirspaceHandler serves /api/airspaces.
type AirspaceHandler struct {
	svc Airspaces
	log *zap.Logger
}

func NewAirspaceHandler(svc Airspaces, log *zap.Logger) *AirspaceHandler {
	return &AirspaceHandler{svc: svc, log: log}
}

type airspaceReq struct {
	Name   *string               `json:"name"`
	Number *string               `json:"number"`
	Type   *model.AirspaceKind   `json:"type"`
	Area   model.Geometry        `json:"area"`
	Remark *string               `json:"remark"`
	Status *model.AirspaceStatus `json:"status"`
}

func (r airspaceReq) input() service.AirspaceInput {
	return service.AirspaceInput{Name: r.Name, Number: r.Number, Kind: r.Type, Area: r.Area, Remark: r.Remark, Status: r.Status}
}

func (h *AirspaceHandler) Create(c echo.Context) error {
	var req airspaceReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	a, err := h.svc.Create(ctx, caller(c), req.input())
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *AirspaceHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	a, err := h.svc.Get(ctx, id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, a)
}

// List accepts ?type=&status=&page=&page_size=.
func (h *AirspaceHandler) List(c echo.Context) error {
	f := service.AirspaceFilter{
		Kind:   model.AirspaceKind(c.QueryParam("type")),
		Status: model.AirspaceStatus(c.QueryParam("status")),
		Page:   page(c),
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.svc.List(ctx, f)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Available lists airspaces a new mission could use.
func (h *AirspaceHandler) Available(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.svc.ListAvailable(ctx)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AirspaceHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req airspaceReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	a, err := h.svc.Update(ctx, caller(c), id, req.input())
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *AirspaceHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.svc.Delete(ctx, caller(c), id); err != nil {
		return fail(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type conflictReq struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// CheckConflict answers whether the window in the body clashes with an
// approved or active reservation of airspace :id.
func (h *AirspaceHandler) CheckConflict(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req conflictReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	clash, err := h.svc.CheckConflict(ctx, id, req.StartTime, req.EndTime)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"has_conflict": clash})
}
