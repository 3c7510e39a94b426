package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
)

// Missions is the mission lifecycle as used over HTTP.
type Missions interface {
	Launch(ctx context.Context, caller service.Caller, appID uint64) (*model.Mission, error)
	Complete(ctx context.Context, caller service.Caller, id uint64) (*model.Mission, error)
	Get(ctx context.Context, caller service.Caller, id uint64) (*model.Mission, error)
	List(ctx context.Context, caller service.Caller, f service.MissionFilter) (model.PageResult[model.Mission], error)
	ListActive(ctx context.Context, caller service.Caller) ([]model.Mission, error)
}

// MissionHandler serves /api/missions and the launch action.
type MissionHandler struct {
	svc Missions
	log *zap.Logger
}

func NewMissionHandler(svc Missions, log *zap.Logger) *MissionHandler {
	return &MissionHandler{svc: svc, log: log}
}

// missionView adds the derived distance and speed to a mission.
type missionView struct {
	*model.Mission
	RouteDistance float64  `json:"route_distance"`
	FlightSpeed   *float64 `json:"flight_speed"`
}

func viewOf(m *model.Mission) missionView {
	return missionView{Mission: m, RouteDistance: m.RouteDistance(), FlightSpeed: m.FlightSpeed()}
}

func viewsOf(ms []model.Mission) []missionView {
	out := make([]missionView, len(ms))
	for i := range ms {
		out[i] = viewOf(&ms[i])
	}
	return out
}

// Launch starts a mission from the approved application :id.
func (h *MissionHandler) Launch(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	m, err := h.svc.Launch(ctx, caller(c), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, viewOf(m))
}

func (h *MissionHandler) Complete(c echo.Context) error {
	return h.one(c, Missions.Complete)
}

func (h *MissionHandler) Get(c echo.Context) error {
	return h.one(c, Missions.Get)
}

// List accepts ?status=&operator_id=&page=&page_size=.
func (h *MissionHandler) List(c echo.Context) error {
	op, ok := queryID(c, "operator_id")
	if !ok {
		return badRequest(c, "invalid operator_id")
	}
	f := service.MissionFilter{
		OperatorID: op,
		Status:     model.MissionStatus(c.QueryParam("status")),
		Page:       page(c),
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.svc.List(ctx, caller(c), f)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, model.PageResult[missionView]{
		Items:      viewsOf(res.Items),
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
	})
}

// Active lists executing missions after completing any that are overdue.
func (h *MissionHandler) Active(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.svc.ListActive(ctx, caller(c))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, viewsOf(list))
}

func (h *MissionHandler) one(c echo.Context, op func(Missions, context.Context, service.Caller, uint64) (*model.Mission, error)) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	m, err := op(h.svc, ctx, caller(c), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, viewOf(m))
}
