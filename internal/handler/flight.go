package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
)

// Flights is the application state machine as used over HTTP.
type Flights interface {
	Create(ctx context.Context, caller service.Caller, in service.ApplicationInput) (*model.FlightApplication, error)
	Get(ctx context.Context, caller service.Caller, id uint64) (*model.FlightApplication, error)
	Reservations(ctx context.Context, caller service.Caller, id uint64) ([]model.Reservation, error)
	List(ctx context.Context, caller service.Caller, f service.ApplicationFilter) (model.PageResult[model.FlightApplication], error)
	ListPending(ctx context.Context, caller service.Caller) ([]model.FlightApplication, error)
	Update(ctx context.Context, caller service.Caller, id uint64, in service.ApplicationInput) (*model.FlightApplication, error)
	Submit(ctx context.Context, caller service.Caller, id uint64) (*model.FlightApplication, error)
	Approve(ctx context.Context, caller service.Caller, id uint64) (*model.FlightApplication, error)
	Reject(ctx context.Context, caller service.Caller, id uint64, reason string) (*model.FlightApplication, error)
	Terminate(ctx context.Context, caller service.Caller, id uint64) (*model.FlightApplication, error)
	Withdraw(ctx context.Context, caller service.Caller, id uint64) (*model.FlightApplication, error)
	Delete(ctx context.Context, caller service.Caller, id uint64) error
}

// FlightHandler serves /api/flight-applications.
type FlightHandler struct {
	svc Flights
	log *zap.Logger
}

func NewFlightHandler(svc Flights, log *zap.Logger) *FlightHandler {
	return &FlightHandler{svc: svc, log: log}
}

type applicationReq struct {
	DroneModel    *string     `json:"drone_model"`
	TaskPurpose   *string     `json:"task_purpose"`
	AirspaceID    *uint64     `json:"planned_airspace_id"`
	PlannedStart  *string     `json:"planned_start_time"`
	PlannedEnd    *string     `json:"planned_end_time"`
	TotalTime     *int        `json:"total_time"`
	Route         model.Route `json:"route"`
	IsLongTerm    *bool       `json:"is_long_term"`
	LongTermStart *string     `json:"long_term_start"`
	LongTermEnd   *string     `json:"long_term_end"`
}

func (r applicationReq) input() service.ApplicationInput {
	return service.ApplicationInput{
		DroneModel:    r.DroneModel,
		TaskPurpose:   r.TaskPurpose,
		AirspaceID:    r.AirspaceID,
		PlannedStart:  r.PlannedStart,
		PlannedEnd:    r.PlannedEnd,
		TotalTime:     r.TotalTime,
		Route:         r.Route,
		IsLongTerm:    r.IsLongTerm,
		LongTermStart: r.LongTermStart,
		LongTermEnd:   r.LongTermEnd,
	}
}

type rejectReq struct {
	Reason string `json:"reason"`
}

func (h *FlightHandler) Create(c echo.Context) error {
	var req applicationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	app, err := h.svc.Create(ctx, caller(c), req.input())
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, app)
}

func (h *FlightHandler) Get(c echo.Context) error {
	return h.one(c, Flights.Get)
}

// List accepts ?status=&page=&page_size=; admins may add ?user_id=.
func (h *FlightHandler) List(c echo.Context) error {
	uid, ok := queryID(c, "user_id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}
	f := service.ApplicationFilter{
		UserID: uid,
		Status: model.ApplicationStatus(c.QueryParam("status")),
		Page:   page(c),
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.svc.List(ctx, caller(c), f)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Pending is the admin review queue.
func (h *FlightHandler) Pending(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.svc.ListPending(ctx, caller(c))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *FlightHandler) Reservations(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.svc.Reservations(ctx, caller(c), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *FlightHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req applicationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	app, err := h.svc.Update(ctx, caller(c), id, req.input())
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, app)
}

func (h *FlightHandler) Delete(c echo.Context) error {
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

func (h *FlightHandler) Submit(c echo.Context) error    { return h.one(c, Flights.Submit) }
func (h *FlightHandler) Approve(c echo.Context) error   { return h.one(c, Flights.Approve) }
func (h *FlightHandler) Terminate(c echo.Context) error { return h.one(c, Flights.Terminate) }
func (h *FlightHandler) Withdraw(c echo.Context) error  { return h.one(c, Flights.Withdraw) }

func (h *FlightHandler) Reject(c echo.Context) error {
	var req rejectReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.one(c, func(svc Flights, ctx context.Context, who service.Caller, id uint64) (*model.FlightApplication, error) {
		return svc.Reject(ctx, who, id, req.Reason)
	})
}

// one runs a single-application operation addressed by :id. The id is
// checked before the service is touched.
func (h *FlightHandler) one(c echo.Context, op func(Flights, context.Context, service.Caller, uint64) (*model.FlightApplication, error)) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	app, err := op(h.svc, ctx, caller(c), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, app)
}
