package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/service"
)

// Reports is the dashboard aggregation surface.
type Reports interface {
	Flights(ctx context.Context, r service.ReportRange) (service.FlightStats, error)
	Airspace(ctx context.Context, r service.ReportRange) ([]service.AirspaceUsageRow, error)
	Alerts(ctx context.Context, r service.ReportRange) (service.AlertCounts, error)
	Trend(ctx context.Context, days int) ([]service.TrendPoint, error)
	Overview(ctx context.Context, r service.ReportRange) (*service.Overview, error)
}

// DashboardHandler serves /api/dashboard. Operators only ever see their own
// missions and reservations.
type DashboardHandler struct {
	svc   Reports
	times service.TimeNormalizer
	log   *zap.Logger
}

func NewDashboardHandler(svc Reports, times service.TimeNormalizer, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, times: times, log: log}
}

const dateLayout = "2006-01-02"

// rangeOf reads ?from=&to=. A bare date in to covers that whole day.
func (h *DashboardHandler) rangeOf(c echo.Context) (service.ReportRange, error) {
	var r service.ReportRange
	if s := c.QueryParam("from"); s != "" {
		t, err := h.parse(s)
		if err != nil {
			return r, err
		}
		r.From = t
	}
	if s := c.QueryParam("to"); s != "" {
		t, err := h.parse(s)
		if err != nil {
			return r, err
		}
		if len(s) == len(dateLayout) {
			t = t.Add(24*time.Hour - time.Second)
		}
		r.To = t
	}
	return service.Scope(caller(c), r), nil
}

func (h *DashboardHandler) parse(s string) (time.Time, error) {
	if len(s) == len(dateLayout) {
		s += " 00:00:00"
	}
	return h.times.Parse(s)
}

func (h *DashboardHandler) Overview(c echo.Context) error {
	return h.serve(c, func(ctx context.Context, r service.ReportRange) (any, error) {
		return h.svc.Overview(ctx, r)
	})
}

func (h *DashboardHandler) Flights(c echo.Context) error {
	return h.serve(c, func(ctx context.Context, r service.ReportRange) (any, error) {
		return h.svc.Flights(ctx, r)
	})
}

func (h *DashboardHandler) Airspace(c echo.Context) error {
	return h.serve(c, func(ctx context.Context, r service.ReportRange) (any, error) {
		return h.svc.Airspace(ctx, r)
	})
}

func (h *DashboardHandler) Alerts(c echo.Context) error {
	return h.serve(c, func(ctx context.Context, r service.ReportRange) (any, error) {
		return h.svc.Alerts(ctx, r)
	})
}

// Trend accepts ?days= (default 7, at most 90).
func (h *DashboardHandler) Trend(c echo.Context) error {
	days := service.TrendDays
	if s := c.QueryParam("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 90 {
			return badRequest(c, "days must be between 1 and 90")
		}
		days = n
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	points, err := h.svc.Trend(ctx, days)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, points)
}

func (h *DashboardHandler) serve(c echo.Context, op func(context.Context, service.ReportRange) (any, error)) error {
	r, err := h.rangeOf(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return badRequest(c, "to must not be before from")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := op(ctx, r)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}
