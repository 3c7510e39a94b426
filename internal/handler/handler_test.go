package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/highway-inspection/internal/middleware"
	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
)

var (
	admin    = &service.Caller{UserID: 1, Role: model.RoleAdmin}
	operator = &service.Caller{UserID: 2, Role: model.RoleOperator}
)

func callWithBearer(h echo.HandlerFunc, body, token string) *httptest.ResponseRecorder {
	return callWith(h, http.MethodPost, "/", body, nil, func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	})
}

func call(h echo.HandlerFunc, method, target, body string, who *service.Caller, params ...string) *httptest.ResponseRecorder {
	return callWith(h, method, target, body, who, nil, params...)
}

// callWith runs h directly with who installed the way JWTAuth would. params
// are name/value pairs for path parameters.
func callWith(h echo.HandlerFunc, method, target, body string, who *service.Caller, prep func(*http.Request), params ...string) *httptest.ResponseRecorder {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if prep != nil {
		prep(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if who != nil {
		c.Set(middleware.CtxUserID, who.UserID)
		c.Set(middleware.CtxRole, who.Role)
	}
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestFailMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrNotFound, http.StatusNotFound, "not_found"},
		{service.ErrNotOwner, http.StatusForbidden, "not_owner"},
		{service.ErrForbidden, http.StatusForbidden, "forbidden"},
		{service.ErrInvalidState, http.StatusConflict, "invalid_state"},
		{service.ErrAirspaceConflict, http.StatusConflict, "airspace_conflict"},
		{service.ErrExpired, http.StatusGone, "expired"},
		{service.ErrOutOfWindow, http.StatusUnprocessableEntity, "out_of_window"},
		{service.ErrInsufficientTime, http.StatusUnprocessableEntity, "insufficient_time"},
		{service.ErrAirspaceNoFly, http.StatusConflict, "airspace_no_fly"},
		{service.ErrAirspaceBusy, http.StatusConflict, "airspace_busy"},
		{service.ErrDuplicateNumber, http.StatusConflict, "duplicate_number"},
		{service.ErrHasDependents, http.StatusConflict, "has_dependents"},
		{service.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
		{fmt.Errorf("%w: application 9", service.ErrNotFound), http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := call(func(c echo.Context) error { return fail(c, zap.NewNop(), tc.err) }, http.MethodGet, "/", "", nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode(t, rec)["error"])
		})
	}
}

func TestFailValidationCarriesFields(t *testing.T) {
	err := &service.ValidationError{Fields: map[string]string{"total_time": "must be positive"}}
	rec := call(func(c echo.Context) error { return fail(c, zap.NewNop(), err) }, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "validation_failed", body["error"])
	assert.Equal(t, map[string]any{"total_time": "must be positive"}, body["fields"])
}

func TestFailHidesInternalErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	rec := call(func(c echo.Context) error {
		return fail(c, zap.New(core), errors.New("dial tcp 10.0.0.5:3306: refused"))
	}, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"error": "internal"}, decode(t, rec))
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].ContextMap()["error"], "refused")
}

type fakeFlights struct {
	Flights
	who    service.Caller
	id     uint64
	reason string
	in     service.ApplicationInput
	err    error
}

func (f *fakeFlights) record(who service.Caller, id uint64) (*model.FlightApplication, error) {
	f.who, f.id = who, id
	if f.err != nil {
		return nil, f.err
	}
	return &model.FlightApplication{ID: id, UserID: who.UserID, Status: model.ApplicationPending}, nil
}

func (f *fakeFlights) Create(_ context.Context, who service.Caller, in service.ApplicationInput) (*model.FlightApplication, error) {
	f.in = in
	return f.record(who, 10)
}

func (f *fakeFlights) Submit(_ context.Context, who service.Caller, id uint64) (*model.FlightApplication, error) {
	return f.record(who, id)
}

func (f *fakeFlights) Reject(_ context.Context, who service.Caller, id uint64, reason string) (*model.FlightApplication, error) {
	f.reason = reason
	return f.record(who, id)
}

func TestFlightSubmitUsesCallerAndPathID(t *testing.T) {
	f := &fakeFlights{}
	h := NewFlightHandler(f, zap.NewNop())

	rec := call(h.Submit, http.MethodPost, "/", "", operator, "id", "7")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, *operator, f.who)
	assert.Equal(t, uint64(7), f.id)

	rec = call(h.Submit, http.MethodPost, "/", "", operator, "id", "abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBadIDNeverReachesService(t *testing.T) {
	fh := NewFlightHandler(nil, zap.NewNop())
	mh := NewMissionHandler(nil, zap.NewNop())
	for name, h := range map[string]echo.HandlerFunc{
		"get": fh.Get, "submit": fh.Submit, "approve": fh.Approve,
		"terminate": fh.Terminate, "withdraw": fh.Withdraw,
		"mission get": mh.Get, "complete": mh.Complete,
	} {
		rec := call(h, http.MethodPost, "/", "", operator, "id", "x")
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestFlightSubmitConflict(t *testing.T) {
	f := &fakeFlights{err: fmt.Errorf("%w: airspace 3 is reserved", service.ErrAirspaceConflict)}
	rec := call(NewFlightHandler(f, zap.NewNop()).Submit, http.MethodPost, "/", "", operator, "id", "7")
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "airspace_conflict", body["error"])
	assert.Contains(t, body["message"], "airspace 3")
}

func TestFlightCreateBindsBody(t *testing.T) {
	f := &fakeFlights{}
	h := NewFlightHandler(f, zap.NewNop())
	body := `{"drone_model":"M300","planned_airspace_id":4,"planned_start_time":"2030-06-01 10:00:00",
		"total_time":30,"route":{"type":"LineString","coordinates":[[116.3,39.9],[116.4,39.95]]}}`

	rec := call(h.Create, http.MethodPost, "/", body, operator)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, f.in.DroneModel)
	assert.Equal(t, "M300", *f.in.DroneModel)
	assert.Equal(t, uint64(4), *f.in.AirspaceID)
	assert.Equal(t, "2030-06-01 10:00:00", *f.in.PlannedStart)
	assert.Nil(t, f.in.PlannedEnd)
	assert.Len(t, f.in.Route, 2)

	rec = call(h.Create, http.MethodPost, "/", `{`, operator)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlightRejectPassesReason(t *testing.T) {
	f := &fakeFlights{}
	rec := call(NewFlightHandler(f, zap.NewNop()).Reject, http.MethodPost, "/", `{"reason":"weather"}`, admin, "id", "3")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "weather", f.reason)
	assert.Equal(t, uint64(3), f.id)
}

type fakeAirspaces struct {
	Airspaces
	id         uint64
	start, end string
}

func (f *fakeAirspaces) CheckConflict(_ context.Context, id uint64, start, end string) (bool, error) {
	f.id, f.start, f.end = id, start, end
	if start == "" {
		return false, &service.ValidationError{Fields: map[string]string{"start_time": "required"}}
	}
	return id == 3, nil
}

func TestAirspaceCheckConflict(t *testing.T) {
	f := &fakeAirspaces{}
	h := NewAirspaceHandler(f, zap.NewNop())
	body := `{"start_time":"2030-06-01 10:00:00","end_time":"2030-06-01T12:00:00Z"}`

	rec := call(h.CheckConflict, http.MethodPost, "/", body, operator, "id", "3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"has_conflict": true}, decode(t, rec))
	assert.Equal(t, "2030-06-01 10:00:00", f.start)
	assert.Equal(t, "2030-06-01T12:00:00Z", f.end)

	rec = call(h.CheckConflict, http.MethodPost, "/", body, operator, "id", "4")
	assert.Equal(t, map[string]any{"has_conflict": false}, decode(t, rec))

	rec = call(h.CheckConflict, http.MethodPost, "/", `{"end_time":"2030-06-01 12:00:00"}`, operator, "id", "3")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode(t, rec)["error"])

	rec = call(h.CheckConflict, http.MethodPost, "/", body, operator, "id", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeMissions struct {
	Missions
	err error
}

func (f *fakeMissions) Launch(_ context.Context, who service.Caller, appID uint64) (*model.Mission, error) {
	if f.err != nil {
		return nil, f.err
	}
	end := time.Date(2030, 6, 1, 11, 0, 0, 0, time.UTC)
	return &model.Mission{
		ID: 1, ApplicationID: appID, OperatorID: who.UserID, TotalTime: 60,
		Route:     model.Route{{0, 0}, {0, 1}},
		StartTime: end.Add(-time.Hour), EndTime: &end, Status: model.MissionExecuting,
	}, nil
}

func TestLaunchRendersDerivedFields(t *testing.T) {
	rec := call(NewMissionHandler(&fakeMissions{}, zap.NewNop()).Launch, http.MethodPost, "/", "", operator, "id", "5")
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(5), body["flight_application_id"])
	assert.Equal(t, "executing", body["status"])
	assert.InDelta(t, 111.19, body["route_distance"], 0.01)
	assert.InDelta(t, 111.19, body["flight_speed"], 0.01)
}

func TestLaunchErrors(t *testing.T) {
	cases := map[error]int{
		service.ErrOutOfWindow:      http.StatusUnprocessableEntity,
		service.ErrInsufficientTime: http.StatusUnprocessableEntity,
		service.ErrAirspaceNoFly:    http.StatusConflict,
		service.ErrNotOwner:         http.StatusForbidden,
	}
	for err, status := range cases {
		rec := call(NewMissionHandler(&fakeMissions{err: err}, zap.NewNop()).Launch, http.MethodPost, "/", "", operator, "id", "5")
		assert.Equal(t, status, rec.Code, err.Error())
	}
}

type fakeIngest struct {
	batch []service.ResultInput
}

func (f *fakeIngest) SubmitResult(_ context.Context, in service.ResultInput) (int, error) {
	if in.TargetType == "" {
		return 0, &service.ValidationError{Fields: map[string]string{"target_type": "required"}}
	}
	return 1, nil
}

func (f *fakeIngest) SubmitResults(_ context.Context, in []service.ResultInput) (int, error) {
	f.batch = in
	return len(in), nil
}

func TestIngest(t *testing.T) {
	f := &fakeIngest{}
	h := NewIngestHandler(f, zap.NewNop())

	rec := call(h.Result, http.MethodPost, "/", `{"mission_id":1,"video_id":2,"target_type":"crack"}`, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["created"])

	rec = call(h.Result, http.MethodPost, "/", `{"mission_id":1,"video_id":2}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode(t, rec)["error"])

	rec = call(h.Batch, http.MethodPost, "/", `{"results":[{"mission_id":1},{"mission_id":1}]}`, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, f.batch, 2)
}

type fakeReports struct {
	Reports
	got  service.ReportRange
	days int
}

func (f *fakeReports) Overview(_ context.Context, r service.ReportRange) (*service.Overview, error) {
	f.got = r
	return &service.Overview{}, nil
}

func (f *fakeReports) Trend(_ context.Context, days int) ([]service.TrendPoint, error) {
	f.days = days
	return []service.TrendPoint{}, nil
}

func TestDashboardRange(t *testing.T) {
	f := &fakeReports{}
	h := NewDashboardHandler(f, service.NewTimeNormalizer(0), zap.NewNop())

	rec := call(h.Overview, http.MethodGet, "/?from=2030-06-01&to=2030-06-02", "", operator)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC), f.got.From)
	assert.Equal(t, time.Date(2030, 6, 2, 23, 59, 59, 0, time.UTC), f.got.To)
	assert.Equal(t, operator.UserID, f.got.OperatorID)

	rec = call(h.Overview, http.MethodGet, "/?from=2030-06-01T00:00:00Z", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.got.OperatorID)
	assert.True(t, f.got.To.IsZero())

	rec = call(h.Overview, http.MethodGet, "/?from=2030-06-03&to=2030-06-01", "", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = call(h.Overview, http.MethodGet, "/?from=yesterday", "", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardTrendDays(t *testing.T) {
	f := &fakeReports{}
	h := NewDashboardHandler(f, service.NewTimeNormalizer(8), zap.NewNop())

	require.Equal(t, http.StatusOK, call(h.Trend, http.MethodGet, "/", "", admin).Code)
	assert.Equal(t, service.TrendDays, f.days)
	require.Equal(t, http.StatusOK, call(h.Trend, http.MethodGet, "/?days=30", "", admin).Code)
	assert.Equal(t, 30, f.days)
	assert.Equal(t, http.StatusBadRequest, call(h.Trend, http.MethodGet, "/?days=0", "", admin).Code)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	stats := func() service.SweeperStats { return service.SweeperStats{Running: true, TotalExpired: 3} }

	rec := call(NewHealthHandler(pinger{}, stats).Health, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(3), body["sweeper"].(map[string]any)["total_expired"])

	rec = call(NewHealthHandler(pinger{errors.New("down")}, nil).Health, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}
