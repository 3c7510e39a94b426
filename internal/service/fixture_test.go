package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/highway-inspection/internal/model"
)

var (
	admin    = Caller{UserID: 1, Role: model.RoleAdmin}
	operator = Caller{UserID: 2, Role: model.RoleOperator}
	intruder = Caller{UserID: 3, Role: model.RoleOperator}

	// t0 is 10:00 at +08:00.
	t0 = time.Date(2030, 6, 1, 2, 0, 0, 0, time.UTC)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	ctx       context.Context
	mem       *memStore
	store     Store
	events    *recordingPublisher
	airspaces *AirspaceService
	flights   *FlightService
	missions  *MissionService
	artifacts *ArtifactService
	ingest    *IngestService

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		mem:    newMemStore(),
		events: &recordingPublisher{},
		now:    t0.Add(-time.Hour),
	}
	f.mem.now = f.clock
	f.store = f.mem.view()
	d := Deps{
		Store:  f.store,
		Events: f.events,
		Now:    f.clock,
		Times:  NewTimeNormalizer(8),
	}
	f.airspaces = NewAirspaceService(d)
	f.flights = NewFlightService(d)
	f.missions = NewMissionService(d)
	f.artifacts = NewArtifactService(d)
	f.ingest = NewIngestService(d)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func ptr[T any](v T) *T { return &v }

func rfc(t time.Time) *string { return ptr(t.Format(time.RFC3339)) }

var polygon = model.Geometry(`{"type":"Polygon","coordinates":[[[116.3,39.9],[116.4,39.9],[116.4,40.0],[116.3,39.9]]]}`)

func (f *fixture) airspace(t *testing.T, number string, kind model.AirspaceKind) *model.Airspace {
	t.Helper()
	a, err := f.airspaces.Create(f.ctx, admin, AirspaceInput{
		Name:   ptr("G4 section " + number),
		Number: ptr(number),
		Kind:   ptr(kind),
		Area:   polygon,
	})
	require.NoError(t, err)
	return a
}

var route = model.Route{{116.30, 39.90}, {116.35, 39.95}, {116.40, 39.98}}

func appInput(airspaceID uint64, start, end time.Time, total int) ApplicationInput {
	return ApplicationInput{
		DroneModel:   ptr("DJI M300 RTK"),
		TaskPurpose:  ptr("pavement crack survey"),
		AirspaceID:   ptr(airspaceID),
		PlannedStart: rfc(start),
		PlannedEnd:   rfc(end),
		TotalTime:    ptr(total),
		Route:        route,
	}
}

func (f *fixture) draft(t *testing.T, c Caller, airspaceID uint64, start, end time.Time, total int) *model.FlightApplication {
	t.Helper()
	app, err := f.flights.Create(f.ctx, c, appInput(airspaceID, start, end, total))
	require.NoError(t, err)
	return app
}

func (f *fixture) pending(t *testing.T, c Caller, airspaceID uint64, start, end time.Time, total int) *model.FlightApplication {
	t.Helper()
	app := f.draft(t, c, airspaceID, start, end, total)
	app, err := f.flights.Submit(f.ctx, c, app.ID)
	require.NoError(t, err)
	return app
}

func (f *fixture) approved(t *testing.T, c Caller, airspaceID uint64, start, end time.Time, total int) *model.FlightApplication {
	t.Helper()
	app := f.pending(t, c, airspaceID, start, end, total)
	app, err := f.flights.Approve(f.ctx, admin, app.ID)
	require.NoError(t, err)
	return app
}

func (f *fixture) app(t *testing.T, id uint64) *model.FlightApplication {
	t.Helper()
	a, err := f.store.Applications().GetByID(f.ctx, id)
	require.NoError(t, err)
	return a
}

func (f *fixture) airspaceStatus(t *testing.T, id uint64) model.AirspaceStatus {
	t.Helper()
	a, err := f.store.Airspaces().GetByID(f.ctx, id)
	require.NoError(t, err)
	return a.Status
}

func (f *fixture) reservations(t *testing.T, appID uint64) []model.Reservation {
	t.Helper()
	rs, err := f.store.Reservations().ListByApplication(f.ctx, appID)
	require.NoError(t, err)
	return rs
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
