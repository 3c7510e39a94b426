package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/highway-inspection/internal/database"
	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
	"github.com/iliyamo/highway-inspection/internal/utils"
)

// openTestDB connects to the database named by TEST_DB_* and skips the
// test when none is configured.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	name := os.Getenv("TEST_DB_NAME")
	if name == "" {
		t.Skip("TEST_DB_NAME not set")
	}
	ctx := context.Background()
	db, err := database.Open(ctx, os.Getenv("TEST_DB_USER"), os.Getenv("TEST_DB_PASS"),
		envOr("TEST_DB_HOST", "127.0.0.1"), envOr("TEST_DB_PORT", "3306"), name)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, db))
	for _, table := range []string{"alert_events", "analysis_results", "videos", "missions", "airspace_usage", "flight_applications", "airspaces", "refresh_tokens", "users"} {
		_, err := db.ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func TestMySQLLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepo(db)
	opID, err := users.Create(ctx, "op1", "secret-pass", model.RoleOperator, 4)
	require.NoError(t, err)
	_, err = users.Create(ctx, "op1", "secret-pass", model.RoleOperator, 4)
	assert.ErrorIs(t, err, ErrUsernameTaken)
	adminID, err := users.Create(ctx, "root", "secret-pass", model.RoleAdmin, 4)
	require.NoError(t, err)

	clock := time.Now().UTC().Truncate(time.Second)
	now := func() time.Time { return clock }
	d := service.Deps{Store: NewStore(db), Now: now, Times: service.NewTimeNormalizer(8)}
	airspaces := service.NewAirspaceService(d)
	flights := service.NewFlightService(d)
	missions := service.NewMissionService(d)
	admin := service.Caller{UserID: adminID, Role: model.RoleAdmin}
	op := service.Caller{UserID: opID, Role: model.RoleOperator}

	as, err := airspaces.Create(ctx, admin, service.AirspaceInput{
		Name: ptr("G4 K12"), Number: ptr("AS001"), Kind: ptr(model.KindSuitable),
		Area: model.Geometry(`{"type":"Polygon","coordinates":[]}`),
	})
	require.NoError(t, err)
	_, err = airspaces.Create(ctx, admin, service.AirspaceInput{
		Name: ptr("dup"), Number: ptr("AS001"), Kind: ptr(model.KindSuitable), Area: model.Geometry(`{}`),
	})
	assert.ErrorIs(t, err, service.ErrDuplicateNumber)

	start, end := clock.Add(-10*time.Minute), clock.Add(2*time.Hour)
	in := service.ApplicationInput{
		DroneModel: ptr("M300"), TaskPurpose: ptr("survey"), AirspaceID: ptr(as.ID),
		PlannedStart: ptr(start.Format(time.RFC3339)), PlannedEnd: ptr(end.Format(time.RFC3339)),
		TotalTime: ptr(60), Route: model.Route{{116.3, 39.9}, {116.4, 40.0}},
	}
	app, err := flights.Create(ctx, op, in)
	require.NoError(t, err)
	_, err = flights.Submit(ctx, op, app.ID)
	require.NoError(t, err)

	other, err := flights.Create(ctx, op, in)
	require.NoError(t, err)
	_, err = flights.Submit(ctx, op, other.ID)
	assert.ErrorIs(t, err, service.ErrAirspaceConflict)

	_, err = flights.Approve(ctx, admin, app.ID)
	require.NoError(t, err)
	m, err := missions.Launch(ctx, op, app.ID)
	require.NoError(t, err)
	assert.Equal(t, as.ID, m.AirspaceID)
	assert.Equal(t, 60, m.TotalTime)
	assert.Equal(t, in.Route, m.Route)

	got, err := airspaces.Get(ctx, as.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AirspaceOccupied, got.Status)

	clock = clock.Add(61 * time.Minute)
	n, err := missions.SweepOverdueMissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := NewStore(db).Reservations().ListByApplication(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, model.ReservationReleased, res[0].Status)

	stats, err := service.NewReportService(NewReportRepo(db), now).Overview(ctx, service.ReportRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Flights.TotalMissions)
	require.Len(t, stats.Airspace, 1)
	assert.Equal(t, as.ID, stats.Airspace[0].AirspaceID)
}

func ptr[T any](v T) *T { return &v }

func TestMySQLUserUpdateDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepo(db)
	id, err := users.Create(ctx, "op2", "secret-pass", model.RoleOperator, 4)
	require.NoError(t, err)

	role := model.RoleAdmin
	u, err := users.Update(ctx, id, ptr("new-pass"), &role, 4)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "new-pass"))

	_, err = users.Update(ctx, id+1000, nil, &role, 4)
	assert.ErrorIs(t, err, service.ErrNotFound)

	require.NoError(t, users.Delete(ctx, id))
	assert.ErrorIs(t, users.Delete(ctx, id), service.ErrNotFound)
}

func TestMySQLPendingQueueOldestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepo(db)
	opID, err := users.Create(ctx, "op3", "secret-pass", model.RoleOperator, 4)
	require.NoError(t, err)
	adminID, err := users.Create(ctx, "root3", "secret-pass", model.RoleAdmin, 4)
	require.NoError(t, err)

	d := service.Deps{Store: NewStore(db), Times: service.NewTimeNormalizer(8)}
	airspaces := service.NewAirspaceService(d)
	flights := service.NewFlightService(d)
	admin := service.Caller{UserID: adminID, Role: model.RoleAdmin}
	op := service.Caller{UserID: opID, Role: model.RoleOperator}
	as, err := airspaces.Create(ctx, admin, service.AirspaceInput{
		Name: ptr("G4 K30"), Number: ptr("AS030"), Kind: ptr(model.KindSuitable),
		Area: model.Geometry(`{"type":"Polygon","coordinates":[]}`),
	})
	require.NoError(t, err)

	// the later application asks for the earlier window
	base := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	var ids []uint64
	for _, start := range []time.Time{base.Add(5 * time.Hour), base} {
		app, err := flights.Create(ctx, op, service.ApplicationInput{
			DroneModel: ptr("M300"), TaskPurpose: ptr("survey"), AirspaceID: ptr(as.ID),
			PlannedStart: ptr(start.Format(time.RFC3339)), PlannedEnd: ptr(start.Add(time.Hour).Format(time.RFC3339)),
			TotalTime: ptr(30), Route: model.Route{{116.3, 39.9}, {116.4, 40.0}},
		})
		require.NoError(t, err)
		_, err = flights.Submit(ctx, op, app.ID)
		require.NoError(t, err)
		ids = append(ids, app.ID)
	}

	q, err := flights.ListPending(ctx, admin)
	require.NoError(t, err)
	require.Len(t, q, 2)
	assert.Equal(t, ids, []uint64{q[0].ID, q[1].ID})
}
