package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/highway-inspection/internal/database"
	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
)

// MissionRepo reads and writes missions. The airspace and flight length
// come from the originating application.
type MissionRepo struct{ q querier }

const missionSelect = `SELECT m.id, m.flight_application_id, m.operator_id, fa.planned_airspace_id, fa.total_time,
	m.route, m.start_time, m.end_time, m.status, m.created_at, m.updated_at
	FROM missions m JOIN flight_applications fa ON fa.id = m.flight_application_id`

func scanMission(row interface{ Scan(...any) error }) (model.Mission, error) {
	var (
		m   model.Mission
		end sql.NullTime
	)
	err := row.Scan(&m.ID, &m.ApplicationID, &m.OperatorID, &m.AirspaceID, &m.TotalTime,
		&m.Route, &m.StartTime, &end, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if end.Valid {
		m.EndTime = &end.Time
	}
	return m, err
}

func (r MissionRepo) Create(ctx context.Context, m *model.Mission) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO missions (flight_application_id, operator_id, route, start_time, end_time, status) VALUES (?,?,?,?,?,?)",
		m.ApplicationID, m.OperatorID, m.Route, m.StartTime, m.EndTime, m.Status)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return fmt.Errorf("%w: application %d already launched", service.ErrInvalidState, m.ApplicationID)
		}
		return err
	}
	if m.ID, err = lastID(res); err != nil {
		return err
	}
	got, err := r.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	*m = *got
	return nil
}

func (r MissionRepo) get(ctx context.Context, id uint64, lock string) (*model.Mission, error) {
	m, err := scanMission(r.q.QueryRowContext(ctx, missionSelect+" WHERE m.id=?"+lock, id))
	if err != nil {
		return nil, noRows(err, "mission", id)
	}
	return &m, nil
}

func (r MissionRepo) GetByID(ctx context.Context, id uint64) (*model.Mission, error) {
	return r.get(ctx, id, "")
}

func (r MissionRepo) GetForUpdate(ctx context.Context, id uint64) (*model.Mission, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r MissionRepo) Update(ctx context.Context, m *model.Mission) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE missions SET route=?, start_time=?, end_time=?, status=? WHERE id=?",
		m.Route, m.StartTime, m.EndTime, m.Status, m.ID)
	if err != nil {
		return err
	}
	return checkAffected(res, "mission", m.ID)
}

func (r MissionRepo) List(ctx context.Context, f service.MissionFilter) ([]model.Mission, int, error) {
	var w filter
	if f.OperatorID != 0 {
		w.add("m.operator_id=?", f.OperatorID)
	}
	if f.Status != "" {
		w.add("m.status=?", f.Status)
	}
	var total int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM missions m WHERE "+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args := append(append([]any{}, w.args...), f.PageSize, f.Offset())
	out, err := r.query(ctx, missionSelect+" WHERE "+w.String()+" ORDER BY m.start_time DESC, m.id DESC LIMIT ? OFFSET ?", args...)
	return out, total, err
}

// ListOverdueForUpdate locks executing missions whose end has passed.
func (r MissionRepo) ListOverdueForUpdate(ctx context.Context, now time.Time) ([]model.Mission, error) {
	return r.query(ctx, missionSelect+" WHERE m.status=? AND m.end_time IS NOT NULL AND m.end_time<=? ORDER BY m.id FOR UPDATE",
		model.MissionExecuting, now)
}

func (r MissionRepo) query(ctx context.Context, q string, args ...any) ([]model.Mission, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
