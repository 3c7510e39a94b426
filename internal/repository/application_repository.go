package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
)

// ApplicationRepo reads and writes flight_applications.
type ApplicationRepo struct{ q querier }

const applicationCols = `id, user_id, drone_model, task_purpose, planned_airspace_id,
	planned_start_time, planned_end_time, total_time, route, status,
	is_long_term, long_term_start, long_term_end, rejection_reason, created_at, updated_at`

func scanApplication(row interface{ Scan(...any) error }) (model.FlightApplication, error) {
	var (
		a              model.FlightApplication
		ltStart, ltEnd sql.NullTime
		reason         sql.NullString
	)
	err := row.Scan(&a.ID, &a.UserID, &a.DroneModel, &a.TaskPurpose, &a.AirspaceID,
		&a.PlannedStart, &a.PlannedEnd, &a.TotalTime, &a.Route, &a.Status,
		&a.IsLongTerm, &ltStart, &ltEnd, &reason, &a.CreatedAt, &a.UpdatedAt)
	if ltStart.Valid {
		a.LongTermStart = &ltStart.Time
	}
	if ltEnd.Valid {
		a.LongTermEnd = &ltEnd.Time
	}
	if reason.Valid {
		a.RejectionReason = &reason.String
	}
	return a, err
}

func (r ApplicationRepo) Create(ctx context.Context, a *model.FlightApplication) error {
	res, err := r.q.ExecContext(ctx, `INSERT INTO flight_applications
		(user_id, drone_model, task_purpose, planned_airspace_id, planned_start_time, planned_end_time,
		 total_time, route, status, is_long_term, long_term_start, long_term_end, rejection_reason)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.UserID, a.DroneModel, a.TaskPurpose, a.AirspaceID, a.PlannedStart, a.PlannedEnd,
		a.TotalTime, a.Route, a.Status, a.IsLongTerm, a.LongTermStart, a.LongTermEnd, a.RejectionReason)
	if err != nil {
		return err
	}
	if a.ID, err = lastID(res); err != nil {
		return err
	}
	got, err := r.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = *got
	return nil
}

func (r ApplicationRepo) get(ctx context.Context, id uint64, lock string) (*model.FlightApplication, error) {
	a, err := scanApplication(r.q.QueryRowContext(ctx,
		"SELECT "+applicationCols+" FROM flight_applications WHERE id=?"+lock, id))
	if err != nil {
		return nil, noRows(err, "flight application", id)
	}
	return &a, nil
}

func (r ApplicationRepo) GetByID(ctx context.Context, id uint64) (*model.FlightApplication, error) {
	return r.get(ctx, id, "")
}

func (r ApplicationRepo) GetForUpdate(ctx context.Context, id uint64) (*model.FlightApplication, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r ApplicationRepo) Update(ctx context.Context, a *model.FlightApplication) error {
	res, err := r.q.ExecContext(ctx, `UPDATE flight_applications SET
		drone_model=?, task_purpose=?, planned_airspace_id=?, planned_start_time=?, planned_end_time=?,
		total_time=?, route=?, status=?, is_long_term=?, long_term_start=?, long_term_end=?, rejection_reason=?
		WHERE id=?`,
		a.DroneModel, a.TaskPurpose, a.AirspaceID, a.PlannedStart, a.PlannedEnd,
		a.TotalTime, a.Route, a.Status, a.IsLongTerm, a.LongTermStart, a.LongTermEnd, a.RejectionReason, a.ID)
	if err != nil {
		return err
	}
	return checkAffected(res, "flight application", a.ID)
}

// Delete removes the application; its airspace_usage rows cascade.
func (r ApplicationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM flight_applications WHERE id=?", id)
	if err != nil {
		return err
	}
	return checkAffected(res, "flight application", id)
}

func (r ApplicationRepo) List(ctx context.Context, f service.ApplicationFilter) ([]model.FlightApplication, int, error) {
	var w filter
	if f.UserID != 0 {
		w.add("user_id=?", f.UserID)
	}
	if f.Status != "" {
		w.add("status=?", f.Status)
	}
	var total int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM flight_applications WHERE "+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args := append(append([]any{}, w.args...), f.PageSize, f.Offset())
	out, err := r.query(ctx, "SELECT "+applicationCols+" FROM flight_applications WHERE "+w.String()+
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?", args...)
	return out, total, err
}

func (r ApplicationRepo) ListPending(ctx context.Context) ([]model.FlightApplication, error) {
	return r.query(ctx, "SELECT "+applicationCols+" FROM flight_applications WHERE status=? ORDER BY created_at, id",
		model.ApplicationPending)
}

func (r ApplicationRepo) ListOverdueForUpdate(ctx context.Context, now time.Time) ([]model.FlightApplication, error) {
	return r.query(ctx, "SELECT "+applicationCols+" FROM flight_applications WHERE status IN (?,?) AND planned_end_time<? ORDER BY id FOR UPDATE",
		model.ApplicationPending, model.ApplicationApproved, now)
}

func (r ApplicationRepo) query(ctx context.Context, q string, args ...any) ([]model.FlightApplication, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.FlightApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
