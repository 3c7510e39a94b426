package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/highway-inspection/internal/database"
	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
)

// AirspaceRepo reads and writes the airspaces table.
type AirspaceRepo struct{ q querier }

const airspaceCols = `id, name, number, type, area, remark, status, created_at, updated_at`

func scanAirspace(row interface{ Scan(...any) error }) (model.Airspace, error) {
	var (
		a      model.Airspace
		remark sql.NullString
	)
	err := row.Scan(&a.ID, &a.Name, &a.Number, &a.Kind, &a.Area, &remark, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if remark.Valid {
		a.Remark = &remark.String
	}
	return a, err
}

func (r AirspaceRepo) Create(ctx context.Context, a *model.Airspace) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO airspaces (name, number, type, area, remark, status) VALUES (?,?,?,?,?,?)",
		a.Name, a.Number, a.Kind, a.Area, a.Remark, a.Status)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return service.ErrDuplicateNumber
		}
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

func (r AirspaceRepo) get(ctx context.Context, id uint64, lock string) (*model.Airspace, error) {
	a, err := scanAirspace(r.q.QueryRowContext(ctx, "SELECT "+airspaceCols+" FROM airspaces WHERE id=?"+lock, id))
	if err != nil {
		return nil, noRows(err, "airspace", id)
	}
	return &a, nil
}

func (r AirspaceRepo) GetByID(ctx context.Context, id uint64) (*model.Airspace, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate locks the airspace row until the transaction ends.
func (r AirspaceRepo) GetForUpdate(ctx context.Context, id uint64) (*model.Airspace, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r AirspaceRepo) NumberExists(ctx context.Context, number string, excludeID uint64) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM airspaces WHERE number=? AND id<>?", number, excludeID).Scan(&n)
	return n > 0, err
}

func (r AirspaceRepo) Update(ctx context.Context, a *model.Airspace) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE airspaces SET name=?, number=?, type=?, area=?, remark=?, status=? WHERE id=?",
		a.Name, a.Number, a.Kind, a.Area, a.Remark, a.Status, a.ID)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return service.ErrDuplicateNumber
		}
		return err
	}
	return checkAffected(res, "airspace", a.ID)
}

func (r AirspaceRepo) SetStatus(ctx context.Context, id uint64, status model.AirspaceStatus) error {
	res, err := r.q.ExecContext(ctx, "UPDATE airspaces SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "airspace", id)
}

func (r AirspaceRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM airspaces WHERE id=?", id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return service.ErrHasDependents
		}
		return err
	}
	return checkAffected(res, "airspace", id)
}

func (r AirspaceRepo) List(ctx context.Context, f service.AirspaceFilter) ([]model.Airspace, int, error) {
	var w filter
	if f.Kind != "" {
		w.add("type=?", f.Kind)
	}
	if f.Status != "" {
		w.add("status=?", f.Status)
	}
	var total int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM airspaces WHERE "+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args := append(append([]any{}, w.args...), f.PageSize, f.Offset())
	out, err := r.query(ctx, "SELECT "+airspaceCols+" FROM airspaces WHERE "+w.String()+" ORDER BY id LIMIT ? OFFSET ?", args...)
	return out, total, err
}

func (r AirspaceRepo) ListAvailable(ctx context.Context) ([]model.Airspace, error) {
	return r.query(ctx, "SELECT "+airspaceCols+" FROM airspaces WHERE type<>? AND status=? ORDER BY id",
		model.KindNoFly, model.AirspaceAvailable)
}

func (r AirspaceRepo) query(ctx context.Context, q string, args ...any) ([]model.Airspace, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Airspace
	for rows.Next() {
		a, err := scanAirspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r AirspaceRepo) CountApplications(ctx context.Context, id uint64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM flight_applications WHERE planned_airspace_id=?", id).Scan(&n)
	return n, err
}

func (r AirspaceRepo) HasExecutingMission(ctx context.Context, id uint64) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM missions m
		JOIN flight_applications fa ON fa.id = m.flight_application_id
		WHERE fa.planned_airspace_id=? AND m.status=?`, id, model.MissionExecuting).Scan(&n)
	return n > 0, err
}
