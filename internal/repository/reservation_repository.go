package repository

import (
	"context"
	"time"

	"github.com/iliyamo/highway-inspection/internal/model"
)

// ReservationRepo reads and writes airspace_usage, one row per claim an
// application made on its airspace.
type ReservationRepo struct{ q querier }

const reservationCols = `id, flight_application_id, airspace_id, start_time, end_time, status, created_at`

func scanReservation(row interface{ Scan(...any) error }) (model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(&res.ID, &res.ApplicationID, &res.AirspaceID, &res.Start, &res.End, &res.Status, &res.CreatedAt)
	return res, err
}

func (r ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	result, err := r.q.ExecContext(ctx,
		"INSERT INTO airspace_usage (flight_application_id, airspace_id, start_time, end_time, status) VALUES (?,?,?,?,?)",
		res.ApplicationID, res.AirspaceID, res.Start, res.End, res.Status)
	if err != nil {
		return err
	}
	res.ID, err = lastID(result)
	res.CreatedAt = time.Now().UTC()
	return err
}

// Overlapping uses the same three-way overlap test as service.Overlaps:
// the existing row starts at or before the request and ends after its
// start, or starts before its end and ends at or after it, or lies inside
// it.
func (r ReservationRepo) Overlapping(ctx context.Context, airspaceID uint64, start, end time.Time, excludeAppID uint64, statuses []model.ReservationStatus) ([]model.Reservation, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	var w filter
	w.add("airspace_id=?", airspaceID)
	if excludeAppID != 0 {
		w.add("flight_application_id<>?", excludeAppID)
	}
	in := make([]any, len(statuses))
	for i, s := range statuses {
		in[i] = s
	}
	w.add("status IN ("+placeholders(len(in))+")", in...)
	w.add(`((start_time<=? AND end_time>?) OR (start_time<? AND end_time>=?) OR (start_time>=? AND end_time<=?))`,
		start, start, end, end, start, end)

	rows, err := r.q.QueryContext(ctx, "SELECT "+reservationCols+" FROM airspace_usage WHERE "+w.String()+" ORDER BY start_time", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// AdvanceByApplication moves every non-released row of the application.
func (r ReservationRepo) AdvanceByApplication(ctx context.Context, appID uint64, status model.ReservationStatus) (int, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE airspace_usage SET status=? WHERE flight_application_id=? AND status<>?",
		status, appID, model.ReservationReleased)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r ReservationRepo) ListByApplication(ctx context.Context, appID uint64) ([]model.Reservation, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+reservationCols+" FROM airspace_usage WHERE flight_application_id=? ORDER BY id", appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
