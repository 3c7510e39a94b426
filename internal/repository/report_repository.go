package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
)

// ReportRepo runs the dashboard aggregates. It implements
// service.ReportStore.
type ReportRepo struct{ q querier }

// NewReportRepo binds the aggregates to db.
func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{q: db} }

func rangeFilter(w *filter, col string, r service.ReportRange) {
	if !r.From.IsZero() {
		w.add(col+">=?", r.From)
	}
	if !r.To.IsZero() {
		w.add(col+"<?", r.To)
	}
}

func (r *ReportRepo) CompletedMissions(ctx context.Context, rg service.ReportRange) (int, float64, error) {
	var w filter
	w.add("m.status=?", model.MissionCompleted)
	w.add("m.end_time IS NOT NULL")
	rangeFilter(&w, "m.start_time", rg)
	if rg.OperatorID != 0 {
		w.add("m.operator_id=?", rg.OperatorID)
	}
	var (
		n       int
		seconds sql.NullFloat64
	)
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*), SUM(TIMESTAMPDIFF(SECOND, m.start_time, m.end_time)) FROM missions m WHERE "+w.String(),
		w.args...).Scan(&n, &seconds)
	if err != nil {
		return 0, 0, err
	}
	return n, seconds.Float64 / 3600, nil
}

func (r *ReportRepo) AirspaceUsage(ctx context.Context, rg service.ReportRange) ([]service.AirspaceUsageRow, error) {
	var w filter
	w.add("u.status IN (?,?,?)", model.ReservationApproved, model.ReservationActive, model.ReservationReleased)
	rangeFilter(&w, "u.start_time", rg)
	from := "airspace_usage u JOIN airspaces a ON a.id = u.airspace_id"
	if rg.OperatorID != 0 {
		from += " JOIN flight_applications fa ON fa.id = u.flight_application_id"
		w.add("fa.user_id=?", rg.OperatorID)
	}
	rows, err := r.q.QueryContext(ctx, `SELECT a.id, a.name, COUNT(*),
		COALESCE(SUM(TIMESTAMPDIFF(SECOND, u.start_time, u.end_time)), 0)
		FROM `+from+` WHERE `+w.String()+`
		GROUP BY a.id, a.name ORDER BY COUNT(*) DESC, a.id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []service.AirspaceUsageRow
	for rows.Next() {
		var (
			row     service.AirspaceUsageRow
			seconds float64
		)
		if err := rows.Scan(&row.AirspaceID, &row.AirspaceName, &row.UsageCount, &seconds); err != nil {
			return nil, err
		}
		row.TotalHours = seconds / 3600
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *ReportRepo) AlertCounts(ctx context.Context, rg service.ReportRange) (service.AlertCounts, error) {
	var w filter
	rangeFilter(&w, "a.occurred_time", rg)
	from := "alert_events a"
	if rg.OperatorID != 0 {
		from += " JOIN missions m ON m.id = a.mission_id"
		w.add("m.operator_id=?", rg.OperatorID)
	}
	c := service.AlertCounts{ByType: map[string]int{}, BySeverity: map[string]int{}, ByStatus: map[string]int{}}
	rows, err := r.q.QueryContext(ctx,
		"SELECT a.event_type, a.severity, a.status, COUNT(*) FROM "+from+" WHERE "+w.String()+
			" GROUP BY a.event_type, a.severity, a.status", w.args...)
	if err != nil {
		return c, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			typ, sev, status string
			n                int
		)
		if err := rows.Scan(&typ, &sev, &status, &n); err != nil {
			return c, err
		}
		c.Total += n
		c.ByType[typ] += n
		c.BySeverity[sev] += n
		c.ByStatus[status] += n
	}
	return c, rows.Err()
}

func (r *ReportRepo) AlertsPerDay(ctx context.Context, from, to time.Time) (map[string]int, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT DATE_FORMAT(occurred_time, '%Y-%m-%d'), COUNT(*)
		FROM alert_events WHERE occurred_time>=? AND occurred_time<=?
		GROUP BY DATE_FORMAT(occurred_time, '%Y-%m-%d')`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			day string
			n   int
		)
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		out[day] = n
	}
	return out, rows.Err()
}
