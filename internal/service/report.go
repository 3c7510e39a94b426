package service

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/highway-inspection/internal/model"
)

// TrendDays is the length of the alert trend on the dashboard.
const TrendDays = 7

// ReportRange narrows aggregates to a date range and optionally to one
// operator. Zero times are open bounds.
type ReportRange struct {
	From       time.Time
	To         time.Time
	OperatorID uint64
}

// AirspaceUsageRow is the usage of one airspace by reservations that were
// confirmed at some point.
type AirspaceUsageRow struct {
	AirspaceID   uint64  `json:"airspace_id"`
	AirspaceName string  `json:"airspace_name"`
	UsageCount   int     `json:"usage_count"`
	TotalHours   float64 `json:"total_duration"`
}

// AlertCounts aggregates alerts by attribute.
type AlertCounts struct {
	Total      int            `json:"total_alerts"`
	ByType     map[string]int `json:"type_stats"`
	BySeverity map[string]int `json:"severity_stats"`
	ByStatus   map[string]int `json:"status_stats"`
}

// ReportStore runs the read-only aggregate queries.
type ReportStore interface {
	// CompletedMissions returns the count and summed flight hours of
	// completed missions.
	CompletedMissions(ctx context.Context, r ReportRange) (int, float64, error)
	AirspaceUsage(ctx context.Context, r ReportRange) ([]AirspaceUsageRow, error)
	AlertCounts(ctx context.Context, r ReportRange) (AlertCounts, error)
	// AlertsPerDay maps a UTC date (2006-01-02) to its alert count.
	AlertsPerDay(ctx context.Context, from, to time.Time) (map[string]int, error)
}

// FlightStats summarizes completed missions.
type FlightStats struct {
	TotalMissions   int     `json:"total_missions"`
	TotalHours      float64 `json:"total_duration"`
	AverageDuration float64 `json:"average_duration"`
}

// TrendPoint is the alert count of one day.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Overview is the dashboard payload.
type Overview struct {
	Flights  FlightStats        `json:"flight_statistics"`
	Airspace []AirspaceUsageRow `json:"airspace_usage"`
	Alerts   AlertCounts        `json:"alert_statistics"`
	Trend    []TrendPoint       `json:"alert_trend"`
}

// ReportService builds dashboard aggregates.
type ReportService struct {
	reports ReportStore
	clock   func() time.Time
}

// NewReportService builds the reporting service. A nil now uses time.Now.
func NewReportService(reports ReportStore, now func() time.Time) *ReportService {
	if now == nil {
		now = time.Now
	}
	return &ReportService{reports: reports, clock: now}
}

// Scope restricts operators to their own missions and reservations.
func Scope(caller Caller, r ReportRange) ReportRange {
	if !caller.IsAdmin() {
		r.OperatorID = caller.UserID
	}
	return r
}

// Flights returns completed-mission statistics.
func (s *ReportService) Flights(ctx context.Context, r ReportRange) (FlightStats, error) {
	n, hours, err := s.reports.CompletedMissions(ctx, r)
	if err != nil {
		return FlightStats{}, err
	}
	st := FlightStats{TotalMissions: n, TotalHours: round2(hours)}
	if n > 0 {
		st.AverageDuration = round2(hours / float64(n))
	}
	return st, nil
}

// Airspace returns per-airspace usage, most used first.
func (s *ReportService) Airspace(ctx context.Context, r ReportRange) ([]AirspaceUsageRow, error) {
	rows, err := s.reports.AirspaceUsage(ctx, r)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].TotalHours = round2(rows[i].TotalHours)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].UsageCount != rows[j].UsageCount {
			return rows[i].UsageCount > rows[j].UsageCount
		}
		return rows[i].AirspaceID < rows[j].AirspaceID
	})
	if rows == nil {
		rows = []AirspaceUsageRow{}
	}
	return rows, nil
}

// Alerts returns alert statistics with every severity and status present.
func (s *ReportService) Alerts(ctx context.Context, r ReportRange) (AlertCounts, error) {
	c, err := s.reports.AlertCounts(ctx, r)
	if err != nil {
		return AlertCounts{}, err
	}
	if c.ByType == nil {
		c.ByType = map[string]int{}
	}
	c.BySeverity = fill(c.BySeverity, string(model.SeverityLow), string(model.SeverityMedium), string(model.SeverityHigh))
	c.ByStatus = fill(c.ByStatus, string(model.AlertNew), string(model.AlertConfirmed), string(model.AlertProcessing), string(model.AlertClosed))
	return c, nil
}

// Trend returns alert counts for each of the last days days up to and
// including today (UTC), oldest first, with zero for days without alerts.
func (s *ReportService) Trend(ctx context.Context, days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = TrendDays
	}
	end := s.clock().UTC()
	start := end.Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
	counts, err := s.reports.AlertsPerDay(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i).Format("2006-01-02")
		out = append(out, TrendPoint{Date: d, Count: counts[d]})
	}
	return out, nil
}

// Overview assembles the full dashboard. The aggregates are independent
// and run concurrently.
func (s *ReportService) Overview(ctx context.Context, r ReportRange) (*Overview, error) {
	var ov Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ov.Flights, err = s.Flights(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		ov.Airspace, err = s.Airspace(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		ov.Alerts, err = s.Alerts(gctx, r)
		return err
	})
	g.Go(func() (err error) {
		ov.Trend, err = s.Trend(gctx, TrendDays)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ov, nil
}

func fill(m map[string]int, keys ...string) map[string]int {
	if m == nil {
		m = make(map[string]int, len(keys))
	}
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			m[k] = 0
		}
	}
	return m
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
