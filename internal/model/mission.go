package model

import (
	"math"
	"time"
)

// MissionStatus is the execution state of a mission.
type MissionStatus string

const (
	MissionExecuting MissionStatus = "executing"
	MissionCompleted MissionStatus = "completed"
)

// Mission is the execution record created when an approved application is
// launched. While executing, EndTime holds the estimated end; completion
// overwrites it with the actual end.
type Mission struct {
	ID            uint64        `json:"id"`
	ApplicationID uint64        `json:"flight_application_id"`
	OperatorID    uint64        `json:"operator_id"`
	AirspaceID    uint64        `json:"airspace_id"`
	TotalTime     int           `json:"total_time"`
	Route         Route         `json:"route"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       *time.Time    `json:"end_time,omitempty"`
	Status        MissionStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Overdue reports whether an executing mission has passed its end time.
func (m Mission) Overdue(now time.Time) bool {
	return m.Status == MissionExecuting && m.EndTime != nil && !m.EndTime.After(now)
}

// RouteDistance is the great-circle length of the route in kilometres,
// rounded to two decimals.
func (m Mission) RouteDistance() float64 {
	return round2(m.Route.Length())
}

// FlightSpeed is the average speed in km/h over the planned flight time.
// It is nil when either the distance or the planned time is zero.
func (m Mission) FlightSpeed() *float64 {
	d := m.Route.Length()
	if d == 0 || m.TotalTime <= 0 {
		return nil
	}
	v := round2(d / (float64(m.TotalTime) / 60))
	return &v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
