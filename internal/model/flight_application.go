package model

import "time"

// ApplicationStatus is a state of the flight-application workflow.
type ApplicationStatus string

const (
	ApplicationDraft    ApplicationStatus = "draft"
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
	ApplicationExpired  ApplicationStatus = "expired"
	ApplicationLaunched ApplicationStatus = "launched"
)

// Valid reports whether s is a known workflow state.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationDraft, ApplicationPending, ApplicationApproved,
		ApplicationRejected, ApplicationExpired, ApplicationLaunched:
		return true
	}
	return false
}

// FlightApplication is a request to fly a drone in one airspace during a
// planned window. All times are UTC. TotalTime is in minutes and never
// exceeds the window length.
type FlightApplication struct {
	ID              uint64            `json:"id"`
	UserID          uint64            `json:"user_id"`
	DroneModel      string            `json:"drone_model"`
	TaskPurpose     string            `json:"task_purpose"`
	AirspaceID      uint64            `json:"planned_airspace_id"`
	PlannedStart    time.Time         `json:"planned_start_time"`
	PlannedEnd      time.Time         `json:"planned_end_time"`
	TotalTime       int               `json:"total_time"`
	Route           Route             `json:"route"`
	Status          ApplicationStatus `json:"status"`
	IsLongTerm      bool              `json:"is_long_term"`
	LongTermStart   *time.Time        `json:"long_term_start,omitempty"`
	LongTermEnd     *time.Time        `json:"long_term_end,omitempty"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// WindowMinutes is the length of the planned window in whole minutes.
func (a FlightApplication) WindowMinutes() int {
	return int(a.PlannedEnd.Sub(a.PlannedStart) / time.Minute)
}

// Overdue reports whether the planned window has closed at now.
func (a FlightApplication) Overdue(now time.Time) bool {
	return a.PlannedEnd.Before(now)
}
