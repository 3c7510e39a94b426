package model

import "time"

// ReservationStatus tracks a reservation through the application workflow.
type ReservationStatus string

const (
	ReservationApplied  ReservationStatus = "applied"
	ReservationApproved ReservationStatus = "approved"
	ReservationActive   ReservationStatus = "active"
	ReservationReleased ReservationStatus = "released"
)

// Reservation is a time-bound claim on an airspace held by one flight
// application (table `airspace_usage`). The interval is half-open
// [Start, End).
type Reservation struct {
	ID            uint64            `json:"id"`
	ApplicationID uint64            `json:"flight_application_id"`
	AirspaceID    uint64            `json:"airspace_id"`
	Start         time.Time         `json:"start_time"`
	End           time.Time         `json:"end_time"`
	Status        ReservationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Held reports whether the reservation still claims its airspace.
func (r Reservation) Held() bool { return r.Status != ReservationReleased }

// Hours returns the reserved duration in hours.
func (r Reservation) Hours() float64 { return r.End.Sub(r.Start).Hours() }
