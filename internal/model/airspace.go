package model

import "time"

// AirspaceKind classifies whether drones may fly in an airspace at all.
type AirspaceKind string

const (
	KindSuitable   AirspaceKind = "suitable"
	KindRestricted AirspaceKind = "restricted"
	KindNoFly      AirspaceKind = "no_fly"
)

// Valid reports whether k is a known classification.
func (k AirspaceKind) Valid() bool {
	switch k {
	case KindSuitable, KindRestricted, KindNoFly:
		return true
	}
	return false
}

// AirspaceStatus is the occupancy state of an airspace.
type AirspaceStatus string

const (
	AirspaceAvailable   AirspaceStatus = "available"
	AirspaceOccupied    AirspaceStatus = "occupied"
	AirspaceUnavailable AirspaceStatus = "unavailable"
)

// Valid reports whether s is a known occupancy state.
func (s AirspaceStatus) Valid() bool {
	switch s {
	case AirspaceAvailable, AirspaceOccupied, AirspaceUnavailable:
		return true
	}
	return false
}

// Airspace is a row of the `airspaces` table. Area is kept as an opaque
// GeoJSON object; only the mission lifecycle may set Status to occupied.
//
// Fields:
//
//	ID     – primary key.
//	Name   – display name.
//	Number – unique administrative code (e.g. AS001).
//	Kind   – suitable, restricted or no_fly (column `type`).
//	Area   – polygon as GeoJSON.
//	Remark – free text, optional.
//	Status – available, occupied or unavailable.
type Airspace struct {
	ID        uint64         `json:"id"`
	Name      string         `json:"name"`
	Number    string         `json:"number"`
	Kind      AirspaceKind   `json:"type"`
	Area      Geometry       `json:"area"`
	Remark    *string        `json:"remark,omitempty"`
	Status    AirspaceStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Flyable reports whether a mission may start in this airspace right now.
func (a Airspace) Flyable() bool {
	return a.Kind != KindNoFly && a.Status == AirspaceAvailable
}
