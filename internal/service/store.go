package service

import (
	"context"
	"time"

	"github.com/iliyamo/highway-inspection/internal/model"
)

// Store is the persistence boundary of the core. Implementations return
// errors wrapping ErrNotFound for unknown ids. InTx runs fn against a
// transactional view and commits only when fn returns nil.
type Store interface {
	Airspaces() AirspaceStore
	Reservations() ReservationStore
	Applications() ApplicationStore
	Missions() MissionStore
	Videos() VideoStore
	Results() ResultStore
	Alerts() AlertStore
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// AirspaceFilter narrows an airspace listing.
type AirspaceFilter struct {
	Kind   model.AirspaceKind
	Status model.AirspaceStatus
	model.Page
}

// AirspaceStore persists airspaces. GetForUpdate takes a row lock inside a
// transaction and is the serialization point for per-airspace conflicts.
type AirspaceStore interface {
	Create(ctx context.Context, a *model.Airspace) error
	GetByID(ctx context.Context, id uint64) (*model.Airspace, error)
	GetForUpdate(ctx context.Context, id uint64) (*model.Airspace, error)
	NumberExists(ctx context.Context, number string, excludeID uint64) (bool, error)
	Update(ctx context.Context, a *model.Airspace) error
	SetStatus(ctx context.Context, id uint64, status model.AirspaceStatus) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, f AirspaceFilter) ([]model.Airspace, int, error)
	ListAvailable(ctx context.Context) ([]model.Airspace, error)
	CountApplications(ctx context.Context, id uint64) (int, error)
	HasExecutingMission(ctx context.Context, id uint64) (bool, error)
}

// ReservationStore persists airspace usage records.
type ReservationStore interface {
	Create(ctx context.Context, r *model.Reservation) error
	// Overlapping returns reservations on airspaceID whose interval
	// overlaps [start, end) and whose status is one of statuses. A non-zero
	// excludeAppID drops that application's own reservations.
	Overlapping(ctx context.Context, airspaceID uint64, start, end time.Time, excludeAppID uint64, statuses []model.ReservationStatus) ([]model.Reservation, error)
	// AdvanceByApplication moves the application's held reservation to
	// status and returns the number of rows changed.
	AdvanceByApplication(ctx context.Context, appID uint64, status model.ReservationStatus) (int, error)
	ListByApplication(ctx context.Context, appID uint64) ([]model.Reservation, error)
}

// ApplicationFilter narrows a flight-application listing.
type ApplicationFilter struct {
	UserID uint64
	Status model.ApplicationStatus
	model.Page
}

// ApplicationStore persists flight applications.
type ApplicationStore interface {
	Create(ctx context.Context, a *model.FlightApplication) error
	GetByID(ctx context.Context, id uint64) (*model.FlightApplication, error)
	GetForUpdate(ctx context.Context, id uint64) (*model.FlightApplication, error)
	Update(ctx context.Context, a *model.FlightApplication) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, f ApplicationFilter) ([]model.FlightApplication, int, error)
	ListPending(ctx context.Context) ([]model.FlightApplication, error)
	// ListOverdueForUpdate locks pending and approved applications whose
	// planned end is before now.
	ListOverdueForUpdate(ctx context.Context, now time.Time) ([]model.FlightApplication, error)
}

// MissionFilter narrows a mission listing.
type MissionFilter struct {
	OperatorID uint64
	Status     model.MissionStatus
	model.Page
}

// MissionStore persists missions.
type MissionStore interface {
	Create(ctx context.Context, m *model.Mission) error
	GetByID(ctx context.Context, id uint64) (*model.Mission, error)
	GetForUpdate(ctx context.Context, id uint64) (*model.Mission, error)
	Update(ctx context.Context, m *model.Mission) error
	List(ctx context.Context, f MissionFilter) ([]model.Mission, int, error)
	// ListOverdueForUpdate locks executing missions whose end time is at or
	// before now.
	ListOverdueForUpdate(ctx context.Context, now time.Time) ([]model.Mission, error)
}

// VideoFilter narrows a video listing.
type VideoFilter struct {
	MissionID  uint64
	OperatorID uint64
	model.Page
}

// VideoStore persists inspection videos.
type VideoStore interface {
	Create(ctx context.Context, v *model.Video) error
	GetByID(ctx context.Context, id uint64) (*model.Video, error)
	List(ctx context.Context, f VideoFilter) ([]model.Video, int, error)
}

// ResultStore persists analysis results.
type ResultStore interface {
	Create(ctx context.Context, r *model.AnalysisResult) error
	ListByVideo(ctx context.Context, videoID uint64) ([]model.AnalysisResult, error)
}

// AlertFilter narrows an alert listing.
type AlertFilter struct {
	Status    model.AlertStatus
	Severity  model.AlertSeverity
	MissionID uint64
	model.Page
}

// AlertStore persists alert events.
type AlertStore interface {
	Create(ctx context.Context, a *model.AlertEvent) error
	GetByID(ctx context.Context, id uint64) (*model.AlertEvent, error)
	SetStatus(ctx context.Context, id uint64, status model.AlertStatus) error
	List(ctx context.Context, f AlertFilter) ([]model.AlertEvent, int, error)
	ListActive(ctx context.Context) ([]model.AlertEvent, error)
}
