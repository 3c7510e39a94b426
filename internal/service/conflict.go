package service

import (
	"context"
	"time"

	"github.com/iliyamo/highway-inspection/internal/model"
)

// Reservation statuses that count against a new window. Confirmed claims
// are approved or active; a submit also respects claims awaiting approval.
var (
	confirmedClaims = []model.ReservationStatus{model.ReservationApproved, model.ReservationActive}
	anyClaim        = []model.ReservationStatus{model.ReservationApplied, model.ReservationApproved, model.ReservationActive}
)

// Overlaps reports whether an existing interval [s, e) collides with a
// requested interval [start, end). For non-empty intervals this is the
// half-open test s < end && start < e: windows that only touch do not
// collide, so back-to-back bookings of one airspace are allowed.
func Overlaps(s, e, start, end time.Time) bool {
	return (!s.After(start) && e.After(start)) ||
		(s.Before(end) && !e.Before(end)) ||
		(!s.Before(start) && !e.After(end))
}

// ConflictDetector answers whether an airspace is already claimed for a
// window. It only reads.
type ConflictDetector struct {
	store Store
}

// NewConflictDetector returns a detector reading from store.
func NewConflictDetector(store Store) *ConflictDetector {
	return &ConflictDetector{store: store}
}

// HasConflict reports whether an approved or active reservation on
// airspaceID overlaps [start, end). A non-zero excludeAppID ignores that
// application's own reservation.
func (d *ConflictDetector) HasConflict(ctx context.Context, airspaceID uint64, start, end time.Time, excludeAppID uint64) (bool, error) {
	return d.conflictIn(ctx, d.store, airspaceID, start, end, excludeAppID)
}

// conflictIn is HasConflict evaluated inside an open transaction.
func (d *ConflictDetector) conflictIn(ctx context.Context, tx Store, airspaceID uint64, start, end time.Time, excludeAppID uint64) (bool, error) {
	return overlapping(ctx, tx, airspaceID, start, end, excludeAppID, confirmedClaims)
}

// claimIn also counts reservations still awaiting approval.
func (d *ConflictDetector) claimIn(ctx context.Context, tx Store, airspaceID uint64, start, end time.Time, excludeAppID uint64) (bool, error) {
	return overlapping(ctx, tx, airspaceID, start, end, excludeAppID, anyClaim)
}

func overlapping(ctx context.Context, s Store, airspaceID uint64, start, end time.Time, excludeAppID uint64, statuses []model.ReservationStatus) (bool, error) {
	rs, err := s.Reservations().Overlapping(ctx, airspaceID, start, end, excludeAppID, statuses)
	if err != nil {
		return false, err
	}
	return len(rs) > 0, nil
}
