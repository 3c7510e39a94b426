// Package service holds the inspection workflow: the airspace registry,
// conflict detection, the flight-application state machine, the mission
// lifecycle, the expiry sweeper, AI result ingestion and reporting.
//
// Every multi-step transition runs inside Store.InTx so the application,
// its reservation and the airspace change together or not at all.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/model"
)

// Caller is the verified identity supplied by the auth layer.
type Caller struct {
	UserID uint64
	Role   model.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool { return c.Role == model.RoleAdmin }

// System is the caller used for timer-driven transitions.
var System = Caller{Role: model.RoleAdmin}

// Deps bundles what every service needs. Zero values are replaced with
// working defaults by the constructors.
type Deps struct {
	Store  Store
	Events Publisher
	Log    *zap.Logger
	Now    func() time.Time
	Times  TimeNormalizer
}

type base struct {
	store  Store
	events Publisher
	log    *zap.Logger
	clock  func() time.Time
	times  TimeNormalizer
}

func newBase(d Deps) base {
	b := base{store: d.Store, events: d.Events, log: d.Log, clock: d.Now, times: d.Times}
	if b.events == nil {
		b.events = NopPublisher{}
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	if b.times.Local == nil {
		b.times = NewTimeNormalizer(8)
	}
	return b
}

func (b base) now() time.Time { return b.clock().UTC() }

// publish emits events after a successful commit. Delivery failures are
// logged; the transition itself already happened.
func (b base) publish(ctx context.Context, evs ...Event) {
	for _, ev := range evs {
		if err := b.events.Publish(ctx, ev); err != nil {
			b.log.Warn("event publish failed", zap.String("type", ev.Type), zap.Error(err))
		}
	}
}

func requireAdmin(c Caller) error {
	if !c.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
