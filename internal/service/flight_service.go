package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/model"
)

// terminationReason is recorded when an admin revokes an approval.
const terminationReason = "approval revoked by administrator, flight plan terminated"

// ApplicationInput carries the client-writable fields of a flight
// application. Nil pointers and a nil Route mean "not supplied". Status,
// owner, rejection reason and timestamps are not client-writable and have
// no field here.
type ApplicationInput struct {
	DroneModel    *string
	TaskPurpose   *string
	AirspaceID    *uint64
	PlannedStart  *string
	PlannedEnd    *string
	TotalTime     *int
	Route         model.Route
	IsLongTerm    *bool
	LongTermStart *string
	LongTermEnd   *string
}

// FlightService is the flight-application state machine:
//
//	draft -> pending -> approved | rejected | expired
//	approved -> launched (via MissionService.Launch) | rejected (terminate)
//	pending -> draft (withdraw)
type FlightService struct {
	base
	detector *ConflictDetector
}

// NewFlightService builds the state machine.
func NewFlightService(d Deps) *FlightService {
	return &FlightService{base: newBase(d), detector: NewConflictDetector(d.Store)}
}

// Create stores a new draft owned by the caller.
func (s *FlightService) Create(ctx context.Context, caller Caller, in ApplicationInput) (*model.FlightApplication, error) {
	v := validation{}
	requireField(v, "drone_model", in.DroneModel != nil)
	requireField(v, "task_purpose", in.TaskPurpose != nil)
	requireField(v, "planned_airspace_id", in.AirspaceID != nil)
	requireField(v, "planned_start_time", in.PlannedStart != nil)
	requireField(v, "planned_end_time", in.PlannedEnd != nil)
	requireField(v, "total_time", in.TotalTime != nil)
	requireField(v, "route", in.Route != nil)

	app := &model.FlightApplication{UserID: caller.UserID, Status: model.ApplicationDraft}
	s.merge(app, in, v)
	validateApplication(app, v)
	if err := v.err(); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		if err := resolveAirspace(ctx, tx, app.AirspaceID); err != nil {
			return err
		}
		return tx.Applications().Create(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("flight application created", zap.Uint64("application_id", app.ID), zap.Uint64("user_id", app.UserID))
	return app, nil
}

// Get returns an application to its applicant or an admin.
func (s *FlightService) Get(ctx context.Context, caller Caller, id uint64) (*model.FlightApplication, error) {
	app, err := s.store.Applications().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && app.UserID != caller.UserID {
		return nil, fmt.Errorf("%w: application %d", ErrNotOwner, id)
	}
	return app, nil
}

// Reservations lists every reservation the application has held.
func (s *FlightService) Reservations(ctx context.Context, caller Caller, id uint64) ([]model.Reservation, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.store.Reservations().ListByApplication(ctx, id)
}

// List pages through applications. Operators only ever see their own.
func (s *FlightService) List(ctx context.Context, caller Caller, f ApplicationFilter) (model.PageResult[model.FlightApplication], error) {
	if !caller.IsAdmin() {
		f.UserID = caller.UserID
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.store.Applications().List(ctx, f)
	if err != nil {
		return model.PageResult[model.FlightApplication]{}, err
	}
	return model.NewPageResult(items, total, f.Page), nil
}

// ListPending returns the approval queue, oldest first.
func (s *FlightService) ListPending(ctx context.Context, caller Caller) ([]model.FlightApplication, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.store.Applications().ListPending(ctx)
}

// Update edits a draft. Incoming fields are merged over the stored ones and
// the result is validated as a whole.
func (s *FlightService) Update(ctx context.Context, caller Caller, id uint64, in ApplicationInput) (*model.FlightApplication, error) {
	var out *model.FlightApplication
	err := s.store.InTx(ctx, func(tx Store) error {
		app, err := lockOwned(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		if err := requireStatus(app, model.ApplicationDraft); err != nil {
			return err
		}
		prevAirspace := app.AirspaceID

		v := validation{}
		s.merge(app, in, v)
		validateApplication(app, v)
		if err := v.err(); err != nil {
			return err
		}
		if app.AirspaceID != prevAirspace {
			if err := resolveAirspace(ctx, tx, app.AirspaceID); err != nil {
				return err
			}
		}
		if err := tx.Applications().Update(ctx, app); err != nil {
			return err
		}
		out = app
		return nil
	})
	return out, err
}

// Submit sends a draft for approval and claims its window on the airspace.
// The airspace row lock serializes competing submits for the same
// airspace.
func (s *FlightService) Submit(ctx context.Context, caller Caller, id uint64) (*model.FlightApplication, error) {
	var out *model.FlightApplication
	err := s.store.InTx(ctx, func(tx Store) error {
		app, err := lockOwned(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		if err := requireStatus(app, model.ApplicationDraft); err != nil {
			return err
		}
		v := validation{}
		validateApplication(app, v)
		if err := v.err(); err != nil {
			return err
		}
		if _, err := tx.Airspaces().GetForUpdate(ctx, app.AirspaceID); err != nil {
			return err
		}
		taken, err := s.detector.claimIn(ctx, tx, app.AirspaceID, app.PlannedStart, app.PlannedEnd, app.ID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: airspace %d is already claimed for %s - %s", ErrAirspaceConflict,
				app.AirspaceID, app.PlannedStart.Format(timeLayout), app.PlannedEnd.Format(timeLayout))
		}

		app.Status = model.ApplicationPending
		if err := tx.Applications().Update(ctx, app); err != nil {
			return err
		}
		out = app
		return tx.Reservations().Create(ctx, &model.Reservation{
			ApplicationID: app.ID,
			AirspaceID:    app.AirspaceID,
			Start:         app.PlannedStart,
			End:           app.PlannedEnd,
			Status:        model.ReservationApplied,
		})
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, EventApplicationSubmitted, out)
	return out, nil
}

// Approve confirms a pending application. An application whose window has
// already closed is expired instead, that change is committed, and
// ErrExpired is returned.
func (s *FlightService) Approve(ctx context.Context, caller Caller, id uint64) (*model.FlightApplication, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	var (
		out     *model.FlightApplication
		expired bool
	)
	now := s.now()
	err := s.store.InTx(ctx, func(tx Store) error {
		app, err := tx.Applications().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireStatus(app, model.ApplicationPending); err != nil {
			return err
		}
		out = app
		if app.Overdue(now) {
			expired = true
			return expireTx(ctx, tx, app)
		}

		if _, err := tx.Airspaces().GetForUpdate(ctx, app.AirspaceID); err != nil {
			return err
		}
		clash, err := s.detector.conflictIn(ctx, tx, app.AirspaceID, app.PlannedStart, app.PlannedEnd, app.ID)
		if err != nil {
			return err
		}
		if clash {
			return fmt.Errorf("%w: airspace %d already has an approved reservation in this window", ErrAirspaceConflict, app.AirspaceID)
		}

		app.Status = model.ApplicationApproved
		app.RejectionReason = nil
		if err := tx.Applications().Update(ctx, app); err != nil {
			return err
		}
		_, err = tx.Reservations().AdvanceByApplication(ctx, app.ID, model.ReservationApproved)
		return err
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.transitioned(ctx, EventApplicationExpired, out)
		return out, fmt.Errorf("%w: planned window of application %d ended at %s", ErrExpired, id, out.PlannedEnd.Format(timeLayout))
	}
	s.transitioned(ctx, EventApplicationApproved, out)
	return out, nil
}

// Reject declines a pending application with a reason.
func (s *FlightService) Reject(ctx context.Context, caller Caller, id uint64, reason string) (*model.FlightApplication, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalidField("reason", "required")
	}
	out, err := s.closeApplication(ctx, id, model.ApplicationPending, reason)
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, EventApplicationRejected, out)
	return out, nil
}

// Terminate revokes an approval and frees the airspace window.
func (s *FlightService) Terminate(ctx context.Context, caller Caller, id uint64) (*model.FlightApplication, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	out, err := s.closeApplication(ctx, id, model.ApplicationApproved, terminationReason)
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, EventApplicationTerminated, out)
	return out, nil
}

// closeApplication moves an application in state from to rejected.
func (s *FlightService) closeApplication(ctx context.Context, id uint64, from model.ApplicationStatus, reason string) (*model.FlightApplication, error) {
	var out *model.FlightApplication
	err := s.store.InTx(ctx, func(tx Store) error {
		app, err := tx.Applications().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireStatus(app, from); err != nil {
			return err
		}
		app.Status = model.ApplicationRejected
		app.RejectionReason = &reason
		if err := tx.Applications().Update(ctx, app); err != nil {
			return err
		}
		out = app
		_, err = tx.Reservations().AdvanceByApplication(ctx, app.ID, model.ReservationReleased)
		return err
	})
	return out, err
}

// Withdraw returns a pending application to draft so it can be edited.
// Approved applications cannot be withdrawn; an admin terminates them.
func (s *FlightService) Withdraw(ctx context.Context, caller Caller, id uint64) (*model.FlightApplication, error) {
	var out *model.FlightApplication
	err := s.store.InTx(ctx, func(tx Store) error {
		app, err := lockOwned(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		if err := requireStatus(app, model.ApplicationPending); err != nil {
			return err
		}
		app.Status = model.ApplicationDraft
		if err := tx.Applications().Update(ctx, app); err != nil {
			return err
		}
		out = app
		_, err = tx.Reservations().AdvanceByApplication(ctx, app.ID, model.ReservationReleased)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, EventApplicationWithdrawn, out)
	return out, nil
}

// Delete removes a draft.
func (s *FlightService) Delete(ctx context.Context, caller Caller, id uint64) error {
	return s.store.InTx(ctx, func(tx Store) error {
		app, err := lockOwned(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		if err := requireStatus(app, model.ApplicationDraft); err != nil {
			return err
		}
		return tx.Applications().Delete(ctx, id)
	})
}

// ExpireOverdue marks every pending or approved application whose window
// has closed as expired, in one transaction, and returns how many changed.
// Running it again immediately changes nothing.
func (s *FlightService) ExpireOverdue(ctx context.Context) (int, error) {
	var expired []model.FlightApplication
	err := s.store.InTx(ctx, func(tx Store) error {
		apps, err := tx.Applications().ListOverdueForUpdate(ctx, s.now())
		if err != nil {
			return err
		}
		for i := range apps {
			if err := expireTx(ctx, tx, &apps[i]); err != nil {
				return err
			}
		}
		expired = apps
		return nil
	})
	if err != nil {
		return 0, err
	}
	for i := range expired {
		s.transitioned(ctx, EventApplicationExpired, &expired[i])
	}
	if len(expired) > 0 {
		s.log.Info("expired overdue applications", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

func expireTx(ctx context.Context, tx Store, app *model.FlightApplication) error {
	app.Status = model.ApplicationExpired
	if err := tx.Applications().Update(ctx, app); err != nil {
		return err
	}
	_, err := tx.Reservations().AdvanceByApplication(ctx, app.ID, model.ReservationReleased)
	return err
}

func (s *FlightService) transitioned(ctx context.Context, typ string, app *model.FlightApplication) {
	s.log.Info("flight application transition",
		zap.String("event", typ),
		zap.Uint64("application_id", app.ID),
		zap.String("status", string(app.Status)))
	ev := Event{
		Type:          typ,
		ApplicationID: app.ID,
		AirspaceID:    app.AirspaceID,
		UserID:        app.UserID,
		Status:        string(app.Status),
		At:            s.now(),
	}
	if app.RejectionReason != nil {
		ev.Reason = *app.RejectionReason
	}
	s.publish(ctx, ev)
}

// merge copies supplied fields onto app, normalizing timestamps to UTC.
func (s *FlightService) merge(app *model.FlightApplication, in ApplicationInput, v validation) {
	if in.DroneModel != nil {
		app.DroneModel = strings.TrimSpace(*in.DroneModel)
	}
	if in.TaskPurpose != nil {
		app.TaskPurpose = strings.TrimSpace(*in.TaskPurpose)
	}
	if in.AirspaceID != nil {
		app.AirspaceID = *in.AirspaceID
	}
	if in.PlannedStart != nil {
		if t, err := s.times.Parse(*in.PlannedStart); err != nil {
			v.add("planned_start_time", err.Error())
		} else {
			app.PlannedStart = t
		}
	}
	if in.PlannedEnd != nil {
		if t, err := s.times.Parse(*in.PlannedEnd); err != nil {
			v.add("planned_end_time", err.Error())
		} else {
			app.PlannedEnd = t
		}
	}
	if in.TotalTime != nil {
		app.TotalTime = *in.TotalTime
	}
	if in.Route != nil {
		app.Route = in.Route
	}
	if in.IsLongTerm != nil {
		app.IsLongTerm = *in.IsLongTerm
	}
	app.LongTermStart = s.mergeOptionalTime(app.LongTermStart, in.LongTermStart, "long_term_start", v)
	app.LongTermEnd = s.mergeOptionalTime(app.LongTermEnd, in.LongTermEnd, "long_term_end", v)
	if !app.IsLongTerm {
		app.LongTermStart, app.LongTermEnd = nil, nil
	}
}

func (s *FlightService) mergeOptionalTime(cur *time.Time, in *string, field string, v validation) *time.Time {
	if in == nil {
		return cur
	}
	if strings.TrimSpace(*in) == "" {
		return nil
	}
	t, err := s.times.Parse(*in)
	if err != nil {
		v.add(field, err.Error())
		return cur
	}
	return &t
}

// validateApplication enforces the field rules shared by create, update and
// submit.
func validateApplication(app *model.FlightApplication, v validation) {
	if n := utf8.RuneCountInString(app.DroneModel); n == 0 || n > 100 {
		v.add("drone_model", "must be 1-100 characters")
	}
	if app.TaskPurpose == "" {
		v.add("task_purpose", "required")
	}
	if app.AirspaceID == 0 {
		v.add("planned_airspace_id", "required")
	}
	windowOK := true
	if app.PlannedStart.IsZero() || app.PlannedEnd.IsZero() || !app.PlannedEnd.After(app.PlannedStart) {
		v.add("planned_end_time", "must be after planned_start_time")
		windowOK = false
	}
	switch {
	case app.TotalTime <= 0:
		v.add("total_time", "must be a positive number of minutes")
	case windowOK && app.TotalTime > app.WindowMinutes():
		v.add("total_time", fmt.Sprintf("%d minutes exceeds the planned window of %d minutes", app.TotalTime, app.WindowMinutes()))
	}
	if err := app.Route.Validate(); err != nil {
		v.add("route", err.Error())
	}
	if app.IsLongTerm {
		switch {
		case app.LongTermStart == nil || app.LongTermEnd == nil:
			v.add("long_term_start", "long-term applications need long_term_start and long_term_end")
		case !app.LongTermEnd.After(*app.LongTermStart):
			v.add("long_term_end", "must be after long_term_start")
		}
	}
}

func requireField(v validation, field string, present bool) {
	if !present {
		v.add(field, "required")
	}
}

func resolveAirspace(ctx context.Context, tx Store, id uint64) error {
	if _, err := tx.Airspaces().GetByID(ctx, id); err != nil {
		if isNotFound(err) {
			return invalidField("planned_airspace_id", fmt.Sprintf("airspace %d does not exist", id))
		}
		return err
	}
	return nil
}

// lockOwned locks an application and checks the caller is its applicant.
func lockOwned(ctx context.Context, tx Store, caller Caller, id uint64) (*model.FlightApplication, error) {
	app, err := tx.Applications().GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.UserID != caller.UserID {
		return nil, fmt.Errorf("%w: application %d", ErrNotOwner, id)
	}
	return app, nil
}

func requireStatus(app *model.FlightApplication, want model.ApplicationStatus) error {
	if app.Status != want {
		return fmt.Errorf("%w: application %d is %s, expected %s", ErrInvalidState, app.ID, app.Status, want)
	}
	return nil
}
