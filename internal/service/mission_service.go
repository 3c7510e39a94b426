package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/model"
)

// MissionService runs launched flights: launch, manual completion and the
// sweep that completes missions whose estimated end has passed.
type MissionService struct {
	base
}

// NewMissionService builds the mission lifecycle.
func NewMissionService(d Deps) *MissionService {
	return &MissionService{base: newBase(d)}
}

// Launch starts a mission for an approved application. It must happen
// inside the planned window with enough time left to fly total_time
// minutes; finishing exactly at the window end is allowed. On success the
// airspace becomes occupied, the reservation active and the application
// launched.
func (s *MissionService) Launch(ctx context.Context, caller Caller, appID uint64) (*model.Mission, error) {
	now := s.now()
	var m *model.Mission
	err := s.store.InTx(ctx, func(tx Store) error {
		app, err := lockOwned(ctx, tx, caller, appID)
		if err != nil {
			return err
		}
		if err := requireStatus(app, model.ApplicationApproved); err != nil {
			return err
		}
		if now.Before(app.PlannedStart) || now.After(app.PlannedEnd) {
			return fmt.Errorf("%w: window is %s - %s", ErrOutOfWindow,
				app.PlannedStart.Format(timeLayout), app.PlannedEnd.Format(timeLayout))
		}
		end := now.Add(time.Duration(app.TotalTime) * time.Minute)
		if end.After(app.PlannedEnd) {
			return fmt.Errorf("%w: %d minutes would end at %s, after %s", ErrInsufficientTime,
				app.TotalTime, end.Format(timeLayout), app.PlannedEnd.Format(timeLayout))
		}

		as, err := tx.Airspaces().GetForUpdate(ctx, app.AirspaceID)
		if err != nil {
			return err
		}
		if as.Kind == model.KindNoFly {
			return fmt.Errorf("%w: %s", ErrAirspaceNoFly, as.Number)
		}
		if as.Status != model.AirspaceAvailable {
			return fmt.Errorf("%w: %s is %s", ErrAirspaceBusy, as.Number, as.Status)
		}

		m = &model.Mission{
			ApplicationID: app.ID,
			OperatorID:    caller.UserID,
			AirspaceID:    app.AirspaceID,
			TotalTime:     app.TotalTime,
			Route:         append(model.Route(nil), app.Route...),
			StartTime:     now,
			EndTime:       &end,
			Status:        model.MissionExecuting,
		}
		if err := tx.Missions().Create(ctx, m); err != nil {
			return err
		}
		if err := tx.Airspaces().SetStatus(ctx, as.ID, model.AirspaceOccupied); err != nil {
			return err
		}
		if _, err := tx.Reservations().AdvanceByApplication(ctx, app.ID, model.ReservationActive); err != nil {
			return err
		}
		app.Status = model.ApplicationLaunched
		return tx.Applications().Update(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	s.missionEvent(ctx, EventMissionLaunched, m)
	return m, nil
}

// Complete finishes an executing mission now and frees its airspace.
func (s *MissionService) Complete(ctx context.Context, caller Caller, id uint64) (*model.Mission, error) {
	now := s.now()
	var m *model.Mission
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		m, err = tx.Missions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if m.OperatorID != caller.UserID {
			return fmt.Errorf("%w: mission %d", ErrNotOwner, id)
		}
		if m.Status != model.MissionExecuting {
			return fmt.Errorf("%w: mission %d is %s", ErrInvalidState, id, m.Status)
		}
		m.EndTime = &now
		return finishTx(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}
	s.missionEvent(ctx, EventMissionCompleted, m)
	return m, nil
}

// SweepOverdueMissions completes every executing mission whose end time has
// passed, keeping the estimated end as the recorded one. Rows are locked and
// re-read so concurrent sweeps complete each mission once.
func (s *MissionService) SweepOverdueMissions(ctx context.Context) (int, error) {
	var done []model.Mission
	err := s.store.InTx(ctx, func(tx Store) error {
		ms, err := tx.Missions().ListOverdueForUpdate(ctx, s.now())
		if err != nil {
			return err
		}
		for i := range ms {
			if err := finishTx(ctx, tx, &ms[i]); err != nil {
				return err
			}
		}
		done = ms
		return nil
	})
	if err != nil {
		return 0, err
	}
	for i := range done {
		s.missionEvent(ctx, EventMissionCompleted, &done[i])
	}
	if len(done) > 0 {
		s.log.Info("auto-completed overdue missions", zap.Int("count", len(done)))
	}
	return len(done), nil
}

func finishTx(ctx context.Context, tx Store, m *model.Mission) error {
	m.Status = model.MissionCompleted
	if err := tx.Missions().Update(ctx, m); err != nil {
		return err
	}
	if err := tx.Airspaces().SetStatus(ctx, m.AirspaceID, model.AirspaceAvailable); err != nil {
		return err
	}
	_, err := tx.Reservations().AdvanceByApplication(ctx, m.ApplicationID, model.ReservationReleased)
	return err
}

// Get returns a mission to its operator or an admin.
func (s *MissionService) Get(ctx context.Context, caller Caller, id uint64) (*model.Mission, error) {
	m, err := s.store.Missions().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && m.OperatorID != caller.UserID {
		return nil, fmt.Errorf("%w: mission %d", ErrNotOwner, id)
	}
	return m, nil
}

// List pages through missions. Operators only see their own.
func (s *MissionService) List(ctx context.Context, caller Caller, f MissionFilter) (model.PageResult[model.Mission], error) {
	if !caller.IsAdmin() {
		f.OperatorID = caller.UserID
	}
	f.Page = f.Page.Normalize()
	items, total, err := s.store.Missions().List(ctx, f)
	if err != nil {
		return model.PageResult[model.Mission]{}, err
	}
	return model.NewPageResult(items, total, f.Page), nil
}

// ListActive sweeps overdue missions and then returns the ones still
// executing.
func (s *MissionService) ListActive(ctx context.Context, caller Caller) ([]model.Mission, error) {
	if _, err := s.SweepOverdueMissions(ctx); err != nil {
		return nil, err
	}
	f := MissionFilter{Status: model.MissionExecuting, Page: model.Page{Page: 1, PageSize: model.MaxPageSize}}
	if !caller.IsAdmin() {
		f.OperatorID = caller.UserID
	}
	items, _, err := s.store.Missions().List(ctx, f)
	return items, err
}

func (s *MissionService) missionEvent(ctx context.Context, typ string, m *model.Mission) {
	s.log.Info("mission transition",
		zap.String("event", typ),
		zap.Uint64("mission_id", m.ID),
		zap.Uint64("application_id", m.ApplicationID))
	s.publish(ctx, Event{
		Type:          typ,
		ApplicationID: m.ApplicationID,
		MissionID:     m.ID,
		AirspaceID:    m.AirspaceID,
		UserID:        m.OperatorID,
		Status:        string(m.Status),
		At:            s.now(),
	})
}
