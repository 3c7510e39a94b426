package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/model"
)

// AirspaceInput carries create and update fields. Nil pointers and an empty
// Area mean "not supplied".
type AirspaceInput struct {
	Name   *string
	Number *string
	Kind   *model.AirspaceKind
	Area   model.Geometry
	Remark *string
	Status *model.AirspaceStatus
}

// AirspaceService is the airspace registry.
type AirspaceService struct {
	base
	detector *ConflictDetector
}

// NewAirspaceService builds the registry.
func NewAirspaceService(d Deps) *AirspaceService {
	return &AirspaceService{base: newBase(d), detector: NewConflictDetector(d.Store)}
}

// Create registers an airspace. Only admins may call it. The number must be
// unique and the airspace can never start out occupied.
func (s *AirspaceService) Create(ctx context.Context, caller Caller, in AirspaceInput) (*model.Airspace, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	a := &model.Airspace{Status: model.AirspaceAvailable}
	v := validation{}
	if in.Name == nil {
		v.add("name", "required")
	}
	if in.Number == nil {
		v.add("number", "required")
	}
	if in.Kind == nil {
		v.add("type", "required")
	}
	if in.Area.Empty() {
		v.add("area", "required")
	}
	if in.Status != nil && *in.Status == model.AirspaceOccupied {
		return nil, fmt.Errorf("%w: occupied is set only by launching a mission", ErrInvalidStatusTransition)
	}
	applyAirspaceInput(a, in, v)
	if err := v.err(); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		taken, err := tx.Airspaces().NumberExists(ctx, a.Number, 0)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", ErrDuplicateNumber, a.Number)
		}
		return tx.Airspaces().Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("airspace created", zap.Uint64("airspace_id", a.ID), zap.String("number", a.Number))
	return a, nil
}

// Get returns one airspace.
func (s *AirspaceService) Get(ctx context.Context, id uint64) (*model.Airspace, error) {
	return s.store.Airspaces().GetByID(ctx, id)
}

// List pages through airspaces, optionally filtered by kind and status.
func (s *AirspaceService) List(ctx context.Context, f AirspaceFilter) (model.PageResult[model.Airspace], error) {
	f.Page = f.Page.Normalize()
	items, total, err := s.store.Airspaces().List(ctx, f)
	if err != nil {
		return model.PageResult[model.Airspace]{}, err
	}
	return model.NewPageResult(items, total, f.Page), nil
}

// CheckConflict reports whether an approved or active reservation on the
// airspace overlaps [start, end). Timestamps are read like application
// times.
func (s *AirspaceService) CheckConflict(ctx context.Context, id uint64, start, end string) (bool, error) {
	v := validation{}
	st, err := s.times.Parse(start)
	if err != nil {
		v.add("start_time", err.Error())
	}
	en, err := s.times.Parse(end)
	if err != nil {
		v.add("end_time", err.Error())
	}
	if len(v) == 0 && !en.After(st) {
		v.add("end_time", "must be after start_time")
	}
	if err := v.err(); err != nil {
		return false, err
	}
	if _, err := s.store.Airspaces().GetByID(ctx, id); err != nil {
		return false, err
	}
	return s.detector.HasConflict(ctx, id, st, en, 0)
}

// ListAvailable returns airspaces that are not no-fly and currently
// available.
func (s *AirspaceService) ListAvailable(ctx context.Context) ([]model.Airspace, error) {
	return s.store.Airspaces().ListAvailable(ctx)
}

// Update changes an airspace. Status can never be set to occupied here and
// cannot leave occupied while a mission is executing in the airspace.
func (s *AirspaceService) Update(ctx context.Context, caller Caller, id uint64, in AirspaceInput) (*model.Airspace, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	var out *model.Airspace
	err := s.store.InTx(ctx, func(tx Store) error {
		a, err := tx.Airspaces().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		prev := a.Status

		if in.Status != nil && *in.Status != prev {
			if *in.Status == model.AirspaceOccupied {
				return fmt.Errorf("%w: occupied is set only by launching a mission", ErrInvalidStatusTransition)
			}
			if prev == model.AirspaceOccupied {
				busy, err := tx.Airspaces().HasExecutingMission(ctx, id)
				if err != nil {
					return err
				}
				if busy {
					return fmt.Errorf("%w: a mission is executing in airspace %d", ErrAirspaceBusy, id)
				}
			}
		}

		v := validation{}
		applyAirspaceInput(a, in, v)
		if err := v.err(); err != nil {
			return err
		}
		if in.Number != nil {
			taken, err := tx.Airspaces().NumberExists(ctx, a.Number, id)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: %s", ErrDuplicateNumber, a.Number)
			}
		}
		if err := tx.Airspaces().Update(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("airspace updated", zap.Uint64("airspace_id", id), zap.String("status", string(out.Status)))
	return out, nil
}

// Delete removes an airspace that no flight application references, in any
// status.
func (s *AirspaceService) Delete(ctx context.Context, caller Caller, id uint64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx Store) error {
		if _, err := tx.Airspaces().GetForUpdate(ctx, id); err != nil {
			return err
		}
		n, err := tx.Airspaces().CountApplications(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d flight applications reference airspace %d", ErrHasDependents, n, id)
		}
		return tx.Airspaces().Delete(ctx, id)
	})
}

func applyAirspaceInput(a *model.Airspace, in AirspaceInput, v validation) {
	if in.Name != nil {
		a.Name = strings.TrimSpace(*in.Name)
		if a.Name == "" || utf8.RuneCountInString(a.Name) > 100 {
			v.add("name", "must be 1-100 characters")
		}
	}
	if in.Number != nil {
		a.Number = strings.TrimSpace(*in.Number)
		if a.Number == "" || utf8.RuneCountInString(a.Number) > 50 {
			v.add("number", "must be 1-50 characters")
		}
	}
	if in.Kind != nil {
		a.Kind = *in.Kind
		if !a.Kind.Valid() {
			v.add("type", "must be suitable, restricted or no_fly")
		}
	}
	if !in.Area.Empty() {
		a.Area = in.Area
	}
	if in.Remark != nil {
		r := strings.TrimSpace(*in.Remark)
		a.Remark = &r
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			v.add("status", "must be available, occupied or unavailable")
		} else {
			a.Status = *in.Status
		}
	}
}

// isNotFound reports whether err came from an unknown id.
func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
