package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/highway-inspection/internal/model"
)

// memStore is an in-memory Store. InTx serializes transactions on one mutex
// and restores a snapshot when fn fails, which is enough to observe
// atomicity and the per-airspace serialization the MySQL store gets from
// row locks.
type memStore struct {
	mu   sync.Mutex
	data *memData
	fail map[string]error
	now  func() time.Time
}

type memData struct {
	seq          uint64
	airspaces    map[uint64]model.Airspace
	reservations map[uint64]model.Reservation
	apps         map[uint64]model.FlightApplication
	missions     map[uint64]model.Mission
	videos       map[uint64]model.Video
	results      map[uint64]model.AnalysisResult
	alerts       map[uint64]model.AlertEvent
}

func newMemStore() *memStore {
	return &memStore{
		data: &memData{
			airspaces:    map[uint64]model.Airspace{},
			reservations: map[uint64]model.Reservation{},
			apps:         map[uint64]model.FlightApplication{},
			missions:     map[uint64]model.Mission{},
			videos:       map[uint64]model.Video{},
			results:      map[uint64]model.AnalysisResult{},
			alerts:       map[uint64]model.AlertEvent{},
		},
		fail: map[string]error{},
		now:  time.Now,
	}
}

func (d *memData) clone() *memData {
	return &memData{
		seq:          d.seq,
		airspaces:    cloneMap(d.airspaces),
		reservations: cloneMap(d.reservations),
		apps:         cloneMap(d.apps),
		missions:     cloneMap(d.missions),
		videos:       cloneMap(d.videos),
		results:      cloneMap(d.results),
		alerts:       cloneMap(d.alerts),
	}
}

func cloneMap[T any](m map[uint64]T) map[uint64]T {
	out := make(map[uint64]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memData) nextID() uint64 {
	d.seq++
	return d.seq
}

// memView is the Store handed to callers; inTx views already hold the lock.
type memView struct {
	s    *memStore
	inTx bool
}

func (s *memStore) view() *memView { return &memView{s: s} }

func (v *memView) do(op string, fn func(d *memData) error) error {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	if err := v.s.fail[op]; err != nil {
		return err
	}
	return fn(v.s.data)
}

func (v *memView) InTx(ctx context.Context, fn func(tx Store) error) error {
	if v.inTx {
		return fn(v)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	snapshot := v.s.data.clone()
	if err := fn(&memView{s: v.s, inTx: true}); err != nil {
		v.s.data = snapshot
		return err
	}
	return nil
}

func (v *memView) Airspaces() AirspaceStore       { return memAirspaces{v} }
func (v *memView) Reservations() ReservationStore { return memReservations{v} }
func (v *memView) Applications() ApplicationStore { return memApplications{v} }
func (v *memView) Missions() MissionStore         { return memMissions{v} }
func (v *memView) Videos() VideoStore             { return memVideos{v} }
func (v *memView) Results() ResultStore           { return memResults{v} }
func (v *memView) Alerts() AlertStore             { return memAlerts{v} }

func notFound(kind string, id uint64) error { return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound) }

func page[T any](items []T, p model.Page) ([]T, int) {
	p = p.Normalize()
	total := len(items)
	lo := p.Offset()
	if lo > total {
		lo = total
	}
	hi := lo + p.PageSize
	if hi > total {
		hi = total
	}
	return items[lo:hi], total
}

func sortedIDs[T any](m map[uint64]T) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ---- airspaces ----

type memAirspaces struct{ v *memView }

func (r memAirspaces) Create(ctx context.Context, a *model.Airspace) error {
	return r.v.do("airspaces.create", func(d *memData) error {
		a.ID = d.nextID()
		a.CreatedAt = r.v.s.now().UTC()
		a.UpdatedAt = a.CreatedAt
		d.airspaces[a.ID] = *a
		return nil
	})
}

func (r memAirspaces) GetByID(ctx context.Context, id uint64) (*model.Airspace, error) {
	var out *model.Airspace
	err := r.v.do("airspaces.get", func(d *memData) error {
		a, ok := d.airspaces[id]
		if !ok {
			return notFound("airspace", id)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r memAirspaces) GetForUpdate(ctx context.Context, id uint64) (*model.Airspace, error) {
	return r.GetByID(ctx, id)
}

func (r memAirspaces) NumberExists(ctx context.Context, number string, excludeID uint64) (bool, error) {
	var found bool
	err := r.v.do("airspaces.number", func(d *memData) error {
		for id, a := range d.airspaces {
			if a.Number == number && id != excludeID {
				found = true
			}
		}
		return nil
	})
	return found, err
}

func (r memAirspaces) Update(ctx context.Context, a *model.Airspace) error {
	return r.v.do("airspaces.update", func(d *memData) error {
		if _, ok := d.airspaces[a.ID]; !ok {
			return notFound("airspace", a.ID)
		}
		a.UpdatedAt = r.v.s.now().UTC()
		d.airspaces[a.ID] = *a
		return nil
	})
}

func (r memAirspaces) SetStatus(ctx context.Context, id uint64, status model.AirspaceStatus) error {
	return r.v.do("airspaces.status", func(d *memData) error {
		a, ok := d.airspaces[id]
		if !ok {
			return notFound("airspace", id)
		}
		a.Status = status
		d.airspaces[id] = a
		return nil
	})
}

func (r memAirspaces) Delete(ctx context.Context, id uint64) error {
	return r.v.do("airspaces.delete", func(d *memData) error {
		if _, ok := d.airspaces[id]; !ok {
			return notFound("airspace", id)
		}
		delete(d.airspaces, id)
		return nil
	})
}

func (r memAirspaces) List(ctx context.Context, f AirspaceFilter) ([]model.Airspace, int, error) {
	var (
		out   []model.Airspace
		total int
	)
	err := r.v.do("airspaces.list", func(d *memData) error {
		var all []model.Airspace
		for _, id := range sortedIDs(d.airspaces) {
			a := d.airspaces[id]
			if (f.Kind == "" || a.Kind == f.Kind) && (f.Status == "" || a.Status == f.Status) {
				all = append(all, a)
			}
		}
		out, total = page(all, f.Page)
		return nil
	})
	return out, total, err
}

func (r memAirspaces) ListAvailable(ctx context.Context) ([]model.Airspace, error) {
	var out []model.Airspace
	err := r.v.do("airspaces.available", func(d *memData) error {
		for _, id := range sortedIDs(d.airspaces) {
			if a := d.airspaces[id]; a.Flyable() {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

func (r memAirspaces) CountApplications(ctx context.Context, id uint64) (int, error) {
	var n int
	err := r.v.do("airspaces.count_apps", func(d *memData) error {
		for _, a := range d.apps {
			if a.AirspaceID == id {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memAirspaces) HasExecutingMission(ctx context.Context, id uint64) (bool, error) {
	var busy bool
	err := r.v.do("airspaces.executing", func(d *memData) error {
		for _, m := range d.missions {
			if m.AirspaceID == id && m.Status == model.MissionExecuting {
				busy = true
			}
		}
		return nil
	})
	return busy, err
}

// ---- reservations ----

type memReservations struct{ v *memView }

func (r memReservations) Create(ctx context.Context, res *model.Reservation) error {
	return r.v.do("reservations.create", func(d *memData) error {
		res.ID = d.nextID()
		res.CreatedAt = r.v.s.now().UTC()
		d.reservations[res.ID] = *res
		return nil
	})
}

func (r memReservations) Overlapping(ctx context.Context, airspaceID uint64, start, end time.Time, excludeAppID uint64, statuses []model.ReservationStatus) ([]model.Reservation, error) {
	var out []model.Reservation
	err := r.v.do("reservations.overlapping", func(d *memData) error {
		for _, id := range sortedIDs(d.reservations) {
			res := d.reservations[id]
			if res.AirspaceID != airspaceID || (excludeAppID != 0 && res.ApplicationID == excludeAppID) {
				continue
			}
			if !containsStatus(statuses, res.Status) {
				continue
			}
			if Overlaps(res.Start, res.End, start, end) {
				out = append(out, res)
			}
		}
		return nil
	})
	return out, err
}

func containsStatus(list []model.ReservationStatus, s model.ReservationStatus) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func (r memReservations) AdvanceByApplication(ctx context.Context, appID uint64, status model.ReservationStatus) (int, error) {
	var n int
	err := r.v.do("reservations.advance", func(d *memData) error {
		for id, res := range d.reservations {
			if res.ApplicationID == appID && res.Held() {
				res.Status = status
				d.reservations[id] = res
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memReservations) ListByApplication(ctx context.Context, appID uint64) ([]model.Reservation, error) {
	var out []model.Reservation
	err := r.v.do("reservations.list", func(d *memData) error {
		for _, id := range sortedIDs(d.reservations) {
			if res := d.reservations[id]; res.ApplicationID == appID {
				out = append(out, res)
			}
		}
		return nil
	})
	return out, err
}

// ---- applications ----

type memApplications struct{ v *memView }

func (r memApplications) Create(ctx context.Context, a *model.FlightApplication) error {
	return r.v.do("applications.create", func(d *memData) error {
		a.ID = d.nextID()
		a.CreatedAt = r.v.s.now().UTC()
		a.UpdatedAt = a.CreatedAt
		d.apps[a.ID] = *a
		return nil
	})
}

func (r memApplications) GetByID(ctx context.Context, id uint64) (*model.FlightApplication, error) {
	var out *model.FlightApplication
	err := r.v.do("applications.get", func(d *memData) error {
		a, ok := d.apps[id]
		if !ok {
			return notFound("flight application", id)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r memApplications) GetForUpdate(ctx context.Context, id uint64) (*model.FlightApplication, error) {
	return r.GetByID(ctx, id)
}

func (r memApplications) Update(ctx context.Context, a *model.FlightApplication) error {
	return r.v.do("applications.update", func(d *memData) error {
		if _, ok := d.apps[a.ID]; !ok {
			return notFound("flight application", a.ID)
		}
		a.UpdatedAt = r.v.s.now().UTC()
		d.apps[a.ID] = *a
		return nil
	})
}

func (r memApplications) Delete(ctx context.Context, id uint64) error {
	return r.v.do("applications.delete", func(d *memData) error {
		if _, ok := d.apps[id]; !ok {
			return notFound("flight application", id)
		}
		delete(d.apps, id)
		for rid, res := range d.reservations {
			if res.ApplicationID == id {
				delete(d.reservations, rid)
			}
		}
		return nil
	})
}

func (r memApplications) List(ctx context.Context, f ApplicationFilter) ([]model.FlightApplication, int, error) {
	var (
		out   []model.FlightApplication
		total int
	)
	err := r.v.do("applications.list", func(d *memData) error {
		var all []model.FlightApplication
		for _, id := range sortedIDs(d.apps) {
			a := d.apps[id]
			if (f.UserID == 0 || a.UserID == f.UserID) && (f.Status == "" || a.Status == f.Status) {
				all = append(all, a)
			}
		}
		out, total = page(all, f.Page)
		return nil
	})
	return out, total, err
}

func (r memApplications) ListPending(ctx context.Context) ([]model.FlightApplication, error) {
	var out []model.FlightApplication
	err := r.v.do("applications.pending", func(d *memData) error {
		for _, id := range sortedIDs(d.apps) {
			if a := d.apps[id]; a.Status == model.ApplicationPending {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

func (r memApplications) ListOverdueForUpdate(ctx context.Context, now time.Time) ([]model.FlightApplication, error) {
	var out []model.FlightApplication
	err := r.v.do("applications.overdue", func(d *memData) error {
		for _, id := range sortedIDs(d.apps) {
			a := d.apps[id]
			if (a.Status == model.ApplicationPending || a.Status == model.ApplicationApproved) && a.PlannedEnd.Before(now) {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// ---- missions ----

type memMissions struct{ v *memView }

func (r memMissions) Create(ctx context.Context, m *model.Mission) error {
	return r.v.do("missions.create", func(d *memData) error {
		for _, x := range d.missions {
			if x.ApplicationID == m.ApplicationID {
				return fmt.Errorf("duplicate mission for application %d", m.ApplicationID)
			}
		}
		m.ID = d.nextID()
		m.CreatedAt = r.v.s.now().UTC()
		m.UpdatedAt = m.CreatedAt
		d.missions[m.ID] = *m
		return nil
	})
}

func (r memMissions) GetByID(ctx context.Context, id uint64) (*model.Mission, error) {
	var out *model.Mission
	err := r.v.do("missions.get", func(d *memData) error {
		m, ok := d.missions[id]
		if !ok {
			return notFound("mission", id)
		}
		out = &m
		return nil
	})
	return out, err
}

func (r memMissions) GetForUpdate(ctx context.Context, id uint64) (*model.Mission, error) {
	return r.GetByID(ctx, id)
}

func (r memMissions) Update(ctx context.Context, m *model.Mission) error {
	return r.v.do("missions.update", func(d *memData) error {
		if _, ok := d.missions[m.ID]; !ok {
			return notFound("mission", m.ID)
		}
		m.UpdatedAt = r.v.s.now().UTC()
		d.missions[m.ID] = *m
		return nil
	})
}

func (r memMissions) List(ctx context.Context, f MissionFilter) ([]model.Mission, int, error) {
	var (
		out   []model.Mission
		total int
	)
	err := r.v.do("missions.list", func(d *memData) error {
		var all []model.Mission
		for _, id := range sortedIDs(d.missions) {
			m := d.missions[id]
			if (f.OperatorID == 0 || m.OperatorID == f.OperatorID) && (f.Status == "" || m.Status == f.Status) {
				all = append(all, m)
			}
		}
		out, total = page(all, f.Page)
		return nil
	})
	return out, total, err
}

func (r memMissions) ListOverdueForUpdate(ctx context.Context, now time.Time) ([]model.Mission, error) {
	var out []model.Mission
	err := r.v.do("missions.overdue", func(d *memData) error {
		for _, id := range sortedIDs(d.missions) {
			if m := d.missions[id]; m.Overdue(now) {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

// ---- videos, results, alerts ----

type memVideos struct{ v *memView }

func (r memVideos) Create(ctx context.Context, vid *model.Video) error {
	return r.v.do("videos.create", func(d *memData) error {
		vid.ID = d.nextID()
		vid.CreatedAt = r.v.s.now().UTC()
		d.videos[vid.ID] = *vid
		return nil
	})
}

func (r memVideos) GetByID(ctx context.Context, id uint64) (*model.Video, error) {
	var out *model.Video
	err := r.v.do("videos.get", func(d *memData) error {
		vid, ok := d.videos[id]
		if !ok {
			return notFound("video", id)
		}
		out = &vid
		return nil
	})
	return out, err
}

func (r memVideos) List(ctx context.Context, f VideoFilter) ([]model.Video, int, error) {
	var (
		out   []model.Video
		total int
	)
	err := r.v.do("videos.list", func(d *memData) error {
		var all []model.Video
		for _, id := range sortedIDs(d.videos) {
			vid := d.videos[id]
			if f.MissionID != 0 && vid.MissionID != f.MissionID {
				continue
			}
			if f.OperatorID != 0 && d.missions[vid.MissionID].OperatorID != f.OperatorID {
				continue
			}
			all = append(all, vid)
		}
		out, total = page(all, f.Page)
		return nil
	})
	return out, total, err
}

type memResults struct{ v *memView }

func (r memResults) Create(ctx context.Context, res *model.AnalysisResult) error {
	return r.v.do("results.create", func(d *memData) error {
		res.ID = d.nextID()
		res.CreatedAt = r.v.s.now().UTC()
		d.results[res.ID] = *res
		return nil
	})
}

func (r memResults) ListByVideo(ctx context.Context, videoID uint64) ([]model.AnalysisResult, error) {
	var out []model.AnalysisResult
	err := r.v.do("results.list", func(d *memData) error {
		for _, id := range sortedIDs(d.results) {
			if res := d.results[id]; res.VideoID == videoID {
				out = append(out, res)
			}
		}
		return nil
	})
	return out, err
}

type memAlerts struct{ v *memView }

func (r memAlerts) Create(ctx context.Context, a *model.AlertEvent) error {
	return r.v.do("alerts.create", func(d *memData) error {
		a.ID = d.nextID()
		a.CreatedAt = r.v.s.now().UTC()
		a.UpdatedAt = a.CreatedAt
		d.alerts[a.ID] = *a
		return nil
	})
}

func (r memAlerts) GetByID(ctx context.Context, id uint64) (*model.AlertEvent, error) {
	var out *model.AlertEvent
	err := r.v.do("alerts.get", func(d *memData) error {
		a, ok := d.alerts[id]
		if !ok {
			return notFound("alert", id)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r memAlerts) SetStatus(ctx context.Context, id uint64, status model.AlertStatus) error {
	return r.v.do("alerts.status", func(d *memData) error {
		a, ok := d.alerts[id]
		if !ok {
			return notFound("alert", id)
		}
		a.Status = status
		d.alerts[id] = a
		return nil
	})
}

func (r memAlerts) List(ctx context.Context, f AlertFilter) ([]model.AlertEvent, int, error) {
	var (
		out   []model.AlertEvent
		total int
	)
	err := r.v.do("alerts.list", func(d *memData) error {
		var all []model.AlertEvent
		for _, id := range sortedIDs(d.alerts) {
			a := d.alerts[id]
			if f.Status != "" && a.Status != f.Status {
				continue
			}
			if f.Severity != "" && a.Severity != f.Severity {
				continue
			}
			if f.MissionID != 0 && (a.MissionID == nil || *a.MissionID != f.MissionID) {
				continue
			}
			all = append(all, a)
		}
		out, total = page(all, f.Page)
		return nil
	})
	return out, total, err
}

func (r memAlerts) ListActive(ctx context.Context) ([]model.AlertEvent, error) {
	var out []model.AlertEvent
	err := r.v.do("alerts.active", func(d *memData) error {
		for _, id := range sortedIDs(d.alerts) {
			if a := d.alerts[id]; a.Status.Active() {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}
