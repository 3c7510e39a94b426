package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Locker grants a lease that keeps replicas from sweeping at the same time.
// TryLock returns ok=false without error when another holder has the
// lease.
type Locker interface {
	TryLock(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

// SweepResult reports one sweep pass.
type SweepResult struct {
	Expired   int
	Completed int
	Skipped   bool
}

// Sweeper periodically expires overdue applications and completes overdue
// missions. It has an explicit lifecycle: Start once at process init and
// Stop at shutdown.
type Sweeper struct {
	flights  *FlightService
	missions *MissionService
	interval time.Duration
	lock     Locker
	log      *zap.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	totalExpired   atomic.Int64
	totalCompleted atomic.Int64
	lastRun        atomic.Int64 // unix seconds
}

// NewSweeper builds a sweeper. A nil lock runs every tick locally.
func NewSweeper(flights *FlightService, missions *MissionService, interval time.Duration, lock Locker, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{flights: flights, missions: missions, interval: interval, lock: lock, log: log}
}

// ErrSweeperRunning is returned by Start on a sweeper that is already
// running.
var ErrSweeperRunning = errors.New("sweeper already running")

// Start runs one pass immediately and then one per interval until ctx is
// cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.running.Swap(true) {
		return ErrSweeperRunning
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.log.Info("sweeper started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	if !s.running.Load() {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.running.Store(false)
	s.log.Info("sweeper stopped")
}

// Running reports whether the loop is active.
func (s *Sweeper) Running() bool { return s.running.Load() }

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("sweep failed", zap.Error(err))
	}
}

// RunOnce performs a single pass. When a lock is configured and another
// replica holds it, the pass is skipped.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	if s.lock != nil {
		release, ok, err := s.lock.TryLock(ctx, s.interval)
		if err != nil {
			// the sweep is idempotent, so running without the lease is safe
			s.log.Warn("sweeper lock unavailable, sweeping locally", zap.Error(err))
		} else if !ok {
			res.Skipped = true
			return res, nil
		} else {
			defer release()
		}
	}

	var errs []error
	n, err := s.flights.ExpireOverdue(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	res.Expired = n

	n, err = s.missions.SweepOverdueMissions(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	res.Completed = n

	s.totalExpired.Add(int64(res.Expired))
	s.totalCompleted.Add(int64(res.Completed))
	s.lastRun.Store(time.Now().Unix())
	return res, errors.Join(errs...)
}

// SweeperStats summarizes the sweeper since start.
type SweeperStats struct {
	Running        bool      `json:"running"`
	Interval       string    `json:"interval"`
	TotalExpired   int64     `json:"total_expired"`
	TotalCompleted int64     `json:"total_completed"`
	LastRun        time.Time `json:"last_run"`
}

// Stats returns counters for the health endpoint.
func (s *Sweeper) Stats() SweeperStats {
	return SweeperStats{
		Running:        s.running.Load(),
		Interval:       s.interval.String(),
		TotalExpired:   s.totalExpired.Load(),
		TotalCompleted: s.totalCompleted.Load(),
		LastRun:        time.Unix(s.lastRun.Load(), 0).UTC(),
	}
}
