// Package scheduler owns the C3 periodic triggers: the catalog refresh
// interval, a daily GC sweep, a stall-sweep watchdog, and a disk-pressure
// sweep, each on its own clockwork-driven ticker. Grounded on the
// teacher's internal/app.ConfigReconciler Start/Stop ticker-loop shape.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Refresher performs one catalog refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Sweeper performs one garbage-collection sweep.
type Sweeper interface {
	Daily(ctx context.Context) error
	StallSweep(ctx context.Context) error
	DiskPressureSweep(ctx context.Context) error
}

const (
	defaultRefreshInterval = time.Minute
	stallSweepInterval     = 5 * time.Minute
	diskSweepInterval      = 6 * time.Hour
)

// Scheduler drives every periodic trigger in its own goroutine/ticker pair.
type Scheduler struct {
	refresher       Refresher
	sweeper         Sweeper
	clock           clockwork.Clock
	refreshInterval time.Duration
	stopCh          chan struct{}
}

func New(refresher Refresher, sweeper Sweeper, clock clockwork.Clock, refreshInterval time.Duration) *Scheduler {
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}
	return &Scheduler{
		refresher:       refresher,
		sweeper:         sweeper,
		clock:           clock,
		refreshInterval: refreshInterval,
		stopCh:          make(chan struct{}),
	}
}

// Start runs every periodic loop until ctx is cancelled or Stop is called.
// It performs one synchronous refresh before returning, per §2's "one
// immediate synchronous refresh at startup" so the catalog is populated
// before the HTTP surface starts serving requests.
func (s *Scheduler) Start(ctx context.Context) {
	if err := s.refresher.Refresh(ctx); err != nil {
		slog.Error("initial catalog refresh failed", "error", err)
	}

	go s.runRefreshLoop(ctx)
	go s.runDailyLoop(ctx)
	go s.runStallSweepLoop(ctx)
	go s.runDiskSweepLoop(ctx)
}

// Stop signals every loop to exit. Safe to call once.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// runRefreshLoop ticks the catalog refresh on a drop-on-overlap basis: a
// refresh already in flight when the next tick fires simply skips that
// tick rather than queuing, since a slow refresh catching up on missed
// ticks would defeat the point of a fixed interval.
func (s *Scheduler) runRefreshLoop(ctx context.Context) {
	ticker := s.clock.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	inFlight := make(chan struct{}, 1)
	inFlight <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.Chan():
			select {
			case <-inFlight:
			default:
				slog.Warn("catalog refresh tick skipped, previous refresh still in flight")
				continue
			}
			go func() {
				defer func() { inFlight <- struct{}{} }()
				if err := s.refresher.Refresh(ctx); err != nil {
					slog.Error("catalog refresh failed", "error", err)
				}
			}()
		}
	}
}

func (s *Scheduler) runDailyLoop(ctx context.Context) {
	s.runEvery(ctx, untilNextMidnight(s.clock.Now()), 24*time.Hour, func() error {
		return s.sweeper.Daily(ctx)
	})
}

func (s *Scheduler) runStallSweepLoop(ctx context.Context) {
	s.runEvery(ctx, stallSweepInterval, stallSweepInterval, func() error {
		return s.sweeper.StallSweep(ctx)
	})
}

func (s *Scheduler) runDiskSweepLoop(ctx context.Context) {
	s.runEvery(ctx, diskSweepInterval, diskSweepInterval, func() error {
		return s.sweeper.DiskPressureSweep(ctx)
	})
}

// runEvery waits initialDelay before the first run, then repeats every
// interval, until ctx is cancelled or Stop is called.
func (s *Scheduler) runEvery(ctx context.Context, initialDelay, interval time.Duration, fn func() error) {
	timer := s.clock.NewTimer(initialDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-s.stopCh:
		return
	case <-timer.Chan():
		if err := fn(); err != nil {
			slog.Error("scheduled sweep failed", "error", err)
		}
	}

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.Chan():
			if err := fn(); err != nil {
				slog.Error("scheduled sweep failed", "error", err)
			}
		}
	}
}

func untilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return next.Sub(now)
}
