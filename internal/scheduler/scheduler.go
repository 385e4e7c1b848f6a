// Package scheduler runs the background loops that drive the auction
// lifecycle:
//  1. sweepLoop – starts, flags and settles auctions every SweepInterval.
//  2. statsLoop – logs fan-out health (dropped events, connected clients).
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/evetabi/auction/internal/config"
	"github.com/evetabi/auction/internal/service"
)

// ──────────────────────────────────────────────────────────────────────────────
// Dependencies
// ──────────────────────────────────────────────────────────────────────────────

// Sweeper is the part of LifecycleService the scheduler drives.
type Sweeper interface {
	RunSweep(ctx context.Context) (service.SweepResult, error)
}

// Stats exposes fan-out counters. Declared here so the scheduler does not
// import the events and ws packages. Optional.
type Stats interface {
	Dropped() int64
	ConnectedCount() int
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler owns the lifecycle goroutines. Call Run(ctx) once from main();
// cancel the context to shut it down.
type Scheduler struct {
	sweeper       Sweeper
	stats         Stats
	interval      time.Duration
	statsInterval time.Duration
	logger        *slog.Logger
}

// NewScheduler creates a Scheduler. stats may be nil.
func NewScheduler(sweeper Sweeper, stats Stats, cfg *config.Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sweeper:       sweeper,
		stats:         stats,
		interval:      cfg.Auction.SweepInterval,
		statsInterval: time.Minute,
		logger:        logger,
	}
}

// Run launches the loops and blocks until ctx is cancelled and every loop
// has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.sweepLoop(ctx)
	}()
	if s.stats != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.statsLoop(ctx)
		}()
	}
	s.logger.Info("scheduler started", "sweep_interval", s.interval)
	wg.Wait()
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// sweepLoop
// ──────────────────────────────────────────────────────────────────────────────

// sweepLoop sweeps once immediately, so auctions that expired while the
// process was down are settled at boot, then on every tick.
func (s *Scheduler) sweepLoop(ctx context.Context) {
	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweepLoop: shutting down")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce is the inner body of sweepLoop, extracted so that a panic in one
// sweep is recovered without killing the loop.
func (s *Scheduler) sweepOnce(ctx context.Context) {
	defer s.recoverAndLog("sweepLoop")

	// RunSweep logs its own summary.
	if _, err := s.sweeper.RunSweep(ctx); err != nil {
		s.logger.Error("sweepLoop: RunSweep", "err", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// statsLoop
// ──────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) statsLoop(ctx context.Context) {
	defer s.recoverAndLog("statsLoop")

	ticker := time.NewTicker(s.statsInterval)
	defer ticker.Stop()

	var lastDropped int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dropped := s.stats.Dropped()
			if dropped > lastDropped {
				s.logger.Warn("events dropped since last check",
					"dropped", dropped-lastDropped, "total", dropped)
			}
			lastDropped = dropped
			s.logger.Debug("fan-out stats", "ws_clients", s.stats.ConnectedCount())
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog catches unexpected panics, logs them, and lets the scheduler
// keep running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
