package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evetabi/auction/internal/config"
	"github.com/evetabi/auction/internal/domain"
	"github.com/evetabi/auction/internal/events"
	"github.com/evetabi/auction/internal/repository"
	"github.com/google/uuid"
)

// SweepResult counts the transitions one sweep committed.
type SweepResult struct {
	Started    int `json:"started"`
	EndingSoon int `json:"ending_soon"`
	Ended      int `json:"ended"`
	Failed     int `json:"failed"`
}

// Settler is the part of SettlementService the sweeper drives.
type Settler interface {
	Settle(ctx context.Context, auctionID uuid.UUID) (*SettlementResult, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// LifecycleService
// ──────────────────────────────────────────────────────────────────────────────

// LifecycleService advances auctions through their time-driven states. It is
// safe to run several sweeps concurrently: every transition is a conditional
// write that re-checks its time predicate, so a lost race is a silent no-op.
type LifecycleService struct {
	store     repository.Store
	settler   Settler
	bus       Bus
	window    time.Duration
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// NewLifecycleService creates a LifecycleService.
func NewLifecycleService(store repository.Store, settler Settler, cfg *config.Config, logger *slog.Logger) *LifecycleService {
	return &LifecycleService{
		store:     store,
		settler:   settler,
		bus:       noopBus{},
		window:    cfg.Auction.EndingSoonWindow,
		batchSize: cfg.Auction.SweepBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// SetBus injects the event bus post-construction.
func (s *LifecycleService) SetBus(b Bus) { s.bus = b }

// SetClock overrides the time source. Used by tests.
func (s *LifecycleService) SetClock(now func() time.Time) { s.now = now }

// RunSweep runs the three passes in order: start due auctions, flag auctions
// closing within the look-ahead window, settle expired ones. A failure on one
// auction is logged and counted; it never stops the rest of the sweep. The
// returned error is non-nil only when a candidate query itself failed.
func (s *LifecycleService) RunSweep(ctx context.Context) (SweepResult, error) {
	var (
		res  SweepResult
		errs []error
	)

	if err := s.startDue(ctx, &res); err != nil {
		errs = append(errs, err)
	}
	if err := s.flagEndingSoon(ctx, &res); err != nil {
		errs = append(errs, err)
	}
	if err := s.settleExpired(ctx, &res); err != nil {
		errs = append(errs, err)
	}

	if res.Started+res.EndingSoon+res.Ended+res.Failed > 0 {
		s.logger.Info("sweep complete",
			"started", res.Started, "ending_soon", res.EndingSoon,
			"ended", res.Ended, "failed", res.Failed)
	}
	return res, errors.Join(errs...)
}

// ── Pass 1: SCHEDULED → RUNNING ──────────────────────────────────────────────

func (s *LifecycleService) startDue(ctx context.Context, res *SweepResult) error {
	now := s.now()
	due, err := s.store.ListStartable(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("lifecycle.startDue: %w", err)
	}
	for _, a := range due {
		ok, err := s.store.StartAuction(ctx, a.ID, s.now())
		if err != nil {
			res.Failed++
			s.logger.Error("start auction failed", "auction_id", a.ID, "err", err)
			continue
		}
		if !ok {
			continue
		}
		res.Started++
		s.publishStatus(a, domain.StatusRunning, events.AuctionStarted)
	}
	return nil
}

// ── Pass 2: RUNNING → ENDING_SOON ────────────────────────────────────────────

func (s *LifecycleService) flagEndingSoon(ctx context.Context, res *SweepResult) error {
	now := s.now()
	closing, err := s.store.ListEndingWithin(ctx, now, s.window, s.batchSize)
	if err != nil {
		return fmt.Errorf("lifecycle.flagEndingSoon: %w", err)
	}
	for _, a := range closing {
		ok, err := s.store.MarkEndingSoon(ctx, a.ID, s.now(), s.window)
		if err != nil {
			res.Failed++
			s.logger.Error("mark ending soon failed", "auction_id", a.ID, "err", err)
			continue
		}
		if !ok {
			continue
		}
		res.EndingSoon++
		s.publishStatus(a, domain.StatusEndingSoon, events.AuctionEndingSoon)
	}
	return nil
}

// ── Pass 3: expired → ENDED (settlement) ─────────────────────────────────────

func (s *LifecycleService) settleExpired(ctx context.Context, res *SweepResult) error {
	now := s.now()
	expired, err := s.store.ListExpired(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("lifecycle.settleExpired: %w", err)
	}
	for _, a := range expired {
		_, err := s.settler.Settle(ctx, a.ID)
		switch {
		case err == nil:
			res.Ended++
		case errors.Is(err, domain.ErrSettlementAlreadyComplete), errors.Is(err, domain.ErrSettlementNotDue):
			// Another sweeper got there first, or a late bid extended the auction.
			s.logger.Debug("settlement skipped", "auction_id", a.ID, "reason", err)
		default:
			res.Failed++
			s.logger.Error("settle auction failed", "auction_id", a.ID, "err", err)
		}
	}
	return nil
}

func (s *LifecycleService) publishStatus(a *domain.Auction, status domain.AuctionStatus, event string) {
	s.bus.Publish(events.AuctionChannel(a.ID), event, events.StatusPayload{
		AuctionID: a.ID,
		Status:    string(status),
		EndAt:     a.EndAt,
	})
}
