package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evetabi/auction/internal/domain"
	"github.com/evetabi/auction/internal/events"
	"github.com/evetabi/auction/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// AuctionService owns auction administration: listing, cancellation,
// archiving and the read side used by both APIs.
type AuctionService struct {
	store    repository.Store
	validate *validator.Validate
	bus      Bus
	now      func() time.Time
	logger   *slog.Logger
}

// NewAuctionService creates an AuctionService.
func NewAuctionService(store repository.Store, logger *slog.Logger) *AuctionService {
	return &AuctionService{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		bus:      noopBus{},
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// SetBus injects the event bus post-construction.
func (s *AuctionService) SetBus(b Bus) { s.bus = b }

// SetClock overrides the time source. Used by tests.
func (s *AuctionService) SetClock(now func() time.Time) { s.now = now }

// ──────────────────────────────────────────────────────────────────────────────
// CreateAuction
// ──────────────────────────────────────────────────────────────────────────────

// CreateAuction validates req and stores a SCHEDULED auction whose current
// price starts at the start price.
func (s *AuctionService) CreateAuction(ctx context.Context, req domain.CreateAuctionRequest) (*domain.Auction, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	now := s.now()
	a := &domain.Auction{
		ID:            uuid.New(),
		StoreID:       req.StoreID,
		SellerID:      req.SellerID,
		ProductID:     req.ProductID,
		Title:         req.Title,
		StartPrice:    req.StartPrice,
		ReservePrice:  req.ReservePrice,
		CurrentBid:    req.StartPrice,
		MinIncrement:  req.MinIncrement,
		StartAt:       req.StartAt.UTC(),
		EndAt:         req.EndAt.UTC(),
		AutoExtend:    req.AutoExtend,
		ExtendMinutes: req.ExtendMinutes,
		Status:        domain.StatusScheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateAuction(ctx, a); err != nil {
		return nil, fmt.Errorf("auction_service.CreateAuction: %w", err)
	}

	s.logger.Info("auction created",
		"auction_id", a.ID, "seller_id", a.SellerID,
		"start_at", a.StartAt, "end_at", a.EndAt)
	return a, nil
}

func (s *AuctionService) validateCreate(req domain.CreateAuctionRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on %q", domain.ErrInvalidAuction, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidAuction, err)
	}
	if req.StartPrice.IsNegative() {
		return fmt.Errorf("%w: start_price must be >= 0", domain.ErrInvalidAuction)
	}
	if !req.MinIncrement.IsPositive() {
		return fmt.Errorf("%w: min_increment must be > 0", domain.ErrInvalidAuction)
	}
	if req.ReservePrice != nil && req.ReservePrice.IsNegative() {
		return fmt.Errorf("%w: reserve_price must be >= 0", domain.ErrInvalidAuction)
	}
	if !req.EndAt.After(s.now()) {
		return fmt.Errorf("%w: end_at must be in the future", domain.ErrInvalidAuction)
	}
	if req.AutoExtend && req.ExtendMinutes == 0 {
		return fmt.Errorf("%w: extend_minutes must be > 0 when auto_extend is on", domain.ErrInvalidAuction)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// GetAuction returns a single auction.
func (s *AuctionService) GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return s.store.GetAuction(ctx, id)
}

// ListAuctions returns a filtered page of auctions and the total count.
func (s *AuctionService) ListAuctions(ctx context.Context, f repository.AuctionFilter) ([]*domain.Auction, int, error) {
	for _, st := range f.Statuses {
		if !st.IsValid() {
			return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidAuction, st)
		}
	}
	f.Limit = clampLimit(f.Limit)
	f.Offset = max(f.Offset, 0)
	auctions, total, err := s.store.ListAuctions(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("auction_service.ListAuctions: %w", err)
	}
	return auctions, total, nil
}

// StatusCounts returns the number of auctions in each status, with every
// known status present.
func (s *AuctionService) StatusCounts(ctx context.Context) (map[domain.AuctionStatus]int, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("auction_service.StatusCounts: %w", err)
	}
	for _, st := range domain.AllStatuses {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return counts, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Admin transitions
// ──────────────────────────────────────────────────────────────────────────────

// CancelAuction voids an auction that has not closed yet. Outstanding bids
// are marked LOST in the same transaction. Once end_at has passed the high
// bid stands and only settlement may move the auction on, even if the sweeper
// has not marked it ENDED yet.
func (s *AuctionService) CancelAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	notClosed := func(a *domain.Auction) error {
		if a.Status.IsBiddable() && a.HasEnded(s.now()) {
			return fmt.Errorf("%w: closed at %s, awaiting settlement",
				domain.ErrAuctionEnded, a.EndAt.Format(time.RFC3339))
		}
		return nil
	}
	a, err := s.transition(ctx, id, domain.StatusCancelled, notClosed, func(ctx context.Context, tx repository.Tx) error {
		return tx.SettleBids(ctx, id, nil)
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(events.AuctionChannel(id), events.AuctionCancelled, events.StatusPayload{
		AuctionID: id,
		Status:    string(domain.StatusCancelled),
		EndAt:     a.EndAt,
	})
	s.logger.Info("auction cancelled", "auction_id", id)
	return a, nil
}

// ArchiveAuction hides an ENDED auction from the default listings.
func (s *AuctionService) ArchiveAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	a, err := s.transition(ctx, id, domain.StatusArchived, nil, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("auction archived", "auction_id", id)
	return a, nil
}

// transition moves id to target if the table allows it from the status read
// inside the transaction and guard (when set) accepts the locked row. extra
// runs in the same transaction after the write.
func (s *AuctionService) transition(
	ctx context.Context,
	id uuid.UUID,
	target domain.AuctionStatus,
	guard func(a *domain.Auction) error,
	extra func(ctx context.Context, tx repository.Tx) error,
) (*domain.Auction, error) {
	var out *domain.Auction
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.LockAuction(ctx, id)
		if err != nil {
			return err
		}
		if !a.Status.CanTransitionTo(target) {
			if a.Status.IsTerminal() {
				return fmt.Errorf("%w: auction is already %s", domain.ErrInvalidTransition, a.Status)
			}
			return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, a.Status, target)
		}
		if guard != nil {
			if err = guard(a); err != nil {
				return err
			}
		}
		ok, err := tx.TransitionStatus(ctx, id, a.Status, target)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: status changed concurrently", domain.ErrInvalidTransition)
		}
		if extra != nil {
			if err = extra(ctx, tx); err != nil {
				return err
			}
		}
		out, err = tx.GetAuction(ctx, id)
		return err
	})
	if err != nil {
		if domain.IsNotFound(err) || errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrAuctionEnded) {
			return nil, err
		}
		return nil, fmt.Errorf("auction_service.transition %s: %w", target, err)
	}
	return out, nil
}
