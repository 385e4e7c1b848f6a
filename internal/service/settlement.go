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
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementResult describes a committed settlement.
type SettlementResult struct {
	AuctionID  uuid.UUID       `json:"auction_id"`
	SellerID   uuid.UUID       `json:"seller_id"`
	WinnerID   *uuid.UUID      `json:"winner_id,omitempty"`
	WinningBid *uuid.UUID      `json:"winning_bid_id,omitempty"`
	FinalPrice decimal.Decimal `json:"final_price"`
	ReserveMet bool            `json:"reserve_met"`
	Order      *domain.Order   `json:"order,omitempty"`
	SettledAt  time.Time       `json:"settled_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementService
// ──────────────────────────────────────────────────────────────────────────────

// SettlementService turns an expired auction into its final outcome: winner
// elected, bids finalised, state ENDED and, when the reserve is met, exactly
// one order. It is safe to call repeatedly for the same auction.
type SettlementService struct {
	store    repository.Store
	bus      Bus
	notifier Notifier
	threads  ThreadOpener
	now      func() time.Time
	logger   *slog.Logger
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(store repository.Store, logger *slog.Logger) *SettlementService {
	return &SettlementService{
		store:  store,
		bus:    noopBus{},
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// SetBus injects the event bus post-construction.
func (s *SettlementService) SetBus(b Bus) { s.bus = b }

// SetNotifier injects the outcome notifier.
func (s *SettlementService) SetNotifier(n Notifier) { s.notifier = n }

// SetThreadOpener injects the buyer/seller messaging collaborator.
func (s *SettlementService) SetThreadOpener(t ThreadOpener) { s.threads = t }

// SetClock overrides the time source. Used by tests.
func (s *SettlementService) SetClock(now func() time.Time) { s.now = now }

// Settle settles one auction inside a single transaction.
//
// Returns domain.ErrSettlementAlreadyComplete when an earlier call already
// ended the auction or produced its order, and domain.ErrSettlementNotDue when
// the closing time has not been reached.
func (s *SettlementService) Settle(ctx context.Context, auctionID uuid.UUID) (*SettlementResult, error) {
	now := s.now()
	var res *SettlementResult

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}

		switch {
		case a.Status == domain.StatusEnded || a.Status == domain.StatusArchived:
			return domain.ErrSettlementAlreadyComplete
		case a.Status == domain.StatusCancelled:
			return fmt.Errorf("%w: auction is cancelled", domain.ErrInvalidTransition)
		}

		if _, err = tx.GetOrderByAuction(ctx, auctionID); err == nil {
			return domain.ErrSettlementAlreadyComplete
		} else if !errors.Is(err, repository.ErrOrderNotFound) {
			return err
		}

		if !a.Status.IsBiddable() || !a.HasEnded(now) {
			return domain.ErrSettlementNotDue
		}

		top, err := tx.TopActiveBid(ctx, auctionID)
		if err != nil {
			return err
		}

		res = &SettlementResult{
			AuctionID:  a.ID,
			SellerID:   a.SellerID,
			FinalPrice: a.CurrentBid,
			ReserveMet: a.IsReserveMet(),
			SettledAt:  now,
		}
		var winningBid *uuid.UUID
		if top != nil {
			bidID, winner := top.ID, top.BidderID
			winningBid = &bidID
			res.WinningBid = &bidID
			res.WinnerID = &winner
		}

		if err = tx.SettleBids(ctx, auctionID, winningBid); err != nil {
			return err
		}

		ended, err := tx.EndAuction(ctx, auctionID, res.WinnerID, res.ReserveMet, now)
		if err != nil {
			return err
		}
		if !ended {
			return domain.ErrSettlementNotDue
		}

		if top == nil || !res.ReserveMet {
			return nil
		}
		order := &domain.Order{
			ID:        uuid.New(),
			AuctionID: a.ID,
			BuyerID:   top.BidderID,
			SellerID:  a.SellerID,
			StoreID:   a.StoreID,
			Amount:    top.Amount,
			CreatedAt: now,
		}
		created, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		if !created {
			return domain.ErrSettlementAlreadyComplete
		}
		res.Order = order
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrSettlementAlreadyComplete) || errors.Is(err, domain.ErrSettlementNotDue) ||
			domain.IsNotFound(err) || errors.Is(err, domain.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("settlement.Settle %s: %w", auctionID, err)
	}

	s.logger.Info("auction settled",
		"auction_id", res.AuctionID,
		"winner_id", res.WinnerID,
		"final_price", res.FinalPrice.String(),
		"reserve_met", res.ReserveMet,
		"order_created", res.Order != nil,
	)
	s.afterCommit(ctx, res)
	return res, nil
}

// afterCommit runs the side effects that must never roll back settlement.
func (s *SettlementService) afterCommit(ctx context.Context, res *SettlementResult) {
	payload := events.EndedPayload{
		AuctionID:  res.AuctionID,
		WinnerID:   res.WinnerID,
		FinalPrice: res.FinalPrice,
		ReserveMet: res.ReserveMet,
		EndedAt:    res.SettledAt,
	}
	if res.Order != nil {
		payload.OrderID = &res.Order.ID
	}
	s.bus.Publish(events.AuctionChannel(res.AuctionID), events.AuctionEnded, payload)

	if s.threads == nil && s.notifier == nil {
		return
	}
	// Collaborators are external and may be slow; settlement has already
	// committed, so they run detached from the caller.
	go func(ctx context.Context) {
		if res.Order != nil && s.threads != nil {
			if err := s.threads.OpenThread(ctx, res.Order); err != nil {
				s.logger.Warn("open buyer/seller thread failed", "auction_id", res.AuctionID, "err", err)
			}
		}
		if s.notifier != nil {
			if err := s.notifier.AuctionEnded(ctx, res); err != nil {
				s.logger.Warn("auction outcome notification failed", "auction_id", res.AuctionID, "err", err)
			}
		}
	}(context.WithoutCancel(ctx))
}
