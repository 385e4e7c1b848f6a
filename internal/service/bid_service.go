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
	"github.com/sethvargo/go-retry"
)

// errLostRace marks an attempt whose conditional write matched no row, or whose
// transaction was aborted by the database as a serialization conflict.
var errLostRace = errors.New("conditional write lost to a concurrent update")

// retryPause is the base wait between attempts; jitter spreads out bidders
// that collided on the same row.
const retryPause = 2 * time.Millisecond

// BidResult is returned for an accepted bid.
type BidResult struct {
	Bid       *domain.Bid       `json:"bid"`
	Auction   *domain.Auction   `json:"auction"`
	Extension *domain.Extension `json:"-"`
	Attempts  int               `json:"-"`
}

// Extended reports whether the bid pushed out the closing time.
func (r *BidResult) Extended() bool { return r.Extension != nil }

// ──────────────────────────────────────────────────────────────────────────────
// BidService
// ──────────────────────────────────────────────────────────────────────────────

// BidService accepts bids against the shared current price. The store is the
// only arbiter: every accepted bid went through a conditional write on
// current_bid, and a lost race is retried from a fresh read.
type BidService struct {
	store       repository.Store
	policy      domain.ExtensionPolicy
	maxAttempts int
	bus         Bus
	resolver    BidderResolver
	now         func() time.Time
	logger      *slog.Logger
}

// NewBidService creates a BidService.
func NewBidService(store repository.Store, cfg *config.Config, logger *slog.Logger) *BidService {
	attempts := cfg.Auction.MaxBidAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &BidService{
		store:       store,
		policy:      domain.ExtensionPolicy{MaxExtensions: cfg.Auction.MaxExtensions},
		maxAttempts: attempts,
		bus:         noopBus{},
		resolver:    IdentityResolver{},
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
	}
}

// SetBus injects the event bus post-construction.
func (s *BidService) SetBus(b Bus) { s.bus = b }

// SetBidderResolver replaces the default identity resolver.
func (s *BidService) SetBidderResolver(r BidderResolver) { s.resolver = r }

// SetClock overrides the time source. Used by tests.
func (s *BidService) SetClock(now func() time.Time) { s.now = now }

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBid
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBid validates and commits a bid. Each attempt reads the auction,
// runs the preconditions, then in one transaction raises current_bid
// conditionally, records the bid and applies any auto-extension. An attempt
// whose conditional write matches nothing is rolled back and re-run from a
// fresh read; a bid that was outbid in the meantime then fails validation
// with *BidTooLowError. If every attempt loses, *ConflictError is returned.
//
// Events are published only after the commit.
func (s *BidService) PlaceBid(ctx context.Context, req domain.PlaceBidRequest) (*BidResult, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	bidderID, err := s.resolver.ResolveBidder(ctx, req.BidderID)
	if err != nil {
		return nil, fmt.Errorf("bid_service.PlaceBid: resolve bidder: %w", err)
	}

	var (
		result   *BidResult
		attempts int
		last     *domain.Auction
	)
	backoff := retry.WithMaxRetries(uint64(s.maxAttempts-1),
		retry.WithJitter(retryPause, retry.NewConstant(retryPause)))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		res, snapshot, err := s.attempt(ctx, req, bidderID)
		if snapshot != nil {
			last = snapshot
		}
		if errors.Is(err, errLostRace) {
			s.logger.Debug("bid attempt lost race",
				"auction_id", req.AuctionID, "attempt", attempts, "err", err)
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		result = res
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, errLostRace):
		return nil, s.conflict(ctx, req.AuctionID, last, attempts)
	default:
		return nil, err
	}

	result.Attempts = attempts
	s.publishBid(result)

	s.logger.Info("bid accepted",
		"auction_id", result.Auction.ID,
		"bid_id", result.Bid.ID,
		"amount", result.Bid.Amount.String(),
		"attempts", attempts,
		"extended", result.Extended(),
	)
	return result, nil
}

// attempt runs one read-validate-write cycle. The returned snapshot is the
// auction as read before the transaction, even when the attempt fails.
func (s *BidService) attempt(ctx context.Context, req domain.PlaceBidRequest, bidderID uuid.UUID) (*BidResult, *domain.Auction, error) {
	a, err := s.store.GetAuction(ctx, req.AuctionID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	if err = a.CheckBid(bidderID, req.Amount, now); err != nil {
		return nil, a, err
	}

	var result *BidResult
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		raised, err := tx.RaiseCurrentBid(ctx, a.ID, req.Amount, now)
		if err != nil {
			return err
		}
		if !raised {
			return errLostRace
		}

		bid := &domain.Bid{
			ID:        uuid.New(),
			AuctionID: a.ID,
			BidderID:  bidderID,
			Amount:    req.Amount,
			IsAuto:    req.IsAuto,
			Status:    domain.BidStatusActive,
			CreatedAt: now,
		}
		if err = tx.InsertBid(ctx, bid); err != nil {
			return err
		}

		current, err := tx.GetAuction(ctx, a.ID)
		if err != nil {
			return err
		}

		ext := s.policy.Evaluate(current, now)
		if ext != nil {
			extended, err := tx.ExtendAuction(ctx, a.ID, ext)
			if err != nil {
				return err
			}
			if extended {
				ext.Apply(current)
			} else {
				ext = nil
			}
		}

		result = &BidResult{Bid: bid, Auction: current, Extension: ext}
		return nil
	})
	if errors.Is(err, repository.ErrTxConflict) {
		return nil, a, fmt.Errorf("%w: %w", errLostRace, err)
	}
	if err != nil && !errors.Is(err, errLostRace) {
		return nil, a, fmt.Errorf("bid_service.PlaceBid: commit: %w", err)
	}
	return result, a, err
}

// conflict builds the retry-exhausted error with the freshest minimum available.
func (s *BidService) conflict(ctx context.Context, auctionID uuid.UUID, last *domain.Auction, attempts int) error {
	if fresh, err := s.store.GetAuction(ctx, auctionID); err == nil {
		last = fresh
	}
	s.logger.Warn("bid retry budget exhausted", "auction_id", auctionID, "attempts", attempts)
	cerr := &domain.ConflictError{Attempts: attempts}
	if last != nil {
		cerr.Minimum = last.MinNextBid()
		cerr.CurrentBid = last.CurrentBid
	}
	return cerr
}

func (s *BidService) publishBid(r *BidResult) {
	a := r.Auction
	channel := events.AuctionChannel(a.ID)
	s.bus.Publish(channel, events.BidPlaced, events.BidPlacedPayload{
		AuctionID:  a.ID,
		BidID:      r.Bid.ID,
		BidderID:   r.Bid.BidderID,
		Amount:     r.Bid.Amount,
		MinNextBid: a.MinNextBid(),
		EndAt:      a.EndAt,
		Extended:   r.Extended(),
		PlacedAt:   r.Bid.CreatedAt,
	})
	if r.Extension != nil {
		s.bus.Publish(channel, events.AuctionExtended, events.ExtendedPayload{
			AuctionID:      a.ID,
			PrevEndAt:      r.Extension.PrevEndAt,
			EndAt:          a.EndAt,
			ExtensionCount: a.ExtensionCount,
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// ListBids returns a page of an auction's bids ranked by amount, and the
// auction's total bid count.
func (s *BidService) ListBids(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]*domain.Bid, int, error) {
	if _, err := s.store.GetAuction(ctx, auctionID); err != nil {
		return nil, 0, err
	}
	bids, err := s.store.ListBids(ctx, auctionID, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("bid_service.ListBids: %w", err)
	}
	total, err := s.store.CountBids(ctx, auctionID)
	if err != nil {
		return nil, 0, fmt.Errorf("bid_service.ListBids: %w", err)
	}
	return bids, total, nil
}

// MyBids returns a page of the caller's bid history, newest first, and the
// caller's total bid count.
func (s *BidService) MyBids(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bid, int, error) {
	bidderID, err := s.resolver.ResolveBidder(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("bid_service.MyBids: resolve bidder: %w", err)
	}
	bids, err := s.store.ListBidsByBidder(ctx, bidderID, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("bid_service.MyBids: %w", err)
	}
	total, err := s.store.CountBidsByBidder(ctx, bidderID)
	if err != nil {
		return nil, 0, fmt.Errorf("bid_service.MyBids: %w", err)
	}
	return bids, total, nil
}
