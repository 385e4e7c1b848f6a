// Package repository owns every read and conditional write against the
// auction record store and the bid ledger. CurrentBid, EndAt and Status are
// only ever changed through the guarded methods below; there is no blind
// update path.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/evetabi/auction/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrTxConflict wraps database errors that are safe to retry from the
	// start of the transaction (serialization failure, deadlock).
	ErrTxConflict = errors.New("transaction conflict")

	// ErrDuplicate wraps unique-constraint violations.
	ErrDuplicate = errors.New("duplicate record")

	// ErrOrderNotFound is returned when an auction has no order yet.
	ErrOrderNotFound = errors.New("order not found")
)

// AuctionFilter narrows ListAuctions. Zero values mean "any".
type AuctionFilter struct {
	Statuses []domain.AuctionStatus
	StoreID  *uuid.UUID
	SellerID *uuid.UUID
	Limit    int
	Offset   int
}

// Store is the non-transactional surface plus the transaction entry point.
type Store interface {
	CreateAuction(ctx context.Context, a *domain.Auction) error
	GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	ListAuctions(ctx context.Context, f AuctionFilter) ([]*domain.Auction, int, error)
	CountByStatus(ctx context.Context) (map[domain.AuctionStatus]int, error)

	// Sweep candidates. Results are hints; the guarded writes re-check them.
	ListStartable(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error)
	ListEndingWithin(ctx context.Context, now time.Time, window time.Duration, limit int) ([]*domain.Auction, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error)

	// StartAuction moves SCHEDULED → RUNNING iff start_at <= now at write time.
	StartAuction(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// MarkEndingSoon moves RUNNING → ENDING_SOON iff now < end_at <= now+window
	// at write time.
	MarkEndingSoon(ctx context.Context, id uuid.UUID, now time.Time, window time.Duration) (bool, error)

	ListBids(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]*domain.Bid, error)
	ListBidsByBidder(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]*domain.Bid, error)
	CountBids(ctx context.Context, auctionID uuid.UUID) (int, error)
	CountBidsByBidder(ctx context.Context, bidderID uuid.UUID) (int, error)
	GetOrderByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Order, error)

	// InTx runs fn in one transaction: committed when fn returns nil, rolled
	// back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional surface used by bid placement and settlement.
type Tx interface {
	GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	// LockAuction reads the auction row and holds it until the tx ends.
	LockAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error)

	// RaiseCurrentBid sets current_bid = amount iff the auction is biddable,
	// end_at > now and current_bid + min_increment <= amount. Returns false
	// when the guard fails.
	RaiseCurrentBid(ctx context.Context, id uuid.UUID, amount decimal.Decimal, now time.Time) (bool, error)
	// ExtendAuction applies an extension iff end_at still equals PrevEndAt
	// and the auction is biddable.
	ExtendAuction(ctx context.Context, id uuid.UUID, ext *domain.Extension) (bool, error)
	InsertBid(ctx context.Context, b *domain.Bid) error

	TopActiveBid(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error)
	// SettleBids marks winnerBidID WON (when set) and every other ACTIVE bid
	// of the auction LOST.
	SettleBids(ctx context.Context, auctionID uuid.UUID, winnerBidID *uuid.UUID) error
	// EndAuction moves a biddable auction with end_at <= now to ENDED and
	// records the outcome.
	EndAuction(ctx context.Context, id uuid.UUID, winnerID *uuid.UUID, reserveMet bool, now time.Time) (bool, error)

	GetOrderByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Order, error)
	// CreateOrder inserts o unless the auction already has an order.
	CreateOrder(ctx context.Context, o *domain.Order) (bool, error)

	// TransitionStatus is the guarded admin path (cancel, archive).
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.AuctionStatus) (bool, error)
}
