package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BidStatus represents the outcome state of a bid.
type BidStatus string

const (
	BidStatusActive BidStatus = "ACTIVE" // auction still open
	BidStatusWon    BidStatus = "WON"    // highest bid at settlement
	BidStatusLost   BidStatus = "LOST"   // outbid, or auction cancelled
)

// Bid is an immutable record of an accepted bid. Only settlement (or
// cancellation) changes its Status.
type Bid struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	AuctionID uuid.UUID       `json:"auction_id" db:"auction_id"`
	BidderID  uuid.UUID       `json:"bidder_id"  db:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"     db:"amount"`
	IsAuto    bool            `json:"is_auto"    db:"is_auto"`
	Status    BidStatus       `json:"status"     db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// IsActive returns true while the bid awaits settlement.
func (b *Bid) IsActive() bool {
	return b.Status == BidStatusActive
}

// Outranks reports whether b beats other for the win: higher amount first,
// then the earlier bid, then the lower id so the order is total.
func (b *Bid) Outranks(other *Bid) bool {
	if c := b.Amount.Cmp(other.Amount); c != 0 {
		return c > 0
	}
	if !b.CreatedAt.Equal(other.CreatedAt) {
		return b.CreatedAt.Before(other.CreatedAt)
	}
	return b.ID.String() < other.ID.String()
}

// PlaceBidRequest carries the validated inputs for placing a bid.
type PlaceBidRequest struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    decimal.Decimal
	IsAuto    bool
}
