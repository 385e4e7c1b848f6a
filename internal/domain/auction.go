// Package domain defines the core business entities and rules of the auction
// bidding and lifecycle engine.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// AuctionStatus & transition table
// ──────────────────────────────────────────────────────────────────────────────

// AuctionStatus represents the lifecycle state of an auction.
type AuctionStatus string

const (
	StatusScheduled  AuctionStatus = "SCHEDULED"   // created, start time not reached
	StatusRunning    AuctionStatus = "RUNNING"     // accepting bids
	StatusEndingSoon AuctionStatus = "ENDING_SOON" // accepting bids, close is imminent
	StatusEnded      AuctionStatus = "ENDED"       // settled, winner elected
	StatusArchived   AuctionStatus = "ARCHIVED"    // ended and hidden from listings
	StatusCancelled  AuctionStatus = "CANCELLED"   // voided before settlement
)

// AllStatuses lists every known status in lifecycle order.
var AllStatuses = []AuctionStatus{
	StatusScheduled,
	StatusRunning,
	StatusEndingSoon,
	StatusEnded,
	StatusArchived,
	StatusCancelled,
}

// BiddableStatuses are the states in which a bid may be committed.
var BiddableStatuses = []AuctionStatus{StatusRunning, StatusEndingSoon}

// transitions is the closed set of legal state changes. Every writer that
// moves an auction between states checks this table before issuing its
// conditional update.
var transitions = map[AuctionStatus][]AuctionStatus{
	StatusScheduled:  {StatusRunning, StatusCancelled},
	StatusRunning:    {StatusEndingSoon, StatusEnded, StatusCancelled},
	StatusEndingSoon: {StatusRunning, StatusEnded, StatusCancelled},
	StatusEnded:      {StatusArchived},
}

// IsValid returns true if s is a recognised status.
func (s AuctionStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsBiddable returns true for RUNNING and ENDING_SOON.
func (s AuctionStatus) IsBiddable() bool {
	return s == StatusRunning || s == StatusEndingSoon
}

// IsTerminal returns true once no further bidding or settlement can happen.
func (s AuctionStatus) IsTerminal() bool {
	return s == StatusEnded || s == StatusArchived || s == StatusCancelled
}

// CanTransitionTo reports whether the table allows s → next.
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────────────────────────────────────
// Auction
// ──────────────────────────────────────────────────────────────────────────────

// Auction is a single timed listing. CurrentBid, EndAt and Status are owned by
// the store; in-memory copies are snapshots and must never be written back
// blindly.
type Auction struct {
	ID             uuid.UUID        `json:"id"               db:"id"`
	StoreID        uuid.UUID        `json:"store_id"         db:"store_id"`
	SellerID       uuid.UUID        `json:"seller_id"        db:"seller_id"`
	ProductID      *uuid.UUID       `json:"product_id"       db:"product_id"`
	Title          string           `json:"title"            db:"title"`
	StartPrice     decimal.Decimal  `json:"start_price"      db:"start_price"`
	ReservePrice   *decimal.Decimal `json:"reserve_price"    db:"reserve_price"`
	CurrentBid     decimal.Decimal  `json:"current_bid"      db:"current_bid"`
	MinIncrement   decimal.Decimal  `json:"min_increment"    db:"min_increment"`
	StartAt        time.Time        `json:"start_at"         db:"start_at"`
	EndAt          time.Time        `json:"end_at"           db:"end_at"`
	AutoExtend     bool             `json:"auto_extend"      db:"auto_extend"`
	ExtendMinutes  int              `json:"extend_minutes"   db:"extend_minutes"`
	ExtensionCount int              `json:"extension_count"  db:"extension_count"`
	LastExtendedAt *time.Time       `json:"last_extended_at" db:"last_extended_at"`
	Status         AuctionStatus    `json:"status"           db:"status"`
	WinnerID       *uuid.UUID       `json:"winner_id"        db:"winner_id"`
	ReserveMet     *bool            `json:"reserve_met"      db:"reserve_met"`
	CreatedAt      time.Time        `json:"created_at"       db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"       db:"updated_at"`
}

// MinNextBid returns the smallest amount the next bid must reach.
func (a *Auction) MinNextBid() decimal.Decimal {
	return a.CurrentBid.Add(a.MinIncrement)
}

// ExtendWindow is the width of the closing window and the length of one
// extension.
func (a *Auction) ExtendWindow() time.Duration {
	return time.Duration(a.ExtendMinutes) * time.Minute
}

// HasEnded reports whether the closing time has been reached. Time is the
// ground truth; Status may lag behind it until the next sweep.
func (a *Auction) HasEnded(now time.Time) bool {
	return !now.Before(a.EndAt)
}

// IsReserveMet evaluates the reserve rule against the current price: met when
// no reserve is set or CurrentBid >= ReservePrice.
func (a *Auction) IsReserveMet() bool {
	if a.ReservePrice == nil {
		return true
	}
	return a.CurrentBid.GreaterThanOrEqual(*a.ReservePrice)
}

// CheckBid runs the bid preconditions in their fixed order against this
// snapshot. Existence is checked by the caller.
//
//  1. status must be RUNNING or ENDING_SOON      → ErrAuctionNotActive
//  2. now must be strictly before EndAt          → ErrAuctionEnded
//  3. amount >= CurrentBid + MinIncrement        → *BidTooLowError
//  4. bidder must not be the seller              → ErrForbidden
func (a *Auction) CheckBid(bidderID uuid.UUID, amount decimal.Decimal, now time.Time) error {
	if !a.Status.IsBiddable() {
		return ErrAuctionNotActive
	}
	if a.HasEnded(now) {
		return ErrAuctionEnded
	}
	if minimum := a.MinNextBid(); amount.LessThan(minimum) {
		return &BidTooLowError{Minimum: minimum, CurrentBid: a.CurrentBid}
	}
	if bidderID == a.SellerID {
		return ErrSelfBid
	}
	return nil
}

// TimeLeft returns the duration remaining until the auction closes.
// Returns 0 if the closing time has already passed.
func (a *Auction) TimeLeft(now time.Time) time.Duration {
	remaining := a.EndAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ──────────────────────────────────────────────────────────────────────────────
// AuctionSummary is the read model for ws broadcasts and list endpoints
// ──────────────────────────────────────────────────────────────────────────────

// AuctionSummary is a derived, read-only view of an Auction.
type AuctionSummary struct {
	ID             uuid.UUID       `json:"id"`
	Title          string          `json:"title"`
	Status         AuctionStatus   `json:"status"`
	CurrentBid     decimal.Decimal `json:"current_bid"`
	MinNextBid     decimal.Decimal `json:"min_next_bid"`
	EndAt          time.Time       `json:"end_at"`
	ExtensionCount int             `json:"extension_count"`
	TimeLeftSec    int64           `json:"time_left_sec"`
}

// ToSummary builds an AuctionSummary as seen at now.
func (a *Auction) ToSummary(now time.Time) AuctionSummary {
	return AuctionSummary{
		ID:             a.ID,
		Title:          a.Title,
		Status:         a.Status,
		CurrentBid:     a.CurrentBid,
		MinNextBid:     a.MinNextBid(),
		EndAt:          a.EndAt,
		ExtensionCount: a.ExtensionCount,
		TimeLeftSec:    int64(a.TimeLeft(now).Seconds()),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateAuctionRequest
// ──────────────────────────────────────────────────────────────────────────────

// CreateAuctionRequest carries the inputs for listing a new auction.
type CreateAuctionRequest struct {
	StoreID       uuid.UUID        `json:"store_id"       validate:"required"`
	SellerID      uuid.UUID        `json:"seller_id"      validate:"required"`
	ProductID     *uuid.UUID       `json:"product_id"`
	Title         string           `json:"title"          validate:"required,max=200"`
	StartPrice    decimal.Decimal  `json:"start_price"`
	ReservePrice  *decimal.Decimal `json:"reserve_price"`
	MinIncrement  decimal.Decimal  `json:"min_increment"`
	StartAt       time.Time        `json:"start_at"       validate:"required"`
	EndAt         time.Time        `json:"end_at"         validate:"required,gtfield=StartAt"`
	AutoExtend    bool             `json:"auto_extend"`
	ExtendMinutes int              `json:"extend_minutes" validate:"gte=0,lte=1440"`
}
