// Package events defines the real-time event vocabulary and the post-commit
// dispatcher that hands events to the fan-out layer.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event names published on the bus.
const (
	BidPlaced         = "bid.placed"
	AuctionExtended   = "auction.extended"
	AuctionStarted    = "auction.started"
	AuctionEndingSoon = "auction.ending_soon"
	AuctionEnded      = "auction.ended"
	AuctionCancelled  = "auction.cancelled"
)

// AuctionChannel is the per-auction channel name subscribers join.
func AuctionChannel(id uuid.UUID) string {
	return "auction:" + id.String()
}

// BidPlacedPayload is sent after a bid commits.
type BidPlacedPayload struct {
	AuctionID  uuid.UUID       `json:"auction_id"`
	BidID      uuid.UUID       `json:"bid_id"`
	BidderID   uuid.UUID       `json:"bidder_id"`
	Amount     decimal.Decimal `json:"amount"`
	MinNextBid decimal.Decimal `json:"min_next_bid"`
	EndAt      time.Time       `json:"end_at"`
	Extended   bool            `json:"extended"`
	PlacedAt   time.Time       `json:"placed_at"`
}

// ExtendedPayload is sent when a bid pushes the closing time out.
type ExtendedPayload struct {
	AuctionID      uuid.UUID `json:"auction_id"`
	PrevEndAt      time.Time `json:"prev_end_at"`
	EndAt          time.Time `json:"end_at"`
	ExtensionCount int       `json:"extension_count"`
}

// StatusPayload is sent for sweeper and admin status changes.
type StatusPayload struct {
	AuctionID uuid.UUID `json:"auction_id"`
	Status    string    `json:"status"`
	EndAt     time.Time `json:"end_at"`
}

// EndedPayload is sent once settlement commits.
type EndedPayload struct {
	AuctionID  uuid.UUID       `json:"auction_id"`
	WinnerID   *uuid.UUID      `json:"winner_id,omitempty"`
	FinalPrice decimal.Decimal `json:"final_price"`
	ReserveMet bool            `json:"reserve_met"`
	OrderID    *uuid.UUID      `json:"order_id,omitempty"`
	EndedAt    time.Time       `json:"ended_at"`
}
