package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the canonical record produced when an auction settles with a
// winner and its reserve met. At most one exists per auction.
type Order struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	AuctionID uuid.UUID       `json:"auction_id" db:"auction_id"`
	BuyerID   uuid.UUID       `json:"buyer_id"   db:"buyer_id"`
	SellerID  uuid.UUID       `json:"seller_id"  db:"seller_id"`
	StoreID   uuid.UUID       `json:"store_id"   db:"store_id"`
	Amount    decimal.Decimal `json:"amount"     db:"amount"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
