package service

import (
	"context"

	"github.com/evetabi/auction/internal/domain"
	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into the services to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// Bus is the real-time fan-out the services publish to after a commit.
// Implemented by events.Dispatcher. Publish must not block.
type Bus interface {
	Publish(channel, event string, payload any)
}

// Notifier is told about settled auctions. Fire-and-forget: errors are logged,
// never propagated into settlement.
// Implemented by notify.Client.
type Notifier interface {
	AuctionEnded(ctx context.Context, outcome *SettlementResult) error
}

// ThreadOpener opens the buyer/seller conversation once an order exists.
// Implemented by notify.Client.
type ThreadOpener interface {
	OpenThread(ctx context.Context, order *domain.Order) error
}

// BidderResolver maps an authenticated user onto the bidder identity stored in
// the ledger.
type BidderResolver interface {
	ResolveBidder(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

// IdentityResolver is the default BidderResolver: the user id is the bidder id.
type IdentityResolver struct{}

// ResolveBidder returns userID unchanged.
func (IdentityResolver) ResolveBidder(_ context.Context, userID uuid.UUID) (uuid.UUID, error) {
	if userID == uuid.Nil {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return userID, nil
}

// noopBus swallows events until a real bus is injected.
type noopBus struct{}

func (noopBus) Publish(string, string, any) {}
