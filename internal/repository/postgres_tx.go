package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evetabi/auction/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// postgresTx implements Tx over a *sqlx.Tx.
type postgresTx struct {
	tx *sqlx.Tx
}

func (t *postgresTx) GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return getAuction(ctx, t.tx, id, false)
}

func (t *postgresTx) LockAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return getAuction(ctx, t.tx, id, true)
}

// RaiseCurrentBid is the compare-and-swap on the current price.
func (t *postgresTx) RaiseCurrentBid(ctx context.Context, id uuid.UUID, amount decimal.Decimal, now time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE auctions
		SET current_bid = $1, updated_at = $2
		WHERE id = $3
		  AND status IN ('RUNNING','ENDING_SOON')
		  AND end_at > $2
		  AND current_bid + min_increment <= $1`,
		amount, now, id)
	if err != nil {
		return false, fmt.Errorf("postgres.RaiseCurrentBid: %w", classify(err))
	}
	return affected(res)
}

func (t *postgresTx) ExtendAuction(ctx context.Context, id uuid.UUID, ext *domain.Extension) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE auctions
		SET end_at           = $1,
		    extension_count  = extension_count + 1,
		    last_extended_at = $2,
		    status           = CASE WHEN status = 'ENDING_SOON' THEN 'RUNNING' ELSE status END,
		    updated_at       = $2
		WHERE id = $3
		  AND end_at = $4
		  AND status IN ('RUNNING','ENDING_SOON')`,
		ext.NewEndAt, ext.ExtendedAt, id, ext.PrevEndAt)
	if err != nil {
		return false, fmt.Errorf("postgres.ExtendAuction: %w", classify(err))
	}
	return affected(res)
}

func (t *postgresTx) InsertBid(ctx context.Context, b *domain.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, bidder_id, amount, is_auto, status, created_at)
		VALUES (:id, :auction_id, :bidder_id, :amount, :is_auto, :status, :created_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, b); err != nil {
		return fmt.Errorf("postgres.InsertBid: %w", classify(err))
	}
	return nil
}

// TopActiveBid returns the winning candidate or nil when there are no bids.
func (t *postgresTx) TopActiveBid(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	var b domain.Bid
	err := t.tx.GetContext(ctx, &b, `
		SELECT `+bidColumns+` FROM bids
		WHERE auction_id = $1 AND status = 'ACTIVE'
		ORDER BY amount DESC, created_at ASC, id ASC
		LIMIT 1`,
		auctionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres.TopActiveBid: %w", classify(err))
	}
	return &b, nil
}

func (t *postgresTx) SettleBids(ctx context.Context, auctionID uuid.UUID, winnerBidID *uuid.UUID) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE bids
		SET status = CASE WHEN id = $2 THEN 'WON' ELSE 'LOST' END
		WHERE auction_id = $1 AND status = 'ACTIVE'`,
		auctionID, winnerBidID)
	if err != nil {
		return fmt.Errorf("postgres.SettleBids: %w", classify(err))
	}
	return nil
}

func (t *postgresTx) EndAuction(ctx context.Context, id uuid.UUID, winnerID *uuid.UUID, reserveMet bool, now time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE auctions
		SET status      = 'ENDED',
		    winner_id   = $1,
		    reserve_met = $2,
		    updated_at  = $3
		WHERE id = $4
		  AND status IN ('RUNNING','ENDING_SOON')
		  AND end_at <= $3`,
		winnerID, reserveMet, now, id)
	if err != nil {
		return false, fmt.Errorf("postgres.EndAuction: %w", classify(err))
	}
	return affected(res)
}

func (t *postgresTx) GetOrderByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Order, error) {
	return getOrder(ctx, t.tx, auctionID)
}

func (t *postgresTx) CreateOrder(ctx context.Context, o *domain.Order) (bool, error) {
	query := `
		INSERT INTO orders (id, auction_id, buyer_id, seller_id, store_id, amount, created_at)
		VALUES (:id, :auction_id, :buyer_id, :seller_id, :store_id, :amount, :created_at)
		ON CONFLICT (auction_id) DO NOTHING`
	res, err := t.tx.NamedExecContext(ctx, query, o)
	if err != nil {
		return false, fmt.Errorf("postgres.CreateOrder: %w", classify(err))
	}
	return affected(res)
}

func (t *postgresTx) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.AuctionStatus) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE auctions SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("postgres.TransitionStatus: %w", classify(err))
	}
	return affected(res)
}
