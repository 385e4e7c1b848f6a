package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evetabi/auction/internal/domain"
	"github.com/evetabi/auction/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAuction(t *testing.T, s *repository.MemoryStore, now time.Time, mutate func(a *domain.Auction)) *domain.Auction {
	t.Helper()
	a := &domain.Auction{
		ID:           uuid.New(),
		StoreID:      uuid.New(),
		SellerID:     uuid.New(),
		Title:        "lot",
		StartPrice:   decimal.NewFromInt(100),
		CurrentBid:   decimal.NewFromInt(100),
		MinIncrement: decimal.NewFromInt(10),
		StartAt:      now.Add(-time.Hour),
		EndAt:        now.Add(time.Hour),
		Status:       domain.StatusRunning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if mutate != nil {
		mutate(a)
	}
	require.NoError(t, s.CreateAuction(context.Background(), a))
	return a
}

func TestMemoryStore_RaiseCurrentBidGuard(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	s := repository.NewMemoryStore()
	a := seedAuction(t, s, now, nil)

	var first, second bool
	err := s.InTx(ctx, func(tx repository.Tx) error {
		var err error
		first, err = tx.RaiseCurrentBid(ctx, a.ID, decimal.NewFromInt(110), now)
		if err != nil {
			return err
		}
		second, err = tx.RaiseCurrentBid(ctx, a.ID, decimal.NewFromInt(115), now)
		return err
	})
	require.NoError(t, err)
	assert.True(t, first, "110 meets 100+10")
	assert.False(t, second, "115 is below 110+10")

	got, err := s.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBid.Equal(decimal.NewFromInt(110)))
}

func TestMemoryStore_RaiseRejectedAfterClose(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	s := repository.NewMemoryStore()
	a := seedAuction(t, s, now, func(a *domain.Auction) { a.EndAt = now })

	err := s.InTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.RaiseCurrentBid(ctx, a.ID, decimal.NewFromInt(500), now)
		assert.False(t, ok)
		return err
	})
	require.NoError(t, err)
}

func TestMemoryStore_InTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	s := repository.NewMemoryStore()
	a := seedAuction(t, s, now, nil)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.RaiseCurrentBid(ctx, a.ID, decimal.NewFromInt(200), now)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.InsertBid(ctx, &domain.Bid{
			ID: uuid.New(), AuctionID: a.ID, BidderID: uuid.New(),
			Amount: decimal.NewFromInt(200), Status: domain.BidStatusActive, CreatedAt: now,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBid.Equal(decimal.NewFromInt(100)), "raise must be rolled back")

	bids, err := s.ListBids(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, bids, "bid insert must be rolled back")
}

func TestMemoryStore_ExtendRequiresPrevEndAt(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	s := repository.NewMemoryStore()
	a := seedAuction(t, s, now, func(a *domain.Auction) {
		a.EndAt = now.Add(time.Minute)
		a.Status = domain.StatusEndingSoon
	})

	stale := &domain.Extension{PrevEndAt: a.EndAt.Add(-time.Second), NewEndAt: a.EndAt.Add(5 * time.Minute), ExtendedAt: now}
	fresh := &domain.Extension{PrevEndAt: a.EndAt, NewEndAt: a.EndAt.Add(5 * time.Minute), ExtendedAt: now}

	require.NoError(t, s.InTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.ExtendAuction(ctx, a.ID, stale)
		require.NoError(t, err)
		assert.False(t, ok, "stale PrevEndAt must not extend")

		ok, err = tx.ExtendAuction(ctx, a.ID, fresh)
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	}))

	got, err := s.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.EndAt.Equal(fresh.NewEndAt))
	assert.Equal(t, 1, got.ExtensionCount)
	assert.Equal(t, domain.StatusRunning, got.Status)
}

func TestMemoryStore_SweepQueries(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	s := repository.NewMemoryStore()

	scheduled := seedAuction(t, s, now, func(a *domain.Auction) {
		a.Status = domain.StatusScheduled
		a.StartAt = now.Add(-time.Second)
	})
	future := seedAuction(t, s, now, func(a *domain.Auction) {
		a.Status = domain.StatusScheduled
		a.StartAt = now.Add(time.Hour)
		a.EndAt = now.Add(2 * time.Hour)
	})
	closing := seedAuction(t, s, now, func(a *domain.Auction) { a.EndAt = now.Add(30 * time.Minute) })
	expired := seedAuction(t, s, now, func(a *domain.Auction) { a.EndAt = now.Add(-time.Minute) })

	startable, err := s.ListStartable(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, startable, 1)
	assert.Equal(t, scheduled.ID, startable[0].ID)

	ending, err := s.ListEndingWithin(ctx, now, time.Hour, 0)
	require.NoError(t, err)
	require.Len(t, ending, 1)
	assert.Equal(t, closing.ID, ending[0].ID)

	due, err := s.ListExpired(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, expired.ID, due[0].ID)

	ok, err := s.StartAuction(ctx, future.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "start time not reached")

	ok, err = s.MarkEndingSoon(ctx, closing.ID, now, 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "end_at outside the window at write time")
}

func TestMemoryStore_SettleAndOrderOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	s := repository.NewMemoryStore()
	a := seedAuction(t, s, now, func(a *domain.Auction) { a.EndAt = now.Add(-time.Second) })

	low := &domain.Bid{ID: uuid.New(), AuctionID: a.ID, BidderID: uuid.New(), Amount: decimal.NewFromInt(110), Status: domain.BidStatusActive, CreatedAt: now.Add(-time.Minute)}
	high := &domain.Bid{ID: uuid.New(), AuctionID: a.ID, BidderID: uuid.New(), Amount: decimal.NewFromInt(150), Status: domain.BidStatusActive, CreatedAt: now.Add(-30 * time.Second)}

	require.NoError(t, s.InTx(ctx, func(tx repository.Tx) error {
		require.NoError(t, tx.InsertBid(ctx, low))
		require.NoError(t, tx.InsertBid(ctx, high))

		top, err := tx.TopActiveBid(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, top)
		assert.Equal(t, high.ID, top.ID)

		require.NoError(t, tx.SettleBids(ctx, a.ID, &top.ID))
		ok, err := tx.EndAuction(ctx, a.ID, &top.BidderID, true, now)
		require.NoError(t, err)
		assert.True(t, ok)

		order := &domain.Order{ID: uuid.New(), AuctionID: a.ID, BuyerID: top.BidderID, Amount: top.Amount, CreatedAt: now}
		created, err := tx.CreateOrder(ctx, order)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = tx.CreateOrder(ctx, &domain.Order{ID: uuid.New(), AuctionID: a.ID})
		require.NoError(t, err)
		assert.False(t, created, "second order for the same auction")
		return nil
	}))

	bids, err := s.ListBids(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, domain.BidStatusWon, bids[0].Status)
	assert.Equal(t, domain.BidStatusLost, bids[1].Status)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.StatusEnded])
}

func TestMemoryStore_ListBidsRankingAndCounts(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	s := repository.NewMemoryStore()
	a := seedAuction(t, s, now, nil)
	bidder := uuid.New()

	mk := func(amount int64, at time.Duration, who uuid.UUID) *domain.Bid {
		return &domain.Bid{ID: uuid.New(), AuctionID: a.ID, BidderID: who, Amount: decimal.NewFromInt(amount), Status: domain.BidStatusActive, CreatedAt: now.Add(at)}
	}
	first := mk(150, -3*time.Minute, bidder)
	second := mk(150, -2*time.Minute, uuid.New())
	low := mk(120, -time.Minute, bidder)
	require.NoError(t, s.InTx(ctx, func(tx repository.Tx) error {
		for _, b := range []*domain.Bid{low, second, first} {
			if err := tx.InsertBid(ctx, b); err != nil {
				return err
			}
		}
		return nil
	}))

	// Highest amount first; equal amounts in placement order.
	bids, err := s.ListBids(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, bids, 3)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, low.ID}, []uuid.UUID{bids[0].ID, bids[1].ID, bids[2].ID})

	n, err := s.CountBids(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.CountBidsByBidder(ctx, bidder)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
