package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/evetabi/auction/internal/domain"
	"github.com/evetabi/auction/internal/events"
	"github.com/evetabi/auction/internal/repository"
	"github.com/evetabi/auction/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollaborators struct {
	mu       sync.Mutex
	threads  []*domain.Order
	outcomes []*service.SettlementResult
	failWith error
}

func (f *fakeCollaborators) OpenThread(_ context.Context, o *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads = append(f.threads, o)
	return f.failWith
}

func (f *fakeCollaborators) AuctionEnded(_ context.Context, r *service.SettlementResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, r)
	return f.failWith
}

func (f *fakeCollaborators) counts() (threads, outcomes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.threads), len(f.outcomes)
}

func TestSettle_Idempotent(t *testing.T) {
	e := newEngine(t)
	now := e.clock.Now()
	a := e.seed(t, func(a *domain.Auction) { a.EndAt = now.Add(time.Minute) })
	buyer := uuid.New()

	_, err := e.bid(a.ID, buyer, 150)
	require.NoError(t, err)
	e.clock.Set(now.Add(2 * time.Minute))

	first, err := e.settlement.Settle(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, first.Order)
	require.NotNil(t, first.WinnerID)
	assert.Equal(t, buyer, *first.WinnerID)
	assert.True(t, first.Order.Amount.Equal(dec(150)))

	_, err = e.settlement.Settle(context.Background(), a.ID)
	assert.ErrorIs(t, err, domain.ErrSettlementAlreadyComplete)

	got := e.auction(t, a.ID)
	assert.Equal(t, domain.StatusEnded, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, buyer, *got.WinnerID)
	require.NotNil(t, got.ReserveMet)
	assert.True(t, *got.ReserveMet)

	order, err := e.store.GetOrderByAuction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Order.ID, order.ID)
}

func TestSettle_ConcurrentCallsProduceOneOrder(t *testing.T) {
	e := newEngine(t)
	now := e.clock.Now()
	a := e.seed(t, func(a *domain.Auction) { a.EndAt = now.Add(time.Minute) })
	_, err := e.bid(a.ID, uuid.New(), 150)
	require.NoError(t, err)
	e.clock.Set(now.Add(2 * time.Minute))

	const callers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		orders int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.settlement.Settle(context.Background(), a.ID)
			if err != nil {
				if !errors.Is(err, domain.ErrSettlementAlreadyComplete) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if res.Order != nil {
				mu.Lock()
				orders++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, orders)
}

func TestSettle_ReserveNotMet(t *testing.T) {
	e := newEngine(t)
	now := e.clock.Now()
	reserve := dec(1000)
	a := e.seed(t, func(a *domain.Auction) {
		a.ReservePrice = &reserve
		a.EndAt = now.Add(time.Minute)
	})
	bidder := uuid.New()
	_, err := e.bid(a.ID, bidder, 800)
	require.NoError(t, err)
	e.clock.Set(now.Add(time.Minute))

	res, err := e.settlement.Settle(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, res.ReserveMet)
	assert.Nil(t, res.Order)
	require.NotNil(t, res.WinnerID)
	assert.Equal(t, bidder, *res.WinnerID)

	got := e.auction(t, a.ID)
	require.NotNil(t, got.ReserveMet)
	assert.False(t, *got.ReserveMet)
	require.NotNil(t, got.WinnerID)

	_, err = e.store.GetOrderByAuction(context.Background(), a.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestSettle_NoBids(t *testing.T) {
	e := newEngine(t)
	a := e.seed(t, func(a *domain.Auction) { a.EndAt = e.clock.Now() })

	res, err := e.settlement.Settle(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Nil(t, res.WinnerID)
	assert.Nil(t, res.Order)
	assert.True(t, res.ReserveMet, "no reserve set")
	assert.Equal(t, domain.StatusEnded, e.auction(t, a.ID).Status)
}

func TestSettle_NotDue(t *testing.T) {
	e := newEngine(t)
	running := e.seed(t, nil)
	scheduled := e.seed(t, func(a *domain.Auction) { a.Status = domain.StatusScheduled })

	_, err := e.settlement.Settle(context.Background(), running.ID)
	assert.ErrorIs(t, err, domain.ErrSettlementNotDue)
	_, err = e.settlement.Settle(context.Background(), scheduled.ID)
	assert.ErrorIs(t, err, domain.ErrSettlementNotDue)
	_, err = e.settlement.Settle(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestSettle_BidStatusesAndTieBreak(t *testing.T) {
	e := newEngine(t)
	now := e.clock.Now()
	a := e.seed(t, func(a *domain.Auction) { a.EndAt = now.Add(-time.Second) })

	early := &domain.Bid{ID: uuid.New(), AuctionID: a.ID, BidderID: uuid.New(), Amount: dec(150), Status: domain.BidStatusActive, CreatedAt: now.Add(-time.Minute)}
	late := &domain.Bid{ID: uuid.New(), AuctionID: a.ID, BidderID: uuid.New(), Amount: dec(150), Status: domain.BidStatusActive, CreatedAt: now.Add(-30 * time.Second)}
	low := &domain.Bid{ID: uuid.New(), AuctionID: a.ID, BidderID: uuid.New(), Amount: dec(120), Status: domain.BidStatusActive, CreatedAt: now.Add(-2 * time.Minute)}
	require.NoError(t, e.store.InTx(context.Background(), func(tx repository.Tx) error {
		for _, b := range []*domain.Bid{late, low, early} {
			if err := tx.InsertBid(context.Background(), b); err != nil {
				return err
			}
		}
		return nil
	}))

	res, err := e.settlement.Settle(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, res.WinningBid)
	assert.Equal(t, early.ID, *res.WinningBid, "earliest of equal top bids wins")

	ledger, err := e.store.ListBids(context.Background(), a.ID, 10, 0)
	require.NoError(t, err)
	won := 0
	for _, b := range ledger {
		switch b.Status {
		case domain.BidStatusWon:
			won++
			assert.Equal(t, early.ID, b.ID)
		case domain.BidStatusLost:
		default:
			t.Errorf("bid %s left in status %s", b.ID, b.Status)
		}
	}
	assert.Equal(t, 1, won)
}

func TestSettle_AfterCommitCollaborators(t *testing.T) {
	e := newEngine(t)
	now := e.clock.Now()
	collab := &fakeCollaborators{failWith: errors.New("messaging down")}
	e.settlement.SetThreadOpener(collab)
	e.settlement.SetNotifier(collab)

	a := e.seed(t, func(a *domain.Auction) { a.EndAt = now.Add(time.Minute) })
	_, err := e.bid(a.ID, uuid.New(), 150)
	require.NoError(t, err)
	e.clock.Set(now.Add(time.Minute))

	res, err := e.settlement.Settle(context.Background(), a.ID)
	require.NoError(t, err, "collaborator failures must not fail settlement")
	require.NotNil(t, res.Order)

	require.Eventually(t, func() bool {
		threads, outcomes := collab.counts()
		return threads == 1 && outcomes == 1
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, e.bus.names(), events.AuctionEnded)
}
