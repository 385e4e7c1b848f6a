package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/evetabi/auction/internal/domain"
	"github.com/evetabi/auction/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreateRequest(now time.Time) domain.CreateAuctionRequest {
	return domain.CreateAuctionRequest{
		StoreID:      uuid.New(),
		SellerID:     uuid.New(),
		Title:        "lot 7",
		StartPrice:   dec(50),
		MinIncrement: dec(5),
		StartAt:      now.Add(time.Hour),
		EndAt:        now.Add(2 * time.Hour),
	}
}

func TestCreateAuction_Validation(t *testing.T) {
	e := newEngine(t)
	now := e.clock.Now()

	cases := map[string]func(r *domain.CreateAuctionRequest){
		"missing seller":       func(r *domain.CreateAuctionRequest) { r.SellerID = uuid.Nil },
		"missing title":        func(r *domain.CreateAuctionRequest) { r.Title = "" },
		"end before start":     func(r *domain.CreateAuctionRequest) { r.EndAt = r.StartAt.Add(-time.Minute) },
		"negative start price": func(r *domain.CreateAuctionRequest) { r.StartPrice = dec(-1) },
		"zero increment":       func(r *domain.CreateAuctionRequest) { r.MinIncrement = dec(0) },
		"end in the past": func(r *domain.CreateAuctionRequest) {
			r.StartAt = now.Add(-2 * time.Hour)
			r.EndAt = now.Add(-time.Hour)
		},
		"extend without minutes": func(r *domain.CreateAuctionRequest) { r.AutoExtend = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validCreateRequest(now)
			mutate(&req)
			_, err := e.auctions.CreateAuction(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidAuction)
		})
	}

	a, err := e.auctions.CreateAuction(context.Background(), validCreateRequest(now))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, a.Status)
	assert.True(t, a.CurrentBid.Equal(dec(50)))
}

func TestCancelAuction(t *testing.T) {
	e := newEngine(t)
	a := e.seed(t, nil)
	_, err := e.bid(a.ID, uuid.New(), 110)
	require.NoError(t, err)

	cancelled, err := e.auctions.CancelAuction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	bids, err := e.store.ListBids(context.Background(), a.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, domain.BidStatusLost, bids[0].Status)

	_, err = e.bid(a.ID, uuid.New(), 200)
	assert.ErrorIs(t, err, domain.ErrAuctionNotActive)

	_, err = e.settlement.Settle(context.Background(), a.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelAuction_AfterCloseKeepsWinner(t *testing.T) {
	e := newEngine(t)
	a := e.seed(t, nil)
	winner := uuid.New()
	_, err := e.bid(a.ID, winner, 150)
	require.NoError(t, err)

	// Past end_at but not yet swept: the status still reads RUNNING.
	e.clock.Set(a.EndAt.Add(time.Second))
	_, err = e.auctions.CancelAuction(context.Background(), a.ID)
	require.ErrorIs(t, err, domain.ErrAuctionEnded)
	assert.Equal(t, domain.StatusRunning, e.auction(t, a.ID).Status)

	res, err := e.settlement.Settle(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, res.WinnerID)
	assert.Equal(t, winner, *res.WinnerID)
	assert.Equal(t, domain.StatusEnded, e.auction(t, a.ID).Status)
}

func TestCancelAndArchive_TransitionTable(t *testing.T) {
	e := newEngine(t)
	ended := e.seed(t, func(a *domain.Auction) { a.Status = domain.StatusEnded })

	_, err := e.auctions.CancelAuction(context.Background(), ended.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	archived, err := e.auctions.ArchiveAuction(context.Background(), ended.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, archived.Status)

	running := e.seed(t, nil)
	_, err = e.auctions.ArchiveAuction(context.Background(), running.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = e.auctions.CancelAuction(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestListAuctionsAndCounts(t *testing.T) {
	e := newEngine(t)
	seller := uuid.New()
	e.seed(t, func(a *domain.Auction) { a.SellerID = seller })
	e.seed(t, func(a *domain.Auction) { a.SellerID = seller; a.Status = domain.StatusScheduled })
	e.seed(t, nil)

	list, total, err := e.auctions.ListAuctions(context.Background(), repository.AuctionFilter{SellerID: &seller})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 2)

	list, total, err = e.auctions.ListAuctions(context.Background(), repository.AuctionFilter{
		Statuses: []domain.AuctionStatus{domain.StatusRunning},
		Limit:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 1)

	_, _, err = e.auctions.ListAuctions(context.Background(), repository.AuctionFilter{
		Statuses: []domain.AuctionStatus{"OPEN"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAuction)

	counts, err := e.auctions.StatusCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.StatusRunning])
	assert.Equal(t, 1, counts[domain.StatusScheduled])
	assert.Contains(t, counts, domain.StatusArchived)
}
