package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/evetabi/auction/internal/config"
	"github.com/evetabi/auction/internal/domain"
	"github.com/evetabi/auction/internal/repository"
	"github.com/evetabi/auction/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Auction: config.AuctionConfig{
			MaxBidAttempts:   3,
			EndingSoonWindow: 60 * time.Minute,
			SweepInterval:    5 * time.Second,
			SweepBatchSize:   500,
		},
	}
}

// ── clock ────────────────────────────────────────────────────────────────────

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// ── bus ──────────────────────────────────────────────────────────────────────

type published struct {
	channel string
	event   string
	payload any
}

type recordingBus struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBus) Publish(channel, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{channel, event, payload})
}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.event
	}
	return out
}

// ── engine fixture ───────────────────────────────────────────────────────────

type engine struct {
	store      *repository.MemoryStore
	clock      *testClock
	bus        *recordingBus
	bids       *service.BidService
	settlement *service.SettlementService
	lifecycle  *service.LifecycleService
	auctions   *service.AuctionService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	cfg := testConfig()
	logger := quietLogger()
	e := &engine{
		store: repository.NewMemoryStore(),
		clock: newTestClock(),
		bus:   &recordingBus{},
	}
	e.bids = service.NewBidService(e.store, cfg, logger)
	e.settlement = service.NewSettlementService(e.store, logger)
	e.lifecycle = service.NewLifecycleService(e.store, e.settlement, cfg, logger)
	e.auctions = service.NewAuctionService(e.store, logger)

	e.bids.SetClock(e.clock.Now)
	e.settlement.SetClock(e.clock.Now)
	e.lifecycle.SetClock(e.clock.Now)
	e.auctions.SetClock(e.clock.Now)

	e.bids.SetBus(e.bus)
	e.settlement.SetBus(e.bus)
	e.lifecycle.SetBus(e.bus)
	e.auctions.SetBus(e.bus)
	return e
}

// seed stores a RUNNING auction (start 100, increment 10, one hour left).
func (e *engine) seed(t *testing.T, mutate func(a *domain.Auction)) *domain.Auction {
	t.Helper()
	now := e.clock.Now()
	a := &domain.Auction{
		ID:           uuid.New(),
		StoreID:      uuid.New(),
		SellerID:     uuid.New(),
		Title:        "vintage camera",
		StartPrice:   dec(100),
		CurrentBid:   dec(100),
		MinIncrement: dec(10),
		StartAt:      now.Add(-time.Hour),
		EndAt:        now.Add(time.Hour),
		Status:       domain.StatusRunning,
		CreatedAt:    now.Add(-2 * time.Hour),
		UpdatedAt:    now.Add(-2 * time.Hour),
	}
	if mutate != nil {
		mutate(a)
	}
	require.NoError(t, e.store.CreateAuction(context.Background(), a))
	return a
}

func (e *engine) bid(auctionID, bidderID uuid.UUID, amount int64) (*service.BidResult, error) {
	return e.bids.PlaceBid(context.Background(), domain.PlaceBidRequest{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    dec(amount),
	})
}

func (e *engine) auction(t *testing.T, id uuid.UUID) *domain.Auction {
	t.Helper()
	a, err := e.store.GetAuction(context.Background(), id)
	require.NoError(t, err)
	return a
}
