package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/evetabi/auction/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store used by tests and by the server when
// DB_DRIVER=memory. Transactions are serialised by a single mutex and rolled
// back by restoring a snapshot, so the guarded writes behave exactly as the
// Postgres ones do.
//
// Every InTx copies the whole store for its snapshot and InsertBid scans all
// bids for a duplicate id, so each write costs O(total rows). Fine for tests
// and demos; anything long-lived belongs on Postgres.
type MemoryStore struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*domain.Auction
	bids     map[uuid.UUID][]*domain.Bid // keyed by auction id, insertion order
	orders   map[uuid.UUID]*domain.Order // keyed by auction id
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[uuid.UUID]*domain.Auction),
		bids:     make(map[uuid.UUID][]*domain.Bid),
		orders:   make(map[uuid.UUID]*domain.Order),
	}
}

func cloneAuction(a *domain.Auction) *domain.Auction {
	c := *a
	return &c
}

func cloneBid(b *domain.Bid) *domain.Bid {
	c := *b
	return &c
}

// ──────────────────────────────────────────────────────────────────────────────
// Store
// ──────────────────────────────────────────────────────────────────────────────

func (m *MemoryStore) CreateAuction(_ context.Context, a *domain.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.auctions[a.ID]; ok {
		return ErrDuplicate
	}
	m.auctions[a.ID] = cloneAuction(a)
	return nil
}

func (m *MemoryStore) GetAuction(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAuction(id)
}

func (m *MemoryStore) getAuction(id uuid.UUID) (*domain.Auction, error) {
	a, ok := m.auctions[id]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return cloneAuction(a), nil
}

func (m *MemoryStore) ListAuctions(_ context.Context, f AuctionFilter) ([]*domain.Auction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := m.filter(func(a *domain.Auction) bool {
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, a.Status) {
			return false
		}
		if f.StoreID != nil && a.StoreID != *f.StoreID {
			return false
		}
		if f.SellerID != nil && a.SellerID != *f.SellerID {
			return false
		}
		return true
	}, func(x, y *domain.Auction) bool { return x.EndAt.Before(y.EndAt) })

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []*domain.Auction{}, total, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (m *MemoryStore) CountByStatus(_ context.Context) (map[domain.AuctionStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.AuctionStatus]int)
	for _, a := range m.auctions {
		out[a.Status]++
	}
	return out, nil
}

func (m *MemoryStore) ListStartable(_ context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return limitAuctions(m.filter(func(a *domain.Auction) bool {
		return a.Status == domain.StatusScheduled && !a.StartAt.After(now)
	}, func(x, y *domain.Auction) bool { return x.StartAt.Before(y.StartAt) }), limit), nil
}

func (m *MemoryStore) ListEndingWithin(_ context.Context, now time.Time, window time.Duration, limit int) ([]*domain.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	horizon := now.Add(window)
	return limitAuctions(m.filter(func(a *domain.Auction) bool {
		return a.Status == domain.StatusRunning && a.EndAt.After(now) && !a.EndAt.After(horizon)
	}, byEndAt), limit), nil
}

func (m *MemoryStore) ListExpired(_ context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return limitAuctions(m.filter(func(a *domain.Auction) bool {
		return a.Status.IsBiddable() && !a.EndAt.After(now)
	}, byEndAt), limit), nil
}

func (m *MemoryStore) StartAuction(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok || a.Status != domain.StatusScheduled || a.StartAt.After(now) {
		return false, nil
	}
	a.Status = domain.StatusRunning
	a.UpdatedAt = now
	return true, nil
}

func (m *MemoryStore) MarkEndingSoon(_ context.Context, id uuid.UUID, now time.Time, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok || a.Status != domain.StatusRunning || !a.EndAt.After(now) || a.EndAt.After(now.Add(window)) {
		return false, nil
	}
	a.Status = domain.StatusEndingSoon
	a.UpdatedAt = now
	return true, nil
}

func (m *MemoryStore) ListBids(_ context.Context, auctionID uuid.UUID, limit, offset int) ([]*domain.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bids := make([]*domain.Bid, 0, len(m.bids[auctionID]))
	for _, b := range m.bids[auctionID] {
		bids = append(bids, cloneBid(b))
	}
	sort.SliceStable(bids, func(i, j int) bool {
		if !bids[i].Amount.Equal(bids[j].Amount) {
			return bids[i].Amount.GreaterThan(bids[j].Amount)
		}
		return bids[i].CreatedAt.Before(bids[j].CreatedAt)
	})
	return pageBids(bids, limit, offset), nil
}

func (m *MemoryStore) ListBidsByBidder(_ context.Context, bidderID uuid.UUID, limit, offset int) ([]*domain.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var bids []*domain.Bid
	for _, list := range m.bids {
		for _, b := range list {
			if b.BidderID == bidderID {
				bids = append(bids, cloneBid(b))
			}
		}
	}
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].CreatedAt.After(bids[j].CreatedAt) })
	return pageBids(bids, limit, offset), nil
}

func (m *MemoryStore) CountBids(_ context.Context, auctionID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bids[auctionID]), nil
}

func (m *MemoryStore) CountBidsByBidder(_ context.Context, bidderID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, list := range m.bids {
		for _, b := range list {
			if b.BidderID == bidderID {
				n++
			}
		}
	}
	return n, nil
}

func (m *MemoryStore) GetOrderByAuction(_ context.Context, auctionID uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrder(auctionID)
}

func (m *MemoryStore) getOrder(auctionID uuid.UUID) (*domain.Order, error) {
	o, ok := m.orders[auctionID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

// InTx holds the store lock for the whole of fn. Returning an error (or
// panicking) restores the state captured before fn ran.
func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	defer func() {
		if p := recover(); p != nil {
			m.restore(snap)
			panic(p)
		}
		if err != nil {
			m.restore(snap)
		}
	}()
	return fn(&memoryTx{m: m})
}

type memorySnapshot struct {
	auctions map[uuid.UUID]*domain.Auction
	bids     map[uuid.UUID][]*domain.Bid
	orders   map[uuid.UUID]*domain.Order
}

func (m *MemoryStore) snapshot() memorySnapshot {
	s := memorySnapshot{
		auctions: make(map[uuid.UUID]*domain.Auction, len(m.auctions)),
		bids:     make(map[uuid.UUID][]*domain.Bid, len(m.bids)),
		orders:   make(map[uuid.UUID]*domain.Order, len(m.orders)),
	}
	for id, a := range m.auctions {
		s.auctions[id] = cloneAuction(a)
	}
	for id, list := range m.bids {
		cp := make([]*domain.Bid, len(list))
		for i, b := range list {
			cp[i] = cloneBid(b)
		}
		s.bids[id] = cp
	}
	for id, o := range m.orders {
		c := *o
		s.orders[id] = &c
	}
	return s
}

func (m *MemoryStore) restore(s memorySnapshot) {
	m.auctions = s.auctions
	m.bids = s.bids
	m.orders = s.orders
}

func (m *MemoryStore) filter(keep func(*domain.Auction) bool, less func(x, y *domain.Auction) bool) []*domain.Auction {
	out := make([]*domain.Auction, 0)
	for _, a := range m.auctions {
		if keep(a) {
			out = append(out, cloneAuction(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func byEndAt(x, y *domain.Auction) bool { return x.EndAt.Before(y.EndAt) }

func containsStatus(list []domain.AuctionStatus, s domain.AuctionStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func limitAuctions(list []*domain.Auction, limit int) []*domain.Auction {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

func pageBids(list []*domain.Bid, limit, offset int) []*domain.Bid {
	if offset >= len(list) {
		return []*domain.Bid{}
	}
	list = list[offset:]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

// ──────────────────────────────────────────────────────────────────────────────
// Tx
// ──────────────────────────────────────────────────────────────────────────────

// memoryTx runs with MemoryStore.mu already held.
type memoryTx struct {
	m *MemoryStore
}

func (t *memoryTx) GetAuction(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	return t.m.getAuction(id)
}

func (t *memoryTx) LockAuction(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	return t.m.getAuction(id)
}

func (t *memoryTx) RaiseCurrentBid(_ context.Context, id uuid.UUID, amount decimal.Decimal, now time.Time) (bool, error) {
	a, ok := t.m.auctions[id]
	if !ok || !a.Status.IsBiddable() || !a.EndAt.After(now) {
		return false, nil
	}
	if a.CurrentBid.Add(a.MinIncrement).GreaterThan(amount) {
		return false, nil
	}
	a.CurrentBid = amount
	a.UpdatedAt = now
	return true, nil
}

func (t *memoryTx) ExtendAuction(_ context.Context, id uuid.UUID, ext *domain.Extension) (bool, error) {
	a, ok := t.m.auctions[id]
	if !ok || !a.Status.IsBiddable() || !a.EndAt.Equal(ext.PrevEndAt) {
		return false, nil
	}
	a.EndAt = ext.NewEndAt
	a.ExtensionCount++
	at := ext.ExtendedAt
	a.LastExtendedAt = &at
	if a.Status == domain.StatusEndingSoon {
		a.Status = domain.StatusRunning
	}
	a.UpdatedAt = ext.ExtendedAt
	return true, nil
}

func (t *memoryTx) InsertBid(_ context.Context, b *domain.Bid) error {
	for _, list := range t.m.bids {
		for _, existing := range list {
			if existing.ID == b.ID {
				return ErrDuplicate
			}
		}
	}
	t.m.bids[b.AuctionID] = append(t.m.bids[b.AuctionID], cloneBid(b))
	return nil
}

func (t *memoryTx) TopActiveBid(_ context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	var top *domain.Bid
	for _, b := range t.m.bids[auctionID] {
		if !b.IsActive() {
			continue
		}
		if top == nil || b.Outranks(top) {
			top = b
		}
	}
	if top == nil {
		return nil, nil
	}
	return cloneBid(top), nil
}

func (t *memoryTx) SettleBids(_ context.Context, auctionID uuid.UUID, winnerBidID *uuid.UUID) error {
	for _, b := range t.m.bids[auctionID] {
		if !b.IsActive() {
			continue
		}
		if winnerBidID != nil && b.ID == *winnerBidID {
			b.Status = domain.BidStatusWon
		} else {
			b.Status = domain.BidStatusLost
		}
	}
	return nil
}

func (t *memoryTx) EndAuction(_ context.Context, id uuid.UUID, winnerID *uuid.UUID, reserveMet bool, now time.Time) (bool, error) {
	a, ok := t.m.auctions[id]
	if !ok || !a.Status.IsBiddable() || a.EndAt.After(now) {
		return false, nil
	}
	a.Status = domain.StatusEnded
	if winnerID != nil {
		w := *winnerID
		a.WinnerID = &w
	} else {
		a.WinnerID = nil
	}
	met := reserveMet
	a.ReserveMet = &met
	a.UpdatedAt = now
	return true, nil
}

func (t *memoryTx) GetOrderByAuction(_ context.Context, auctionID uuid.UUID) (*domain.Order, error) {
	return t.m.getOrder(auctionID)
}

func (t *memoryTx) CreateOrder(_ context.Context, o *domain.Order) (bool, error) {
	if _, ok := t.m.orders[o.AuctionID]; ok {
		return false, nil
	}
	c := *o
	t.m.orders[o.AuctionID] = &c
	return true, nil
}

func (t *memoryTx) TransitionStatus(_ context.Context, id uuid.UUID, from, to domain.AuctionStatus) (bool, error) {
	a, ok := t.m.auctions[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}
