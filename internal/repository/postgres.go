package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/evetabi/auction/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const auctionColumns = `id, store_id, seller_id, product_id, title, start_price, reserve_price,
	current_bid, min_increment, start_at, end_at, auto_extend, extend_minutes,
	extension_count, last_extended_at, status, winner_id, reserve_met, created_at, updated_at`

const bidColumns = `id, auction_id, bidder_id, amount, is_auto, status, created_at`

const orderColumns = `id, auction_id, buyer_id, seller_id, store_id, amount, created_at`

// psql builds dynamic queries with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore implements Store on top of sqlx and lib/pq.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("repository.Migrate: set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("repository.Migrate: up: %w", err)
	}
	return nil
}

// classify maps Postgres SQLSTATEs onto repository sentinels, keeping the
// original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return fmt.Errorf("%w: %w", ErrTxConflict, err)
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %w", ErrDuplicate, err)
		}
	}
	return err
}

func statusStrings(statuses []domain.AuctionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Auctions
// ──────────────────────────────────────────────────────────────────────────────

// CreateAuction inserts a new auction row.
func (s *PostgresStore) CreateAuction(ctx context.Context, a *domain.Auction) error {
	query := `
		INSERT INTO auctions
			(id, store_id, seller_id, product_id, title, start_price, reserve_price,
			 current_bid, min_increment, start_at, end_at, auto_extend, extend_minutes,
			 extension_count, last_extended_at, status, winner_id, reserve_met, created_at, updated_at)
		VALUES
			(:id, :store_id, :seller_id, :product_id, :title, :start_price, :reserve_price,
			 :current_bid, :min_increment, :start_at, :end_at, :auto_extend, :extend_minutes,
			 :extension_count, :last_extended_at, :status, :winner_id, :reserve_met, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("postgres.CreateAuction: %w", classify(err))
	}
	return nil
}

// GetAuction fetches an auction by its primary key.
func (s *PostgresStore) GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return getAuction(ctx, s.db, id, false)
}

// ListAuctions returns a filtered page of auctions and the total match count.
func (s *PostgresStore) ListAuctions(ctx context.Context, f AuctionFilter) ([]*domain.Auction, int, error) {
	where := sq.And{}
	if len(f.Statuses) > 0 {
		where = append(where, sq.Eq{"status": statusStrings(f.Statuses)})
	}
	if f.StoreID != nil {
		where = append(where, sq.Eq{"store_id": *f.StoreID})
	}
	if f.SellerID != nil {
		where = append(where, sq.Eq{"seller_id": *f.SellerID})
	}

	countQ, countArgs, err := psql.Select("COUNT(*)").From("auctions").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("postgres.ListAuctions: build count: %w", err)
	}
	var total int
	if err = s.db.GetContext(ctx, &total, countQ, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("postgres.ListAuctions count: %w", err)
	}

	sel := psql.Select(auctionColumns).From("auctions").Where(where).OrderBy("end_at ASC", "id ASC")
	if f.Limit > 0 {
		sel = sel.Limit(uint64(f.Limit)).Offset(uint64(f.Offset))
	}
	q, args, err := sel.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("postgres.ListAuctions: build select: %w", err)
	}
	var auctions []*domain.Auction
	if err = s.db.SelectContext(ctx, &auctions, q, args...); err != nil {
		return nil, 0, fmt.Errorf("postgres.ListAuctions select: %w", err)
	}
	return auctions, total, nil
}

// CountByStatus returns the number of auctions per status.
func (s *PostgresStore) CountByStatus(ctx context.Context) (map[domain.AuctionStatus]int, error) {
	var rows []struct {
		Status domain.AuctionStatus `db:"status"`
		N      int                  `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS n FROM auctions GROUP BY status`); err != nil {
		return nil, fmt.Errorf("postgres.CountByStatus: %w", err)
	}
	out := make(map[domain.AuctionStatus]int, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// ListStartable returns SCHEDULED auctions whose start time has arrived.
func (s *PostgresStore) ListStartable(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	return s.selectDue(ctx, "postgres.ListStartable",
		psql.Select(auctionColumns).From("auctions").
			Where(sq.Eq{"status": string(domain.StatusScheduled)}).
			Where(sq.LtOrEq{"start_at": now}).
			OrderBy("start_at ASC"), limit)
}

// ListEndingWithin returns RUNNING auctions closing within window of now.
func (s *PostgresStore) ListEndingWithin(ctx context.Context, now time.Time, window time.Duration, limit int) ([]*domain.Auction, error) {
	return s.selectDue(ctx, "postgres.ListEndingWithin",
		psql.Select(auctionColumns).From("auctions").
			Where(sq.Eq{"status": string(domain.StatusRunning)}).
			Where(sq.Gt{"end_at": now}).
			Where(sq.LtOrEq{"end_at": now.Add(window)}).
			OrderBy("end_at ASC"), limit)
}

// ListExpired returns biddable auctions whose closing time has passed.
func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	return s.selectDue(ctx, "postgres.ListExpired",
		psql.Select(auctionColumns).From("auctions").
			Where(sq.Eq{"status": statusStrings(domain.BiddableStatuses)}).
			Where(sq.LtOrEq{"end_at": now}).
			OrderBy("end_at ASC"), limit)
}

func (s *PostgresStore) selectDue(ctx context.Context, op string, sel sq.SelectBuilder, limit int) ([]*domain.Auction, error) {
	if limit > 0 {
		sel = sel.Limit(uint64(limit))
	}
	q, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build: %w", op, err)
	}
	var auctions []*domain.Auction
	if err = s.db.SelectContext(ctx, &auctions, q, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return auctions, nil
}

// StartAuction promotes SCHEDULED → RUNNING with the start time re-checked at
// write time.
func (s *PostgresStore) StartAuction(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auctions
		SET status = 'RUNNING', updated_at = $1
		WHERE id = $2 AND status = 'SCHEDULED' AND start_at <= $1`,
		now, id)
	if err != nil {
		return false, fmt.Errorf("postgres.StartAuction: %w", classify(err))
	}
	return affected(res)
}

// MarkEndingSoon flags RUNNING → ENDING_SOON with the window re-checked at
// write time, so a freshly extended end_at is never clobbered.
func (s *PostgresStore) MarkEndingSoon(ctx context.Context, id uuid.UUID, now time.Time, window time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auctions
		SET status = 'ENDING_SOON', updated_at = $1
		WHERE id = $2 AND status = 'RUNNING' AND end_at > $1 AND end_at <= $3`,
		now, id, now.Add(window))
	if err != nil {
		return false, fmt.Errorf("postgres.MarkEndingSoon: %w", classify(err))
	}
	return affected(res)
}

// ──────────────────────────────────────────────────────────────────────────────
// Bids & orders (read side)
// ──────────────────────────────────────────────────────────────────────────────

// ListBids returns an auction's bids, highest amount first; equal amounts
// keep placement order.
func (s *PostgresStore) ListBids(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	err := s.db.SelectContext(ctx, &bids,
		`SELECT `+bidColumns+` FROM bids WHERE auction_id = $1
		 ORDER BY amount DESC, created_at ASC LIMIT $2 OFFSET $3`,
		auctionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres.ListBids: %w", err)
	}
	return bids, nil
}

// ListBidsByBidder returns a bidder's history, newest first.
func (s *PostgresStore) ListBidsByBidder(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	err := s.db.SelectContext(ctx, &bids,
		`SELECT `+bidColumns+` FROM bids WHERE bidder_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		bidderID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres.ListBidsByBidder: %w", err)
	}
	return bids, nil
}

// CountBids returns how many bids an auction has received.
func (s *PostgresStore) CountBids(ctx context.Context, auctionID uuid.UUID) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM bids WHERE auction_id = $1`, auctionID); err != nil {
		return 0, fmt.Errorf("postgres.CountBids: %w", err)
	}
	return n, nil
}

// CountBidsByBidder returns how many bids a bidder has placed.
func (s *PostgresStore) CountBidsByBidder(ctx context.Context, bidderID uuid.UUID) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM bids WHERE bidder_id = $1`, bidderID); err != nil {
		return 0, fmt.Errorf("postgres.CountBidsByBidder: %w", err)
	}
	return n, nil
}

// GetOrderByAuction returns the order created for an auction.
func (s *PostgresStore) GetOrderByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Order, error) {
	return getOrder(ctx, s.db, auctionID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────────────────────────────────

// InTx runs fn inside a READ COMMITTED transaction. Guarded UPDATEs re-evaluate
// their WHERE clause against the latest committed row after waiting on its
// lock, which is what makes the conditional writes safe under this level.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres.InTx: begin: %w", classify(err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&postgresTx{tx: tx}); err != nil {
		return classify(err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("postgres.InTx: commit: %w", classify(err))
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Shared helpers for *sqlx.DB and *sqlx.Tx
// ──────────────────────────────────────────────────────────────────────────────

func getAuction(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, forUpdate bool) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var a domain.Auction
	if err := sqlx.GetContext(ctx, q, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("postgres.getAuction: %w", classify(err))
	}
	return &a, nil
}

func getOrder(ctx context.Context, q sqlx.QueryerContext, auctionID uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	err := sqlx.GetContext(ctx, q, &o,
		`SELECT `+orderColumns+` FROM orders WHERE auction_id = $1`, auctionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("postgres.getOrder: %w", err)
	}
	return &o, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
