// Package notify delivers settlement outcomes to the external notification
// and messaging services over HTTP webhooks.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/evetabi/auction/internal/config"
	"github.com/evetabi/auction/internal/domain"
	"github.com/evetabi/auction/internal/service"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
)

// Client posts JSON webhooks with retry on 5xx/429 and transport errors.
// It implements service.Notifier and service.ThreadOpener. An empty URL turns
// the corresponding call into a no-op.
type Client struct {
	outcomeURL string
	threadURL  string
	hc         *retryablehttp.Client
	logger     *slog.Logger
}

// NewClient creates a Client from cfg.
func NewClient(cfg config.NotifyConfig, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = logger // *slog.Logger satisfies retryablehttp.LeveledLogger

	return &Client{
		outcomeURL: cfg.OutcomeURL,
		threadURL:  cfg.ThreadURL,
		hc:         rc,
		logger:     logger,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Payloads
// ──────────────────────────────────────────────────────────────────────────────

// OutcomePayload is the body of the auction-ended webhook.
type OutcomePayload struct {
	AuctionID  uuid.UUID       `json:"auction_id"`
	SellerID   uuid.UUID       `json:"seller_id"`
	WinnerID   *uuid.UUID      `json:"winner_id,omitempty"`
	FinalPrice decimal.Decimal `json:"final_price"`
	ReserveMet bool            `json:"reserve_met"`
	OrderID    *uuid.UUID      `json:"order_id,omitempty"`
	SettledAt  time.Time       `json:"settled_at"`
}

// ThreadPayload asks the messaging service to open a buyer/seller thread.
type ThreadPayload struct {
	OrderID   uuid.UUID `json:"order_id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	StoreID   uuid.UUID `json:"store_id"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Calls
// ──────────────────────────────────────────────────────────────────────────────

// AuctionEnded reports a settled auction to the outcome endpoint.
func (c *Client) AuctionEnded(ctx context.Context, outcome *service.SettlementResult) error {
	if c.outcomeURL == "" || outcome == nil {
		return nil
	}
	p := OutcomePayload{
		AuctionID:  outcome.AuctionID,
		SellerID:   outcome.SellerID,
		WinnerID:   outcome.WinnerID,
		FinalPrice: outcome.FinalPrice,
		ReserveMet: outcome.ReserveMet,
		SettledAt:  outcome.SettledAt,
	}
	if outcome.Order != nil {
		id := outcome.Order.ID
		p.OrderID = &id
	}
	return c.post(ctx, c.outcomeURL, p)
}

// OpenThread asks the messaging service to open the buyer/seller thread for
// a freshly created order.
func (c *Client) OpenThread(ctx context.Context, order *domain.Order) error {
	if c.threadURL == "" || order == nil {
		return nil
	}
	return c.post(ctx, c.threadURL, ThreadPayload{
		OrderID:   order.ID,
		AuctionID: order.AuctionID,
		BuyerID:   order.BuyerID,
		SellerID:  order.SellerID,
		StoreID:   order.StoreID,
	})
}

func (c *Client) post(ctx context.Context, url string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, raw)
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: post %s: unexpected status %d", url, resp.StatusCode)
	}
	c.logger.Debug("webhook delivered", "url", url, "status", resp.StatusCode)
	return nil
}
