package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evetabi/auction/internal/config"
	"github.com/evetabi/auction/internal/domain"
	"github.com/evetabi/auction/internal/notify"
	"github.com/evetabi/auction/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuctionEnded_PostsOutcome(t *testing.T) {
	var got notify.OutcomePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := notify.NewClient(config.NotifyConfig{OutcomeURL: srv.URL, Timeout: time.Second}, quietLogger())

	winner := uuid.New()
	order := &domain.Order{ID: uuid.New()}
	outcome := &service.SettlementResult{
		AuctionID:  uuid.New(),
		SellerID:   uuid.New(),
		WinnerID:   &winner,
		FinalPrice: decimal.NewFromInt(140),
		ReserveMet: true,
		Order:      order,
		SettledAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.AuctionEnded(context.Background(), outcome))

	assert.Equal(t, outcome.AuctionID, got.AuctionID)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, winner, *got.WinnerID)
	require.NotNil(t, got.OrderID)
	assert.Equal(t, order.ID, *got.OrderID)
	assert.True(t, got.FinalPrice.Equal(decimal.NewFromInt(140)))
}

func TestOpenThread_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var p notify.ThreadPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := notify.NewClient(config.NotifyConfig{ThreadURL: srv.URL, RetryMax: 2, Timeout: time.Second}, quietLogger())
	require.NoError(t, c.OpenThread(context.Background(), &domain.Order{ID: uuid.New()}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenThread_ClientErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := notify.NewClient(config.NotifyConfig{ThreadURL: srv.URL, Timeout: time.Second}, quietLogger())
	err := c.OpenThread(context.Background(), &domain.Order{ID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestEmptyURLsAreNoOps(t *testing.T) {
	c := notify.NewClient(config.NotifyConfig{}, quietLogger())
	assert.NoError(t, c.AuctionEnded(context.Background(), &service.SettlementResult{}))
	assert.NoError(t, c.OpenThread(context.Background(), &domain.Order{}))
}
