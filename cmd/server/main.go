// Package main is the entry point for the auction API server. It wires
// together the services and runs the HTTP server alongside the WebSocket hub,
// the event dispatcher and the lifecycle scheduler.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evetabi/auction/internal/api"
	"github.com/evetabi/auction/internal/api/middleware"
	"github.com/evetabi/auction/internal/auth"
	"github.com/evetabi/auction/internal/backoffice"
	"github.com/evetabi/auction/internal/config"
	"github.com/evetabi/auction/internal/events"
	"github.com/evetabi/auction/internal/notify"
	"github.com/evetabi/auction/internal/repository"
	"github.com/evetabi/auction/internal/scheduler"
	"github.com/evetabi/auction/internal/service"
	"github.com/evetabi/auction/internal/ws"
	"golang.org/x/sync/errgroup"
)

// fanoutStats joins the dispatcher and hub counters for the scheduler.
type fanoutStats struct {
	dispatcher *events.Dispatcher
	hub        *ws.Hub
}

func (f fanoutStats) Dropped() int64      { return f.dispatcher.Dropped() }
func (f fanoutStats) ConnectedCount() int { return f.hub.ConnectedCount() }

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting auction server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Store (postgres + migrations, or memory) ───────────────────────────
	store, closeStore, err := repository.Open(ctx, cfg.DB, logger)
	if err != nil {
		logger.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	// ── 4. Services ───────────────────────────────────────────────────────────
	bidSvc := service.NewBidService(store, cfg, logger)
	settlementSvc := service.NewSettlementService(store, logger)
	lifecycleSvc := service.NewLifecycleService(store, settlementSvc, cfg, logger)
	auctionSvc := service.NewAuctionService(store, logger)

	notifier := notify.NewClient(cfg.Notify, logger)
	settlementSvc.SetNotifier(notifier)
	settlementSvc.SetThreadOpener(notifier)

	// ── 5. Real-time fan-out: services → dispatcher → ws hub ──────────────────
	verifier := auth.NewTokenVerifier(cfg.JWT.AccessSecret, cfg.JWT.Issuer)
	hub := ws.NewHub(verifier, cfg.WS.AllowedOrigins, logger)
	dispatcher := events.NewDispatcher(hub, cfg.Events.QueueSize, logger)

	bidSvc.SetBus(dispatcher)
	settlementSvc.SetBus(dispatcher)
	lifecycleSvc.SetBus(dispatcher)
	auctionSvc.SetBus(dispatcher)

	// ── 6. Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(lifecycleSvc, fanoutStats{dispatcher: dispatcher, hub: hub}, cfg, logger)

	// ── 7. HTTP servers ───────────────────────────────────────────────────────
	bidLimiter := middleware.NewRateLimiter(cfg.Server.BidRateLimit)
	router := api.SetupRouter(api.RouterDeps{
		Verifier:   verifier,
		AuctionSvc: auctionSvc,
		BidSvc:     bidSvc,
		BidLimiter: bidLimiter,
		Hub:        hub,
		Cfg:        cfg,
	})
	servers := []*http.Server{{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}}

	// The memory store lives in this process, so the admin API must too.
	if cfg.UsesMemoryStore() {
		servers = append(servers, &http.Server{
			Addr: ":" + cfg.Server.BackofficePort,
			Handler: backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
				Verifier:      verifier,
				AuctionSvc:    auctionSvc,
				SettlementSvc: settlementSvc,
				Sweeper:       lifecycleSvc,
				Store:         store,
				Cfg:           cfg,
			}),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		})
	}

	// ── 8. Run everything; first failure or signal stops the rest ─────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		bidLimiter.RunEviction(gctx, 5*time.Minute)
		return nil
	})

	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "err", err)
		closeStore()
		os.Exit(1)
	}
	logger.Info("server stopped cleanly", "events_dropped", dispatcher.Dropped())
}
