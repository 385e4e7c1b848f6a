// Package main is the entry point for the auction back-office admin server.
// It exposes admin-only endpoints protected by RBAC and an IP allowlist, and
// shares the PostgreSQL store with the API server.
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

	"github.com/evetabi/auction/internal/auth"
	"github.com/evetabi/auction/internal/backoffice"
	"github.com/evetabi/auction/internal/config"
	"github.com/evetabi/auction/internal/notify"
	"github.com/evetabi/auction/internal/repository"
	"github.com/evetabi/auction/internal/service"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting auction backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	if cfg.UsesMemoryStore() {
		logger.Error("backoffice needs a shared database; with DB_DRIVER=memory the API server hosts the admin routes")
		os.Exit(1)
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Store ─────────────────────────────────────────────────────────────────
	store, closeStore, err := repository.Open(ctx, cfg.DB, logger)
	if err != nil {
		logger.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	// ── Services ──────────────────────────────────────────────────────────────
	// Events published from here have no in-process subscribers; clients see
	// the resulting state on their next read or the next API-side event.
	auctionSvc := service.NewAuctionService(store, logger)
	settlementSvc := service.NewSettlementService(store, logger)
	lifecycleSvc := service.NewLifecycleService(store, settlementSvc, cfg, logger)

	notifier := notify.NewClient(cfg.Notify, logger)
	settlementSvc.SetNotifier(notifier)
	settlementSvc.SetThreadOpener(notifier)

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		Verifier:      auth.NewTokenVerifier(cfg.JWT.AccessSecret, cfg.JWT.Issuer),
		AuctionSvc:    auctionSvc,
		SettlementSvc: settlementSvc,
		Sweeper:       lifecycleSvc,
		Store:         store,
		Cfg:           cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("backoffice listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}
	logger.Info("backoffice stopped cleanly")
}
