package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evetabi/auction/internal/config"
	"github.com/jmoiron/sqlx"
)

// Open builds the Store selected by cfg.Driver. For postgres it connects,
// applies the pool settings, pings and migrates; the returned close func
// releases the pool. The memory store's close func is a no-op.
func Open(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (Store, func() error, error) {
	if strings.EqualFold(cfg.Driver, "memory") {
		logger.Warn("using in-memory store; state is lost on restart")
		return NewMemoryStore(), func() error { return nil }, nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("repository.Open: connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("repository.Open: ping: %w", err)
	}
	logger.Info("database connected")

	if err = Migrate(ctx, db.DB); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("migrations applied")

	return NewPostgresStore(db), db.Close, nil
}
