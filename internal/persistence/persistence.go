// Package persistence selects and opens the storage backend named by DB_DRIVER.
package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nfrund/goby-chat/internal/config"
	"github.com/nfrund/goby-chat/internal/database"
	"github.com/nfrund/goby-chat/internal/database/sqlstore"
	"github.com/nfrund/goby-chat/internal/domain"
)

// Backend is a domain.Gateway with lifecycle hooks.
type Backend interface {
	domain.Gateway
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var (
	_ Backend = (*database.Gateway)(nil)
	_ Backend = (*sqlstore.Gateway)(nil)
)

// Open connects to the configured backend. The schema is not applied; call
// Migrate for that. A SurrealDB backend is left with its id sequences loaded
// and its health monitor running.
func Open(ctx context.Context, cfg config.Provider) (Backend, error) {
	switch cfg.GetDBDriver() {
	case config.DriverSurreal:
		conn := database.NewConnection(cfg)
		if err := conn.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect to surrealdb: %w", err)
		}
		gw, err := database.NewGateway(conn, cfg)
		if err != nil {
			_ = conn.Close(ctx)
			return nil, err
		}
		if err := gw.LoadSequences(ctx); err != nil {
			// Tables are missing before the first migration; counters start at zero.
			slog.WarnContext(ctx, "could not load id sequences", "error", err)
		}
		conn.StartMonitoring()
		return gw, nil

	case config.DriverMySQL, config.DriverSQLite:
		gw, err := sqlstore.Open(cfg)
		if err != nil {
			return nil, err
		}
		if err := gw.Ping(ctx); err != nil {
			_ = gw.Close(ctx)
			return nil, fmt.Errorf("ping %s: %w", cfg.GetDBDriver(), err)
		}
		return gw, nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.GetDBDriver())
	}
}

// OpenAndMigrate opens the backend and applies its schema. For SurrealDB the
// id sequences are reloaded after migration.
func OpenAndMigrate(ctx context.Context, cfg config.Provider) (Backend, error) {
	b, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := b.Migrate(ctx); err != nil {
		_ = b.Close(ctx)
		return nil, err
	}
	if gw, ok := b.(*database.Gateway); ok {
		if err := gw.LoadSequences(ctx); err != nil {
			_ = b.Close(ctx)
			return nil, err
		}
	}
	return b, nil
}
