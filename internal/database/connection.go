package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nfrund/goby-chat/internal/config"
	"github.com/surrealdb/surrealdb.go"
)

const healthInterval = 30 * time.Second

// Connection owns the SurrealDB client. Operations that fail with a network
// error trigger a reconnect and are retried; a background monitor pings the
// server and reconnects when the ping fails.
type Connection struct {
	cfg     config.Provider
	retry   backoff
	logger  *slog.Logger
	done    chan struct{}
	closing sync.Once

	mu sync.RWMutex
	db *surrealdb.DB
}

// NewConnection returns an unconnected Connection; call Connect before use.
func NewConnection(cfg config.Provider) *Connection {
	return &Connection{
		cfg:    cfg,
		retry:  defaultBackoff(),
		logger: slog.Default().With("component", "surrealdb", "url", redactDBURL(cfg.GetDBURL())),
		done:   make(chan struct{}),
	}
}

// Connect dials, signs in and selects the namespace and database. It is a
// no-op on a live connection.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return nil
	}
	return c.dialLocked(ctx)
}

// WithConnection runs fn against the live client. When fn fails with a
// connection error the client is redialed and fn retried with backoff.
func (c *Connection) WithConnection(ctx context.Context, fn func(*surrealdb.DB) error) error {
	db := c.current()
	if db == nil {
		return NewDBError(ErrNotConnected, "database not connected")
	}

	err := fn(db)
	if err == nil || !isConnectionError(err) {
		return err
	}

	c.logger.WarnContext(ctx, "operation lost the connection, reconnecting", "error", err)
	return c.retry.run(ctx, c.logger, func() error {
		if rerr := c.redial(ctx); rerr != nil {
			return fmt.Errorf("reconnect: %w (after %v)", rerr, err)
		}
		return fn(c.current())
	})
}

// StartMonitoring starts the health monitor. It stops on Close.
func (c *Connection) StartMonitoring() {
	go c.monitor()
}

// Ping asks the server for its version.
func (c *Connection) Ping(ctx context.Context) error {
	db := c.current()
	if db == nil {
		return NewDBError(ErrNotConnected, "database not connected")
	}
	if _, err := db.Version(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", redactDBURL(c.cfg.GetDBURL()), err)
	}
	return nil
}

// Close stops the monitor and closes the client. Calling it twice is safe.
func (c *Connection) Close(ctx context.Context) error {
	c.closing.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close(ctx)
	c.db = nil
	return err
}

func (c *Connection) current() *surrealdb.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

func (c *Connection) redial(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialLocked(ctx)
}

// dialLocked replaces the client. c.mu must be held.
func (c *Connection) dialLocked(ctx context.Context) error {
	if c.db != nil {
		_ = c.db.Close(ctx)
		c.db = nil
	}

	db, err := surrealdb.FromEndpointURLString(ctx, c.cfg.GetDBURL())
	if err != nil {
		return fmt.Errorf("connect to %s: %w", redactDBURL(c.cfg.GetDBURL()), err)
	}
	if _, err := db.SignIn(ctx, &surrealdb.Auth{Username: c.cfg.GetDBUser(), Password: c.cfg.GetDBPass()}); err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("sign in as %q: %w", c.cfg.GetDBUser(), err)
	}
	if err := db.Use(ctx, c.cfg.GetDBNs(), c.cfg.GetDBDb()); err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("use %s/%s: %w", c.cfg.GetDBNs(), c.cfg.GetDBDb(), err)
	}

	c.db = db
	c.logger.InfoContext(ctx, "connected", "namespace", c.cfg.GetDBNs(), "database", c.cfg.GetDBDb())
	return nil
}

func (c *Connection) monitor() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.Ping(ctx); err != nil {
			c.logger.Warn("health check failed, reconnecting", "error", err)
			if err := c.retry.run(ctx, c.logger, func() error { return c.redial(ctx) }); err != nil {
				c.logger.Error("reconnect failed", "error", err)
			}
		}
		cancel()
	}
}

// isConnectionError reports whether err looks like a lost transport rather
// than a query failure.
func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "broken pipe", "unexpected eof", "use of closed network connection"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// redactDBURL hides the password in dbURL.
func redactDBURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	return u.Redacted()
}
