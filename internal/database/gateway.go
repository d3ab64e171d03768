package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nfrund/goby-chat/internal/config"
	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/samber/lo"
	"github.com/surrealdb/surrealdb.go"
)

type userRow struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

func (r *userRow) toDomain() *domain.User {
	return &domain.User{ID: r.UserID, Username: r.Username, DisplayName: r.DisplayName}
}

type messageRow struct {
	MsgID       int64     `json:"msg_id"`
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Message     string    `json:"message"`
	ImageURL    *string   `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	IsDeleted   bool      `json:"is_deleted"`
}

func (r *messageRow) toDomain() *domain.Message {
	return &domain.Message{
		ID:          r.MsgID,
		UserID:      r.UserID,
		Username:    r.Username,
		DisplayName: r.DisplayName,
		Text:        r.Message,
		ImageURL:    r.ImageURL,
		CreatedAt:   r.CreatedAt,
		IsDeleted:   r.IsDeleted,
	}
}

type seqRow struct {
	Value int64 `json:"value"`
}

// Gateway is the SurrealDB implementation of domain.Gateway.
//
// Numeric user and message ids are allocated in process from counters seeded
// with the stored maximum, and double as record ids (user:<n>, message:<n>).
// The service runs as a single process, so the counters are authoritative.
type Gateway struct {
	conn           *Connection
	queryTimeout   time.Duration
	executeTimeout time.Duration
	userSeq        atomic.Int64
	msgSeq         atomic.Int64
	logger         *slog.Logger
}

// NewGateway wraps an established connection. Call Migrate (once per
// deployment) and LoadSequences before serving traffic.
func NewGateway(conn *Connection, cfg config.Provider) (*Gateway, error) {
	if conn == nil {
		return nil, NewDBError(ErrInvalidInput, "connection cannot be nil")
	}
	if cfg.GetDBQueryTimeout() <= 0 || cfg.GetDBExecuteTimeout() <= 0 {
		return nil, NewDBError(ErrInvalidInput, "DB_QUERY_TIMEOUT and DB_EXECUTE_TIMEOUT must be positive durations")
	}
	return &Gateway{
		conn:           conn,
		queryTimeout:   cfg.GetDBQueryTimeout(),
		executeTimeout: cfg.GetDBExecuteTimeout(),
		logger:         slog.Default().With("service", "surreal-gateway"),
	}, nil
}

// Migrate applies the schema.
func (g *Gateway) Migrate(ctx context.Context) error {
	ctx, cancel := bounded(ctx, executeTimeoutKey, g.executeTimeout)
	defer cancel()

	return g.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		for _, stmt := range schemaStatements {
			if err := Execute(ctx, db, stmt, nil); err != nil {
				return WrapError(err, "apply schema")
			}
		}
		return nil
	})
}

// LoadSequences seeds the id counters from the stored maxima.
func (g *Gateway) LoadSequences(ctx context.Context) error {
	ctx, cancel := bounded(ctx, queryTimeoutKey, g.queryTimeout)
	defer cancel()

	return g.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		user, err := QueryOne[seqRow](ctx, db, "SELECT user_id AS value FROM user ORDER BY user_id DESC LIMIT 1", nil)
		if err != nil {
			return WrapError(err, "load user sequence")
		}
		msg, err := QueryOne[seqRow](ctx, db, "SELECT msg_id AS value FROM message ORDER BY msg_id DESC LIMIT 1", nil)
		if err != nil {
			return WrapError(err, "load message sequence")
		}
		if user != nil {
			g.userSeq.Store(user.Value)
		}
		if msg != nil {
			g.msgSeq.Store(msg.Value)
		}
		g.logger.DebugContext(ctx, "sequences loaded", "user_seq", g.userSeq.Load(), "msg_seq", g.msgSeq.Load())
		return nil
	})
}

// Ping reports whether the database answers.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.conn.Ping(ctx)
}

// Close closes the underlying connection.
func (g *Gateway) Close(ctx context.Context) error {
	return g.conn.Close(ctx)
}

// FindUserByUsername returns the user or nil.
func (g *Gateway) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	ctx, cancel := bounded(ctx, queryTimeoutKey, g.queryTimeout)
	defer cancel()

	var row *userRow
	err := g.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		row, err = QueryOne[userRow](ctx, db,
			"SELECT user_id, username, display_name FROM user WHERE username = $username",
			map[string]any{"username": username})
		return err
	})
	if err != nil {
		return nil, WrapError(err, "find user by username")
	}
	if row == nil {
		return nil, nil
	}
	return row.toDomain(), nil
}

// CreateUser inserts a user. A taken username yields domain.ErrUniquenessConflict.
func (g *Gateway) CreateUser(ctx context.Context, username, displayName string) (*domain.User, error) {
	ctx, cancel := bounded(ctx, executeTimeoutKey, g.executeTimeout)
	defer cancel()

	id := g.userSeq.Add(1)
	params := map[string]any{
		"user_id":      id,
		"username":     username,
		"display_name": displayName,
	}
	query := `CREATE type::thing('user', $user_id) CONTENT {
		user_id: $user_id, username: $username, display_name: $display_name
	} RETURN NONE;
	SELECT user_id, username, display_name FROM type::thing('user', $user_id);`

	var row *userRow
	err := g.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		row, err = QueryOne[userRow](ctx, db, query, params)
		return err
	})
	if errors.Is(err, ErrAlreadyExists) {
		return nil, fmt.Errorf("create user %q: %w", username, domain.ErrUniquenessConflict)
	}
	if err != nil {
		return nil, WrapError(err, "create user").WithParams(params)
	}
	if row == nil {
		return nil, NewDBError(ErrQueryFailed, "create user returned no row")
	}
	return row.toDomain(), nil
}

// GetOrCreateUser implements domain.Gateway.
func (g *Gateway) GetOrCreateUser(ctx context.Context, username string) (*domain.User, error) {
	return domain.ResolveUser(ctx, g, g, username)
}

// InsertMessage implements domain.Gateway.
func (g *Gateway) InsertMessage(ctx context.Context, authorID int64, text string, imageURL *string) (*domain.Message, error) {
	if authorID <= 0 {
		return nil, NewDBError(ErrInvalidInput, "author id must be positive")
	}
	ctx, cancel := bounded(ctx, executeTimeoutKey, g.executeTimeout)
	defer cancel()

	id := g.msgSeq.Add(1)
	params := map[string]any{
		"msg_id":    id,
		"user_id":   authorID,
		"message":   text,
		"image_url": imageURL,
	}
	query := `CREATE type::thing('message', $msg_id) CONTENT {
		msg_id: $msg_id,
		user_id: $user_id,
		author: type::thing('user', $user_id),
		message: $message,
		image_url: $image_url,
		created_at: time::now(),
		is_deleted: false
	} RETURN NONE;
	SELECT ` + messageProjection + ` FROM type::thing('message', $msg_id);`

	var row *messageRow
	err := g.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		row, err = QueryOne[messageRow](ctx, db, query, params)
		return err
	})
	if err != nil {
		return nil, WrapError(err, "insert message")
	}
	if row == nil {
		return nil, NewDBError(ErrQueryFailed, "insert message returned no row")
	}
	return row.toDomain(), nil
}

// ListActiveMessages implements domain.Gateway.
func (g *Gateway) ListActiveMessages(ctx context.Context, limit int) ([]*domain.Message, error) {
	ctx, cancel := bounded(ctx, queryTimeoutKey, g.queryTimeout)
	defer cancel()

	query := "SELECT " + messageProjection + " FROM message WHERE is_deleted = false ORDER BY msg_id DESC LIMIT $limit"

	var rows []messageRow
	err := g.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		rows, err = Query[messageRow](ctx, db, query, map[string]any{"limit": limit})
		return err
	})
	if err != nil {
		return nil, WrapError(err, "list active messages")
	}

	msgs := lo.Map(rows, func(r messageRow, _ int) *domain.Message { return r.toDomain() })
	return lo.Reverse(msgs), nil
}

// GetMessage implements domain.Gateway.
func (g *Gateway) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	if id <= 0 {
		return nil, NewDBError(ErrInvalidID, "message id must be positive")
	}
	ctx, cancel := bounded(ctx, queryTimeoutKey, g.queryTimeout)
	defer cancel()

	var row *messageRow
	err := g.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		row, err = QueryOne[messageRow](ctx, db,
			"SELECT "+messageProjection+" FROM message WHERE msg_id = $msg_id",
			map[string]any{"msg_id": id})
		return err
	})
	if err != nil {
		return nil, WrapError(err, "get message")
	}
	if row == nil {
		return nil, nil
	}
	return row.toDomain(), nil
}

// SoftDeleteMessage implements domain.Gateway. The update matches on msg_id so a
// missing message is a no-op rather than an implicit create.
func (g *Gateway) SoftDeleteMessage(ctx context.Context, id int64) error {
	if id <= 0 {
		return NewDBError(ErrInvalidID, "message id must be positive")
	}
	ctx, cancel := bounded(ctx, executeTimeoutKey, g.executeTimeout)
	defer cancel()

	err := g.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		return Execute(ctx, db,
			"UPDATE message SET is_deleted = true, deleted_at = time::now() WHERE msg_id = $msg_id RETURN NONE",
			map[string]any{"msg_id": id})
	})
	if err != nil {
		return WrapError(err, "soft delete message")
	}
	return nil
}

// CountActiveByImageURL implements domain.Gateway.
func (g *Gateway) CountActiveByImageURL(ctx context.Context, url string) (int64, error) {
	ctx, cancel := bounded(ctx, queryTimeoutKey, g.queryTimeout)
	defer cancel()

	type countRow struct {
		N int64 `json:"n"`
	}
	var row *countRow
	err := g.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		row, err = QueryOne[countRow](ctx, db,
			"SELECT count() AS n FROM message WHERE image_url = $url AND is_deleted = false GROUP ALL",
			map[string]any{"url": url})
		return err
	})
	if err != nil {
		return 0, WrapError(err, "count image references")
	}
	if row == nil {
		return 0, nil
	}
	return row.N, nil
}

// String describes the gateway for logs.
func (g *Gateway) String() string {
	return strings.Join([]string{"surrealdb", redactDBURL(g.conn.cfg.GetDBURL())}, " ")
}
