// Package sqlstore is the relational implementation of domain.Gateway, backed by
// gorm with MySQL or an embedded SQLite database.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/nfrund/goby-chat/internal/config"
	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/samber/lo"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Gateway stores users and messages through gorm.
type Gateway struct {
	db             *gorm.DB
	driver         string
	queryTimeout   time.Duration
	executeTimeout time.Duration
	logger         *slog.Logger
}

// Open connects using the driver and DSN from cfg. Only the mysql and sqlite
// drivers are accepted.
func Open(cfg config.Provider) (*Gateway, error) {
	var dialector gorm.Dialector
	switch cfg.GetDBDriver() {
	case config.DriverMySQL:
		dialector = mysql.Open(cfg.GetDBDSN())
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.GetDBDSN())
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.GetDBDriver())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.GetDBDriver(), err)
	}

	if cfg.GetDBDriver() == config.DriverSQLite {
		// One writer at a time; also keeps in-memory databases on a single connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlstore: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &Gateway{
		db:             db,
		driver:         cfg.GetDBDriver(),
		queryTimeout:   cfg.GetDBQueryTimeout(),
		executeTimeout: cfg.GetDBExecuteTimeout(),
		logger:         slog.Default().With("service", "sql-gateway", "driver", cfg.GetDBDriver()),
	}, nil
}

// Migrate creates or updates the users and messages tables.
func (g *Gateway) Migrate(ctx context.Context) error {
	if err := g.db.WithContext(ctx).AutoMigrate(&userModel{}, &messageModel{}); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// Ping reports whether the database answers.
func (g *Gateway) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (g *Gateway) Close(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FindUserByUsername returns the user or nil.
func (g *Gateway) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
	defer cancel()

	var rows []userModel
	if err := g.db.WithContext(ctx).Where("username = ?", username).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toDomain(), nil
}

// CreateUser inserts a user. A taken username yields domain.ErrUniquenessConflict.
func (g *Gateway) CreateUser(ctx context.Context, username, displayName string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, g.executeTimeout)
	defer cancel()

	row := userModel{Username: username, DisplayName: displayName}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("create user %q: %w", username, domain.ErrUniquenessConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return row.toDomain(), nil
}

// GetOrCreateUser implements domain.Gateway.
func (g *Gateway) GetOrCreateUser(ctx context.Context, username string) (*domain.User, error) {
	return domain.ResolveUser(ctx, g, g, username)
}

// InsertMessage implements domain.Gateway.
func (g *Gateway) InsertMessage(ctx context.Context, authorID int64, text string, imageURL *string) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, g.executeTimeout)
	defer cancel()

	row := messageModel{
		UserID:    authorID,
		Message:   text,
		ImageURL:  imageURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.db.WithContext(ctx).Omit("User").Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return row.toDomain(), nil
}

// ListActiveMessages implements domain.Gateway.
func (g *Gateway) ListActiveMessages(ctx context.Context, limit int) ([]*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
	defer cancel()

	var rows []messageModel
	err := g.db.WithContext(ctx).
		Joins("User").
		Where("messages.is_deleted = ?", false).
		Order("messages.msg_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list active messages: %w", err)
	}

	msgs := lo.Map(rows, func(r messageModel, _ int) *domain.Message { return r.toDomain() })
	return lo.Reverse(msgs), nil
}

// GetMessage implements domain.Gateway.
func (g *Gateway) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
	defer cancel()

	var rows []messageModel
	err := g.db.WithContext(ctx).
		Joins("User").
		Where("messages.msg_id = ?", id).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toDomain(), nil
}

// SoftDeleteMessage implements domain.Gateway.
func (g *Gateway) SoftDeleteMessage(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, g.executeTimeout)
	defer cancel()

	err := g.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("msg_id = ?", id).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("soft delete message: %w", err)
	}
	return nil
}

// CountActiveByImageURL implements domain.Gateway.
func (g *Gateway) CountActiveByImageURL(ctx context.Context, url string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
	defer cancel()

	var n int64
	err := g.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("image_url = ? AND is_deleted = ?", url, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count image references: %w", err)
	}
	return n, nil
}

// isDuplicate recognizes unique violations. gorm translates them for both
// dialects; the text checks cover driver versions that do not.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
