package config_test

import (
	"testing"
	"time"

	"github.com/nfrund/goby-chat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file::memory:")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.GetAppAddr())
	assert.Equal(t, 5*time.Second, cfg.GetDBQueryTimeout())
	assert.Equal(t, 10*time.Second, cfg.GetDBExecuteTimeout())
	assert.Equal(t, int64(16<<20), cfg.GetUploadMaxBytes())
	assert.Equal(t, "uploads", cfg.GetUploadDir())
	assert.Equal(t, 50, cfg.GetHistoryLimit())
	assert.Equal(t, "ja", cfg.GetDefaultLang())
	assert.Equal(t, 10, cfg.GetRateLimitPerMinute())
}

func TestLoad_SurrealRequiresConnectionSettings(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "surreal")
	t.Setenv("SURREAL_URL", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SURREAL_URL")

	t.Setenv("SURREAL_URL", "ws://localhost:8000")
	t.Setenv("SURREAL_NS", "chat")
	t.Setenv("SURREAL_DB", "chat")
	t.Setenv("DB_QUERY_TIMEOUT", "2s")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000", cfg.GetDBURL())
	assert.Equal(t, 2*time.Second, cfg.GetDBQueryTimeout())
}

func TestLoad_Rejects(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "oracle")

	_, err := config.Load()
	require.ErrorContains(t, err, "unknown DB_DRIVER")

	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_DSN", "")
	_, err = config.Load()
	require.ErrorContains(t, err, "DB_DSN")
}

func TestLoad_RequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "chat.db")

	_, err := config.Load()
	require.Error(t, err)
}
