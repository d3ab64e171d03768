package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/nfrund/goby-chat/internal/config"
	"github.com/nfrund/goby-chat/internal/logging"
)

// ConfigForTests loads the .env.test file from the project root and returns the
// resulting config. Tests are skipped when the file is absent, so integration
// suites only run where a backing service was configured.
func ConfigForTests(t *testing.T) config.Provider {
	t.Helper()

	path, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			break
		}
		if path == filepath.Dir(path) {
			t.Fatalf("could not find project root with go.mod")
		}
		path = filepath.Dir(path)
	}

	env, err := godotenv.Read(filepath.Join(path, ".env.test"))
	if err != nil {
		t.Skipf("no .env.test file: %v", err)
	}

	for key, value := range env {
		t.Setenv(key, value)
	}

	logging.New()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("invalid .env.test: %v", err)
	}
	return cfg
}

// SQLiteConfig returns a config backed by a fresh SQLite file in a temporary
// directory. Uploads go to a sibling temporary directory.
func SQLiteConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	return &config.Config{
		AppAddr:            ":0",
		AppBaseURL:         "http://localhost",
		SessionSecret:      "test-session-secret",
		DBDriver:           config.DriverSQLite,
		DBDSN:              filepath.Join(dir, "chat.db") + "?_pragma=busy_timeout(5000)",
		DBQueryTimeout:     5 * time.Second,
		DBExecuteTimeout:   5 * time.Second,
		UploadDir:          filepath.Join(dir, "uploads"),
		UploadMaxBytes:     16 << 20,
		HistoryLimit:       50,
		DefaultLang:        "ja",
		RateLimitPerMinute: 1000,
	}
}
