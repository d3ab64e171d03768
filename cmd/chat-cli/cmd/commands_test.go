package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/goby-chat/internal/config"
	"github.com/nfrund/goby-chat/internal/testutils"
)

func run(t *testing.T, cfg *config.Config, args ...string) string {
	t.Helper()

	prev := loadConfig
	loadConfig = func() config.Provider { return cfg }
	t.Cleanup(func() { loadConfig = prev })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Contains(t, run(t, nil, "version"), "chat-cli v")
}

func TestMigrateThenHistory(t *testing.T) {
	cfg := testutils.SQLiteConfig(t)

	assert.Contains(t, run(t, cfg, "migrate"), "schema up to date (sqlite)")

	historyFormat = "table"
	t.Cleanup(func() { historyFormat = "table" })
	assert.Equal(t, "[]\n", run(t, cfg, "history", "--format", "json"))
}
