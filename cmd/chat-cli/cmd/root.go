package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nfrund/goby-chat/internal/config"
	"github.com/nfrund/goby-chat/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "chat-cli",
	Short: "Maintenance tool for the chat server",
	Long: `chat-cli runs maintenance tasks against the chat server's database.

It reads the same environment (and .env file) as the server.

Use "chat-cli [command] --help" for more information about a specific command.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.New()
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig is a variable so tests can inject a configuration.
var loadConfig = func() config.Provider {
	return config.New()
}
