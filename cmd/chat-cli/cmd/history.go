package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/nfrund/goby-chat/internal/persistence"
)

var (
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the newest active messages",
	Long: `Print the same listing the server returns from GET /messages.

Examples:
  chat-cli history                  # last 50 messages as a table
  chat-cli history --limit 10       # last 10 messages
  chat-cli history --format json    # machine-readable output`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyFormat != "table" && historyFormat != "json" {
			return fmt.Errorf("unknown format %q (use table or json)", historyFormat)
		}

		cfg := loadConfig()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		backend, err := persistence.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer backend.Close(context.Background())

		limit := historyLimit
		if limit == 0 {
			limit = cfg.GetHistoryLimit()
		}
		msgs, err := backend.ListActiveMessages(ctx, domain.ClampHistoryLimit(limit))
		if err != nil {
			return err
		}

		if historyFormat == "json" {
			return writeHistoryJSON(cmd.OutOrStdout(), msgs)
		}
		writeHistoryTable(cmd.OutOrStdout(), msgs)
		return nil
	},
}

func writeHistoryJSON(w io.Writer, msgs []*domain.Message) error {
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(msgs)
}

func writeHistoryTable(w io.Writer, msgs []*domain.Message) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Time", "User", "Text", "Image"})
	table.SetAutoWrapText(false)
	for _, m := range msgs {
		image := ""
		if m.ImageURL != nil {
			image = *m.ImageURL
		}
		table.Append([]string{
			strconv.FormatInt(m.ID, 10),
			m.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			m.DisplayName,
			m.Text,
			image,
		})
	}
	table.Render()
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Number of messages (0 uses HISTORY_LIMIT)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "table", "Output format: table or json")
	rootCmd.AddCommand(historyCmd)
}
