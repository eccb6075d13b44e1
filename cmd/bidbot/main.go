package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bidbot-engine/cmd/bidbot/commands"
	"bidbot-engine/internal/config"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "bidbot",
	Short: "bidbot - unattended proposal sender for Workana",
	Long: `bidbot scans the Workana listing, scores each posting with an LLM,
prices and sends proposals, and keeps a ledger so no posting is bid twice.

Available commands:
  run       - Run one bidding cycle now
  schedule  - Run cycles on the configured weekly schedule
  serve     - Start the local HTTP API (status, ledger, audit, run trigger)
  ledger    - Inspect the proposal ledger
  attempts  - List audited attempts
  secrets   - Manage API keys and passwords in the OS keychain
  config    - Create or show the configuration

Examples:
  bidbot run                 # One cycle, confirm each bid on the terminal
  bidbot run --auto          # One cycle, send without asking
  bidbot ledger stats        # Weekly/daily counts against the caps
  bidbot serve --schedule    # API plus scheduled runs`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.OverlayDotEnv(".env"); err != nil {
			return errs.Wrap(err, "read .env")
		}
		return nil
	},
}

func init() {
	commands.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ScheduleCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.LedgerCmd)
	rootCmd.AddCommand(commands.AttemptsCmd)
	rootCmd.AddCommand(commands.SecretsCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if hint := errs.FlattenHints(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		logger.Cleanup()
		os.Exit(1)
	}
}
