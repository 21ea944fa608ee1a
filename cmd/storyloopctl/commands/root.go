// Package commands implements storyloopctl, an operator CLI for a running
// Storyloop service.
package commands

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	apiURL     string
	userID     string
	adminToken string
)

// NewRootCmd builds the command tree. Flags fall back to STORYLOOP_* variables,
// which may come from a .env file in the working directory.
func NewRootCmd() *cobra.Command {
	_ = godotenv.Load()

	cmd := &cobra.Command{
		Use:   "storyloopctl",
		Short: "Operate the Storyloop decision loop",
		Long: `storyloopctl talks to a running Storyloop API.

Examples:
  storyloopctl evaluate story-42 --mode auto
  storyloopctl execute story-42 --dry-run
  storyloopctl explain story-42
  storyloopctl sweep`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&apiURL, "api", envOr("STORYLOOP_API_URL", "http://localhost:8700"), "Storyloop API base URL")
	cmd.PersistentFlags().StringVar(&userID, "user", envOr("STORYLOOP_USER_ID", "storyloopctl"), "X-User-ID header value")
	cmd.PersistentFlags().StringVar(&adminToken, "admin-token", os.Getenv("STORYLOOP_ADMIN_TOKEN"), "admin bearer token")

	cmd.AddCommand(NewEvaluateCmd())
	cmd.AddCommand(NewExecuteCmd())
	cmd.AddCommand(NewExplainCmd())
	cmd.AddCommand(NewRunsCmd())
	cmd.AddCommand(NewCloseStaleCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewStatsCmd())
	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
