package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Trigger one stale-run sweep across all stories (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var report struct {
				Stories int `json:"stories"`
				Closed  int `json:"closed"`
				Failed  int `json:"failed"`
				Errors  int `json:"errors"`
			}
			if err := newAPIClient().do(cmd.Context(), "POST", "/sweeper/run", nil, &report); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "swept %d stories: closed %d, failed %d, errors %d\n",
				report.Stories, report.Closed, report.Failed, report.Errors)
			return nil
		},
	}
}

func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print run totals across all stories (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats store.RunStats
			if err := newAPIClient().do(cmd.Context(), "GET", "/stats", nil, &stats); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stories=%d planned=%d in_progress=%d completed=%d positive_rate=%.2f\n",
				stats.Stories, stats.TotalPlanned, stats.TotalInProgress, stats.TotalCompleted, stats.PositiveRate)
			return nil
		},
	}
}
