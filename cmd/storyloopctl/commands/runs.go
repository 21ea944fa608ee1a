package commands

import (
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

var (
	runsStatus string
	runsLimit  int
)

func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs <story-id>",
		Short: "List a story's runs, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  runRuns,
	}
	cmd.Flags().StringVar(&runsStatus, "status", "", "planned, in_progress or completed")
	cmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	return cmd
}

func runRuns(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if runsStatus != "" {
		q.Set("status", runsStatus)
	}
	q.Set("limit", strconv.Itoa(runsLimit))

	var runs []store.Run
	path := fmt.Sprintf("/stories/%s/runs?%s", url.PathEscape(args[0]), q.Encode())
	if err := newAPIClient().do(cmd.Context(), "GET", path, nil, &runs); err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tRECOMMENDATION\tSTATUS\tOUTCOME\tCREATED")
	for i := range runs {
		r := &runs[i]
		source, outcome := "-", "-"
		if r.Plan.Plan != nil {
			source = string(r.Plan.Source())
		}
		if r.OutcomeDecision != nil {
			outcome = string(*r.OutcomeDecision)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, source, r.ExecutedRecommendationID(), r.Status, outcome,
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

var (
	staleAfterHours int
	staleMaxRuns    int
	staleDryRun     bool
)

func NewCloseStaleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close-stale <story-id>",
		Short: "Run the outcome-closing agent over a story's open runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runCloseStale,
	}
	cmd.Flags().IntVar(&staleAfterHours, "stale-after-hours", 0, "age at which an open run is stale")
	cmd.Flags().IntVar(&staleMaxRuns, "max-runs", 0, "maximum runs to close")
	cmd.Flags().BoolVar(&staleDryRun, "dry-run", false, "report without closing")
	return cmd
}

func runCloseStale(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"stale_after_hours": staleAfterHours,
		"max_runs":          staleMaxRuns,
		"dry_run":           staleDryRun,
	}
	var result map[string]interface{}
	path := fmt.Sprintf("/stories/%s/runs/close-stale", url.PathEscape(args[0]))
	if err := newAPIClient().do(cmd.Context(), "POST", path, body, &result); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}
