package commands

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	evalMode      string
	evalObjective string
	evalCadence   int
	evalCycles    int
)

func NewEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <story-id>",
		Short: "Print the derived autonomy state for a story",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvaluate,
	}
	cmd.Flags().StringVar(&evalMode, "mode", "", "manual, assist or auto")
	cmd.Flags().StringVar(&evalObjective, "objective", "", "sprint objective override")
	cmd.Flags().IntVar(&evalCadence, "cadence-hours", 0, "strategy cadence override")
	cmd.Flags().IntVar(&evalCycles, "cycles", 0, "strategy cycle override")
	return cmd
}

func stateQuery() string {
	q := url.Values{}
	if evalMode != "" {
		q.Set("mode", evalMode)
	}
	if evalObjective != "" {
		q.Set("objective", evalObjective)
	}
	if evalCadence > 0 {
		q.Set("cadence_hours", strconv.Itoa(evalCadence))
	}
	if evalCycles > 0 {
		q.Set("cycles", strconv.Itoa(evalCycles))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	var state map[string]interface{}
	path := fmt.Sprintf("/stories/%s/autonomy%s", url.PathEscape(args[0]), stateQuery())
	if err := newAPIClient().do(cmd.Context(), "GET", path, nil, &state); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), state)
}

var (
	execDryRun     bool
	execForce      bool
	execMaxActions int
	execSource     string
)

func NewExecuteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute <story-id>",
		Short: "Turn ready backlog items into runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runExecute,
	}
	cmd.Flags().StringVar(&evalMode, "mode", "", "manual, assist or auto")
	cmd.Flags().BoolVar(&execDryRun, "dry-run", false, "plan without creating runs")
	cmd.Flags().BoolVar(&execForce, "force", false, "override a governance pause")
	cmd.Flags().IntVar(&execMaxActions, "max-actions", 0, "cap on runs created this cycle")
	cmd.Flags().StringVar(&execSource, "source", "", "automation, window_loop or self_healing")
	return cmd
}

func runExecute(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"persist": !execDryRun,
		"dry_run": execDryRun,
		"force":   execForce,
	}
	if evalMode != "" {
		body["mode"] = evalMode
	}
	if execMaxActions > 0 {
		body["max_actions"] = execMaxActions
	}
	if execSource != "" {
		body["source"] = execSource
	}

	var result struct {
		Created             int      `json:"created"`
		Failed              int      `json:"failed"`
		BlockedByGovernance bool     `json:"blocked_by_governance"`
		BlockedByWindow     bool     `json:"blocked_by_window"`
		Reasons             []string `json:"reasons"`
		Items               []struct {
			RecommendationID string  `json:"recommendation_id"`
			Status           string  `json:"status"`
			RunID            *string `json:"run_id"`
			Error            string  `json:"error"`
		} `json:"items"`
	}
	path := fmt.Sprintf("/stories/%s/autonomy/execute", url.PathEscape(args[0]))
	if err := newAPIClient().do(cmd.Context(), "POST", path, body, &result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case result.BlockedByGovernance:
		fmt.Fprintln(out, "blocked by governance pause (use --force to override)")
	case result.BlockedByWindow:
		fmt.Fprintln(out, "blocked by window gate")
	}
	for _, r := range result.Reasons {
		fmt.Fprintf(out, "  - %s\n", r)
	}
	for _, it := range result.Items {
		line := fmt.Sprintf("%-28s %s", it.RecommendationID, it.Status)
		if it.RunID != nil {
			line += " run=" + *it.RunID
		}
		if it.Error != "" {
			line += " error=" + it.Error
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "created %d, failed %d\n", result.Created, result.Failed)
	return nil
}
