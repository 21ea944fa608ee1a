package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Storyloop/internal/autonomy"
)

// explainView is the subset of the derived state that explains how the
// baseline policy became the final one.
type explainView struct {
	StoryID    string                  `json:"story_id"`
	BasePolicy autonomy.DecisionPolicy `json:"base_policy"`
	Policy     autonomy.DecisionPolicy `json:"policy"`
	Governance *struct {
		Status  string   `json:"status"`
		Score   int      `json:"governance_score"`
		Reasons []string `json:"reasons"`
	} `json:"governance"`
	Optimizer *struct {
		RecommendedObjective string   `json:"recommended_objective"`
		Reasons              []string `json:"reasons"`
	} `json:"optimizer"`
	SelfHealing *struct {
		Severity    string `json:"severity"`
		RoiGapScore int    `json:"roi_gap_score"`
	} `json:"self_healing"`
}

func NewExplainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <story-id>",
		Short: "Show how the pipeline stages changed the decision policy",
		Long: `Prints the stage verdicts and a unified diff of the baseline
decision policy against the final policy after governance, the
optimizer and self-healing were applied.`,
		Args: cobra.ExactArgs(1),
		RunE: runExplain,
	}
	cmd.Flags().StringVar(&evalMode, "mode", "", "manual, assist or auto")
	cmd.Flags().StringVar(&evalObjective, "objective", "", "sprint objective override")
	return cmd
}

func runExplain(cmd *cobra.Command, args []string) error {
	var view explainView
	path := fmt.Sprintf("/stories/%s/autonomy%s", url.PathEscape(args[0]), stateQuery())
	if err := newAPIClient().do(cmd.Context(), "GET", path, nil, &view); err != nil {
		return err
	}
	return renderExplanation(cmd.OutOrStdout(), view)
}

func renderExplanation(w io.Writer, v explainView) error {
	fmt.Fprintf(w, "story %s\n", v.StoryID)
	if g := v.Governance; g != nil {
		fmt.Fprintf(w, "governance: %s (score %d)\n", g.Status, g.Score)
		for _, r := range g.Reasons {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
	if o := v.Optimizer; o != nil {
		fmt.Fprintf(w, "optimizer: %s\n", o.RecommendedObjective)
		for _, r := range o.Reasons {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
	if h := v.SelfHealing; h != nil {
		fmt.Fprintf(w, "self-healing: %s (roi gap %d)\n", h.Severity, h.RoiGapScore)
	}

	diff, err := policyDiff(v.BasePolicy, v.Policy)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintln(w, "policy unchanged from baseline")
		return nil
	}
	fmt.Fprint(w, diff)
	return nil
}

// policyDiff returns a unified diff of the two policies as indented JSON,
// or "" when they are identical.
func policyDiff(base, final autonomy.DecisionPolicy) (string, error) {
	a, err := json.MarshalIndent(base, "", "  ")
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		return "", err
	}
	if string(a) == string(b) {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a) + "\n"),
		B:        difflib.SplitLines(string(b) + "\n"),
		FromFile: "baseline",
		ToFile:   "final",
		Context:  3,
	})
}
