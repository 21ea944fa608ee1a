package autonomy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

const (
	DefaultOutcomeAgentMaxRuns = 5
	maxStaleAfterHours         = 720
	maxOutcomeAgentRuns        = 50
	abandonedFactor            = 3
)

type OutcomeAgentOptions struct {
	StaleAfterHours int  `json:"stale_after_hours"`
	MaxRuns         int  `json:"max_runs"`
	DryRun          bool `json:"dry_run"`
}

// Validate rejects out-of-range options. Zero values take defaults.
func (o OutcomeAgentOptions) Validate() error {
	if o.StaleAfterHours != 0 {
		if err := CheckRange("stale_after_hours", o.StaleAfterHours, 1, maxStaleAfterHours); err != nil {
			return err
		}
	}
	if o.MaxRuns != 0 {
		if err := CheckRange("max_runs", o.MaxRuns, 1, maxOutcomeAgentRuns); err != nil {
			return err
		}
	}
	return nil
}

func (o OutcomeAgentOptions) withDefaults() OutcomeAgentOptions {
	if o.StaleAfterHours == 0 {
		o.StaleAfterHours = DefaultStaleAfterHours
	}
	if o.MaxRuns == 0 {
		o.MaxRuns = DefaultOutcomeAgentMaxRuns
	}
	return o
}

type ClosureStatus string

const (
	ClosureProposed ClosureStatus = "proposed"
	ClosureClosed   ClosureStatus = "closed"
	ClosureFailed   ClosureStatus = "failed"
)

type OutcomeProposal struct {
	RunID                    uuid.UUID             `json:"run_id"`
	StoryID                  string                `json:"story_id"`
	RecommendationID         string                `json:"recommendation_id,omitempty"`
	AgeHours                 int                   `json:"age_hours"`
	SuggestedOutcomeDecision store.OutcomeDecision `json:"suggested_outcome_decision"`
	Notes                    string                `json:"notes"`
	Status                   ClosureStatus         `json:"status"`
	Error                    string                `json:"error,omitempty"`
}

type OutcomeAgentResult struct {
	Mode      Mode              `json:"mode"`
	DryRun    bool              `json:"dry_run"`
	Applied   bool              `json:"applied"`
	Proposals []OutcomeProposal `json:"proposals"`
	Closed    int               `json:"closed"`
	Failed    int               `json:"failed"`
}

// RunCloser writes outcome fields on an existing run.
type RunCloser interface {
	UpdateRunOutcome(ctx context.Context, id uuid.UUID, update store.OutcomeUpdate) (*store.Run, error)
}

// ProposeClosures suggests outcomes for the oldest stale open runs.
func ProposeClosures(history []*store.Run, opts OutcomeAgentOptions, now time.Time) []OutcomeProposal {
	opts = opts.withDefaults()
	stale := staleOpenRuns(history, opts.StaleAfterHours, now)
	if len(stale) > opts.MaxRuns {
		stale = stale[:opts.MaxRuns]
	}
	out := make([]OutcomeProposal, 0, len(stale))
	for _, r := range stale {
		age := int(now.Sub(r.CreatedAt).Hours())
		decision := store.OutcomeIterate
		notes := fmt.Sprintf("Auto-closed after %dh without an outcome; defaulting to iterate.", age)
		if age > abandonedFactor*opts.StaleAfterHours {
			decision = store.OutcomeHold
			notes = fmt.Sprintf("Auto-closed after %dh without an outcome (over %dx the %dh threshold); holding.", age, abandonedFactor, opts.StaleAfterHours)
		}
		out = append(out, OutcomeProposal{
			RunID:                    r.ID,
			StoryID:                  r.StoryID,
			RecommendationID:         r.ExecutedRecommendationID(),
			AgeHours:                 age,
			SuggestedOutcomeDecision: decision,
			Notes:                    notes,
			Status:                   ClosureProposed,
		})
	}
	return out
}

// CloseStaleRuns proposes closures and, unless dry-run or manual mode, applies them.
// Store failures are reported per run.
func CloseStaleRuns(ctx context.Context, closer RunCloser, mode Mode, history []*store.Run, opts OutcomeAgentOptions, now time.Time) (OutcomeAgentResult, error) {
	if err := opts.Validate(); err != nil {
		return OutcomeAgentResult{}, err
	}
	result := OutcomeAgentResult{
		Mode:      mode,
		DryRun:    opts.DryRun,
		Proposals: ProposeClosures(history, opts, now),
	}
	if opts.DryRun || mode == ModeManual || closer == nil {
		return result, nil
	}

	result.Applied = true
	for i := range result.Proposals {
		p := &result.Proposals[i]
		if err := ctx.Err(); err != nil {
			return result, err
		}
		updated, err := closer.UpdateRunOutcome(ctx, p.RunID, store.OutcomeUpdate{
			Decision:    p.SuggestedOutcomeDecision,
			Notes:       p.Notes,
			ClosedBy:    store.ClosedByOutcomeAgent,
			CompletedAt: now,
		})
		if err == nil && updated == nil {
			err = fmt.Errorf("run %s not found", p.RunID)
		}
		if err != nil {
			p.Status = ClosureFailed
			p.Error = err.Error()
			result.Failed++
			continue
		}
		p.Status = ClosureClosed
		result.Closed++
	}
	return result, nil
}
