package autonomy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

var ErrStageDisabled = errors.New("pipeline stage disabled")

// RunCreator persists new runs.
type RunCreator interface {
	CreateRun(ctx context.Context, run *store.Run) error
}

type ExecuteRequest struct {
	Source     store.PlanSource `json:"source,omitempty"`
	MaxActions int              `json:"max_actions,omitempty"`
	DryRun     bool             `json:"dry_run"`
	Persist    bool             `json:"persist"`
	Force      bool             `json:"force"`
	UserID     string           `json:"-"`
}

func (r ExecuteRequest) Validate() error {
	switch r.Source {
	case "", store.PlanSourceAutomation, store.PlanSourceWindowLoop, store.PlanSourceSelfHealing:
	default:
		return fmt.Errorf("%w: source %q", ErrOutOfRange, r.Source)
	}
	if r.MaxActions != 0 {
		return CheckRange("max_actions", r.MaxActions, MinActions, MaxActions)
	}
	return nil
}

type ItemStatus string

const (
	ItemPlanned ItemStatus = "planned"
	ItemCreated ItemStatus = "created"
	ItemFailed  ItemStatus = "failed"
)

type ExecutedItem struct {
	RecommendationID string     `json:"recommendation_id"`
	Title            string     `json:"title"`
	Priority         Priority   `json:"priority"`
	Score            float64    `json:"score"`
	Status           ItemStatus `json:"status"`
	RunID            *uuid.UUID `json:"run_id,omitempty"`
	Error            string     `json:"error,omitempty"`
}

type ExecuteResult struct {
	StoryID             string           `json:"story_id"`
	Source              store.PlanSource `json:"source"`
	MaxActions          int              `json:"max_actions"`
	DryRun              bool             `json:"dry_run"`
	Persisted           bool             `json:"persisted"`
	Forced              bool             `json:"forced"`
	BlockedByGovernance bool             `json:"blocked_by_governance"`
	BlockedByWindow     bool             `json:"blocked_by_window"`
	Items               []ExecutedItem   `json:"items"`
	Created             int              `json:"created"`
	Failed              int              `json:"failed"`
	Reasons             []string         `json:"reasons"`
}

// SelectReady returns the top n ready items by score, priority and recommendation id.
func SelectReady(items []BacklogItem, n int) []BacklogItem {
	ready := make([]BacklogItem, 0, len(items))
	for _, it := range items {
		if it.Status == BacklogReady {
			ready = append(ready, it)
		}
	}
	sortBacklog(ready)
	if n < 0 {
		n = 0
	}
	if len(ready) > n {
		ready = ready[:n]
	}
	return ready
}

type candidate struct {
	item BacklogItem
	plan store.Plan
}

// Execute selects ready items from the derived state and, when persisting, creates a
// planned run per item. The returned error is reserved for invalid requests and
// disabled stages; store failures are reported per item.
func Execute(ctx context.Context, creator RunCreator, state DerivedState, req ExecuteRequest) (ExecuteResult, error) {
	if err := req.Validate(); err != nil {
		return ExecuteResult{}, err
	}
	if req.Source == "" {
		req.Source = store.PlanSourceAutomation
	}

	result := ExecuteResult{
		StoryID: state.StoryID,
		Source:  req.Source,
		DryRun:  req.DryRun,
		Forced:  req.Force,
		Items:   []ExecutedItem{},
	}

	if state.Governance.Paused() {
		if !req.Force {
			result.BlockedByGovernance = true
			result.Reasons = append(result.Reasons, "governance paused: pass force to execute")
			return result, nil
		}
		result.Reasons = append(result.Reasons, "governance paused: execution forced")
	}

	cands, limit, err := candidates(state, req, &result)
	if err != nil {
		return result, err
	}
	if result.BlockedByWindow {
		return result, nil
	}
	if req.MaxActions > 0 {
		limit = min(limit, req.MaxActions)
	}
	result.MaxActions = limit
	if len(cands) > limit {
		cands = cands[:limit]
	}

	persist := req.Persist && !req.DryRun && creator != nil
	result.Persisted = persist
	for _, c := range cands {
		item := ExecutedItem{
			RecommendationID: c.item.RecommendationID,
			Title:            c.item.Title,
			Priority:         c.item.Priority,
			Score:            c.item.Score,
			Status:           ItemPlanned,
		}
		if persist {
			run := &store.Run{
				StoryID:         state.StoryID,
				CreatedByUserID: req.UserID,
				SprintObjective: c.item.Execution.SprintObjective,
				HorizonDays:     c.item.Execution.HorizonDays,
				Status:          store.RunStatusPlanned,
				Plan:            store.NewRunPlan(c.plan),
				BaselineMetrics: state.Metrics,
			}
			if err := creator.CreateRun(ctx, run); err != nil {
				item.Status = ItemFailed
				item.Error = err.Error()
				result.Failed++
			} else {
				id := run.ID
				item.Status = ItemCreated
				item.RunID = &id
				result.Created++
			}
		}
		result.Items = append(result.Items, item)
	}
	if len(result.Items) == 0 {
		result.Reasons = append(result.Reasons, "no ready items")
	}
	return result, nil
}

func candidates(state DerivedState, req ExecuteRequest, result *ExecuteResult) ([]candidate, int, error) {
	policy := state.Policy
	var out []candidate
	switch req.Source {
	case store.PlanSourceWindowLoop:
		if state.Strategy == nil || state.Window == nil {
			return nil, 0, fmt.Errorf("window execution: %w", ErrStageDisabled)
		}
		if state.Window.Gate.Status != GateReady && !req.Force {
			result.BlockedByWindow = true
			result.Reasons = append(result.Reasons, state.Window.Gate.Reasons...)
			return nil, 0, nil
		}
		cycle := state.Strategy.Active()
		for _, it := range SelectReady(state.Backlog.Items, len(state.Backlog.Items)) {
			out = append(out, candidate{item: it, plan: store.WindowLoopPlan{
				ExecutedRecommendationID: it.RecommendationID,
				Cycle:                    cycle.Cycle,
				Objective:                string(cycle.Objective),
				WindowStart:              cycle.ScheduledWindowStart,
				WindowEnd:                cycle.ScheduledWindowEnd,
			}})
		}
		return out, min(cycle.MaxActionsPerCycle, policy.MaxActionsPerCycle), nil

	case store.PlanSourceSelfHealing:
		if state.SelfHealing == nil {
			return nil, 0, fmt.Errorf("recovery execution: %w", ErrStageDisabled)
		}
		sh := state.SelfHealing
		if sh.PolicyPatch == nil {
			result.Reasons = append(result.Reasons, "self-healing severity none: nothing to recover")
			return nil, 0, nil
		}
		plan := append([]RecoveryItem(nil), sh.RecoveryPlan...)
		sort.SliceStable(plan, func(i, j int) bool {
			if plan[i].ExpectedRoiLift != plan[j].ExpectedRoiLift {
				return plan[i].ExpectedRoiLift > plan[j].ExpectedRoiLift
			}
			return plan[i].RecommendationID < plan[j].RecommendationID
		})
		for _, it := range plan {
			if it.Status != BacklogReady {
				continue
			}
			out = append(out, candidate{item: it.BacklogItem, plan: store.SelfHealingPlan{
				ExecutedRecommendationID: it.RecommendationID,
				Severity:                 string(sh.Severity),
				RoiGapScore:              sh.RoiGapScore,
				ExpectedRoiLift:          it.ExpectedRoiLift,
			}})
		}
		return out, min(sh.PolicyPatch.MaxActionsPerCycle, policy.MaxActionsPerCycle), nil
	}

	for _, it := range SelectReady(state.Backlog.Items, len(state.Backlog.Items)) {
		out = append(out, candidate{item: it, plan: store.AutomationPlan{
			ExecutedRecommendationID: it.RecommendationID,
			Mode:                     string(policy.Mode),
			Score:                    it.Score,
			TriggerIDs:               append([]string(nil), it.TriggerIDs...),
			MaxActionsPerCycle:       policy.MaxActionsPerCycle,
			CooldownHours:            policy.CooldownHours,
		}})
	}
	return out, policy.MaxActionsPerCycle, nil
}
