package autonomy

import (
	"fmt"
	"time"
)

// ObjectiveProfile is how an objective re-tunes the policy and the backlog.
type ObjectiveProfile struct {
	ActionDelta    int         `json:"action_delta"`
	CooldownFactor float64     `json:"cooldown_factor"`
	BoostKind      TriggerKind `json:"boost_kind,omitempty"`
	Boost          float64     `json:"boost"`
}

func ProfileForObjective(o Objective) ObjectiveProfile {
	switch o {
	case ObjectiveStabilize:
		return ObjectiveProfile{ActionDelta: -1, CooldownFactor: 1.5, BoostKind: KindRisk, Boost: 20}
	case ObjectiveGrowth:
		return ObjectiveProfile{ActionDelta: 1, CooldownFactor: 0.75, BoostKind: KindOpportunity, Boost: 20}
	}
	return ObjectiveProfile{ActionDelta: 0, CooldownFactor: 1}
}

type OptimizerReport struct {
	Preference           Objective        `json:"preference,omitempty"`
	HeuristicObjective   Objective        `json:"heuristic_objective"`
	RecommendedObjective Objective        `json:"recommended_objective"`
	Profile              ObjectiveProfile `json:"profile"`
	MaxActionsPerCycle   int              `json:"max_actions_per_cycle"`
	CooldownHours        int              `json:"cooldown_hours"`
	Preview              []string         `json:"preview"`
	Reasons              []string         `json:"reasons"`
}

// OptimizerInput carries the governed state the optimizer re-tunes. Learning and
// Governance are nil when their stages are disabled.
type OptimizerInput struct {
	Preference Objective
	Policy     DecisionPolicy
	Plan       AutomationPlan
	Backlog    Backlog
	Learning   *LearningReport
	Governance *GovernanceReport
	Now        time.Time
}

type OptimizerResult struct {
	Report  OptimizerReport
	Policy  DecisionPolicy
	Backlog Backlog
}

// HeuristicObjective picks an objective from governance health alone.
func HeuristicObjective(gov *GovernanceReport, learning *LearningReport) (Objective, string) {
	if gov == nil {
		return ObjectiveBalanced, "governance disabled"
	}
	if gov.Status == GovernancePaused || gov.GovernanceScore < 50 {
		return ObjectiveStabilize, fmt.Sprintf("governance %s with score %d", gov.Status, gov.GovernanceScore)
	}
	if gov.Status == GovernanceHealthy && learning != nil &&
		learning.CompletedRuns >= minLearningSample && learning.OverallPositiveRate >= 0.65 {
		return ObjectiveGrowth, fmt.Sprintf("healthy governance and positive rate %.2f", learning.OverallPositiveRate)
	}
	return ObjectiveBalanced, "no strong signal"
}

// limitBounds returns the action ceiling and cooldown floor for a mode under governance.
func limitBounds(mode Mode, gov *GovernanceReport) (int, int) {
	profile := ProfileFor(mode)
	ceiling := min(profile.MaxActionsCeiling, MaxActions)
	floor := profile.CooldownFloor
	if gov != nil {
		ceiling = min(ceiling, gov.Constraints.MaxActionsCap)
		floor = max(floor, gov.Constraints.CooldownFloorHours)
	}
	return ceiling, floor
}

// tuneLimits applies a profile to the current limits inside the mode and governance bounds.
func tuneLimits(mode Mode, actions, cooldown int, profile ObjectiveProfile, gov *GovernanceReport) (int, int) {
	ceiling, floor := limitBounds(mode, gov)
	actions = clampInt(actions+profile.ActionDelta, MinActions, max(ceiling, MinActions))
	cooldown = clampInt(roundInt(float64(cooldown)*profile.CooldownFactor), floor, max(maxCooldownHours, floor))
	return actions, cooldown
}

// Optimize selects an objective and re-tunes policy and backlog for it.
func Optimize(in OptimizerInput) OptimizerResult {
	heuristic, why := HeuristicObjective(in.Governance, in.Learning)
	chosen := heuristic
	reasons := []string{fmt.Sprintf("heuristic %s: %s", heuristic, why)}
	switch {
	case in.Governance.Paused():
		chosen = ObjectiveStabilize
		if in.Preference != "" && in.Preference != ObjectiveStabilize {
			reasons = append(reasons, fmt.Sprintf("preference %s ignored while governance is paused", in.Preference))
		}
	case in.Preference != "":
		chosen = in.Preference
		reasons = append(reasons, fmt.Sprintf("operator preference %s", in.Preference))
	}

	profile := ProfileForObjective(chosen)
	actions, cooldown := tuneLimits(in.Policy.Mode, in.Policy.MaxActionsPerCycle, in.Policy.CooldownHours, profile, in.Governance)
	policy := in.Policy.withLimits(actions, cooldown,
		fmt.Sprintf("optimizer %s: %d action(s), %dh cooldown", chosen, actions, cooldown))

	backlog := rescoreBacklog(in.Backlog, in.Plan, chosen, policy.CooldownHours, in.Now)

	var preview []string
	for _, it := range backlog.ReadyItems() {
		if len(preview) == policy.MaxActionsPerCycle {
			break
		}
		preview = append(preview, it.RecommendationID)
	}
	reasons = append(reasons, fmt.Sprintf("%d of %d ready item(s) would execute", len(preview), backlog.Summary.Ready))

	return OptimizerResult{
		Report: OptimizerReport{
			Preference:           in.Preference,
			HeuristicObjective:   heuristic,
			RecommendedObjective: chosen,
			Profile:              profile,
			MaxActionsPerCycle:   policy.MaxActionsPerCycle,
			CooldownHours:        policy.CooldownHours,
			Preview:              preview,
			Reasons:              reasons,
		},
		Policy:  policy,
		Backlog: backlog,
	}
}

// rescoreBacklog adds the objective fit factor and recomputes cooldown under the tuned policy.
func rescoreBacklog(b Backlog, plan AutomationPlan, objective Objective, cooldownHours int, now time.Time) Backlog {
	triggers := triggerIndex(plan.Triggers)
	out := cloneBacklog(b)
	for i := range out.Items {
		it := &out.Items[i]
		fit := ObjectiveFitFactor(objective, it.TriggerIDs, triggers)
		it.Factors = append(it.Factors, fit)
		it.Score = sumFactors(it.Factors)
		if it.Status != BacklogBlocked {
			applyCooldown(it, cooldownHours, now)
		}
	}
	sortBacklog(out.Items)
	out.Summary = summarize(out.Items)
	return out
}
