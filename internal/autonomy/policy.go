package autonomy

import (
	"fmt"
	"sort"
	"time"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

type DecisionPolicy struct {
	Mode               Mode                  `json:"mode"`
	RecommendedOutcome store.OutcomeDecision `json:"recommended_outcome"`
	Confidence         int                   `json:"confidence"`
	Rationale          []string              `json:"rationale"`
	Guardrails         []string              `json:"guardrails"`
	MaxActionsPerCycle int                   `json:"max_actions_per_cycle"`
	CooldownHours      int                   `json:"cooldown_hours"`
}

func (p DecisionPolicy) clone() DecisionPolicy {
	p.Rationale = append([]string(nil), p.Rationale...)
	p.Guardrails = append([]string(nil), p.Guardrails...)
	return p
}

// ModeProfile holds the base and bound values of a mode.
type ModeProfile struct {
	MaxActions        int
	CooldownHours     int
	CooldownFloor     int
	MaxActionsCeiling int
}

var modeProfiles = map[Mode]ModeProfile{
	ModeManual: {MaxActions: 1, CooldownHours: 72, CooldownFloor: 48, MaxActionsCeiling: 1},
	ModeAssist: {MaxActions: 2, CooldownHours: 24, CooldownFloor: 12, MaxActionsCeiling: 3},
	ModeAuto:   {MaxActions: 3, CooldownHours: 12, CooldownFloor: 6, MaxActionsCeiling: 5},
}

func ProfileFor(m Mode) ModeProfile {
	if p, ok := modeProfiles[m]; ok {
		return p
	}
	return modeProfiles[ModeManual]
}

const (
	baselineConfidence = 40
	outcomeWindow      = 10
)

// completedNewestFirst returns completed runs ordered by completion time, newest first.
func completedNewestFirst(history []*store.Run) []*store.Run {
	var out []*store.Run
	for _, r := range history {
		if r != nil && r.Completed() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return completionTime(out[i]).After(completionTime(out[j]))
	})
	return out
}

func completionTime(r *store.Run) time.Time {
	if r.CompletedAt != nil {
		return *r.CompletedAt
	}
	return r.CreatedAt
}

// BuildDecisionPolicy derives the mode-based policy and the recommended outcome from history.
func BuildDecisionPolicy(mode Mode, plan AutomationPlan, history []*store.Run) DecisionPolicy {
	profile := ProfileFor(mode)
	policy := DecisionPolicy{
		Mode:               mode,
		MaxActionsPerCycle: profile.MaxActions,
		CooldownHours:      profile.CooldownHours,
	}
	policy.Rationale = append(policy.Rationale,
		fmt.Sprintf("mode %s base: %d action(s) per cycle, %dh cooldown", mode, profile.MaxActions, profile.CooldownHours))

	completed := completedNewestFirst(history)
	if len(completed) > outcomeWindow {
		completed = completed[:outcomeWindow]
	}

	counts := map[store.OutcomeDecision]int{}
	for _, r := range completed {
		counts[*r.OutcomeDecision]++
	}

	outcome, why := recommendOutcome(completed, counts)
	policy.RecommendedOutcome = outcome

	n := len(completed)
	if n == 0 {
		policy.Confidence = baselineConfidence
		policy.Rationale = append(policy.Rationale, "no completed runs: baseline confidence")
	} else {
		share := float64(counts[outcome]) / float64(n)
		policy.Confidence = clampInt(baselineConfidence+6*clampInt(n, 0, 5)+roundInt(30*share), 0, 100)
		policy.Rationale = append(policy.Rationale, fmt.Sprintf(
			"%d completed run(s): scale=%d iterate=%d hold=%d archive=%d",
			n, counts[store.OutcomeScale], counts[store.OutcomeIterate], counts[store.OutcomeHold], counts[store.OutcomeArchive]))
	}
	policy.Rationale = append(policy.Rationale, fmt.Sprintf("recommended outcome %s (%s)", outcome, why))

	var risk, opportunity int
	for _, t := range plan.Triggers {
		if !t.Fired() {
			continue
		}
		if t.Kind == KindRisk {
			risk++
		} else {
			opportunity++
		}
	}
	policy.Rationale = append(policy.Rationale, fmt.Sprintf(
		"%d fired trigger(s): %d risk, %d opportunity; %d recommendation(s)", risk+opportunity, risk, opportunity, len(plan.Recommendations)))

	policy.Guardrails = guardrailsFor(policy)
	return policy
}

func guardrailsFor(p DecisionPolicy) []string {
	g := []string{
		"Blocked items are never executed automatically",
		fmt.Sprintf("Each recommendation waits %dh between executions", p.CooldownHours),
		fmt.Sprintf("At most %d action(s) per cycle", p.MaxActionsPerCycle),
	}
	if p.Mode == ModeManual {
		g = append(g, "Manual mode: execution requires an explicit operator request")
	}
	return g
}

// withLimits returns a copy of p with new limits, a rationale note and refreshed guardrails.
func (p DecisionPolicy) withLimits(maxActions, cooldownHours int, note string) DecisionPolicy {
	out := p.clone()
	out.MaxActionsPerCycle = maxActions
	out.CooldownHours = cooldownHours
	if note != "" {
		out.Rationale = append(out.Rationale, note)
	}
	out.Guardrails = guardrailsFor(out)
	return out
}

func recommendOutcome(completed []*store.Run, counts map[store.OutcomeDecision]int) (store.OutcomeDecision, string) {
	n := len(completed)
	if n == 0 {
		return store.OutcomeIterate, "no history"
	}
	for _, d := range []store.OutcomeDecision{store.OutcomeScale, store.OutcomeIterate, store.OutcomeHold, store.OutcomeArchive} {
		if counts[d]*2 > n {
			return d, "majority of recent outcomes"
		}
	}
	if n >= 3 {
		first := *completed[0].OutcomeDecision
		if *completed[1].OutcomeDecision == first && *completed[2].OutcomeDecision == first {
			return first, "three most recent outcomes agree"
		}
	}
	return store.OutcomeIterate, "mixed history"
}
