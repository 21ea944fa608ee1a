package autonomy

import (
	"fmt"
	"sort"
	"time"
)

type HealingSeverity string

const (
	HealingNone     HealingSeverity = "none"
	HealingWatch    HealingSeverity = "watch"
	HealingCritical HealingSeverity = "critical"
)

const (
	roiTargetScore   = 70
	roiBlockedBonus  = 10
	roiWatchBound    = 25
	roiCriticalBound = 55
)

// PolicyPatch is a proposed policy that is never looser than the strategy policy.
type PolicyPatch struct {
	Objective          Objective `json:"objective"`
	CadenceHours       int       `json:"cadence_hours"`
	Mode               Mode      `json:"mode"`
	MaxActionsPerCycle int       `json:"max_actions_per_cycle"`
}

type RecoveryItem struct {
	BacklogItem
	ExpectedRoiLift float64 `json:"expected_roi_lift"`
}

type SelfHealingReport struct {
	Severity     HealingSeverity `json:"severity"`
	RoiGapScore  int             `json:"roi_gap_score"`
	PolicyPatch  *PolicyPatch    `json:"policy_patch"`
	Triggers     []string        `json:"triggers"`
	RecoveryPlan []RecoveryItem  `json:"recovery_plan"`
	Notes        []string        `json:"notes"`
}

func healingSeverity(roi int) HealingSeverity {
	switch {
	case roi < roiWatchBound:
		return HealingNone
	case roi < roiCriticalBound:
		return HealingWatch
	}
	return HealingCritical
}

// SelfHealingInput is the strategy state the monitor inspects. Governance,
// Strategy and Window are nil when their stages are disabled.
type SelfHealingInput struct {
	Policy     DecisionPolicy
	Plan       AutomationPlan
	Backlog    Backlog
	Governance *GovernanceReport
	Strategy   *StrategyLoop
	Window     *WindowReport
	Now        time.Time
}

// BuildSelfHealing measures uncaptured value and proposes a more conservative policy.
func BuildSelfHealing(in SelfHealingInput) SelfHealingReport {
	var notes []string

	deficit := 0.0
	if in.Governance != nil {
		deficit = float64(max(0, roiTargetScore-in.Governance.GovernanceScore)) / roiTargetScore
		notes = append(notes, fmt.Sprintf("governance score %d against target %d", in.Governance.GovernanceScore, roiTargetScore))
	}

	since := windowStart(in)
	gapItems := 0
	for _, it := range in.Backlog.Items {
		if it.Priority != PriorityHigh {
			continue
		}
		switch it.Status {
		case BacklogBlocked:
			gapItems++
		case BacklogReady:
			if it.LastExecutedAt == nil || (since != nil && it.LastExecutedAt.Before(*since)) {
				gapItems++
			}
		}
	}
	gap := float64(gapItems) / float64(max(1, in.Backlog.Summary.Total))
	if gapItems > 0 {
		notes = append(notes, fmt.Sprintf("%d high-priority item(s) not executed in the current window", gapItems))
	}

	roi := roundInt(100 * (0.6*deficit + 0.4*gap))
	if in.Window != nil && in.Window.Gate.Status == GateBlocked {
		roi += roiBlockedBonus
		notes = append(notes, "window gate blocked")
	}
	roi = clampInt(roi, 0, 100)

	report := SelfHealingReport{
		Severity:    healingSeverity(roi),
		RoiGapScore: roi,
		Triggers:    []string{},
	}
	if report.Severity == HealingNone {
		report.RecoveryPlan = []RecoveryItem{}
		report.Notes = append(notes, "ROI gap within tolerance")
		return report
	}

	report.PolicyPatch = patchFor(report.Severity, in)
	risk := map[string]bool{}
	for _, t := range firedTriggers(in.Plan.Triggers) {
		if t.Kind == KindRisk {
			risk[t.ID] = true
			report.Triggers = append(report.Triggers, t.ID)
		}
	}
	report.RecoveryPlan = recoveryPlan(in.Backlog, risk, roi)
	notes = append(notes, fmt.Sprintf("%s: %d recovery item(s) for %d risk trigger(s)", report.Severity, len(report.RecoveryPlan), len(report.Triggers)))
	report.Notes = notes
	return report
}

func windowStart(in SelfHealingInput) *time.Time {
	if in.Window != nil {
		t := in.Window.WindowStart
		return &t
	}
	if in.Strategy != nil && len(in.Strategy.Cycles) > 0 {
		t := in.Strategy.Active().ScheduledWindowStart.Add(-time.Duration(in.Strategy.CadenceHours) * time.Hour)
		return &t
	}
	return nil
}

func patchFor(sev HealingSeverity, in SelfHealingInput) *PolicyPatch {
	objective := ObjectiveBalanced
	cadence := DefaultCadenceHours
	mode := in.Policy.Mode
	actions := in.Policy.MaxActionsPerCycle
	if in.Strategy != nil {
		objective = in.Strategy.Objective
		cadence = in.Strategy.CadenceHours
		active := in.Strategy.Active()
		if active.Mode != "" {
			mode = active.Mode
			actions = active.MaxActionsPerCycle
		}
	}

	if sev == HealingCritical {
		p := &PolicyPatch{Objective: ObjectiveStabilize, CadenceHours: MinCadenceHours, Mode: mode, MaxActionsPerCycle: MinActions}
		if mode == ModeAuto {
			p.Mode = ModeAssist
		}
		return p
	}
	return &PolicyPatch{
		Objective:          stepObjective(objective, -1),
		CadenceHours:       max(cadence-cadenceStep, MinCadenceHours),
		Mode:               mode,
		MaxActionsPerCycle: max(actions-1, MinActions),
	}
}

func recoveryPlan(b Backlog, risk map[string]bool, roi int) []RecoveryItem {
	var picked []BacklogItem
	var total float64
	for _, it := range b.Items {
		if it.Status != BacklogReady {
			continue
		}
		for _, id := range it.TriggerIDs {
			if risk[id] {
				picked = append(picked, it)
				total += it.Score
				break
			}
		}
	}
	out := make([]RecoveryItem, 0, len(picked))
	for _, it := range picked {
		lift := 0.0
		if total > 0 {
			lift = round1(float64(roi) * it.Score / total)
		}
		out = append(out, RecoveryItem{BacklogItem: it, ExpectedRoiLift: lift})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ExpectedRoiLift != out[j].ExpectedRoiLift {
			return out[i].ExpectedRoiLift > out[j].ExpectedRoiLift
		}
		return out[i].RecommendationID < out[j].RecommendationID
	})
	return out
}
