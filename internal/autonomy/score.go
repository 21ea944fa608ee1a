package autonomy

// ScoreFactor captures one factor's contribution to a backlog item's score.
type ScoreFactor struct {
	Name      string  `json:"name"`
	Points    float64 `json:"points"`
	Available bool    `json:"available"`
	Reason    string  `json:"reason"`
}

const pointsPerTrigger = 15

// --- Factor calculators ---

// PriorityFactor maps the recommendation priority to base points.
func PriorityFactor(p Priority) ScoreFactor {
	switch p {
	case PriorityHigh:
		return ScoreFactor{Name: "priority", Points: 100, Available: true, Reason: "high priority"}
	case PriorityMedium:
		return ScoreFactor{Name: "priority", Points: 70, Available: true, Reason: "medium priority"}
	case PriorityLow:
		return ScoreFactor{Name: "priority", Points: 40, Available: true, Reason: "low priority"}
	}
	return ScoreFactor{Name: "priority", Points: 40, Available: false, Reason: "default"}
}

// TriggerCoverageFactor rewards recommendations backed by more fired triggers.
func TriggerCoverageFactor(triggerIDs []string) ScoreFactor {
	return ScoreFactor{
		Name:      "trigger_coverage",
		Points:    float64(pointsPerTrigger * len(triggerIDs)),
		Available: true,
		Reason:    "fired triggers",
	}
}

// SeverityFactor adds the bonus of the most severe backing trigger. Unknown
// trigger ids score neutral.
func SeverityFactor(triggerIDs []string, triggers map[string]Trigger) ScoreFactor {
	var best Severity = SeverityNone
	found := false
	for _, id := range triggerIDs {
		t, ok := triggers[id]
		if !ok {
			continue
		}
		found = true
		if t.Severity.bonus() > best.bonus() {
			best = t.Severity
		}
	}
	if !found {
		return ScoreFactor{Name: "severity", Points: 0, Available: false, Reason: "default"}
	}
	return ScoreFactor{Name: "severity", Points: best.bonus(), Available: true, Reason: "max severity " + string(best)}
}

// ObjectiveFitFactor boosts items whose triggers match the objective's focus.
func ObjectiveFitFactor(objective Objective, triggerIDs []string, triggers map[string]Trigger) ScoreFactor {
	profile := ProfileForObjective(objective)
	if profile.BoostKind == "" {
		return ScoreFactor{Name: "objective_fit", Points: 0, Available: true, Reason: string(objective) + " objective"}
	}
	for _, id := range triggerIDs {
		if t, ok := triggers[id]; ok && t.Kind == profile.BoostKind {
			return ScoreFactor{Name: "objective_fit", Points: profile.Boost, Available: true, Reason: "addresses " + string(t.Kind) + " for " + string(objective)}
		}
	}
	return ScoreFactor{Name: "objective_fit", Points: 0, Available: true, Reason: "no " + string(profile.BoostKind) + " trigger"}
}

func sumFactors(factors []ScoreFactor) float64 {
	var total float64
	for _, f := range factors {
		total += f.Points
	}
	return total
}
