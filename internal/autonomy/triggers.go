package autonomy

import (
	"fmt"
	"math"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

type TriggerKind string

const (
	KindRisk        TriggerKind = "risk"
	KindOpportunity TriggerKind = "opportunity"
)

type TriggerStatus string

const (
	TriggerFired TriggerStatus = "fired"
	TriggerIdle  TriggerStatus = "idle"
)

type Direction string

const (
	DirectionBelow Direction = "below"
	DirectionAbove Direction = "above"
)

type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) bonus() float64 {
	switch s {
	case SeverityHigh:
		return 10
	case SeverityMedium:
		return 5
	}
	return 0
}

// TriggerRule compares one metric against a threshold.
type TriggerRule struct {
	ID        string      `json:"id" yaml:"id"`
	Label     string      `json:"label" yaml:"label"`
	Kind      TriggerKind `json:"kind" yaml:"kind"`
	MetricKey string      `json:"metric_key" yaml:"metric_key"`
	Threshold float64     `json:"threshold" yaml:"threshold"`
	Direction Direction   `json:"direction" yaml:"direction"`
}

type Trigger struct {
	ID        string        `json:"id"`
	Label     string        `json:"label"`
	Kind      TriggerKind   `json:"kind"`
	Status    TriggerStatus `json:"status"`
	Severity  Severity      `json:"severity"`
	Reason    string        `json:"reason"`
	MetricKey string        `json:"metric_key"`
	Current   *float64      `json:"current"`
	Threshold float64       `json:"threshold"`
	Direction Direction     `json:"direction"`
}

func (t Trigger) Fired() bool { return t.Status == TriggerFired }

// DefaultTriggerRules is the built-in rule table.
func DefaultTriggerRules() []TriggerRule {
	return []TriggerRule{
		{ID: "foundation_gap", Label: "Foundation gap", Kind: KindRisk, MetricKey: "combinedScore", Threshold: 58, Direction: DirectionBelow},
		{ID: "retention_risk", Label: "Retention risk", Kind: KindRisk, MetricKey: "retentionPotential", Threshold: 50, Direction: DirectionBelow},
		{ID: "ip_gap", Label: "IP depth gap", Kind: KindRisk, MetricKey: "ipOverall", Threshold: 55, Direction: DirectionBelow},
		{ID: "role_coverage_gap", Label: "Role coverage gap", Kind: KindRisk, MetricKey: "roleCoverage", Threshold: 60, Direction: DirectionBelow},
		{ID: "merch_opportunity", Label: "Merch opportunity", Kind: KindOpportunity, MetricKey: "merchSignal", Threshold: 70, Direction: DirectionAbove},
		{ID: "breakout_momentum", Label: "Breakout momentum", Kind: KindOpportunity, MetricKey: "combinedScore", Threshold: 82, Direction: DirectionAbove},
	}
}

// ValidateRules rejects malformed rule tables. This is a configuration error,
// so it is checked once at construction rather than on every evaluation.
func ValidateRules(rules []TriggerRule) error {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.ID == "" || r.MetricKey == "" {
			return fmt.Errorf("%w: rule %d missing id or metric key", ErrInvalidRules, i)
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate rule id %q", ErrInvalidRules, r.ID)
		}
		seen[r.ID] = true
		if r.Direction != DirectionBelow && r.Direction != DirectionAbove {
			return fmt.Errorf("%w: rule %q direction %q", ErrInvalidRules, r.ID, r.Direction)
		}
		if r.Kind != KindRisk && r.Kind != KindOpportunity {
			return fmt.Errorf("%w: rule %q kind %q", ErrInvalidRules, r.ID, r.Kind)
		}
		if math.IsNaN(r.Threshold) || math.IsInf(r.Threshold, 0) {
			return fmt.Errorf("%w: rule %q threshold", ErrInvalidRules, r.ID)
		}
	}
	return nil
}

// EvaluateTriggers evaluates every rule against metrics. A rule whose metric is
// absent never fires.
func EvaluateTriggers(rules []TriggerRule, metrics store.Metrics) []Trigger {
	out := make([]Trigger, 0, len(rules))
	for _, r := range rules {
		t := Trigger{
			ID:        r.ID,
			Label:     r.Label,
			Kind:      r.Kind,
			Status:    TriggerIdle,
			Severity:  SeverityNone,
			MetricKey: r.MetricKey,
			Threshold: r.Threshold,
			Direction: r.Direction,
		}
		current, ok := metrics.Get(r.MetricKey)
		if !ok || math.IsNaN(current) {
			t.Reason = fmt.Sprintf("%s unavailable", r.MetricKey)
			out = append(out, t)
			continue
		}
		t.Current = &current

		fired := (r.Direction == DirectionBelow && current < r.Threshold) ||
			(r.Direction == DirectionAbove && current > r.Threshold)
		if fired {
			t.Status = TriggerFired
			t.Severity = gapSeverity(math.Abs(current - r.Threshold))
			t.Reason = fmt.Sprintf("%s %.1f is %s threshold %.1f", r.MetricKey, current, r.Direction, r.Threshold)
		} else {
			t.Reason = fmt.Sprintf("%s %.1f within threshold %.1f", r.MetricKey, current, r.Threshold)
		}
		out = append(out, t)
	}
	return out
}

func gapSeverity(gap float64) Severity {
	switch {
	case gap >= 15:
		return SeverityHigh
	case gap >= 5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func firedTriggers(triggers []Trigger) []Trigger {
	var out []Trigger
	for _, t := range triggers {
		if t.Fired() {
			out = append(out, t)
		}
	}
	return out
}

func triggerIndex(triggers []Trigger) map[string]Trigger {
	idx := make(map[string]Trigger, len(triggers))
	for _, t := range triggers {
		idx[t.ID] = t
	}
	return idx
}
