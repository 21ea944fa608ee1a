package autonomy

import (
	"errors"
	"math"
	"testing"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

func findTrigger(t *testing.T, triggers []Trigger, id string) Trigger {
	t.Helper()
	for _, tr := range triggers {
		if tr.ID == id {
			return tr
		}
	}
	t.Fatalf("trigger %s not found", id)
	return Trigger{}
}

func TestEvaluateTriggersFoundationGap(t *testing.T) {
	triggers := EvaluateTriggers(DefaultTriggerRules(), store.Metrics{"combinedScore": 52})

	fg := findTrigger(t, triggers, "foundation_gap")
	if !fg.Fired() {
		t.Fatalf("expected foundation_gap to fire, got %s", fg.Status)
	}
	if fg.Severity != SeverityMedium {
		t.Errorf("expected medium severity for gap 6, got %s", fg.Severity)
	}
	if fg.Current == nil || *fg.Current != 52 {
		t.Errorf("expected current 52, got %v", fg.Current)
	}

	bm := findTrigger(t, triggers, "breakout_momentum")
	if bm.Fired() {
		t.Error("breakout_momentum should not fire at 52")
	}
	if bm.Severity != SeverityNone {
		t.Errorf("idle trigger severity = %s, want none", bm.Severity)
	}
}

func TestEvaluateTriggersMissingMetricIsIdle(t *testing.T) {
	for _, metrics := range []store.Metrics{nil, {}, {"combinedScore": math.NaN()}, {"unrelated": 10}} {
		for _, tr := range EvaluateTriggers(DefaultTriggerRules(), metrics) {
			if tr.MetricKey == "unrelated" {
				continue
			}
			if tr.Fired() {
				t.Errorf("trigger %s fired on missing metric (metrics=%v)", tr.ID, metrics)
			}
			if tr.Current != nil {
				t.Errorf("trigger %s has current value for missing metric", tr.ID)
			}
		}
	}
}

func TestEvaluateTriggersStrictComparison(t *testing.T) {
	triggers := EvaluateTriggers(DefaultTriggerRules(), store.Metrics{"combinedScore": 58, "merchSignal": 70})
	if findTrigger(t, triggers, "foundation_gap").Fired() {
		t.Error("foundation_gap fired at exactly the threshold")
	}
	if findTrigger(t, triggers, "merch_opportunity").Fired() {
		t.Error("merch_opportunity fired at exactly the threshold")
	}
}

func TestGapSeverity(t *testing.T) {
	tests := []struct {
		gap  float64
		want Severity
	}{
		{0.5, SeverityLow},
		{4.99, SeverityLow},
		{5, SeverityMedium},
		{14.9, SeverityMedium},
		{15, SeverityHigh},
		{40, SeverityHigh},
	}
	for _, tt := range tests {
		if got := gapSeverity(tt.gap); got != tt.want {
			t.Errorf("gapSeverity(%v) = %s, want %s", tt.gap, got, tt.want)
		}
	}
}

func TestValidateRules(t *testing.T) {
	if err := ValidateRules(DefaultTriggerRules()); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}

	dup := append(DefaultTriggerRules(), DefaultTriggerRules()[0])
	if err := ValidateRules(dup); !errors.Is(err, ErrInvalidRules) {
		t.Errorf("expected ErrInvalidRules for duplicate id, got %v", err)
	}

	bad := []TriggerRule{{ID: "x", MetricKey: "m", Kind: KindRisk, Direction: "sideways"}}
	if err := ValidateRules(bad); !errors.Is(err, ErrInvalidRules) {
		t.Errorf("expected ErrInvalidRules for bad direction, got %v", err)
	}

	nan := []TriggerRule{{ID: "x", MetricKey: "m", Kind: KindRisk, Direction: DirectionBelow, Threshold: math.NaN()}}
	if err := ValidateRules(nan); !errors.Is(err, ErrInvalidRules) {
		t.Errorf("expected ErrInvalidRules for NaN threshold, got %v", err)
	}
}
