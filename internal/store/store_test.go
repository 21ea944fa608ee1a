package store

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestMetricsGet(t *testing.T) {
	m := Metrics{"combinedScore": 0}
	if v, ok := m.Get("combinedScore"); !ok || v != 0 {
		t.Errorf("known zero reported as %v, %v", v, ok)
	}
	if _, ok := m.Get("merchSignal"); ok {
		t.Error("absent key reported as known")
	}
	var nilMetrics Metrics
	if _, ok := nilMetrics.Get("combinedScore"); ok {
		t.Error("nil metrics reported a value")
	}
}

func TestRunStatusOpen(t *testing.T) {
	for status, want := range map[RunStatus]bool{
		RunStatusPlanned:    true,
		RunStatusInProgress: true,
		RunStatusCompleted:  false,
	} {
		if got := status.Open(); got != want {
			t.Errorf("%s.Open() = %v, want %v", status, got, want)
		}
	}
}

func TestOutcomeDecision(t *testing.T) {
	for _, d := range []OutcomeDecision{OutcomeScale, OutcomeIterate, OutcomeHold, OutcomeArchive} {
		if !d.Valid() {
			t.Errorf("%s should be valid", d)
		}
	}
	if OutcomeDecision("ship").Valid() {
		t.Error("unknown decision accepted")
	}
	if !OutcomeScale.Positive() || !OutcomeIterate.Positive() || OutcomeHold.Positive() || OutcomeArchive.Positive() {
		t.Error("positive outcomes are scale and iterate only")
	}
}

func TestRunExecutedRecommendationID(t *testing.T) {
	var nilRun *Run
	if nilRun.ExecutedRecommendationID() != "" {
		t.Error("nil run should have no recommendation")
	}
	if (&Run{}).ExecutedRecommendationID() != "" {
		t.Error("run without plan should have no recommendation")
	}
	r := &Run{Plan: NewRunPlan(SelfHealingPlan{ExecutedRecommendationID: "stabilize-core-loop"})}
	if r.ExecutedRecommendationID() != "stabilize-core-loop" {
		t.Errorf("got %q", r.ExecutedRecommendationID())
	}
}

func TestRunPlanEncodesSource(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	plan := NewRunPlan(WindowLoopPlan{
		ExecutedRecommendationID: "deepen-ip-bible",
		Cycle:                    2,
		Objective:                "balanced",
		WindowStart:              start,
		WindowEnd:                start.Add(12 * time.Hour),
	})
	data, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"source":"window_loop"`) {
		t.Errorf("source tag missing: %s", data)
	}

	var decoded RunPlan
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	wl, ok := decoded.Plan.(WindowLoopPlan)
	if !ok {
		t.Fatalf("decoded %T, want WindowLoopPlan", decoded.Plan)
	}
	if wl.Cycle != 2 || !wl.WindowStart.Equal(start) {
		t.Errorf("decoded %+v", wl)
	}
}

func TestRunPlanRejectsUnknownSource(t *testing.T) {
	var rp RunPlan
	if err := json.Unmarshal([]byte(`{"source":"outcome_agent"}`), &rp); err == nil {
		t.Error("expected error for unknown source")
	}
	if err := json.Unmarshal([]byte(`null`), &rp); err != nil || rp.Plan != nil {
		t.Errorf("null plan: %v, %v", rp.Plan, err)
	}
}
