package autonomy

import (
	"testing"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

func allFiringMetrics() store.Metrics {
	return store.Metrics{
		"combinedScore":      40,
		"retentionPotential": 30,
		"ipOverall":          50,
		"roleCoverage":       20,
		"merchSignal":        90,
	}
}

func TestBuildRecommendationsPlaybookOrder(t *testing.T) {
	triggers := EvaluateTriggers(DefaultTriggerRules(), allFiringMetrics())
	recs := BuildRecommendations(DefaultPlaybooks(), triggers, SprintContext{})

	want := []string{"stabilize-core-loop", "retention-hook-sprint", "deepen-ip-bible", "staff-role-coverage", "launch-merch-drop"}
	if len(recs) != len(want) {
		t.Fatalf("expected %d recommendations, got %d", len(want), len(recs))
	}
	for i, id := range want {
		if recs[i].ID != id {
			t.Errorf("recs[%d] = %s, want %s", i, recs[i].ID, id)
		}
	}
}

func TestBuildRecommendationsFoundationGap(t *testing.T) {
	triggers := EvaluateTriggers(DefaultTriggerRules(), store.Metrics{"combinedScore": 52})
	recs := BuildRecommendations(DefaultPlaybooks(), triggers, SprintContext{})
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	r := recs[0]
	if r.ID != "stabilize-core-loop" || r.OwnerRoleAgentID != "continuity" {
		t.Errorf("got %s owned by %s", r.ID, r.OwnerRoleAgentID)
	}
	if r.Execution.DefaultOutcomeDecision != store.OutcomeIterate {
		t.Errorf("default outcome = %s", r.Execution.DefaultOutcomeDecision)
	}
	if len(r.TriggerIDs) != 1 || r.TriggerIDs[0] != "foundation_gap" {
		t.Errorf("trigger ids = %v", r.TriggerIDs)
	}
}

func TestBuildRecommendationsSprintContext(t *testing.T) {
	triggers := EvaluateTriggers(DefaultTriggerRules(), allFiringMetrics())
	recs := BuildRecommendations(DefaultPlaybooks(), triggers, SprintContext{
		Objective:        "Season two",
		HorizonDays:      2,
		MerchCandidateID: "cand-7",
	})
	for _, r := range recs {
		if r.Execution.HorizonDays != MinHorizonDays {
			t.Errorf("%s horizon = %d, want clamp to %d", r.ID, r.Execution.HorizonDays, MinHorizonDays)
		}
		if r.ID == "launch-merch-drop" {
			if r.Execution.MerchCandidateID != "cand-7" {
				t.Errorf("merch candidate = %q", r.Execution.MerchCandidateID)
			}
		} else if r.Execution.MerchCandidateID != "" {
			t.Errorf("%s should not carry a merch candidate", r.ID)
		}
	}
	if recs[0].Execution.SprintObjective != "Season two: Stabilize the core story loop" {
		t.Errorf("sprint objective = %q", recs[0].Execution.SprintObjective)
	}
}

func TestBuildAutomationPlanOwnerMissing(t *testing.T) {
	triggers := EvaluateTriggers(DefaultTriggerRules(), allFiringMetrics())
	recs := BuildRecommendations(DefaultPlaybooks(), triggers, SprintContext{})
	plan := BuildAutomationPlan(triggers, recs, Roster{"continuity": "u-1"})

	for _, q := range plan.Queue {
		wantMissing := q.OwnerRoleAgentID != "continuity"
		if q.OwnerMissing != wantMissing {
			t.Errorf("%s owner missing = %v, want %v", q.RecommendationID, q.OwnerMissing, wantMissing)
		}
	}
}
