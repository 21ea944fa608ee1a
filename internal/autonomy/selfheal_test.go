package autonomy

import (
	"testing"
	"time"
)

func riskPlan() AutomationPlan {
	return AutomationPlan{Triggers: []Trigger{
		{ID: "foundation_gap", Kind: KindRisk, Status: TriggerFired},
		{ID: "ip_gap", Kind: KindRisk, Status: TriggerFired},
		{ID: "merch_opportunity", Kind: KindOpportunity, Status: TriggerFired},
	}}
}

func riskBacklog() Backlog {
	items := []BacklogItem{
		{RecommendationID: "stabilize-core-loop", Priority: PriorityMedium, Status: BacklogReady, Score: 120, TriggerIDs: []string{"foundation_gap"}},
		{RecommendationID: "deepen-ip-bible", Priority: PriorityMedium, Status: BacklogReady, Score: 90, TriggerIDs: []string{"ip_gap"}},
		{RecommendationID: "launch-merch-drop", Priority: PriorityMedium, Status: BacklogReady, Score: 95, TriggerIDs: []string{"merch_opportunity"}},
	}
	return Backlog{Items: items, Summary: summarize(items)}
}

func TestSelfHealingNone(t *testing.T) {
	r := BuildSelfHealing(SelfHealingInput{
		Policy:     assistPolicy(),
		Plan:       riskPlan(),
		Backlog:    riskBacklog(),
		Governance: healthyGov(),
		Now:        testNow,
	})
	if r.Severity != HealingNone || r.PolicyPatch != nil || len(r.RecoveryPlan) != 0 {
		t.Errorf("got %s with patch %v and %d recovery items", r.Severity, r.PolicyPatch, len(r.RecoveryPlan))
	}
}

func TestSelfHealingWatch(t *testing.T) {
	gov := &GovernanceReport{Status: GovernancePaused, GovernanceScore: 30, Constraints: ConstraintsFor(GovernancePaused)}
	loop := BuildStrategyLoop(assistPolicy(), ObjectiveBalanced, healthyGov(), nil, StrategyOptions{}, testNow)
	r := BuildSelfHealing(SelfHealingInput{
		Policy:     assistPolicy(),
		Plan:       riskPlan(),
		Backlog:    riskBacklog(),
		Governance: gov,
		Strategy:   &loop,
		Now:        testNow,
	})
	// 100 * 0.6 * 40/70
	if r.RoiGapScore != 34 || r.Severity != HealingWatch {
		t.Fatalf("got roi %d severity %s", r.RoiGapScore, r.Severity)
	}
	want := PolicyPatch{Objective: ObjectiveStabilize, CadenceHours: 6, Mode: ModeAssist, MaxActionsPerCycle: 1}
	if r.PolicyPatch == nil || *r.PolicyPatch != want {
		t.Errorf("patch = %+v, want %+v", r.PolicyPatch, want)
	}

	if len(r.RecoveryPlan) != 2 {
		t.Fatalf("recovery plan = %d items, want the 2 risk items", len(r.RecoveryPlan))
	}
	if r.RecoveryPlan[0].RecommendationID != "stabilize-core-loop" || r.RecoveryPlan[0].ExpectedRoiLift != 19.4 {
		t.Errorf("first recovery item = %s lift %v", r.RecoveryPlan[0].RecommendationID, r.RecoveryPlan[0].ExpectedRoiLift)
	}
	if r.RecoveryPlan[1].ExpectedRoiLift != 14.6 {
		t.Errorf("second lift = %v", r.RecoveryPlan[1].ExpectedRoiLift)
	}
}

func TestSelfHealingCritical(t *testing.T) {
	auto := BuildDecisionPolicy(ModeAuto, AutomationPlan{}, nil)
	loop := BuildStrategyLoop(auto, ObjectiveGrowth, healthyGov(), nil, StrategyOptions{CadenceHours: 24}, testNow)
	items := []BacklogItem{
		{RecommendationID: "stabilize-core-loop", Priority: PriorityHigh, Status: BacklogReady, Score: 125, TriggerIDs: []string{"foundation_gap"}},
		{RecommendationID: "retention-hook-sprint", Priority: PriorityHigh, Status: BacklogBlocked, Score: 125, TriggerIDs: []string{"retention_risk"}},
	}
	window := BuildWindowReport(loop, nil, pausedGov(), Backlog{}, testNow)
	r := BuildSelfHealing(SelfHealingInput{
		Policy:     auto,
		Plan:       riskPlan(),
		Backlog:    Backlog{Items: items, Summary: summarize(items)},
		Governance: &GovernanceReport{Status: GovernancePaused, GovernanceScore: 0},
		Strategy:   &loop,
		Window:     &window,
		Now:        testNow,
	})
	// 60 from deficit + 40 from backlog gap + 10 for the blocked gate, clamped
	if r.RoiGapScore != 100 || r.Severity != HealingCritical {
		t.Fatalf("got roi %d severity %s", r.RoiGapScore, r.Severity)
	}
	want := PolicyPatch{Objective: ObjectiveStabilize, CadenceHours: 6, Mode: ModeAssist, MaxActionsPerCycle: 1}
	if *r.PolicyPatch != want {
		t.Errorf("patch = %+v, want %+v", *r.PolicyPatch, want)
	}
	if len(r.RecoveryPlan) != 1 || r.RecoveryPlan[0].ExpectedRoiLift != 100 {
		t.Errorf("recovery plan = %+v", r.RecoveryPlan)
	}
}

func TestSelfHealingCountsExecutedHighItems(t *testing.T) {
	executed := testNow.Add(-time.Hour)
	items := []BacklogItem{
		{RecommendationID: "a", Priority: PriorityHigh, Status: BacklogReady, LastExecutedAt: &executed},
		{RecommendationID: "b", Priority: PriorityHigh, Status: BacklogReady},
	}
	loop := BuildStrategyLoop(assistPolicy(), ObjectiveBalanced, healthyGov(), nil, StrategyOptions{}, testNow)
	r := BuildSelfHealing(SelfHealingInput{
		Policy:     assistPolicy(),
		Backlog:    Backlog{Items: items, Summary: summarize(items)},
		Governance: healthyGov(),
		Strategy:   &loop,
		Now:        testNow,
	})
	// only "b" counts: 100 * 0.4 * 1/2
	if r.RoiGapScore != 20 {
		t.Errorf("roi = %d, want 20", r.RoiGapScore)
	}
}
