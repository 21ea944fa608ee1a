package autonomy

import (
	"errors"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

func healthyGov() *GovernanceReport {
	return &GovernanceReport{Status: GovernanceHealthy, GovernanceScore: 90, Constraints: ConstraintsFor(GovernanceHealthy)}
}

func pausedGov() *GovernanceReport {
	return &GovernanceReport{Status: GovernancePaused, GovernanceScore: 20, Constraints: ConstraintsFor(GovernancePaused)}
}

func TestStrategyLoopTilesCycles(t *testing.T) {
	loop := BuildStrategyLoop(assistPolicy(), ObjectiveBalanced, healthyGov(), nil, StrategyOptions{}, testNow)

	if loop.CadenceHours != DefaultCadenceHours || len(loop.Cycles) != DefaultCycles {
		t.Fatalf("got cadence %d with %d cycles", loop.CadenceHours, len(loop.Cycles))
	}
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	for i, c := range loop.Cycles {
		if c.Cycle != i+1 {
			t.Errorf("cycle index %d = %d", i, c.Cycle)
		}
		wantStart := start.Add(time.Duration(i*12) * time.Hour)
		if !c.ScheduledWindowStart.Equal(wantStart) || !c.ScheduledWindowEnd.Equal(wantStart.Add(12*time.Hour)) {
			t.Errorf("cycle %d window %v-%v", c.Cycle, c.ScheduledWindowStart, c.ScheduledWindowEnd)
		}
		if i > 0 && !c.ScheduledWindowStart.Equal(loop.Cycles[i-1].ScheduledWindowEnd) {
			t.Errorf("cycle %d overlaps or leaves a gap", c.Cycle)
		}
	}
	if !loop.SafeWindow {
		t.Error("expected safe window when now is inside cycle 1")
	}
}

func TestStrategyLoopAnchor(t *testing.T) {
	anchor := testNow.Add(-30 * time.Hour)
	loop := BuildStrategyLoop(assistPolicy(), ObjectiveBalanced, healthyGov(), nil, StrategyOptions{Anchor: &anchor}, testNow)
	if want := anchor.Add(24 * time.Hour); !loop.Active().ScheduledWindowStart.Equal(want) {
		t.Errorf("cycle 1 start = %v, want %v", loop.Active().ScheduledWindowStart, want)
	}
	if !loop.Active().Contains(testNow) {
		t.Error("cycle 1 does not contain now")
	}

	future := testNow.Add(5 * time.Hour)
	loop = BuildStrategyLoop(assistPolicy(), ObjectiveBalanced, healthyGov(), nil, StrategyOptions{Anchor: &future}, testNow)
	if loop.SafeWindow {
		t.Error("safe window with now before cycle 1")
	}
	loop = BuildStrategyLoop(assistPolicy(), ObjectiveBalanced, healthyGov(), nil, StrategyOptions{Anchor: &future, Force: true}, testNow)
	if !loop.SafeWindow {
		t.Error("force should open the window")
	}
}

func TestStrategyLoopPaused(t *testing.T) {
	loop := BuildStrategyLoop(assistPolicy(), ObjectiveStabilize, pausedGov(), nil, StrategyOptions{Force: true}, testNow)
	if loop.SafeWindow {
		t.Error("safe window while governance is paused")
	}
	for _, c := range loop.Cycles {
		if c.Mode != ModeManual {
			t.Errorf("cycle %d mode = %s, want manual", c.Cycle, c.Mode)
		}
	}
}

func TestStrategyLoopAutoOptimize(t *testing.T) {
	improving := &LearningReport{Trend: TrendImproving}
	loop := BuildStrategyLoop(assistPolicy(), ObjectiveBalanced, healthyGov(), improving, StrategyOptions{AutoOptimize: true}, testNow)
	want := []Objective{ObjectiveBalanced, ObjectiveGrowth, ObjectiveGrowth}
	for i, c := range loop.Cycles {
		if c.Objective != want[i] {
			t.Errorf("improving cycle %d objective = %s, want %s", c.Cycle, c.Objective, want[i])
		}
	}
	if loop.Cycles[1].MaxActionsPerCycle <= loop.Cycles[0].MaxActionsPerCycle {
		t.Errorf("growth cycle did not raise actions: %d -> %d", loop.Cycles[0].MaxActionsPerCycle, loop.Cycles[1].MaxActionsPerCycle)
	}

	declining := &LearningReport{Trend: TrendDeclining}
	loop = BuildStrategyLoop(assistPolicy(), ObjectiveBalanced, healthyGov(), declining, StrategyOptions{AutoOptimize: true}, testNow)
	if loop.Cycles[1].Objective != ObjectiveStabilize {
		t.Errorf("declining cycle 2 objective = %s, want stabilize", loop.Cycles[1].Objective)
	}

	loop = BuildStrategyLoop(assistPolicy(), ObjectiveBalanced, healthyGov(), improving, StrategyOptions{}, testNow)
	for _, c := range loop.Cycles {
		if c.Objective != ObjectiveBalanced {
			t.Errorf("cycle %d shifted without auto-optimize", c.Cycle)
		}
	}
}

func TestStrategyOptionsValidate(t *testing.T) {
	if err := (StrategyOptions{CadenceHours: 5}).Validate(); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("cadence 5: got %v", err)
	}
	if err := (StrategyOptions{Cycles: 7}).Validate(); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("cycles 7: got %v", err)
	}
	if err := (StrategyOptions{CadenceHours: 24, Cycles: 6}).Validate(); err != nil {
		t.Errorf("valid options rejected: %v", err)
	}
}

func readyBacklog() Backlog {
	items := []BacklogItem{{RecommendationID: "stabilize-core-loop", Priority: PriorityHigh, Status: BacklogReady, Score: 120}}
	return Backlog{Items: items, Summary: summarize(items)}
}

func TestWindowGate(t *testing.T) {
	inWindow := testNow.Add(-time.Hour)
	tests := []struct {
		name    string
		gov     *GovernanceReport
		policy  DecisionPolicy
		history []*store.Run
		backlog Backlog
		want    GateStatus
	}{
		{"ready without history", healthyGov(), assistPolicy(), nil, readyBacklog(), GateReady},
		{"paused", pausedGov(), assistPolicy(), nil, readyBacklog(), GateBlocked},
		{"critically low", healthyGov(), assistPolicy(), []*store.Run{
			completedRun("x", store.OutcomeHold, inWindow),
			completedRun("y", store.OutcomeArchive, inWindow),
		}, readyBacklog(), GateBlocked},
		{"marginal", healthyGov(), assistPolicy(), []*store.Run{
			completedRun("x", store.OutcomeHold, inWindow),
			completedRun("y", store.OutcomeArchive, inWindow),
			completedRun("z", store.OutcomeScale, inWindow),
		}, readyBacklog(), GateHold},
		{"manual mode", healthyGov(), BuildDecisionPolicy(ModeManual, AutomationPlan{}, nil), nil, readyBacklog(), GateHold},
		{"nothing ready", healthyGov(), assistPolicy(), nil, Backlog{}, GateHold},
		{"poor overall history", healthyGov(), assistPolicy(), outcomes(store.OutcomeHold, store.OutcomeHold, store.OutcomeScale), readyBacklog(), GateHold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// outcomes() runs are at most 4h old; push them out of the window
			if tt.name == "poor overall history" {
				for _, r := range tt.history {
					r.CreatedAt = r.CreatedAt.Add(-72 * time.Hour)
				}
			}
			loop := BuildStrategyLoop(tt.policy, ObjectiveBalanced, tt.gov, nil, StrategyOptions{}, testNow)
			w := BuildWindowReport(loop, tt.history, tt.gov, tt.backlog, testNow)
			if w.Gate.Status != tt.want {
				t.Errorf("gate = %s (%v), want %s", w.Gate.Status, w.Gate.Reasons, tt.want)
			}
		})
	}
}

func TestWindowAdaptation(t *testing.T) {
	inWindow := testNow.Add(-time.Hour)
	loop := BuildStrategyLoop(assistPolicy(), ObjectiveBalanced, healthyGov(), nil, StrategyOptions{}, testNow)

	poor := []*store.Run{completedRun("x", store.OutcomeHold, inWindow), completedRun("y", store.OutcomeScale, inWindow), completedRun("z", store.OutcomeHold, inWindow)}
	a := BuildWindowReport(loop, poor, healthyGov(), readyBacklog(), testNow).Adaptation
	if a.NextCadenceHours != 6 || a.RecommendedObjective != ObjectiveStabilize {
		t.Errorf("poor adaptation = %+v", a)
	}

	strong := []*store.Run{completedRun("x", store.OutcomeScale, inWindow), completedRun("y", store.OutcomeIterate, inWindow)}
	a = BuildWindowReport(loop, strong, healthyGov(), readyBacklog(), testNow).Adaptation
	if a.NextCadenceHours != 18 || a.RecommendedObjective != ObjectiveGrowth {
		t.Errorf("strong adaptation = %+v", a)
	}

	a = BuildWindowReport(loop, nil, healthyGov(), readyBacklog(), testNow).Adaptation
	if a.NextCadenceHours != 12 || a.RecommendedObjective != ObjectiveBalanced {
		t.Errorf("neutral adaptation = %+v", a)
	}
}
