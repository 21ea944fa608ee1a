package autonomy

import (
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

type GateStatus string

const (
	GateReady   GateStatus = "ready"
	GateHold    GateStatus = "hold"
	GateBlocked GateStatus = "blocked"
)

const (
	windowMinSample    = 2
	windowCriticalRate = 0.30
	windowMarginalRate = 0.50
	windowStrongRate   = 0.75
	cadenceStep        = 6
)

type WindowGate struct {
	Status              GateStatus `json:"status"`
	WindowCompletedRuns int        `json:"window_completed_runs"`
	WindowPositiveRate  float64    `json:"window_positive_rate"`
	Reasons             []string   `json:"reasons"`
}

type WindowAdaptation struct {
	NextCadenceHours     int       `json:"next_cadence_hours"`
	RecommendedObjective Objective `json:"recommended_objective"`
	Reason               string    `json:"reason"`
}

type WindowReport struct {
	ActiveCycle int              `json:"active_cycle"`
	WindowStart time.Time        `json:"window_start"`
	WindowEnd   time.Time        `json:"window_end"`
	Gate        WindowGate       `json:"gate"`
	Adaptation  WindowAdaptation `json:"adaptation"`
}

// BuildWindowReport decides whether the active cycle may execute now.
func BuildWindowReport(loop StrategyLoop, history []*store.Run, gov *GovernanceReport, backlog Backlog, now time.Time) WindowReport {
	active := loop.Active()
	cadence := time.Duration(loop.CadenceHours) * time.Hour
	from := active.ScheduledWindowStart.Add(-cadence)
	to := active.ScheduledWindowEnd

	var inWindow []*store.Run
	for _, r := range completedNewestFirst(history) {
		if !r.CreatedAt.Before(from) && r.CreatedAt.Before(to) {
			inWindow = append(inWindow, r)
		}
	}
	rate := positiveRate(inWindow)
	gate := WindowGate{
		WindowCompletedRuns: len(inWindow),
		WindowPositiveRate:  round2(rate),
	}

	var blocked, hold []string
	if gov.Paused() {
		blocked = append(blocked, "governance paused")
	}
	if len(inWindow) >= windowMinSample && rate < windowCriticalRate {
		blocked = append(blocked, fmt.Sprintf("window positive rate %.2f below %.2f", rate, windowCriticalRate))
	}
	if !active.Contains(now) {
		hold = append(hold, "now is outside the active cycle window")
	}
	if active.Mode == ModeManual {
		hold = append(hold, "manual mode requires an operator")
	}
	if backlog.Summary.Ready == 0 {
		hold = append(hold, "no ready backlog items")
	}
	if len(inWindow) >= windowMinSample && rate >= windowCriticalRate && rate < windowMarginalRate {
		hold = append(hold, fmt.Sprintf("window positive rate %.2f is marginal", rate))
	}
	if len(inWindow) < windowMinSample {
		completed := completedNewestFirst(history)
		if len(completed) >= minLearningSample && positiveRate(completed) < windowMarginalRate {
			hold = append(hold, fmt.Sprintf("%d completed run(s) in window and overall positive rate %.2f", len(inWindow), positiveRate(completed)))
		}
	}

	switch {
	case len(blocked) > 0:
		gate.Status = GateBlocked
		gate.Reasons = blocked
	case len(hold) > 0:
		gate.Status = GateHold
		gate.Reasons = hold
	default:
		gate.Status = GateReady
		gate.Reasons = []string{"window open and results acceptable"}
	}

	return WindowReport{
		ActiveCycle: active.Cycle,
		WindowStart: from,
		WindowEnd:   to,
		Gate:        gate,
		Adaptation:  adaptWindow(loop, len(inWindow), rate),
	}
}

func adaptWindow(loop StrategyLoop, completed int, rate float64) WindowAdaptation {
	switch {
	case completed >= windowMinSample && rate < windowMarginalRate:
		return WindowAdaptation{
			NextCadenceHours:     max(loop.CadenceHours-cadenceStep, MinCadenceHours),
			RecommendedObjective: ObjectiveStabilize,
			Reason:               fmt.Sprintf("poor window results (%.2f): shorter cadence, stabilize", rate),
		}
	case completed >= windowMinSample && rate >= windowStrongRate:
		return WindowAdaptation{
			NextCadenceHours:     min(loop.CadenceHours+cadenceStep, MaxCadenceHours),
			RecommendedObjective: ObjectiveGrowth,
			Reason:               fmt.Sprintf("strong window results (%.2f): longer cadence, growth", rate),
		}
	}
	return WindowAdaptation{
		NextCadenceHours:     loop.CadenceHours,
		RecommendedObjective: loop.Objective,
		Reason:               "window results inconclusive: keep cadence",
	}
}
