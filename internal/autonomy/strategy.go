package autonomy

import (
	"fmt"
	"time"
)

const (
	DefaultCadenceHours = 12
	DefaultCycles       = 3
)

type StrategyCycle struct {
	Cycle                int       `json:"cycle"`
	Objective            Objective `json:"objective"`
	Mode                 Mode      `json:"mode"`
	MaxActionsPerCycle   int       `json:"max_actions_per_cycle"`
	CooldownHours        int       `json:"cooldown_hours"`
	ScheduledWindowStart time.Time `json:"scheduled_window_start"`
	ScheduledWindowEnd   time.Time `json:"scheduled_window_end"`
	Rationale            string    `json:"rationale"`
}

// Contains reports whether t falls in [start, end).
func (c StrategyCycle) Contains(t time.Time) bool {
	return !t.Before(c.ScheduledWindowStart) && t.Before(c.ScheduledWindowEnd)
}

type StrategyOptions struct {
	CadenceHours int
	Cycles       int
	// Anchor is an earlier cycle start to keep windows aligned across evaluations.
	Anchor       *time.Time
	AutoOptimize bool
	Force        bool
}

// Validate rejects out-of-range options. Zero values take defaults.
func (o StrategyOptions) Validate() error {
	if o.CadenceHours != 0 {
		if err := CheckRange("cadence_hours", o.CadenceHours, MinCadenceHours, MaxCadenceHours); err != nil {
			return err
		}
	}
	if o.Cycles != 0 {
		if err := CheckRange("cycles", o.Cycles, MinCycles, MaxCycles); err != nil {
			return err
		}
	}
	return nil
}

func (o StrategyOptions) withDefaults() StrategyOptions {
	if o.CadenceHours == 0 {
		o.CadenceHours = DefaultCadenceHours
	}
	if o.Cycles == 0 {
		o.Cycles = DefaultCycles
	}
	o.CadenceHours = clampInt(o.CadenceHours, MinCadenceHours, MaxCadenceHours)
	o.Cycles = clampInt(o.Cycles, MinCycles, MaxCycles)
	return o
}

type StrategyLoop struct {
	CadenceHours int             `json:"cadence_hours"`
	AutoOptimize bool            `json:"auto_optimize"`
	Objective    Objective       `json:"objective"`
	Cycles       []StrategyCycle `json:"cycles"`
	Guardrails   []string        `json:"guardrails"`
	SafeWindow   bool            `json:"safe_window"`
	Forced       bool            `json:"forced"`
}

// Active returns cycle 1.
func (l StrategyLoop) Active() StrategyCycle {
	if len(l.Cycles) == 0 {
		return StrategyCycle{}
	}
	return l.Cycles[0]
}

// cycleAnchor returns the start of the cycle that contains now.
func cycleAnchor(anchor *time.Time, cadence time.Duration, now time.Time) time.Time {
	if anchor == nil {
		return now.UTC().Truncate(time.Hour)
	}
	a := anchor.UTC()
	if a.After(now) {
		return a
	}
	steps := now.Sub(a) / cadence
	return a.Add(steps * cadence)
}

// BuildStrategyLoop tiles timed cycles forward from now, each with its own policy snapshot.
func BuildStrategyLoop(policy DecisionPolicy, objective Objective, gov *GovernanceReport, learning *LearningReport, opts StrategyOptions, now time.Time) StrategyLoop {
	opts = opts.withDefaults()
	if objective == "" {
		objective = ObjectiveBalanced
	}
	cadence := time.Duration(opts.CadenceHours) * time.Hour
	start := cycleAnchor(opts.Anchor, cadence, now)
	paused := gov.Paused()

	mode := policy.Mode
	if paused {
		mode = ModeManual
	}

	step := 0
	if opts.AutoOptimize && !paused {
		step = projectedStep(gov, learning)
	}

	loop := StrategyLoop{
		CadenceHours: opts.CadenceHours,
		AutoOptimize: opts.AutoOptimize,
		Objective:    objective,
		Forced:       opts.Force,
	}

	cur := objective
	actions, cooldown := policy.MaxActionsPerCycle, policy.CooldownHours
	for i := 1; i <= opts.Cycles; i++ {
		rationale := fmt.Sprintf("cycle %d inherits %s policy", i, objective)
		if i > 1 && step != 0 {
			next := stepObjective(cur, step)
			if next != cur {
				actions, cooldown = tuneLimits(policy.Mode, actions, cooldown, shiftProfile(step), gov)
				rationale = fmt.Sprintf("cycle %d shifts %s to %s on projected trend", i, cur, next)
				cur = next
			} else {
				rationale = fmt.Sprintf("cycle %d holds %s at the end of the objective ladder", i, cur)
			}
		}
		if paused {
			rationale += "; governance paused, manual mode"
		}
		loop.Cycles = append(loop.Cycles, StrategyCycle{
			Cycle:                i,
			Objective:            cur,
			Mode:                 mode,
			MaxActionsPerCycle:   actions,
			CooldownHours:        cooldown,
			ScheduledWindowStart: start.Add(time.Duration(i-1) * cadence),
			ScheduledWindowEnd:   start.Add(time.Duration(i) * cadence),
			Rationale:            rationale,
		})
	}

	inWindow := loop.Cycles[0].Contains(now)
	loop.SafeWindow = !paused && (inWindow || opts.Force)

	loop.Guardrails = append([]string(nil), policy.Guardrails...)
	loop.Guardrails = append(loop.Guardrails, fmt.Sprintf("Cycles run every %dh", opts.CadenceHours))
	if paused {
		loop.Guardrails = append(loop.Guardrails, "Governance paused: no cycle executes without force")
	}
	if !inWindow {
		loop.Guardrails = append(loop.Guardrails, "Now is outside cycle 1: execution waits for the window or force")
	}
	if opts.Force && !paused {
		loop.Guardrails = append(loop.Guardrails, "Window check overridden by force")
	}
	return loop
}

// projectedStep is +1 when later cycles may grow, -1 when they should stabilize.
func projectedStep(gov *GovernanceReport, learning *LearningReport) int {
	if learning == nil {
		return 0
	}
	healthy := gov == nil || gov.Status == GovernanceHealthy
	switch {
	case learning.Trend == TrendDeclining || !healthy:
		return -1
	case learning.Trend == TrendImproving && healthy:
		return 1
	}
	return 0
}

// shiftProfile is the limit change of one objective step.
func shiftProfile(step int) ObjectiveProfile {
	if step > 0 {
		return ProfileForObjective(ObjectiveGrowth)
	}
	return ProfileForObjective(ObjectiveStabilize)
}
