// Package autonomy implements the story decision loop: triggers, recommendations,
// decision policy, backlog, learning, governance, optimization, strategy windows,
// self-healing, outcome closing and execution. Every derivation is a pure function
// of its inputs and the evaluation time.
package autonomy

import (
	"errors"
	"fmt"
	"math"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

type Mode string

const (
	ModeManual Mode = "manual"
	ModeAssist Mode = "assist"
	ModeAuto   Mode = "auto"
)

type Objective string

const (
	ObjectiveStabilize Objective = "stabilize"
	ObjectiveBalanced  Objective = "balanced"
	ObjectiveGrowth    Objective = "growth"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

var (
	ErrInvalidMode      = errors.New("invalid mode")
	ErrInvalidObjective = errors.New("invalid objective")
	ErrInvalidOutcome   = errors.New("invalid outcome decision")
	ErrOutOfRange       = errors.New("value out of range")
	ErrInvalidRules     = errors.New("invalid trigger rules")
)

// Parameter bounds shared by the API and the pipeline.
const (
	MinCadenceHours = 6
	MaxCadenceHours = 24
	MinActions      = 1
	MaxActions      = 5
	MinHorizonDays  = 3
	MaxHorizonDays  = 30
	MinCycles       = 1
	MaxCycles       = 6
)

// DefaultHorizonDays applies to runs that name no known playbook.
const DefaultHorizonDays = 7

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeManual, ModeAssist, ModeAuto:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// ParseObjective accepts an empty string as "no preference".
func ParseObjective(s string) (Objective, error) {
	switch o := Objective(s); o {
	case "", ObjectiveStabilize, ObjectiveBalanced, ObjectiveGrowth:
		return o, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidObjective, s)
}

func ParseOutcome(s string) (store.OutcomeDecision, error) {
	d := store.OutcomeDecision(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
	}
	return d, nil
}

// CheckRange returns ErrOutOfRange when v is outside [lo, hi].
func CheckRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s=%d not in [%d,%d]", ErrOutOfRange, name, v, lo, hi)
	}
	return nil
}

// objective ladder, most conservative first
var objectiveLadder = []Objective{ObjectiveStabilize, ObjectiveBalanced, ObjectiveGrowth}

func objectiveRank(o Objective) int {
	for i, v := range objectiveLadder {
		if v == o {
			return i
		}
	}
	return 1
}

func stepObjective(o Objective, delta int) Objective {
	i := clampInt(objectiveRank(o)+delta, 0, len(objectiveLadder)-1)
	return objectiveLadder[i]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
