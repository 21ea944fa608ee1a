package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Metrics is a story metrics snapshot. An absent key means the value is unknown, not zero.
type Metrics map[string]float64

// Get returns the value for key and whether it is known.
func (m Metrics) Get(key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[key]
	return v, ok
}

type RunStatus string

const (
	RunStatusPlanned    RunStatus = "planned"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
)

// Open reports whether the run still awaits an outcome.
func (s RunStatus) Open() bool {
	return s == RunStatusPlanned || s == RunStatusInProgress
}

type OutcomeDecision string

const (
	OutcomeScale   OutcomeDecision = "scale"
	OutcomeIterate OutcomeDecision = "iterate"
	OutcomeHold    OutcomeDecision = "hold"
	OutcomeArchive OutcomeDecision = "archive"
)

// Valid reports whether d is one of the known outcome decisions.
func (d OutcomeDecision) Valid() bool {
	switch d {
	case OutcomeScale, OutcomeIterate, OutcomeHold, OutcomeArchive:
		return true
	}
	return false
}

// Positive reports whether the outcome counts as a positive signal for learning.
func (d OutcomeDecision) Positive() bool {
	return d == OutcomeScale || d == OutcomeIterate
}

const (
	ClosedByUser         = "user"
	ClosedByOutcomeAgent = "outcome_agent"
)

type Run struct {
	ID              uuid.UUID        `json:"id"`
	StoryID         string           `json:"story_id"`
	CreatedByUserID string           `json:"created_by_user_id"`
	SprintObjective string           `json:"sprint_objective"`
	HorizonDays     int              `json:"horizon_days"`
	Status          RunStatus        `json:"status"`
	Plan            RunPlan          `json:"plan"`
	BaselineMetrics Metrics          `json:"baseline_metrics,omitempty"`
	OutcomeMetrics  Metrics          `json:"outcome_metrics,omitempty"`
	OutcomeDecision *OutcomeDecision `json:"outcome_decision"`
	OutcomeNotes    string           `json:"outcome_notes,omitempty"`
	ClosedBy        string           `json:"closed_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ExecutedRecommendationID returns the recommendation this run executed, if any.
func (r *Run) ExecutedRecommendationID() string {
	if r == nil || r.Plan.Plan == nil {
		return ""
	}
	return r.Plan.ExecutedRecommendation()
}

// Completed reports whether the run has a recorded outcome decision.
func (r *Run) Completed() bool {
	return r.Status == RunStatusCompleted && r.OutcomeDecision != nil
}

type RunFilter struct {
	StoryID string
	Status  *RunStatus
	Limit   int
}

// OutcomeUpdate carries the only fields a run accepts after creation.
type OutcomeUpdate struct {
	Decision    OutcomeDecision `json:"outcome_decision"`
	Notes       string          `json:"outcome_notes,omitempty"`
	Metrics     Metrics         `json:"outcome_metrics,omitempty"`
	ClosedBy    string          `json:"closed_by,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

type RunStats struct {
	TotalPlanned    int     `json:"total_planned"`
	TotalInProgress int     `json:"total_in_progress"`
	TotalCompleted  int     `json:"total_completed"`
	PositiveRate    float64 `json:"positive_rate"`
	Stories         int     `json:"stories"`
}

// RunStore is the run history store. Runs are never deleted.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	// UpdateRunOutcome completes a run. Repeating the same update is idempotent.
	UpdateRunOutcome(ctx context.Context, id uuid.UUID, update OutcomeUpdate) (*Run, error)
	ListStoriesWithOpenRuns(ctx context.Context) ([]string, error)
	GetStats(ctx context.Context) (*RunStats, error)

	Close() error
}
