package hermes

import "time"

type RunCreatedEvent struct {
	RunID            string `json:"run_id"`
	StoryID          string `json:"story_id"`
	Source           string `json:"source"`
	RecommendationID string `json:"recommendation_id,omitempty"`
	CreatedBy        string `json:"created_by,omitempty"`
}

type RunClosedEvent struct {
	RunID           string `json:"run_id"`
	StoryID         string `json:"story_id"`
	OutcomeDecision string `json:"outcome_decision"`
	ClosedBy        string `json:"closed_by"`
}

type GovernancePausedEvent struct {
	StoryID         string   `json:"story_id"`
	GovernanceScore int      `json:"governance_score"`
	StaleOpenRuns   int      `json:"stale_open_runs"`
	Reasons         []string `json:"reasons,omitempty"`
}

type SelfHealingCriticalEvent struct {
	StoryID     string `json:"story_id"`
	RoiGapScore int    `json:"roi_gap_score"`
	Objective   string `json:"objective"`
	Mode        string `json:"mode"`
}

type ExecutionBlockedEvent struct {
	StoryID   string   `json:"story_id"`
	RequestID string   `json:"request_id"`
	Source    string   `json:"source"`
	Reasons   []string `json:"reasons,omitempty"`
}

// MetricsUpdatedEvent asks the loop to re-evaluate a story.
type MetricsUpdatedEvent struct {
	StoryID string `json:"story_id"`
}

type StatsEvent struct {
	Planned      int       `json:"planned"`
	InProgress   int       `json:"in_progress"`
	Completed    int       `json:"completed"`
	PositiveRate float64   `json:"positive_rate"`
	Timestamp    time.Time `json:"timestamp"`
}
