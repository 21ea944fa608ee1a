package store

import (
	"encoding/json"
	"fmt"
	"time"
)

type PlanSource string

const (
	PlanSourceManual      PlanSource = "manual"
	PlanSourceAutomation  PlanSource = "automation"
	PlanSourceWindowLoop  PlanSource = "window_loop"
	PlanSourceSelfHealing PlanSource = "self_healing"
)

// Plan is one variant of the provenance payload stored on a run.
type Plan interface {
	Source() PlanSource
	ExecutedRecommendation() string
}

type ManualPlan struct {
	ExecutedRecommendationID string   `json:"executed_recommendation_id,omitempty"`
	Notes                    string   `json:"notes,omitempty"`
	Checklist                []string `json:"checklist,omitempty"`
}

func (ManualPlan) Source() PlanSource                { return PlanSourceManual }
func (p ManualPlan) ExecutedRecommendation() string { return p.ExecutedRecommendationID }

type AutomationPlan struct {
	ExecutedRecommendationID string   `json:"executed_recommendation_id"`
	Mode                     string   `json:"mode"`
	Score                    float64  `json:"score"`
	TriggerIDs               []string `json:"trigger_ids,omitempty"`
	MaxActionsPerCycle       int      `json:"max_actions_per_cycle"`
	CooldownHours            int      `json:"cooldown_hours"`
}

func (AutomationPlan) Source() PlanSource                { return PlanSourceAutomation }
func (p AutomationPlan) ExecutedRecommendation() string { return p.ExecutedRecommendationID }

type WindowLoopPlan struct {
	ExecutedRecommendationID string    `json:"executed_recommendation_id"`
	Cycle                    int       `json:"cycle"`
	Objective                string    `json:"objective"`
	WindowStart              time.Time `json:"window_start"`
	WindowEnd                time.Time `json:"window_end"`
}

func (WindowLoopPlan) Source() PlanSource                { return PlanSourceWindowLoop }
func (p WindowLoopPlan) ExecutedRecommendation() string { return p.ExecutedRecommendationID }

type SelfHealingPlan struct {
	ExecutedRecommendationID string  `json:"executed_recommendation_id"`
	Severity                 string  `json:"severity"`
	RoiGapScore              int     `json:"roi_gap_score"`
	ExpectedRoiLift          float64 `json:"expected_roi_lift"`
}

func (SelfHealingPlan) Source() PlanSource                { return PlanSourceSelfHealing }
func (p SelfHealingPlan) ExecutedRecommendation() string { return p.ExecutedRecommendationID }

// RunPlan wraps a Plan variant and encodes it as {"source": ..., ...fields}.
type RunPlan struct {
	Plan
}

func NewRunPlan(p Plan) RunPlan { return RunPlan{Plan: p} }

func (rp RunPlan) MarshalJSON() ([]byte, error) {
	if rp.Plan == nil {
		return []byte("null"), nil
	}
	body, err := json.Marshal(rp.Plan)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	src, _ := json.Marshal(rp.Plan.Source())
	fields["source"] = src
	return json.Marshal(fields)
}

func (rp *RunPlan) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		rp.Plan = nil
		return nil
	}
	var head struct {
		Source PlanSource `json:"source"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("decode plan source: %w", err)
	}
	var p Plan
	var err error
	switch head.Source {
	case PlanSourceManual:
		var v ManualPlan
		err = json.Unmarshal(data, &v)
		p = v
	case PlanSourceAutomation:
		var v AutomationPlan
		err = json.Unmarshal(data, &v)
		p = v
	case PlanSourceWindowLoop:
		var v WindowLoopPlan
		err = json.Unmarshal(data, &v)
		p = v
	case PlanSourceSelfHealing:
		var v SelfHealingPlan
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return fmt.Errorf("unknown plan source %q", head.Source)
	}
	if err != nil {
		return fmt.Errorf("decode %s plan: %w", head.Source, err)
	}
	rp.Plan = p
	return nil
}
