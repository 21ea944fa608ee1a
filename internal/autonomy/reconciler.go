package autonomy

import (
	"errors"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

// FeatureSet toggles whole pipeline stages. A disabled stage passes its input through.
type FeatureSet struct {
	Learning    bool `json:"learning" yaml:"learning"`
	Governance  bool `json:"governance" yaml:"governance"`
	Optimizer   bool `json:"optimizer" yaml:"optimizer"`
	Strategy    bool `json:"strategy" yaml:"strategy"`
	WindowGate  bool `json:"window_gate" yaml:"window_gate"`
	SelfHealing bool `json:"self_healing" yaml:"self_healing"`
}

func AllFeatures() FeatureSet {
	return FeatureSet{Learning: true, Governance: true, Optimizer: true, Strategy: true, WindowGate: true, SelfHealing: true}
}

// Input is everything one evaluation of a story depends on.
type Input struct {
	StoryID         string
	Metrics         store.Metrics
	Roster          Roster
	Sprint          SprintContext
	History         []*store.Run
	Mode            Mode
	Objective       Objective
	Strategy        StrategyOptions
	StaleAfterHours int
	Now             time.Time
}

// Validate runs before any derivation so invalid requests produce no partial state.
func (in Input) Validate() error {
	if in.StoryID == "" {
		return errors.New("story id is required")
	}
	if _, err := ParseMode(string(in.Mode)); err != nil {
		return err
	}
	if _, err := ParseObjective(string(in.Objective)); err != nil {
		return err
	}
	if in.Sprint.HorizonDays != 0 {
		if err := CheckRange("horizon_days", in.Sprint.HorizonDays, MinHorizonDays, MaxHorizonDays); err != nil {
			return err
		}
	}
	if in.StaleAfterHours != 0 {
		if err := CheckRange("stale_after_hours", in.StaleAfterHours, 1, maxStaleAfterHours); err != nil {
			return err
		}
	}
	return in.Strategy.Validate()
}

// DerivedState is the full output of one refresh. Disabled stages are nil.
type DerivedState struct {
	StoryID         string             `json:"story_id"`
	EvaluatedAt     time.Time          `json:"evaluated_at"`
	Features        FeatureSet         `json:"features"`
	Metrics         store.Metrics      `json:"metrics"`
	Triggers        []Trigger          `json:"triggers"`
	Recommendations []Recommendation   `json:"recommendations"`
	Plan            AutomationPlan     `json:"automation_plan"`
	BasePolicy      DecisionPolicy     `json:"base_policy"`
	Learning        *LearningReport    `json:"learning"`
	Governance      *GovernanceReport  `json:"governance"`
	Optimizer       *OptimizerReport   `json:"optimizer"`
	Strategy        *StrategyLoop      `json:"strategy"`
	Window          *WindowReport      `json:"window"`
	SelfHealing     *SelfHealingReport `json:"self_healing"`
	Policy          DecisionPolicy     `json:"policy"`
	Backlog         Backlog            `json:"backlog"`
}

type Reconciler struct {
	rules     []TriggerRule
	playbooks []Playbook
	features  FeatureSet
}

// NewReconciler validates the rule table once. Nil rules or playbooks use the defaults.
func NewReconciler(rules []TriggerRule, playbooks []Playbook, features FeatureSet) (*Reconciler, error) {
	if rules == nil {
		rules = DefaultTriggerRules()
	}
	if playbooks == nil {
		playbooks = DefaultPlaybooks()
	}
	if err := ValidateRules(rules); err != nil {
		return nil, fmt.Errorf("new reconciler: %w", err)
	}
	return &Reconciler{rules: rules, playbooks: playbooks, features: features}, nil
}

// HorizonFor returns the playbook horizon of a recommendation, or
// DefaultHorizonDays when the id matches no playbook.
func (r *Reconciler) HorizonFor(recommendationID string) int {
	for _, pb := range r.playbooks {
		if pb.ID == recommendationID && pb.HorizonDays > 0 {
			return clampInt(pb.HorizonDays, MinHorizonDays, MaxHorizonDays)
		}
	}
	return DefaultHorizonDays
}

func (r *Reconciler) Features() FeatureSet { return r.features }

// Refresh recomputes the whole pipeline from in. It must be called again after every
// persisted mutation; nothing is cached between calls.
func (r *Reconciler) Refresh(in Input) DerivedState {
	f := r.features
	now := in.Now.UTC()

	triggers := EvaluateTriggers(r.rules, in.Metrics)
	recs := BuildRecommendations(r.playbooks, triggers, in.Sprint)
	plan := BuildAutomationPlan(triggers, recs, in.Roster)
	base := BuildDecisionPolicy(in.Mode, plan, in.History)

	state := DerivedState{
		StoryID:         in.StoryID,
		EvaluatedAt:     now,
		Features:        f,
		Metrics:         in.Metrics,
		Triggers:        triggers,
		Recommendations: recs,
		Plan:            plan,
		BasePolicy:      base,
	}

	policy := base
	backlog := BuildBacklog(plan, policy, in.History, now)

	var learning *LearningReport
	var gov *GovernanceReport
	if f.Learning || f.Governance {
		lr := BuildLearning(policy, in.History, in.StaleAfterHours, now)
		if f.Learning {
			learning = &lr
			policy = ApplyLearning(policy, lr)
		}
		if f.Governance {
			g := BuildGovernance(lr, backlog)
			gov = &g
			policy = ApplyGovernance(policy, g)
		}
		backlog = BuildBacklog(plan, policy, in.History, now)
	}

	objective := in.Objective
	if f.Optimizer {
		res := Optimize(OptimizerInput{
			Preference: in.Objective,
			Policy:     policy,
			Plan:       plan,
			Backlog:    backlog,
			Learning:   learning,
			Governance: gov,
			Now:        now,
		})
		state.Optimizer = &res.Report
		policy, backlog = res.Policy, res.Backlog
		objective = res.Report.RecommendedObjective
	}
	if objective == "" {
		objective = ObjectiveBalanced
	}

	var strategy *StrategyLoop
	var window *WindowReport
	if f.Strategy {
		loop := BuildStrategyLoop(policy, objective, gov, learning, in.Strategy, now)
		strategy = &loop
		if f.WindowGate {
			w := BuildWindowReport(loop, in.History, gov, backlog, now)
			window = &w
		}
	}

	if f.SelfHealing {
		sh := BuildSelfHealing(SelfHealingInput{
			Policy:     policy,
			Plan:       plan,
			Backlog:    backlog,
			Governance: gov,
			Strategy:   strategy,
			Window:     window,
			Now:        now,
		})
		state.SelfHealing = &sh
	}

	state.Learning = learning
	state.Governance = gov
	state.Strategy = strategy
	state.Window = window
	state.Policy = policy
	state.Backlog = backlog
	return state
}
