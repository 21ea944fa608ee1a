package autonomy

import (
	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

type Execution struct {
	SprintObjective        string                `json:"sprint_objective"`
	HorizonDays            int                   `json:"horizon_days"`
	RequireMerchPlan       bool                  `json:"require_merch_plan"`
	MerchCandidateID       string                `json:"merch_candidate_id,omitempty"`
	MerchChannels          []string              `json:"merch_channels,omitempty"`
	DefaultOutcomeDecision store.OutcomeDecision `json:"default_outcome_decision"`
}

type Recommendation struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Priority         Priority  `json:"priority"`
	OwnerRoleAgentID string    `json:"owner_role_agent_id"`
	TriggerIDs       []string  `json:"trigger_ids"`
	Summary          string    `json:"summary"`
	Rationale        string    `json:"rationale"`
	Checklist        []string  `json:"checklist"`
	Execution        Execution `json:"execution"`
}

// Playbook maps trigger ids to one recommendation.
type Playbook struct {
	ID               string
	TriggerIDs       []string
	Title            string
	Priority         Priority
	OwnerRoleAgentID string
	Summary          string
	Rationale        string
	Checklist        []string
	SprintObjective  string
	HorizonDays      int
	RequireMerchPlan bool
	MerchChannels    []string
	DefaultOutcome   store.OutcomeDecision
}

// SprintContext is the story's current sprint and sub-resources.
type SprintContext struct {
	Objective        string `json:"objective,omitempty"`
	HorizonDays      int    `json:"horizon_days,omitempty"`
	MerchCandidateID string `json:"merch_candidate_id,omitempty"`
}

func DefaultPlaybooks() []Playbook {
	return []Playbook{
		{
			ID:               "stabilize-core-loop",
			TriggerIDs:       []string{"foundation_gap"},
			Title:            "Stabilize core loop",
			Priority:         PriorityHigh,
			OwnerRoleAgentID: "continuity",
			Summary:          "Tighten the core story loop before adding new arcs.",
			Rationale:        "Combined score is below the foundation threshold; new work compounds the gap.",
			Checklist:        []string{"Audit last three chapters for continuity breaks", "Re-state protagonist goal on page one", "Cut or merge dangling subplots"},
			SprintObjective:  "Stabilize the core story loop",
			HorizonDays:      7,
			DefaultOutcome:   store.OutcomeIterate,
		},
		{
			ID:               "retention-hook-sprint",
			TriggerIDs:       []string{"retention_risk"},
			Title:            "Retention hook sprint",
			Priority:         PriorityHigh,
			OwnerRoleAgentID: "editor",
			Summary:          "Add end-of-chapter hooks and a reader return path.",
			Rationale:        "Retention potential is below target; readers are not pulled into the next issue.",
			Checklist:        []string{"Add a cliffhanger beat to each open chapter", "Schedule the next release date on the last page"},
			SprintObjective:  "Lift chapter-to-chapter retention",
			HorizonDays:      5,
			DefaultOutcome:   store.OutcomeIterate,
		},
		{
			ID:               "deepen-ip-bible",
			TriggerIDs:       []string{"ip_gap"},
			Title:            "Deepen IP bible",
			Priority:         PriorityMedium,
			OwnerRoleAgentID: "worldbuilder",
			Summary:          "Expand world rules, factions and signature visuals.",
			Rationale:        "IP depth is below the licensing threshold.",
			Checklist:        []string{"Document three world rules", "Define faction visual language", "Draft a character relationship map"},
			SprintObjective:  "Deepen the IP bible",
			HorizonDays:      14,
			DefaultOutcome:   store.OutcomeIterate,
		},
		{
			ID:               "staff-role-coverage",
			TriggerIDs:       []string{"role_coverage_gap"},
			Title:            "Staff missing roles",
			Priority:         PriorityMedium,
			OwnerRoleAgentID: "producer",
			Summary:          "Assign collaborators to uncovered production roles.",
			Rationale:        "Role coverage is low; recommendations cannot reach an owner.",
			Checklist:        []string{"List roles without an owner", "Invite or assign a collaborator per role"},
			SprintObjective:  "Cover every production role",
			HorizonDays:      7,
			DefaultOutcome:   store.OutcomeHold,
		},
		{
			ID:               "launch-merch-drop",
			TriggerIDs:       []string{"merch_opportunity"},
			Title:            "Launch merch drop",
			Priority:         PriorityMedium,
			OwnerRoleAgentID: "merch",
			Summary:          "Turn the strongest merch signal into a limited drop.",
			Rationale:        "Merch signal is above the launch threshold.",
			Checklist:        []string{"Confirm merch candidate artwork", "Price the drop", "Publish the storefront listing"},
			SprintObjective:  "Launch a limited merch drop",
			HorizonDays:      21,
			RequireMerchPlan: true,
			MerchChannels:    []string{"print_on_demand", "storefront"},
			DefaultOutcome:   store.OutcomeScale,
		},
		{
			ID:               "scale-distribution",
			TriggerIDs:       []string{"breakout_momentum"},
			Title:            "Scale distribution",
			Priority:         PriorityMedium,
			OwnerRoleAgentID: "growth",
			Summary:          "Push the story to new channels while momentum is high.",
			Rationale:        "Combined score is above the breakout threshold.",
			Checklist:        []string{"Syndicate the first chapter", "Run a cross-promotion with a partner title"},
			SprintObjective:  "Scale distribution on breakout momentum",
			HorizonDays:      14,
			DefaultOutcome:   store.OutcomeScale,
		},
	}
}

// BuildRecommendations returns one recommendation per playbook with at least one
// fired trigger, in playbook order.
func BuildRecommendations(playbooks []Playbook, triggers []Trigger, sprint SprintContext) []Recommendation {
	fired := make(map[string]bool)
	for _, t := range triggers {
		if t.Fired() {
			fired[t.ID] = true
		}
	}

	var out []Recommendation
	for _, pb := range playbooks {
		var ids []string
		for _, id := range pb.TriggerIDs {
			if fired[id] {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}

		horizon := pb.HorizonDays
		if sprint.HorizonDays > 0 {
			horizon = sprint.HorizonDays
		}
		objective := pb.SprintObjective
		if sprint.Objective != "" {
			objective = sprint.Objective + ": " + pb.SprintObjective
		}

		rec := Recommendation{
			ID:               pb.ID,
			Title:            pb.Title,
			Priority:         pb.Priority,
			OwnerRoleAgentID: pb.OwnerRoleAgentID,
			TriggerIDs:       ids,
			Summary:          pb.Summary,
			Rationale:        pb.Rationale,
			Checklist:        append([]string(nil), pb.Checklist...),
			Execution: Execution{
				SprintObjective:        objective,
				HorizonDays:            clampInt(horizon, MinHorizonDays, MaxHorizonDays),
				RequireMerchPlan:       pb.RequireMerchPlan,
				MerchChannels:          append([]string(nil), pb.MerchChannels...),
				DefaultOutcomeDecision: pb.DefaultOutcome,
			},
		}
		if pb.RequireMerchPlan {
			rec.Execution.MerchCandidateID = sprint.MerchCandidateID
		}
		out = append(out, rec)
	}
	return out
}

// Roster maps role agents to the user who owns them.
type Roster map[string]string

type QueueEntry struct {
	RecommendationID string `json:"recommendation_id"`
	OwnerRoleAgentID string `json:"owner_role_agent_id"`
	OwnerUserID      string `json:"owner_user_id,omitempty"`
	OwnerMissing     bool   `json:"owner_missing"`
}

// AutomationPlan is the recommendation set plus queue ownership.
type AutomationPlan struct {
	Triggers        []Trigger        `json:"triggers"`
	Recommendations []Recommendation `json:"recommendations"`
	Queue           []QueueEntry     `json:"queue"`
}

func BuildAutomationPlan(triggers []Trigger, recs []Recommendation, roster Roster) AutomationPlan {
	queue := make([]QueueEntry, 0, len(recs))
	for _, r := range recs {
		owner := roster[r.OwnerRoleAgentID]
		queue = append(queue, QueueEntry{
			RecommendationID: r.ID,
			OwnerRoleAgentID: r.OwnerRoleAgentID,
			OwnerUserID:      owner,
			OwnerMissing:     owner == "",
		})
	}
	return AutomationPlan{Triggers: triggers, Recommendations: recs, Queue: queue}
}

func (p AutomationPlan) queueEntry(recID string) (QueueEntry, bool) {
	for _, q := range p.Queue {
		if q.RecommendationID == recID {
			return q, true
		}
	}
	return QueueEntry{}, false
}
