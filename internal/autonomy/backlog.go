package autonomy

import (
	"fmt"
	"sort"
	"time"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

type BacklogStatus string

const (
	BacklogReady    BacklogStatus = "ready"
	BacklogBlocked  BacklogStatus = "blocked"
	BacklogCooldown BacklogStatus = "cooldown"
)

type BacklogItem struct {
	ID               string        `json:"id"`
	RecommendationID string        `json:"recommendation_id"`
	Title            string        `json:"title"`
	Priority         Priority      `json:"priority"`
	OwnerRoleAgentID string        `json:"owner_role_agent_id"`
	OwnerUserID      *string       `json:"owner_user_id"`
	Status           BacklogStatus `json:"status"`
	Score            float64       `json:"score"`
	Factors          []ScoreFactor `json:"factors,omitempty"`
	Reason           string        `json:"reason"`
	Execution        Execution     `json:"execution"`
	TriggerIDs       []string      `json:"trigger_ids"`
	LastExecutedAt   *time.Time    `json:"last_executed_at"`
	CooldownUntil    *time.Time    `json:"cooldown_until"`
}

type BacklogSummary struct {
	Total    int `json:"total"`
	Ready    int `json:"ready"`
	Blocked  int `json:"blocked"`
	Cooldown int `json:"cooldown"`
}

type Backlog struct {
	Items   []BacklogItem  `json:"items"`
	Summary BacklogSummary `json:"summary"`
}

// ReadyItems returns ready items in backlog order.
func (b Backlog) ReadyItems() []BacklogItem {
	var out []BacklogItem
	for _, it := range b.Items {
		if it.Status == BacklogReady {
			out = append(out, it)
		}
	}
	return out
}

// lastExecutions returns, per recommendation id, the creation time of the newest run that executed it.
func lastExecutions(history []*store.Run) map[string]time.Time {
	last := make(map[string]time.Time)
	for _, r := range history {
		if r == nil {
			continue
		}
		id := r.ExecutedRecommendationID()
		if id == "" {
			continue
		}
		if t, ok := last[id]; !ok || r.CreatedAt.After(t) {
			last[id] = r.CreatedAt
		}
	}
	return last
}

// BuildBacklog statuses and scores every recommendation of the plan against the policy and history.
func BuildBacklog(plan AutomationPlan, policy DecisionPolicy, history []*store.Run, now time.Time) Backlog {
	triggers := triggerIndex(plan.Triggers)
	last := lastExecutions(history)

	items := make([]BacklogItem, 0, len(plan.Recommendations))
	for _, rec := range plan.Recommendations {
		factors := []ScoreFactor{
			PriorityFactor(rec.Priority),
			TriggerCoverageFactor(rec.TriggerIDs),
			SeverityFactor(rec.TriggerIDs, triggers),
		}
		item := BacklogItem{
			ID:               "backlog:" + rec.ID,
			RecommendationID: rec.ID,
			Title:            rec.Title,
			Priority:         rec.Priority,
			OwnerRoleAgentID: rec.OwnerRoleAgentID,
			Score:            sumFactors(factors),
			Factors:          factors,
			Execution:        rec.Execution,
			TriggerIDs:       append([]string(nil), rec.TriggerIDs...),
		}
		if t, ok := last[rec.ID]; ok {
			t := t
			item.LastExecutedAt = &t
		}

		q, ok := plan.queueEntry(rec.ID)
		if ok && q.OwnerUserID != "" {
			owner := q.OwnerUserID
			item.OwnerUserID = &owner
		}

		switch {
		case !ok || q.OwnerMissing:
			item.Status = BacklogBlocked
			item.Reason = fmt.Sprintf("no owner assigned to role %s", rec.OwnerRoleAgentID)
		case rec.Execution.RequireMerchPlan && rec.Execution.MerchCandidateID == "":
			item.Status = BacklogBlocked
			item.Reason = "merch plan required but no merch candidate is selected"
		default:
			applyCooldown(&item, policy.CooldownHours, now)
		}
		items = append(items, item)
	}

	sortBacklog(items)
	return Backlog{Items: items, Summary: summarize(items)}
}

// applyCooldown sets ready or cooldown on a non-blocked item.
func applyCooldown(item *BacklogItem, cooldownHours int, now time.Time) {
	item.CooldownUntil = nil
	if item.LastExecutedAt != nil {
		until := item.LastExecutedAt.Add(time.Duration(cooldownHours) * time.Hour)
		if now.Before(until) {
			item.Status = BacklogCooldown
			item.CooldownUntil = &until
			item.Reason = fmt.Sprintf("executed %s, cooling down for %dh", item.LastExecutedAt.UTC().Format(time.RFC3339), cooldownHours)
			return
		}
	}
	item.Status = BacklogReady
	item.Reason = "owner assigned and outside cooldown"
}

// sortBacklog orders by score desc, then priority, then recommendation id.
func sortBacklog(items []BacklogItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Priority.rank() != b.Priority.rank() {
			return a.Priority.rank() > b.Priority.rank()
		}
		return a.RecommendationID < b.RecommendationID
	})
}

func summarize(items []BacklogItem) BacklogSummary {
	s := BacklogSummary{Total: len(items)}
	for _, it := range items {
		switch it.Status {
		case BacklogReady:
			s.Ready++
		case BacklogBlocked:
			s.Blocked++
		case BacklogCooldown:
			s.Cooldown++
		}
	}
	return s
}

func cloneBacklog(b Backlog) Backlog {
	items := make([]BacklogItem, len(b.Items))
	copy(items, b.Items)
	for i := range items {
		items[i].Factors = append([]ScoreFactor(nil), items[i].Factors...)
		items[i].TriggerIDs = append([]string(nil), items[i].TriggerIDs...)
	}
	return Backlog{Items: items, Summary: b.Summary}
}
