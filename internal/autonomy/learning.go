package autonomy

import (
	"fmt"
	"sort"
	"time"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendFlat      Trend = "flat"
)

const (
	DefaultStaleAfterHours = 72
	maxCooldownHours       = 168
	minLearningSample      = 3
)

type RecommendationStats struct {
	RecommendationID string  `json:"recommendation_id"`
	Runs             int     `json:"runs"`
	Completed        int     `json:"completed"`
	Positive         int     `json:"positive"`
	PositiveRate     float64 `json:"positive_rate"`
}

type LearningReport struct {
	CompletedRuns               int                   `json:"completed_runs"`
	PositiveRuns                int                   `json:"positive_runs"`
	OverallPositiveRate         float64               `json:"overall_positive_rate"`
	StaleOpenRuns               int                   `json:"stale_open_runs"`
	StaleAfterHours             int                   `json:"stale_after_hours"`
	Trend                       Trend                 `json:"trend"`
	RecentPositiveRate          float64               `json:"recent_positive_rate"`
	PriorPositiveRate           float64               `json:"prior_positive_rate"`
	Recommendations             []RecommendationStats `json:"recommendations"`
	SuggestedCooldownHours      int                   `json:"suggested_cooldown_hours"`
	SuggestedMaxActionsPerCycle int                   `json:"suggested_max_actions_per_cycle"`
	Notes                       []string              `json:"notes"`
}

// positiveRate returns the positive share of completed runs, 0 when there are none.
func positiveRate(completed []*store.Run) float64 {
	if len(completed) == 0 {
		return 0
	}
	pos := 0
	for _, r := range completed {
		if r.OutcomeDecision.Positive() {
			pos++
		}
	}
	return float64(pos) / float64(len(completed))
}

// staleOpenRuns returns open runs older than staleAfterHours, oldest first.
func staleOpenRuns(history []*store.Run, staleAfterHours int, now time.Time) []*store.Run {
	limit := time.Duration(staleAfterHours) * time.Hour
	var out []*store.Run
	for _, r := range history {
		if r == nil || !r.Status.Open() {
			continue
		}
		if now.Sub(r.CreatedAt) > limit {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func trendOf(completed []*store.Run) (Trend, float64, float64) {
	if len(completed) < 2 {
		return TrendFlat, positiveRate(completed), positiveRate(completed)
	}
	split := (len(completed) + 1) / 2
	recent := positiveRate(completed[:split])
	prior := positiveRate(completed[split:])
	switch diff := roundInt((recent - prior) * 100); {
	case diff >= 10:
		return TrendImproving, recent, prior
	case diff <= -10:
		return TrendDeclining, recent, prior
	}
	return TrendFlat, recent, prior
}

// BuildLearning mines the history for outcome rates and suggests new policy limits.
func BuildLearning(policy DecisionPolicy, history []*store.Run, staleAfterHours int, now time.Time) LearningReport {
	if staleAfterHours <= 0 {
		staleAfterHours = DefaultStaleAfterHours
	}
	completed := completedNewestFirst(history)
	rate := positiveRate(completed)

	report := LearningReport{
		CompletedRuns:       len(completed),
		OverallPositiveRate: round2(rate),
		StaleOpenRuns:       len(staleOpenRuns(history, staleAfterHours, now)),
		StaleAfterHours:     staleAfterHours,
	}
	for _, r := range completed {
		if r.OutcomeDecision.Positive() {
			report.PositiveRuns++
		}
	}
	trend, recent, prior := trendOf(completed)
	report.Trend = trend
	report.RecentPositiveRate = round2(recent)
	report.PriorPositiveRate = round2(prior)
	report.Recommendations = recommendationStats(history)

	profile := ProfileFor(policy.Mode)
	cooldown := policy.CooldownHours
	actions := policy.MaxActionsPerCycle
	switch {
	case len(completed) < minLearningSample:
		report.Notes = append(report.Notes, fmt.Sprintf("%d completed run(s): need %d before adjusting limits", len(completed), minLearningSample))
	case rate >= 0.70:
		cooldown = roundInt(float64(cooldown) * 0.75)
		actions++
		report.Notes = append(report.Notes, fmt.Sprintf("positive rate %.2f: shorter cooldown, one more action", rate))
	case rate < 0.40:
		cooldown = roundInt(float64(cooldown) * 1.5)
		actions--
		report.Notes = append(report.Notes, fmt.Sprintf("positive rate %.2f: longer cooldown, one less action", rate))
	default:
		report.Notes = append(report.Notes, fmt.Sprintf("positive rate %.2f: limits unchanged", rate))
	}
	report.SuggestedCooldownHours = clampInt(cooldown, profile.CooldownFloor, maxCooldownHours)
	report.SuggestedMaxActionsPerCycle = clampInt(actions, MinActions, profile.MaxActionsCeiling)

	if report.StaleOpenRuns > 0 {
		report.Notes = append(report.Notes, fmt.Sprintf("%d open run(s) older than %dh", report.StaleOpenRuns, staleAfterHours))
	}
	if trend != TrendFlat {
		report.Notes = append(report.Notes, fmt.Sprintf("trend %s: recent %.2f vs prior %.2f", trend, recent, prior))
	}
	return report
}

// ApplyLearning returns policy with the learning report's suggested limits.
func ApplyLearning(policy DecisionPolicy, report LearningReport) DecisionPolicy {
	if report.SuggestedCooldownHours == policy.CooldownHours && report.SuggestedMaxActionsPerCycle == policy.MaxActionsPerCycle {
		return policy.clone()
	}
	return policy.withLimits(report.SuggestedMaxActionsPerCycle, report.SuggestedCooldownHours,
		fmt.Sprintf("learning: %d action(s), %dh cooldown from positive rate %.2f",
			report.SuggestedMaxActionsPerCycle, report.SuggestedCooldownHours, report.OverallPositiveRate))
}

func recommendationStats(history []*store.Run) []RecommendationStats {
	byID := map[string]*RecommendationStats{}
	for _, r := range history {
		id := r.ExecutedRecommendationID()
		if id == "" {
			continue
		}
		s, ok := byID[id]
		if !ok {
			s = &RecommendationStats{RecommendationID: id}
			byID[id] = s
		}
		s.Runs++
		if r.Completed() {
			s.Completed++
			if r.OutcomeDecision.Positive() {
				s.Positive++
			}
		}
	}
	out := make([]RecommendationStats, 0, len(byID))
	for _, s := range byID {
		if s.Completed > 0 {
			s.PositiveRate = round2(float64(s.Positive) / float64(s.Completed))
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecommendationID < out[j].RecommendationID })
	return out
}
