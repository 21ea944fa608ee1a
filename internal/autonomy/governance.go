package autonomy

import (
	"fmt"
)

type GovernanceStatus string

const (
	GovernanceHealthy GovernanceStatus = "healthy"
	GovernanceWatch   GovernanceStatus = "watch"
	GovernancePaused  GovernanceStatus = "paused"
)

const (
	governanceNeutralBasis = 60
	stalePenalty           = 12
	blockedPenalty         = 10
	staleHardCap           = 4
	pausedScoreCeiling     = 44
	healthyThreshold       = 70
	watchThreshold         = 45
)

type GovernanceSignals struct {
	PositiveRate  float64 `json:"positive_rate"`
	StaleOpenRuns int     `json:"stale_open_runs"`
	CompletedRuns int     `json:"completed_runs"`
	BlockedShare  float64 `json:"blocked_share"`
}

type GovernanceConstraints struct {
	MaxActionsCap      int `json:"max_actions_cap"`
	CooldownFloorHours int `json:"cooldown_floor_hours"`
}

type GovernanceReport struct {
	Status          GovernanceStatus      `json:"status"`
	GovernanceScore int                   `json:"governance_score"`
	Signals         GovernanceSignals     `json:"signals"`
	Constraints     GovernanceConstraints `json:"constraints"`
	Reasons         []string              `json:"reasons"`
	Recommendations []string              `json:"recommendations"`
}

// Paused reports whether non-forced execution must be refused.
func (g *GovernanceReport) Paused() bool {
	return g != nil && g.Status == GovernancePaused
}

// ConstraintsFor returns the limits of a governance status. Worse status never loosens a limit.
func ConstraintsFor(status GovernanceStatus) GovernanceConstraints {
	switch status {
	case GovernanceHealthy:
		return GovernanceConstraints{MaxActionsCap: 5, CooldownFloorHours: 6}
	case GovernanceWatch:
		return GovernanceConstraints{MaxActionsCap: 2, CooldownFloorHours: 24}
	}
	return GovernanceConstraints{MaxActionsCap: 1, CooldownFloorHours: 48}
}

func statusForScore(score int) GovernanceStatus {
	switch {
	case score >= healthyThreshold:
		return GovernanceHealthy
	case score >= watchThreshold:
		return GovernanceWatch
	}
	return GovernancePaused
}

// BuildGovernance scores system health from learning signals and the backlog.
func BuildGovernance(learning LearningReport, backlog Backlog) GovernanceReport {
	signals := GovernanceSignals{
		PositiveRate:  learning.OverallPositiveRate,
		StaleOpenRuns: learning.StaleOpenRuns,
		CompletedRuns: learning.CompletedRuns,
	}
	if backlog.Summary.Total > 0 {
		signals.BlockedShare = round2(float64(backlog.Summary.Blocked) / float64(backlog.Summary.Total))
	}

	var reasons, recs []string
	basis := governanceNeutralBasis
	if learning.CompletedRuns >= minLearningSample {
		basis = roundInt(100 * learning.OverallPositiveRate)
		reasons = append(reasons, fmt.Sprintf("positive rate %.2f over %d completed run(s)", learning.OverallPositiveRate, learning.CompletedRuns))
	} else {
		reasons = append(reasons, fmt.Sprintf("%d completed run(s): neutral basis %d", learning.CompletedRuns, governanceNeutralBasis))
	}

	score := basis - stalePenalty*signals.StaleOpenRuns - roundInt(blockedPenalty*signals.BlockedShare)
	score = clampInt(score, 0, 100)
	if signals.StaleOpenRuns > 0 {
		reasons = append(reasons, fmt.Sprintf("%d stale open run(s): -%d", signals.StaleOpenRuns, stalePenalty*signals.StaleOpenRuns))
		recs = append(recs, fmt.Sprintf("Record outcomes for %d stale run(s) or let the outcome agent close them", signals.StaleOpenRuns))
	}
	if backlog.Summary.Blocked > 0 {
		reasons = append(reasons, fmt.Sprintf("%d of %d backlog item(s) blocked", backlog.Summary.Blocked, backlog.Summary.Total))
		recs = append(recs, "Assign owners or merch candidates to blocked backlog items")
	}
	if signals.StaleOpenRuns >= staleHardCap && score > pausedScoreCeiling {
		score = pausedScoreCeiling
		reasons = append(reasons, fmt.Sprintf("stale open runs at hard cap %d", staleHardCap))
	}

	status := statusForScore(score)
	switch status {
	case GovernancePaused:
		recs = append(recs, "Autonomy paused: execution requires force until health recovers")
	case GovernanceWatch:
		recs = append(recs, "Autonomy throttled: review recent outcomes before raising limits")
	}

	return GovernanceReport{
		Status:          status,
		GovernanceScore: score,
		Signals:         signals,
		Constraints:     ConstraintsFor(status),
		Reasons:         reasons,
		Recommendations: recs,
	}
}

// ApplyGovernance clamps the policy to the governance constraints.
func ApplyGovernance(policy DecisionPolicy, gov GovernanceReport) DecisionPolicy {
	actions := min(policy.MaxActionsPerCycle, gov.Constraints.MaxActionsCap)
	cooldown := max(policy.CooldownHours, gov.Constraints.CooldownFloorHours)
	if actions == policy.MaxActionsPerCycle && cooldown == policy.CooldownHours {
		return policy.clone()
	}
	return policy.withLimits(actions, cooldown,
		fmt.Sprintf("governance %s (score %d): cap %d action(s), floor %dh", gov.Status, gov.GovernanceScore, gov.Constraints.MaxActionsCap, gov.Constraints.CooldownFloorHours))
}
