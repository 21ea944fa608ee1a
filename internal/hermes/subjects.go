package hermes

const (
	// Published by the scorecard when a story snapshot changes.
	SubjectMetricsUpdated = "storyloop.story.*.metrics.updated"
	SubjectLoopStats      = "storyloop.loop.stats"

	StreamName   = "STORYLOOP_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

// Run lifecycle subjects
func SubjectRunCreated(runID string) string { return "storyloop.run." + runID + ".created" }
func SubjectRunClosed(runID string) string  { return "storyloop.run." + runID + ".closed" }

// Story autonomy subjects
func SubjectGovernancePaused(storyID string) string {
	return "storyloop.story." + storyID + ".governance.paused"
}
func SubjectSelfHealingCritical(storyID string) string {
	return "storyloop.story." + storyID + ".selfhealing.critical"
}
func SubjectExecutionBlocked(storyID string) string {
	return "storyloop.story." + storyID + ".execution.blocked"
}
func SubjectStoryMetricsUpdated(storyID string) string {
	return "storyloop.story." + storyID + ".metrics.updated"
}
