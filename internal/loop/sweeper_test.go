package loop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MikeSquared-Agency/Storyloop/internal/config"
	"github.com/MikeSquared-Agency/Storyloop/internal/hermes"
	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

func sweeperConfig() config.SweeperConfig {
	return config.SweeperConfig{Enabled: true, Schedule: "*/30 * * * *", Mode: "assist", MaxRuns: 5}
}

func TestSweeperRunOnce(t *testing.T) {
	f := newFixture(t)
	for _, story := range []string{"story-1", "story-2"} {
		f.store.seed(&store.Run{
			StoryID:   story,
			Status:    store.RunStatusPlanned,
			Plan:      store.NewRunPlan(store.ManualPlan{}),
			CreatedAt: testNow.Add(-300 * time.Hour),
		})
	}
	f.store.seed(&store.Run{
		StoryID:   "story-3",
		Status:    store.RunStatusPlanned,
		Plan:      store.NewRunPlan(store.ManualPlan{}),
		CreatedAt: testNow.Add(-time.Hour),
	})

	sw, err := NewSweeper(f.svc, sweeperConfig(), testLogger())
	require.NoError(t, err)

	report := sw.RunOnce(context.Background())
	assert.Equal(t, 3, report.Stories)
	assert.Equal(t, 2, report.Closed)
	assert.Zero(t, report.Errors)

	for _, story := range []string{"story-1", "story-2"} {
		runs := f.store.runsFor(story)
		require.Len(t, runs, 1)
		assert.Equal(t, store.OutcomeHold, *runs[0].OutcomeDecision, "run older than three thresholds is held")
	}
	assert.True(t, f.store.runsFor("story-3")[0].Status.Open())
	f.hermes.AssertCalled(t, "Publish", hermes.SubjectLoopStats, mock.AnythingOfType("hermes.StatsEvent"))
}

func TestSweeperManualModeOnlyProposes(t *testing.T) {
	f := newFixture(t)
	f.store.seed(&store.Run{
		StoryID:   "story-1",
		Status:    store.RunStatusPlanned,
		Plan:      store.NewRunPlan(store.ManualPlan{}),
		CreatedAt: testNow.Add(-300 * time.Hour),
	})
	cfg := sweeperConfig()
	cfg.Mode = "manual"
	sw, err := NewSweeper(f.svc, cfg, testLogger())
	require.NoError(t, err)

	report := sw.RunOnce(context.Background())
	assert.Equal(t, 1, report.Stories)
	assert.Zero(t, report.Closed)
	assert.Zero(t, f.store.updates)
}

func TestNewSweeperRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	cfg := sweeperConfig()
	cfg.Schedule = "whenever"
	_, err := NewSweeper(f.svc, cfg, testLogger())
	assert.Error(t, err)
}

func TestSweeperStartStopNoLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	sw, err := NewSweeper(f.svc, sweeperConfig(), testLogger())
	require.NoError(t, err)

	sw.Start(context.Background())
	sw.Stop()
}
