package autonomy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

var testNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func fullRoster() Roster {
	return Roster{
		"continuity":   "u-continuity",
		"editor":       "u-editor",
		"worldbuilder": "u-world",
		"producer":     "u-producer",
		"merch":        "u-merch",
		"growth":       "u-growth",
	}
}

func decisionPtr(d store.OutcomeDecision) *store.OutcomeDecision { return &d }

func timePtr(t time.Time) *time.Time { return &t }

func automationRun(recID string, created time.Time) *store.Run {
	return &store.Run{
		ID:        uuid.New(),
		StoryID:   "story-1",
		Status:    store.RunStatusPlanned,
		Plan:      store.NewRunPlan(store.AutomationPlan{ExecutedRecommendationID: recID}),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func completedRun(recID string, d store.OutcomeDecision, created time.Time) *store.Run {
	r := automationRun(recID, created)
	r.Status = store.RunStatusCompleted
	r.OutcomeDecision = decisionPtr(d)
	r.CompletedAt = timePtr(created.Add(time.Hour))
	return r
}

// outcomes builds completed runs from decisions, newest first, one hour apart.
func outcomes(ds ...store.OutcomeDecision) []*store.Run {
	runs := make([]*store.Run, 0, len(ds))
	for i, d := range ds {
		runs = append(runs, completedRun("", d, testNow.Add(-time.Duration(i+2)*time.Hour)))
	}
	return runs
}

type mockRunStore struct {
	mu       sync.Mutex
	created  []*store.Run
	updates  map[uuid.UUID]store.OutcomeUpdate
	failRecs map[string]bool
	failRuns map[uuid.UUID]bool
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{
		updates:  make(map[uuid.UUID]store.OutcomeUpdate),
		failRecs: make(map[string]bool),
		failRuns: make(map[uuid.UUID]bool),
	}
}

func (m *mockRunStore) CreateRun(_ context.Context, run *store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecs[run.ExecutedRecommendationID()] {
		return errors.New("insert failed")
	}
	run.ID = uuid.New()
	run.CreatedAt = testNow
	run.UpdatedAt = testNow
	m.created = append(m.created, run)
	return nil
}

func (m *mockRunStore) UpdateRunOutcome(_ context.Context, id uuid.UUID, u store.OutcomeUpdate) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRuns[id] {
		return nil, errors.New("update failed")
	}
	m.updates[id] = u
	d := u.Decision
	return &store.Run{ID: id, Status: store.RunStatusCompleted, OutcomeDecision: &d, ClosedBy: u.ClosedBy}, nil
}
