package loop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/MikeSquared-Agency/Storyloop/internal/autonomy"
	"github.com/MikeSquared-Agency/Storyloop/internal/config"
	"github.com/MikeSquared-Agency/Storyloop/internal/merch"
	"github.com/MikeSquared-Agency/Storyloop/internal/roster"
	"github.com/MikeSquared-Agency/Storyloop/internal/scorecard"
	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

var testNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory RunStore.
type memStore struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]*store.Run
	now       func() time.Time
	failStory map[string]bool
	lists     int
	updates   int
}

func newMemStore() *memStore {
	return &memStore{
		runs:      make(map[uuid.UUID]*store.Run),
		now:       func() time.Time { return testNow },
		failStory: make(map[string]bool),
	}
}

func (m *memStore) CreateRun(_ context.Context, run *store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failStory[run.StoryID] {
		return errors.New("insert failed")
	}
	run.ID = uuid.New()
	run.CreatedAt = m.now()
	run.UpdatedAt = run.CreatedAt
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

// seed stores a run as is.
func (m *memStore) seed(run *store.Run) *store.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	cp := *run
	m.runs[run.ID] = &cp
	return run
}

func (m *memStore) GetRun(_ context.Context, id uuid.UUID) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListRuns(_ context.Context, f store.RunFilter) ([]*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.failStory[f.StoryID] {
		return nil, errors.New("query failed")
	}
	var out []*store.Run
	for _, r := range m.runs {
		if f.StoryID != "" && r.StoryID != f.StoryID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) UpdateRunOutcome(_ context.Context, id uuid.UUID, u store.OutcomeUpdate) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	m.updates++
	d := u.Decision
	completed := u.CompletedAt
	r.Status = store.RunStatusCompleted
	r.OutcomeDecision = &d
	r.OutcomeNotes = u.Notes
	r.OutcomeMetrics = u.Metrics
	r.ClosedBy = u.ClosedBy
	r.CompletedAt = &completed
	r.UpdatedAt = m.now()
	cp := *r
	return &cp, nil
}

func (m *memStore) ListStoriesWithOpenRuns(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, r := range m.runs {
		if r.Status.Open() && !seen[r.StoryID] {
			seen[r.StoryID] = true
			ids = append(ids, r.StoryID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) GetStats(context.Context) (*store.RunStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &store.RunStats{}
	for _, r := range m.runs {
		switch r.Status {
		case store.RunStatusPlanned:
			stats.TotalPlanned++
		case store.RunStatusInProgress:
			stats.TotalInProgress++
		case store.RunStatusCompleted:
			stats.TotalCompleted++
		}
	}
	return stats, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) runsFor(storyID string) []*store.Run {
	runs, _ := m.ListRuns(context.Background(), store.RunFilter{StoryID: storyID})
	return runs
}

type mockHermes struct {
	mock.Mock
}

func (m *mockHermes) Publish(subject string, data interface{}) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

func (m *mockHermes) Subscribe(subject string, handler func(string, []byte)) error {
	args := m.Called(subject, handler)
	return args.Error(0)
}

func (m *mockHermes) Close() {}

func newMockHermes() *mockHermes {
	h := &mockHermes{}
	h.On("Publish", mock.Anything, mock.Anything).Return(nil)
	return h
}

type stubScorecard struct {
	snap *scorecard.Snapshot
	err  error
}

func (s stubScorecard) GetSnapshot(context.Context, string) (*scorecard.Snapshot, error) {
	return s.snap, s.err
}

type stubRoster struct {
	assignments []roster.Assignment
	err         error
}

func (s stubRoster) ListAssignments(context.Context, string) ([]roster.Assignment, error) {
	return s.assignments, s.err
}

type stubMerch struct {
	cand *merch.Candidate
}

func (s stubMerch) GetCandidate(context.Context, string) (*merch.Candidate, error) {
	return s.cand, nil
}

func fullAssignments() []roster.Assignment {
	return []roster.Assignment{
		{RoleAgentID: "continuity", UserID: "u-continuity"},
		{RoleAgentID: "editor", UserID: "u-editor"},
		{RoleAgentID: "worldbuilder", UserID: "u-world"},
		{RoleAgentID: "producer", UserID: "u-producer"},
		{RoleAgentID: "merch", UserID: "u-merch"},
		{RoleAgentID: "growth", UserID: "u-growth"},
	}
}

func foundationGapSnapshot() *scorecard.Snapshot {
	return &scorecard.Snapshot{
		StoryID: "story-1",
		Metrics: store.Metrics{"combinedScore": 52, "merchSignal": 40, "roleCoverage": 80},
	}
}

func testConfig() *config.Config {
	cfg, _ := config.Load("")
	cfg.Autonomy.Features = autonomy.AllFeatures()
	return cfg
}

type fixture struct {
	svc    *Service
	store  *memStore
	hermes *mockHermes
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ms := newMemStore()
	h := newMockHermes()
	svc, err := New(ms, h,
		stubScorecard{snap: foundationGapSnapshot()},
		stubRoster{assignments: fullAssignments()},
		stubMerch{},
		testConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	svc.SetClock(func() time.Time { return testNow })
	return fixture{svc: svc, store: ms, hermes: h}
}

func findItem(state autonomy.DerivedState, recID string) *autonomy.BacklogItem {
	for i := range state.Backlog.Items {
		if state.Backlog.Items[i].RecommendationID == recID {
			return &state.Backlog.Items[i]
		}
	}
	return nil
}
