package autonomy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

func staleHistory() []*store.Run {
	return []*store.Run{
		automationRun("fresh", testNow.Add(-10*time.Hour)),
		automationRun("stale", testNow.Add(-80*time.Hour)),
		automationRun("abandoned", testNow.Add(-300*time.Hour)),
		completedRun("done", store.OutcomeScale, testNow.Add(-400*time.Hour)),
	}
}

func TestProposeClosures(t *testing.T) {
	proposals := ProposeClosures(staleHistory(), OutcomeAgentOptions{}, testNow)
	if len(proposals) != 2 {
		t.Fatalf("expected 2 proposals, got %d", len(proposals))
	}
	if proposals[0].RecommendationID != "abandoned" {
		t.Errorf("oldest run not first: %s", proposals[0].RecommendationID)
	}
	if proposals[0].SuggestedOutcomeDecision != store.OutcomeHold {
		t.Errorf("run older than 3x threshold got %s, want hold", proposals[0].SuggestedOutcomeDecision)
	}
	if proposals[1].SuggestedOutcomeDecision != store.OutcomeIterate || proposals[1].AgeHours != 80 {
		t.Errorf("stale run got %s at %dh", proposals[1].SuggestedOutcomeDecision, proposals[1].AgeHours)
	}

	limited := ProposeClosures(staleHistory(), OutcomeAgentOptions{MaxRuns: 1}, testNow)
	if len(limited) != 1 || limited[0].RecommendationID != "abandoned" {
		t.Errorf("max runs not honoured: %+v", limited)
	}
}

func TestCloseStaleRuns(t *testing.T) {
	t.Run("dry run writes nothing", func(t *testing.T) {
		ms := newMockRunStore()
		res, err := CloseStaleRuns(context.Background(), ms, ModeAuto, staleHistory(), OutcomeAgentOptions{DryRun: true}, testNow)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Applied || len(ms.updates) != 0 || len(res.Proposals) != 2 {
			t.Errorf("applied=%v updates=%d proposals=%d", res.Applied, len(ms.updates), len(res.Proposals))
		}
	})

	t.Run("manual mode only proposes", func(t *testing.T) {
		ms := newMockRunStore()
		res, err := CloseStaleRuns(context.Background(), ms, ModeManual, staleHistory(), OutcomeAgentOptions{}, testNow)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Applied || len(ms.updates) != 0 {
			t.Errorf("manual mode closed %d runs", len(ms.updates))
		}
	})

	t.Run("closes with provenance and per-run failures", func(t *testing.T) {
		history := staleHistory()
		ms := newMockRunStore()
		ms.failRuns[history[1].ID] = true

		res, err := CloseStaleRuns(context.Background(), ms, ModeAssist, history, OutcomeAgentOptions{}, testNow)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Closed != 1 || res.Failed != 1 {
			t.Fatalf("closed=%d failed=%d", res.Closed, res.Failed)
		}
		u, ok := ms.updates[history[2].ID]
		if !ok {
			t.Fatal("abandoned run was not closed")
		}
		if u.ClosedBy != store.ClosedByOutcomeAgent || !u.CompletedAt.Equal(testNow) {
			t.Errorf("update = %+v", u)
		}
		for _, p := range res.Proposals {
			if p.RunID == history[1].ID && (p.Status != ClosureFailed || p.Error == "") {
				t.Errorf("failed run reported as %s", p.Status)
			}
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := CloseStaleRuns(context.Background(), newMockRunStore(), ModeAuto, nil, OutcomeAgentOptions{MaxRuns: 51}, testNow)
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("expected ErrOutOfRange, got %v", err)
		}
		_, err = CloseStaleRuns(context.Background(), newMockRunStore(), ModeAuto, nil, OutcomeAgentOptions{StaleAfterHours: 721}, testNow)
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("expected ErrOutOfRange, got %v", err)
		}
	})
}
