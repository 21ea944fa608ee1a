package loop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/Storyloop/internal/autonomy"
	"github.com/MikeSquared-Agency/Storyloop/internal/config"
	"github.com/MikeSquared-Agency/Storyloop/internal/hermes"
	"github.com/MikeSquared-Agency/Storyloop/internal/merch"
	slotel "github.com/MikeSquared-Agency/Storyloop/internal/otel"
	"github.com/MikeSquared-Agency/Storyloop/internal/roster"
	"github.com/MikeSquared-Agency/Storyloop/internal/scorecard"
	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

var (
	ErrRunNotFound    = errors.New("run not found")
	ErrInvalidRequest = errors.New("invalid request")
)

const (
	maxBatchStories = 100
	maxOpenRuns     = 1000
)

// IsValidation reports whether err was caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, autonomy.ErrInvalidMode) ||
		errors.Is(err, autonomy.ErrInvalidObjective) ||
		errors.Is(err, autonomy.ErrInvalidOutcome) ||
		errors.Is(err, autonomy.ErrOutOfRange)
}

// Service loads a story's inputs, runs the reconciler and performs the writes
// the decision loop allows. Writes for one story are serialized.
type Service struct {
	store      store.RunStore
	hermes     hermes.Client
	scorecard  scorecard.Client
	roster     roster.Client
	merch      merch.Client
	reconciler *autonomy.Reconciler
	cfg        config.AutonomyConfig
	logger     *slog.Logger

	tracer trace.Tracer
	now    func() time.Time
	locks  *storyLocks
}

// New wires the service. Any collaborator may be nil; the loop then runs on
// whatever the request supplies.
func New(s store.RunStore, h hermes.Client, sc scorecard.Client, r roster.Client, m merch.Client, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	rec, err := autonomy.NewReconciler(nil, nil, cfg.Autonomy.Features)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:      s,
		hermes:     h,
		scorecard:  sc,
		roster:     r,
		merch:      m,
		reconciler: rec,
		cfg:        cfg.Autonomy,
		logger:     logger,
		tracer:     nooptrace.NewTracerProvider().Tracer(slotel.TracerName),
		now:        time.Now,
		locks:      newStoryLocks(),
	}, nil
}

func (s *Service) SetTracer(t trace.Tracer) { s.tracer = t }

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Features() autonomy.FeatureSet { return s.reconciler.Features() }

// StrategyRequest is the wire form of autonomy.StrategyOptions.
type StrategyRequest struct {
	CadenceHours int        `json:"cadence_hours,omitempty"`
	Cycles       int        `json:"cycles,omitempty"`
	Anchor       *time.Time `json:"anchor,omitempty"`
	AutoOptimize bool       `json:"auto_optimize"`
	Force        bool       `json:"force"`
}

// EvaluateRequest overrides what the service would otherwise load or default.
type EvaluateRequest struct {
	Mode            autonomy.Mode           `json:"mode,omitempty"`
	Objective       autonomy.Objective      `json:"objective,omitempty"`
	Strategy        StrategyRequest         `json:"strategy"`
	StaleAfterHours int                     `json:"stale_after_hours,omitempty"`
	Sprint          *autonomy.SprintContext `json:"sprint,omitempty"`
	Metrics         store.Metrics           `json:"metrics,omitempty"`
	Roster          autonomy.Roster         `json:"roster,omitempty"`
}

func (s *Service) baseInput(storyID string, req EvaluateRequest) (autonomy.Input, error) {
	mode := req.Mode
	if mode == "" {
		mode = autonomy.Mode(s.cfg.DefaultMode)
	}
	opts := autonomy.StrategyOptions{
		CadenceHours: req.Strategy.CadenceHours,
		Cycles:       req.Strategy.Cycles,
		Anchor:       req.Strategy.Anchor,
		AutoOptimize: req.Strategy.AutoOptimize,
		Force:        req.Strategy.Force,
	}
	if opts.CadenceHours == 0 {
		opts.CadenceHours = s.cfg.CadenceHours
	}
	if opts.Cycles == 0 {
		opts.Cycles = s.cfg.Cycles
	}
	stale := req.StaleAfterHours
	if stale == 0 {
		stale = s.cfg.StaleAfterHours
	}
	in := autonomy.Input{
		StoryID:         storyID,
		Mode:            mode,
		Objective:       req.Objective,
		Strategy:        opts,
		StaleAfterHours: stale,
		Metrics:         req.Metrics,
		Roster:          req.Roster,
	}
	if req.Sprint != nil {
		in.Sprint = *req.Sprint
	}
	if storyID == "" {
		return in, fmt.Errorf("%w: story id is required", ErrInvalidRequest)
	}
	if err := in.Validate(); err != nil {
		return in, err
	}
	return in, nil
}

// loadInput validates the request, then fills in history and collaborator data.
// Collaborator failures degrade to unknown values.
func (s *Service) loadInput(ctx context.Context, storyID string, req EvaluateRequest) (autonomy.Input, error) {
	in, err := s.baseInput(storyID, req)
	if err != nil {
		return in, err
	}

	history, err := s.store.ListRuns(ctx, store.RunFilter{StoryID: storyID, Limit: s.cfg.HistoryLimit})
	if err != nil {
		return in, fmt.Errorf("load history: %w", err)
	}
	in.History = history

	if in.Metrics == nil {
		in.Metrics = store.Metrics{}
		if s.scorecard != nil {
			snap, err := s.scorecard.GetSnapshot(ctx, storyID)
			switch {
			case err != nil:
				collaboratorErrorsTotal.WithLabelValues("scorecard").Inc()
				s.logger.Warn("scorecard unavailable, evaluating without metrics", "story_id", storyID, "error", err)
			case snap != nil:
				in.Metrics = snap.Metrics
				if snap.Sprint != nil && req.Sprint == nil {
					in.Sprint.Objective = snap.Sprint.Objective
					if autonomy.CheckRange("horizon_days", snap.Sprint.HorizonDays, autonomy.MinHorizonDays, autonomy.MaxHorizonDays) == nil {
						in.Sprint.HorizonDays = snap.Sprint.HorizonDays
					}
				}
			}
		}
	}

	if in.Roster == nil {
		in.Roster = autonomy.Roster{}
		if s.roster != nil {
			assignments, err := s.roster.ListAssignments(ctx, storyID)
			if err != nil {
				collaboratorErrorsTotal.WithLabelValues("roster").Inc()
				s.logger.Warn("roster unavailable, every owner missing", "story_id", storyID, "error", err)
			} else {
				in.Roster = roster.ToRoster(assignments)
			}
		}
	}

	if in.Sprint.MerchCandidateID == "" && s.merch != nil {
		cand, err := s.merch.GetCandidate(ctx, storyID)
		if err != nil {
			collaboratorErrorsTotal.WithLabelValues("merch").Inc()
			s.logger.Warn("merch unavailable, assuming no candidate", "story_id", storyID, "error", err)
		} else if cand != nil {
			in.Sprint.MerchCandidateID = cand.ID
		}
	}

	in.Now = s.now().UTC()
	return in, nil
}

// Evaluate recomputes the derived state of a story. It never writes runs.
func (s *Service) Evaluate(ctx context.Context, storyID string, req EvaluateRequest) (autonomy.DerivedState, error) {
	ctx, span := slotel.StartSpan(ctx, s.tracer, "loop.evaluate", slotel.AttrStoryID.String(storyID))
	defer span.End()

	state, err := s.evaluate(ctx, storyID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}
	s.publishState(state)
	return state, nil
}

func (s *Service) evaluate(ctx context.Context, storyID string, req EvaluateRequest) (autonomy.DerivedState, error) {
	start := time.Now()
	in, err := s.loadInput(ctx, storyID, req)
	if err != nil {
		return autonomy.DerivedState{}, err
	}
	state := s.reconciler.Refresh(in)

	evaluationDuration.Observe(time.Since(start).Seconds())
	gov := "disabled"
	if state.Governance != nil {
		gov = string(state.Governance.Status)
	}
	evaluationsTotal.WithLabelValues(gov).Inc()
	readyItems.Observe(float64(state.Backlog.Summary.Ready))

	trace.SpanFromContext(ctx).SetAttributes(
		slotel.AttrMode.String(string(state.Policy.Mode)),
		attribute.Int("storyloop.backlog.ready", state.Backlog.Summary.Ready),
		attribute.String("storyloop.governance", gov),
	)
	s.logger.Debug("story evaluated", "story_id", storyID, "governance", gov,
		"ready", state.Backlog.Summary.Ready, "history", len(in.History))
	return state, nil
}

func (s *Service) publishState(state autonomy.DerivedState) {
	if s.hermes == nil {
		return
	}
	if g := state.Governance; g.Paused() {
		_ = s.hermes.Publish(hermes.SubjectGovernancePaused(state.StoryID), hermes.GovernancePausedEvent{
			StoryID:         state.StoryID,
			GovernanceScore: g.GovernanceScore,
			StaleOpenRuns:   g.Signals.StaleOpenRuns,
			Reasons:         g.Reasons,
		})
	}
	if h := state.SelfHealing; h != nil && h.Severity == autonomy.HealingCritical {
		ev := hermes.SelfHealingCriticalEvent{
			StoryID:     state.StoryID,
			RoiGapScore: h.RoiGapScore,
			Mode:        string(state.Policy.Mode),
		}
		if h.PolicyPatch != nil {
			ev.Objective = string(h.PolicyPatch.Objective)
			ev.Mode = string(h.PolicyPatch.Mode)
		}
		_ = s.hermes.Publish(hermes.SubjectSelfHealingCritical(state.StoryID), ev)
	}
}

type ExecuteInput struct {
	EvaluateRequest
	autonomy.ExecuteRequest
}

type ExecuteResponse struct {
	autonomy.ExecuteResult
	// Snapshot is the state the items were selected from. It does not depend on dry_run.
	Snapshot autonomy.DerivedState `json:"snapshot"`
	// State is the derived state after the created runs were recorded.
	State autonomy.DerivedState `json:"state"`
}

// Execute evaluates a story and creates runs for its top ready items. The
// story stays locked from evaluation to the refreshed state.
func (s *Service) Execute(ctx context.Context, storyID string, in ExecuteInput) (*ExecuteResponse, error) {
	ctx, span := slotel.StartSpan(ctx, s.tracer, "loop.execute", slotel.AttrStoryID.String(storyID))
	defer span.End()

	if err := in.ExecuteRequest.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(storyID)
	defer unlock()

	state, err := s.evaluate(ctx, storyID, in.EvaluateRequest)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result, err := autonomy.Execute(ctx, s.store, state, in.ExecuteRequest)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		slotel.AttrSource.String(string(result.Source)),
		attribute.Int("storyloop.runs.created", result.Created),
	)

	if result.BlockedByGovernance || result.BlockedByWindow {
		reason := "governance"
		if result.BlockedByWindow {
			reason = "window"
		}
		executionsBlockedTotal.WithLabelValues(reason).Inc()
		s.logger.Info("execution blocked", "story_id", storyID, "reason", reason, "reasons", result.Reasons)
		if s.hermes != nil {
			_ = s.hermes.Publish(hermes.SubjectExecutionBlocked(storyID), hermes.ExecutionBlockedEvent{
				StoryID:   storyID,
				RequestID: uuid.New().String(),
				Source:    string(result.Source),
				Reasons:   result.Reasons,
			})
		}
	}

	for _, item := range result.Items {
		if item.Status == autonomy.ItemFailed {
			s.logger.Error("failed to create run", "story_id", storyID, "recommendation_id", item.RecommendationID, "error", item.Error)
			continue
		}
		if item.RunID == nil {
			continue
		}
		runsCreatedTotal.WithLabelValues(string(result.Source)).Inc()
		s.publishRunCreated(&store.Run{ID: *item.RunID, StoryID: storyID, CreatedByUserID: in.UserID}, result.Source, item.RecommendationID)
	}

	resp := &ExecuteResponse{ExecuteResult: result, Snapshot: state, State: state}
	if result.Created > 0 {
		refreshed, err := s.evaluate(ctx, storyID, in.EvaluateRequest)
		if err != nil {
			return nil, fmt.Errorf("refresh after execute: %w", err)
		}
		resp.State = refreshed
		s.logger.Info("backlog executed", "story_id", storyID, "source", result.Source,
			"created", result.Created, "failed", result.Failed, "forced", result.Forced)
	}
	s.publishState(resp.State)
	return resp, nil
}

func (s *Service) publishRunCreated(run *store.Run, source store.PlanSource, recID string) {
	if s.hermes == nil {
		return
	}
	_ = s.hermes.Publish(hermes.SubjectRunCreated(run.ID.String()), hermes.RunCreatedEvent{
		RunID:            run.ID.String(),
		StoryID:          run.StoryID,
		Source:           string(source),
		RecommendationID: recID,
		CreatedBy:        run.CreatedByUserID,
	})
}

// CreateRunRequest records a manual run outside the backlog.
type CreateRunRequest struct {
	RecommendationID string        `json:"recommendation_id,omitempty"`
	SprintObjective  string        `json:"sprint_objective"`
	HorizonDays      int           `json:"horizon_days"`
	Notes            string        `json:"notes,omitempty"`
	Checklist        []string      `json:"checklist,omitempty"`
	BaselineMetrics  store.Metrics `json:"baseline_metrics,omitempty"`
}

func (r CreateRunRequest) Validate() error {
	if r.HorizonDays != 0 {
		if err := autonomy.CheckRange("horizon_days", r.HorizonDays, autonomy.MinHorizonDays, autonomy.MaxHorizonDays); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CreateRun(ctx context.Context, storyID, userID string, req CreateRunRequest) (*store.Run, error) {
	ctx, span := slotel.StartSpan(ctx, s.tracer, "loop.create_run", slotel.AttrStoryID.String(storyID))
	defer span.End()

	if storyID == "" {
		return nil, fmt.Errorf("%w: story id is required", ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(storyID)
	defer unlock()

	baseline := req.BaselineMetrics
	if baseline == nil && s.scorecard != nil {
		snap, err := s.scorecard.GetSnapshot(ctx, storyID)
		if err != nil {
			collaboratorErrorsTotal.WithLabelValues("scorecard").Inc()
			s.logger.Warn("scorecard unavailable, run has no baseline", "story_id", storyID, "error", err)
		} else if snap != nil {
			baseline = snap.Metrics
		}
	}

	horizon := req.HorizonDays
	if horizon == 0 {
		horizon = s.reconciler.HorizonFor(req.RecommendationID)
	}

	run := &store.Run{
		StoryID:         storyID,
		CreatedByUserID: userID,
		SprintObjective: req.SprintObjective,
		HorizonDays:     horizon,
		Status:          store.RunStatusPlanned,
		Plan: store.NewRunPlan(store.ManualPlan{
			ExecutedRecommendationID: req.RecommendationID,
			Notes:                    req.Notes,
			Checklist:                req.Checklist,
		}),
		BaselineMetrics: baseline,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create run: %w", err)
	}
	span.SetAttributes(slotel.AttrRunID.String(run.ID.String()))
	runsCreatedTotal.WithLabelValues(string(store.PlanSourceManual)).Inc()
	s.publishRunCreated(run, store.PlanSourceManual, req.RecommendationID)
	s.logger.Info("run created", "story_id", storyID, "run_id", run.ID, "recommendation_id", req.RecommendationID)
	return run, nil
}

func (s *Service) ListRuns(ctx context.Context, storyID string, status *store.RunStatus, limit int) ([]*store.Run, error) {
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	return s.store.ListRuns(ctx, store.RunFilter{StoryID: storyID, Status: status, Limit: limit})
}

type OutcomeRequest struct {
	Decision string        `json:"outcome_decision"`
	Notes    string        `json:"outcome_notes,omitempty"`
	Metrics  store.Metrics `json:"outcome_metrics,omitempty"`
}

// RecordOutcome completes a run. Repeating the recorded outcome returns the run unchanged.
func (s *Service) RecordOutcome(ctx context.Context, runID uuid.UUID, req OutcomeRequest) (*store.Run, error) {
	ctx, span := slotel.StartSpan(ctx, s.tracer, "loop.record_outcome", slotel.AttrRunID.String(runID.String()))
	defer span.End()

	decision, err := autonomy.ParseOutcome(req.Decision)
	if err != nil {
		return nil, err
	}

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}

	unlock := s.locks.Lock(run.StoryID)
	defer unlock()

	// the row may have been closed while waiting for the lock
	run, err = s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}

	if run.Completed() && *run.OutcomeDecision == decision && run.OutcomeNotes == req.Notes && sameMetrics(run.OutcomeMetrics, req.Metrics) {
		return run, nil
	}

	updated, err := s.store.UpdateRunOutcome(ctx, runID, store.OutcomeUpdate{
		Decision:    decision,
		Notes:       req.Notes,
		Metrics:     req.Metrics,
		ClosedBy:    store.ClosedByUser,
		CompletedAt: s.now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update outcome: %w", err)
	}
	if updated == nil {
		return nil, ErrRunNotFound
	}

	runsClosedTotal.WithLabelValues(store.ClosedByUser).Inc()
	s.publishRunClosed(updated)
	s.logger.Info("run outcome recorded", "run_id", runID, "story_id", updated.StoryID, "outcome_decision", decision)
	return updated, nil
}

func sameMetrics(a, b store.Metrics) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func (s *Service) publishRunClosed(run *store.Run) {
	if s.hermes == nil || run.OutcomeDecision == nil {
		return
	}
	_ = s.hermes.Publish(hermes.SubjectRunClosed(run.ID.String()), hermes.RunClosedEvent{
		RunID:           run.ID.String(),
		StoryID:         run.StoryID,
		OutcomeDecision: string(*run.OutcomeDecision),
		ClosedBy:        run.ClosedBy,
	})
}

type CloseStaleRequest struct {
	Mode autonomy.Mode `json:"mode,omitempty"`
	autonomy.OutcomeAgentOptions
}

// CloseStale runs the outcome-closing agent over one story's open runs.
func (s *Service) CloseStale(ctx context.Context, storyID string, req CloseStaleRequest) (autonomy.OutcomeAgentResult, error) {
	ctx, span := slotel.StartSpan(ctx, s.tracer, "loop.close_stale", slotel.AttrStoryID.String(storyID))
	defer span.End()

	if storyID == "" {
		return autonomy.OutcomeAgentResult{}, fmt.Errorf("%w: story id is required", ErrInvalidRequest)
	}
	mode := req.Mode
	if mode == "" {
		mode = autonomy.Mode(s.cfg.DefaultMode)
	}
	if _, err := autonomy.ParseMode(string(mode)); err != nil {
		return autonomy.OutcomeAgentResult{}, err
	}
	opts := req.OutcomeAgentOptions
	if opts.StaleAfterHours == 0 {
		opts.StaleAfterHours = s.cfg.StaleAfterHours
	}
	if err := opts.Validate(); err != nil {
		return autonomy.OutcomeAgentResult{}, err
	}

	unlock := s.locks.Lock(storyID)
	defer unlock()

	open := store.RunStatusPlanned
	planned, err := s.store.ListRuns(ctx, store.RunFilter{StoryID: storyID, Status: &open, Limit: maxOpenRuns})
	if err != nil {
		return autonomy.OutcomeAgentResult{}, fmt.Errorf("load open runs: %w", err)
	}
	running := store.RunStatusInProgress
	inProgress, err := s.store.ListRuns(ctx, store.RunFilter{StoryID: storyID, Status: &running, Limit: maxOpenRuns})
	if err != nil {
		return autonomy.OutcomeAgentResult{}, fmt.Errorf("load open runs: %w", err)
	}

	result, err := autonomy.CloseStaleRuns(ctx, s.store, mode, append(planned, inProgress...), opts, s.now().UTC())
	s.recordClosures(storyID, result)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	span.SetAttributes(attribute.Int("storyloop.runs.closed", result.Closed))
	if result.Closed > 0 || result.Failed > 0 {
		s.logger.Info("stale runs closed", "story_id", storyID, "closed", result.Closed, "failed", result.Failed, "mode", mode)
	}
	return result, nil
}

// recordClosures emits metrics and events for every run the agent closed,
// including those closed before an interrupted sweep stopped.
func (s *Service) recordClosures(storyID string, result autonomy.OutcomeAgentResult) {
	for _, p := range result.Proposals {
		switch p.Status {
		case autonomy.ClosureClosed:
			runsClosedTotal.WithLabelValues(store.ClosedByOutcomeAgent).Inc()
			decision := p.SuggestedOutcomeDecision
			s.publishRunClosed(&store.Run{ID: p.RunID, StoryID: storyID, OutcomeDecision: &decision, ClosedBy: store.ClosedByOutcomeAgent})
		case autonomy.ClosureFailed:
			s.logger.Error("failed to close stale run", "story_id", storyID, "run_id", p.RunID, "error", p.Error)
		}
	}
}

type BatchItem struct {
	StoryID string                 `json:"story_id"`
	State   *autonomy.DerivedState `json:"state,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// EvaluateBatch evaluates stories concurrently. One story failing does not fail the batch.
func (s *Service) EvaluateBatch(ctx context.Context, storyIDs []string, req EvaluateRequest) ([]BatchItem, error) {
	if len(storyIDs) == 0 {
		return nil, fmt.Errorf("%w: story_ids is required", ErrInvalidRequest)
	}
	if len(storyIDs) > maxBatchStories {
		return nil, fmt.Errorf("%w: at most %d stories per batch", ErrInvalidRequest, maxBatchStories)
	}
	if _, err := s.baseInput(storyIDs[0], req); err != nil {
		return nil, err
	}

	ctx, span := slotel.StartSpan(ctx, s.tracer, "loop.evaluate_batch", attribute.Int("storyloop.batch.size", len(storyIDs)))
	defer span.End()

	items := make([]BatchItem, len(storyIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, id := range storyIDs {
		g.Go(func() error {
			items[i].StoryID = id
			state, err := s.Evaluate(gctx, id, req)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].State = &state
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) Stats(ctx context.Context) (*store.RunStats, error) {
	return s.store.GetStats(ctx)
}

// SetupSubscriptions re-evaluates a story whenever the scorecard publishes new metrics.
func (s *Service) SetupSubscriptions(ctx context.Context) {
	if s.hermes == nil {
		return
	}
	_ = s.hermes.Subscribe(hermes.SubjectMetricsUpdated, func(_ string, data []byte) {
		var ev hermes.MetricsUpdatedEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.StoryID == "" {
			s.logger.Warn("invalid metrics update event", "error", err)
			return
		}
		if _, err := s.Evaluate(ctx, ev.StoryID, EvaluateRequest{}); err != nil {
			s.logger.Error("re-evaluation after metrics update failed", "story_id", ev.StoryID, "error", err)
		}
	})
}
