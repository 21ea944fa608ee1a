package loop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MikeSquared-Agency/Storyloop/internal/autonomy"
	"github.com/MikeSquared-Agency/Storyloop/internal/config"
	"github.com/MikeSquared-Agency/Storyloop/internal/hermes"
)

const sweepTimeout = 5 * time.Minute

// Sweeper runs the outcome-closing agent on a cron schedule for every story
// with open runs.
type Sweeper struct {
	svc    *Service
	cfg    config.SweeperConfig
	cron   *cron.Cron
	logger *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSweeper(svc *Service, cfg config.SweeperConfig, logger *slog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		svc:    svc,
		cfg:    cfg,
		cron:   cron.New(),
		logger: logger,
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.tick); err != nil {
		return nil, fmt.Errorf("sweeper schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("stale-run sweeper started", "schedule", s.cfg.Schedule, "mode", s.cfg.Mode)
}

// Stop cancels an in-flight sweep and waits for it to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

func (s *Sweeper) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	s.RunOnce(ctx)
}

type SweepReport struct {
	Stories int `json:"stories"`
	Closed  int `json:"closed"`
	Failed  int `json:"failed"`
	Errors  int `json:"errors"`
}

// RunOnce sweeps every story with open runs once.
func (s *Sweeper) RunOnce(ctx context.Context) SweepReport {
	var report SweepReport
	stories, err := s.svc.store.ListStoriesWithOpenRuns(ctx)
	if err != nil {
		s.logger.Error("failed to list stories with open runs", "error", err)
		report.Errors++
		return report
	}

	req := CloseStaleRequest{
		Mode:                autonomy.Mode(s.cfg.Mode),
		OutcomeAgentOptions: autonomy.OutcomeAgentOptions{MaxRuns: s.cfg.MaxRuns},
	}
	for _, storyID := range stories {
		if ctx.Err() != nil {
			break
		}
		report.Stories++
		res, err := s.svc.CloseStale(ctx, storyID, req)
		if err != nil {
			s.logger.Warn("sweep failed for story", "story_id", storyID, "error", err)
			report.Errors++
			continue
		}
		report.Closed += res.Closed
		report.Failed += res.Failed
	}

	sweeperRunsTotal.Inc()
	sweeperLastRun.SetToCurrentTime()
	s.publishStats(ctx)
	s.logger.Info("stale-run sweep finished", "stories", report.Stories, "closed", report.Closed,
		"failed", report.Failed, "errors", report.Errors)
	return report
}

func (s *Sweeper) publishStats(ctx context.Context) {
	if s.svc.hermes == nil {
		return
	}
	stats, err := s.svc.Stats(ctx)
	if err != nil || stats == nil {
		return
	}
	_ = s.svc.hermes.Publish(hermes.SubjectLoopStats, hermes.StatsEvent{
		Planned:      stats.TotalPlanned,
		InProgress:   stats.TotalInProgress,
		Completed:    stats.TotalCompleted,
		PositiveRate: stats.PositiveRate,
		Timestamp:    s.svc.now().UTC(),
	})
}
