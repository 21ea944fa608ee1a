package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const runColumns = `id, story_id, created_by_user_id, sprint_objective, horizon_days,
	status, plan, baseline_metrics, outcome_metrics,
	outcome_decision, outcome_notes, closed_by,
	created_at, completed_at, updated_at`

func (s *PostgresStore) CreateRun(ctx context.Context, run *Run) error {
	planJSON, err := json.Marshal(run.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	baselineJSON, _ := json.Marshal(run.BaselineMetrics)

	return s.pool.QueryRow(ctx, `
		INSERT INTO story_runs (story_id, created_by_user_id, sprint_objective, horizon_days,
			status, plan, baseline_metrics)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		run.StoryID, run.CreatedByUserID, run.SprintObjective, run.HorizonDays,
		run.Status, planJSON, baselineJSON,
	).Scan(&run.ID, &run.CreatedAt, &run.UpdatedAt)
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := scanRun(s.pool.QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM story_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM story_runs WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.StoryID != "" {
		n++
		query += fmt.Sprintf(" AND story_id = $%d", n)
		args = append(args, filter.StoryID)
	}
	if filter.Status != nil {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*filter.Status))
	}

	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) UpdateRunOutcome(ctx context.Context, id uuid.UUID, update OutcomeUpdate) (*Run, error) {
	outcomeJSON, _ := json.Marshal(update.Metrics)
	run, err := scanRun(s.pool.QueryRow(ctx, `
		UPDATE story_runs SET
			status = 'completed',
			outcome_decision = $2, outcome_notes = $3, outcome_metrics = $4,
			closed_by = $5, completed_at = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+runColumns,
		id, string(update.Decision), update.Notes, outcomeJSON, update.ClosedBy, update.CompletedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (s *PostgresStore) ListStoriesWithOpenRuns(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT story_id FROM story_runs
		WHERE status IN ('planned', 'in_progress')
		ORDER BY story_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) GetStats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'planned' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN outcome_decision IN ('scale', 'iterate') THEN 1.0 ELSE 0.0 END)
				FILTER (WHERE status = 'completed' AND outcome_decision IS NOT NULL), 0),
			COUNT(DISTINCT story_id)
		FROM story_runs`,
	).Scan(&stats.TotalPlanned, &stats.TotalInProgress, &stats.TotalCompleted, &stats.PositiveRate, &stats.Stories)
	return stats, err
}

func scanRun(row pgx.Row) (*Run, error) {
	run := &Run{}
	var planJSON, baselineJSON, outcomeJSON []byte
	var decision, notes, closedBy sql.NullString
	if err := row.Scan(
		&run.ID, &run.StoryID, &run.CreatedByUserID, &run.SprintObjective, &run.HorizonDays,
		&run.Status, &planJSON, &baselineJSON, &outcomeJSON,
		&decision, &notes, &closedBy,
		&run.CreatedAt, &run.CompletedAt, &run.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := applyRunColumns(run, planJSON, baselineJSON, outcomeJSON, decision, notes, closedBy); err != nil {
		return nil, err
	}
	return run, nil
}

// applyRunColumns decodes the JSON and nullable columns shared by the SQL stores.
func applyRunColumns(run *Run, planJSON, baselineJSON, outcomeJSON []byte, decision, notes, closedBy sql.NullString) error {
	if len(planJSON) > 0 {
		if err := json.Unmarshal(planJSON, &run.Plan); err != nil {
			return fmt.Errorf("run %s: %w", run.ID, err)
		}
	}
	if len(baselineJSON) > 0 {
		_ = json.Unmarshal(baselineJSON, &run.BaselineMetrics)
	}
	if len(outcomeJSON) > 0 {
		_ = json.Unmarshal(outcomeJSON, &run.OutcomeMetrics)
	}
	if decision.Valid && decision.String != "" {
		d := OutcomeDecision(decision.String)
		run.OutcomeDecision = &d
	}
	if notes.Valid {
		run.OutcomeNotes = notes.String
	}
	if closedBy.Valid {
		run.ClosedBy = closedBy.String
	}
	return nil
}
