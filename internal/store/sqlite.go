package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// sqliteTime is fixed-width so that text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore keeps run history in a single SQLite file for single-node deployments.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection keeps writes ordered.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS story_runs (
			id TEXT PRIMARY KEY,
			story_id TEXT NOT NULL,
			created_by_user_id TEXT NOT NULL DEFAULT '',
			sprint_objective TEXT NOT NULL DEFAULT '',
			horizon_days INTEGER NOT NULL DEFAULT 7,
			status TEXT NOT NULL,
			plan TEXT,
			baseline_metrics TEXT,
			outcome_metrics TEXT,
			outcome_decision TEXT,
			outcome_notes TEXT,
			closed_by TEXT,
			created_at TEXT NOT NULL,
			completed_at TEXT,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_story_runs_story_created ON story_runs (story_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_story_runs_status ON story_runs (status);
	`)
	if err != nil {
		return fmt.Errorf("create sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	planJSON, err := json.Marshal(run.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	baselineJSON, _ := json.Marshal(run.BaselineMetrics)

	id := uuid.New()
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO story_runs (id, story_id, created_by_user_id, sprint_objective, horizon_days,
			status, plan, baseline_metrics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), run.StoryID, run.CreatedByUserID, run.SprintObjective, run.HorizonDays,
		string(run.Status), string(planJSON), string(baselineJSON),
		now.Format(sqliteTime), now.Format(sqliteTime),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	run.ID = id
	run.CreatedAt = now
	run.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := scanSQLiteRun(s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM story_runs WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM story_runs WHERE 1=1`
	var args []interface{}
	if filter.StoryID != "" {
		query += " AND story_id = ?"
		args = append(args, filter.StoryID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) UpdateRunOutcome(ctx context.Context, id uuid.UUID, update OutcomeUpdate) (*Run, error) {
	outcomeJSON, _ := json.Marshal(update.Metrics)
	res, err := s.db.ExecContext(ctx, `
		UPDATE story_runs SET
			status = 'completed',
			outcome_decision = ?, outcome_notes = ?, outcome_metrics = ?,
			closed_by = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`,
		string(update.Decision), update.Notes, string(outcomeJSON),
		update.ClosedBy, update.CompletedAt.UTC().Format(sqliteTime), s.now().UTC().Format(sqliteTime),
		id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("update run outcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetRun(ctx, id)
}

func (s *SQLiteStore) ListStoriesWithOpenRuns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
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

func (s *SQLiteStore) GetStats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}
	var positive sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'planned' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			AVG(CASE WHEN status = 'completed' AND outcome_decision IS NOT NULL AND outcome_decision != ''
				THEN (CASE WHEN outcome_decision IN ('scale', 'iterate') THEN 1.0 ELSE 0.0 END) END),
			COUNT(DISTINCT story_id)
		FROM story_runs`,
	).Scan(&stats.TotalPlanned, &stats.TotalInProgress, &stats.TotalCompleted, &positive, &stats.Stories)
	if err != nil {
		return nil, err
	}
	if positive.Valid {
		stats.PositiveRate = positive.Float64
	}
	return stats, nil
}

func scanSQLiteRun(row interface{ Scan(dest ...any) error }) (*Run, error) {
	run := &Run{}
	var id, status string
	var planJSON, baselineJSON, outcomeJSON sql.NullString
	var decision, notes, closedBy sql.NullString
	var createdAt, updatedAt string
	var completedAt sql.NullString
	if err := row.Scan(
		&id, &run.StoryID, &run.CreatedByUserID, &run.SprintObjective, &run.HorizonDays,
		&status, &planJSON, &baselineJSON, &outcomeJSON,
		&decision, &notes, &closedBy,
		&createdAt, &completedAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	run.ID = parsed
	run.Status = RunStatus(status)
	if run.CreatedAt, err = time.Parse(sqliteTime, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if run.UpdatedAt, err = time.Parse(sqliteTime, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if completedAt.Valid && completedAt.String != "" {
		t, err := time.Parse(sqliteTime, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		run.CompletedAt = &t
	}
	if err := applyRunColumns(run,
		[]byte(planJSON.String), []byte(baselineJSON.String), []byte(outcomeJSON.String),
		decision, notes, closedBy); err != nil {
		return nil, err
	}
	return run, nil
}
