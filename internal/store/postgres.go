package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketops/rankpulse/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// --- Scheduled Analyses ---

const scheduleColumns = `id, owner_id, owner_name, keyword, analysis_type, engines, instructions,
	frequency, day_of_week, day_of_month, time_of_day, timezone,
	is_active, last_run_at, next_run_at, run_count, created_at, updated_at`

func scanSchedule(row pgx.Row) (*models.ScheduledAnalysis, error) {
	var sa models.ScheduledAnalysis
	err := row.Scan(&sa.ID, &sa.OwnerID, &sa.OwnerName, &sa.Keyword, &sa.AnalysisType,
		&sa.Engines, &sa.Instructions, &sa.Frequency, &sa.DayOfWeek, &sa.DayOfMonth,
		&sa.TimeOfDay, &sa.Timezone, &sa.IsActive, &sa.LastRunAt, &sa.NextRunAt,
		&sa.RunCount, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (s *PostgresStore) GetSchedule(ctx context.Context, id uuid.UUID) (*models.ScheduledAnalysis, error) {
	sa, err := scanSchedule(s.pool.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_analyses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sa, nil
}

func (s *PostgresStore) ListDueSchedules(ctx context.Context, now time.Time) ([]*models.ScheduledAnalysis, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scheduleColumns+`
		 FROM scheduled_analyses sa
		 WHERE sa.is_active
		   AND sa.next_run_at <= $1
		   AND NOT EXISTS (
		     SELECT 1 FROM scheduled_runs r
		     WHERE r.scheduled_analysis_id = sa.id AND r.status = 'running'
		   )
		 ORDER BY sa.next_run_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*models.ScheduledAnalysis
	for rows.Next() {
		sa, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, sa)
	}
	return schedules, rows.Err()
}

func (s *PostgresStore) AdvanceSchedule(ctx context.Context, scheduleID uuid.UUID, nextRunAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scheduled_analyses
		 SET last_run_at = NOW(), next_run_at = $2, run_count = run_count + 1, updated_at = NOW()
		 WHERE id = $1`, scheduleID, nextRunAt)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Scheduled Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, scheduleID uuid.UUID, scheduledFor time.Time) (*models.ScheduledRun, error) {
	run := &models.ScheduledRun{
		ID:                  uuid.New(),
		ScheduledAnalysisID: scheduleID,
		ScheduledFor:        scheduledFor,
		Status:              models.RunStatusRunning,
		StartedAt:           time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scheduled_runs (id, scheduled_analysis_id, scheduled_for, status, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.ScheduledAnalysisID, run.ScheduledFor, run.Status, run.StartedAt)
	if err != nil {
		// The partial unique index on (scheduled_analysis_id) WHERE status =
		// 'running' turns a lost race into a unique violation here.
		if isUniqueViolation(err) {
			return nil, ErrRunConflict
		}
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID uuid.UUID, resultID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scheduled_runs
		 SET status = 'completed', result_id = $2, completed_at = NOW()
		 WHERE id = $1 AND status = 'running'`, runID, resultID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID uuid.UUID, errorMessage string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scheduled_runs
		 SET status = 'failed', error_message = $2, completed_at = NOW()
		 WHERE id = $1 AND status = 'running'`, runID, errorMessage)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*models.ScheduledRun, error) {
	var r models.ScheduledRun
	err := s.pool.QueryRow(ctx,
		`SELECT id, scheduled_analysis_id, scheduled_for, status, started_at, completed_at, result_id, error_message
		 FROM scheduled_runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.ScheduledAnalysisID, &r.ScheduledFor, &r.Status,
		&r.StartedAt, &r.CompletedAt, &r.ResultID, &r.ErrorMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, scheduleID uuid.UUID, filter RunFilter) ([]*models.ScheduledRun, int, error) {
	conditions := []string{"scheduled_analysis_id = $1"}
	args := []any{scheduleID}
	argIdx := 2

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM scheduled_runs WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT id, scheduled_analysis_id, scheduled_for, status, started_at, completed_at, result_id, error_message
		 FROM scheduled_runs WHERE %s ORDER BY started_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ScheduledRun
	for rows.Next() {
		var r models.ScheduledRun
		if err := rows.Scan(&r.ID, &r.ScheduledAnalysisID, &r.ScheduledFor, &r.Status,
			&r.StartedAt, &r.CompletedAt, &r.ResultID, &r.ErrorMessage); err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, total, rows.Err()
}

func (s *PostgresStore) ReapStaleRuns(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scheduled_runs
		 SET status = 'failed', error_message = $2, completed_at = NOW()
		 WHERE status = 'running' AND started_at < $1`,
		olderThan, models.StuckRunError)
	if err != nil {
		return 0, fmt.Errorf("reap stale runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Analysis Results ---

func (s *PostgresStore) CreateAnalysisResult(ctx context.Context, result *models.AnalysisResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_results (id, run_id, scheduled_analysis_id, keyword, provider, model, summary, insights, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		result.ID, result.RunID, result.ScheduledAnalysisID, result.Keyword,
		result.Provider, result.Model, result.Summary, result.Insights, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("create analysis result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAnalysisResult(ctx context.Context, id uuid.UUID) (*models.AnalysisResult, error) {
	var r models.AnalysisResult
	err := s.pool.QueryRow(ctx,
		`SELECT id, run_id, scheduled_analysis_id, keyword, provider, model, summary, insights, created_at
		 FROM analysis_results WHERE id = $1`, id,
	).Scan(&r.ID, &r.RunID, &r.ScheduledAnalysisID, &r.Keyword, &r.Provider,
		&r.Model, &r.Summary, &r.Insights, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis result: %w", err)
	}
	return &r, nil
}

// isUniqueViolation checks if a pgx error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
