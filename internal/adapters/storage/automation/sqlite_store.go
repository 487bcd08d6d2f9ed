package automation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mccenter/internal/adapters/storage"
	"mccenter/internal/domain/apperr"
	domain "mccenter/internal/domain/automation"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new automation job store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get retrieves a job by type.
// PRE: jobType is non-empty
// POST: Returns the job or an apperr.NotFoundError
// INVARIANT: Store state is not mutated
func (s *SQLiteStore) Get(ctx context.Context, jobType string) (domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT type, enabled, run_time, timezone, last_run, next_run, updated_at
		FROM automation_job
		WHERE type = ?
	`, jobType)
	job, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, apperr.NotFound("automation job", jobType)
	}
	return job, err
}

// List returns all jobs.
// PRE: none
// POST: Returns all persisted jobs sorted by type
// INVARIANT: Store state is not mutated
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, enabled, run_time, timezone, last_run, next_run, updated_at
		FROM automation_job
		ORDER BY type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Save upserts a job.
// PRE: value passes Validate
// POST: Job is persisted (insert or update)
// INVARIANT: No other jobs are modified
func (s *SQLiteStore) Save(ctx context.Context, value domain.Job) error {
	if err := value.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automation_job (type, enabled, run_time, timezone, last_run, next_run, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type) DO UPDATE SET
			enabled=excluded.enabled,
			run_time=excluded.run_time,
			timezone=excluded.timezone,
			last_run=excluded.last_run,
			next_run=excluded.next_run,
			updated_at=excluded.updated_at
	`,
		value.Type,
		boolToInt(value.Enabled),
		value.Time,
		value.Timezone,
		formatOptional(value.LastRun),
		formatOptional(value.NextRun),
		value.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save automation_job: %w", err)
	}
	return nil
}

// SeedDefaults inserts jobs that do not exist yet; configured jobs are kept.
// PRE: every job passes Validate
// POST: one row per job type exists
func (s *SQLiteStore) SeedDefaults(ctx context.Context, jobs []domain.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, job := range jobs {
		if err := job.Validate(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO automation_job (type, enabled, run_time, timezone, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(type) DO NOTHING
		`, job.Type, boolToInt(job.Enabled), job.Time, job.Timezone, job.UpdatedAt.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("seed automation_job %s: %w", job.Type, err)
		}
	}
	return tx.Commit()
}

func scanJob(scan func(dest ...any) error) (domain.Job, error) {
	var job domain.Job
	var enabled int
	var lastRun, nextRun sql.NullString
	var updatedAt string
	if err := scan(&job.Type, &enabled, &job.Time, &job.Timezone, &lastRun, &nextRun, &updatedAt); err != nil {
		return domain.Job{}, err
	}
	job.Enabled = enabled != 0
	job.LastRun = parseOptional(lastRun)
	job.NextRun = parseOptional(nextRun)
	job.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return job, nil
}

func formatOptional(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseOptional(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
