package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"mccenter/internal/adapters/storage"
	"mccenter/internal/domain/apperr"
	domain "mccenter/internal/domain/schedule"
)

const timeLayout = time.RFC3339Nano

const selectColumns = `SELECT id, course_id, class_name, start_date, end_date, weekly_pattern, locations,
	instructor, max_students, current_students, status, total_sessions, sessions,
	is_active, is_deleted, version, created_at, updated_at
	FROM class_schedule`

// SQLiteStore implements Store using SQLite. Sessions live in a JSON column
// and are filtered with the JSON1 functions.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new schedule store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a schedule by its ID.
// PRE: id is non-empty
// POST: Returns the schedule or an apperr.NotFoundError
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.ClassSchedule, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	cs, err := scanSchedule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ClassSchedule{}, apperr.NotFound("schedule", id)
	}
	return cs, err
}

// Save inserts a new schedule (Version 0) or updates an existing one when
// its stored version still matches.
// PRE: value has been validated; value.Version is the version last read
// POST: Row stored with version = value.Version+1, or ErrVersionConflict
func (s *SQLiteStore) Save(ctx context.Context, value domain.ClassSchedule) error {
	pattern, err := sonic.Marshal(nonNil(value.WeeklyPattern))
	if err != nil {
		return fmt.Errorf("encode weekly_pattern: %w", err)
	}
	locations, err := sonic.Marshal(nonNil(value.Locations))
	if err != nil {
		return fmt.Errorf("encode locations: %w", err)
	}
	instructor, err := sonic.Marshal(value.Instructor)
	if err != nil {
		return fmt.Errorf("encode instructor: %w", err)
	}
	sessions, err := sonic.Marshal(nonNil(value.Sessions))
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}

	var res sql.Result
	if value.Version == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO class_schedule (
				id, course_id, class_name, start_date, end_date, weekly_pattern, locations,
				instructor, max_students, current_students, status, total_sessions, sessions,
				is_active, is_deleted, version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			value.ID, value.CourseID, value.ClassName, value.StartDate, value.EndDate,
			string(pattern), string(locations), string(instructor),
			value.MaxStudents, value.CurrentStudents, value.Status, value.TotalSessions, string(sessions),
			boolToInt(value.IsActive), boolToInt(value.IsDeleted),
			value.CreatedAt.UTC().Format(timeLayout), value.UpdatedAt.UTC().Format(timeLayout),
		)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE class_schedule SET
				course_id = ?, class_name = ?, start_date = ?, end_date = ?, weekly_pattern = ?,
				locations = ?, instructor = ?, max_students = ?, current_students = ?, status = ?,
				total_sessions = ?, sessions = ?, is_active = ?, is_deleted = ?,
				version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			value.CourseID, value.ClassName, value.StartDate, value.EndDate, string(pattern),
			string(locations), string(instructor), value.MaxStudents, value.CurrentStudents, value.Status,
			value.TotalSessions, string(sessions), boolToInt(value.IsActive), boolToInt(value.IsDeleted),
			value.UpdatedAt.UTC().Format(timeLayout),
			value.ID, value.Version,
		)
	}
	if err != nil {
		return fmt.Errorf("save class_schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// SoftDelete flags a schedule as deleted and bumps its version.
// PRE: id is non-empty
// POST: is_deleted = 1, or an apperr.NotFoundError; deleting twice is a no-op
func (s *SQLiteStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE class_schedule SET is_deleted = 1, version = version + 1, updated_at = ?
		WHERE id = ? AND is_deleted = 0`,
		time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("delete class_schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.GetByID(ctx, id)
	return err
}

// List returns every non-deleted schedule.
// PRE: none
// POST: Ordered by start_date, class_name
func (s *SQLiteStore) List(ctx context.Context) ([]domain.ClassSchedule, error) {
	return s.query(ctx, selectColumns+` WHERE is_deleted = 0 ORDER BY start_date, class_name`)
}

// ListActiveOnDate returns active, non-deleted schedules with a session on date.
// PRE: date is YYYY-MM-DD
// POST: Ordered by class_name
func (s *SQLiteStore) ListActiveOnDate(ctx context.Context, date string) ([]domain.ClassSchedule, error) {
	return s.query(ctx, selectColumns+`
		WHERE is_active = 1 AND is_deleted = 0
		  AND EXISTS (SELECT 1 FROM json_each(class_schedule.sessions) WHERE json_extract(value, '$.date') = ?)
		ORDER BY class_name`, date)
}

// ListActiveInRange returns active, non-deleted schedules contributing to
// [from, to]: a session inside the range, or a start date inside it.
// PRE: from <= to, both YYYY-MM-DD
// POST: Ordered by start_date, class_name
func (s *SQLiteStore) ListActiveInRange(ctx context.Context, from, to string) ([]domain.ClassSchedule, error) {
	return s.query(ctx, selectColumns+`
		WHERE is_active = 1 AND is_deleted = 0
		  AND (
		    EXISTS (SELECT 1 FROM json_each(class_schedule.sessions)
		            WHERE json_extract(value, '$.date') BETWEEN ? AND ?)
		    OR start_date BETWEEN ? AND ?
		  )
		ORDER BY start_date, class_name`, from, to, from, to)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]domain.ClassSchedule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ClassSchedule{}
	for rows.Next() {
		cs, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func scanSchedule(scan func(dest ...any) error) (domain.ClassSchedule, error) {
	var cs domain.ClassSchedule
	var pattern, locations, instructor, sessions, createdAt, updatedAt string
	var isActive, isDeleted int
	if err := scan(
		&cs.ID, &cs.CourseID, &cs.ClassName, &cs.StartDate, &cs.EndDate,
		&pattern, &locations, &instructor,
		&cs.MaxStudents, &cs.CurrentStudents, &cs.Status, &cs.TotalSessions, &sessions,
		&isActive, &isDeleted, &cs.Version, &createdAt, &updatedAt,
	); err != nil {
		return domain.ClassSchedule{}, err
	}
	if err := sonic.UnmarshalString(pattern, &cs.WeeklyPattern); err != nil {
		return domain.ClassSchedule{}, fmt.Errorf("decode weekly_pattern of %s: %w", cs.ID, err)
	}
	if err := sonic.UnmarshalString(locations, &cs.Locations); err != nil {
		return domain.ClassSchedule{}, fmt.Errorf("decode locations of %s: %w", cs.ID, err)
	}
	if err := sonic.UnmarshalString(instructor, &cs.Instructor); err != nil {
		return domain.ClassSchedule{}, fmt.Errorf("decode instructor of %s: %w", cs.ID, err)
	}
	if err := sonic.UnmarshalString(sessions, &cs.Sessions); err != nil {
		return domain.ClassSchedule{}, fmt.Errorf("decode sessions of %s: %w", cs.ID, err)
	}
	cs.IsActive = isActive != 0
	cs.IsDeleted = isDeleted != 0
	cs.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	cs.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return cs, nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
