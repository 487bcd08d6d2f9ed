package student

import (
	"context"
	"fmt"
	"strings"

	"mccenter/internal/adapters/storage"
	"mccenter/internal/domain/roster"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new student store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// ListStudents returns the students matching filter. Status and email
// preference are filtered in SQL; class names are matched after
// normalization because stored names carry inconsistent spacing and case.
// PRE: none
// POST: Returns normalized students ordered by full name
// INVARIANT: Store state is not mutated
func (s *SQLiteStore) ListStudents(ctx context.Context, filter roster.Filter) ([]roster.Student, error) {
	query := `SELECT id, full_name, email, class_name, status, course_type,
		receive_daily_schedule, email_recipient, parent_name, parent_email
		FROM student`
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "lower(trim(status)) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Status)))
	}
	if filter.EmailEnabled != nil {
		where = append(where, "receive_daily_schedule = ?")
		args = append(args, boolToInt(*filter.EmailEnabled))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY full_name, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	out := []roster.Student{}
	for rows.Next() {
		var st roster.Student
		var receive int
		if err := rows.Scan(
			&st.ID, &st.FullName, &st.Email, &st.Class, &st.Status, &st.CourseType,
			&receive, &st.EmailSettings.EmailRecipient, &st.ParentInfo.ParentName, &st.ParentInfo.ParentEmail,
		); err != nil {
			return nil, err
		}
		st.EmailSettings.ReceiveDailySchedule = receive != 0
		st.Normalize()
		if filter.Matches(st) {
			out = append(out, st)
		}
	}
	return out, rows.Err()
}

// Save persists a student record.
// PRE: value.ID is non-empty
// POST: Student is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, value roster.Student) error {
	if strings.TrimSpace(value.ID) == "" {
		return fmt.Errorf("save student: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO student (id, full_name, email, class_name, status, course_type,
			receive_daily_schedule, email_recipient, parent_name, parent_email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name=excluded.full_name, email=excluded.email, class_name=excluded.class_name,
			status=excluded.status, course_type=excluded.course_type,
			receive_daily_schedule=excluded.receive_daily_schedule,
			email_recipient=excluded.email_recipient,
			parent_name=excluded.parent_name, parent_email=excluded.parent_email`,
		value.ID, value.FullName, value.Email, value.Class, value.Status, value.CourseType,
		boolToInt(value.EmailSettings.ReceiveDailySchedule), value.EmailSettings.EmailRecipient,
		value.ParentInfo.ParentName, value.ParentInfo.ParentEmail)
	return err
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
