package course

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"mccenter/internal/adapters/storage"
	"mccenter/internal/domain/apperr"
	domain "mccenter/internal/domain/course"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new course store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Course by its ID.
// PRE: id is non-empty
// POST: Returns the course or an apperr.NotFoundError
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Course, error) {
	var c domain.Course
	err := s.db.QueryRowContext(ctx, `SELECT id, title, slug, price FROM course WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &c.Slug, &c.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Course{}, apperr.NotFound("course", id)
	}
	return c, err
}

// GetByIDs loads several courses in one query. Unknown ids are absent from
// the result rather than an error.
// PRE: none
// POST: Returns a map keyed by course id
func (s *SQLiteStore) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Course, error) {
	out := make(map[string]domain.Course, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, slug, price FROM course WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Slug, &c.Price); err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// Save persists a Course.
// PRE: value has been validated
// POST: Course is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, value domain.Course) error {
	if err := value.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO course (id, title, slug, price) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, slug=excluded.slug, price=excluded.price`,
		value.ID, value.Title, value.Slug, value.Price)
	return err
}
