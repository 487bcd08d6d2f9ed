package outbox

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mccenter/internal/adapters/storage"
	"mccenter/internal/domain/apperr"
	domain "mccenter/internal/domain/outbox"
)

const dateLayout = time.RFC3339Nano

// readyLayout is fixed width so next_attempt_at compares correctly as text.
const readyLayout = "2006-01-02T15:04:05.000000000Z"

const selectColumns = `SELECT id, batch_date, recipient, role, subject, html, status, attempts, max_attempts,
	last_attempted_at, next_attempt_at, created_at, message_id, error_message FROM outbox`

// SQLiteStore implements the outbox Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new outbox store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an outbox entry by its ID.
// PRE: id is non-empty
// POST: Returns the entry or an apperr.NotFoundError
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, apperr.NotFound("outbox entry", id)
	}
	return e, err
}

// Save persists an outbox entry to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, e domain.Entry) error {
	var lastAttemptedAt any
	if !e.LastAttemptedAt.IsZero() {
		lastAttemptedAt = e.LastAttemptedAt.UTC().Format(dateLayout)
	}
	nextAttemptAt := ""
	if !e.NextAttemptAt.IsZero() {
		nextAttemptAt = e.NextAttemptAt.UTC().Format(readyLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox (id, batch_date, recipient, role, subject, html, status, attempts, max_attempts,
			last_attempted_at, next_attempt_at, created_at, message_id, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, attempts=excluded.attempts, max_attempts=excluded.max_attempts,
		   last_attempted_at=excluded.last_attempted_at, next_attempt_at=excluded.next_attempt_at, message_id=excluded.message_id,
		   error_message=excluded.error_message`,
		e.ID, e.BatchDate, e.Recipient, e.Role, e.Subject, e.HTML, e.Status, e.Attempts, e.MaxAttempts,
		lastAttemptedAt, nextAttemptAt, e.CreatedAt.UTC().Format(dateLayout), e.MessageID, e.ErrorMessage)
	return err
}

// ListPending returns entries awaiting delivery whose backoff has elapsed
// by now. Entries still backing off are not returned, so they cannot fill
// the batch ahead of ready ones.
// PRE: limit > 0
// POST: Returns up to limit entries ordered by next_attempt_at, then created_at
func (s *SQLiteStore) ListPending(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE status IN (?, ?) AND next_attempt_at <= ?
		 ORDER BY next_attempt_at ASC, created_at ASC LIMIT ?`,
		domain.StatusPending, domain.StatusRetrying, now.UTC().Format(readyLayout), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByStatus tallies entries per status.
// INVARIANT: Store state is not mutated
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanEntry(scan func(dest ...any) error) (domain.Entry, error) {
	var e domain.Entry
	var lastAttemptedAt sql.NullString
	var nextAttemptAt, createdAt string
	if err := scan(&e.ID, &e.BatchDate, &e.Recipient, &e.Role, &e.Subject, &e.HTML, &e.Status,
		&e.Attempts, &e.MaxAttempts, &lastAttemptedAt, &nextAttemptAt, &createdAt, &e.MessageID, &e.ErrorMessage); err != nil {
		return domain.Entry{}, err
	}
	if lastAttemptedAt.Valid && lastAttemptedAt.String != "" {
		e.LastAttemptedAt, _ = time.Parse(dateLayout, lastAttemptedAt.String)
	}
	if nextAttemptAt != "" {
		e.NextAttemptAt, _ = time.Parse(readyLayout, nextAttemptAt)
	}
	e.CreatedAt, _ = time.Parse(dateLayout, createdAt)
	return e, nil
}
