package schedule

import (
	"context"

	domain "mccenter/internal/domain/schedule"
)

// Store persists ClassSchedule documents together with their embedded sessions.
type Store interface {
	// GetByID retrieves a schedule, including soft-deleted ones.
	// PRE: id is non-empty
	// POST: Returns the schedule or an apperr.NotFoundError
	GetByID(ctx context.Context, id string) (domain.ClassSchedule, error)

	// Save inserts or updates a schedule under optimistic concurrency.
	// PRE: value.Version is the version last read (0 for a new schedule)
	// POST: Stored with Version = value.Version+1, or ErrVersionConflict
	Save(ctx context.Context, value domain.ClassSchedule) error

	// SoftDelete flags a schedule as deleted; its row is kept.
	// PRE: id is non-empty
	// POST: IsDeleted is true, or an apperr.NotFoundError
	SoftDelete(ctx context.Context, id string) error

	// List returns every non-deleted schedule ordered by start date.
	List(ctx context.Context) ([]domain.ClassSchedule, error)

	// ListActiveOnDate returns active, non-deleted schedules with a session on date.
	// INVARIANT: Store state is not mutated
	ListActiveOnDate(ctx context.Context, date string) ([]domain.ClassSchedule, error)

	// ListActiveInRange returns active, non-deleted schedules with a session in
	// [from, to] or whose start date falls in [from, to].
	// INVARIANT: Store state is not mutated
	ListActiveInRange(ctx context.Context, from, to string) ([]domain.ClassSchedule, error)
}
