package outbox

import (
	"context"
	"time"

	domain "mccenter/internal/domain/outbox"
)

// Store defines the interface for redelivery queue persistence.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	// PRE: id is non-empty
	// POST: Returns the entry or an error if not found
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save persists an outbox entry to the database.
	// PRE: entity has been validated
	// POST: Entity is persisted (insert or update)
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns pending or retrying entries that are ready at now.
	// PRE: limit > 0
	// POST: Returns up to limit entries, soonest-ready first
	ListPending(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error)

	// CountByStatus tallies entries per status.
	CountByStatus(ctx context.Context) (map[string]int, error)
}
