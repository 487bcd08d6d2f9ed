package student

import (
	"context"

	"mccenter/internal/domain/roster"
)

// Store persists the local student roster.
type Store interface {
	ListStudents(ctx context.Context, filter roster.Filter) ([]roster.Student, error)
	Save(ctx context.Context, value roster.Student) error
}
