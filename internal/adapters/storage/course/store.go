package course

import (
	"context"

	domain "mccenter/internal/domain/course"
)

// Store persists Course state. The scheduling engine only reads courses;
// Save exists for seeding and tests.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Course, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Course, error)
	Save(ctx context.Context, value domain.Course) error
}
