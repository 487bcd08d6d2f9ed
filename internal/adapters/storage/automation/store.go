package automation

import (
	"context"

	domain "mccenter/internal/domain/automation"
)

// Store persists automation job configuration.
type Store interface {
	Get(ctx context.Context, jobType string) (domain.Job, error)
	List(ctx context.Context) ([]domain.Job, error)
	Save(ctx context.Context, value domain.Job) error
	SeedDefaults(ctx context.Context, jobs []domain.Job) error
}
