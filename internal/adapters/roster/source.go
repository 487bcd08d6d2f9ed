// Package roster provides the sources the roster resolver reads students
// from: the remote roster service and a Redis read-through cache over any
// source. The local student table lives in storage/student.
package roster

import (
	"context"

	"mccenter/internal/domain/roster"
)

// Source returns the students matching a filter.
type Source interface {
	ListStudents(ctx context.Context, filter roster.Filter) ([]roster.Student, error)
}
