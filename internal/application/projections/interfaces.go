package projections

import (
	"context"

	"mccenter/internal/domain/course"
	"mccenter/internal/domain/roster"
	"mccenter/internal/domain/schedule"
)

// ScheduleReader is the read side of the schedule store used by calendar queries.
type ScheduleReader interface {
	ListActiveOnDate(ctx context.Context, date string) ([]schedule.ClassSchedule, error)
	ListActiveInRange(ctx context.Context, from, to string) ([]schedule.ClassSchedule, error)
}

// CourseReader resolves the courses schedules belong to.
type CourseReader interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]course.Course, error)
}

// RosterSource returns students matching a filter.
type RosterSource interface {
	ListStudents(ctx context.Context, filter roster.Filter) ([]roster.Student, error)
}
