package projections

import (
	"context"
	"log/slog"
	"sort"

	"mccenter/internal/domain/apperr"
	"mccenter/internal/domain/calendar"
	"mccenter/internal/domain/course"
	"mccenter/internal/domain/roster"
	"mccenter/internal/domain/schedule"
)

// SessionView is one session enriched with its schedule and course at read time.
type SessionView struct {
	ScheduleID      string              `json:"scheduleId"`
	CourseID        string              `json:"courseId"`
	CourseTitle     string              `json:"courseTitle,omitempty"`
	Price           int64               `json:"price"`
	ClassName       string              `json:"className"`
	SessionNumber   int                 `json:"sessionNumber"`
	TotalSessions   int                 `json:"totalSessions"`
	Date            string              `json:"date"`
	DayOfWeek       string              `json:"dayOfWeek"`
	StartTime       string              `json:"startTime"`
	EndTime         string              `json:"endTime"`
	Status          string              `json:"status"`
	Location        string              `json:"location"`
	Instructor      schedule.Instructor `json:"instructor"`
	MaxStudents     int                 `json:"maxStudents"`
	CurrentStudents int                 `json:"currentStudents"`
	StudentsLive    bool                `json:"studentsLive"` // false means CurrentStudents is the cached value
}

// DaySessionsDeps holds dependencies for QueryDaySessions.
type DaySessionsDeps struct {
	ScheduleStore ScheduleReader
	CourseStore   CourseReader
	Roster        RosterSource // optional; nil keeps cached counts
}

// DaySessionsResult is the flattened session list of one date.
type DaySessionsResult struct {
	Date     string        `json:"date"`
	Sessions []SessionView `json:"sessions"`
	Degraded bool          `json:"degraded"`
}

// QueryDaySessions returns every session on date from active, non-deleted
// schedules. Course and roster failures degrade the result instead of failing it.
// PRE: date is YYYY-MM-DD
// POST: Sessions sorted by start time, class name, schedule id; store
// failures are returned as errors
// INVARIANT: no state is mutated
func QueryDaySessions(ctx context.Context, date string, deps DaySessionsDeps) (DaySessionsResult, error) {
	if _, err := calendar.ParseDate(date); err != nil {
		return DaySessionsResult{}, invalidDate(err)
	}
	schedules, err := deps.ScheduleStore.ListActiveOnDate(ctx, date)
	if err != nil {
		return DaySessionsResult{}, err
	}
	schedules = liveSchedules(schedules)

	result := DaySessionsResult{Date: date, Sessions: []SessionView{}}
	courses, ok := loadCourses(ctx, schedules, deps.CourseStore)
	result.Degraded = !ok

	for i := range schedules {
		cs := &schedules[i]
		for _, sess := range cs.SessionsBetween(date, date) {
			result.Sessions = append(result.Sessions, newSessionView(cs, sess, courses[cs.CourseID]))
		}
	}

	if deps.Roster != nil && len(result.Sessions) > 0 {
		counts, err := QueryRosterCounts(ctx, classNames(schedules), roster.StatusStudying, deps.Roster)
		if err != nil {
			slog.Warn("calendar_degraded", "source", "roster", "date", date, "error", err)
			result.Degraded = true
		} else {
			for i := range result.Sessions {
				result.Sessions[i].CurrentStudents = counts[roster.NormalizeClassName(result.Sessions[i].ClassName)]
				result.Sessions[i].StudentsLive = true
			}
		}
	}

	sortSessions(result.Sessions)
	return result, nil
}

// MonthStats summarizes a month.
type MonthStats struct {
	TotalSessions     int            `json:"totalSessions"`
	TotalClasses      int            `json:"totalClasses"`
	TotalCapacity     int            `json:"totalCapacity"`
	StatusCounts      map[string]int `json:"statusCounts"`
	TotalStudents     int            `json:"totalStudents"`
	StudentsAvailable bool           `json:"studentsAvailable"`
	Degraded          bool           `json:"degraded"`
}

// MonthCalendarResult is the month view: sessions bucketed by date plus stats.
type MonthCalendarResult struct {
	CalendarData map[string][]SessionView `json:"calendarData"`
	Stats        MonthStats               `json:"stats"`
}

// MonthCalendarDeps holds dependencies for QueryMonthCalendar.
type MonthCalendarDeps struct {
	ScheduleStore ScheduleReader
	CourseStore   CourseReader
	Roster        RosterSource
}

// QueryMonthCalendar builds the month view. A schedule contributes when any
// session falls in the month or its start date does, so cohorts that began
// earlier or start late in the month are both counted. Capacity is summed
// once per schedule, not per session.
// PRE: 1 <= month <= 12
// POST: every bucket key is a date inside the month; roster failure leaves
// TotalStudents at 0 with Degraded set
// INVARIANT: no state is mutated; identical inputs over unchanged data give identical output
func QueryMonthCalendar(ctx context.Context, year, month int, deps MonthCalendarDeps) (MonthCalendarResult, error) {
	first, last, err := calendar.MonthBounds(year, month)
	if err != nil {
		return MonthCalendarResult{}, invalidDate(err)
	}
	schedules, err := deps.ScheduleStore.ListActiveInRange(ctx, first, last)
	if err != nil {
		return MonthCalendarResult{}, err
	}
	schedules = liveSchedules(schedules)

	result := MonthCalendarResult{
		CalendarData: make(map[string][]SessionView),
		Stats:        MonthStats{StatusCounts: make(map[string]int)},
	}
	courses, ok := loadCourses(ctx, schedules, deps.CourseStore)
	result.Stats.Degraded = !ok

	for i := range schedules {
		cs := &schedules[i]
		result.Stats.TotalClasses++
		result.Stats.TotalCapacity += cs.MaxStudents
		for _, sess := range cs.SessionsBetween(first, last) {
			view := newSessionView(cs, sess, courses[cs.CourseID])
			result.CalendarData[sess.Date] = append(result.CalendarData[sess.Date], view)
			result.Stats.TotalSessions++
			result.Stats.StatusCounts[view.Status]++
		}
	}
	for date := range result.CalendarData {
		sortSessions(result.CalendarData[date])
	}

	if len(schedules) > 0 && deps.Roster != nil {
		counts, err := QueryRosterCounts(ctx, classNames(schedules), roster.StatusStudying, deps.Roster)
		if err != nil {
			slog.Warn("calendar_degraded", "source", "roster", "year", year, "month", month, "error", err)
			result.Stats.Degraded = true
		} else {
			for _, n := range counts {
				result.Stats.TotalStudents += n
			}
			result.Stats.StudentsAvailable = true
		}
	} else if len(schedules) == 0 {
		result.Stats.StudentsAvailable = true
	}

	return result, nil
}

func invalidDate(err error) error {
	return apperr.Invalid("date", err)
}

func newSessionView(cs *schedule.ClassSchedule, sess schedule.Session, c course.Course) SessionView {
	return SessionView{
		ScheduleID:      cs.ID,
		CourseID:        cs.CourseID,
		CourseTitle:     c.Title,
		Price:           c.Price,
		ClassName:       cs.ClassName,
		SessionNumber:   sess.SessionNumber,
		TotalSessions:   cs.TotalSessions,
		Date:            sess.Date,
		DayOfWeek:       sess.DayOfWeek,
		StartTime:       sess.StartTime,
		EndTime:         sess.EndTime,
		Status:          cs.EffectiveStatus(sess),
		Location:        cs.Location(),
		Instructor:      cs.Instructor,
		MaxStudents:     cs.MaxStudents,
		CurrentStudents: cs.CurrentStudents,
	}
}

// liveSchedules drops deleted and inactive schedules a store may still return.
func liveSchedules(in []schedule.ClassSchedule) []schedule.ClassSchedule {
	out := in[:0:0]
	for _, cs := range in {
		if cs.IsActive && !cs.IsDeleted {
			out = append(out, cs)
		}
	}
	return out
}

// loadCourses fetches the courses of schedules; ok is false when the lookup failed.
func loadCourses(ctx context.Context, schedules []schedule.ClassSchedule, store CourseReader) (map[string]course.Course, bool) {
	if store == nil || len(schedules) == 0 {
		return map[string]course.Course{}, true
	}
	seen := make(map[string]bool)
	var ids []string
	for _, cs := range schedules {
		if !seen[cs.CourseID] {
			seen[cs.CourseID] = true
			ids = append(ids, cs.CourseID)
		}
	}
	courses, err := store.GetByIDs(ctx, ids)
	if err != nil {
		slog.Warn("calendar_degraded", "source", "course", "error", err)
		return map[string]course.Course{}, false
	}
	return courses, true
}

func classNames(schedules []schedule.ClassSchedule) []string {
	names := make([]string, 0, len(schedules))
	for _, cs := range schedules {
		names = append(names, cs.ClassName)
	}
	return names
}

func sortSessions(views []SessionView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.ClassName != b.ClassName {
			return a.ClassName < b.ClassName
		}
		return a.ScheduleID < b.ScheduleID
	})
}
