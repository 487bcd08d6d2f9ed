package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mccenter/internal/domain/apperr"
	"mccenter/internal/domain/calendar"
)

// Day of week constants
const (
	Monday    = "monday"
	Tuesday   = "tuesday"
	Wednesday = "wednesday"
	Thursday  = "thursday"
	Friday    = "friday"
	Saturday  = "saturday"
	Sunday    = "sunday"
)

// ValidDays contains all valid day values.
var ValidDays = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdays = map[string]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

// Status constants for a schedule and its sessions.
const (
	StatusScheduled = "scheduled"
	StatusEnrolling = "enrolling"
	StatusFull      = "full"
	StatusFinished  = "finished"
	StatusPostponed = "postponed"
)

// ValidStatuses contains all valid status values.
var ValidStatuses = []string{StatusScheduled, StatusEnrolling, StatusFull, StatusFinished, StatusPostponed}

// Domain errors
var (
	ErrEmptyCourseID     = errors.New("course ID cannot be empty")
	ErrEmptyClassName    = errors.New("class name cannot be empty")
	ErrInvalidDay        = errors.New("day must be a valid day of the week")
	ErrInvalidTime       = errors.New("time must be formatted HH:MM")
	ErrEndBeforeStart    = errors.New("end time must be after start time")
	ErrInvalidDateRange  = errors.New("start date must be before end date")
	ErrEmptyPattern      = errors.New("weekly pattern cannot be empty")
	ErrNoSessions        = errors.New("no session falls inside the date range")
	ErrInvalidStatus     = errors.New("status must be one of scheduled, enrolling, full, finished, postponed")
	ErrNegativeCapacity  = errors.New("max students cannot be negative")
	ErrNegativeTotal     = errors.New("total sessions cannot be negative")
	ErrElapsedSessions   = errors.New("change would invalidate sessions that already took place")
	ErrVersionConflict   = errors.New("schedule was modified concurrently")
	ErrScheduleNotExists = errors.New("schedule does not exist")
)

// Slot is one entry of a weekly meeting pattern.
type Slot struct {
	DayOfWeek string `json:"dayOfWeek" bson:"dayOfWeek"`
	StartTime string `json:"startTime" bson:"startTime"` // HH:MM
	EndTime   string `json:"endTime" bson:"endTime"`     // HH:MM
}

// Instructor is the person leading a class.
type Instructor struct {
	Name  string `json:"name" bson:"name"`
	Email string `json:"email,omitempty" bson:"email,omitempty"`
	Phone string `json:"phone,omitempty" bson:"phone,omitempty"`
}

// Session is one dated occurrence of a schedule. It is owned by its
// ClassSchedule and has no identity outside it.
type Session struct {
	SessionNumber int    `json:"sessionNumber" bson:"sessionNumber"`
	Date          string `json:"date" bson:"date"` // YYYY-MM-DD, business timezone
	DayOfWeek     string `json:"dayOfWeek" bson:"dayOfWeek"`
	StartTime     string `json:"startTime" bson:"startTime"`
	EndTime       string `json:"endTime" bson:"endTime"`
	Status        string `json:"status,omitempty" bson:"status,omitempty"` // empty inherits the schedule status
}

// ClassSchedule is a cohort with a fixed date range and a recurring weekly
// pattern. Its generated sessions are stored inside it.
type ClassSchedule struct {
	ID              string     `json:"id"`
	CourseID        string     `json:"courseId"`
	ClassName       string     `json:"className"`
	StartDate       string     `json:"startDate"`
	EndDate         string     `json:"endDate"`
	WeeklyPattern   []Slot     `json:"weeklyPattern"`
	Locations       []string   `json:"locations"`
	Instructor      Instructor `json:"instructor"`
	MaxStudents     int        `json:"maxStudents"`
	CurrentStudents int        `json:"currentStudents"` // cached; live roster counts win
	Status          string     `json:"status"`
	TotalSessions   int        `json:"totalSessions"`
	Sessions        []Session  `json:"sessions"`
	IsActive        bool       `json:"isActive"`
	IsDeleted       bool       `json:"isDeleted"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Validate checks the schedule definition, not its sessions.
// PRE: ClassSchedule struct is populated
// POST: Returns nil if valid, an apperr.ValidationError otherwise
func (s *ClassSchedule) Validate() error {
	if strings.TrimSpace(s.CourseID) == "" {
		return apperr.Invalid("courseId", ErrEmptyCourseID)
	}
	if strings.TrimSpace(s.ClassName) == "" {
		return apperr.Invalid("className", ErrEmptyClassName)
	}
	if s.Status != "" && !isValidStatus(s.Status) {
		return apperr.Invalid("status", ErrInvalidStatus)
	}
	if s.MaxStudents < 0 {
		return apperr.Invalid("maxStudents", ErrNegativeCapacity)
	}
	if s.TotalSessions < 0 {
		return apperr.Invalid("totalSessions", ErrNegativeTotal)
	}
	if _, _, err := parseRange(s.StartDate, s.EndDate); err != nil {
		return err
	}
	return validatePattern(s.WeeklyPattern)
}

// EffectiveStatus returns the session's own status when overridden,
// else the schedule's.
func (s *ClassSchedule) EffectiveStatus(sess Session) string {
	if sess.Status != "" {
		return sess.Status
	}
	if s.Status == "" {
		return StatusScheduled
	}
	return s.Status
}

// SessionsBetween returns the sessions dated within [from, to], in order.
// INVARIANT: ClassSchedule is not mutated
func (s *ClassSchedule) SessionsBetween(from, to string) []Session {
	var out []Session
	for _, sess := range s.Sessions {
		if calendar.InRange(sess.Date, from, to) {
			out = append(out, sess)
		}
	}
	return out
}

// Location joins the schedule's locations for display.
func (s *ClassSchedule) Location() string {
	var parts []string
	for _, l := range s.Locations {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, ", ")
}

// NormalizeDay lowercases and trims a weekday label.
func NormalizeDay(day string) string {
	return strings.ToLower(strings.TrimSpace(day))
}

// DurationMinutes returns a slot's length.
// PRE: StartTime and EndTime are in HH:MM format
// POST: Returns minutes, or error if times can't be parsed
func (sl Slot) DurationMinutes() (int, error) {
	start, err := time.Parse("15:04", sl.StartTime)
	if err != nil {
		return 0, fmt.Errorf("invalid start time %q: %w", sl.StartTime, err)
	}
	end, err := time.Parse("15:04", sl.EndTime)
	if err != nil {
		return 0, fmt.Errorf("invalid end time %q: %w", sl.EndTime, err)
	}
	return int(end.Sub(start).Minutes()), nil
}

func validatePattern(pattern []Slot) error {
	if len(pattern) == 0 {
		return apperr.Invalid("weeklyPattern", ErrEmptyPattern)
	}
	for i, sl := range pattern {
		field := fmt.Sprintf("weeklyPattern[%d]", i)
		if _, ok := weekdays[NormalizeDay(sl.DayOfWeek)]; !ok {
			return apperr.Invalid(field+".dayOfWeek", ErrInvalidDay)
		}
		mins, err := sl.DurationMinutes()
		if err != nil {
			return apperr.Invalid(field, ErrInvalidTime)
		}
		if mins <= 0 {
			return apperr.Invalid(field, ErrEndBeforeStart)
		}
	}
	return nil
}

func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := calendar.ParseDate(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Invalid("startDate", err)
	}
	end, err := calendar.ParseDate(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Invalid("endDate", err)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, apperr.Invalid("startDate", ErrInvalidDateRange)
	}
	return start, end, nil
}

func isValidStatus(status string) bool {
	for _, v := range ValidStatuses {
		if v == status {
			return true
		}
	}
	return false
}
