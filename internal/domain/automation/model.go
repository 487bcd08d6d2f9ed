package automation

import (
	"errors"
	"fmt"
	"time"

	"mccenter/internal/domain/apperr"
	"mccenter/internal/domain/notification"
)

// Job type constants.
const (
	JobAdminDigest   = "admin_digest"
	JobStudentNotice = "student_notice"
)

// DefaultTime is the daily run time of seeded jobs.
const DefaultTime = "07:00"

// Domain errors
var (
	ErrUnknownJob      = errors.New("job type must be admin_digest or student_notice")
	ErrInvalidTime     = errors.New("time must be formatted HH:MM")
	ErrInvalidTimezone = errors.New("timezone is not a known IANA zone")
)

// Job is the persisted configuration of one daily automated dispatch.
// It is read by an external scheduler; nothing in this service fires it.
type Job struct {
	Type      string     `json:"type"`
	Enabled   bool       `json:"enabled"`
	Time      string     `json:"time"`     // HH:MM in Timezone
	Timezone  string     `json:"timezone"` // IANA name
	LastRun   *time.Time `json:"lastRun"`
	NextRun   *time.Time `json:"nextRun"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Validate checks the job configuration.
// PRE: Job struct is populated
// POST: Returns nil if valid, an apperr.ValidationError otherwise
func (j *Job) Validate() error {
	if j.Type != JobAdminDigest && j.Type != JobStudentNotice {
		return apperr.Invalid("type", ErrUnknownJob)
	}
	if _, err := time.Parse("15:04", j.Time); err != nil {
		return apperr.Invalid("time", ErrInvalidTime)
	}
	if _, err := time.LoadLocation(j.Timezone); err != nil || j.Timezone == "" {
		return apperr.Invalid("timezone", ErrInvalidTimezone)
	}
	return nil
}

// Audience returns the dispatch audience the job notifies.
func (j *Job) Audience() string {
	if j.Type == JobAdminDigest {
		return notification.AudienceAdmin
	}
	return notification.AudienceStudent
}

// Reschedule recomputes NextRun from now; a disabled job has no next run.
// PRE: j passes Validate
// POST: NextRun is nil when disabled, else strictly after now
func (j *Job) Reschedule(now time.Time) error {
	if !j.Enabled {
		j.NextRun = nil
		return nil
	}
	next, err := NextRunAfter(now, j.Time, j.Timezone)
	if err != nil {
		return err
	}
	j.NextRun = &next
	return nil
}

// Due reports whether an enabled job should fire at now.
func (j *Job) Due(now time.Time) bool {
	return j.Enabled && j.NextRun != nil && !j.NextRun.After(now)
}

// NextRunAfter returns today at hhmm in tz if that instant is still ahead of
// now, otherwise the same wall time tomorrow.
// PRE: hhmm is HH:MM; tz is an IANA zone name
// POST: Returns an instant strictly after now, expressed in tz
func NextRunAfter(now time.Time, hhmm, tz string) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, apperr.Invalid("timezone", fmt.Errorf("%w: %s", ErrInvalidTimezone, tz))
	}
	clock, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, apperr.Invalid("time", ErrInvalidTime)
	}
	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	if candidate.After(now) {
		return candidate, nil
	}
	return time.Date(local.Year(), local.Month(), local.Day()+1, clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

// DefaultJobs returns the seeded, disabled jobs for a business timezone.
func DefaultJobs(tz string) []Job {
	return []Job{
		{Type: JobAdminDigest, Time: DefaultTime, Timezone: tz},
		{Type: JobStudentNotice, Time: DefaultTime, Timezone: tz},
	}
}
