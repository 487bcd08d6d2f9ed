package orchestrators

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"mccenter/internal/domain/apperr"
	"mccenter/internal/domain/calendar"
	"mccenter/internal/domain/course"
	domain "mccenter/internal/domain/schedule"
)

// ScheduleStoreForOrchestrator defines the store interface needed by schedule writes.
type ScheduleStoreForOrchestrator interface {
	GetByID(ctx context.Context, id string) (domain.ClassSchedule, error)
	Save(ctx context.Context, value domain.ClassSchedule) error
	SoftDelete(ctx context.Context, id string) error
}

// CourseLookup resolves the course a schedule references.
type CourseLookup interface {
	GetByID(ctx context.Context, id string) (course.Course, error)
}

// ScheduleDefinition is the admin-editable part of a schedule.
// TotalSessions 0 means "run until EndDate" on create and "keep the stored
// count" on update.
type ScheduleDefinition struct {
	CourseID        string
	ClassName       string
	StartDate       string
	EndDate         string
	WeeklyPattern   []domain.Slot
	Locations       []string
	Instructor      domain.Instructor
	MaxStudents     int
	CurrentStudents int
	Status          string
	TotalSessions   int
	IsActive        bool
}

func (d ScheduleDefinition) applyTo(cs *domain.ClassSchedule) {
	cs.CourseID = d.CourseID
	cs.ClassName = d.ClassName
	cs.StartDate = d.StartDate
	cs.EndDate = d.EndDate
	cs.WeeklyPattern = d.WeeklyPattern
	cs.Locations = d.Locations
	cs.Instructor = d.Instructor
	cs.MaxStudents = d.MaxStudents
	cs.CurrentStudents = d.CurrentStudents
	cs.Status = d.Status
	if cs.Status == "" {
		cs.Status = domain.StatusScheduled
	}
	cs.TotalSessions = d.TotalSessions
	cs.IsActive = d.IsActive
}

// --- Create Schedule ---

// CreateScheduleDeps holds dependencies for CreateSchedule.
type CreateScheduleDeps struct {
	ScheduleStore ScheduleStoreForOrchestrator
	CourseStore   CourseLookup
	GenerateID    func() string
	Now           func() time.Time
}

// ExecuteCreateSchedule validates a definition, generates its sessions and stores it.
// PRE: def.CourseID references an existing course
// POST: Schedule stored at version 1 with sessions 1..N; nothing stored on error
func ExecuteCreateSchedule(ctx context.Context, def ScheduleDefinition, deps CreateScheduleDeps) (domain.ClassSchedule, error) {
	now := deps.Now()
	cs := domain.ClassSchedule{
		ID:        deps.GenerateID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	def.applyTo(&cs)

	if err := cs.Validate(); err != nil {
		return domain.ClassSchedule{}, err
	}
	if err := requireCourse(ctx, deps.CourseStore, cs.CourseID); err != nil {
		return domain.ClassSchedule{}, err
	}
	if err := cs.Generate(); err != nil {
		return domain.ClassSchedule{}, err
	}
	if err := deps.ScheduleStore.Save(ctx, cs); err != nil {
		return domain.ClassSchedule{}, err
	}
	cs.Version = 1

	slog.Info("schedule_event", "event", "created", "schedule_id", cs.ID, "class_name", cs.ClassName, "sessions", cs.TotalSessions)
	return cs, nil
}

// --- Update Schedule ---

// UpdateScheduleInput carries a full replacement definition and the version
// the caller last read.
type UpdateScheduleInput struct {
	ID         string
	Version    int
	Definition ScheduleDefinition
	// The caller omitted these fields; the stored values win over Definition's.
	KeepActive          bool
	KeepCurrentStudents bool
}

// UpdateScheduleDeps holds dependencies for UpdateSchedule.
type UpdateScheduleDeps struct {
	ScheduleStore ScheduleStoreForOrchestrator
	CourseStore   CourseLookup
	Location      *time.Location // business timezone, decides which sessions have elapsed
	Now           func() time.Time
}

// ExecuteUpdateSchedule replaces the editable fields of a schedule. Sessions are
// regenerated only when the dates, pattern or session count change, and then
// only from today on.
// PRE: input.Version is the version the caller read
// POST: Schedule stored at input.Version+1, or ErrVersionConflict when stale
// INVARIANT: sessions dated before today are never altered
func ExecuteUpdateSchedule(ctx context.Context, input UpdateScheduleInput, deps UpdateScheduleDeps) (domain.ClassSchedule, error) {
	existing, err := deps.ScheduleStore.GetByID(ctx, input.ID)
	if err != nil {
		return domain.ClassSchedule{}, err
	}
	if existing.IsDeleted {
		return domain.ClassSchedule{}, apperr.NotFound("schedule", input.ID)
	}
	if existing.Version != input.Version {
		return domain.ClassSchedule{}, domain.ErrVersionConflict
	}

	updated := existing
	input.Definition.applyTo(&updated)
	if input.Definition.TotalSessions == 0 {
		// An omitted count keeps the cohort size, also when the pattern or dates move.
		updated.TotalSessions = existing.TotalSessions
	}
	if input.KeepActive {
		updated.IsActive = existing.IsActive
	}
	if input.KeepCurrentStudents {
		updated.CurrentStudents = existing.CurrentStudents
	}
	if err := updated.Validate(); err != nil {
		return domain.ClassSchedule{}, err
	}
	if updated.CourseID != existing.CourseID {
		if err := requireCourse(ctx, deps.CourseStore, updated.CourseID); err != nil {
			return domain.ClassSchedule{}, err
		}
	}

	now := deps.Now()
	regenerated := domain.NeedsRegeneration(existing, updated)
	if regenerated {
		if err := updated.Regenerate(calendar.Today(now, deps.Location)); err != nil {
			return domain.ClassSchedule{}, err
		}
	}
	updated.UpdatedAt = now

	if err := deps.ScheduleStore.Save(ctx, updated); err != nil {
		return domain.ClassSchedule{}, err
	}
	updated.Version++

	slog.Info("schedule_event", "event", "updated", "schedule_id", updated.ID, "version", updated.Version, "regenerated", regenerated)
	return updated, nil
}

// --- Session Status ---

// SetSessionStatusInput overrides the status of one session.
// An empty Status clears the override.
type SetSessionStatusInput struct {
	ScheduleID    string
	Version       int
	SessionNumber int
	Status        string
}

// SetSessionStatusDeps holds dependencies for SetSessionStatus.
type SetSessionStatusDeps struct {
	ScheduleStore ScheduleStoreForOrchestrator
	Now           func() time.Time
}

// ExecuteSetSessionStatus sets or clears a single session's status override.
// PRE: SessionNumber is within 1..TotalSessions
// POST: Only the addressed session changes; version incremented
func ExecuteSetSessionStatus(ctx context.Context, input SetSessionStatusInput, deps SetSessionStatusDeps) (domain.ClassSchedule, error) {
	cs, err := deps.ScheduleStore.GetByID(ctx, input.ScheduleID)
	if err != nil {
		return domain.ClassSchedule{}, err
	}
	if cs.IsDeleted {
		return domain.ClassSchedule{}, apperr.NotFound("schedule", input.ScheduleID)
	}
	if cs.Version != input.Version {
		return domain.ClassSchedule{}, domain.ErrVersionConflict
	}
	if input.Status != "" && !validStatus(input.Status) {
		return domain.ClassSchedule{}, apperr.Invalid("status", domain.ErrInvalidStatus)
	}

	idx := -1
	for i, sess := range cs.Sessions {
		if sess.SessionNumber == input.SessionNumber {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ClassSchedule{}, apperr.NotFound("session", input.ScheduleID+"#"+strconv.Itoa(input.SessionNumber))
	}

	sessions := append([]domain.Session(nil), cs.Sessions...)
	sessions[idx].Status = input.Status
	cs.Sessions = sessions
	cs.UpdatedAt = deps.Now()

	if err := deps.ScheduleStore.Save(ctx, cs); err != nil {
		return domain.ClassSchedule{}, err
	}
	cs.Version++
	return cs, nil
}

// --- Delete Schedule ---

// DeleteScheduleDeps holds dependencies for DeleteSchedule.
type DeleteScheduleDeps struct {
	ScheduleStore ScheduleStoreForOrchestrator
}

// ExecuteDeleteSchedule soft-deletes a schedule. Repeating the delete is a no-op.
// PRE: id is non-empty
// POST: Schedule excluded from every calendar and dispatch path
func ExecuteDeleteSchedule(ctx context.Context, id string, deps DeleteScheduleDeps) error {
	if err := deps.ScheduleStore.SoftDelete(ctx, id); err != nil {
		return err
	}
	slog.Info("schedule_event", "event", "deleted", "schedule_id", id)
	return nil
}

// requireCourse maps a missing course to NotFound and any other lookup
// failure to a ResolutionError.
func requireCourse(ctx context.Context, store CourseLookup, id string) error {
	if store == nil {
		return nil
	}
	if _, err := store.GetByID(ctx, id); err != nil {
		if apperr.IsNotFound(err) {
			return err
		}
		return apperr.Unresolved("course", err)
	}
	return nil
}

func validStatus(status string) bool {
	for _, s := range domain.ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}
