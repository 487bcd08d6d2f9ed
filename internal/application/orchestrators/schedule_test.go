package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"mccenter/internal/domain/apperr"
	"mccenter/internal/domain/course"
	"mccenter/internal/domain/schedule"
)

var createdAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func kidsDefinition() ScheduleDefinition {
	return ScheduleDefinition{
		CourseID:  "course-kids",
		ClassName: "MC Kids K12",
		StartDate: "2024-03-04",
		EndDate:   "2024-04-30",
		WeeklyPattern: []schedule.Slot{
			{DayOfWeek: "monday", StartTime: "18:00", EndTime: "19:30"},
			{DayOfWeek: "wednesday", StartTime: "18:00", EndTime: "19:30"},
		},
		Locations:     []string{"Room 1"},
		Instructor:    schedule.Instructor{Name: "Quang Huy"},
		MaxStudents:   12,
		TotalSessions: 6,
		IsActive:      true,
	}
}

func courseLookup() *mockCourseLookup {
	return &mockCourseLookup{courses: map[string]course.Course{
		"course-kids": {ID: "course-kids", Title: "MC for Kids", Slug: "mc-kids", Price: 4500000},
	}}
}

func createKids(t *testing.T, store *mockScheduleStore) schedule.ClassSchedule {
	t.Helper()
	cs, err := ExecuteCreateSchedule(context.Background(), kidsDefinition(), CreateScheduleDeps{
		ScheduleStore: store,
		CourseStore:   courseLookup(),
		GenerateID:    func() string { return "s-1" },
		Now:           fixedClock(createdAt),
	})
	if err != nil {
		t.Fatalf("ExecuteCreateSchedule: %v", err)
	}
	return cs
}

func sessionDates(cs schedule.ClassSchedule) []string {
	var out []string
	for _, s := range cs.Sessions {
		out = append(out, s.Date)
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExecuteCreateSchedule(t *testing.T) {
	store := newMockScheduleStore()
	cs := createKids(t, store)

	want := []string{"2024-03-04", "2024-03-06", "2024-03-11", "2024-03-13", "2024-03-18", "2024-03-20"}
	if got := sessionDates(cs); !sameStrings(got, want) {
		t.Errorf("session dates = %v, want %v", got, want)
	}
	if cs.Version != 1 || cs.Status != schedule.StatusScheduled {
		t.Errorf("version=%d status=%q", cs.Version, cs.Status)
	}
	stored := store.schedules["s-1"]
	if stored.Version != 1 || len(stored.Sessions) != 6 {
		t.Errorf("stored version=%d sessions=%d", stored.Version, len(stored.Sessions))
	}
}

func TestExecuteCreateSchedule_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScheduleDefinition)
		courses *mockCourseLookup
		check   func(error) bool
	}{
		{"empty pattern", func(d *ScheduleDefinition) { d.WeeklyPattern = nil }, courseLookup(), apperr.IsValidation},
		{"end before start", func(d *ScheduleDefinition) { d.EndDate = "2024-03-01" }, courseLookup(), apperr.IsValidation},
		{"no session in range", func(d *ScheduleDefinition) {
			d.StartDate, d.EndDate = "2024-03-07", "2024-03-10"
		}, courseLookup(), apperr.IsValidation},
		{"unknown course", func(d *ScheduleDefinition) { d.CourseID = "missing" }, courseLookup(), apperr.IsNotFound},
		{"course catalogue down", func(*ScheduleDefinition) {}, &mockCourseLookup{err: errBoom}, apperr.IsResolution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockScheduleStore()
			def := kidsDefinition()
			tt.mutate(&def)
			_, err := ExecuteCreateSchedule(context.Background(), def, CreateScheduleDeps{
				ScheduleStore: store,
				CourseStore:   tt.courses,
				GenerateID:    func() string { return "s-1" },
				Now:           fixedClock(createdAt),
			})
			if !tt.check(err) {
				t.Fatalf("err = %v", err)
			}
			if store.saves != 0 {
				t.Errorf("saved %d schedules on error", store.saves)
			}
		})
	}
}

func updateDeps(store *mockScheduleStore, now time.Time) UpdateScheduleDeps {
	return UpdateScheduleDeps{
		ScheduleStore: store,
		CourseStore:   courseLookup(),
		Location:      time.UTC,
		Now:           fixedClock(now),
	}
}

func TestExecuteUpdateSchedule_FieldOnlyKeepsSessions(t *testing.T) {
	store := newMockScheduleStore()
	cs := createKids(t, store)
	before := sessionDates(cs)

	def := kidsDefinition()
	def.MaxStudents = 15
	def.TotalSessions = 0 // omitted by the client
	def.Instructor = schedule.Instructor{Name: "Minh Anh"}

	got, err := ExecuteUpdateSchedule(context.Background(), UpdateScheduleInput{ID: "s-1", Version: 1, Definition: def},
		updateDeps(store, time.Date(2024, 3, 12, 3, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("ExecuteUpdateSchedule: %v", err)
	}
	if got.Version != 2 || got.MaxStudents != 15 || got.Instructor.Name != "Minh Anh" {
		t.Errorf("got version=%d max=%d instructor=%q", got.Version, got.MaxStudents, got.Instructor.Name)
	}
	if got.TotalSessions != 6 || !sameStrings(sessionDates(got), before) {
		t.Errorf("sessions changed on field-only edit: %v", sessionDates(got))
	}
}

func TestExecuteUpdateSchedule_PatternChangeKeepsElapsed(t *testing.T) {
	store := newMockScheduleStore()
	createKids(t, store)
	// Session 2 was postponed before the edit; it is in the past and must survive as is.
	stored := store.schedules["s-1"]
	stored.Sessions[1].Status = schedule.StatusPostponed
	store.schedules["s-1"] = stored

	def := kidsDefinition()
	def.WeeklyPattern = []schedule.Slot{
		{DayOfWeek: "tuesday", StartTime: "17:00", EndTime: "18:30"},
		{DayOfWeek: "thursday", StartTime: "17:00", EndTime: "18:30"},
	}
	today := time.Date(2024, 3, 12, 3, 0, 0, 0, time.UTC) // Tuesday
	got, err := ExecuteUpdateSchedule(context.Background(), UpdateScheduleInput{ID: "s-1", Version: 1, Definition: def}, updateDeps(store, today))
	if err != nil {
		t.Fatalf("ExecuteUpdateSchedule: %v", err)
	}

	want := []string{"2024-03-04", "2024-03-06", "2024-03-11", "2024-03-12", "2024-03-14", "2024-03-19"}
	if dates := sessionDates(got); !sameStrings(dates, want) {
		t.Fatalf("dates = %v, want %v", dates, want)
	}
	for i, s := range got.Sessions {
		if s.SessionNumber != i+1 {
			t.Errorf("session %d numbered %d", i, s.SessionNumber)
		}
	}
	if got.Sessions[0].StartTime != "18:00" || got.Sessions[3].StartTime != "17:00" {
		t.Errorf("elapsed or new times wrong: %+v", got.Sessions)
	}
	if got.Sessions[1].Status != schedule.StatusPostponed {
		t.Errorf("elapsed override lost: %q", got.Sessions[1].Status)
	}
}

func TestExecuteUpdateSchedule_PatternChangeKeepsCohortSize(t *testing.T) {
	store := newMockScheduleStore()
	createKids(t, store)

	def := kidsDefinition()
	def.TotalSessions = 0 // omitted by the client
	def.WeeklyPattern = []schedule.Slot{
		{DayOfWeek: "tuesday", StartTime: "17:00", EndTime: "18:30"},
		{DayOfWeek: "thursday", StartTime: "17:00", EndTime: "18:30"},
	}
	today := time.Date(2024, 3, 12, 3, 0, 0, 0, time.UTC)
	got, err := ExecuteUpdateSchedule(context.Background(), UpdateScheduleInput{ID: "s-1", Version: 1, Definition: def}, updateDeps(store, today))
	if err != nil {
		t.Fatalf("ExecuteUpdateSchedule: %v", err)
	}
	if got.TotalSessions != 6 || len(got.Sessions) != 6 {
		t.Fatalf("total = %d, sessions = %d, want 6", got.TotalSessions, len(got.Sessions))
	}
	if last := got.Sessions[5].Date; last != "2024-03-19" {
		t.Errorf("last session = %s, want 2024-03-19", last)
	}
	if store.schedules["s-1"].TotalSessions != 6 {
		t.Errorf("stored total = %d", store.schedules["s-1"].TotalSessions)
	}
}

func TestExecuteUpdateSchedule_KeepsOmittedFields(t *testing.T) {
	store := newMockScheduleStore()
	createKids(t, store)
	stored := store.schedules["s-1"]
	stored.IsActive = false
	stored.CurrentStudents = 9
	store.schedules["s-1"] = stored

	def := kidsDefinition()
	def.IsActive = true
	def.CurrentStudents = 0
	def.MaxStudents = 15
	now := time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		keep        bool
		wantActive  bool
		wantCurrent int
	}{
		{"omitted fields keep stored values", true, false, 9},
		{"explicit fields replace them", false, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMockScheduleStore()
			st.schedules["s-1"] = stored
			got, err := ExecuteUpdateSchedule(context.Background(), UpdateScheduleInput{
				ID: "s-1", Version: stored.Version, Definition: def,
				KeepActive: tt.keep, KeepCurrentStudents: tt.keep,
			}, updateDeps(st, now))
			if err != nil {
				t.Fatalf("ExecuteUpdateSchedule: %v", err)
			}
			if got.IsActive != tt.wantActive || got.CurrentStudents != tt.wantCurrent || got.MaxStudents != 15 {
				t.Errorf("active=%v current=%d max=%d", got.IsActive, got.CurrentStudents, got.MaxStudents)
			}
		})
	}
}

func TestExecuteUpdateSchedule_Errors(t *testing.T) {
	now := time.Date(2024, 3, 12, 3, 0, 0, 0, time.UTC)

	t.Run("stale version", func(t *testing.T) {
		store := newMockScheduleStore()
		createKids(t, store)
		def := kidsDefinition()
		def.MaxStudents = 20
		if _, err := ExecuteUpdateSchedule(context.Background(), UpdateScheduleInput{ID: "s-1", Version: 1, Definition: def}, updateDeps(store, now)); err != nil {
			t.Fatalf("first update: %v", err)
		}
		_, err := ExecuteUpdateSchedule(context.Background(), UpdateScheduleInput{ID: "s-1", Version: 1, Definition: def}, updateDeps(store, now))
		if !errors.Is(err, schedule.ErrVersionConflict) {
			t.Fatalf("err = %v, want ErrVersionConflict", err)
		}
	})

	t.Run("deleted schedule", func(t *testing.T) {
		store := newMockScheduleStore()
		createKids(t, store)
		_ = store.SoftDelete(context.Background(), "s-1")
		_, err := ExecuteUpdateSchedule(context.Background(), UpdateScheduleInput{ID: "s-1", Version: 2, Definition: kidsDefinition()}, updateDeps(store, now))
		if !apperr.IsNotFound(err) {
			t.Fatalf("err = %v, want NotFound", err)
		}
	})

	t.Run("shrink below elapsed", func(t *testing.T) {
		store := newMockScheduleStore()
		createKids(t, store)
		def := kidsDefinition()
		def.TotalSessions = 2
		_, err := ExecuteUpdateSchedule(context.Background(), UpdateScheduleInput{ID: "s-1", Version: 1, Definition: def}, updateDeps(store, now))
		if !apperr.IsValidation(err) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
		if store.schedules["s-1"].Version != 1 {
			t.Error("schedule saved despite validation error")
		}
	})

	t.Run("unknown new course", func(t *testing.T) {
		store := newMockScheduleStore()
		createKids(t, store)
		def := kidsDefinition()
		def.CourseID = "course-missing"
		_, err := ExecuteUpdateSchedule(context.Background(), UpdateScheduleInput{ID: "s-1", Version: 1, Definition: def}, updateDeps(store, now))
		if !apperr.IsNotFound(err) {
			t.Fatalf("err = %v, want NotFound", err)
		}
	})
}

func TestExecuteSetSessionStatus(t *testing.T) {
	store := newMockScheduleStore()
	createKids(t, store)
	deps := SetSessionStatusDeps{ScheduleStore: store, Now: fixedClock(createdAt)}

	got, err := ExecuteSetSessionStatus(context.Background(), SetSessionStatusInput{
		ScheduleID: "s-1", Version: 1, SessionNumber: 3, Status: schedule.StatusPostponed,
	}, deps)
	if err != nil {
		t.Fatalf("ExecuteSetSessionStatus: %v", err)
	}
	if got.EffectiveStatus(got.Sessions[2]) != schedule.StatusPostponed {
		t.Errorf("session 3 status = %q", got.EffectiveStatus(got.Sessions[2]))
	}
	if got.EffectiveStatus(got.Sessions[3]) != schedule.StatusScheduled {
		t.Errorf("session 4 should inherit, got %q", got.EffectiveStatus(got.Sessions[3]))
	}

	if _, err := ExecuteSetSessionStatus(context.Background(), SetSessionStatusInput{
		ScheduleID: "s-1", Version: 2, SessionNumber: 9, Status: schedule.StatusFinished,
	}, deps); !apperr.IsNotFound(err) {
		t.Errorf("unknown session err = %v", err)
	}
	if _, err := ExecuteSetSessionStatus(context.Background(), SetSessionStatusInput{
		ScheduleID: "s-1", Version: 2, SessionNumber: 1, Status: "cancelled",
	}, deps); !apperr.IsValidation(err) {
		t.Errorf("bad status err = %v", err)
	}
}

func TestExecuteDeleteSchedule(t *testing.T) {
	store := newMockScheduleStore()
	createKids(t, store)
	deps := DeleteScheduleDeps{ScheduleStore: store}

	if err := ExecuteDeleteSchedule(context.Background(), "s-1", deps); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ExecuteDeleteSchedule(context.Background(), "s-1", deps); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if !store.schedules["s-1"].IsDeleted {
		t.Error("schedule not flagged deleted")
	}
	if err := ExecuteDeleteSchedule(context.Background(), "missing", deps); !apperr.IsNotFound(err) {
		t.Errorf("missing err = %v", err)
	}
}
