package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	emailAdapter "mccenter/internal/adapters/email"
	"mccenter/internal/domain/apperr"
	"mccenter/internal/domain/automation"
	"mccenter/internal/domain/course"
	"mccenter/internal/domain/outbox"
	"mccenter/internal/domain/roster"
	"mccenter/internal/domain/schedule"
)

var errBoom = errors.New("boom")

// --- Mock schedule store ---

// mockScheduleStore keeps schedules in a map and enforces versions like the SQL store.
type mockScheduleStore struct {
	schedules map[string]schedule.ClassSchedule
	saves     int
	saveErr   error
	listErr   error
}

func newMockScheduleStore(seed ...schedule.ClassSchedule) *mockScheduleStore {
	m := &mockScheduleStore{schedules: make(map[string]schedule.ClassSchedule)}
	for _, cs := range seed {
		m.schedules[cs.ID] = cs
	}
	return m
}

// GetByID retrieves a mock schedule by ID.
// PRE: id is non-empty
// POST: Returns the schedule or a NotFoundError
func (m *mockScheduleStore) GetByID(_ context.Context, id string) (schedule.ClassSchedule, error) {
	cs, ok := m.schedules[id]
	if !ok {
		return schedule.ClassSchedule{}, apperr.NotFound("schedule", id)
	}
	return cs, nil
}

// Save stores value when its version matches the stored one.
// PRE: value.Version is the version last read
// POST: Stored version is value.Version+1, or ErrVersionConflict
func (m *mockScheduleStore) Save(_ context.Context, value schedule.ClassSchedule) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	current, exists := m.schedules[value.ID]
	if (value.Version == 0 && exists) || (value.Version > 0 && (!exists || current.Version != value.Version)) {
		return schedule.ErrVersionConflict
	}
	value.Version++
	m.schedules[value.ID] = value
	m.saves++
	return nil
}

// SoftDelete flags a mock schedule as deleted.
// PRE: id is non-empty
// POST: IsDeleted set, or NotFoundError
func (m *mockScheduleStore) SoftDelete(_ context.Context, id string) error {
	cs, ok := m.schedules[id]
	if !ok {
		return apperr.NotFound("schedule", id)
	}
	if !cs.IsDeleted {
		cs.IsDeleted = true
		cs.Version++
		m.schedules[id] = cs
	}
	return nil
}

// ListActiveOnDate returns live schedules with a session on date.
// PRE: date is YYYY-MM-DD
// POST: Returns matching schedules
func (m *mockScheduleStore) ListActiveOnDate(_ context.Context, date string) ([]schedule.ClassSchedule, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []schedule.ClassSchedule
	for _, cs := range m.schedules {
		if cs.IsActive && !cs.IsDeleted && len(cs.SessionsBetween(date, date)) > 0 {
			out = append(out, cs)
		}
	}
	return out, nil
}

// ListActiveInRange returns live schedules with a session in range.
// PRE: from <= to
// POST: Returns matching schedules
func (m *mockScheduleStore) ListActiveInRange(_ context.Context, from, to string) ([]schedule.ClassSchedule, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []schedule.ClassSchedule
	for _, cs := range m.schedules {
		if cs.IsActive && !cs.IsDeleted && len(cs.SessionsBetween(from, to)) > 0 {
			out = append(out, cs)
		}
	}
	return out, nil
}

// --- Mock course lookup ---

type mockCourseLookup struct {
	courses map[string]course.Course
	err     error
}

// GetByID returns a seeded course.
// PRE: id is non-empty
// POST: Returns the course, the configured error, or NotFoundError
func (m *mockCourseLookup) GetByID(_ context.Context, id string) (course.Course, error) {
	if m.err != nil {
		return course.Course{}, m.err
	}
	c, ok := m.courses[id]
	if !ok {
		return course.Course{}, apperr.NotFound("course", id)
	}
	return c, nil
}

// --- Mock roster ---

type mockRosterSource struct {
	students []roster.Student
	err      error
	calls    int
}

// ListStudents returns seeded students matching filter.
// PRE: none
// POST: Returns matches or the configured error
func (m *mockRosterSource) ListStudents(_ context.Context, filter roster.Filter) ([]roster.Student, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []roster.Student
	for _, s := range m.students {
		if filter.Matches(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// --- Mock sender ---

// mockSender records every attempt. failures maps an address to how many
// leading attempts fail; -1 fails forever.
type mockSender struct {
	mu       sync.Mutex
	failures map[string]int
	attempts map[string]int
	sent     []emailAdapter.SendRequest
}

func newMockSender() *mockSender {
	return &mockSender{failures: make(map[string]int), attempts: make(map[string]int)}
}

// Send fails according to failures, otherwise records the request.
// PRE: req.To is non-empty
// POST: attempts[req.To] incremented
func (m *mockSender) Send(_ context.Context, req emailAdapter.SendRequest) (emailAdapter.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[req.To]++
	n := m.failures[req.To]
	if n < 0 || m.attempts[req.To] <= n {
		return emailAdapter.SendResult{}, fmt.Errorf("provider rejected %s", req.To)
	}
	m.sent = append(m.sent, req)
	return emailAdapter.SendResult{MessageID: "msg-" + req.To}, nil
}

func (m *mockSender) sentTo(addr string) []emailAdapter.SendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []emailAdapter.SendRequest
	for _, r := range m.sent {
		if r.To == addr {
			out = append(out, r)
		}
	}
	return out
}

// --- Mock outbox ---

type mockOutbox struct {
	mu      sync.Mutex
	entries map[string]outbox.Entry
	saveErr error
	pending []string // ids in insertion order
}

func newMockOutbox() *mockOutbox {
	return &mockOutbox{entries: make(map[string]outbox.Entry)}
}

// Save upserts an entry.
// PRE: e.ID is non-empty
// POST: Entry stored
func (m *mockOutbox) Save(_ context.Context, e outbox.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.entries[e.ID]; !ok {
		m.pending = append(m.pending, e.ID)
	}
	m.entries[e.ID] = e
	return nil
}

// ListPending returns pending or retrying entries ready at now, in insertion order.
// PRE: limit > 0
// POST: Returns at most limit entries
func (m *mockOutbox) ListPending(_ context.Context, now time.Time, limit int) ([]outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outbox.Entry
	for _, id := range m.pending {
		e := m.entries[id]
		if (e.Status == outbox.StatusPending || e.Status == outbox.StatusRetrying) && !now.Before(e.NextAttemptAt) {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- Mock automation store ---

type mockAutomationStore struct {
	jobs    map[string]automation.Job
	listErr error
}

func newMockAutomationStore(jobs ...automation.Job) *mockAutomationStore {
	m := &mockAutomationStore{jobs: make(map[string]automation.Job)}
	for _, j := range jobs {
		m.jobs[j.Type] = j
	}
	return m
}

// Get returns a seeded job.
// PRE: jobType is non-empty
// POST: Returns the job or NotFoundError
func (m *mockAutomationStore) Get(_ context.Context, jobType string) (automation.Job, error) {
	j, ok := m.jobs[jobType]
	if !ok {
		return automation.Job{}, apperr.NotFound("automation job", jobType)
	}
	return j, nil
}

// Save stores a job.
// PRE: value passes Validate
// POST: Job stored
func (m *mockAutomationStore) Save(_ context.Context, value automation.Job) error {
	m.jobs[value.Type] = value
	return nil
}

// List returns jobs ordered by type.
// PRE: none
// POST: Returns all jobs
func (m *mockAutomationStore) List(_ context.Context) ([]automation.Job, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []automation.Job
	for _, t := range []string{automation.JobAdminDigest, automation.JobStudentNotice} {
		if j, ok := m.jobs[t]; ok {
			out = append(out, j)
		}
	}
	return out, nil
}

// --- Helpers ---

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
