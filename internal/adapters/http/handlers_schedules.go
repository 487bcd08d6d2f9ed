package web

import (
	"net/http"

	"mccenter/internal/application/orchestrators"
	"mccenter/internal/domain/schedule"
)

type slotRequest struct {
	DayOfWeek string `json:"dayOfWeek" validate:"required"`
	StartTime string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"required,datetime=15:04"`
}

type instructorRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

// scheduleRequest is the body of POST and PUT /api/schedules.
type scheduleRequest struct {
	Version         int               `json:"version" validate:"min=0"` // required on PUT
	CourseID        string            `json:"courseId" validate:"required"`
	ClassName       string            `json:"className" validate:"required"`
	StartDate       string            `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate         string            `json:"endDate" validate:"required,datetime=2006-01-02"`
	WeeklyPattern   []slotRequest     `json:"weeklyPattern" validate:"required,min=1,dive"`
	Locations       []string          `json:"locations"`
	Instructor      instructorRequest `json:"instructor"`
	MaxStudents     int               `json:"maxStudents" validate:"min=0"`
	CurrentStudents *int              `json:"currentStudents" validate:"omitempty,min=0"`
	Status          string            `json:"status" validate:"omitempty,oneof=scheduled enrolling full finished postponed"`
	TotalSessions   int               `json:"totalSessions" validate:"min=0"`
	IsActive        *bool             `json:"isActive"` // defaults to true on create
}

// definition defaults omitted optional fields. On PUT the stored values of
// isActive, currentStudents and totalSessions win over these defaults.
func (req scheduleRequest) definition() orchestrators.ScheduleDefinition {
	pattern := make([]schedule.Slot, len(req.WeeklyPattern))
	for i, s := range req.WeeklyPattern {
		pattern[i] = schedule.Slot{DayOfWeek: schedule.NormalizeDay(s.DayOfWeek), StartTime: s.StartTime, EndTime: s.EndTime}
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	current := 0
	if req.CurrentStudents != nil {
		current = *req.CurrentStudents
	}
	return orchestrators.ScheduleDefinition{
		CourseID:        req.CourseID,
		ClassName:       req.ClassName,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		WeeklyPattern:   pattern,
		Locations:       req.Locations,
		Instructor:      schedule.Instructor{Name: req.Instructor.Name, Email: req.Instructor.Email, Phone: req.Instructor.Phone},
		MaxStudents:     req.MaxStudents,
		CurrentStudents: current,
		Status:          req.Status,
		TotalSessions:   req.TotalSessions,
		IsActive:        active,
	}
}

// handleSchedules handles /api/schedules:
// GET lists (or ?id= fetches one), POST creates, PUT ?id= updates, DELETE ?id= soft-deletes.
func handleSchedules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.URL.Query().Get("id")

	switch r.Method {
	case http.MethodGet:
		if id != "" {
			cs, err := app.Stores.ScheduleStore.GetByID(ctx, id)
			if err == nil && cs.IsDeleted {
				writeJSON(w, http.StatusNotFound, errorBody{Error: "schedule not found"})
				return
			}
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, cs)
			return
		}
		list, err := app.Stores.ScheduleStore.List(ctx)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	case http.MethodPost:
		var req scheduleRequest
		if !strictDecode(w, r, &req) {
			return
		}
		cs, err := orchestrators.ExecuteCreateSchedule(ctx, req.definition(), orchestrators.CreateScheduleDeps{
			ScheduleStore: app.Stores.ScheduleStore,
			CourseStore:   app.Stores.CourseStore,
			GenerateID:    app.GenerateID,
			Now:           app.Now,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, cs)

	case http.MethodPut:
		if id == "" {
			badRequest(w, "id is required")
			return
		}
		var req scheduleRequest
		if !strictDecode(w, r, &req) {
			return
		}
		if req.Version < 1 {
			badRequest(w, "version is required")
			return
		}
		cs, err := orchestrators.ExecuteUpdateSchedule(ctx, orchestrators.UpdateScheduleInput{
			ID:                  id,
			Version:             req.Version,
			Definition:          req.definition(),
			KeepActive:          req.IsActive == nil,
			KeepCurrentStudents: req.CurrentStudents == nil,
		}, orchestrators.UpdateScheduleDeps{
			ScheduleStore: app.Stores.ScheduleStore,
			CourseStore:   app.Stores.CourseStore,
			Location:      app.Location,
			Now:           app.Now,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cs)

	case http.MethodDelete:
		if id == "" {
			badRequest(w, "id is required")
			return
		}
		if err := orchestrators.ExecuteDeleteSchedule(ctx, id, orchestrators.DeleteScheduleDeps{
			ScheduleStore: app.Stores.ScheduleStore,
		}); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

// sessionStatusRequest is the body of PUT /api/schedules/sessions.
type sessionStatusRequest struct {
	ScheduleID    string `json:"scheduleId" validate:"required"`
	Version       int    `json:"version" validate:"required,min=1"`
	SessionNumber int    `json:"sessionNumber" validate:"required,min=1"`
	Status        string `json:"status" validate:"omitempty,oneof=scheduled enrolling full finished postponed"`
}

// handleSessionStatus serves PUT /api/schedules/sessions, overriding (or,
// with an empty status, clearing) one session's status.
func handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, http.MethodPut)
		return
	}
	var req sessionStatusRequest
	if !strictDecode(w, r, &req) {
		return
	}
	cs, err := orchestrators.ExecuteSetSessionStatus(r.Context(), orchestrators.SetSessionStatusInput{
		ScheduleID:    req.ScheduleID,
		Version:       req.Version,
		SessionNumber: req.SessionNumber,
		Status:        req.Status,
	}, orchestrators.SetSessionStatusDeps{
		ScheduleStore: app.Stores.ScheduleStore,
		Now:           app.Now,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}
