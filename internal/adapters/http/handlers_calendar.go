package web

import (
	"net/http"
	"strconv"

	"mccenter/internal/application/projections"
	"mccenter/internal/domain/calendar"
)

// degradedHeader flags responses built from partial data.
const degradedHeader = "X-Data-Degraded"

// handleCalendar serves GET /calendar?year=YYYY&month=M. Missing parameters
// default to the current month in the business timezone.
func handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	now := app.Now().In(app.Location)
	year, ok := intParam(w, r, "year", now.Year())
	if !ok {
		return
	}
	month, ok := intParam(w, r, "month", int(now.Month()))
	if !ok {
		return
	}

	result, err := projections.QueryMonthCalendar(r.Context(), year, month, projections.MonthCalendarDeps{
		ScheduleStore: app.Stores.ScheduleStore,
		CourseStore:   app.Stores.CourseStore,
		Roster:        app.CalendarRoster,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Stats.Degraded {
		w.Header().Set(degradedHeader, "true")
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSessions serves GET /sessions?date=YYYY-MM-DD, today when omitted.
func handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = calendar.Today(app.Now(), app.Location)
	}

	result, err := projections.QueryDaySessions(r.Context(), date, projections.DaySessionsDeps{
		ScheduleStore: app.Stores.ScheduleStore,
		CourseStore:   app.Stores.CourseStore,
		Roster:        app.CalendarRoster,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Degraded {
		w.Header().Set(degradedHeader, "true")
	}
	writeJSON(w, http.StatusOK, result.Sessions)
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(w, name+" must be an integer")
		return 0, false
	}
	return n, true
}
