package web

import (
	"net/http"
	"strconv"
	"strings"

	"mccenter/internal/domain/roster"
)

// handleRoster serves GET /roster?class=&status=&emailEnabled= from the local
// student table, in the same shape the remote roster client reads. class may
// repeat and is never split; classes= takes a comma-separated list.
func handleRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if app.Stores.LocalRoster == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "roster is served by a remote service"})
		return
	}

	q := r.URL.Query()
	filter := roster.Filter{Status: strings.ToLower(strings.TrimSpace(q.Get("status")))}
	filter.Classes = append(filter.Classes, q["class"]...)
	if classes := q.Get("classes"); classes != "" {
		filter.Classes = append(filter.Classes, strings.Split(classes, ",")...)
	}
	if raw := q.Get("emailEnabled"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(w, "emailEnabled must be true or false")
			return
		}
		filter.EmailEnabled = &v
	}

	students, err := app.Stores.LocalRoster.ListStudents(r.Context(), filter)
	if err != nil {
		internalError(w, err)
		return
	}
	if students == nil {
		students = []roster.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}
