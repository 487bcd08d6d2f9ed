package web

import (
	"net/http"

	"mccenter/internal/adapters/http/middleware"
	"mccenter/internal/application/orchestrators"
	"mccenter/internal/domain/automation"
)

// configureJobRequest is the body of PUT /api/automation.
type configureJobRequest struct {
	Type     string `json:"type" validate:"required,oneof=admin_digest student_notice"`
	Enabled  bool   `json:"enabled"`
	Time     string `json:"time" validate:"required,datetime=15:04"`
	Timezone string `json:"timezone"`
}

// handleAutomation handles /api/automation. GET lists the jobs for admins and
// the scheduler; PUT reconfigures one job and is admin only.
func handleAutomation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		jobs, err := app.Stores.AutomationStore.List(ctx)
		if err != nil {
			internalError(w, err)
			return
		}
		if jobs == nil {
			jobs = []automation.Job{}
		}
		writeJSON(w, http.StatusOK, jobs)

	case http.MethodPut:
		if role, _ := middleware.RoleFromContext(ctx); role != middleware.RoleAdmin {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "admin key required"})
			return
		}
		var req configureJobRequest
		if !strictDecode(w, r, &req) {
			return
		}
		job, err := orchestrators.ExecuteConfigureJob(ctx, orchestrators.ConfigureJobInput{
			Type:     req.Type,
			Enabled:  req.Enabled,
			Time:     req.Time,
			Timezone: req.Timezone,
		}, orchestrators.ConfigureJobDeps{
			AutomationStore: app.Stores.AutomationStore,
			Now:             app.Now,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}
