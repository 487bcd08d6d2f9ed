package web

import (
	"log/slog"
	"net/http"

	"mccenter/internal/application/orchestrators"
	"mccenter/internal/domain/apperr"
	"mccenter/internal/domain/notification"
)

// dispatchRequest is the body of POST /dispatch.
type dispatchRequest struct {
	Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Audience string `json:"audience" validate:"required"`
	Job      string `json:"job" validate:"omitempty,oneof=admin_digest student_notice"`
}

// dispatchResponse summarizes a run for the caller.
type dispatchResponse struct {
	Date            string                        `json:"date"`
	Audience        string                        `json:"audience"`
	SessionsCount   int                           `json:"sessionsCount"`
	Sent            int                           `json:"sent"`
	Failed          int                           `json:"failed"`
	TotalRecipients int                           `json:"totalRecipients"`
	Errors          []notification.RecipientError `json:"errors"`
}

// handleDispatch serves POST /dispatch. Per-recipient failures still answer
// 200 with the counts; only validation or an unresolvable roster fails the call.
func handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req dispatchRequest
	if !strictDecode(w, r, &req) {
		return
	}
	if _, err := notification.ParseAudience(req.Audience); err != nil {
		writeError(w, apperr.Invalid("audience", err))
		return
	}
	ctx := r.Context()

	// A job run is recorded before sending so a poller retrying after a
	// timeout finds nextRun already advanced.
	if req.Job != "" {
		if _, err := orchestrators.ExecuteRecordJobRun(ctx, req.Job, orchestrators.RecordJobRunDeps{
			AutomationStore: app.Stores.AutomationStore,
			Now:             app.Now,
		}); err != nil {
			writeError(w, err)
			return
		}
	}

	d := app.Dispatch
	result, err := orchestrators.ExecuteDispatch(ctx, orchestrators.DispatchInput{
		Date:     req.Date,
		Audience: req.Audience,
	}, orchestrators.DispatchDeps{
		ScheduleStore: app.Stores.ScheduleStore,
		CourseStore:   app.Stores.CourseStore,
		Roster:        app.DispatchRoster,
		Sender:        d.Sender,
		Outbox:        app.Stores.OutboxStore,
		AdminEmails:   d.AdminEmails,
		Location:      app.Location,
		Concurrency:   d.Concurrency,
		SendTimeout:   d.SendTimeout,
		MaxAttempts:   d.MaxAttempts,
		BackoffBase:   d.BackoffBase,
		BackoffMax:    d.BackoffMax,
		GenerateID:    app.GenerateID,
		Now:           app.Now,
	})
	if err != nil {
		if req.Job != "" {
			slog.Error("automation_event", "event", "run_failed", "job", req.Job, "error", err.Error())
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dispatchResponse{
		Date:            result.Date,
		Audience:        result.Audience,
		SessionsCount:   result.SessionsCount,
		Sent:            result.Sent,
		Failed:          result.Failed,
		TotalRecipients: result.RecipientsAttempted,
		Errors:          result.PerRecipientErrors,
	})
}
