package orchestrators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	emailAdapter "mccenter/internal/adapters/email"
	"mccenter/internal/application/projections"
	"mccenter/internal/domain/apperr"
	"mccenter/internal/domain/calendar"
	"mccenter/internal/domain/notification"
	"mccenter/internal/domain/outbox"
	"mccenter/internal/domain/roster"
)

// Send hardening defaults, used when the matching DispatchDeps field is zero.
const (
	DefaultDispatchConcurrency = 5
	DefaultSendTimeout         = 10 * time.Second
	DefaultSendMaxAttempts     = 3
	DefaultSendBackoffBase     = 500 * time.Millisecond
	DefaultSendBackoffMax      = 5 * time.Second
)

// OutboxWriter queues a notification that could not be delivered in-batch.
type OutboxWriter interface {
	Save(ctx context.Context, e outbox.Entry) error
}

// DispatchInput selects the date and audience of one run.
// An empty Date means today in the business timezone.
type DispatchInput struct {
	Date     string
	Audience string
}

// DispatchDeps holds dependencies for Dispatch.
type DispatchDeps struct {
	ScheduleStore projections.ScheduleReader
	CourseStore   projections.CourseReader // optional
	Roster        projections.RosterSource
	Sender        emailAdapter.Sender
	Outbox        OutboxWriter // optional; nil disables redelivery
	AdminEmails   []string
	Location      *time.Location

	Concurrency int
	SendTimeout time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration

	GenerateID func() string
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error // nil uses a timer
}

// pendingSend is one rendered message awaiting delivery.
type pendingSend struct {
	msg  notification.Message
	html string
}

// sendOutcome is the result of delivering one pendingSend.
type sendOutcome struct {
	attempts int
	err      error
}

// ExecuteDispatch resolves the sessions and roster of a date, renders every
// message the audience calls for, and sends them concurrently.
// PRE: Sender and Roster are non-nil
// POST: Sent + Failed == RecipientsAttempted; per-recipient failures are
// recorded in the result and never returned as the error
// INVARIANT: a failure to resolve sessions or roster sends nothing
func ExecuteDispatch(ctx context.Context, input DispatchInput, deps DispatchDeps) (notification.BatchResult, error) {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	date := strings.TrimSpace(input.Date)
	if date == "" {
		date = calendar.Today(deps.Now(), loc)
	}
	if _, err := calendar.ParseDate(date); err != nil {
		return notification.BatchResult{}, apperr.Invalid("date", err)
	}
	audience, err := notification.ParseAudience(input.Audience)
	if err != nil {
		return notification.BatchResult{}, apperr.Invalid("audience", err)
	}

	result := notification.BatchResult{
		Date:               date,
		Audience:           audience,
		PerRecipientErrors: []notification.RecipientError{},
	}

	day, err := projections.QueryDaySessions(ctx, date, projections.DaySessionsDeps{
		ScheduleStore: deps.ScheduleStore,
		CourseStore:   deps.CourseStore,
	})
	if err != nil {
		if apperr.IsValidation(err) {
			return notification.BatchResult{}, err
		}
		return notification.BatchResult{}, apperr.Unresolved("sessions", err)
	}
	result.SessionsCount = len(day.Sessions)
	if len(day.Sessions) == 0 {
		slog.Info("dispatch_event", "event", "no_sessions", "date", date, "audience", audience)
		return result, nil
	}

	byClass, classOrder := groupByClass(day.Sessions)
	students, err := projections.QueryRosterStudents(ctx, classOrder, roster.StatusStudying, nil, deps.Roster)
	if err != nil {
		return notification.BatchResult{}, err
	}

	messages := buildMessages(date, audience, day.Sessions, byClass, students, deps.AdminEmails)
	sends := make([]pendingSend, 0, len(messages))
	for _, m := range messages {
		html, err := emailAdapter.RenderHTML(m.Subject, m.Body)
		if err != nil {
			return notification.BatchResult{}, err
		}
		sends = append(sends, pendingSend{msg: m, html: html})
	}

	outcomes := deliverAll(ctx, sends, deps)

	result.RecipientsAttempted = len(sends)
	for i, out := range outcomes {
		if out.err == nil {
			result.Sent++
			continue
		}
		r := sends[i].msg.Recipient
		derr := &apperr.DispatchError{Recipient: r.Address, Attempts: out.attempts, Err: out.err}
		result.Failed++
		result.PerRecipientErrors = append(result.PerRecipientErrors, notification.RecipientError{
			Recipient: r.Address,
			Role:      r.Role,
			StudentID: r.StudentID,
			Attempts:  out.attempts,
			Error:     derr.Error(),
		})
		slog.Warn("dispatch_event", "event", "recipient_failed", "date", date, "recipient", r.Address, "role", r.Role, "attempts", out.attempts, "error", out.err.Error())
		enqueueRedelivery(ctx, date, sends[i], deps)
	}

	slog.Info("dispatch_event", "event", "batch_completed",
		"date", date, "audience", audience, "sessions", result.SessionsCount,
		"attempted", result.RecipientsAttempted, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

// groupByClass buckets sessions by normalized class name and returns the
// class names in first-seen order.
func groupByClass(sessions []projections.SessionView) (map[string][]projections.SessionView, []string) {
	byClass := make(map[string][]projections.SessionView)
	var names []string
	for _, s := range sessions {
		key := roster.NormalizeClassName(s.ClassName)
		if _, ok := byClass[key]; !ok {
			names = append(names, s.ClassName)
		}
		byClass[key] = append(byClass[key], s)
	}
	return byClass, names
}

func buildMessages(date, audience string, sessions []projections.SessionView, byClass map[string][]projections.SessionView, students []roster.Student, adminEmails []string) []notification.Message {
	var out []notification.Message

	if notification.IncludesAdmin(audience) {
		counts := make(map[string]int)
		for _, st := range students {
			counts[st.ClassKey()]++
		}
		lines := make([]notification.SessionLine, 0, len(sessions))
		for _, s := range sessions {
			line := toLine(s)
			line.Students = counts[roster.NormalizeClassName(s.ClassName)]
			lines = append(lines, line)
		}
		out = append(out, notification.RenderAdminDigest(date, lines, adminRecipients(adminEmails))...)
	}

	if notification.IncludesStudents(audience) {
		for _, st := range students {
			if !st.EmailSettings.ReceiveDailySchedule {
				continue
			}
			classSessions := byClass[st.ClassKey()]
			if len(classSessions) == 0 {
				continue
			}
			lines := make([]notification.SessionLine, 0, len(classSessions))
			for _, s := range classSessions {
				lines = append(lines, toLine(s))
			}
			for _, r := range notification.ResolveRecipients(st) {
				out = append(out, notification.RenderStudentNotice(date, r, st.FullName, lines))
			}
		}
	}
	return out
}

func toLine(s projections.SessionView) notification.SessionLine {
	return notification.SessionLine{
		ClassName:     s.ClassName,
		SessionNumber: s.SessionNumber,
		TotalSessions: s.TotalSessions,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Location:      s.Location,
		Instructor:    s.Instructor.Name,
		Status:        s.Status,
		MaxStudents:   s.MaxStudents,
	}
}

func adminRecipients(emails []string) []notification.Recipient {
	out := make([]notification.Recipient, 0, len(emails))
	seen := make(map[string]bool)
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" || seen[strings.ToLower(e)] {
			continue
		}
		seen[strings.ToLower(e)] = true
		out = append(out, notification.Recipient{Address: e, Role: notification.RoleAdmin})
	}
	return out
}

// deliverAll sends through a pool of at most deps.Concurrency workers.
// outcomes[i] belongs to sends[i].
func deliverAll(ctx context.Context, sends []pendingSend, deps DispatchDeps) []sendOutcome {
	outcomes := make([]sendOutcome, len(sends))
	limit := deps.Concurrency
	if limit <= 0 {
		limit = DefaultDispatchConcurrency
	}

	// Workers never return an error, so one failure cannot cancel the others.
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range sends {
		g.Go(func() error {
			outcomes[i] = deliver(ctx, sends[i], deps)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// deliver attempts one send with a per-attempt timeout and capped
// exponential backoff between attempts.
func deliver(ctx context.Context, s pendingSend, deps DispatchDeps) sendOutcome {
	timeout := orDuration(deps.SendTimeout, DefaultSendTimeout)
	maxAttempts := deps.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultSendMaxAttempts
	}
	base := orDuration(deps.BackoffBase, DefaultSendBackoffBase)
	maxDelay := orDuration(deps.BackoffMax, DefaultSendBackoffMax)
	sleep := deps.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	req := emailAdapter.SendRequest{To: s.msg.Recipient.Address, Subject: s.msg.Subject, HTML: s.html}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, outbox.Backoff(attempt-2, base, maxDelay)); err != nil {
				return sendOutcome{attempts: attempt - 1, err: lastErr}
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		_, err := deps.Sender.Send(attemptCtx, req)
		cancel()
		if err == nil {
			return sendOutcome{attempts: attempt}
		}
		lastErr = err
		slog.Debug("dispatch_event", "event", "send_retry", "recipient", req.To, "attempt", attempt, "error", err.Error())
	}
	return sendOutcome{attempts: maxAttempts, err: lastErr}
}

func enqueueRedelivery(ctx context.Context, date string, s pendingSend, deps DispatchDeps) {
	if deps.Outbox == nil || deps.GenerateID == nil {
		return
	}
	entry := outbox.Entry{
		ID:        deps.GenerateID(),
		BatchDate: date,
		Recipient: s.msg.Recipient.Address,
		Role:      s.msg.Recipient.Role,
		Subject:   s.msg.Subject,
		HTML:      s.html,
		Status:    outbox.StatusPending,
		CreatedAt: deps.Now(),
	}
	if err := entry.Validate(); err != nil {
		slog.Error("dispatch_event", "event", "enqueue_invalid", "recipient", entry.Recipient, "error", err.Error())
		return
	}
	if err := deps.Outbox.Save(ctx, entry); err != nil {
		slog.Error("dispatch_event", "event", "enqueue_failed", "recipient", entry.Recipient, "error", err.Error())
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
