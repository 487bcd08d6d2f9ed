package orchestrators

import (
	"context"
	"log/slog"
	"time"

	domain "mccenter/internal/domain/automation"
)

// AutomationStoreForOrchestrator defines the store interface needed by automation orchestrators.
type AutomationStoreForOrchestrator interface {
	Get(ctx context.Context, jobType string) (domain.Job, error)
	Save(ctx context.Context, value domain.Job) error
}

// --- Configure Job ---

// ConfigureJobInput carries the editable settings of one automation job.
type ConfigureJobInput struct {
	Type     string
	Enabled  bool
	Time     string // HH:MM
	Timezone string // empty keeps the stored zone
}

// ConfigureJobDeps holds dependencies for ConfigureJob.
type ConfigureJobDeps struct {
	AutomationStore AutomationStoreForOrchestrator
	Now             func() time.Time
}

// ExecuteConfigureJob updates a job's settings and recomputes its next run.
// PRE: input.Type names a seeded job
// POST: Job saved with NextRun after now when enabled, nil when disabled
func ExecuteConfigureJob(ctx context.Context, input ConfigureJobInput, deps ConfigureJobDeps) (domain.Job, error) {
	job, err := deps.AutomationStore.Get(ctx, input.Type)
	if err != nil {
		return domain.Job{}, err
	}

	job.Enabled = input.Enabled
	job.Time = input.Time
	if input.Timezone != "" {
		job.Timezone = input.Timezone
	}
	if err := job.Validate(); err != nil {
		return domain.Job{}, err
	}

	now := deps.Now()
	if err := job.Reschedule(now); err != nil {
		return domain.Job{}, err
	}
	job.UpdatedAt = now

	if err := deps.AutomationStore.Save(ctx, job); err != nil {
		return domain.Job{}, err
	}
	slog.Info("automation_event", "event", "configured", "job", job.Type, "enabled", job.Enabled, "time", job.Time, "timezone", job.Timezone)
	return job, nil
}

// --- Record Job Run ---

// RecordJobRunDeps holds dependencies for RecordJobRun.
type RecordJobRunDeps struct {
	AutomationStore AutomationStoreForOrchestrator
	Now             func() time.Time
}

// ExecuteRecordJobRun stamps a job's last run and advances its next run.
// PRE: jobType names a seeded job
// POST: LastRun == now; NextRun strictly after now when enabled
func ExecuteRecordJobRun(ctx context.Context, jobType string, deps RecordJobRunDeps) (domain.Job, error) {
	job, err := deps.AutomationStore.Get(ctx, jobType)
	if err != nil {
		return domain.Job{}, err
	}
	now := deps.Now()
	job.LastRun = &now
	if err := job.Reschedule(now); err != nil {
		return domain.Job{}, err
	}
	job.UpdatedAt = now
	if err := deps.AutomationStore.Save(ctx, job); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

// --- Run Due Jobs ---

// JobLister returns the configured automation jobs.
type JobLister interface {
	List(ctx context.Context) ([]domain.Job, error)
}

// JobTrigger fires one job, usually by calling the dispatch endpoint.
type JobTrigger interface {
	Trigger(ctx context.Context, job domain.Job) error
}

// RunDueJobsDeps holds dependencies for RunDueJobs.
type RunDueJobsDeps struct {
	Jobs    JobLister
	Trigger JobTrigger
	Now     func() time.Time
}

// ExecuteRunDueJobs triggers every enabled job whose next run has arrived.
// A failing job is logged and does not stop the others.
// PRE: none
// POST: Returns the number of jobs triggered successfully
func ExecuteRunDueJobs(ctx context.Context, deps RunDueJobsDeps) (int, error) {
	jobs, err := deps.Jobs.List(ctx)
	if err != nil {
		return 0, err
	}
	now := deps.Now()
	fired := 0
	for _, job := range jobs {
		if !job.Due(now) {
			continue
		}
		if err := deps.Trigger.Trigger(ctx, job); err != nil {
			slog.Error("automation_event", "event", "trigger_failed", "job", job.Type, "error", err.Error())
			continue
		}
		fired++
		slog.Info("automation_event", "event", "triggered", "job", job.Type, "audience", job.Audience())
	}
	return fired, nil
}
