package outbox_test

import (
	"errors"
	"testing"
	"time"

	"mccenter/internal/domain/outbox"
)

func TestEntry_ValidateDefaults(t *testing.T) {
	e := outbox.Entry{Recipient: "a@x.com", Subject: "s", CreatedAt: time.Now()}
	if err := e.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if e.MaxAttempts != outbox.DefaultMaxAttempts || e.Status != outbox.StatusPending {
		t.Errorf("defaults not applied: %+v", e)
	}

	for _, bad := range []outbox.Entry{
		{Subject: "s", CreatedAt: time.Now()},
		{Recipient: "a@x.com", CreatedAt: time.Now()},
		{Recipient: "a@x.com", Subject: "s"},
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", bad)
		}
	}
}

func TestEntry_Lifecycle(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	e := outbox.Entry{Recipient: "a@x.com", Subject: "s", CreatedAt: now, MaxAttempts: 2}
	_ = e.Validate()

	e.MarkAttempt(now)
	e.MarkFailed(errors.New("503"))
	if !e.CanRetry() || e.Status != outbox.StatusRetrying {
		t.Fatalf("after first failure: %+v", e)
	}
	e.MarkAttempt(now.Add(time.Minute))
	e.MarkFailed(errors.New("503"))
	if e.CanRetry() || e.Status != outbox.StatusFailed {
		t.Fatalf("after exhausting attempts: %+v", e)
	}

	ok := outbox.Entry{Recipient: "a@x.com", Subject: "s", CreatedAt: now}
	_ = ok.Validate()
	ok.MarkAttempt(now)
	ok.MarkSuccess("msg-1")
	if ok.Status != outbox.StatusDone || ok.MessageID != "msg-1" || ok.CanRetry() {
		t.Errorf("after success: %+v", ok)
	}
}

func TestEntry_ReadyAt(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	e := outbox.Entry{Attempts: 1, LastAttemptedAt: now}
	if e.ReadyAt(now.Add(30*time.Second), 30*time.Second, time.Hour) {
		t.Error("should wait 60s after the first attempt")
	}
	if !e.ReadyAt(now.Add(time.Minute), 30*time.Second, time.Hour) {
		t.Error("should be ready after 60s")
	}
	if !(&outbox.Entry{}).ReadyAt(now, time.Second, time.Hour) {
		t.Error("never-attempted entry should be ready")
	}
}

func TestEntry_ScheduleRetryMatchesReadyAt(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	e := outbox.Entry{Attempts: 2, LastAttemptedAt: now}
	e.ScheduleRetry(30*time.Second, time.Hour)
	if !e.NextAttemptAt.Equal(now.Add(2 * time.Minute)) {
		t.Fatalf("NextAttemptAt = %v", e.NextAttemptAt)
	}
	if e.ReadyAt(e.NextAttemptAt.Add(-time.Nanosecond), 30*time.Second, time.Hour) || !e.ReadyAt(e.NextAttemptAt, 30*time.Second, time.Hour) {
		t.Error("NextAttemptAt disagrees with ReadyAt")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt   int
		base, max time.Duration
		want      time.Duration
	}{
		{0, time.Second, time.Minute, time.Second},
		{1, time.Second, time.Minute, 2 * time.Second},
		{3, time.Second, time.Minute, 8 * time.Second},
		{10, time.Second, time.Minute, time.Minute},
		{63, time.Second, time.Minute, time.Minute},
		{2, 0, time.Minute, 0},
	}
	for _, tt := range tests {
		if got := outbox.Backoff(tt.attempt, tt.base, tt.max); got != tt.want {
			t.Errorf("Backoff(%d, %v, %v) = %v, want %v", tt.attempt, tt.base, tt.max, got, tt.want)
		}
	}
}
