package outbox

import (
	"errors"
	"time"
)

// Status constants for outbox entry lifecycle.
const (
	StatusPending  = "pending"
	StatusRetrying = "retrying"
	StatusDone     = "done"
	StatusFailed   = "failed"
)

// DefaultMaxAttempts bounds redelivery of one queued notification.
const DefaultMaxAttempts = 5

// Domain errors.
var (
	ErrEmptyRecipient = errors.New("recipient is required")
	ErrEmptySubject   = errors.New("subject is required")
	ErrMissingCreated = errors.New("created_at must be set")
)

// Entry is a notification email whose dispatch failed and which is queued
// for background redelivery.
type Entry struct {
	ID              string
	BatchDate       string // date of the dispatch run that gave up on it
	Recipient       string
	Role            string
	Subject         string
	HTML            string
	Status          string
	Attempts        int
	MaxAttempts     int
	LastAttemptedAt time.Time
	NextAttemptAt   time.Time // zero means ready now
	CreatedAt       time.Time
	MessageID       string // provider id once delivered
	ErrorMessage    string
}

// Validate checks that the Entry has valid data and fills defaults.
// PRE: Entry struct is populated
// POST: Returns nil if valid; MaxAttempts and Status defaulted
func (e *Entry) Validate() error {
	if e.Recipient == "" {
		return ErrEmptyRecipient
	}
	if e.Subject == "" {
		return ErrEmptySubject
	}
	if e.CreatedAt.IsZero() {
		return ErrMissingCreated
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
	return nil
}

// CanRetry returns true if the entry can be retried.
// PRE: Status and Attempts fields are set
// POST: Returns true for pending/retrying with attempts < max
func (e *Entry) CanRetry() bool {
	return (e.Status == StatusPending || e.Status == StatusRetrying) && e.Attempts < e.MaxAttempts
}

// ReadyAt reports whether enough backoff has elapsed since the last attempt.
func (e *Entry) ReadyAt(now time.Time, base, max time.Duration) bool {
	if e.LastAttemptedAt.IsZero() {
		return true
	}
	return !now.Before(e.LastAttemptedAt.Add(Backoff(e.Attempts, base, max)))
}

// ScheduleRetry sets NextAttemptAt to the end of the backoff window that
// ReadyAt enforces for the current attempt count.
// POST: NextAttemptAt = LastAttemptedAt + Backoff(Attempts, base, max)
func (e *Entry) ScheduleRetry(base, max time.Duration) {
	e.NextAttemptAt = e.LastAttemptedAt.Add(Backoff(e.Attempts, base, max))
}

// MarkAttempt records a redelivery attempt.
// PRE: CanRetry() is true
// POST: Attempts incremented, LastAttemptedAt = now, status retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess marks the entry as delivered.
// POST: Status done, MessageID set, error cleared
func (e *Entry) MarkSuccess(messageID string) {
	e.Status = StatusDone
	e.MessageID = messageID
	e.ErrorMessage = ""
}

// MarkFailed records a failed attempt; the entry becomes terminal once
// attempts are exhausted.
// POST: ErrorMessage set; Status failed when Attempts >= MaxAttempts
func (e *Entry) MarkFailed(err error) {
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
	}
}

// Backoff returns base * 2^attempt, capped at max. It is shared by in-batch
// send retries and queued redelivery.
// PRE: attempt >= 0
// POST: 0 <= result <= max
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt > 30 {
		return max
	}
	delay := base * (1 << attempt)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}
