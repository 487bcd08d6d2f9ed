package orchestrators

import (
	"context"
	"testing"
	"time"

	"mccenter/internal/domain/outbox"
)

func queuedEntry(id, to string, created time.Time) outbox.Entry {
	e := outbox.Entry{
		ID:        id,
		BatchDate: "2024-03-04",
		Recipient: to,
		Role:      "student",
		Subject:   "Your class schedule",
		HTML:      "<p>hi</p>",
		CreatedAt: created,
	}
	_ = e.Validate()
	return e
}

func TestRedeliveryProcessor_ProcessPending(t *testing.T) {
	start := time.Date(2024, 3, 4, 1, 0, 0, 0, time.UTC)
	now := start
	store := newMockOutbox()
	sender := newMockSender()
	sender.failures["bad@x.com"] = -1

	_ = store.Save(context.Background(), queuedEntry("ob-1", "ok@x.com", start))
	_ = store.Save(context.Background(), queuedEntry("ob-2", "bad@x.com", start))

	p := NewRedeliveryProcessor(store, sender, func() time.Time { return now })
	if err := p.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	ok := store.entries["ob-1"]
	if ok.Status != outbox.StatusDone || ok.MessageID != "msg-ok@x.com" || ok.Attempts != 1 {
		t.Errorf("delivered entry = %+v", ok)
	}
	bad := store.entries["ob-2"]
	if bad.Status != outbox.StatusRetrying || bad.Attempts != 1 || bad.ErrorMessage == "" {
		t.Errorf("failing entry = %+v", bad)
	}
	if !bad.NextAttemptAt.Equal(start.Add(time.Minute)) {
		t.Errorf("NextAttemptAt = %v, want end of the first backoff window", bad.NextAttemptAt)
	}

	// Inside the backoff window nothing is attempted.
	now = start.Add(10 * time.Second)
	_ = p.ProcessPending(context.Background())
	if sender.attempts["bad@x.com"] != 1 {
		t.Errorf("attempted inside backoff window: %d", sender.attempts["bad@x.com"])
	}

	// Advance well past every backoff until attempts are exhausted.
	for i := 0; i < outbox.DefaultMaxAttempts; i++ {
		now = now.Add(2 * time.Hour)
		_ = p.ProcessPending(context.Background())
	}
	bad = store.entries["ob-2"]
	if bad.Status != outbox.StatusFailed || bad.Attempts != outbox.DefaultMaxAttempts {
		t.Errorf("exhausted entry = %+v", bad)
	}
	if sender.attempts["ok@x.com"] != 1 {
		t.Errorf("delivered entry resent %d times", sender.attempts["ok@x.com"])
	}
}
