package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "mccenter/internal/adapters/email"
	domain "mccenter/internal/domain/outbox"
)

// RedeliveryStore is the outbox persistence the processor needs.
type RedeliveryStore interface {
	Save(ctx context.Context, e domain.Entry) error
	ListPending(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error)
}

// RedeliveryProcessor retries notification emails that a dispatch run gave up on.
type RedeliveryProcessor struct {
	store       RedeliveryStore
	sender      emailAdapter.Sender
	now         func() time.Time
	baseDelay   time.Duration
	maxDelay    time.Duration
	sendTimeout time.Duration
	batchSize   int
}

// NewRedeliveryProcessor creates a processor with the default backoff window.
func NewRedeliveryProcessor(store RedeliveryStore, sender emailAdapter.Sender, now func() time.Time) *RedeliveryProcessor {
	return &RedeliveryProcessor{
		store:       store,
		sender:      sender,
		now:         now,
		baseDelay:   30 * time.Second,
		maxDelay:    1 * time.Hour,
		sendTimeout: DefaultSendTimeout,
		batchSize:   20,
	}
}

// ProcessPending attempts every queued entry whose backoff has elapsed.
// PRE: Context is valid
// POST: Attempted entries saved as done, retrying or failed
func (p *RedeliveryProcessor) ProcessPending(ctx context.Context) error {
	entries, err := p.store.ListPending(ctx, p.now(), p.batchSize)
	if err != nil {
		return fmt.Errorf("list pending redeliveries: %w", err)
	}

	for _, entry := range entries {
		if err := p.processEntry(ctx, entry); err != nil {
			slog.Error("redelivery_process_failed", "entry_id", entry.ID, "error", err.Error())
		}
	}
	return nil
}

func (p *RedeliveryProcessor) processEntry(ctx context.Context, entry domain.Entry) error {
	now := p.now()
	if !entry.CanRetry() || !entry.ReadyAt(now, p.baseDelay, p.maxDelay) {
		return nil
	}

	entry.MarkAttempt(now)
	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	res, err := p.sender.Send(sendCtx, emailAdapter.SendRequest{
		To:      entry.Recipient,
		Subject: entry.Subject,
		HTML:    entry.HTML,
	})
	cancel()
	if err != nil {
		entry.MarkFailed(err)
		entry.ScheduleRetry(p.baseDelay, p.maxDelay)
		slog.Warn("redelivery_attempt_failed", "entry_id", entry.ID, "recipient", entry.Recipient, "attempt", entry.Attempts, "status", entry.Status, "error", err.Error())
	} else {
		entry.MarkSuccess(res.MessageID)
		slog.Info("redelivery_succeeded", "entry_id", entry.ID, "recipient", entry.Recipient, "batch_date", entry.BatchDate)
	}
	return p.store.Save(ctx, entry)
}

// StartRedeliveryWorker starts a goroutine that periodically processes the queue.
// PRE: stopCh is provided to signal shutdown
// POST: Worker runs until stopCh is closed
func StartRedeliveryWorker(processor *RedeliveryProcessor, interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if err := processor.ProcessPending(ctx); err != nil {
					slog.Error("redelivery_background_process_failed", "error", err.Error())
				}
				cancel()
			case <-stopCh:
				slog.Info("redelivery_background_worker_stopped")
				return
			}
		}
	}()
}
