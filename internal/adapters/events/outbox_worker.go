package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/viralforge/deal-agents/internal/ports"
)

// maxDrainBatches bounds how many full batches one tick relays, so a large
// backlog cannot starve shutdown.
const maxDrainBatches = 10

// OutboxWorker relays negotiation_closed and settlement_closed events from
// the deal outbox to the broker. Records that fail stay pending and are
// retried on the next tick.
type OutboxWorker struct {
	logger    *slog.Logger
	outbox    ports.OutboxRepository
	publisher ports.EventPublisher
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewOutboxWorker(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, interval time.Duration, batchSize int) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxWorker{
		logger:    logger,
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// relaySummary counts outcomes per event type for one tick.
type relaySummary struct {
	published map[string]int
	failed    map[string]int
}

func newRelaySummary() relaySummary {
	return relaySummary{published: map[string]int{}, failed: map[string]int{}}
}

func (s relaySummary) empty() bool {
	return len(s.published) == 0 && len(s.failed) == 0
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		summary, err := w.drain(ctx)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			w.logger.ErrorContext(ctx, "outbox relay failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "relay",
				"outcome", "failure",
				"error", err,
			)
		case !summary.empty():
			w.logger.InfoContext(ctx, "outbox events relayed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "relay",
				"outcome", "success",
				"published", summary.published,
				"failed", summary.failed,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain relays batches until one comes back short or a publish fails.
func (w *OutboxWorker) drain(ctx context.Context) (relaySummary, error) {
	summary := newRelaySummary()
	for i := 0; i < maxDrainBatches; i++ {
		fetched, failures, err := w.relayBatch(ctx, summary)
		if err != nil {
			return summary, err
		}
		if fetched < w.batchSize || failures > 0 {
			break
		}
	}
	return summary, nil
}

func (w *OutboxWorker) relayBatch(ctx context.Context, summary relaySummary) (int, int, error) {
	records, err := w.outbox.FetchUnpublished(ctx, w.batchSize)
	if err != nil {
		return 0, 0, err
	}
	failures := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return len(records), failures, err
		}
		if err := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey); err != nil {
			failures++
			summary.failed[rec.EventType]++
			w.logger.WarnContext(ctx, "deal event not published",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "publish",
				"outcome", "failure",
				"event_type", rec.EventType,
				"contract_id", rec.PartitionKey,
				"outbox_id", rec.OutboxID.String(),
				"attempt", rec.RetryCount+1,
				"pending_since", rec.FirstSeenAt,
				"error", err,
			)
			if markErr := w.outbox.MarkFailed(ctx, rec.OutboxID, err.Error(), w.now()); markErr != nil {
				return len(records), failures, markErr
			}
			continue
		}
		summary.published[rec.EventType]++
		if markErr := w.outbox.MarkPublished(ctx, rec.OutboxID, w.now()); markErr != nil {
			// The event is out; a second publish is deduplicated downstream by event id.
			w.logger.WarnContext(ctx, "published deal event not marked",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "mark_published",
				"outcome", "failure",
				"event_type", rec.EventType,
				"contract_id", rec.PartitionKey,
				"outbox_id", rec.OutboxID.String(),
				"error", markErr,
			)
		}
	}
	return len(records), failures, nil
}
