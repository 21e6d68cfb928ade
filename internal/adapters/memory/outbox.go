package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/deal-agents/internal/domain"
	"github.com/viralforge/deal-agents/internal/ports"
)

type Outbox struct {
	mu      sync.Mutex
	records map[uuid.UUID]ports.OutboxRecord
	order   []uuid.UUID
}

func NewOutbox() *Outbox {
	return &Outbox{records: make(map[uuid.UUID]ports.OutboxRecord)}
}

func (o *Outbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.records[event.EventID]; ok {
		return nil
	}
	o.records[event.EventID] = ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      append([]byte(nil), event.Payload...),
		FirstSeenAt:  event.OccurredAt,
	}
	o.order = append(o.order, event.EventID)
	return nil
}

func (o *Outbox) FetchUnpublished(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ports.OutboxRecord, 0)
	for _, id := range o.order {
		rec := o.records[id]
		if rec.PublishedAt != nil {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (o *Outbox) MarkPublished(_ context.Context, outboxID uuid.UUID, at time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.records[outboxID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.PublishedAt = &at
	o.records[outboxID] = rec
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.records[outboxID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.RetryCount++
	rec.LastError = &errMsg
	rec.LastErrorAt = &at
	o.records[outboxID] = rec
	return nil
}

// Records returns every enqueued record in insertion order.
func (o *Outbox) Records() []ports.OutboxRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ports.OutboxRecord, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.records[id])
	}
	return out
}
