package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/viralforge/deal-agents/internal/domain"
)

// Message is one delivered record. Partition and Offset identify it for
// Commit.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Payload   []byte
}

// Consumer delivers messages without advancing the group offset. Commit
// marks messages as handled.
type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
	Commit(ctx context.Context, msgs ...Message) error
}

// SubmissionHandler settles a contract from a content-submitted payload.
type SubmissionHandler interface {
	HandleContentSubmitted(ctx context.Context, payload []byte) error
}

// ConsumerWorker feeds content submissions to the settlement pipeline. A
// submission that fails transiently is held, together with everything
// fetched after it, and retried before anything new is polled, so a commit
// never moves past an unhandled submission.
type ConsumerWorker struct {
	logger           *slog.Logger
	consumer         Consumer
	handler          SubmissionHandler
	submissionsTopic string
	interval         time.Duration
	held             []Message
}

func NewConsumerWorker(logger *slog.Logger, consumer Consumer, handler SubmissionHandler, submissionsTopic string, interval time.Duration) *ConsumerWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ConsumerWorker{
		logger:           logger,
		consumer:         consumer,
		handler:          handler,
		submissionsTopic: submissionsTopic,
		interval:         interval,
	}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "content submission batch stopped",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"held", len(w.held),
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ConsumerWorker) processOnce(ctx context.Context) error {
	msgs := w.held
	w.held = nil
	if len(msgs) == 0 {
		polled, err := w.consumer.Poll(ctx, 50)
		if err != nil {
			return err
		}
		msgs = polled
	}
	for i, msg := range msgs {
		if err := w.dispatch(ctx, msg); err != nil {
			w.held = msgs[i:]
			return fmt.Errorf("submission %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}
		if err := w.consumer.Commit(ctx, msg); err != nil {
			// Redelivery is harmless: a settled contract is skipped.
			w.logger.WarnContext(ctx, "content submission offset not committed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "commit",
				"outcome", "failure",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
	return nil
}

// dispatch returns an error only when the message should be retried.
func (w *ConsumerWorker) dispatch(ctx context.Context, msg Message) error {
	if msg.Topic != w.submissionsTopic {
		w.logger.DebugContext(ctx, "ignoring message from unexpected topic",
			"module", "events.consumer_worker",
			"layer", "adapter",
			"operation", "dispatch",
			"outcome", "skipped",
			"topic", msg.Topic,
		)
		return nil
	}
	err := w.handler.HandleContentSubmitted(ctx, msg.Payload)
	if errors.Is(err, domain.ErrInvalidInput) {
		w.logger.ErrorContext(ctx, "content submission dropped",
			"module", "events.consumer_worker",
			"layer", "adapter",
			"operation", "handle_content_submitted",
			"outcome", "dropped",
			"contract_id", msg.Key,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	return err
}
