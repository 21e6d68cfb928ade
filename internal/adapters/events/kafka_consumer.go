package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// pollWindow is how long one Poll waits for the first submission before
// returning an empty batch.
const pollWindow = 500 * time.Millisecond

// KafkaConsumer fetches content submissions for a consumer group. Offsets
// move only through Commit, so a submission that was never handled is
// redelivered after a restart or rebalance.
type KafkaConsumer struct {
	reader *kafka.Reader
	window time.Duration
}

func NewKafkaConsumer(brokers []string, groupID string, topics []string) (*KafkaConsumer, error) {
	brokers, topics = compact(brokers), compact(topics)
	switch {
	case len(brokers) == 0:
		return nil, errors.New("content submission consumer: no brokers")
	case strings.TrimSpace(groupID) == "":
		return nil, errors.New("content submission consumer: no group id")
	case len(topics) == 0:
		return nil, errors.New("content submission consumer: no topics")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     time.Second,
		// Zero keeps commits synchronous.
		CommitInterval: 0,
	})
	return &KafkaConsumer{reader: reader, window: pollWindow}, nil
}

// Poll gathers up to max fetched messages within one poll window.
func (c *KafkaConsumer) Poll(ctx context.Context, max int) ([]Message, error) {
	max = maxOr(max, 1)
	windowCtx, cancel := context.WithTimeout(ctx, c.window)
	defer cancel()

	var batch []Message
	for len(batch) < max {
		msg, err := c.reader.FetchMessage(windowCtx)
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return batch, nil
			}
			return batch, err
		}
		batch = append(batch, fromKafka(msg))
	}
	return batch, nil
}

func (c *KafkaConsumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return c.reader.CommitMessages(ctx, toKafkaRefs(msgs)...)
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

func fromKafka(msg kafka.Message) Message {
	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       string(msg.Key),
		Payload:   msg.Value,
	}
}

// toKafkaRefs keeps only what the group commit reads.
func toKafkaRefs(msgs []Message) []kafka.Message {
	refs := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		refs[i] = kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset}
	}
	return refs
}

func maxOr(n, floor int) int {
	if n < floor {
		return floor
	}
	return n
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
