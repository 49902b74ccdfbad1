package events

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// StreamPublisher appends domain events to a Redis stream. Consumers
// (notification senders, audit sinks) read the stream with their own
// consumer groups; per-user ordering follows from the partition key field.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	if stream == "" {
		stream = "authd:events"
	}
	return &StreamPublisher{client: client, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, eventType, partitionKey string, payload []byte) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event_type":    eventType,
			"partition_key": partitionKey,
			"payload":       payload,
		},
	}).Err()
}

// LogPublisher writes events to the structured log instead of a broker.
// It backs the worker in environments without a stream to publish to.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, eventType, partitionKey string, payload []byte) error {
	p.logger.InfoContext(ctx, "published event",
		"event_type", eventType,
		"partition_key", partitionKey,
		"payload_bytes", len(payload),
	)
	return nil
}
