package ports

import "context"

// EventPublisher is the outbound domain-event publish port. The partition
// key keeps per-user ordering when the broker shards by key.
// The application uses this abstraction to keep broker/client concerns in adapters.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, partitionKey string, payload []byte) error
}
