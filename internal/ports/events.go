package ports

import "context"

// EventPublisher delivers a claimed outbox record to the broker. The
// partition key keeps all events for one contract or wallet on one
// partition so consumers see them in order. The worker owns retries and
// dead-lettering around it.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
