package queue

import (
	"context"
)

// Publisher publishes board events for downstream consumers
// This interface enables better testability by allowing mock implementations
type Publisher interface {
	// Publish emits an event
	Publish(ctx context.Context, event *Event) error

	// Close closes the queue connection
	Close() error

	// HealthCheck verifies the queue connection is healthy
	HealthCheck(ctx context.Context) error
}
