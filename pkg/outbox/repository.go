package outbox

import "context"

// Repository persists outbox events
type Repository interface {
	// SaveAll stores events. Called with a transactional context so the events
	// commit or roll back together with the state change.
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns up to limit retryable events, oldest first
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry bumps the retry count and records the last error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// CountPending counts events still waiting for delivery
	CountPending(ctx context.Context) (int64, error)
}
