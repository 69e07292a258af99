// internal/notify/notifier.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Kind classifies an outbound notification event.
type Kind string

const (
	KindPurchaseCompleted Kind = "purchase_completed"
	KindProductSold       Kind = "product_sold"
	KindTopUp             Kind = "top_up"
)

// Event is the payload pushed onto the outbound queue.
type Event struct {
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier delivers fire-and-forget events to users. Delivery is best
// effort: a failure here must never roll back a settled transaction, so
// the ledger service only ever logs errors from Notify.
type Notifier interface {
	Notify(ctx context.Context, userID int64, message string, kind Kind) error
}

// RedisNotifier pushes events onto a Redis list consumed by the
// notification workers. Keeping the queue outside the database transaction
// is what decouples delivery from settlement.
type RedisNotifier struct {
	client *redis.Client
	queue  string
}

// NewRedisNotifier creates a notifier publishing to the given list key.
func NewRedisNotifier(client *redis.Client, queue string) *RedisNotifier {
	return &RedisNotifier{client: client, queue: queue}
}

// Notify marshals the event and LPUSHes it onto the queue.
func (n *RedisNotifier) Notify(ctx context.Context, userID int64, message string, kind Kind) error {
	event := Event{
		UserID:    userID,
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}
	if err := n.client.LPush(ctx, n.queue, string(payload)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue notification for user %d: %w", userID, err)
	}
	return nil
}

// NopNotifier discards every event. Used when Redis is not configured and
// in tests that don't care about notifications.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(ctx context.Context, userID int64, message string, kind Kind) error {
	return nil
}
