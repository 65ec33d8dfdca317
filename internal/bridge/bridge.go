// Package bridge connects webhook-driven state changes to clients waiting on
// a link token. It is a liveness notification channel, not a durable log:
// publishing with no subscribers drops the event, and there is no replay.
package bridge

import (
	"context"

	"chatlink-service/internal/models"
)

// Bridge is the publish/subscribe contract shared by the in-memory registry
// and the Redis-backed fan-out. Both give the same semantics: a key may have
// zero or many subscribers, publish-before-subscribe is a silent miss, and
// closing one subscription never affects its siblings.
type Bridge interface {
	Publish(ctx context.Context, key string, event models.LinkEvent) error
	Subscribe(ctx context.Context, key string) (Subscription, error)
	Close() error
}

// Subscription is one subscriber's view of a key. Events is closed after
// Close. Close is idempotent and must be called on every exit path so the
// registration does not leak.
type Subscription interface {
	Events() <-chan models.LinkEvent
	Close() error
}
