package bridge

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"chatlink-service/internal/models"
)

// RedisBridge fans events out through Redis pub/sub so the webhook router and
// the client-facing process can run as separate deployments. Same contract as
// MemoryBridge: no buffering, no replay.
type RedisBridge struct {
	client *redis.Client
	prefix string
}

// NewRedisBridge wraps an existing client. The prefix namespaces the pub/sub
// channels (one Redis often serves several services).
func NewRedisBridge(client *redis.Client, prefix string) *RedisBridge {
	return &RedisBridge{client: client, prefix: prefix}
}

func (b *RedisBridge) channel(key string) string {
	return b.prefix + ":" + key
}

// Publish serializes the event and pushes it to the key's channel.
func (b *RedisBridge) Publish(ctx context.Context, key string, event models.LinkEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel(key), payload).Err()
}

// Subscribe opens a dedicated Redis subscription for the key. The initial
// Receive waits for the subscription confirmation so a Publish issued after
// Subscribe returns is guaranteed to be seen.
func (b *RedisBridge) Subscribe(ctx context.Context, key string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel(key))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan models.LinkEvent, subscriberBuffer),
	}
	go sub.loop()
	return sub, nil
}

// Close is a no-op: the Redis client is owned by the caller.
func (b *RedisBridge) Close() error {
	return nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan models.LinkEvent
}

func (s *redisSubscription) loop() {
	defer close(s.ch)
	for msg := range s.pubsub.Channel() {
		var event models.LinkEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("bridge: dropping undecodable event: %v", err)
			continue
		}
		select {
		case s.ch <- event:
		default:
		}
	}
}

func (s *redisSubscription) Events() <-chan models.LinkEvent {
	return s.ch
}

// Close unsubscribes; the message channel closes, which ends loop and closes
// Events.
func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
