package bridge

import (
	"context"
	"sync"

	"chatlink-service/internal/models"
)

const subscriberBuffer = 4

// MemoryBridge is the single-process realization: a mutex-guarded registry of
// subscriber channels keyed by link token.
type MemoryBridge struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySubscription]struct{}
}

// NewMemoryBridge creates an empty bridge.
func NewMemoryBridge() *MemoryBridge {
	return &MemoryBridge{subs: make(map[string]map[*memorySubscription]struct{})}
}

// Publish delivers the event to every current subscriber of the key. A slow
// subscriber whose buffer is full misses the event rather than blocking the
// webhook handler.
func (b *MemoryBridge) Publish(_ context.Context, key string, event models.LinkEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[key] {
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber for the key.
func (b *MemoryBridge) Subscribe(_ context.Context, key string) (Subscription, error) {
	sub := &memorySubscription{
		bridge: b,
		key:    key,
		ch:     make(chan models.LinkEvent, subscriberBuffer),
	}
	b.mu.Lock()
	if _, ok := b.subs[key]; !ok {
		b.subs[key] = make(map[*memorySubscription]struct{})
	}
	b.subs[key][sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

// Close tears down every subscription.
func (b *MemoryBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, subs := range b.subs {
		for sub := range subs {
			sub.closeLocked()
		}
		delete(b.subs, key)
	}
	return nil
}

type memorySubscription struct {
	bridge *MemoryBridge
	key    string
	ch     chan models.LinkEvent
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan models.LinkEvent {
	return s.ch
}

// Close removes the registration and closes the event channel. Removal and
// close happen under the bridge write lock, so a concurrent Publish can never
// send on a closed channel.
func (s *memorySubscription) Close() error {
	s.bridge.mu.Lock()
	defer s.bridge.mu.Unlock()
	if subs, ok := s.bridge.subs[s.key]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.bridge.subs, s.key)
		}
	}
	s.closeLocked()
	return nil
}

func (s *memorySubscription) closeLocked() {
	s.once.Do(func() { close(s.ch) })
}
