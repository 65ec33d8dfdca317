package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatlink-service/internal/models"
)

func TestMemoryBridgeDeliversToSubscriber(t *testing.T) {
	b := NewMemoryBridge()
	sub, err := b.Subscribe(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	event := models.LinkEvent{Type: models.EventChatLinked, Token: "tok1", ChatID: 999}
	if err := b.Publish(context.Background(), "tok1", event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-sub.Events():
		if got != event {
			t.Fatalf("got %+v, want %+v", got, event)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestMemoryBridgePublishBeforeSubscribeIsMiss(t *testing.T) {
	b := NewMemoryBridge()
	if err := b.Publish(context.Background(), "tok1", models.LinkEvent{Type: models.EventChatLinked}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	sub, err := b.Subscribe(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		t.Fatalf("expected a miss, got %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBridgeFansOutToAllSubscribers(t *testing.T) {
	b := NewMemoryBridge()
	first, _ := b.Subscribe(context.Background(), "tok1")
	second, _ := b.Subscribe(context.Background(), "tok1")
	defer first.Close()
	defer second.Close()

	if err := b.Publish(context.Background(), "tok1", models.LinkEvent{Token: "tok1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, sub := range []Subscription{first, second} {
		select {
		case <-sub.Events():
		case <-time.After(time.Second):
			t.Fatal("subscriber missed the event")
		}
	}
}

func TestMemoryBridgeKeysAreIsolated(t *testing.T) {
	b := NewMemoryBridge()
	sub, _ := b.Subscribe(context.Background(), "other")
	defer sub.Close()

	_ = b.Publish(context.Background(), "tok1", models.LinkEvent{Token: "tok1"})

	select {
	case event := <-sub.Events():
		t.Fatalf("event leaked across keys: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBridgeCloseDoesNotAffectSiblings(t *testing.T) {
	b := NewMemoryBridge()
	closed, _ := b.Subscribe(context.Background(), "tok1")
	kept, _ := b.Subscribe(context.Background(), "tok1")
	defer kept.Close()

	if err := closed.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := closed.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if err := b.Publish(context.Background(), "tok1", models.LinkEvent{Token: "tok1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-kept.Events():
	case <-time.After(time.Second):
		t.Fatal("surviving subscriber missed the event")
	}
}

func TestMemoryBridgeConcurrentPublishAndClose(t *testing.T) {
	b := NewMemoryBridge()
	sub, _ := b.Subscribe(context.Background(), "tok1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Publish(context.Background(), "tok1", models.LinkEvent{Token: "tok1"})
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = sub.Close()
	}()
	wg.Wait()

	// Channel must be closed exactly once with no send-on-closed panic.
	for range sub.Events() {
	}
}
