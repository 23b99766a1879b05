package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishSubscribe_TopicFiltering(t *testing.T) {
	pub, err := NewPublisher("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer pub.Close()

	var mu sync.Mutex
	var received []string

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := NewSubscriber(pub.Addr().String(), []string{"env-dev", "all"}, func(topic string, payload []byte) {
		mu.Lock()
		received = append(received, topic+":"+string(payload))
		mu.Unlock()
	})

	go sub.Run(ctx)

	// Give the subscriber time to connect and register its filter.
	waitForSubscriberCount(t, pub, 1)

	pub.Publish("env-dev", []byte("hello"))
	pub.Publish("other-node", []byte("should not arrive"))
	pub.Publish("all", []byte("broadcast"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 delivered frames, got %d: %v", len(received), received)
	}
	if received[0] != "env-dev:hello" {
		t.Errorf("unexpected first frame: %q", received[0])
	}
	if received[1] != "all:broadcast" {
		t.Errorf("unexpected second frame: %q", received[1])
	}
}

func waitForSubscriberCount(t *testing.T, pub *Publisher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pub.mu.Lock()
		count := len(pub.subs)
		pub.mu.Unlock()
		if count >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d subscriber(s)", n)
}
