package pubsub

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"
)

// Handler processes one delivered frame. Handlers must be idempotent: the
// wire guarantees at-most-once, per-topic FIFO delivery from a single
// publisher. Frames published while a subscriber is disconnected are not
// delivered after it reconnects, and reconnecting triggers no resync.
type Handler func(topic string, payload []byte)

// Subscriber connects to one Publisher address and delivers frames matching
// its topic filter to Handler. It reconnects with backoff on failure,
// mirroring the retry loop in a ZeroMQ SUB client.
type Subscriber struct {
	addr    string
	topics  []string
	handler Handler

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewSubscriber creates a Subscriber for the given topics (typically the
// node's own id, its env, and the literal "all").
func NewSubscriber(addr string, topics []string, handler Handler) *Subscriber {
	return &Subscriber{
		addr:       addr,
		topics:     topics,
		handler:    handler,
		minBackoff: 200 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
}

// Run connects and delivers frames until ctx is cancelled, reconnecting on
// any connection error. It returns ctx.Err() once ctx is done; transient
// connection errors are logged and retried, never returned.
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := s.minBackoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := s.runOnce(ctx)
		if err == nil {
			return nil
		}
		log.Printf("pubsub: subscriber to %s disconnected: %v, reconnecting in %s", s.addr, err, backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

func (s *Subscriber) runOnce(ctx context.Context) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(strings.Join(s.topics, ",") + "\n")); err != nil {
		return fmt.Errorf("send topic filter: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	r := bufio.NewReader(conn)
	for {
		topic, payload, err := readFrame(r)
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		s.handler(topic, payload)
	}
}
