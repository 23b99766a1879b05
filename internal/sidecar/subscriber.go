package sidecar

import (
	"context"
	"log"

	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/pubsub"
	"github.com/frkn-dev/pony/internal/wire"
)

// Subscribe starts the sidecar's event subscriber on its env topic plus the
// broadcast "all" topic — "a dedicated subscription key wildcard" (§6) here
// is simply never subscribing to any node-specific topic, since WireGuard
// peer-bind events (the only node-scoped messages) are of no interest to the
// Hysteria2 token index. It blocks until ctx is done.
func (s *Sidecar) Subscribe(ctx context.Context, pubsubAddr string) error {
	sub := pubsub.NewSubscriber(pubsubAddr, []string{s.env, model.TopicAll}, s.handleFrame)
	return sub.Run(ctx)
}

func (s *Sidecar) handleFrame(topic string, payload []byte) {
	batch, err := wire.DecodeBatch(payload)
	if err != nil {
		log.Printf("sidecar: dropping batch on topic %q: %v", topic, err)
		return
	}
	for i := range batch {
		s.applyMessage(batch[i])
	}
	s.signalDelta()
}
