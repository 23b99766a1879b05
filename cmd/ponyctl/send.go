package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/pubsub"
	"github.com/frkn-dev/pony/internal/wire"
)

// subscriberGrace is how long send waits for subscribers to connect before
// publishing; the frame is published once the full period has passed,
// whether or not any subscriber connected. ponyctl is a manual dev tool, not
// a durable producer, so a missed window just means trying again.
const subscriberGrace = 3 * time.Second

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	listenAddr := fs.String("listen", "127.0.0.1:7777", "address to publish on")
	topic := fs.String("topic", model.TopicAll, "topic to publish the batch on")
	frameFile := fs.String("frame-file", "-", "path to a base64-encoded frame (gen's output), or - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	frame, err := readFrame(*frameFile)
	if err != nil {
		return err
	}

	return publishFrame(*listenAddr, *topic, frame)
}

func readFrame(path string) ([]byte, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	frame, err := base64.StdEncoding.DecodeString(trimNewline(raw))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return frame, nil
}

func trimNewline(b []byte) string {
	s := string(b)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func publishFrame(listenAddr, topic string, frame []byte) error {
	if _, err := wire.DecodeBatch(frame); err != nil {
		return fmt.Errorf("refusing to publish an undecodeable frame: %w", err)
	}

	pub, err := pubsub.NewPublisher(listenAddr)
	if err != nil {
		return fmt.Errorf("start publisher on %s: %w", listenAddr, err)
	}
	defer pub.Close()

	fmt.Printf("publishing on %s, waiting %s for subscribers to connect...\n", pub.Addr(), subscriberGrace)
	time.Sleep(subscriberGrace)

	pub.Publish(topic, frame)
	fmt.Printf("published %s on topic %q\n", humanize.Bytes(uint64(len(frame))), topic)

	// Give the write loop a moment to actually flush before the publisher
	// (and its listener) is torn down on return.
	time.Sleep(200 * time.Millisecond)
	return nil
}
