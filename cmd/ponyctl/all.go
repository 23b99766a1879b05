package main

import (
	"flag"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/wire"
)

// runAll implements the all subcommand: craft the message, encode it, and
// publish it in one step, printing a human-readable summary of what was
// sent (§6: "gen+send in one step, printing a human-readable summary").
func runAll(args []string) error {
	fs := flag.NewFlagSet("all", flag.ExitOnError)
	mf := registerMessageFlags(fs)
	listenAddr := fs.String("listen", "127.0.0.1:7777", "address to publish on")
	topic := fs.String("topic", "", "topic to publish the batch on (defaults to the broadcast topic \"all\")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	msg, err := buildMessage(mf)
	if err != nil {
		return err
	}

	frame, err := wire.EncodeBatch(model.Batch{msg})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	effectiveTopic := *topic
	if effectiveTopic == "" {
		effectiveTopic = model.TopicAll
	}

	fmt.Printf("crafted %s Action=%s ProtoTag=%s -> %s frame\n",
		msg.ConnID, msg.Action, msg.ProtoTag, humanize.Bytes(uint64(len(frame))))

	return publishFrame(*listenAddr, effectiveTopic, frame)
}
