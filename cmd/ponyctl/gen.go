package main

import (
	"encoding/base64"
	"flag"
	"fmt"

	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/wire"
)

func buildMessage(mf *messageFlags) (model.Message, error) {
	if mf.connID == "" {
		return model.Message{}, fmt.Errorf("-conn-id is required")
	}

	msg := model.Message{
		ConnID:   mf.connID,
		Action:   model.Action(mf.action),
		ProtoTag: model.ProtoTag(mf.protoTag),
	}
	if mf.password != "" {
		msg.Password = &mf.password
	}
	if mf.hysteria2Token != "" {
		msg.Hysteria2Token = &mf.hysteria2Token
	}
	if mf.subscriptionID != "" {
		msg.SubscriptionID = &mf.subscriptionID
	}
	return msg, nil
}

// runGen implements the gen subcommand: craft one message, encode it as a
// single-message batch, and print the frame base64-encoded to stdout so it
// can be piped into `send -frame-file -` or inspected directly.
func runGen(args []string) error {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	mf := registerMessageFlags(fs)
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

	fmt.Println(base64.StdEncoding.EncodeToString(frame))
	return nil
}
