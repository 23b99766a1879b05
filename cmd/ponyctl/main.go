// Command ponyctl crafts and publishes pub/sub event batches (§6 CLI), for
// manually driving an agent or the auth sidecar through a lifecycle event
// without a full orchestrator running.
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "gen":
		err = runGen(os.Args[2:])
	case "send":
		err = runSend(os.Args[2:])
	case "all":
		err = runAll(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fatalf("%v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ponyctl <gen|send|all> [flags]")
	fmt.Fprintln(os.Stderr, "  gen  - craft an event batch from flags and print its encoded frame")
	fmt.Fprintln(os.Stderr, "  send - publish a crafted or file-loaded batch to a topic")
	fmt.Fprintln(os.Stderr, "  all  - gen + send in one step, printing a summary")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}

// messageFlags are the flags shared by gen and all for crafting one message.
type messageFlags struct {
	connID         string
	action         string
	protoTag       string
	password       string
	hysteria2Token string
	subscriptionID string
}

func registerMessageFlags(fs *flag.FlagSet) *messageFlags {
	mf := &messageFlags{}
	fs.StringVar(&mf.connID, "conn-id", "", "connection id (required)")
	fs.StringVar(&mf.action, "action", "Create", "Create|Update|Delete|ResetStat")
	fs.StringVar(&mf.protoTag, "proto", "", "proto tag, e.g. Shadowsocks, Hysteria2, Wireguard")
	fs.StringVar(&mf.password, "password", "", "password, for Shadowsocks connections")
	fs.StringVar(&mf.hysteria2Token, "hysteria2-token", "", "token, for Hysteria2 connections")
	fs.StringVar(&mf.subscriptionID, "subscription-id", "", "owning subscription id")
	return mf
}
