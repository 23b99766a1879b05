package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frkn-dev/pony/internal/agent"
	"github.com/frkn-dev/pony/internal/api"
	"github.com/frkn-dev/pony/internal/buildinfo"
	"github.com/frkn-dev/pony/internal/config"
	"github.com/frkn-dev/pony/internal/sidecar"
)

const defaultSnapshotInterval = 5 * time.Minute

func main() {
	log.Printf("Sidecar %s (commit %s, built %s)", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)

	configPath := flag.String("c", "/etc/pony/sidecar.toml", "path to the sidecar's TOML config file")
	flag.StringVar(configPath, "config", "/etc/pony/sidecar.toml", "path to the sidecar's TOML config file (same as -c)")
	flag.Parse()

	var cfg config.SidecarFileConfig
	if err := config.Load(*configPath, &cfg); err != nil {
		fatalf("%v", err)
	}

	sc := sidecar.New(cfg.Env)
	client := agent.NewRESTClient(cfg.Orchestrator.APIAddress, cfg.Orchestrator.BearerToken)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The subscriber must be running before cold start asks the orchestrator
	// to publish the delta, or the batch would arrive with nothing listening.
	subErrCh := make(chan error, 1)
	go func() {
		if err := sc.Subscribe(ctx, cfg.Orchestrator.PubsubAddress); err != nil && !errors.Is(err, context.Canceled) {
			subErrCh <- fmt.Errorf("subscriber: %w", err)
		}
	}()
	log.Println("Subscriber started")

	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := sc.ColdStart(startCtx, cfg.SnapshotPath, client); err != nil {
		startCancel()
		fatalf("cold start: %v", err)
	}
	startCancel()

	interval := cfg.SnapshotInterval.Std()
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	snapLoop := sc.RunSnapshotLoop(cfg.SnapshotPath, interval)
	log.Println("Snapshot loop started")

	srv := api.NewSidecarServer(cfg.ListenAddress, sc)

	serverErrCh := make(chan error, 1)
	go func() {
		log.Printf("Sidecar auth API listening on %s", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("auth server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down...", sig)
	case err := <-serverErrCh:
		log.Printf("Received server runtime error (%v), shutting down...", err)
	case err := <-subErrCh:
		log.Printf("Received subscriber runtime error (%v), shutting down...", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Auth server shutdown error: %v", err)
	}

	snapLoop.Stop()
	cancel()
	log.Println("Sidecar stopped")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
