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

	"golang.org/x/sync/errgroup"

	"github.com/frkn-dev/pony/internal/agent"
	"github.com/frkn-dev/pony/internal/buildinfo"
	"github.com/frkn-dev/pony/internal/config"
)

func main() {
	log.Printf("Agent %s (commit %s, built %s)", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)

	configPath := flag.String("c", "/etc/pony/agent.toml", "path to the agent's TOML config file")
	flag.StringVar(configPath, "config", "/etc/pony/agent.toml", "path to the agent's TOML config file (same as -c)")
	flag.Parse()

	var cfg config.AgentFileConfig
	if err := config.Load(*configPath, &cfg); err != nil {
		fatalf("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := agent.Start(ctx, &cfg)
	if err != nil {
		fatalf("%v", err)
	}
	log.Printf("Agent registered as node %s", a.Node().ID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.RunSubscriber(gctx, cfg.Orchestrator.PubsubAddress) })
	g.Go(func() error { return a.RunStatLoop(gctx) })
	g.Go(func() error { return a.RunTelemetryLoop(gctx) })
	log.Println("Subscriber, stat, and telemetry loops started")

	var debugSrv *http.Server
	serverErrCh := make(chan error, 1)
	if cfg.DebugListenAddress != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug", agent.NewDebugHandler(a, cfg.DebugToken))
		debugSrv = &http.Server{Addr: cfg.DebugListenAddress, Handler: mux}
		go func() {
			log.Printf("Debug WebSocket listening on %s", cfg.DebugListenAddress)
			if err := debugSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrCh <- fmt.Errorf("debug server: %w", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down...", sig)
	case err := <-serverErrCh:
		log.Printf("Received server runtime error (%v), shutting down...", err)
	}

	if debugSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := debugSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Debug server shutdown error: %v", err)
		}
		shutdownCancel()
	}

	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Loop stopped with error: %v", err)
	}
	log.Println("Agent stopped")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
