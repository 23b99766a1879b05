package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frkn-dev/pony/internal/api"
	"github.com/frkn-dev/pony/internal/buildinfo"
	"github.com/frkn-dev/pony/internal/cache"
	"github.com/frkn-dev/pony/internal/config"
	"github.com/frkn-dev/pony/internal/orchestrator"
	"github.com/frkn-dev/pony/internal/pubsub"
	"github.com/frkn-dev/pony/internal/store"
	"github.com/frkn-dev/pony/internal/timeseries"
)

func main() {
	log.Printf("Orchestrator %s (commit %s, built %s)", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)

	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fatalf("%v", err)
	}

	st, err := store.New(envCfg.StorePath)
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer st.Close()
	log.Println("Durable store opened")

	ts, err := timeseries.NewSQLiteStore(envCfg.TimeseriesPath)
	if err != nil {
		fatalf("open timeseries store: %v", err)
	}
	defer ts.Close()
	log.Println("Timeseries store opened")

	pub, err := pubsub.NewPublisher(envCfg.PubsubListenAddress)
	if err != nil {
		fatalf("open pub/sub publisher: %v", err)
	}
	defer pub.Close()
	log.Printf("Pub/sub publisher listening on %s", pub.Addr())

	o := orchestrator.New(st, cache.New(), ts, pub, envCfg)

	health := orchestrator.NewHealthLoop(o)
	health.Start()
	log.Println("Health loop started")

	quota := orchestrator.NewQuotaLoop(o)
	quota.Start()
	log.Println("Quota loop started")

	reactivation := orchestrator.NewReactivationLoop(o)
	reactivation.Start()
	log.Println("Reactivation loop started")

	srv := api.NewServer(envCfg, o)

	serverErrCh := make(chan error, 1)
	go func() {
		log.Printf("Orchestrator API listening on %s", envCfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runtimeErr error
	select {
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down...", sig)
	case err := <-serverErrCh:
		runtimeErr = err
		log.Printf("Received server runtime error (%v), shutting down...", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("API server shutdown error: %v", err)
	}

	reactivation.Stop()
	quota.Stop()
	health.Stop()
	log.Println("Orchestrator stopped")

	if runtimeErr != nil {
		fatalf("runtime server error: %v", runtimeErr)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
