// Package main is the entry point for the interactive reactor console.
// It only handles dependency injection and startup.
// NO simulation logic belongs here.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MRamiBalles/reactorsim/internal/console"
	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/infra/storage"
	"github.com/MRamiBalles/reactorsim/internal/network"
	"github.com/MRamiBalles/reactorsim/internal/platform/config"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

const pollInterval = 200 * time.Millisecond

func main() {
	if err := run(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "reactor:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("reactor", os.Args[1:])
	if err != nil {
		return err
	}
	s := cfg.Settings

	// With a log file the text sink would only interleave with the dashboard.
	var logWriter io.Writer = os.Stderr
	if s.LogFile != "" {
		logWriter = io.Discard
	}
	appLogger, err := logger.New(logger.Options{Level: s.LogLevel, Writer: logWriter, File: s.LogFile, Journal: s.LogJournal})
	if err != nil {
		return err
	}
	defer appLogger.Close()

	subs, err := engine.ParseSubsystems(s.Subsystems)
	if err != nil {
		return err
	}
	seed := s.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger.Info("Opening storage", "kind", s.Storage)
	store, err := storage.NewStore(ctx, s.Storage, s.StorageDSN)
	if err != nil {
		// Persistence is never fatal: the game runs, it just forgets.
		appLogger.Warn("Storage unavailable, using memory", "kind", s.Storage, "error", err)
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	eventLog := events.NewEventLog("", storage.NewEventPersister(store))
	eng, err := engine.NewEngine(engine.Options{Params: cfg.Params, Seed: seed, Subsystems: subs}, eventLog, appLogger)
	if err != nil {
		return err
	}

	if s.TelemetryAddr != "" {
		shutdown := startTelemetry(ctx, s.TelemetryAddr, eng, eventLog, appLogger)
		defer shutdown()
	}

	con := console.New(ctx, console.Options{
		Engine:   eng,
		Store:    store,
		SavePath: s.SavePath,
		In:       os.Stdin,
		Out:      os.Stdout,
		Logger:   appLogger,
	})
	runErr := con.Run(ctx)

	// The summary is written even after Ctrl+C, with a fresh deadline.
	finishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	con.Finish(finishCtx)
	return runErr
}

func startTelemetry(ctx context.Context, addr string, eng *engine.Engine, eventLog *events.EventLog, log *logger.Logger) func() {
	hub := network.NewHub(log)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog, pollInterval)
	eng.OnTurn(hub.PublishReport)
	hub.PublishReport(eng.Report())

	srv := &http.Server{
		Addr:              addr,
		Handler:           network.NewRouter(hub, eventLog, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Telemetry listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Telemetry server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
}
