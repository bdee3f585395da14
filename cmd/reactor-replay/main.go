// Package main - reactor-replay
// Runs the built-in seeded scenarios headlessly and recaps stored sessions.
//
//	reactor-replay [flags] [run [scenario...]]
//	reactor-replay [flags] list
//	reactor-replay [flags] sessions
//	reactor-replay [flags] recap <session-id>
//	reactor-replay [flags] autopilot [turns]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MRamiBalles/reactorsim/internal/autopilot"
	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/infra/storage"
	"github.com/MRamiBalles/reactorsim/internal/platform/config"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
	"github.com/MRamiBalles/reactorsim/internal/scenario"
)

func main() {
	code, err := run()
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(os.Stderr, "reactor-replay:", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := config.Load("reactor-replay", os.Args[1:])
	if err != nil {
		return 2, err
	}
	s := cfg.Settings

	appLogger, err := logger.New(logger.Options{Level: s.LogLevel, File: s.LogFile, Journal: s.LogJournal})
	if err != nil {
		return 2, err
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := cfg.Args
	verb := "run"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	switch verb {
	case "list":
		for _, sc := range scenario.Builtin() {
			fmt.Printf("%-22s %s\n", sc.Name, sc.Description)
		}
		return 0, nil
	case "run":
		return runScenarios(ctx, s, appLogger, args)
	case "autopilot":
		return fly(ctx, cfg, appLogger, args)
	case "sessions", "recap":
		store, err := storage.NewStore(ctx, s.Storage, s.StorageDSN)
		if err != nil {
			return 2, err
		}
		defer store.Close()
		if verb == "sessions" {
			return listSessions(ctx, store)
		}
		if len(args) != 1 {
			return 2, errors.New("recap needs exactly one session id")
		}
		return recap(ctx, store, args[0])
	}
	return 2, fmt.Errorf("unknown command %q (want run, list, sessions, recap or autopilot)", verb)
}

func runScenarios(ctx context.Context, s config.Settings, log *logger.Logger, names []string) (int, error) {
	list, err := scenario.Find(scenario.Builtin(), names...)
	if err != nil {
		return 2, err
	}

	// Each scenario is recorded as its own session so it can be recapped later.
	var persister events.EventPersister
	if s.Storage != storage.KindMemory {
		store, err := storage.NewStore(ctx, s.Storage, s.StorageDSN)
		if err != nil {
			return 2, err
		}
		defer store.Close()
		persister = storage.NewEventPersister(store)
	}

	fmt.Println("REACTOR SCENARIO SUITE")
	fmt.Println(strings.Repeat("=", 60))

	results := scenario.NewRunner(log, persister).RunAll(ctx, list)
	passed, failed := 0, 0
	for _, r := range results {
		if r.Passed {
			passed++
			turns := 0
			if r.Outcome != nil {
				turns = r.Outcome.Turn
			}
			fmt.Printf("PASS  %-22s turn %d\n", r.Scenario, turns)
			continue
		}
		failed++
		fmt.Printf("FAIL  %s\n", r.Scenario)
		for _, f := range r.Failures {
			fmt.Printf("        %s\n", f)
		}
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("passed %d, failed %d\n", passed, failed)
	if failed > 0 || len(results) < len(list) {
		return 1, nil
	}
	return 0, nil
}

func listSessions(ctx context.Context, store storage.Store) (int, error) {
	ids, err := store.Sessions(ctx)
	if err != nil {
		return 1, err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return 0, nil
}

func recap(ctx context.Context, store storage.Store, sessionID string) (int, error) {
	rc, err := storage.NewReconstructor(store).Recap(ctx, sessionID)
	if err != nil {
		return 1, err
	}

	fmt.Printf("Session %s (%s)\n", rc.SessionID, rc.Difficulty)
	fmt.Printf("  turns %d, score %d, energy %.0f MWh\n", rc.Turns, rc.FinalScore, rc.EnergyDelivered)
	fmt.Printf("  scrams %d, restarts %d, peak %.1f°C, meltdown %v\n", rc.Scrams, rc.Restarts, rc.PeakTemperature, rc.Meltdown)

	kinds := make([]string, 0, len(rc.RandomEvents))
	for k := range rc.RandomEvents {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("  event %-16s x%d\n", k, rc.RandomEvents[k])
	}
	if len(rc.Achievements) > 0 {
		fmt.Printf("  achievements: %s\n", strings.Join(rc.Achievements, ", "))
	}
	fmt.Println("Timeline:")
	for _, e := range rc.Timeline {
		fmt.Printf("  t%-5d %-8s %s\n", e.Turn, e.Impact, e.Summary)
	}
	return 0, nil
}

func fly(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string) (int, error) {
	s := cfg.Settings
	turns := 240
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return 2, fmt.Errorf("invalid turn count %q", args[0])
		}
		turns = n
	}
	subs, err := engine.ParseSubsystems(s.Subsystems)
	if err != nil {
		return 2, err
	}
	seed := s.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	var persister events.EventPersister
	if s.Storage != storage.KindMemory {
		store, err := storage.NewStore(ctx, s.Storage, s.StorageDSN)
		if err != nil {
			return 2, err
		}
		defer store.Close()
		persister = storage.NewEventPersister(store)
	}

	eventLog := events.NewEventLog("", persister)
	eng, err := engine.NewEngine(engine.Options{Params: cfg.Params, Seed: seed, Subsystems: subs}, eventLog, log)
	if err != nil {
		return 2, err
	}

	f, err := autopilot.NewPilot(eng, log).Fly(ctx, turns)
	if err != nil {
		return 1, err
	}

	fmt.Printf("Autopilot session %s (%s, seed %d, %s)\n", eventLog.SessionID(), cfg.Params.Name, seed, subs)
	fmt.Printf("  turns %d, decisions %d, blocked %d, scrams %d, score %d\n",
		f.Turns, f.Decisions, f.Blocked, f.Scrams, f.Score)
	objectives := make([]string, 0, len(f.ByObjective))
	for name := range f.ByObjective {
		objectives = append(objectives, name)
	}
	sort.Strings(objectives)
	for _, name := range objectives {
		fmt.Printf("  %-18s x%d\n", name, f.ByObjective[name])
	}
	if f.Meltdown {
		fmt.Println("  MELTDOWN")
		return 1, nil
	}
	return 0, nil
}
