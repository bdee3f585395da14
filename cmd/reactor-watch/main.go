// Package main - reactor-watch
// Telemetry client: follows a running console over its websocket feed.
// With -clients > 1 it becomes a fan-out load check for the hub.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/network"
)

// Config for the watcher
type Config struct {
	ServerURL  string
	NumClients int
	Duration   time.Duration
	Quiet      bool
}

// Stats tracks what the clients saw.
type Stats struct {
	Turns    int64
	Events   int64
	Errors   int64
	Dropped  int64 // clients the server disconnected
	LastTurn int64
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "telemetry websocket URL")
	numClients := flag.Int("clients", 1, "number of concurrent watchers")
	duration := flag.Duration("duration", 0, "stop after this long (0 = until interrupted)")
	quiet := flag.Bool("quiet", false, "only print the final stats")
	flag.Parse()

	cfg := Config{
		ServerURL:  *serverURL,
		NumClients: *numClients,
		Duration:   *duration,
		Quiet:      *quiet || *numClients > 1,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	start := time.Now()
	stats := watch(ctx, cfg)
	printStats(stats, cfg, time.Since(start))
	if atomic.LoadInt64(&stats.Errors) > 0 {
		os.Exit(1)
	}
}

func watch(ctx context.Context, cfg Config) *Stats {
	stats := &Stats{}
	var wg sync.WaitGroup
	for i := 0; i < cfg.NumClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runClient(ctx, id, cfg, stats)
		}(i)
		if cfg.NumClients > 1 {
			// Stagger starts so the hub sees a ramp, not a burst.
			time.Sleep(10 * time.Millisecond)
		}
	}
	wg.Wait()
	return stats
}

func runClient(ctx context.Context, id int, cfg Config, stats *Stats) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "client %d: connect: %v\n", id, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				atomic.AddInt64(&stats.Dropped, 1)
			}
			return
		}

		var msg network.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			atomic.AddInt64(&stats.Errors, 1)
			continue
		}
		switch msg.Kind {
		case network.KindTurn:
			var r engine.TurnReport
			if err := json.Unmarshal(msg.Data, &r); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				continue
			}
			atomic.AddInt64(&stats.Turns, 1)
			atomic.StoreInt64(&stats.LastTurn, int64(r.Turn))
			if !cfg.Quiet {
				printTurn(r)
			}
		case network.KindEvent:
			var e events.TurnEvent
			if err := json.Unmarshal(msg.Data, &e); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				continue
			}
			atomic.AddInt64(&stats.Events, 1)
			if !cfg.Quiet && e.Type != events.EventTypeTurnAdvanced {
				fmt.Printf("         event %-22s turn %d by %s\n", e.Type, e.Turn, e.Actor)
			}
		}
	}
}

func printTurn(r engine.TurnReport) {
	s := r.State
	fmt.Printf("turn %-4d day %d %02d:00 [%s] T=%.0f°C n=%s rods=%.0f%% power=%s score=%s\n",
		r.Turn, r.Day, r.Hour, r.Mode,
		s.Temperature, humanize.SIWithDigits(s.Neutrons, 2, ""),
		s.ControlRods*100, humanize.SIWithDigits(s.Electricity*1e6, 1, "W"),
		humanize.Comma(r.Score))
	for _, w := range r.Warnings {
		fmt.Printf("         warning %s: %s\n", w.Code, w.Message)
	}
}

func printStats(stats *Stats, cfg Config, elapsed time.Duration) {
	fmt.Println("=========================================")
	fmt.Printf("Clients:      %d\n", cfg.NumClients)
	fmt.Printf("Elapsed:      %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Turn frames:  %d (last turn %d)\n", atomic.LoadInt64(&stats.Turns), atomic.LoadInt64(&stats.LastTurn))
	fmt.Printf("Event frames: %d\n", atomic.LoadInt64(&stats.Events))
	fmt.Printf("Dropped:      %d\n", atomic.LoadInt64(&stats.Dropped))
	fmt.Printf("Errors:       %d\n", atomic.LoadInt64(&stats.Errors))
	fmt.Println("=========================================")
}
