// Package metrics provides observability for the simulator process.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Turn metrics
	TurnCount      int64
	TurnLatencySum int64 // nanoseconds
	TurnLatencyMax int64
	LastTurnTime   time.Time

	// Safety metrics
	Scrams       int64
	Restarts     int64
	Meltdowns    int64
	RandomEvents int64
	Warnings     int64

	// Event metrics
	EventsWritten    int64
	EventWriteLatSum int64
	EventWriteLatMax int64
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = New()

// New returns an empty collector. Most callers want Get.
func New() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

func storeMax(addr *int64, v int64) {
	for {
		cur := atomic.LoadInt64(addr)
		if v <= cur || atomic.CompareAndSwapInt64(addr, cur, v) {
			return
		}
	}
}

// RecordTurn records a completed turn.
func (c *Collector) RecordTurn(latency time.Duration) {
	atomic.AddInt64(&c.TurnCount, 1)
	atomic.AddInt64(&c.TurnLatencySum, int64(latency))
	storeMax(&c.TurnLatencyMax, int64(latency))

	c.mu.Lock()
	c.LastTurnTime = time.Now()
	c.mu.Unlock()
}

// RecordScram records an automatic shutdown.
func (c *Collector) RecordScram() {
	atomic.AddInt64(&c.Scrams, 1)
}

// RecordRestart records a manual restart after SCRAM.
func (c *Collector) RecordRestart() {
	atomic.AddInt64(&c.Restarts, 1)
}

// RecordMeltdown records a terminal meltdown.
func (c *Collector) RecordMeltdown() {
	atomic.AddInt64(&c.Meltdowns, 1)
}

// RecordRandomEvent records a fired random event.
func (c *Collector) RecordRandomEvent() {
	atomic.AddInt64(&c.RandomEvents, 1)
}

// RecordWarnings adds n warnings raised in a turn.
func (c *Collector) RecordWarnings(n int) {
	atomic.AddInt64(&c.Warnings, int64(n))
}

// RecordEventWrite records an event write to the database.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))
	storeMax(&c.EventWriteLatMax, int64(latency))

	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	turnCount := atomic.LoadInt64(&c.TurnCount)
	eventsWritten := atomic.LoadInt64(&c.EventsWritten)

	// Calculate averages
	var turnAvg, eventAvg float64
	if turnCount > 0 {
		turnAvg = float64(atomic.LoadInt64(&c.TurnLatencySum)) / float64(turnCount) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6
	}

	lastTurn := ""
	if !c.LastTurnTime.IsZero() {
		lastTurn = c.LastTurnTime.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"turn": map[string]interface{}{
			"count":          turnCount,
			"avg_latency_ms": turnAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TurnLatencyMax)) / 1e6,
			"last_turn":      lastTurn,
		},

		"safety": map[string]interface{}{
			"scrams":        atomic.LoadInt64(&c.Scrams),
			"restarts":      atomic.LoadInt64(&c.Restarts),
			"meltdowns":     atomic.LoadInt64(&c.Meltdowns),
			"random_events": atomic.LoadInt64(&c.RandomEvents),
			"warnings":      atomic.LoadInt64(&c.Warnings),
		},

		"events": map[string]interface{}{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.EventWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return collector.Handler()
}

// Handler serves this collector's snapshot as JSON.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return collector.PrometheusHandler()
}

// PrometheusHandler serves this collector in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		// Turn metrics
		fmt.Fprintf(w, "# HELP reactor_turns_total Total turns simulated\n")
		fmt.Fprintf(w, "# TYPE reactor_turns_total counter\n")
		fmt.Fprintf(w, "reactor_turns_total %d\n\n", atomic.LoadInt64(&c.TurnCount))

		fmt.Fprintf(w, "# HELP reactor_turn_latency_max_ms Maximum turn latency\n")
		fmt.Fprintf(w, "# TYPE reactor_turn_latency_max_ms gauge\n")
		fmt.Fprintf(w, "reactor_turn_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TurnLatencyMax))/1e6)

		// Safety metrics
		fmt.Fprintf(w, "# HELP reactor_scrams_total Automatic shutdowns\n")
		fmt.Fprintf(w, "# TYPE reactor_scrams_total counter\n")
		fmt.Fprintf(w, "reactor_scrams_total %d\n\n", atomic.LoadInt64(&c.Scrams))

		fmt.Fprintf(w, "# HELP reactor_meltdowns_total Sessions lost to meltdown\n")
		fmt.Fprintf(w, "# TYPE reactor_meltdowns_total counter\n")
		fmt.Fprintf(w, "reactor_meltdowns_total %d\n\n", atomic.LoadInt64(&c.Meltdowns))

		fmt.Fprintf(w, "# HELP reactor_random_events_total Random events fired\n")
		fmt.Fprintf(w, "# TYPE reactor_random_events_total counter\n")
		fmt.Fprintf(w, "reactor_random_events_total %d\n\n", atomic.LoadInt64(&c.RandomEvents))

		// Event metrics
		fmt.Fprintf(w, "# HELP reactor_events_written Total events written\n")
		fmt.Fprintf(w, "# TYPE reactor_events_written counter\n")
		fmt.Fprintf(w, "reactor_events_written %d\n\n", atomic.LoadInt64(&c.EventsWritten))

		fmt.Fprintf(w, "# HELP reactor_event_write_errors Total event write errors\n")
		fmt.Fprintf(w, "# TYPE reactor_event_write_errors counter\n")
		fmt.Fprintf(w, "reactor_event_write_errors %d\n\n", atomic.LoadInt64(&c.EventWriteErrors))

		// WebSocket metrics
		fmt.Fprintf(w, "# HELP reactor_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE reactor_ws_connections gauge\n")
		fmt.Fprintf(w, "reactor_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP reactor_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE reactor_ws_messages_total counter\n")
		fmt.Fprintf(w, "reactor_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "reactor_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
