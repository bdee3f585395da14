package network

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

type fixture struct {
	engine *engine.Engine
	log    *events.EventLog
	hub    *Hub
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, err := logger.New(logger.Options{Writer: io.Discard})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	el := events.NewEventLog("net-test", nil)
	eng, err := engine.NewEngine(engine.Options{Params: reactor.Normal(), Seed: 3, Subsystems: engine.SubsystemsNone}, el, log)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(log)
	go hub.Run(ctx)
	eng.OnTurn(hub.PublishReport)

	srv := httptest.NewServer(NewRouter(hub, el, log))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &fixture{engine: eng, log: el, hub: hub, server: srv}
}

func (f *fixture) getJSON(t *testing.T, path string, into any) int {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestStateEndpoint(t *testing.T) {
	f := newFixture(t)

	if code := f.getJSON(t, "/api/state", nil); code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before any turn, got %d", code)
	}

	f.engine.AdvanceTurn()
	f.engine.AdvanceTurn()

	var report engine.TurnReport
	if code := f.getJSON(t, "/api/state", &report); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if report.Turn != 2 {
		t.Errorf("Expected turn 2, got %d", report.Turn)
	}
	if report.State.Temperature != f.engine.State().Temperature {
		t.Errorf("Expected live temperature %.3f, got %.3f", f.engine.State().Temperature, report.State.Temperature)
	}
}

func TestHistoryFilters(t *testing.T) {
	f := newFixture(t)
	f.engine.Apply(engine.ParseCommand("80"))
	f.engine.AdvanceTurn()
	f.engine.AdvanceTurn()

	var all HistoryResponse
	f.getJSON(t, "/api/history", &all)
	if all.SessionID != "net-test" || all.TotalEvents != f.log.Len() {
		t.Errorf("Expected %d events for net-test, got %d for %s", f.log.Len(), all.TotalEvents, all.SessionID)
	}

	var turns HistoryResponse
	f.getJSON(t, "/api/history?type=TURN_ADVANCED", &turns)
	if turns.TotalEvents != 3 {
		t.Errorf("Expected 3 turn events, got %d", turns.TotalEvents)
	}

	var rods HistoryResponse
	f.getJSON(t, "/api/history?type=RODS_SET", &rods)
	if rods.TotalEvents != 1 || !strings.Contains(rods.Events[0].Summary, "80%") {
		t.Errorf("Expected one rod event at 80%%, got %+v", rods.Events)
	}

	var ranged HistoryResponse
	f.getJSON(t, "/api/history?from=2&to=3", &ranged)
	for _, e := range ranged.Events {
		if e.Turn < 2 || e.Turn > 3 {
			t.Errorf("Event outside range: %+v", e)
		}
	}

	var limited HistoryResponse
	f.getJSON(t, "/api/history?limit=1", &limited)
	if limited.TotalEvents != 1 || limited.Events[0].Turn != 3 {
		t.Errorf("Expected only the latest event, got %+v", limited.Events)
	}

	if code := f.getJSON(t, "/api/history?turn=abc", nil); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad turn, got %d", code)
	}
}

func TestHistoryStats(t *testing.T) {
	f := newFixture(t)
	f.engine.AdvanceTurn()

	var stats struct {
		Total  int            `json:"total_events"`
		ByType map[string]int `json:"by_type"`
	}
	f.getJSON(t, "/api/history/stats", &stats)
	if stats.ByType["TURN_ADVANCED"] != 1 || stats.ByType["SESSION_STARTED"] != 1 {
		t.Errorf("Unexpected counts: %v", stats.ByType)
	}
	if stats.Total != f.log.Len() {
		t.Errorf("Expected total %d, got %d", f.log.Len(), stats.Total)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	f := newFixture(t)
	f.engine.AdvanceTurn()

	if code := f.getJSON(t, "/metrics", &map[string]any{}); code != http.StatusOK {
		t.Errorf("Expected 200 from /metrics, got %d", code)
	}
	resp, err := http.Get(f.server.URL + "/metrics/prom")
	if err != nil {
		t.Fatalf("GET prom: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "reactor_") {
		t.Errorf("Expected reactor_ metrics, got %q", body)
	}
}

func TestWebSocketStreamsTurns(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Observer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.engine.AdvanceTurn()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Kind != KindTurn {
			continue
		}
		var r engine.TurnReport
		if err := json.Unmarshal(msg.Data, &r); err != nil {
			t.Fatalf("decode report: %v", err)
		}
		if r.Turn != 1 {
			t.Errorf("Expected turn 1, got %d", r.Turn)
		}
		return
	}
}

func TestEventPollerForwardsLog(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	for f.hub.ClientCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.hub.StartEventPoller(ctx, f.log, 10*time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg Message
		json.Unmarshal(data, &msg)
		if msg.Kind != KindEvent {
			continue
		}
		var e events.TurnEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if e.Type != events.EventTypeSessionStarted {
			t.Errorf("Expected the session start first, got %s", e.Type)
		}
		return
	}
}
