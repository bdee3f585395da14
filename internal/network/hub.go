// Package network streams the live console session to read-only observers
// over WebSocket and serves the session history as JSON.
package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
	"github.com/MRamiBalles/reactorsim/internal/platform/metrics"
)

// Message kinds pushed to observers.
const (
	KindTurn  = "turn"
	KindEvent = "event"
)

// Message is the envelope of everything sent over the socket.
type Message struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

const broadcastBuffer = 64

// Hub maintains the set of active clients and broadcasts messages to them.
// It also keeps the latest turn report for the state endpoint.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	logger     *logger.Logger

	latestMu sync.RWMutex
	latest   *engine.TurnReport
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     log,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("Observer connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("Observer disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					metrics.Get().RecordWSMessage(false)
				default:
					// Slow observer; drop it rather than stall the session.
					close(client.send)
					delete(h.clients, client)
					metrics.Get().RecordWSConnection(-1)
					metrics.Get().RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount reports how many observers are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) publish(kind string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to serialize broadcast", "kind", kind, "error", err)
		return
	}
	payload, err := json.Marshal(Message{Kind: kind, Data: data})
	if err != nil {
		h.logger.Error("Failed to serialize broadcast", "kind", kind, "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		// The operator's turn loop never waits on observers.
		metrics.Get().RecordWSError()
		h.logger.Warn("Broadcast queue full, dropping message", "kind", kind)
	}
}

// PublishReport records the report as the latest state and pushes it to
// every observer. Register it with Engine.OnTurn.
func (h *Hub) PublishReport(r engine.TurnReport) {
	h.latestMu.Lock()
	h.latest = &r
	h.latestMu.Unlock()
	h.publish(KindTurn, r)
}

// Latest returns the last published report.
func (h *Hub) Latest() (engine.TurnReport, bool) {
	h.latestMu.RLock()
	defer h.latestMu.RUnlock()
	if h.latest == nil {
		return engine.TurnReport{}, false
	}
	return *h.latest, true
}

// StartEventPoller spawns a goroutine that polls the EventLog and pushes
// new events to the Hub, independent of the console loop.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		processed := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, event := range eventLog.Since(processed) {
					h.publish(KindEvent, event)
					processed++
				}
			}
		}
	}()
}
