package network

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

// HistoryHandler serves the operator log of the running session.
type HistoryHandler struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(el *events.EventLog, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		eventLog: el,
		logger:   log,
	}
}

// HistoryEvent is one log entry as served to observers.
type HistoryEvent struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Turn      int            `json:"turn"`
	Type      string         `json:"type"`
	Actor     string         `json:"actor"`
	Summary   string         `json:"summary"`
	Impact    string         `json:"impact"`
	Details   map[string]any `json:"details,omitempty"`
}

// HistoryResponse is the API response for the history endpoint.
type HistoryResponse struct {
	SessionID   string         `json:"session_id"`
	TotalEvents int            `json:"total_events"`
	FilteredBy  string         `json:"filtered_by,omitempty"`
	GeneratedAt string         `json:"generated_at"`
	Events      []HistoryEvent `json:"events"`
}

// HandleHistory returns the session log.
// GET /api/history?type=SCRAM&turn=N&from=N&to=N&limit=N
func (hh *HistoryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	turn, err := optionalInt(q.Get("turn"))
	if err != nil {
		hh.jsonError(w, "Invalid turn", http.StatusBadRequest)
		return
	}
	from, err := optionalInt(q.Get("from"))
	if err != nil {
		hh.jsonError(w, "Invalid from", http.StatusBadRequest)
		return
	}
	to, err := optionalInt(q.Get("to"))
	if err != nil {
		hh.jsonError(w, "Invalid to", http.StatusBadRequest)
		return
	}
	limit, err := optionalInt(q.Get("limit"))
	if err != nil || (limit != nil && *limit < 0) {
		hh.jsonError(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	eventType := q.Get("type")

	var filters []string
	if eventType != "" {
		filters = append(filters, "type "+eventType)
	}
	if turn != nil {
		filters = append(filters, fmt.Sprintf("turn %d", *turn))
	}
	if from != nil || to != nil {
		filters = append(filters, "turn range")
	}

	out := make([]HistoryEvent, 0)
	for _, e := range hh.eventLog.Replay() {
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		if turn != nil && e.Turn != *turn {
			continue
		}
		if from != nil && e.Turn < *from {
			continue
		}
		if to != nil && e.Turn > *to {
			continue
		}
		out = append(out, toHistoryEvent(e))
	}
	// limit keeps the most recent entries.
	if limit != nil && len(out) > *limit {
		out = out[len(out)-*limit:]
	}

	filterDesc := strings.Join(filters, ", ")

	response := HistoryResponse{
		SessionID:   hh.eventLog.SessionID(),
		TotalEvents: len(out),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      out,
	}
	hh.logger.Debug("History served", "events", len(out), "filter", filterDesc)

	writeJSON(w, http.StatusOK, response)
}

// HandleStats returns per-type event counts.
// GET /api/history/stats
func (hh *HistoryHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	all := hh.eventLog.Replay()
	counts := make(map[string]int)
	for _, e := range all {
		counts[string(e.Type)]++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":   hh.eventLog.SessionID(),
		"generated_at": time.Now().Format(time.RFC3339),
		"total_events": len(all),
		"by_type":      counts,
	})
}

func toHistoryEvent(e events.TurnEvent) HistoryEvent {
	return HistoryEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp.Format("15:04:05"),
		Turn:      e.Turn,
		Type:      string(e.Type),
		Actor:     e.Actor,
		Summary:   summarizeEvent(e),
		Impact:    determineImpact(e),
		Details:   e.Payload,
	}
}

// summarizeEvent creates a human-readable summary.
func summarizeEvent(e events.TurnEvent) string {
	switch e.Type {
	case events.EventTypeSessionStarted:
		return "Session started on " + e.Text("difficulty")
	case events.EventTypeSessionLoaded:
		return "Saved session loaded"
	case events.EventTypeTurnAdvanced:
		return fmt.Sprintf("Turn %d: %.1f°C, %.0f MW", e.Turn, e.Float("temperature"), e.Float("electricity"))
	case events.EventTypeRodsSet:
		return fmt.Sprintf("Control rods set to %.0f%%", e.Float("to")*100)
	case events.EventTypeCoolantRefilled:
		return "Coolant refilled"
	case events.EventTypeTurbineToggled:
		if e.Text("reason") != "" {
			return "Turbine tripped: " + e.Text("reason")
		}
		return "Turbine toggled"
	case events.EventTypeDieselToggled:
		return "Diesel generator toggled"
	case events.EventTypeDieselRefilled:
		return "Diesel tank refilled"
	case events.EventTypeECCSActivated:
		return "Emergency core cooling injected"
	case events.EventTypeRandomEvent:
		return "Random event: " + e.Text("kind")
	case events.EventTypeWarning:
		return e.Text("message")
	case events.EventTypeScram:
		return "Automatic SCRAM"
	case events.EventTypeRestart:
		return "Reactor restarted"
	case events.EventTypeMeltdown:
		return "MELTDOWN"
	case events.EventTypeAchievementUnlocked:
		return "Achievement unlocked: " + e.Text("name")
	case events.EventTypeWeatherChanged:
		return "Weather: " + e.Text("from") + " -> " + e.Text("to")
	default:
		return string(e.Type)
	}
}

// determineImpact classifies the event impact.
func determineImpact(e events.TurnEvent) string {
	switch e.Type {
	case events.EventTypeScram, events.EventTypeMeltdown, events.EventTypeRandomEvent, events.EventTypeWarning:
		return "NEGATIVE"
	case events.EventTypeRestart, events.EventTypeAchievementUnlocked, events.EventTypeECCSActivated:
		return "POSITIVE"
	default:
		return "NEUTRAL"
	}
}

func optionalInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (hh *HistoryHandler) jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
