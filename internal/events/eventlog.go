// Package events provides the append-only operator log for a session.
// Every rod move, toggle, random event and safety transition lands here.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/reactorsim/internal/platform/metrics"
)

// EventType defines the category of a session event.
type EventType string

const (
	EventTypeSessionStarted      EventType = "SESSION_STARTED"
	EventTypeSessionLoaded       EventType = "SESSION_LOADED"
	EventTypeTurnAdvanced        EventType = "TURN_ADVANCED"
	EventTypeRodsSet             EventType = "RODS_SET"
	EventTypeCoolantRefilled     EventType = "COOLANT_REFILLED"
	EventTypeTurbineToggled      EventType = "TURBINE_TOGGLED"
	EventTypeDieselToggled       EventType = "DIESEL_TOGGLED"
	EventTypeDieselRefilled      EventType = "DIESEL_REFILLED"
	EventTypeECCSActivated       EventType = "ECCS_ACTIVATED"
	EventTypeRandomEvent         EventType = "RANDOM_EVENT"
	EventTypeWarning             EventType = "WARNING"
	EventTypeScram               EventType = "SCRAM"
	EventTypeRestart             EventType = "RESTART"
	EventTypeMeltdown            EventType = "MELTDOWN"
	EventTypeAchievementUnlocked EventType = "ACHIEVEMENT_UNLOCKED"
	EventTypeWeatherChanged      EventType = "WEATHER_CHANGED"
)

// Actors
const (
	ActorOperator = "OPERATOR"
	ActorSystem   = "SYSTEM"
	ActorSafety   = "SAFETY"
)

// TurnEvent represents an immutable record of something that happened in a session.
type TurnEvent struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Turn      int            `json:"turn"`
	Actor     string         `json:"actor"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Float reads a numeric payload field. Payloads that went through JSON
// come back as float64, fresh ones may still hold ints.
func (e TurnEvent) Float(key string) float64 {
	switch v := e.Payload[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// Text reads a string payload field.
func (e TurnEvent) Text(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event TurnEvent) error
}

// EventLog is the in-memory append-only log of one session.
type EventLog struct {
	mu        sync.RWMutex
	sessionID string
	events    []TurnEvent
	persister EventPersister
	now       func() time.Time
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(sessionID string, persister EventPersister) *EventLog {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &EventLog{
		sessionID: sessionID,
		events:    make([]TurnEvent, 0),
		persister: persister,
		now:       time.Now,
	}
}

// SessionID identifies the session this log belongs to.
func (el *EventLog) SessionID() string {
	return el.sessionID
}

// Record builds and appends an event. The persister error, if any, is
// returned; the event stays in memory either way.
func (el *EventLog) Record(eventType EventType, turn int, actor string, payload map[string]any) (TurnEvent, error) {
	e := TurnEvent{
		ID:        GenerateEventID(),
		SessionID: el.sessionID,
		Timestamp: el.now(),
		Type:      eventType,
		Turn:      turn,
		Actor:     actor,
		Payload:   payload,
	}
	return e, el.Append(e)
}

// Append adds an event to the log. Events are immutable once appended.
// Writes through to the persister synchronously so ordering is kept.
func (el *EventLog) Append(event TurnEvent) error {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.SessionID == "" {
		event.SessionID = el.sessionID
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	persister := el.persister
	el.mu.Unlock()

	if persister == nil {
		return nil
	}
	start := time.Now()
	err := persister.Append(event)
	metrics.Get().RecordEventWrite(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("persist %s event: %w", event.Type, err)
	}
	return nil
}

// Len is the number of events recorded so far.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// Since returns the events from offset onwards, for pollers that keep a cursor.
func (el *EventLog) Since(offset int) []TurnEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(el.events) {
		return nil
	}
	return append([]TurnEvent(nil), el.events[offset:]...)
}

// GetByType returns all events of one type.
func (el *EventLog) GetByType(t EventType) []TurnEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []TurnEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// GetByTurn returns all events of one turn.
func (el *EventLog) GetByTurn(turn int) []TurnEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []TurnEvent
	for _, e := range el.events {
		if e.Turn == turn {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of the full history for state reconstruction.
func (el *EventLog) Replay() []TurnEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return append([]TurnEvent(nil), el.events...)
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
