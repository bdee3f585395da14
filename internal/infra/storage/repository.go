// Package storage provides the persistence layer for the simulator.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/MRamiBalles/reactorsim/internal/events"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// StoredEvent mirrors the session event structure for persistence.
// The engine should NOT import this; it talks to events.EventPersister.
type StoredEvent struct {
	ID        string         `json:"id" db:"id"`
	SessionID string         `json:"session_id" db:"session_id"`
	Timestamp time.Time      `json:"timestamp" db:"ts_unix_nano"`
	EventType string         `json:"event_type" db:"event_type"`
	Turn      int            `json:"turn" db:"turn"`
	Actor     string         `json:"actor" db:"actor"`
	Payload   map[string]any `json:"payload" db:"payload"`
}

// FromTurnEvent converts a log entry for storage.
func FromTurnEvent(e events.TurnEvent) StoredEvent {
	return StoredEvent{
		ID:        e.ID,
		SessionID: e.SessionID,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		Turn:      e.Turn,
		Actor:     e.Actor,
		Payload:   e.Payload,
	}
}

// TurnEvent converts a stored row back into a log entry.
func (e StoredEvent) TurnEvent() events.TurnEvent {
	return events.TurnEvent{
		ID:        e.ID,
		SessionID: e.SessionID,
		Timestamp: e.Timestamp,
		Type:      events.EventType(e.EventType),
		Turn:      e.Turn,
		Actor:     e.Actor,
		Payload:   e.Payload,
	}
}

// EventRepository defines the interface for event persistence.
// The engine uses the persister adapter; the implementation is in infra.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event StoredEvent) error

	// GetBySessionID retrieves all events of a session, in insertion order (for replay).
	GetBySessionID(ctx context.Context, sessionID string) ([]StoredEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, sessionID string, eventType string) ([]StoredEvent, error)

	// GetByTurnRange retrieves events with from <= turn <= to.
	GetByTurnRange(ctx context.Context, sessionID string, from, to int) ([]StoredEvent, error)

	// Sessions lists every session with stored events, oldest first.
	Sessions(ctx context.Context) ([]string, error)
}

// ScoreRepository keeps the best score per difficulty.
type ScoreRepository interface {
	// HighScore returns ErrNotFound when the difficulty has never been scored.
	HighScore(ctx context.Context, difficulty string) (int64, error)

	// SubmitScore stores score if it beats the current record and reports whether it did.
	SubmitScore(ctx context.Context, difficulty string, score int64) (bool, error)
}

// AchievementRepository records unlocked achievement IDs across sessions.
type AchievementRepository interface {
	// Unlock is idempotent; it reports whether the ID was newly stored.
	Unlock(ctx context.Context, id string, at time.Time) (bool, error)

	// Unlocked lists every stored ID, sorted.
	Unlocked(ctx context.Context) ([]string, error)
}

// SessionRepository stores encoded save files by slot name.
type SessionRepository interface {
	SaveSession(ctx context.Context, slot string, payload string) error

	// LoadSession returns ErrNotFound for an empty slot.
	LoadSession(ctx context.Context, slot string) (string, error)
}

// Store is every repository behind one backend.
type Store interface {
	EventRepository
	ScoreRepository
	AchievementRepository
	SessionRepository
	Close() error
}

// DefaultPersistTimeout bounds one synchronous event write.
const DefaultPersistTimeout = 5 * time.Second

// EventPersister adapts an EventRepository to events.EventPersister so the
// session log writes through to the database.
type EventPersister struct {
	repo    EventRepository
	timeout time.Duration
}

// NewEventPersister wraps repo with the default write timeout.
func NewEventPersister(repo EventRepository) *EventPersister {
	return &EventPersister{repo: repo, timeout: DefaultPersistTimeout}
}

// Append implements events.EventPersister.
func (p *EventPersister) Append(e events.TurnEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.repo.Append(ctx, FromTurnEvent(e))
}

var _ events.EventPersister = (*EventPersister)(nil)
