package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps everything in process. Used by tests and the
// default console setup when no database is configured.
type MemoryStore struct {
	mu           sync.RWMutex
	events       []StoredEvent
	highScores   map[string]int64
	achievements map[string]time.Time
	sessions     map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		highScores:   make(map[string]int64),
		achievements: make(map[string]time.Time),
		sessions:     make(map[string]string),
	}
}

func (m *MemoryStore) Append(_ context.Context, event StoredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStore) filter(keep func(StoredEvent) bool) []StoredEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StoredEvent
	for _, e := range m.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemoryStore) GetBySessionID(_ context.Context, sessionID string) ([]StoredEvent, error) {
	return m.filter(func(e StoredEvent) bool { return e.SessionID == sessionID }), nil
}

func (m *MemoryStore) GetByEventType(_ context.Context, sessionID string, eventType string) ([]StoredEvent, error) {
	return m.filter(func(e StoredEvent) bool {
		return e.SessionID == sessionID && e.EventType == eventType
	}), nil
}

func (m *MemoryStore) GetByTurnRange(_ context.Context, sessionID string, from, to int) ([]StoredEvent, error) {
	return m.filter(func(e StoredEvent) bool {
		return e.SessionID == sessionID && e.Turn >= from && e.Turn <= to
	}), nil
}

func (m *MemoryStore) Sessions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for _, e := range m.events {
		if !seen[e.SessionID] {
			seen[e.SessionID] = true
			ids = append(ids, e.SessionID)
		}
	}
	return ids, nil
}

func (m *MemoryStore) HighScore(_ context.Context, difficulty string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	score, ok := m.highScores[difficulty]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

func (m *MemoryStore) SubmitScore(_ context.Context, difficulty string, score int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.highScores[difficulty]; ok && score <= current {
		return false, nil
	}
	m.highScores[difficulty] = score
	return true, nil
}

func (m *MemoryStore) Unlock(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.achievements[id]; ok {
		return false, nil
	}
	m.achievements[id] = at
	return true, nil
}

func (m *MemoryStore) Unlocked(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.achievements))
	for id := range m.achievements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) SaveSession(_ context.Context, slot string, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[slot] = payload
	return nil
}

func (m *MemoryStore) LoadSession(_ context.Context, slot string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.sessions[slot]
	if !ok {
		return "", ErrNotFound
	}
	return payload, nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
