package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/MRamiBalles/reactorsim/internal/events"
)

func TestRecapFoldsStoredSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	el := events.NewEventLog("", NewEventPersister(store))
	e := newEngine(t, el)

	var peak float64
	for i := 0; i < 12; i++ {
		r, err := e.AdvanceTurn()
		if err != nil {
			t.Fatalf("turn: %v", err)
		}
		if r.State.Temperature > peak {
			peak = r.State.Temperature
		}
	}

	recap, err := NewReconstructor(store).Recap(ctx, el.SessionID())
	if err != nil {
		t.Fatalf("Recap: %v", err)
	}
	if recap.Difficulty != "normal" {
		t.Errorf("Expected difficulty normal, got %q", recap.Difficulty)
	}
	if recap.Turns != 12 {
		t.Errorf("Expected 12 turns, got %d", recap.Turns)
	}
	if recap.FinalScore != e.Score() {
		t.Errorf("Expected final score %d, got %d", e.Score(), recap.FinalScore)
	}
	if recap.PeakTemperature != peak {
		t.Errorf("Expected peak %.2f, got %.2f", peak, recap.PeakTemperature)
	}

	fired := 0
	for _, n := range recap.RandomEvents {
		fired += n
	}
	if want := len(el.GetByType(events.EventTypeRandomEvent)); fired != want {
		t.Errorf("Expected %d random events, got %d", want, fired)
	}
	if len(recap.Achievements) != len(el.GetByType(events.EventTypeAchievementUnlocked)) {
		t.Errorf("Expected every unlock in the recap, got %v", recap.Achievements)
	}
}

func TestRecapCountsSafetyTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	el := events.NewEventLog("s-safety", NewEventPersister(store))

	el.Record(events.EventTypeSessionStarted, 0, events.ActorSystem, map[string]any{"difficulty": "hard"})
	el.Record(events.EventTypeTurnAdvanced, 1, events.ActorSystem, map[string]any{"temperature": 900.0, "score": 10})
	el.Record(events.EventTypeScram, 1, events.ActorSafety, map[string]any{"temperature_before": 1010.0})
	el.Record(events.EventTypeRestart, 1, events.ActorOperator, nil)
	el.Record(events.EventTypeTurnAdvanced, 2, events.ActorSystem, map[string]any{"temperature": 2500.0, "score": 5})
	el.Record(events.EventTypeMeltdown, 2, events.ActorSafety, map[string]any{"temperature": 2600.0})

	recap, err := NewReconstructor(store).Recap(ctx, "s-safety")
	if err != nil {
		t.Fatalf("Recap: %v", err)
	}
	if recap.Scrams != 1 || recap.Restarts != 1 || !recap.Meltdown {
		t.Errorf("Unexpected safety counts: %+v", recap)
	}
	if recap.PeakTemperature != 2600 {
		t.Errorf("Expected peak 2600, got %v", recap.PeakTemperature)
	}
	if recap.FinalScore != 5 || recap.Turns != 2 {
		t.Errorf("Expected score 5 after 2 turns, got %d after %d", recap.FinalScore, recap.Turns)
	}
	if len(recap.Timeline) != 4 {
		t.Errorf("Expected 4 timeline entries, got %d", len(recap.Timeline))
	}
}

func TestRecapUnknownSession(t *testing.T) {
	_, err := NewReconstructor(NewMemoryStore()).Recap(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

