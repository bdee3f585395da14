// Package storage - reconstructor.go
// Session recap: rebuilds the summary of a run from the event log alone.
package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/MRamiBalles/reactorsim/internal/events"
)

// Reconstructor rebuilds session summaries from the event log.
// This is used for:
// 1. The replay tool, to recap a stored session
// 2. Auditing a run after a crash, when no save file was written
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new session reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// Impact classes for recap lines.
const (
	ImpactPositive = "POSITIVE"
	ImpactNegative = "NEGATIVE"
	ImpactNeutral  = "NEUTRAL"
)

// RecapEvent is a simplified event for the recap timeline.
type RecapEvent struct {
	Turn      int    `json:"turn"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"` // Human-readable description
	Impact    string `json:"impact"`  // "POSITIVE", "NEGATIVE", "NEUTRAL"
}

// SessionRecap is the folded state of one session.
type SessionRecap struct {
	SessionID       string         `json:"session_id"`
	Difficulty      string         `json:"difficulty"`
	Turns           int            `json:"turns"`
	Scrams          int            `json:"scrams"`
	Restarts        int            `json:"restarts"`
	Meltdown        bool           `json:"meltdown"`
	PeakTemperature float64        `json:"peak_temperature"`
	FinalScore      int64          `json:"final_score"`
	EnergyDelivered float64        `json:"energy_delivered"`
	RandomEvents    map[string]int `json:"random_events"`
	Achievements    []string       `json:"achievements"`
	Timeline        []RecapEvent   `json:"timeline"`
}

// Recap folds every stored event of a session into a SessionRecap.
func (r *Reconstructor) Recap(ctx context.Context, sessionID string) (*SessionRecap, error) {
	stored, err := r.eventRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session events: %w", err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	recap := &SessionRecap{
		SessionID:    sessionID,
		RandomEvents: make(map[string]int),
	}
	for _, s := range stored {
		r.apply(recap, s.TurnEvent())
	}
	sort.Strings(recap.Achievements)
	return recap, nil
}

func (r *Reconstructor) apply(recap *SessionRecap, e events.TurnEvent) {
	switch e.Type {
	case events.EventTypeSessionStarted:
		if d := e.Text("difficulty"); d != "" {
			recap.Difficulty = d
		}
		if e.Actor == events.ActorOperator {
			// "new" during a session starts over on the same log.
			recap.Turns = 0
			recap.FinalScore = 0
		}
		r.addToTimeline(recap, e, "Session started on "+e.Text("difficulty"), ImpactNeutral)

	case events.EventTypeSessionLoaded:
		recap.Turns = e.Turn
		recap.FinalScore = int64(e.Float("score"))
		r.addToTimeline(recap, e, fmt.Sprintf("Save loaded at turn %d", e.Turn), ImpactNeutral)

	case events.EventTypeTurnAdvanced:
		if e.Turn > recap.Turns {
			recap.Turns = e.Turn
		}
		recap.FinalScore = int64(e.Float("score"))
		recap.EnergyDelivered += e.Float("electricity")
		if t := e.Float("temperature"); t > recap.PeakTemperature {
			recap.PeakTemperature = t
		}

	case events.EventTypeScram:
		recap.Scrams++
		r.addToTimeline(recap, e, fmt.Sprintf("Automatic SCRAM at %.0f°C", e.Float("temperature_before")), ImpactNegative)

	case events.EventTypeRestart:
		recap.Restarts++
		r.addToTimeline(recap, e, "Reactor restarted", ImpactPositive)

	case events.EventTypeMeltdown:
		recap.Meltdown = true
		if t := e.Float("temperature"); t > recap.PeakTemperature {
			recap.PeakTemperature = t
		}
		r.addToTimeline(recap, e, fmt.Sprintf("MELTDOWN at %.0f°C", e.Float("temperature")), ImpactNegative)

	case events.EventTypeRandomEvent:
		kind := e.Text("kind")
		recap.RandomEvents[kind]++
		r.addToTimeline(recap, e, "Random event: "+kind, ImpactNegative)

	case events.EventTypeAchievementUnlocked:
		recap.Achievements = append(recap.Achievements, e.Text("id"))
		r.addToTimeline(recap, e, "Achievement: "+e.Text("name"), ImpactPositive)

	case events.EventTypeECCSActivated:
		r.addToTimeline(recap, e, "ECCS injection", ImpactPositive)

	case events.EventTypeWeatherChanged:
		r.addToTimeline(recap, e, "Weather turned "+e.Text("to"), ImpactNeutral)
	}
}

func (r *Reconstructor) addToTimeline(recap *SessionRecap, e events.TurnEvent, summary, impact string) {
	recap.Timeline = append(recap.Timeline, RecapEvent{
		Turn:      e.Turn,
		EventType: string(e.Type),
		Summary:   summary,
		Impact:    impact,
	})
}
