// Package autopilot is a rule-based operator that flies the reactor
// without a human at the console.
//
// Each turn runs a Perceive -> Decide -> Act cycle: the Perceiver turns the
// last report and the event log into a Snapshot, the Policy picks a command
// from prioritised objectives and checks it against hard guards, and the
// Pilot applies it to the engine.
package autopilot

import (
	"fmt"
	"math"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/events"
)

// Alert levels, worst last.
const (
	AlertLow      = "LOW"
	AlertElevated = "ELEVATED"
	AlertHigh     = "HIGH"
	AlertCritical = "CRITICAL"
)

// Snapshot is everything the policy may look at for one decision.
type Snapshot struct {
	Turn       int
	Mode       engine.SafetyMode
	State      reactor.State
	Params     reactor.Params
	Subsystems engine.Subsystems

	// Counted over the events recorded since the previous snapshot.
	RecentWarnings int
	RecentEvents   int

	Alert   string
	Summary string
}

// Has reports whether a subsystem is enabled in the flown session.
func (s Snapshot) Has(x engine.Subsystems) bool {
	return s.Subsystems.Has(x)
}

// Perceiver builds snapshots. It remembers how far into the event log it
// has read so every event is counted once.
type Perceiver struct {
	eventLog *events.EventLog
	offset   int
}

// NewPerceiver creates a perceiver over an event log. A nil log is allowed.
func NewPerceiver(el *events.EventLog) *Perceiver {
	return &Perceiver{eventLog: el}
}

// Perceive builds the snapshot for the next decision.
func (p *Perceiver) Perceive(e *engine.Engine) Snapshot {
	turn, _, _ := e.GetCurrentTime()
	s := Snapshot{
		Turn:       turn,
		Mode:       e.Mode(),
		State:      e.State(),
		Params:     e.Params(),
		Subsystems: e.Subsystems(),
	}

	if p.eventLog != nil {
		recent := p.eventLog.Since(p.offset)
		p.offset += len(recent)
		for _, ev := range recent {
			switch ev.Type {
			case events.EventTypeWarning:
				s.RecentWarnings++
			case events.EventTypeRandomEvent:
				s.RecentEvents++
			}
		}
	}

	s.Alert = AlertLevel(s.State, s.Params)
	s.Summary = fmt.Sprintf("turn %d %s alert=%s T=%.0f n=%.0f rods=%.2f coolant=%.0f",
		s.Turn, s.Mode, s.Alert, s.State.Temperature, s.State.Neutrons, s.State.ControlRods, s.State.Coolant)
	return s
}

// AlertLevel grades how close the core is to a SCRAM threshold.
func AlertLevel(st reactor.State, p reactor.Params) string {
	margin := math.Max(ratio(st.Temperature, p.ScramTemp), ratio(st.Neutrons, p.ScramNeutrons))
	switch {
	case margin >= 0.9:
		return AlertCritical
	case margin >= 0.75:
		return AlertHigh
	case margin >= 0.5:
		return AlertElevated
	}
	return AlertLow
}

func ratio(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return v / limit
}
