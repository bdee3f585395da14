package engine

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
	"github.com/MRamiBalles/reactorsim/internal/platform/metrics"
)

// EventKind defines the category of a random event.
type EventKind string

const (
	EventCoolantLeak     EventKind = "coolant_leak"
	EventPowerSurge      EventKind = "power_surge"
	EventPumpFailure     EventKind = "pump_failure"
	EventXenonSpike      EventKind = "xenon_spike"
	EventSteamLeak       EventKind = "steam_leak"
	EventTurbineTrip     EventKind = "turbine_trip"
	EventEfficiencyBonus EventKind = "efficiency_bonus"
	EventCoolantBonus    EventKind = "coolant_bonus"
	EventMaintenanceCrew EventKind = "maintenance_crew"
)

// eventTable holds the category weights over a roll in [0,100).
// Cumulative, first match wins.
var eventTable = []struct {
	kind   EventKind
	weight int
}{
	{EventCoolantLeak, 20},
	{EventPowerSurge, 20},
	{EventPumpFailure, 10},
	{EventXenonSpike, 10},
	{EventSteamLeak, 10},
	{EventTurbineTrip, 10},
	{EventEfficiencyBonus, 7},
	{EventCoolantBonus, 8},
	{EventMaintenanceCrew, 5},
}

// RandomEvent is a fired event and what it did.
type RandomEvent struct {
	Kind      EventKind `json:"kind"`
	Roll      int       `json:"roll"`
	Magnitude float64   `json:"magnitude"`
	Message   string    `json:"message"`

	// Substituted is set when a guard failed and a fallback was applied.
	Substituted bool `json:"substituted,omitempty"`
}

// Beneficial reports whether the event helps the operator.
func (e RandomEvent) Beneficial() bool {
	switch e.Kind {
	case EventEfficiencyBonus, EventCoolantBonus, EventMaintenanceCrew:
		return true
	}
	return false
}

// Leak reports whether the event vents coolant or steam.
func (e RandomEvent) Leak() bool {
	return e.Kind == EventCoolantLeak || e.Kind == EventSteamLeak
}

// EventCategory maps a roll in [0,100) to an event kind.
func EventCategory(roll int) EventKind {
	acc := 0
	for _, row := range eventTable {
		acc += row.weight
		if roll < acc {
			return row.kind
		}
	}
	return eventTable[len(eventTable)-1].kind
}

// EventSystem injects at most one perturbation per turn.
type EventSystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewEventSystem creates a new random event generator.
func NewEventSystem(eventLog *events.EventLog, log *logger.Logger) *EventSystem {
	return &EventSystem{
		eventLog: eventLog,
		logger:   log,
	}
}

// Denominator is the one-in-N chance of an event this turn. Storms halve it.
func (es *EventSystem) Denominator(p reactor.Params, weather reactor.Weather) int {
	denom := max(1, p.EventChanceDenominator)
	if weather == reactor.WeatherStorm && denom > 1 {
		denom = max(2, denom/2)
	}
	return denom
}

// Maybe draws presence, then category, then magnitude, in that order.
// It returns nil when nothing fired. Events aimed at a disabled subsystem
// are substituted, never applied to fields nothing else updates.
func (es *EventSystem) Maybe(core *reactor.Core, rng *rand.Rand, subs Subsystems, weather reactor.Weather, turn int) *RandomEvent {
	if rng.IntN(es.Denominator(core.Params(), weather)) != 0 {
		return nil
	}
	roll := rng.IntN(100)
	ev := es.apply(core, rng, subs, EventCategory(roll))
	ev.Roll = roll

	metrics.Get().RecordRandomEvent()
	es.logger.Event("RANDOM_EVENT", events.ActorSystem, ev.Message)
	emit(es.eventLog, es.logger, events.EventTypeRandomEvent, turn, events.ActorSystem, map[string]any{
		"kind":        string(ev.Kind),
		"roll":        ev.Roll,
		"magnitude":   ev.Magnitude,
		"substituted": ev.Substituted,
	})
	return &ev
}

// substituteFor maps an event whose subsystem is switched off onto one the
// core physics absorbs. Substitutes draw their own magnitude, so the draw
// order is unchanged.
func substituteFor(kind EventKind, subs Subsystems) (EventKind, bool) {
	switch kind {
	case EventXenonSpike:
		if !subs.Has(SubsystemXenon) {
			return EventPowerSurge, true
		}
	case EventSteamLeak:
		if !subs.Has(SubsystemTurbine) {
			return EventPumpFailure, true
		}
	case EventTurbineTrip:
		if !subs.Has(SubsystemTurbine) {
			return EventPowerSurge, true
		}
	case EventMaintenanceCrew:
		if subs&(SubsystemECCS|SubsystemDiesel|SubsystemRadiation) == 0 {
			return EventCoolantBonus, true
		}
	}
	return kind, false
}

func (es *EventSystem) apply(core *reactor.Core, rng *rand.Rand, subs Subsystems, kind EventKind) RandomEvent {
	p := core.Params()
	kind, substituted := substituteFor(kind, subs)
	ev := RandomEvent{Kind: kind, Substituted: substituted}

	switch kind {
	case EventCoolantLeak:
		if core.Coolant() > p.EventMinCoolantForLeak {
			ev.Magnitude = p.EventCoolantLeak
			core.UpdateCoolant(-ev.Magnitude)
			ev.Message = fmt.Sprintf("Coolant leak! Lost %.0f%% coolant", ev.Magnitude)
			break
		}
		ev.Kind = EventPowerSurge
		ev.Substituted = true
		fallthrough

	case EventPowerSurge:
		ev.Magnitude = p.EventPowerSurge
		core.UpdateTemperature(ev.Magnitude)
		ev.Message = fmt.Sprintf("Power surge! Temperature up %.0f°C", ev.Magnitude)

	case EventPumpFailure:
		ev.Magnitude = float64(5 + rng.IntN(11))
		core.UpdateCoolant(-ev.Magnitude)
		ev.Message = fmt.Sprintf("Coolant pump failure! Lost %.0f%% coolant", ev.Magnitude)

	case EventXenonSpike:
		ev.Magnitude = float64(10 + rng.IntN(21))
		core.SetXenon(core.Snapshot().Xenon + ev.Magnitude)
		ev.Message = fmt.Sprintf("Xenon spike! Poison up %.0f%%", ev.Magnitude)

	case EventSteamLeak:
		ev.Magnitude = float64(10 + rng.IntN(21))
		core.SetSteamPressure(core.Snapshot().SteamPressure - ev.Magnitude)
		core.UpdateCoolant(-2)
		ev.Message = fmt.Sprintf("Steam line leak! Pressure down %.0f%%", ev.Magnitude)

	case EventTurbineTrip:
		core.SetTurbineOnline(false)
		ev.Message = "Turbine tripped offline! Press 't' to bring it back"

	case EventEfficiencyBonus:
		ev.Magnitude = float64(20 + rng.IntN(31))
		core.UpdateTemperature(-ev.Magnitude)
		ev.Message = fmt.Sprintf("Heat exchanger running clean. Temperature down %.0f°C", ev.Magnitude)

	case EventCoolantBonus:
		ev.Magnitude = float64(10 + rng.IntN(11))
		core.UpdateCoolant(ev.Magnitude)
		ev.Message = fmt.Sprintf("Coolant delivery arrived. Coolant up %.0f%%", ev.Magnitude)

	case EventMaintenanceCrew:
		s := core.Snapshot()
		var done []string
		if subs.Has(SubsystemECCS) {
			core.SetECCS(0, s.ECCSCharges)
			done = append(done, "ECCS recharged")
		}
		if subs.Has(SubsystemDiesel) {
			core.UpdateDieselFuel(20)
			done = append(done, "diesel topped up")
		}
		if subs.Has(SubsystemRadiation) {
			core.SetRadiation(s.Radiation / 2)
			done = append(done, "radiation halved")
		}
		ev.Message = "Maintenance crew on site. " + strings.Join(done, ", ")
	}
	return ev
}
