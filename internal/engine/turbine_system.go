package engine

import (
	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/domain/rules"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

// Spool rates: fraction of the gap closed per turn.
const (
	SteamPressureRate = 0.3
	TurbineSpoolRate  = 0.2
	TurbineSpinDown   = 0.5
)

// TurbineSystem converts core heat into electricity through the steam loop.
type TurbineSystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewTurbineSystem creates a new steam turbine model.
func NewTurbineSystem(eventLog *events.EventLog, log *logger.Logger) *TurbineSystem {
	return &TurbineSystem{
		eventLog: eventLog,
		logger:   log,
	}
}

// Update moves pressure and RPM towards their targets, sets the
// electrical output and pulls the extracted heat out of the core.
func (ts *TurbineSystem) Update(core *reactor.Core, turn int, report *TurnReport) {
	p := core.Params()
	s := core.Snapshot()

	pressure := rules.Approach(s.SteamPressure, rules.SteamPressureTarget(s.Temperature), SteamPressureRate)
	core.SetSteamPressure(pressure)
	pressure = core.Snapshot().SteamPressure

	rpm := s.TurbineRPM * TurbineSpinDown
	if s.TurbineOnline {
		rpm = rules.Approach(s.TurbineRPM, pressure/reactor.MaxSteamPressure*p.TurbineMaxRPM, TurbineSpoolRate)
	} else if rpm < 1 {
		rpm = 0
	}
	core.SetTurbineRPM(rpm)

	electricity := 0.0
	if s.TurbineOnline {
		electricity = rules.TurbineOutput(core.ThermalPower(), rpm, p)
	}
	core.SetElectricity(electricity)
	core.UpdateTemperature(-electricity * p.TurbineHeatExtraction)

	if s.TurbineOnline && rpm > p.TurbineTripFraction*p.TurbineMaxRPM {
		core.SetTurbineOnline(false)
		report.warn(WarnTurbineTrip, "Turbine overspeed at %.0f RPM - tripped offline", rpm)
		ts.logger.Warn("Turbine overspeed trip", "turn", turn, "rpm", rpm)
		emit(ts.eventLog, ts.logger, events.EventTypeTurbineToggled, turn, events.ActorSafety, map[string]any{
			"online": false,
			"reason": "overspeed",
			"rpm":    rpm,
		})
	}
}

// Toggle flips the turbine between online and offline.
func (ts *TurbineSystem) Toggle(core *reactor.Core, turn int) bool {
	online := !core.Snapshot().TurbineOnline
	core.SetTurbineOnline(online)
	emit(ts.eventLog, ts.logger, events.EventTypeTurbineToggled, turn, events.ActorOperator, map[string]any{
		"online": online,
	})
	return online
}
