package engine

import (
	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

// DieselSystem is the backup generator covering the station house load
// when the turbine cannot.
type DieselSystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewDieselSystem creates a new backup generator.
func NewDieselSystem(eventLog *events.EventLog, log *logger.Logger) *DieselSystem {
	return &DieselSystem{
		eventLog: eventLog,
		logger:   log,
	}
}

// Toggle starts or stops the generator. An empty tank cannot start.
func (ds *DieselSystem) Toggle(core *reactor.Core, turn int) (bool, error) {
	s := core.Snapshot()
	running := !s.DieselRunning
	if running && s.DieselFuel <= 0 {
		return false, ErrDieselEmpty
	}
	core.SetDieselRunning(running)
	emit(ds.eventLog, ds.logger, events.EventTypeDieselToggled, turn, events.ActorOperator, map[string]any{
		"running": running,
		"fuel":    s.DieselFuel,
	})
	return running, nil
}

// Refill tops the tank up.
func (ds *DieselSystem) Refill(core *reactor.Core, turn int) {
	core.UpdateDieselFuel(reactor.MaxDieselFuel)
	emit(ds.eventLog, ds.logger, events.EventTypeDieselRefilled, turn, events.ActorOperator, nil)
}

// Update burns fuel and checks the house load. With neither the turbine
// nor the generator covering it the pumps slow and coolant is lost.
func (ds *DieselSystem) Update(core *reactor.Core, report *TurnReport) {
	p := core.Params()
	s := core.Snapshot()

	supply := s.Electricity
	if s.DieselRunning {
		core.UpdateDieselFuel(-p.DieselBurnRate)
		supply += p.DieselOutput
		if core.Snapshot().DieselFuel <= 0 {
			core.SetDieselRunning(false)
			report.warn(WarnDieselEmpty, "Diesel generator out of fuel - stopped")
		}
	}

	if supply < p.HouseLoad {
		core.UpdateCoolant(-p.BlackoutCoolantLoss)
		report.warn(WarnBlackout, "Station blackout: %.1f MW available for a %.1f MW house load", supply, p.HouseLoad)
	}
}
