package engine

import (
	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

// ECCSSystem is the emergency core cooling: a limited number of manual
// shots, each followed by a recharge period.
type ECCSSystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewECCSSystem creates a new emergency cooling system.
func NewECCSSystem(eventLog *events.EventLog, log *logger.Logger) *ECCSSystem {
	return &ECCSSystem{
		eventLog: eventLog,
		logger:   log,
	}
}

// Activate floods the core. Fails without side effects when depleted or recharging.
func (es *ECCSSystem) Activate(core *reactor.Core, turn int) error {
	p := core.Params()
	s := core.Snapshot()
	if s.ECCSCharges <= 0 {
		return ErrECCSDepleted
	}
	if s.ECCSCooldown > 0 {
		return ErrECCSCooldown
	}

	core.UpdateCoolant(p.ECCSCoolant)
	core.UpdateTemperature(-p.ECCSCooling)
	core.SetECCS(p.ECCSCooldownTurns, s.ECCSCharges-1)

	es.logger.Info("ECCS activated", "turn", turn, "charges_left", s.ECCSCharges-1)
	emit(es.eventLog, es.logger, events.EventTypeECCSActivated, turn, events.ActorOperator, map[string]any{
		"coolant":      core.Coolant(),
		"temperature":  core.Temperature(),
		"charges_left": s.ECCSCharges - 1,
	})
	return nil
}

// Update counts the recharge down by one turn.
func (es *ECCSSystem) Update(core *reactor.Core) {
	s := core.Snapshot()
	if s.ECCSCooldown > 0 {
		core.SetECCS(s.ECCSCooldown-1, s.ECCSCharges)
	}
}
