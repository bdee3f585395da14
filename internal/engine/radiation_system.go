package engine

import (
	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

// Radiation model terms.
const (
	RadiationRetention   = 0.8
	RadiationPerMW       = 0.01
	RadiationLowCoolant  = 5.0
	RadiationLeakRelease = 3.0
)

// RadiationSystem tracks site dose rate.
type RadiationSystem struct {
	logger *logger.Logger
}

// NewRadiationSystem creates a new dose tracker.
func NewRadiationSystem(log *logger.Logger) *RadiationSystem {
	return &RadiationSystem{logger: log}
}

// Update decays the previous level and adds this turn's sources. leak is
// set when a leak event fired on the previous turn. It reports whether
// the level is past the critical threshold.
func (rs *RadiationSystem) Update(core *reactor.Core, leak bool, report *TurnReport) bool {
	p := core.Params()
	s := core.Snapshot()

	rad := s.Radiation*RadiationRetention + s.ThermalPower*RadiationPerMW
	if s.Coolant < p.CriticalCoolant {
		rad += RadiationLowCoolant
	}
	if leak {
		rad += RadiationLeakRelease
	}
	core.SetRadiation(rad)
	rad = core.Snapshot().Radiation

	switch {
	case rad > p.RadiationCritical:
		report.warn(WarnRadiationCritical, "Radiation CRITICAL at %.1f mSv/h", rad)
		return true
	case rad > p.RadiationWarning:
		report.warn(WarnRadiation, "Radiation elevated at %.1f mSv/h", rad)
	}
	return false
}
