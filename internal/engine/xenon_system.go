package engine

import (
	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/domain/rules"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

// XenonSystem tracks fission product poisoning. Power breeds xenon, decay
// removes it, and whatever is left soaks up neutrons on the next turn.
type XenonSystem struct {
	logger *logger.Logger
}

// NewXenonSystem creates a new xenon tracker.
func NewXenonSystem(log *logger.Logger) *XenonSystem {
	return &XenonSystem{logger: log}
}

// Reactivity is the neutron multiplier for the coming physics step.
func (xs *XenonSystem) Reactivity(core *reactor.Core) float64 {
	return rules.XenonReactivity(core.Snapshot().Xenon, core.Params())
}

// Update advances the inventory from this turn's thermal power.
func (xs *XenonSystem) Update(core *reactor.Core, report *TurnReport) {
	p := core.Params()
	next := rules.NextXenon(core.Snapshot().Xenon, core.ThermalPower(), p)
	core.SetXenon(next)

	if next > p.XenonWarning {
		report.warn(WarnXenon, "Xenon poisoning at %.0f%% - reactivity suppressed", next)
	}
}
