package engine

import (
	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/domain/rules"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

// PhysicsModifiers are the multiplicative hooks auxiliary subsystems feed
// into the primary step. The zero value is replaced by neutral factors.
type PhysicsModifiers struct {
	Reactivity float64 // xenon poisoning, applied with fuel efficiency
	Cooling    float64 // weather, applied to passive cooling
}

// NeutralModifiers leaves the primary physics untouched.
func NeutralModifiers() PhysicsModifiers {
	return PhysicsModifiers{Reactivity: 1, Cooling: 1}
}

// PhysicsSystem advances the primary reactor physics by one turn.
type PhysicsSystem struct {
	logger *logger.Logger
}

// NewPhysicsSystem creates the primary physics step.
func NewPhysicsSystem(log *logger.Logger) *PhysicsSystem {
	return &PhysicsSystem{logger: log}
}

// Update runs the ten-step turn. Each step sees the state left by the one
// before it. A halted core is left alone.
func (ps *PhysicsSystem) Update(core *reactor.Core, mods PhysicsModifiers) PhysicsStatus {
	p := core.Params()
	var status PhysicsStatus
	if !core.IsRunning() {
		return status
	}
	if mods.Reactivity <= 0 {
		mods.Reactivity = 1
	}
	if mods.Cooling <= 0 {
		mods.Cooling = 1
	}

	// 1-3: multiplication, overflow guard
	status.KEff = rules.KEff(core.ControlRods(), p)
	core.UpdateNeutrons(status.KEff)
	if p.NeutronCap > 0 && core.Neutrons() > p.NeutronCap {
		core.UpdateNeutrons(p.NeutronCap / core.Neutrons())
	}

	// 4-5: burnup
	status.FuelEfficiency = rules.FuelEfficiency(core.Fuel(), p)
	core.UpdateNeutrons(status.FuelEfficiency * mods.Reactivity)
	core.ConsumeFuel(p.FuelDepletionRate)

	// 6-7: power and heat
	power := rules.ThermalPower(core.Neutrons(), p)
	core.SetThermalPower(power)
	core.UpdateTemperature(rules.HeatGeneration(power, p))

	// 8-10: cooling
	core.UpdateCoolant(-p.CoolantLossRate)
	core.UpdateTemperature(-p.PassiveCooling * mods.Cooling)
	if core.Coolant() < p.CriticalCoolant {
		core.UpdateTemperature(p.LowCoolantHeating)
		status.LowCoolantWarning = true
	}

	status.ScramCondition = rules.ScramCondition(core.Temperature(), core.Neutrons(), p)
	if ps.logger != nil {
		ps.logger.Debug("physics step",
			"k_eff", status.KEff,
			"neutrons", core.Neutrons(),
			"power", power,
			"temperature", core.Temperature(),
		)
	}
	return status
}
