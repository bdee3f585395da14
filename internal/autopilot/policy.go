package autopilot

import (
	"fmt"
	"math"

	"github.com/MRamiBalles/reactorsim/internal/domain/rules"
	"github.com/MRamiBalles/reactorsim/internal/engine"
)

// Decision is one planned command with its audit trail.
type Decision struct {
	Command       engine.Command
	Objective     string
	Justification string
	Approved      bool
	BlockedBy     string // guard that vetoed the proposal, if any
}

// Guard is a hard prohibition. Allow returns false to veto a command.
type Guard struct {
	Name  string
	Allow func(s Snapshot, cmd engine.Command) bool
}

// Objective proposes a command when its condition holds. Objectives are
// tried in order and the first proposal wins.
type Objective struct {
	Name    string
	Propose func(s Snapshot) (engine.Command, string, bool)
}

// Policy tuning.
const (
	// Core temperature the power controller steers towards, as a fraction of ScramTemp.
	TemperatureSetpoint = 0.5
	// Upper bound on the neutron target, as a fraction of ScramNeutrons.
	MaxNeutronFraction = 0.6
	// Degrees of correction per turn for each degree of setpoint error.
	TemperatureGain = 0.01
	// Rod moves smaller than this are not worth a command.
	RodDeadband = 0.005
)

// Policy is the decision core.
type Policy struct {
	guards     []Guard
	objectives []Objective
}

// NewPolicy creates a policy with the default guards and objectives.
func NewPolicy() *Policy {
	p := &Policy{}
	p.initializeGuards()
	p.initializeObjectives()
	return p
}

func (p *Policy) initializeGuards() {
	p.guards = []Guard{
		{
			Name: "no_withdrawal_when_hot",
			Allow: func(s Snapshot, cmd engine.Command) bool {
				if cmd.Kind != engine.CmdSetRods || cmd.Rods >= s.State.ControlRods {
					return true
				}
				return s.Alert != AlertHigh && s.Alert != AlertCritical
			},
		},
		{
			Name: "subsystem_enabled",
			Allow: func(s Snapshot, cmd engine.Command) bool {
				switch cmd.Kind {
				case engine.CmdToggleTurbine:
					return s.Has(engine.SubsystemTurbine)
				case engine.CmdActivateECCS:
					return s.Has(engine.SubsystemECCS)
				case engine.CmdToggleDiesel, engine.CmdRefillDiesel:
					return s.Has(engine.SubsystemDiesel)
				}
				return true
			},
		},
		{
			Name: "eccs_ready",
			Allow: func(s Snapshot, cmd engine.Command) bool {
				return cmd.Kind != engine.CmdActivateECCS || s.State.ECCSReady()
			},
		},
		{
			Name: "reset_only_when_scrammed",
			Allow: func(s Snapshot, cmd engine.Command) bool {
				return cmd.Kind != engine.CmdReset || s.Mode == engine.ModeScrammed
			},
		},
	}
}

func (p *Policy) initializeObjectives() {
	p.objectives = []Objective{
		{
			Name: "restart",
			Propose: func(s Snapshot) (engine.Command, string, bool) {
				if s.Mode != engine.ModeScrammed {
					return engine.Command{}, "", false
				}
				return engine.Command{Kind: engine.CmdReset}, "core is scrammed", true
			},
		},
		{
			Name: "emergency_cooling",
			Propose: func(s Snapshot) (engine.Command, string, bool) {
				if !s.Has(engine.SubsystemECCS) || !s.State.ECCSReady() ||
					s.State.Temperature < 0.9*s.Params.ScramTemp {
					return engine.Command{}, "", false
				}
				return engine.Command{Kind: engine.CmdActivateECCS},
					fmt.Sprintf("temperature %.0f is within 10%% of SCRAM", s.State.Temperature), true
			},
		},
		{
			Name: "coolant",
			Propose: func(s Snapshot) (engine.Command, string, bool) {
				if s.State.Coolant >= s.Params.CriticalCoolant+15 {
					return engine.Command{}, "", false
				}
				return engine.Command{Kind: engine.CmdRefillCoolant},
					fmt.Sprintf("coolant down to %.0f%%", s.State.Coolant), true
			},
		},
		{
			Name: "turbine",
			Propose: func(s Snapshot) (engine.Command, string, bool) {
				if !s.Has(engine.SubsystemTurbine) || s.State.TurbineOnline || !s.State.Running {
					return engine.Command{}, "", false
				}
				return engine.Command{Kind: engine.CmdToggleTurbine}, "turbine is offline", true
			},
		},
		{
			Name: "diesel_fuel",
			Propose: func(s Snapshot) (engine.Command, string, bool) {
				if !s.Has(engine.SubsystemDiesel) || s.State.DieselFuel >= 25 {
					return engine.Command{}, "", false
				}
				return engine.Command{Kind: engine.CmdRefillDiesel},
					fmt.Sprintf("diesel tank at %.0f%%", s.State.DieselFuel), true
			},
		},
		{
			Name: "diesel_backup",
			Propose: func(s Snapshot) (engine.Command, string, bool) {
				if !s.Has(engine.SubsystemDiesel) || s.State.DieselFuel <= 0 {
					return engine.Command{}, "", false
				}
				// Run the generator exactly while the turbine is down.
				if s.State.TurbineOnline == s.State.DieselRunning {
					return engine.Command{Kind: engine.CmdToggleDiesel}, "house load backup", true
				}
				return engine.Command{}, "", false
			},
		},
		{
			Name: "hold_power",
			Propose: func(s Snapshot) (engine.Command, string, bool) {
				rods, target := RodsForTarget(s)
				if math.Abs(rods-s.State.ControlRods) < RodDeadband {
					return engine.Command{Kind: engine.CmdWait}, "on target", true
				}
				return engine.Command{Kind: engine.CmdSetRods, Rods: rods},
					fmt.Sprintf("steering neutrons %.0f -> %.0f", s.State.Neutrons, target), true
			},
		},
	}
}

// Decide picks the first objective that applies and vets it against every
// guard. A vetoed proposal becomes a wait.
func (p *Policy) Decide(s Snapshot) Decision {
	d := Decision{Command: engine.Command{Kind: engine.CmdWait}, Objective: "idle", Justification: "nothing to do"}
	for _, obj := range p.objectives {
		cmd, why, ok := obj.Propose(s)
		if !ok {
			continue
		}
		d = Decision{Command: cmd, Objective: obj.Name, Justification: why}
		break
	}

	d.Approved = true
	if ok, rule := p.Review(s, d.Command); !ok {
		d.Approved = false
		d.BlockedBy = rule
		d.Command = engine.Command{Kind: engine.CmdWait}
		d.Justification = "blocked by " + rule
	}
	return d
}

// Review runs every guard over cmd and returns the first one that vetoes it.
func (p *Policy) Review(s Snapshot, cmd engine.Command) (bool, string) {
	for _, g := range p.guards {
		if !g.Allow(s, cmd) {
			return false, g.Name
		}
	}
	return true, ""
}

// RodsForTarget is the power controller. It picks the neutron population
// whose heat balances passive cooling plus a correction towards the
// temperature setpoint, then inverts one physics step to find the rod
// insertion that lands on it. It returns the insertion and the target.
func RodsForTarget(s Snapshot) (float64, float64) {
	p, st := s.Params, s.State

	heatPerNeutron := p.NeutronToPower * p.PowerToHeat
	target := 0.0
	if heatPerNeutron > 0 {
		setpoint := TemperatureSetpoint * p.ScramTemp
		target = (p.PassiveCooling + TemperatureGain*(setpoint-st.Temperature)) / heatPerNeutron
	}
	target = math.Min(math.Max(target, 0), MaxNeutronFraction*p.ScramNeutrons)

	if st.Neutrons <= 0 {
		return 0, target
	}
	reactivity := rules.FuelEfficiency(st.Fuel, p)
	if s.Has(engine.SubsystemXenon) {
		reactivity *= rules.XenonReactivity(st.Xenon, p)
	}
	if reactivity <= 0 || p.RodAbsorption <= 0 {
		return st.ControlRods, target
	}

	kNeeded := target / st.Neutrons / reactivity
	rods := (p.KEffBase - kNeeded) / p.RodAbsorption
	return math.Min(math.Max(rods, 0), 1), target
}
