package scenario

import (
	"errors"
	"fmt"
	"math"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/events"
)

// Builtin returns the scenarios shipped with the replay tool.
func Builtin() []Scenario {
	hotCore := reactor.Normal()
	hotCore.ScramNeutrons = 1e9
	hotCore.PowerToHeat = 0.05

	return []Scenario{
		{
			Name:        "single-turn",
			Description: "One quiet turn from the default state",
			Params:      reactor.Normal(),
			Seed:        1,
			Script:      []string{""},
			Expect: []Expectation{
				turnIs(1),
				modeIs(engine.ModeRunning),
				{"subcritical", func(o *Outcome) error {
					r := o.Reports()[0]
					if math.Abs(r.Physics.KEff-0.7) > 1e-9 || math.Abs(r.State.Neutrons-700) > 1e-9 {
						return fmt.Errorf("k=%.3f neutrons=%.1f, want 0.7 and 700", r.Physics.KEff, r.State.Neutrons)
					}
					return nil
				}},
			},
		},
		{
			Name:        "scram-on-neutrons",
			Description: "Rods fully withdrawn until the neutron limit trips",
			Params:      reactor.Normal(),
			Seed:        1,
			Script:      Repeat("0", 300),
			Expect: []Expectation{
				modeIs(engine.ModeScrammed),
				eventCount(events.EventTypeScram, 1),
				rodsInserted(),
				{"later input rejected", func(o *Outcome) error {
					if o.Rejected(engine.ErrScrammed) == 0 {
						return errors.New("no input was rejected after the SCRAM")
					}
					return nil
				}},
			},
		},
		{
			Name:        "scram-on-temperature",
			Description: "A hot-running core trips on temperature first",
			Params:      hotCore,
			Seed:        1,
			Script:      Repeat("0", 300),
			Expect: []Expectation{
				modeIs(engine.ModeScrammed),
				eventCount(events.EventTypeScram, 1),
				eventCount(events.EventTypeMeltdown, 0),
				{"tripped on temperature", func(o *Outcome) error {
					for _, e := range o.Events {
						if e.Type == events.EventTypeScram && e.Float("temperature_before") <= hotCore.ScramTemp {
							return fmt.Errorf("tripped at %.1f°C", e.Float("temperature_before"))
						}
					}
					return nil
				}},
			},
		},
		{
			Name:        "scram-recovery",
			Description: "SCRAM, then reset brings the core back cold with rods in",
			Params:      reactor.Normal(),
			Seed:        1,
			Script:      append(Repeat("0", 300), "reset"),
			Expect: []Expectation{
				modeIs(engine.ModeRunning),
				eventCount(events.EventTypeRestart, 1),
				rodsInserted(),
				{"cold restart", func(o *Outcome) error {
					if o.Final.Temperature != o.Engine.Params().InitialTemperature || !o.Final.Running {
						return fmt.Errorf("temperature %.1f running=%v", o.Final.Temperature, o.Final.Running)
					}
					return nil
				}},
				achievement(engine.AchScramSurvivor),
			},
		},
		{
			Name:        "low-coolant",
			Description: "Coolant below the critical level heats the core",
			Params:      reactor.Normal(),
			Seed:        1,
			Prepare:     func(s *reactor.State) { s.Coolant = 15 },
			Script:      []string{""},
			Expect: []Expectation{
				{"warning raised", func(o *Outcome) error {
					r := o.Reports()[len(o.Reports())-1]
					if !r.LowCoolantWarning() {
						return errors.New("no low coolant warning")
					}
					return nil
				}},
			},
		},
		{
			Name:        "meltdown",
			Description: "An overheated core melts down and only a new game continues",
			Params:      reactor.Normal(),
			Seed:        1,
			Prepare:     func(s *reactor.State) { s.Temperature = 2300 },
			Script:      []string{"", "50", "reset", "new", ""},
			Expect: []Expectation{
				eventCount(events.EventTypeMeltdown, 1),
				{"terminal until new game", func(o *Outcome) error {
					if n := o.Rejected(engine.ErrMeltdown); n != 2 {
						return fmt.Errorf("%d inputs rejected, want 2", n)
					}
					return nil
				}},
				modeIs(engine.ModeRunning),
				turnIs(1),
			},
		},
		{
			Name:        "long-run-bounds",
			Description: "Hard tier with every subsystem, state stays in bounds",
			Params:      reactor.Hard(),
			Subsystems:  engine.SubsystemsAll,
			Seed:        42,
			Script:      Cycle([]string{"35", "", "t", "", "e", "r", "", "60", "d", "f", "reset", ""}, 1200),
			Expect: []Expectation{
				{"bounds", checkBounds},
			},
			Deterministic: true,
		},
	}
}

func turnIs(n int) Expectation {
	return Expectation{fmt.Sprintf("turn %d", n), func(o *Outcome) error {
		if o.Turn != n {
			return fmt.Errorf("turn %d", o.Turn)
		}
		return nil
	}}
}

func modeIs(m engine.SafetyMode) Expectation {
	return Expectation{"mode " + m.String(), func(o *Outcome) error {
		if o.Mode != m {
			return fmt.Errorf("mode %s", o.Mode)
		}
		return nil
	}}
}

func eventCount(t events.EventType, n int) Expectation {
	return Expectation{fmt.Sprintf("%d %s", n, t), func(o *Outcome) error {
		if got := o.Count(t); got != n {
			return fmt.Errorf("got %d", got)
		}
		return nil
	}}
}

func rodsInserted() Expectation {
	return Expectation{"rods inserted", func(o *Outcome) error {
		if o.Final.ControlRods != 1 {
			return fmt.Errorf("rods at %.2f", o.Final.ControlRods)
		}
		return nil
	}}
}

func achievement(id string) Expectation {
	return Expectation{"achievement " + id, func(o *Outcome) error {
		for _, u := range o.Engine.Unlocked() {
			if u == id {
				return nil
			}
		}
		return errors.New("not unlocked")
	}}
}

func checkBounds(o *Outcome) error {
	p := o.Engine.Params()
	for _, r := range o.Reports() {
		s := r.State
		switch {
		case s.ControlRods < 0 || s.ControlRods > 1:
			return fmt.Errorf("turn %d: rods %v", r.Turn, s.ControlRods)
		case s.Coolant < 0 || s.Coolant > reactor.MaxCoolant:
			return fmt.Errorf("turn %d: coolant %v", r.Turn, s.Coolant)
		case s.Fuel < reactor.MinFuel || s.Fuel > reactor.MaxFuel:
			return fmt.Errorf("turn %d: fuel %v", r.Turn, s.Fuel)
		case s.Neutrons < 0 || math.IsNaN(s.Neutrons):
			return fmt.Errorf("turn %d: neutrons %v", r.Turn, s.Neutrons)
		case s.Temperature < p.MinTemperature || math.IsNaN(s.Temperature):
			return fmt.Errorf("turn %d: temperature %v", r.Turn, s.Temperature)
		case s.Xenon < 0 || s.Xenon > reactor.MaxXenon:
			return fmt.Errorf("turn %d: xenon %v", r.Turn, s.Xenon)
		case s.Radiation < 0 || s.Radiation > reactor.MaxRadiation:
			return fmt.Errorf("turn %d: radiation %v", r.Turn, s.Radiation)
		case s.ECCSCharges < 0 || s.ECCSCharges > p.ECCSCharges:
			return fmt.Errorf("turn %d: eccs charges %d", r.Turn, s.ECCSCharges)
		}
	}
	return nil
}
