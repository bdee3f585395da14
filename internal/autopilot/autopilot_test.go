package autopilot

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

func quietLogger() *logger.Logger {
	l, _ := logger.New(logger.Options{Writer: io.Discard})
	return l
}

func newEngine(t *testing.T, subs engine.Subsystems) *engine.Engine {
	t.Helper()
	e, err := engine.NewEngine(engine.Options{Params: reactor.Normal(), Seed: 1, Subsystems: subs},
		events.NewEventLog("", nil), quietLogger())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return e
}

func snapshot(mutate func(*Snapshot)) Snapshot {
	p := reactor.Normal()
	s := Snapshot{
		Mode:   engine.ModeRunning,
		Params: p,
		State: reactor.State{
			Neutrons:    1000,
			ControlRods: 0.5,
			Temperature: 300,
			Coolant:     100,
			Fuel:        100,
			Running:     true,
		},
	}
	if mutate != nil {
		mutate(&s)
	}
	s.Alert = AlertLevel(s.State, s.Params)
	return s
}

func TestAlertLevel(t *testing.T) {
	p := reactor.Normal()
	cases := []struct {
		temp, neutrons float64
		want           string
	}{
		{300, 500, AlertLow},
		{600, 500, AlertElevated},
		{300, 1600, AlertHigh},
		{950, 500, AlertCritical},
	}
	for _, c := range cases {
		got := AlertLevel(reactor.State{Temperature: c.temp, Neutrons: c.neutrons}, p)
		if got != c.want {
			t.Errorf("Expected %s for T=%.0f n=%.0f, got %s", c.want, c.temp, c.neutrons, got)
		}
	}
}

func TestDecideRestartsAfterScram(t *testing.T) {
	s := snapshot(func(s *Snapshot) { s.Mode = engine.ModeScrammed })
	d := NewPolicy().Decide(s)
	if d.Command.Kind != engine.CmdReset || !d.Approved || d.Objective != "restart" {
		t.Errorf("Expected an approved reset, got %+v", d)
	}
}

func TestDecideRefillsLowCoolant(t *testing.T) {
	s := snapshot(func(s *Snapshot) { s.State.Coolant = 25 })
	d := NewPolicy().Decide(s)
	if d.Command.Kind != engine.CmdRefillCoolant {
		t.Errorf("Expected coolant refill, got %s", d.Command.Kind)
	}
}

func TestDecideUsesOnlyEnabledSubsystems(t *testing.T) {
	s := snapshot(func(s *Snapshot) { s.State.Temperature = 950 })
	d := NewPolicy().Decide(s)
	if d.Command.Kind == engine.CmdActivateECCS {
		t.Errorf("Expected no ECCS with the subsystem disabled")
	}

	s = snapshot(func(s *Snapshot) {
		s.State.Temperature = 950
		s.State.ECCSCharges = 1
		s.Subsystems = engine.SubsystemECCS
	})
	d = NewPolicy().Decide(s)
	if d.Command.Kind != engine.CmdActivateECCS {
		t.Errorf("Expected ECCS near the SCRAM threshold, got %s", d.Command.Kind)
	}
}

func TestReviewBlocksWithdrawalWhenHot(t *testing.T) {
	p := NewPolicy()
	hot := snapshot(func(s *Snapshot) { s.State.Temperature = 900 })

	ok, rule := p.Review(hot, engine.Command{Kind: engine.CmdSetRods, Rods: 0.1})
	if ok || rule != "no_withdrawal_when_hot" {
		t.Errorf("Expected withdrawal to be vetoed, got ok=%v rule=%q", ok, rule)
	}
	if ok, _ := p.Review(hot, engine.Command{Kind: engine.CmdSetRods, Rods: 0.9}); !ok {
		t.Errorf("Expected insertion to be allowed")
	}
	if ok, _ := p.Review(snapshot(nil), engine.Command{Kind: engine.CmdReset}); ok {
		t.Errorf("Expected reset to be vetoed while running")
	}
}

func TestRodsForTargetInsertsAtSetpoint(t *testing.T) {
	s := snapshot(func(s *Snapshot) {
		s.State.Temperature = 500
		s.State.ControlRods = 0.1
	})
	rods, target := RodsForTarget(s)
	if math.Abs(target-500) > 1e-6 {
		t.Errorf("Expected a target of 500 neutrons at the setpoint, got %v", target)
	}
	if rods < 0.45 || rods > 0.55 {
		t.Errorf("Expected rods near 0.5, got %v", rods)
	}

	d := NewPolicy().Decide(s)
	if d.Command.Kind != engine.CmdSetRods || d.Command.Rods <= s.State.ControlRods {
		t.Errorf("Expected the controller to insert rods, got %+v", d.Command)
	}
}

func TestFlyHoldsTheCore(t *testing.T) {
	e := newEngine(t, engine.SubsystemsNone)
	f, err := NewPilot(e, quietLogger()).Fly(context.Background(), 150)
	if err != nil {
		t.Fatalf("fly: %v", err)
	}
	if f.Turns != 150 || f.Meltdown || f.Scrams != 0 {
		t.Errorf("Expected 150 clean turns, got %+v", f)
	}
	if e.Mode() != engine.ModeRunning {
		t.Errorf("Expected RUNNING, got %s", e.Mode())
	}
	if st := e.State(); st.Neutrons > MaxNeutronFraction*e.Params().ScramNeutrons+1 {
		t.Errorf("Expected neutrons held under the target cap, got %v", st.Neutrons)
	}
}

func TestFlyStopsAtMeltdown(t *testing.T) {
	e := newEngine(t, engine.SubsystemsNone)
	sess, err := e.Session()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	sess.State.Temperature = 2300
	if err := e.Restore(sess); err != nil {
		t.Fatalf("restore: %v", err)
	}

	pilot := NewPilot(e, quietLogger())
	f, err := pilot.Fly(context.Background(), 10)
	if err != nil {
		t.Fatalf("fly: %v", err)
	}
	if !f.Meltdown || f.Turns != 1 {
		t.Errorf("Expected a meltdown after one turn, got %+v", f)
	}
	if _, _, err := pilot.Step(context.Background()); !errors.Is(err, engine.ErrMeltdown) {
		t.Errorf("Expected ErrMeltdown from Step, got %v", err)
	}
}

func TestFlyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f, err := NewPilot(newEngine(t, engine.SubsystemsAll), quietLogger()).Fly(ctx, 10)
	if !errors.Is(err, context.Canceled) || f.Turns != 0 {
		t.Errorf("Expected an immediate cancel, got %+v %v", f, err)
	}
}

func TestPerceiverCountsEachEventOnce(t *testing.T) {
	el := events.NewEventLog("", nil)
	e, err := engine.NewEngine(engine.Options{Params: reactor.Normal(), Seed: 1}, el, quietLogger())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	el.Record(events.EventTypeWarning, 0, events.ActorSystem, nil)

	p := NewPerceiver(el)
	if s := p.Perceive(e); s.RecentWarnings != 1 {
		t.Errorf("Expected 1 warning, got %d", s.RecentWarnings)
	}
	if s := p.Perceive(e); s.RecentWarnings != 0 {
		t.Errorf("Expected the warning to be consumed, got %d", s.RecentWarnings)
	}
}
