package engine

import (
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

func quietLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Options{Writer: io.Discard})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestEngine(t *testing.T, p reactor.Params, subs Subsystems, seed uint64) *Engine {
	t.Helper()
	e, err := NewEngine(Options{Params: p, Seed: seed, Subsystems: subs}, events.NewEventLog("", nil), quietLogger(t))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScenarioSingleTurn(t *testing.T) {
	e := newTestEngine(t, reactor.Normal(), SubsystemsNone, 1)

	r, err := e.AdvanceTurn()
	if err != nil {
		t.Fatalf("AdvanceTurn: %v", err)
	}
	s := r.State

	// k = max(0.7, 1.05 - 0.5*1.1) = 0.7, fuel efficiency 1.0
	if !approx(r.Physics.KEff, 0.7) {
		t.Errorf("Expected k_eff 0.7, got %v", r.Physics.KEff)
	}
	if !approx(s.Neutrons, 700) || !approx(s.ThermalPower, 70) {
		t.Errorf("Expected 700 neutrons and 70 MW, got %v and %v", s.Neutrons, s.ThermalPower)
	}
	wantTemp := 300 + 1000*0.7*1.0*reactor.NeutronToPower*reactor.PowerToHeat - reactor.PassiveCooling
	if !approx(s.Temperature, wantTemp) {
		t.Errorf("Expected temperature %v, got %v", wantTemp, s.Temperature)
	}
	if !approx(s.Coolant, 100-reactor.CoolantLossRate) {
		t.Errorf("Expected coolant %v, got %v", 100-reactor.CoolantLossRate, s.Coolant)
	}
	if !approx(s.Fuel, 100-reactor.FuelDepletionRate) {
		t.Errorf("Expected fuel %v, got %v", 100-reactor.FuelDepletionRate, s.Fuel)
	}
	if r.LowCoolantWarning() || r.ScramTriggered || r.Meltdown {
		t.Errorf("Expected a quiet turn, got %+v", r)
	}
	if r.Turn != 1 || r.Hour != StartHour+1 {
		t.Errorf("Expected turn 1 at hour %d, got turn %d hour %d", StartHour+1, r.Turn, r.Hour)
	}
	if r.ScoreDelta != 23 {
		t.Errorf("Expected 23 points for 23.1 MW, got %d", r.ScoreDelta)
	}
	if got := e.GetEventLog().GetByType(events.EventTypeTurnAdvanced); len(got) != 1 {
		t.Errorf("Expected one TURN_ADVANCED event, got %d", len(got))
	}
}

func runUntilScram(t *testing.T, e *Engine) TurnReport {
	t.Helper()
	for i := 0; i < 300; i++ {
		r, err := e.Apply(Command{Kind: CmdSetRods, Rods: 0})
		if err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
		if r.ScramTriggered {
			return r
		}
	}
	t.Fatalf("Expected a SCRAM within 300 turns, state %+v", e.State())
	return TurnReport{}
}

func TestScenarioScramOnNeutrons(t *testing.T) {
	e := newTestEngine(t, reactor.Normal(), SubsystemsNone, 1)
	r := runUntilScram(t, e)

	if e.Mode() != ModeScrammed || r.Mode != ModeScrammed {
		t.Errorf("Expected SCRAMMED, got %v", e.Mode())
	}
	if r.State.ControlRods != 1 || r.State.Running {
		t.Errorf("Expected rods 1.0 and halted, got rods=%v running=%v", r.State.ControlRods, r.State.Running)
	}

	scrams := e.GetEventLog().GetByType(events.EventTypeScram)
	if len(scrams) != 1 {
		t.Fatalf("Expected one SCRAM event, got %d", len(scrams))
	}
	before := scrams[0].Float("neutrons_before")
	if before <= reactor.ScramNeutrons {
		t.Errorf("Expected the neutron threshold to trip, got %v", before)
	}
	if r.State.Neutrons > 0.05*before+1e-9 {
		t.Errorf("Expected neutrons <= 5%% of %v, got %v", before, r.State.Neutrons)
	}
	if r.ScoreDelta >= 0 {
		t.Errorf("Expected the SCRAM penalty to dominate the turn, got %d", r.ScoreDelta)
	}
}

func TestScenarioScramOnTemperature(t *testing.T) {
	p := reactor.Normal()
	p.ScramNeutrons = 1e9
	p.PowerToHeat = 0.05
	e := newTestEngine(t, p, SubsystemsNone, 1)

	r := runUntilScram(t, e)
	ev := e.GetEventLog().GetByType(events.EventTypeScram)[0]
	if ev.Float("temperature_before") <= p.ScramTemp {
		t.Errorf("Expected the temperature threshold to trip, got %v", ev.Float("temperature_before"))
	}
	if !approx(r.State.Temperature, ev.Float("temperature_before")+p.ScramCoolingDelta) {
		t.Errorf("Expected the SCRAM to dump 200 degrees, got %v", r.State.Temperature)
	}
	if r.State.ControlRods != 1 || r.State.Running || r.Meltdown {
		t.Errorf("Unexpected post-SCRAM state: %+v", r.State)
	}
}

func TestScenarioRecoveryFromScram(t *testing.T) {
	e := newTestEngine(t, reactor.Normal(), SubsystemsNone, 1)
	runUntilScram(t, e)
	turn, _, _ := e.GetCurrentTime()

	if _, err := e.Apply(Command{Kind: CmdSetRods, Rods: 0.3}); !errors.Is(err, ErrScrammed) {
		t.Errorf("Expected ErrScrammed for rods while scrammed, got %v", err)
	}
	if _, err := e.AdvanceTurn(); !errors.Is(err, ErrScrammed) {
		t.Errorf("Expected ErrScrammed for wait while scrammed, got %v", err)
	}

	r, err := e.Apply(ParseCommand("reset"))
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !r.Restarted || e.Mode() != ModeRunning {
		t.Errorf("Expected RUNNING after reset, got %v", e.Mode())
	}
	s := e.State()
	if s.Temperature != reactor.InitialTemperature || s.ControlRods != 1 || !s.Running {
		t.Errorf("Expected temp 300, rods 1.0, running; got %v, %v, %v", s.Temperature, s.ControlRods, s.Running)
	}
	if now, _, _ := e.GetCurrentTime(); now != turn {
		t.Errorf("Expected reset not to consume a turn, %d -> %d", turn, now)
	}
	if len(r.Achievements) != 1 || r.Achievements[0].ID != AchScramSurvivor {
		t.Errorf("Expected scram_survivor, got %+v", r.Achievements)
	}

	if _, err := e.Apply(ParseCommand("reset")); !errors.Is(err, ErrNotScrammed) {
		t.Errorf("Expected ErrNotScrammed when running, got %v", err)
	}
}

func TestScenarioLowCoolant(t *testing.T) {
	e := newTestEngine(t, reactor.Normal(), SubsystemsNone, 1)
	e.core.UpdateCoolant(-85)

	r, err := e.AdvanceTurn()
	if err != nil {
		t.Fatalf("AdvanceTurn: %v", err)
	}
	if !r.LowCoolantWarning() || !r.HasWarning(WarnLowCoolant) {
		t.Errorf("Expected the low coolant flag and warning")
	}
	want := 300 + 0.7 - reactor.PassiveCooling + reactor.LowCoolantHeating
	if !approx(r.State.Temperature, want) {
		t.Errorf("Expected temperature %v with the heating penalty, got %v", want, r.State.Temperature)
	}
}

func TestMeltdownIsTerminal(t *testing.T) {
	e := newTestEngine(t, reactor.Normal(), SubsystemsNone, 1)
	e.core.UpdateTemperature(2000)

	r, err := e.AdvanceTurn()
	if err != nil {
		t.Fatalf("AdvanceTurn: %v", err)
	}
	if !r.ScramTriggered || !r.Meltdown {
		t.Errorf("Expected SCRAM then meltdown in the same turn, got scram=%v meltdown=%v", r.ScramTriggered, r.Meltdown)
	}
	if e.Mode() != ModeMeltdown || e.State().Running {
		t.Fatalf("Expected MELTDOWN and halted, got %v", e.Mode())
	}

	for _, in := range []string{"", "50", "r", "reset", "t", "e"} {
		if _, err := e.Apply(ParseCommand(in)); !errors.Is(err, ErrMeltdown) {
			t.Errorf("Input %q: expected ErrMeltdown, got %v", in, err)
		}
	}
	if e.Mode() != ModeMeltdown || e.State().Running {
		t.Errorf("Expected the meltdown to stick")
	}
	summary := e.Summary()
	if !summary.Meltdown || summary.Scrams != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	r, err = e.Apply(ParseCommand("new"))
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if r.Mode != ModeRunning || r.Turn != 0 || r.State.Temperature != reactor.InitialTemperature {
		t.Errorf("Expected a fresh game, got %+v", r)
	}
}

func TestInvalidRodInputKeepsRods(t *testing.T) {
	e := newTestEngine(t, reactor.Normal(), SubsystemsNone, 1)
	e.Apply(ParseCommand("30"))

	r, err := e.Apply(ParseCommand("150"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if r.State.ControlRods != 0.3 {
		t.Errorf("Expected rods to stay at 0.3, got %v", r.State.ControlRods)
	}
	if r.Turn != 2 || len(r.Notes) != 1 {
		t.Errorf("Expected a turn with a note, got turn %d notes %v", r.Turn, r.Notes)
	}
}

func TestConsoleCommandsRejected(t *testing.T) {
	e := newTestEngine(t, reactor.Normal(), SubsystemsNone, 1)
	for _, in := range []string{"q", "s", "l", "h", "history"} {
		if _, err := e.Apply(ParseCommand(in)); !errors.Is(err, ErrNotEngineCommand) {
			t.Errorf("Input %q: expected ErrNotEngineCommand, got %v", in, err)
		}
	}
	if turn, _, _ := e.GetCurrentTime(); turn != 0 {
		t.Errorf("Expected no turns consumed, got %d", turn)
	}
}

func TestDisabledSubsystemsRejectCommands(t *testing.T) {
	e := newTestEngine(t, reactor.Normal(), SubsystemsNone, 1)
	for _, in := range []string{"t", "e", "d", "f"} {
		if _, err := e.Apply(ParseCommand(in)); !errors.Is(err, ErrSubsystemDisabled) {
			t.Errorf("Input %q: expected ErrSubsystemDisabled, got %v", in, err)
		}
	}
}

func TestECCSActivation(t *testing.T) {
	e := newTestEngine(t, reactor.Normal(), SubsystemECCS, 1)
	e.core.UpdateCoolant(-60)

	r, err := e.Apply(ParseCommand("e"))
	if err != nil {
		t.Fatalf("ECCS: %v", err)
	}
	if r.State.ECCSCooldown != 9 || r.State.ECCSCharges != 2 {
		t.Errorf("Expected cooldown 9 and 2 charges, got %d and %d", r.State.ECCSCooldown, r.State.ECCSCharges)
	}
	if !approx(r.State.Coolant, 40+50-reactor.CoolantLossRate) {
		t.Errorf("Expected coolant flooded back, got %v", r.State.Coolant)
	}

	before := e.State()
	if _, err := e.Apply(ParseCommand("e")); !errors.Is(err, ErrECCSCooldown) {
		t.Errorf("Expected ErrECCSCooldown, got %v", err)
	}
	if !reflect.DeepEqual(before, e.State()) {
		t.Errorf("Expected a rejected ECCS to leave the core untouched")
	}

	e.core.SetECCS(0, 0)
	if _, err := e.Apply(ParseCommand("e")); !errors.Is(err, ErrECCSDepleted) {
		t.Errorf("Expected ErrECCSDepleted, got %v", err)
	}
}

func TestBoundsHoldOverLongRun(t *testing.T) {
	e := newTestEngine(t, reactor.Hard(), SubsystemsAll, 42)
	p := e.Params()
	script := rand.New(rand.NewPCG(7, 7))
	prevFuel := e.State().Fuel

	for i := 0; i < 1500; i++ {
		var cmd Command
		switch e.Mode() {
		case ModeScrammed:
			cmd = Command{Kind: CmdReset}
		case ModeMeltdown:
			cmd = Command{Kind: CmdNewGame}
		default:
			switch script.IntN(10) {
			case 0:
				cmd = Command{Kind: CmdRefillCoolant}
			case 1:
				cmd = Command{Kind: CmdActivateECCS}
			case 2:
				cmd = Command{Kind: CmdToggleDiesel}
			case 3:
				cmd = Command{Kind: CmdToggleTurbine}
			default:
				cmd = Command{Kind: CmdSetRods, Rods: float64(script.IntN(101)) / 100}
			}
		}

		r, err := e.Apply(cmd)
		if err != nil {
			if !errors.Is(err, ErrECCSCooldown) && !errors.Is(err, ErrECCSDepleted) && !errors.Is(err, ErrDieselEmpty) {
				t.Fatalf("step %d: unexpected error %v", i, err)
			}
			continue
		}
		s := r.State
		if cmd.Kind == CmdNewGame {
			prevFuel = s.Fuel
		}

		switch {
		case s.ControlRods < 0 || s.ControlRods > 1:
			t.Fatalf("step %d: rods out of range: %v", i, s.ControlRods)
		case s.Coolant < 0 || s.Coolant > 100:
			t.Fatalf("step %d: coolant out of range: %v", i, s.Coolant)
		case s.Fuel < 0 || s.Fuel > 100 || s.Fuel > prevFuel:
			t.Fatalf("step %d: fuel out of range or increased: %v (was %v)", i, s.Fuel, prevFuel)
		case s.Temperature < p.MinTemperature:
			t.Fatalf("step %d: temperature below floor: %v", i, s.Temperature)
		case s.Neutrons < 0 || s.ThermalPower < 0 || s.Electricity < 0:
			t.Fatalf("step %d: negative neutrons, power or electricity: %+v", i, s)
		case s.Xenon < 0 || s.Xenon > reactor.MaxXenon:
			t.Fatalf("step %d: xenon out of range: %v", i, s.Xenon)
		case s.Radiation < 0 || s.Radiation > reactor.MaxRadiation:
			t.Fatalf("step %d: radiation out of range: %v", i, s.Radiation)
		case s.GridDemand < p.GridMin || s.GridDemand > p.GridMax:
			t.Fatalf("step %d: grid demand out of range: %v", i, s.GridDemand)
		case s.TurbineRPM < 0 || s.TurbineRPM > p.TurbineMaxRPM:
			t.Fatalf("step %d: turbine rpm out of range: %v", i, s.TurbineRPM)
		case s.SteamPressure < 0 || s.SteamPressure > reactor.MaxSteamPressure:
			t.Fatalf("step %d: steam pressure out of range: %v", i, s.SteamPressure)
		case s.DieselFuel < 0 || s.DieselFuel > reactor.MaxDieselFuel:
			t.Fatalf("step %d: diesel fuel out of range: %v", i, s.DieselFuel)
		case s.ECCSCooldown < 0 || s.ECCSCharges < 0:
			t.Fatalf("step %d: negative ECCS counters: %d/%d", i, s.ECCSCooldown, s.ECCSCharges)
		}
		prevFuel = s.Fuel
	}
}

// scriptedRun plays a fixed command script and returns the fired events.
func scriptedRun(t *testing.T, seed uint64, turns int) ([]RandomEvent, *Engine) {
	t.Helper()
	e := newTestEngine(t, reactor.Normal(), SubsystemsAll, seed)
	var fired []RandomEvent
	for i := 0; i < turns; i++ {
		var cmd Command
		switch e.Mode() {
		case ModeScrammed:
			cmd = Command{Kind: CmdReset}
		case ModeMeltdown:
			cmd = Command{Kind: CmdNewGame}
		default:
			cmd = Command{Kind: CmdSetRods, Rods: 0.45}
			if i%25 == 0 {
				cmd = Command{Kind: CmdRefillCoolant}
			}
		}
		r, err := e.Apply(cmd)
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		if r.Event != nil {
			fired = append(fired, *r.Event)
		}
	}
	return fired, e
}

func TestSeededRunsReproduce(t *testing.T) {
	a, ea := scriptedRun(t, 2024, 300)
	b, eb := scriptedRun(t, 2024, 300)

	if len(a) == 0 {
		t.Fatalf("Expected some random events in 300 turns")
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Expected identical events for the same seed:\n%v\n%v", a, b)
	}
	if !reflect.DeepEqual(ea.State(), eb.State()) || ea.Score() != eb.Score() {
		t.Errorf("Expected identical final state for the same seed")
	}
}

func TestSessionRestoreResumesStream(t *testing.T) {
	a := newTestEngine(t, reactor.Normal(), SubsystemsAll, 7)
	for i := 0; i < 20; i++ {
		if a.Mode() != ModeRunning {
			break
		}
		a.Apply(Command{Kind: CmdSetRods, Rods: 0.4})
	}
	sess, err := a.Session()
	if err != nil {
		t.Fatalf("Session: %v", err)
	}

	b := newTestEngine(t, reactor.Normal(), SubsystemsAll, 999)
	if err := b.Restore(sess); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(a.State(), b.State()) {
		t.Fatalf("Expected restored state to match")
	}

	for i := 0; i < 40; i++ {
		cmd := Command{Kind: CmdSetRods, Rods: 0.4}
		if a.Mode() == ModeScrammed {
			cmd = Command{Kind: CmdReset}
		}
		if a.Mode() == ModeMeltdown {
			break
		}
		ra, errA := a.Apply(cmd)
		rb, errB := b.Apply(cmd)
		if !errors.Is(errB, errA) {
			t.Fatalf("turn %d: diverging errors %v / %v", i, errA, errB)
		}
		if !reflect.DeepEqual(ra.State, rb.State) || ra.Score != rb.Score {
			t.Fatalf("turn %d: diverged after restore", i)
		}
	}
}

func TestRestoreRejectsOtherDifficulty(t *testing.T) {
	a := newTestEngine(t, reactor.Hard(), SubsystemsNone, 1)
	a.AdvanceTurn()
	sess, _ := a.Session()

	b := newTestEngine(t, reactor.Normal(), SubsystemsNone, 1)
	before := b.State()
	if err := b.Restore(sess); !errors.Is(err, ErrDifficultyChanged) {
		t.Errorf("Expected ErrDifficultyChanged, got %v", err)
	}
	if !reflect.DeepEqual(before, b.State()) {
		t.Errorf("Expected a failed restore to leave the game untouched")
	}
}

func TestRestoreAdoptsSavedSubsystems(t *testing.T) {
	a := newTestEngine(t, reactor.Normal(), SubsystemsAll, 5)
	for i := 0; i < 10; i++ {
		a.Apply(Command{Kind: CmdSetRods, Rods: 0.45})
	}
	sess, err := a.Session()
	if err != nil {
		t.Fatalf("Session: %v", err)
	}

	b := newTestEngine(t, reactor.Normal(), SubsystemsNone, 5)
	if err := b.Restore(sess); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if b.Subsystems() != SubsystemsAll {
		t.Errorf("Expected subsystems %s after restore, got %s", SubsystemsAll, b.Subsystems())
	}
	for i := 0; i < 20; i++ {
		if a.Mode() != ModeRunning {
			break
		}
		ra, _ := a.AdvanceTurn()
		rb, _ := b.AdvanceTurn()
		if !reflect.DeepEqual(ra.State, rb.State) || ra.Score != rb.Score {
			t.Fatalf("turn %d: diverged after restoring into another subsystem set", ra.Turn)
		}
	}

	bad := sess
	bad.Subsystems = SubsystemsAll + 1<<12
	c := newTestEngine(t, reactor.Normal(), SubsystemsNone, 5)
	if err := c.Restore(bad); err == nil {
		t.Errorf("Expected unknown subsystem bits to be rejected")
	}
	if c.Subsystems() != SubsystemsNone {
		t.Errorf("Expected a failed restore to keep subsystems %s, got %s", SubsystemsNone, c.Subsystems())
	}
}

func TestRestoreKeepsSummaryTallies(t *testing.T) {
	a := newTestEngine(t, reactor.Normal(), SubsystemsNone, 1)
	runUntilScram(t, a)
	a.Apply(Command{Kind: CmdReset})
	a.Apply(Command{Kind: CmdSetRods, Rods: 0.5})
	want := a.Summary()
	if want.Scrams != 1 {
		t.Fatalf("Expected one SCRAM before saving, got %d", want.Scrams)
	}

	sess, _ := a.Session()
	b := newTestEngine(t, reactor.Normal(), SubsystemsNone, 1)
	if err := b.Restore(sess); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := b.Summary(); got != want {
		t.Errorf("Expected summary %+v after restore, got %+v", want, got)
	}

	sess.Tally.Scrams = -1
	if err := b.Restore(sess); err == nil {
		t.Errorf("Expected a negative tally to be rejected")
	}
}

func TestObserversSeeEveryReport(t *testing.T) {
	e := newTestEngine(t, reactor.Normal(), SubsystemsNone, 1)
	var seen []int
	e.OnTurn(func(r TurnReport) { seen = append(seen, r.Turn) })

	e.AdvanceTurn()
	e.AdvanceTurn()
	e.Apply(ParseCommand("q"))

	if !reflect.DeepEqual(seen, []int{1, 2}) {
		t.Errorf("Expected reports for turns 1 and 2, got %v", seen)
	}
	if e.LastReport().Turn != 2 {
		t.Errorf("Expected last report for turn 2, got %d", e.LastReport().Turn)
	}
}

func TestNewEngineRejectsBadParams(t *testing.T) {
	p := reactor.Normal()
	p.MeltdownTemp = p.ScramTemp
	if _, err := NewEngine(Options{Params: p}, nil, quietLogger(t)); err == nil {
		t.Errorf("Expected invalid params to be rejected")
	}
}

func TestEventOnlyRunKeepsAuxiliaryStateIdle(t *testing.T) {
	p := reactor.Normal()
	p.EventChanceDenominator = 1
	e := newTestEngine(t, p, SubsystemRandomEvents, 11)

	for i := 0; i < 120; i++ {
		var err error
		switch e.Mode() {
		case ModeScrammed:
			_, err = e.Apply(Command{Kind: CmdReset})
		case ModeMeltdown:
			_, err = e.Apply(Command{Kind: CmdNewGame})
		default:
			_, err = e.AdvanceTurn()
		}
		if err != nil && !errors.Is(err, ErrScrammed) {
			t.Fatalf("turn %d: unexpected error %v", i, err)
		}

		s := e.State()
		if s.Xenon != 0 {
			t.Fatalf("turn %d: expected no xenon with the xenon model off, got %v", i, s.Xenon)
		}
		if !s.TurbineOnline {
			t.Fatalf("turn %d: expected the turbine flag untouched with the turbine off", i)
		}
	}
	for _, id := range e.Unlocked() {
		if id == AchXenonPit {
			t.Errorf("Expected %s to stay locked with the xenon model off", AchXenonPit)
		}
	}
}
