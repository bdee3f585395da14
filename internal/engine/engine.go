package engine

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/config"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
	"github.com/MRamiBalles/reactorsim/internal/platform/metrics"
)

// seedStream is the fixed PCG stream selector. Only the seed varies between sessions.
const seedStream = 0x9e3779b97f4a7c15

// Options configures one session.
type Options struct {
	Params     reactor.Params
	Seed       uint64
	Subsystems Subsystems
}

// Engine is the central orchestrator: it owns the core, the clock and the
// random stream, and runs every subsystem in a fixed order once per turn.
type Engine struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	clock    *Clock
	core     *reactor.Core

	subsystems Subsystems
	seed       uint64
	src        *rand.PCG
	rng        *rand.Rand

	// Sub-systems
	physicsSystem     *PhysicsSystem
	safetySystem      *SafetySystem
	eventSystem       *EventSystem
	xenonSystem       *XenonSystem
	turbineSystem     *TurbineSystem
	eccsSystem        *ECCSSystem
	dieselSystem      *DieselSystem
	radiationSystem   *RadiationSystem
	weatherSystem     *WeatherSystem
	gridSystem        *GridSystem
	scoreSystem       *ScoreSystem
	achievementSystem *AchievementSystem

	// State
	pendingLeak bool
	last        TurnReport
	observers   []func(TurnReport)
}

// NewEngine validates the parameter set and wires up a fresh session.
// A nil event log gets an in-memory one.
func NewEngine(opts Options, eventLog *events.EventLog, log *logger.Logger) (*Engine, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("difficulty %q: %w", opts.Params.Name, err)
	}
	if eventLog == nil {
		eventLog = events.NewEventLog("", nil)
	}
	if log == nil {
		log = logger.NewLogger()
	}
	log = log.With("session", eventLog.SessionID())

	src := rand.NewPCG(opts.Seed, seedStream)
	e := &Engine{
		eventLog: eventLog,
		logger:   log,
		clock:    NewClock(),
		core:     reactor.NewCore(opts.Params),

		subsystems: opts.Subsystems,
		seed:       opts.Seed,
		src:        src,
		rng:        rand.New(src),

		physicsSystem:     NewPhysicsSystem(log),
		safetySystem:      NewSafetySystem(eventLog, log),
		eventSystem:       NewEventSystem(eventLog, log),
		xenonSystem:       NewXenonSystem(log),
		turbineSystem:     NewTurbineSystem(eventLog, log),
		eccsSystem:        NewECCSSystem(eventLog, log),
		dieselSystem:      NewDieselSystem(eventLog, log),
		radiationSystem:   NewRadiationSystem(log),
		weatherSystem:     NewWeatherSystem(eventLog, log),
		gridSystem:        NewGridSystem(),
		scoreSystem:       NewScoreSystem(),
		achievementSystem: NewAchievementSystem(eventLog, log),
	}
	e.last = e.Report()

	log.Info("Reactor session started",
		"difficulty", opts.Params.Name,
		"seed", opts.Seed,
		"subsystems", opts.Subsystems.String(),
	)
	emit(eventLog, log, events.EventTypeSessionStarted, 0, events.ActorSystem, map[string]any{
		"difficulty": opts.Params.Name,
		"seed":       fmt.Sprint(opts.Seed),
		"subsystems": opts.Subsystems.String(),
	})
	return e, nil
}

// emit records an event and logs, rather than returns to the turn, any
// persistence failure. The event stays in the in-memory log regardless.
func emit(el *events.EventLog, log *logger.Logger, t events.EventType, turn int, actor string, payload map[string]any) error {
	if el == nil {
		return nil
	}
	if _, err := el.Record(t, turn, actor, payload); err != nil {
		if log != nil {
			log.Error("Event persistence failed", "type", string(t), "turn", turn, "error", err)
		}
		return err
	}
	return nil
}

func (e *Engine) has(s Subsystems) bool {
	return e.subsystems.Has(s)
}

// Params returns the difficulty tier of this session.
func (e *Engine) Params() reactor.Params { return e.core.Params() }

// Subsystems returns the enabled layers.
func (e *Engine) Subsystems() Subsystems { return e.subsystems }

// Seed returns the seed the random stream was created with.
func (e *Engine) Seed() uint64 { return e.seed }

// State returns a snapshot of the reactor. Never the live core.
func (e *Engine) State() reactor.State { return e.core.Snapshot() }

// Mode is the safety state machine position.
func (e *Engine) Mode() SafetyMode { return e.safetySystem.Mode() }

// Score is the running score.
func (e *Engine) Score() int64 { return e.scoreSystem.Score() }

// GetCurrentTime returns the completed turn count and the in-game day and hour.
func (e *Engine) GetCurrentTime() (turn, day, hour int) {
	return e.clock.Turn(), e.clock.Day(), e.clock.Hour()
}

// GetEventLog exposes the session log for persistence and telemetry.
func (e *Engine) GetEventLog() *events.EventLog { return e.eventLog }

// LastReport is the report of the most recent turn or recovery action.
func (e *Engine) LastReport() TurnReport { return e.last }

// Unlocked lists the achievement IDs unlocked so far, including preloaded ones.
func (e *Engine) Unlocked() []string { return e.achievementSystem.Unlocked() }

// PreloadAchievements marks achievements from earlier sessions as already unlocked.
func (e *Engine) PreloadAchievements(ids []string) { e.achievementSystem.Preload(ids) }

// OnTurn registers an observer called with every report. Observers run on
// the engine goroutine and must not block.
func (e *Engine) OnTurn(fn func(TurnReport)) {
	e.observers = append(e.observers, fn)
}

// Summary condenses the session for the difficulty recommender.
func (e *Engine) Summary() config.Summary {
	return config.Summary{
		Difficulty:      e.core.Params().Name,
		Turns:           e.clock.Turn(),
		Scrams:          e.scoreSystem.Scrams(),
		Meltdown:        e.Mode() == ModeMeltdown,
		AvgSatisfaction: e.scoreSystem.AvgSatisfaction(),
	}
}

// Report builds a report of the current state without advancing a turn.
func (e *Engine) Report() TurnReport {
	return TurnReport{
		Turn:  e.clock.Turn(),
		Day:   e.clock.Day(),
		Hour:  e.clock.Hour(),
		State: e.core.Snapshot(),
		Mode:  e.safetySystem.Mode(),
		Score: e.scoreSystem.Score(),
	}
}

// AdvanceTurn runs one turn without an operator action.
func (e *Engine) AdvanceTurn() (TurnReport, error) {
	return e.Apply(Command{Kind: CmdWait})
}

// Apply executes one operator command. Accepted actions take effect
// immediately and then consume a turn; reset and new game do not.
// Rejected commands return an error and leave the core untouched.
func (e *Engine) Apply(cmd Command) (TurnReport, error) {
	if cmd.ConsoleOnly() {
		return TurnReport{}, ErrNotEngineCommand
	}
	if err := e.safetySystem.Gate(cmd.Kind); err != nil {
		return TurnReport{}, err
	}

	next := e.clock.Turn() + 1
	r := TurnReport{Command: cmd.Kind.String()}

	switch cmd.Kind {
	case CmdNewGame:
		e.NewGame()
		return e.last, nil

	case CmdReset:
		if err := e.safetySystem.Restart(e.core, e.clock.Turn()); err != nil {
			return TurnReport{}, err
		}
		r = e.Report()
		r.Command = cmd.Kind.String()
		r.Restarted = true
		e.achievementSystem.ResetStreaks()
		e.achievementSystem.OnRestart(&r)
		e.finish(r)
		return r, nil

	case CmdSetRods:
		from := e.core.ControlRods()
		e.core.SetControlRods(cmd.Rods)
		emit(e.eventLog, e.logger, events.EventTypeRodsSet, next, events.ActorOperator, map[string]any{
			"from": from,
			"to":   e.core.ControlRods(),
		})

	case CmdRefillCoolant:
		before := e.core.Coolant()
		e.core.RefillCoolant()
		emit(e.eventLog, e.logger, events.EventTypeCoolantRefilled, next, events.ActorOperator, map[string]any{
			"from": before,
		})

	case CmdToggleTurbine:
		if !e.has(SubsystemTurbine) {
			return TurnReport{}, ErrSubsystemDisabled
		}
		online := e.turbineSystem.Toggle(e.core, next)
		r.Notes = append(r.Notes, fmt.Sprintf("Turbine %s", onOff(online)))

	case CmdActivateECCS:
		if !e.has(SubsystemECCS) {
			return TurnReport{}, ErrSubsystemDisabled
		}
		if err := e.eccsSystem.Activate(e.core, next); err != nil {
			return TurnReport{}, err
		}
		r.Notes = append(r.Notes, "ECCS activated")

	case CmdToggleDiesel:
		if !e.has(SubsystemDiesel) {
			return TurnReport{}, ErrSubsystemDisabled
		}
		running, err := e.dieselSystem.Toggle(e.core, next)
		if err != nil {
			return TurnReport{}, err
		}
		r.Notes = append(r.Notes, fmt.Sprintf("Diesel generator %s", onOff(running)))

	case CmdRefillDiesel:
		if !e.has(SubsystemDiesel) {
			return TurnReport{}, ErrSubsystemDisabled
		}
		e.dieselSystem.Refill(e.core, next)
		r.Notes = append(r.Notes, "Diesel tank refilled")

	case CmdWait:
		if cmd.Rejected != "" {
			r.Notes = append(r.Notes, fmt.Sprintf("Ignored invalid rod setting %q (enter 0-100)", cmd.Rejected))
		}
	}

	e.advance(&r)
	return r, nil
}

// advance runs the pipeline. Random draws happen in a fixed order:
// weather, grid noise, event presence, event category, event magnitude.
func (e *Engine) advance(r *TurnReport) {
	start := time.Now()
	e.clock.Advance()
	turn := e.clock.Turn()
	p := e.core.Params()

	if e.has(SubsystemWeather) {
		r.WeatherChanged = e.weatherSystem.Update(e.core, e.rng, turn)
	}
	if e.has(SubsystemGrid) {
		e.gridSystem.Update(e.core, e.rng, e.clock.Hour(), e.has(SubsystemWeather))
	}

	mods := NeutralModifiers()
	if e.has(SubsystemXenon) {
		mods.Reactivity = e.xenonSystem.Reactivity(e.core)
	}
	weather := reactor.WeatherClear
	if e.has(SubsystemWeather) {
		weather = e.core.Snapshot().Weather
		mods.Cooling = weather.CoolingFactor()
	}
	r.Physics = e.physicsSystem.Update(e.core, mods)
	if r.Physics.LowCoolantWarning {
		r.warn(WarnLowCoolant, "Coolant critically low at %.1f%% - core heating", e.core.Coolant())
	}

	if e.has(SubsystemXenon) {
		e.xenonSystem.Update(e.core, r)
	}
	if e.has(SubsystemTurbine) {
		e.turbineSystem.Update(e.core, turn, r)
	} else {
		e.core.SetElectricity(e.core.ThermalPower() * p.TurbineEfficiency)
	}
	if e.has(SubsystemDiesel) {
		e.dieselSystem.Update(e.core, r)
	}
	if e.has(SubsystemECCS) {
		e.eccsSystem.Update(e.core)
	}
	radiationCritical := false
	if e.has(SubsystemRadiation) {
		radiationCritical = e.radiationSystem.Update(e.core, e.pendingLeak, r)
	}

	e.pendingLeak = false
	if e.has(SubsystemRandomEvents) {
		r.Event = e.eventSystem.Maybe(e.core, e.rng, e.subsystems, weather, turn)
		e.pendingLeak = r.Event != nil && r.Event.Leak()
	}

	safety := e.safetySystem.Check(e.core, turn)
	r.ScramTriggered = safety.Scrammed
	r.Meltdown = safety.Meltdown

	s := e.core.Snapshot()
	r.ScoreDelta, r.Satisfaction = e.scoreSystem.Update(s, p, e.has(SubsystemGrid), safety.Scrammed, radiationCritical)

	r.Turn = turn
	r.Day = e.clock.Day()
	r.Hour = e.clock.Hour()
	r.State = s
	r.Mode = e.safetySystem.Mode()
	r.Score = e.scoreSystem.Score()

	e.achievementSystem.OnTurn(r, p.ScramTemp, e.has(SubsystemGrid))

	for _, w := range r.Warnings {
		emit(e.eventLog, e.logger, events.EventTypeWarning, turn, events.ActorSystem, map[string]any{
			"code":    w.Code,
			"message": w.Message,
		})
	}
	if err := emit(e.eventLog, e.logger, events.EventTypeTurnAdvanced, turn, events.ActorSystem, statePayload(r)); err != nil {
		r.warn(WarnPersistence, "Could not persist turn %d: %v", turn, err)
	}

	m := metrics.Get()
	m.RecordTurn(time.Since(start))
	m.RecordWarnings(len(r.Warnings))

	e.logger.Debug("Turn advanced",
		"turn", turn,
		"mode", r.Mode.String(),
		"temperature", s.Temperature,
		"score", r.Score,
	)
	e.finish(*r)
}

func (e *Engine) finish(r TurnReport) {
	e.last = r
	for _, fn := range e.observers {
		fn(r)
	}
}

// NewGame resets the core, clock, safety state and score. The random
// stream carries on so two games in one process do not repeat.
func (e *Engine) NewGame() {
	e.core.Reset()
	e.clock.Reset()
	e.safetySystem.Reset()
	e.scoreSystem.Reset()
	e.achievementSystem.ResetStreaks()
	e.pendingLeak = false

	e.logger.Info("New game", "difficulty", e.core.Params().Name)
	emit(e.eventLog, e.logger, events.EventTypeSessionStarted, 0, events.ActorOperator, map[string]any{
		"difficulty": e.core.Params().Name,
		"seed":       fmt.Sprint(e.seed),
		"subsystems": e.subsystems.String(),
	})

	r := e.Report()
	r.Command = CmdNewGame.String()
	e.finish(r)
}

// Session is everything needed to resume a game exactly, including the
// position of the random stream.
type Session struct {
	ID          string
	Difficulty  string
	Seed        uint64
	RNGState    []byte
	Subsystems  Subsystems
	Turn        int
	Day         int
	Hour        int
	Score       int64
	Tally       ScoreTally
	Mode        SafetyMode
	PendingLeak bool
	State       reactor.State
}

// Session captures the current game for saving.
func (e *Engine) Session() (Session, error) {
	rng, err := e.src.MarshalBinary()
	if err != nil {
		return Session{}, fmt.Errorf("capture random stream: %w", err)
	}
	return Session{
		ID:          e.eventLog.SessionID(),
		Difficulty:  e.core.Params().Name,
		Seed:        e.seed,
		RNGState:    rng,
		Subsystems:  e.subsystems,
		Turn:        e.clock.Turn(),
		Day:         e.clock.Day(),
		Hour:        e.clock.Hour(),
		Score:       e.scoreSystem.Score(),
		Tally:       e.scoreSystem.Tally(),
		Mode:        e.safetySystem.Mode(),
		PendingLeak: e.pendingLeak,
		State:       e.core.Snapshot(),
	}, nil
}

// Restore loads a saved session. Everything is validated before anything
// is applied, so a failed restore leaves the running game untouched.
func (e *Engine) Restore(s Session) error {
	if s.Difficulty != e.core.Params().Name {
		return fmt.Errorf("%w: saved %q, running %q", ErrDifficultyChanged, s.Difficulty, e.core.Params().Name)
	}
	if s.Mode > ModeMeltdown {
		return fmt.Errorf("restore: invalid safety mode %d", s.Mode)
	}
	if s.Subsystems&^SubsystemsAll != 0 {
		return fmt.Errorf("restore: unknown subsystem bits %#x", uint32(s.Subsystems&^SubsystemsAll))
	}
	if s.Tally.RunningTurns < 0 || s.Tally.Scrams < 0 || s.Tally.SatisfactionSum < 0 {
		return fmt.Errorf("restore: negative score tally %+v", s.Tally)
	}
	src := rand.NewPCG(s.Seed, seedStream)
	if len(s.RNGState) > 0 {
		if err := src.UnmarshalBinary(s.RNGState); err != nil {
			return fmt.Errorf("restore random stream: %w", err)
		}
	}

	state := s.State
	if s.Mode != ModeRunning {
		state.Running = false
	}
	e.core.Restore(state)
	e.clock.SetTime(s.Turn, s.Day, s.Hour)
	e.safetySystem.SetMode(s.Mode)
	e.scoreSystem.Restore(s.Score, s.Tally)
	e.achievementSystem.ResetStreaks()
	e.subsystems = s.Subsystems
	e.seed = s.Seed
	e.src = src
	e.rng = rand.New(src)
	e.pendingLeak = s.PendingLeak

	e.logger.Info("Session loaded", "turn", s.Turn, "mode", s.Mode.String(), "subsystems", s.Subsystems.String())
	emit(e.eventLog, e.logger, events.EventTypeSessionLoaded, s.Turn, events.ActorOperator, map[string]any{
		"saved_session": s.ID,
		"turn":          s.Turn,
		"score":         s.Score,
	})

	r := e.Report()
	r.Command = CmdLoad.String()
	e.finish(r)
	return nil
}

// statePayload flattens the report into the TURN_ADVANCED event payload.
func statePayload(r *TurnReport) map[string]any {
	s := r.State
	payload := map[string]any{
		"day":            r.Day,
		"hour":           r.Hour,
		"mode":           r.Mode.String(),
		"neutrons":       s.Neutrons,
		"control_rods":   s.ControlRods,
		"temperature":    s.Temperature,
		"coolant":        s.Coolant,
		"fuel":           s.Fuel,
		"thermal_power":  s.ThermalPower,
		"electricity":    s.Electricity,
		"xenon":          s.Xenon,
		"radiation":      s.Radiation,
		"grid_demand":    s.GridDemand,
		"weather":        s.Weather.String(),
		"score":          r.Score,
		"score_delta":    r.ScoreDelta,
		"scram":          r.ScramTriggered,
		"meltdown":       r.Meltdown,
		"warnings":       len(r.Warnings),
		"low_coolant":    r.Physics.LowCoolantWarning,
		"satisfaction":   r.Satisfaction,
		"turbine_online": s.TurbineOnline,
	}
	if r.Event != nil {
		payload["event"] = string(r.Event.Kind)
	}
	return payload
}

func onOff(on bool) string {
	if on {
		return "online"
	}
	return "offline"
}
