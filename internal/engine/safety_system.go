package engine

import (
	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/domain/rules"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
	"github.com/MRamiBalles/reactorsim/internal/platform/metrics"
)

// SafetyResult is the outcome of one safety check.
type SafetyResult struct {
	Scrammed bool
	Meltdown bool
}

// SafetySystem is the RUNNING / SCRAMMED / MELTDOWN state machine.
type SafetySystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	mode     SafetyMode
}

// NewSafetySystem creates a safety system in RUNNING mode.
func NewSafetySystem(eventLog *events.EventLog, log *logger.Logger) *SafetySystem {
	return &SafetySystem{
		eventLog: eventLog,
		logger:   log,
		mode:     ModeRunning,
	}
}

// Mode is the current state machine position.
func (ss *SafetySystem) Mode() SafetyMode {
	return ss.mode
}

// SetMode is used when restoring a saved session.
func (ss *SafetySystem) SetMode(m SafetyMode) {
	ss.mode = m
}

// Check evaluates the trip conditions after a turn. Meltdown is checked
// after a same-turn SCRAM, so residual heat past the meltdown threshold
// still ends the session.
func (ss *SafetySystem) Check(core *reactor.Core, turn int) SafetyResult {
	var res SafetyResult
	if ss.mode == ModeMeltdown {
		return res
	}
	p := core.Params()

	if ss.mode == ModeRunning && rules.ScramCondition(core.Temperature(), core.Neutrons(), p) {
		before := core.Snapshot()
		core.Scram()
		ss.mode = ModeScrammed
		res.Scrammed = true
		metrics.Get().RecordScram()

		ss.logger.Warn("AUTO SCRAM: emergency shutdown",
			"turn", turn,
			"temperature", before.Temperature,
			"neutrons", before.Neutrons,
		)
		emit(ss.eventLog, ss.logger, events.EventTypeScram, turn, events.ActorSafety, map[string]any{
			"temperature_before": before.Temperature,
			"neutrons_before":    before.Neutrons,
			"temperature":        core.Temperature(),
			"neutrons":           core.Neutrons(),
		})
	}

	if core.CheckMeltdown() {
		core.Halt()
		ss.mode = ModeMeltdown
		res.Meltdown = true
		metrics.Get().RecordMeltdown()

		ss.logger.Error("MELTDOWN: core has gone critical", "turn", turn, "temperature", core.Temperature())
		emit(ss.eventLog, ss.logger, events.EventTypeMeltdown, turn, events.ActorSafety, map[string]any{
			"temperature": core.Temperature(),
		})
	}
	return res
}

// Restart brings the reactor back from SCRAMMED. Only valid in that mode.
func (ss *SafetySystem) Restart(core *reactor.Core, turn int) error {
	switch ss.mode {
	case ModeMeltdown:
		return ErrMeltdown
	case ModeRunning:
		return ErrNotScrammed
	}

	core.Restart()
	ss.mode = ModeRunning
	metrics.Get().RecordRestart()

	ss.logger.Info("Reactor restart", "turn", turn)
	emit(ss.eventLog, ss.logger, events.EventTypeRestart, turn, events.ActorOperator, map[string]any{
		"temperature":  core.Temperature(),
		"control_rods": core.ControlRods(),
	})
	return nil
}

// Reset returns to RUNNING for a fresh session.
func (ss *SafetySystem) Reset() {
	ss.mode = ModeRunning
}

// Gate rejects operator commands the current mode does not allow.
func (ss *SafetySystem) Gate(kind CommandKind) error {
	if kind == CmdNewGame {
		return nil
	}
	switch ss.mode {
	case ModeMeltdown:
		return ErrMeltdown
	case ModeScrammed:
		if kind != CmdReset {
			return ErrScrammed
		}
	case ModeRunning:
		if kind == CmdReset {
			return ErrNotScrammed
		}
	}
	return nil
}
