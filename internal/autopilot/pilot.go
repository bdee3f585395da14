package autopilot

import (
	"context"
	"fmt"

	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

// Flight summarises a Fly call.
type Flight struct {
	Turns       int
	Decisions   int
	Blocked     int
	Scrams      int
	Meltdown    bool
	Score       int64
	ByObjective map[string]int
}

// Pilot runs the Perceive -> Decide -> Act loop against one engine.
type Pilot struct {
	engine    *engine.Engine
	perceiver *Perceiver
	policy    *Policy
	logger    *logger.Logger
}

// NewPilot creates a pilot for eng using the default policy.
func NewPilot(eng *engine.Engine, log *logger.Logger) *Pilot {
	if log == nil {
		log = logger.NewLogger()
	}
	return &Pilot{
		engine:    eng,
		perceiver: NewPerceiver(eng.GetEventLog()),
		policy:    NewPolicy(),
		logger:    log,
	}
}

// Step executes one cycle. A melted-down core is never touched.
func (p *Pilot) Step(ctx context.Context) (Decision, engine.TurnReport, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, engine.TurnReport{}, err
	}

	// 1. PERCEIVE
	snap := p.perceiver.Perceive(p.engine)
	if snap.Mode == engine.ModeMeltdown {
		return Decision{}, engine.TurnReport{}, engine.ErrMeltdown
	}

	// 2. DECIDE
	d := p.policy.Decide(snap)
	if !d.Approved {
		p.logger.Warn("Autopilot proposal blocked", "guard", d.BlockedBy, "turn", snap.Turn)
	}
	p.logger.Debug("Autopilot decision",
		"snapshot", snap.Summary,
		"objective", d.Objective,
		"command", d.Command.Kind.String(),
		"why", d.Justification,
	)

	// 3. ACT
	r, err := p.engine.Apply(d.Command)
	if err != nil {
		return d, r, fmt.Errorf("autopilot %s: %w", d.Command.Kind, err)
	}
	return d, r, nil
}

// Fly runs up to turns simulated turns. Restarts after a SCRAM do not
// count as turns. It stops early on meltdown or when ctx is done.
func (p *Pilot) Fly(ctx context.Context, turns int) (Flight, error) {
	f := Flight{ByObjective: make(map[string]int)}
	start, _, _ := p.engine.GetCurrentTime()

	for {
		now, _, _ := p.engine.GetCurrentTime()
		f.Turns = now - start
		f.Score = p.engine.Score()
		if f.Turns >= turns {
			return f, nil
		}
		if p.engine.Mode() == engine.ModeMeltdown {
			f.Meltdown = true
			return f, nil
		}

		d, r, err := p.Step(ctx)
		if err != nil {
			return f, err
		}
		f.Decisions++
		f.ByObjective[d.Objective]++
		if !d.Approved {
			f.Blocked++
		}
		if r.ScramTriggered {
			f.Scrams++
		}
	}
}
