// Package scenario runs scripted, seeded sessions headlessly and checks
// their outcome. It backs the replay binary and doubles as a regression
// harness for balance changes.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

// Scenario is a scripted session.
type Scenario struct {
	Name        string
	Description string
	Params      reactor.Params
	Subsystems  engine.Subsystems
	Seed        uint64

	// Prepare adjusts the starting state before the script runs.
	Prepare func(*reactor.State)

	// Script is operator input, one line per step, as typed at the console.
	Script []string

	Expect []Expectation

	// Deterministic reruns the script and requires identical reports.
	Deterministic bool
}

// Expectation is one named check on the outcome.
type Expectation struct {
	Name  string
	Check func(*Outcome) error
}

// Step is one scripted input and what the engine made of it.
type Step struct {
	Input  string
	Report engine.TurnReport
	Err    error
}

// Outcome is everything a run produced.
type Outcome struct {
	Steps  []Step
	Final  reactor.State
	Mode   engine.SafetyMode
	Score  int64
	Turn   int
	Events []events.TurnEvent
	Engine *engine.Engine
}

// Reports returns the reports of accepted steps.
func (o *Outcome) Reports() []engine.TurnReport {
	var out []engine.TurnReport
	for _, s := range o.Steps {
		if s.Err == nil {
			out = append(out, s.Report)
		}
	}
	return out
}

// Rejected counts steps that failed with target.
func (o *Outcome) Rejected(target error) int {
	n := 0
	for _, s := range o.Steps {
		if errors.Is(s.Err, target) {
			n++
		}
	}
	return n
}

// Count returns how many log events of type t were recorded.
func (o *Outcome) Count(t events.EventType) int {
	n := 0
	for _, e := range o.Events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Result captures the verdict of a scenario.
type Result struct {
	Scenario string
	Passed   bool
	Failures []string
	Outcome  *Outcome
}

// Runner executes scenarios with a shared logger and optional persister.
type Runner struct {
	logger    *logger.Logger
	persister events.EventPersister
}

// NewRunner creates a runner. persister may be nil.
func NewRunner(log *logger.Logger, persister events.EventPersister) *Runner {
	return &Runner{logger: log, persister: persister}
}

// Run plays sc and evaluates its expectations.
func (r *Runner) Run(ctx context.Context, sc Scenario) Result {
	res := Result{Scenario: sc.Name}

	out, err := r.play(ctx, sc, r.persister)
	if err != nil {
		res.Failures = append(res.Failures, err.Error())
		return res
	}
	res.Outcome = out

	for _, exp := range sc.Expect {
		if err := exp.Check(out); err != nil {
			res.Failures = append(res.Failures, exp.Name+": "+err.Error())
		}
	}

	if sc.Deterministic {
		again, err := r.play(ctx, sc, nil)
		switch {
		case err != nil:
			res.Failures = append(res.Failures, "rerun: "+err.Error())
		case !sameReports(out.Reports(), again.Reports()):
			res.Failures = append(res.Failures, "rerun with the same seed diverged")
		}
	}

	res.Passed = len(res.Failures) == 0
	if res.Passed {
		r.logger.Info("Scenario passed", "scenario", sc.Name, "turns", out.Turn)
	} else {
		r.logger.Warn("Scenario failed", "scenario", sc.Name, "failures", len(res.Failures))
	}
	return res
}

// RunAll runs every scenario, stopping early if ctx is cancelled.
func (r *Runner) RunAll(ctx context.Context, list []Scenario) []Result {
	results := make([]Result, 0, len(list))
	for _, sc := range list {
		if ctx.Err() != nil {
			break
		}
		results = append(results, r.Run(ctx, sc))
	}
	return results
}

func (r *Runner) play(ctx context.Context, sc Scenario, persister events.EventPersister) (*Outcome, error) {
	el := events.NewEventLog("", persister)
	e, err := engine.NewEngine(engine.Options{Params: sc.Params, Seed: sc.Seed, Subsystems: sc.Subsystems}, el, r.logger.With("scenario", sc.Name))
	if err != nil {
		return nil, err
	}

	if sc.Prepare != nil {
		sess, err := e.Session()
		if err != nil {
			return nil, err
		}
		sc.Prepare(&sess.State)
		if err := e.Restore(sess); err != nil {
			return nil, fmt.Errorf("prepare: %w", err)
		}
	}

	out := &Outcome{Engine: e}
	for i, in := range sc.Script {
		if i%64 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rep, err := e.Apply(engine.ParseCommand(in))
		out.Steps = append(out.Steps, Step{Input: in, Report: rep, Err: err})
	}

	out.Final = e.State()
	out.Mode = e.Mode()
	out.Score = e.Score()
	out.Turn, _, _ = e.GetCurrentTime()
	out.Events = el.Replay()
	return out, nil
}

func sameReports(a, b []engine.TurnReport) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i].State, b[i].State) || a[i].Score != b[i].Score ||
			!reflect.DeepEqual(a[i].Event, b[i].Event) {
			return false
		}
	}
	return true
}

// Repeat returns n copies of input.
func Repeat(input string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = input
	}
	return out
}

// Cycle repeats pattern until the script is n lines long.
func Cycle(pattern []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

// Find returns the named scenarios from list, or an error naming the
// first unknown one.
func Find(list []Scenario, names ...string) ([]Scenario, error) {
	if len(names) == 0 {
		return list, nil
	}
	byName := make(map[string]Scenario, len(list))
	for _, sc := range list {
		byName[sc.Name] = sc
	}
	var out []Scenario
	for _, n := range names {
		sc, ok := byName[n]
		if !ok {
			known := make([]string, 0, len(list))
			for _, sc := range list {
				known = append(known, sc.Name)
			}
			return nil, fmt.Errorf("unknown scenario %q (known: %s)", n, strings.Join(known, ", "))
		}
		out = append(out, sc)
	}
	return out, nil
}
