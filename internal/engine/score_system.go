package engine

import (
	"math"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/domain/rules"
)

// Grid satisfaction band that earns the bonus.
const (
	SatisfiedLow  = 0.95
	SatisfiedHigh = 1.10
	GridBonus     = 1.5
)

// Satisfied reports whether a satisfaction ratio is inside the bonus band.
func Satisfied(ratio float64) bool {
	return ratio >= SatisfiedLow && ratio <= SatisfiedHigh
}

// ScoreSystem keeps the running score and the per-session tallies that
// feed the end-of-session summary.
type ScoreSystem struct {
	score int64

	runningTurns    int
	satisfactionSum float64
	scrams          int
}

// NewScoreSystem creates a zeroed score keeper.
func NewScoreSystem() *ScoreSystem {
	return &ScoreSystem{}
}

// Score is the running total.
func (ss *ScoreSystem) Score() int64 {
	return ss.score
}

// ScoreTally is the running bookkeeping behind the session summary.
type ScoreTally struct {
	RunningTurns    int
	SatisfactionSum float64
	Scrams          int
}

// Tally returns the current bookkeeping for saving.
func (ss *ScoreSystem) Tally() ScoreTally {
	return ScoreTally{RunningTurns: ss.runningTurns, SatisfactionSum: ss.satisfactionSum, Scrams: ss.scrams}
}

// Restore puts back a saved score and its tallies.
func (ss *ScoreSystem) Restore(score int64, t ScoreTally) {
	ss.score = score
	ss.runningTurns = t.RunningTurns
	ss.satisfactionSum = t.SatisfactionSum
	ss.scrams = t.Scrams
}

// Reset clears the score and tallies.
func (ss *ScoreSystem) Reset() {
	*ss = ScoreSystem{}
}

// Scrams is the number of SCRAMs this session.
func (ss *ScoreSystem) Scrams() int {
	return ss.scrams
}

// AvgSatisfaction is the mean grid satisfaction over turns the reactor was running.
func (ss *ScoreSystem) AvgSatisfaction() float64 {
	if ss.runningTurns == 0 {
		return 0
	}
	return ss.satisfactionSum / float64(ss.runningTurns)
}

// Update scores one turn and returns the delta.
//
// Delivered power is min(electricity, demand), or the raw electricity when
// there is no grid model. Hitting the demand band multiplies it, then the
// tier multiplier applies. SCRAM and critical radiation are flat penalties.
func (ss *ScoreSystem) Update(s reactor.State, p reactor.Params, grid, scrammed, radiationCritical bool) (delta int64, satisfaction float64) {
	satisfaction = 1
	if s.Running || scrammed {
		delivered := s.Electricity
		if grid {
			satisfaction = rules.Satisfaction(s.Electricity, s.GridDemand)
			delivered = math.Min(s.Electricity, s.GridDemand)
			if Satisfied(satisfaction) {
				delivered *= GridBonus
			}
		}
		delta = int64(math.Round(delivered * p.ScoreMultiplier))
		ss.runningTurns++
		ss.satisfactionSum += math.Min(satisfaction, SatisfiedHigh)
	}
	if scrammed {
		delta -= p.ScramPenalty
		ss.scrams++
	}
	if radiationCritical {
		delta -= p.RadiationPenalty
	}
	ss.score += delta
	return delta, satisfaction
}
