package engine

import (
	"sort"

	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

// Achievement is an unlockable milestone.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Achievement IDs. These are persisted; do not rename.
const (
	AchFirstPower    = "first_power"
	AchSteadyHands   = "steady_hands"
	AchScramSurvivor = "scram_survivor"
	AchGridMaster    = "grid_master"
	AchCloseCall     = "close_call"
	AchMarathon      = "marathon"
	AchXenonPit      = "xenon_pit"
)

// Thresholds
const (
	SteadyHandsTurns  = 50
	GridMasterStreak  = 10
	MarathonTurns     = 200
	XenonPitLevel     = 80.0
	CloseCallFraction = 0.9
)

// Achievements lists every achievement in display order.
var Achievements = []Achievement{
	{AchFirstPower, "First Power", "Deliver electricity to the grid"},
	{AchSteadyHands, "Steady Hands", "Run 50 turns in a row without a SCRAM"},
	{AchScramSurvivor, "SCRAM Survivor", "Restart the reactor after a SCRAM"},
	{AchGridMaster, "Grid Master", "Meet grid demand 10 turns in a row"},
	{AchCloseCall, "Close Call", "Run above 90% of the SCRAM temperature without tripping"},
	{AchMarathon, "Marathon", "Survive 200 turns"},
	{AchXenonPit, "Xenon Pit", "Push xenon poisoning past 80%"},
}

// AchievementByID looks up an achievement definition.
func AchievementByID(id string) (Achievement, bool) {
	for _, a := range Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// AchievementSystem watches turn reports and unlocks milestones once.
type AchievementSystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger

	unlocked        map[string]bool
	cleanTurns      int
	satisfiedStreak int
}

// NewAchievementSystem creates a new tracker with nothing unlocked.
func NewAchievementSystem(eventLog *events.EventLog, log *logger.Logger) *AchievementSystem {
	return &AchievementSystem{
		eventLog: eventLog,
		logger:   log,
		unlocked: make(map[string]bool),
	}
}

// Preload marks achievements unlocked in earlier sessions so they are not announced again.
func (as *AchievementSystem) Preload(ids []string) {
	for _, id := range ids {
		as.unlocked[id] = true
	}
}

// Unlocked returns the unlocked IDs, sorted.
func (as *AchievementSystem) Unlocked() []string {
	ids := make([]string, 0, len(as.unlocked))
	for id := range as.unlocked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResetStreaks clears the per-session counters but keeps unlocks.
func (as *AchievementSystem) ResetStreaks() {
	as.cleanTurns = 0
	as.satisfiedStreak = 0
}

// OnTurn evaluates a finished turn and appends new unlocks to the report.
func (as *AchievementSystem) OnTurn(r *TurnReport, scramTemp float64, grid bool) {
	s := r.State

	if r.ScramTriggered || r.Meltdown {
		as.cleanTurns = 0
	} else {
		as.cleanTurns++
	}
	if grid && s.Running && Satisfied(r.Satisfaction) {
		as.satisfiedStreak++
	} else {
		as.satisfiedStreak = 0
	}

	if s.Electricity >= 1 {
		as.unlock(r, AchFirstPower)
	}
	if as.cleanTurns >= SteadyHandsTurns {
		as.unlock(r, AchSteadyHands)
	}
	if as.satisfiedStreak >= GridMasterStreak {
		as.unlock(r, AchGridMaster)
	}
	if !r.ScramTriggered && !r.Meltdown && s.Temperature > CloseCallFraction*scramTemp {
		as.unlock(r, AchCloseCall)
	}
	if r.Turn >= MarathonTurns && !r.Meltdown {
		as.unlock(r, AchMarathon)
	}
	if s.Xenon > XenonPitLevel {
		as.unlock(r, AchXenonPit)
	}
}

// OnRestart is called after a successful restart from SCRAM.
func (as *AchievementSystem) OnRestart(r *TurnReport) {
	as.unlock(r, AchScramSurvivor)
}

func (as *AchievementSystem) unlock(r *TurnReport, id string) {
	if as.unlocked[id] {
		return
	}
	a, ok := AchievementByID(id)
	if !ok {
		return
	}
	as.unlocked[id] = true
	r.Achievements = append(r.Achievements, a)

	as.logger.Event("ACHIEVEMENT_UNLOCKED", events.ActorOperator, a.Name)
	emit(as.eventLog, as.logger, events.EventTypeAchievementUnlocked, r.Turn, events.ActorOperator, map[string]any{
		"id":   a.ID,
		"name": a.Name,
	})
}
