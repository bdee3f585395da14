package engine

import (
	"math/rand/v2"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/domain/rules"
)

// GridNoise is the half-width of the random demand swing in MW.
const GridNoise = 5.0

// GridSystem sets the grid demand for the turn from the daily curve.
type GridSystem struct{}

// NewGridSystem creates a new demand model.
func NewGridSystem() *GridSystem {
	return &GridSystem{}
}

// Update draws one noise sample and sets the demand. weather is only
// applied when the weather subsystem is on.
func (gs *GridSystem) Update(core *reactor.Core, rng *rand.Rand, hour int, weather bool) {
	p := core.Params()
	demand := rules.GridDemandCurve(hour, p) + (rng.Float64()*2-1)*GridNoise
	if weather {
		demand += core.Snapshot().Weather.DemandOffset()
	}
	core.SetGridDemand(demand)
}
