package engine

import (
	"math/rand/v2"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

var weatherTable = []struct {
	weather reactor.Weather
	weight  int
}{
	{reactor.WeatherClear, 40},
	{reactor.WeatherRain, 20},
	{reactor.WeatherStorm, 10},
	{reactor.WeatherHeatwave, 15},
	{reactor.WeatherCold, 15},
}

// WeatherFor maps a roll in [0,100) to a weather.
func WeatherFor(roll int) reactor.Weather {
	acc := 0
	for _, row := range weatherTable {
		acc += row.weight
		if roll < acc {
			return row.weather
		}
	}
	return reactor.WeatherClear
}

// WeatherSystem rolls new weather every WeatherPeriod turns.
type WeatherSystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewWeatherSystem creates a new weather roller.
func NewWeatherSystem(eventLog *events.EventLog, log *logger.Logger) *WeatherSystem {
	return &WeatherSystem{
		eventLog: eventLog,
		logger:   log,
	}
}

// Update draws from rng only on period boundaries. It reports whether the
// weather actually changed.
func (ws *WeatherSystem) Update(core *reactor.Core, rng *rand.Rand, turn int) bool {
	period := max(1, core.Params().WeatherPeriod)
	if turn%period != 0 {
		return false
	}
	prev := core.Snapshot().Weather
	next := WeatherFor(rng.IntN(100))
	if next == prev {
		return false
	}
	core.SetWeather(next)

	ws.logger.Event("WEATHER_CHANGED", events.ActorSystem, prev.String()+" -> "+next.String())
	emit(ws.eventLog, ws.logger, events.EventTypeWeatherChanged, turn, events.ActorSystem, map[string]any{
		"from": prev.String(),
		"to":   next.String(),
	})
	return true
}
