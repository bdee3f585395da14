package reactor

import (
	"fmt"
	"strings"
)

// Weather is the current site weather. It modulates passive cooling,
// event frequency and grid demand.
type Weather uint8

const (
	WeatherClear Weather = iota
	WeatherRain
	WeatherStorm
	WeatherHeatwave
	WeatherCold
)

var weatherNames = [...]string{
	WeatherClear:    "clear",
	WeatherRain:     "rain",
	WeatherStorm:    "storm",
	WeatherHeatwave: "heatwave",
	WeatherCold:     "cold",
}

func (w Weather) String() string {
	if int(w) < len(weatherNames) {
		return weatherNames[w]
	}
	return fmt.Sprintf("weather(%d)", w)
}

// CoolingFactor scales passive cooling.
func (w Weather) CoolingFactor() float64 {
	switch w {
	case WeatherRain:
		return 1.2
	case WeatherHeatwave:
		return 0.5
	case WeatherCold:
		return 1.5
	default:
		return 1.0
	}
}

// DemandOffset is the extra grid load in MW caused by the weather.
func (w Weather) DemandOffset() float64 {
	switch w {
	case WeatherHeatwave:
		return 4
	case WeatherCold:
		return 3
	case WeatherStorm:
		return 1
	default:
		return 0
	}
}

// ParseWeather is the inverse of String.
func ParseWeather(s string) (Weather, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range weatherNames {
		if name == key {
			return Weather(i), nil
		}
	}
	return WeatherClear, fmt.Errorf("unknown weather %q", s)
}

func (w Weather) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Weather) UnmarshalText(text []byte) error {
	parsed, err := ParseWeather(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
