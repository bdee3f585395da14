package engine

import (
	"fmt"
	"strings"
)

// Subsystems is the set of optional layers enabled over the core physics.
type Subsystems uint16

const (
	SubsystemRandomEvents Subsystems = 1 << iota
	SubsystemTurbine
	SubsystemXenon
	SubsystemECCS
	SubsystemDiesel
	SubsystemRadiation
	SubsystemWeather
	SubsystemGrid

	SubsystemsNone Subsystems = 0
	SubsystemsAll            = SubsystemRandomEvents | SubsystemTurbine | SubsystemXenon | SubsystemECCS |
		SubsystemDiesel | SubsystemRadiation | SubsystemWeather | SubsystemGrid
)

var subsystemNames = []struct {
	bit  Subsystems
	name string
}{
	{SubsystemRandomEvents, "events"},
	{SubsystemTurbine, "turbine"},
	{SubsystemXenon, "xenon"},
	{SubsystemECCS, "eccs"},
	{SubsystemDiesel, "diesel"},
	{SubsystemRadiation, "radiation"},
	{SubsystemWeather, "weather"},
	{SubsystemGrid, "grid"},
}

// Has reports whether every bit in x is enabled.
func (s Subsystems) Has(x Subsystems) bool {
	return s&x == x
}

func (s Subsystems) String() string {
	switch s {
	case SubsystemsNone:
		return "none"
	case SubsystemsAll:
		return "all"
	}
	var names []string
	for _, n := range subsystemNames {
		if s.Has(n.bit) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseSubsystems accepts "all", "none" or a comma separated list of names.
// A leading '-' removes a subsystem from everything listed before it, so
// "all,-weather" is everything but the weather.
func ParseSubsystems(s string) (Subsystems, error) {
	var out Subsystems
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		remove := strings.HasPrefix(part, "-")
		part = strings.TrimPrefix(part, "-")

		var bits Subsystems
		switch part {
		case "all":
			bits = SubsystemsAll
		case "none":
			bits = SubsystemsNone
			if !remove {
				out = SubsystemsNone
			}
		default:
			found := false
			for _, n := range subsystemNames {
				if n.name == part {
					bits, found = n.bit, true
					break
				}
			}
			if !found {
				return 0, fmt.Errorf("unknown subsystem %q", part)
			}
		}
		if remove {
			out &^= bits
		} else {
			out |= bits
		}
	}
	return out, nil
}
