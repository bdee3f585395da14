// Package rules contains the pure calculation logic for reactor mechanics.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"math"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
)

// KEff is the linear control-rod model, floored at MinKEff so a fully
// inserted core still decays instead of dying outright.
func KEff(rods float64, p reactor.Params) float64 {
	return math.Max(p.MinKEff, p.KEffBase-rods*p.RodAbsorption)
}

// FuelEfficiency degrades the reaction rate with burnup, never to zero.
func FuelEfficiency(fuel float64, p reactor.Params) float64 {
	return math.Max(p.MinFuelEfficiency, fuel/100.0)
}

// ThermalPower converts the neutron population to MW thermal.
func ThermalPower(neutrons float64, p reactor.Params) float64 {
	return neutrons * p.NeutronToPower
}

// HeatGeneration converts thermal power to degrees gained this turn.
func HeatGeneration(power float64, p reactor.Params) float64 {
	return power * p.PowerToHeat
}

// ScramCondition is the automatic trip predicate.
func ScramCondition(temperature, neutrons float64, p reactor.Params) bool {
	return temperature > p.ScramTemp || neutrons > p.ScramNeutrons
}

// XenonReactivity is the neutron multiplier left over after xenon absorption.
func XenonReactivity(xenon float64, p reactor.Params) float64 {
	return clamp(1-xenon*p.XenonAbsorption, 0, 1)
}

// NextXenon advances the xenon inventory: produced by power, lost to decay.
func NextXenon(xenon, power float64, p reactor.Params) float64 {
	next := xenon + power*p.XenonBuildRate - xenon*p.XenonDecayRate
	return clamp(next, 0, reactor.MaxXenon)
}

// SteamPressureTarget is the pressure the primary loop settles at for a core temperature.
func SteamPressureTarget(temperature float64) float64 {
	return clamp((temperature-reactor.MinReactorTemp)/10, 0, reactor.MaxSteamPressure)
}

// Approach moves current towards target by rate (0..1) of the gap.
func Approach(current, target, rate float64) float64 {
	return current + (target-current)*rate
}

// TurbineOutput is the electrical output in MW for a given thermal power and spin.
func TurbineOutput(power, rpm float64, p reactor.Params) float64 {
	if p.TurbineMaxRPM <= 0 {
		return 0
	}
	return math.Max(0, power*p.TurbineEfficiency*(rpm/p.TurbineMaxRPM))
}

// GridDemandCurve is the base daily demand for an hour of day (0-23),
// peaking in the early evening.
func GridDemandCurve(hour int, p reactor.Params) float64 {
	phase := float64(hour-12) / 24 * 2 * math.Pi
	return p.GridBase + p.GridSwing*math.Sin(phase)
}

// Satisfaction is electricity over demand. A zero demand counts as satisfied.
func Satisfaction(electricity, demand float64) float64 {
	if demand <= 0 {
		return 1
	}
	return math.Max(0, electricity/demand)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
