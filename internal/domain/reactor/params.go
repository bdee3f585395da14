// Package reactor defines the reactor state container and its mutation primitives.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package reactor

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Baseline values for the normal tier. Easy and hard are derived from these.
const (
	KEffBase          = 1.05
	RodAbsorption     = 1.1
	MinKEff           = 0.7
	NeutronToPower    = 0.1
	PowerToHeat       = 0.01
	MinFuelEfficiency = 0.1
	MaxNeutrons       = 10000.0

	InitialNeutrons    = 1000.0
	InitialControlRods = 0.5
	InitialTemperature = 300.0
	InitialCoolant     = 100.0
	InitialFuel        = 100.0
	InitialPower       = 0.0

	ScramTemp          = 1000.0
	ScramNeutrons      = 2000.0
	MeltdownTemp       = 2000.0
	MinReactorTemp     = 100.0
	CriticalCoolant    = 20.0
	ScramControlRods   = 1.0
	ScramNeutronFactor = 0.05
	ScramCoolingDelta  = -200.0

	FuelDepletionRate = 0.1
	CoolantLossRate   = 0.3
	PassiveCooling    = 0.5
	LowCoolantHeating = 5.0

	MaxCoolant     = 100.0
	MaxControlRods = 1.0
	MinControlRods = 0.0
	MaxFuel        = 100.0
	MinFuel        = 0.0

	EventMinCoolantForLeak = 10.0
	EventCoolantLeakAmount = 10.0
	EventPowerSurgeTemp    = 50.0

	MaxXenon         = 100.0
	MaxSteamPressure = 100.0
	MaxDieselFuel    = 100.0
	MaxRadiation     = 1000.0
)

// Params is the immutable parameter set for one difficulty tier.
// It is selected once per session and only ever read by the update functions.
type Params struct {
	Name string `json:"name"`

	// Initial state
	InitialNeutrons    float64 `json:"initial_neutrons"`
	InitialControlRods float64 `json:"initial_control_rods"`
	InitialTemperature float64 `json:"initial_temperature"`
	InitialCoolant     float64 `json:"initial_coolant"`
	InitialFuel        float64 `json:"initial_fuel"`
	InitialDieselFuel  float64 `json:"initial_diesel_fuel"`

	// Primary physics
	KEffBase          float64 `json:"k_eff_base"`
	RodAbsorption     float64 `json:"rod_absorption"`
	MinKEff           float64 `json:"min_k_eff"`
	NeutronToPower    float64 `json:"neutron_to_power"`
	PowerToHeat       float64 `json:"power_to_heat"`
	MinFuelEfficiency float64 `json:"min_fuel_efficiency"`
	NeutronCap        float64 `json:"neutron_cap"` // 0 disables the overflow clamp
	FuelDepletionRate float64 `json:"fuel_depletion_rate"`
	CoolantLossRate   float64 `json:"coolant_loss_rate"`
	PassiveCooling    float64 `json:"passive_cooling"`
	LowCoolantHeating float64 `json:"low_coolant_heating"`
	CriticalCoolant   float64 `json:"critical_coolant"`
	MinTemperature    float64 `json:"min_temperature"`

	// Safety
	ScramTemp          float64 `json:"scram_temp"`
	ScramNeutrons      float64 `json:"scram_neutrons"`
	MeltdownTemp       float64 `json:"meltdown_temp"`
	ScramNeutronFactor float64 `json:"scram_neutron_factor"`
	ScramCoolingDelta  float64 `json:"scram_cooling_delta"`
	ScramPenalty       int64   `json:"scram_penalty"`

	// Random events
	EventChanceDenominator int     `json:"event_chance_denominator"`
	EventMinCoolantForLeak float64 `json:"event_min_coolant_for_leak"`
	EventCoolantLeak       float64 `json:"event_coolant_leak"`
	EventPowerSurge        float64 `json:"event_power_surge"`

	// Xenon
	XenonBuildRate  float64 `json:"xenon_build_rate"`
	XenonDecayRate  float64 `json:"xenon_decay_rate"`
	XenonAbsorption float64 `json:"xenon_absorption"`
	XenonWarning    float64 `json:"xenon_warning"`

	// Turbine
	TurbineMaxRPM         float64 `json:"turbine_max_rpm"`
	TurbineEfficiency     float64 `json:"turbine_efficiency"`
	TurbineHeatExtraction float64 `json:"turbine_heat_extraction"`
	TurbineTripFraction   float64 `json:"turbine_trip_fraction"`

	// Diesel backup
	DieselBurnRate      float64 `json:"diesel_burn_rate"`
	DieselOutput        float64 `json:"diesel_output"`
	HouseLoad           float64 `json:"house_load"`
	BlackoutCoolantLoss float64 `json:"blackout_coolant_loss"`

	// Emergency core cooling
	ECCSCoolant       float64 `json:"eccs_coolant"`
	ECCSCooling       float64 `json:"eccs_cooling"`
	ECCSCooldownTurns int     `json:"eccs_cooldown_turns"`
	ECCSCharges       int     `json:"eccs_charges"`

	// Radiation
	RadiationWarning  float64 `json:"radiation_warning"`
	RadiationCritical float64 `json:"radiation_critical"`
	RadiationPenalty  int64   `json:"radiation_penalty"`

	// Weather and grid
	WeatherPeriod int     `json:"weather_period"`
	GridMin       float64 `json:"grid_min"`
	GridMax       float64 `json:"grid_max"`
	GridBase      float64 `json:"grid_base"`
	GridSwing     float64 `json:"grid_swing"`

	ScoreMultiplier float64 `json:"score_multiplier"`
}

// Normal returns the baseline tier. These are the values the other tiers are tuned against.
func Normal() Params {
	return Params{
		Name: "normal",

		InitialNeutrons:    InitialNeutrons,
		InitialControlRods: InitialControlRods,
		InitialTemperature: InitialTemperature,
		InitialCoolant:     InitialCoolant,
		InitialFuel:        InitialFuel,
		InitialDieselFuel:  MaxDieselFuel,

		KEffBase:          KEffBase,
		RodAbsorption:     RodAbsorption,
		MinKEff:           MinKEff,
		NeutronToPower:    NeutronToPower,
		PowerToHeat:       PowerToHeat,
		MinFuelEfficiency: MinFuelEfficiency,
		NeutronCap:        MaxNeutrons,
		FuelDepletionRate: FuelDepletionRate,
		CoolantLossRate:   CoolantLossRate,
		PassiveCooling:    PassiveCooling,
		LowCoolantHeating: LowCoolantHeating,
		CriticalCoolant:   CriticalCoolant,
		MinTemperature:    MinReactorTemp,

		ScramTemp:          ScramTemp,
		ScramNeutrons:      ScramNeutrons,
		MeltdownTemp:       MeltdownTemp,
		ScramNeutronFactor: ScramNeutronFactor,
		ScramCoolingDelta:  ScramCoolingDelta,
		ScramPenalty:       500,

		EventChanceDenominator: 10,
		EventMinCoolantForLeak: EventMinCoolantForLeak,
		EventCoolantLeak:       EventCoolantLeakAmount,
		EventPowerSurge:        EventPowerSurgeTemp,

		XenonBuildRate:  0.01,
		XenonDecayRate:  0.05,
		XenonAbsorption: 0.003,
		XenonWarning:    60,

		TurbineMaxRPM:         3600,
		TurbineEfficiency:     0.33,
		TurbineHeatExtraction: 0.02,
		TurbineTripFraction:   0.92,

		DieselBurnRate:      2.0,
		DieselOutput:        15,
		HouseLoad:           3,
		BlackoutCoolantLoss: 1.0,

		ECCSCoolant:       50,
		ECCSCooling:       150,
		ECCSCooldownTurns: 10,
		ECCSCharges:       3,

		RadiationWarning:  50,
		RadiationCritical: 100,
		RadiationPenalty:  25,

		WeatherPeriod: 12,
		GridMin:       2,
		GridMax:       40,
		GridBase:      10,
		GridSwing:     4,

		ScoreMultiplier: 1.0,
	}
}

// Easy is forgiving: slower losses, rarer events, more ECCS charges.
func Easy() Params {
	p := Normal()
	p.Name = "easy"
	p.FuelDepletionRate = 0.05
	p.CoolantLossRate = 0.2
	p.PassiveCooling = 0.8
	p.EventChanceDenominator = 15
	p.ECCSCooldownTurns = 5
	p.ECCSCharges = 5
	p.ScramPenalty = 250
	p.RadiationPenalty = 10
	p.ScoreMultiplier = 0.75
	return p
}

// Hard tightens thresholds and speeds up every loss.
func Hard() Params {
	p := Normal()
	p.Name = "hard"
	p.FuelDepletionRate = 0.15
	p.CoolantLossRate = 0.5
	p.PassiveCooling = 0.4
	p.EventChanceDenominator = 6
	p.ScramTemp = 900
	p.ScramNeutrons = 1800
	p.MeltdownTemp = 1800
	p.NeutronCap = 8000
	p.ECCSCooldownTurns = 15
	p.ECCSCharges = 2
	p.ScramPenalty = 1000
	p.RadiationPenalty = 50
	p.ScoreMultiplier = 1.5
	return p
}

var presets = map[string]func() Params{
	"easy":   Easy,
	"normal": Normal,
	"hard":   Hard,
}

// PresetNames lists the built-in difficulty tiers in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PresetByName returns a built-in tier, case-insensitively.
func PresetByName(name string) (Params, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "normal"
	}
	build, ok := presets[key]
	if !ok {
		return Params{}, fmt.Errorf("unknown difficulty %q (want one of %s)", name, strings.Join(PresetNames(), ", "))
	}
	return build(), nil
}

// Validate rejects parameter sets that would break the core invariants.
func (p Params) Validate() error {
	switch {
	case p.MinKEff <= 0:
		return fmt.Errorf("min_k_eff must be positive, got %v", p.MinKEff)
	case p.MinFuelEfficiency <= 0 || p.MinFuelEfficiency > 1:
		return fmt.Errorf("min_fuel_efficiency must be in (0,1], got %v", p.MinFuelEfficiency)
	case p.ScramNeutronFactor < 0 || p.ScramNeutronFactor > 1:
		return fmt.Errorf("scram_neutron_factor must be in [0,1], got %v", p.ScramNeutronFactor)
	case p.MeltdownTemp <= p.ScramTemp:
		return fmt.Errorf("meltdown_temp (%v) must exceed scram_temp (%v)", p.MeltdownTemp, p.ScramTemp)
	case p.InitialTemperature < p.MinTemperature:
		return fmt.Errorf("initial_temperature (%v) below min_temperature (%v)", p.InitialTemperature, p.MinTemperature)
	case p.EventChanceDenominator < 1:
		return fmt.Errorf("event_chance_denominator must be >= 1, got %d", p.EventChanceDenominator)
	case p.WeatherPeriod < 1:
		return fmt.Errorf("weather_period must be >= 1, got %d", p.WeatherPeriod)
	case p.GridMin > p.GridMax:
		return fmt.Errorf("grid_min (%v) exceeds grid_max (%v)", p.GridMin, p.GridMax)
	case p.TurbineMaxRPM <= 0:
		return fmt.Errorf("turbine_max_rpm must be positive, got %v", p.TurbineMaxRPM)
	case p.ScramPenalty < 0 || p.RadiationPenalty < 0:
		return fmt.Errorf("penalties must not be negative, got scram %d radiation %d", p.ScramPenalty, p.RadiationPenalty)
	case p.ECCSCooldownTurns < 0 || p.ECCSCharges < 0:
		return fmt.Errorf("eccs cooldown and charges must not be negative")
	}
	for _, f := range p.rates() {
		if f.v < 0 || math.IsNaN(f.v) {
			return fmt.Errorf("%s must not be negative, got %v", f.name, f.v)
		}
	}
	return nil
}

type namedRate struct {
	name string
	v    float64
}

// rates lists every per-turn amount whose sign the update functions rely
// on. A negative loss would turn into a gain past the field's ceiling.
func (p Params) rates() []namedRate {
	return []namedRate{
		{"rod_absorption", p.RodAbsorption},
		{"neutron_to_power", p.NeutronToPower},
		{"power_to_heat", p.PowerToHeat},
		{"neutron_cap", p.NeutronCap},
		{"fuel_depletion_rate", p.FuelDepletionRate},
		{"coolant_loss_rate", p.CoolantLossRate},
		{"passive_cooling", p.PassiveCooling},
		{"low_coolant_heating", p.LowCoolantHeating},
		{"critical_coolant", p.CriticalCoolant},
		{"event_min_coolant_for_leak", p.EventMinCoolantForLeak},
		{"event_coolant_leak", p.EventCoolantLeak},
		{"event_power_surge", p.EventPowerSurge},
		{"xenon_build_rate", p.XenonBuildRate},
		{"xenon_decay_rate", p.XenonDecayRate},
		{"xenon_absorption", p.XenonAbsorption},
		{"turbine_efficiency", p.TurbineEfficiency},
		{"turbine_heat_extraction", p.TurbineHeatExtraction},
		{"diesel_burn_rate", p.DieselBurnRate},
		{"diesel_output", p.DieselOutput},
		{"house_load", p.HouseLoad},
		{"blackout_coolant_loss", p.BlackoutCoolantLoss},
		{"eccs_coolant", p.ECCSCoolant},
		{"eccs_cooling", p.ECCSCooling},
		{"grid_min", p.GridMin},
		{"score_multiplier", p.ScoreMultiplier},
	}
}
