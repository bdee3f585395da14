package reactor

// State is a value snapshot of every reactor field. It is what observers,
// save files and reports see; only Core mutates the live copy.
type State struct {
	Neutrons     float64 `json:"neutrons"`
	ControlRods  float64 `json:"control_rods"` // 0 = fully withdrawn, 1 = fully inserted
	Temperature  float64 `json:"temperature"`  // degrees C
	Coolant      float64 `json:"coolant"`      // percent
	Fuel         float64 `json:"fuel"`         // percent
	ThermalPower float64 `json:"thermal_power"`
	Running      bool    `json:"running"`

	// Auxiliary subsystems
	TurbineOnline bool    `json:"turbine_online"`
	TurbineRPM    float64 `json:"turbine_rpm"`
	SteamPressure float64 `json:"steam_pressure"`
	Electricity   float64 `json:"electricity"` // MW delivered this turn
	Xenon         float64 `json:"xenon"`
	ECCSCooldown  int     `json:"eccs_cooldown"`
	ECCSCharges   int     `json:"eccs_charges"`
	DieselFuel    float64 `json:"diesel_fuel"`
	DieselRunning bool    `json:"diesel_running"`
	Radiation     float64 `json:"radiation"`
	Weather       Weather `json:"weather"`
	GridDemand    float64 `json:"grid_demand"`
}

// ECCSReady reports whether the emergency core cooling can be fired now.
func (s State) ECCSReady() bool {
	return s.ECCSCooldown == 0 && s.ECCSCharges > 0
}

// Core owns the live reactor state and enforces its invariants on every write.
type Core struct {
	params Params
	state  State
}

// NewCore creates a reactor at the initial values of the given tier.
func NewCore(params Params) *Core {
	c := &Core{params: params}
	c.Reset()
	return c
}

// Params returns the tier this core was built with.
func (c *Core) Params() Params {
	return c.params
}

// Snapshot returns a copy of the current state.
func (c *Core) Snapshot() State {
	return c.state
}

// Restore replaces the live state, re-applying every clamp.
func (c *Core) Restore(s State) {
	c.state = s
	c.state.Neutrons = max(0, s.Neutrons)
	c.SetControlRods(s.ControlRods)
	c.state.Temperature = max(c.params.MinTemperature, s.Temperature)
	c.state.Coolant = clamp(s.Coolant, 0, MaxCoolant)
	c.state.Fuel = clamp(s.Fuel, MinFuel, MaxFuel)
	c.state.ThermalPower = max(0, s.ThermalPower)
	c.SetTurbineRPM(s.TurbineRPM)
	c.SetSteamPressure(s.SteamPressure)
	c.SetElectricity(s.Electricity)
	c.SetXenon(s.Xenon)
	c.SetECCS(s.ECCSCooldown, s.ECCSCharges)
	c.state.DieselFuel = clamp(s.DieselFuel, 0, MaxDieselFuel)
	c.SetRadiation(s.Radiation)
	c.SetGridDemand(s.GridDemand)
}

func (c *Core) Neutrons() float64     { return c.state.Neutrons }
func (c *Core) ControlRods() float64  { return c.state.ControlRods }
func (c *Core) Temperature() float64  { return c.state.Temperature }
func (c *Core) Coolant() float64      { return c.state.Coolant }
func (c *Core) Fuel() float64         { return c.state.Fuel }
func (c *Core) ThermalPower() float64 { return c.state.ThermalPower }
func (c *Core) IsRunning() bool       { return c.state.Running }

// SetControlRods clamps level into [0,1]. Out-of-range input is not an error.
func (c *Core) SetControlRods(level float64) {
	c.state.ControlRods = clamp(level, MinControlRods, MaxControlRods)
}

// RefillCoolant tops the coolant back up to 100%.
func (c *Core) RefillCoolant() {
	c.state.Coolant = MaxCoolant
}

// ConsumeFuel subtracts amount, flooring at empty. Fuel is never added back.
func (c *Core) ConsumeFuel(amount float64) {
	c.state.Fuel = clamp(c.state.Fuel-max(0, amount), MinFuel, MaxFuel)
}

// UpdateNeutrons multiplies the population by factor. The population never goes negative.
func (c *Core) UpdateNeutrons(factor float64) {
	c.state.Neutrons = max(0, c.state.Neutrons*factor)
}

// UpdateTemperature adds delta, never dropping below the tier's minimum.
func (c *Core) UpdateTemperature(delta float64) {
	c.state.Temperature = max(c.params.MinTemperature, c.state.Temperature+delta)
}

// UpdateCoolant adds delta, clamped to [0,100].
func (c *Core) UpdateCoolant(delta float64) {
	c.state.Coolant = clamp(c.state.Coolant+delta, 0, MaxCoolant)
}

// SetThermalPower stores the derived power for this turn.
func (c *Core) SetThermalPower(p float64) {
	c.state.ThermalPower = max(0, p)
}

// Scram drops every rod, kills most of the neutron population and dumps heat.
func (c *Core) Scram() {
	c.state.ControlRods = ScramControlRods
	c.state.Neutrons *= c.params.ScramNeutronFactor
	c.UpdateTemperature(c.params.ScramCoolingDelta)
	c.state.Running = false
}

// Restart brings a scrammed reactor back online. Rods stay fully inserted;
// the operator has to withdraw them to make power again.
func (c *Core) Restart() {
	c.state.Temperature = c.params.InitialTemperature
	c.state.ControlRods = MaxControlRods
	c.state.Running = true
}

// Reset restores every field to the tier's initial values.
func (c *Core) Reset() {
	p := c.params
	c.state = State{
		Neutrons:      p.InitialNeutrons,
		ControlRods:   clamp(p.InitialControlRods, MinControlRods, MaxControlRods),
		Temperature:   max(p.MinTemperature, p.InitialTemperature),
		Coolant:       clamp(p.InitialCoolant, 0, MaxCoolant),
		Fuel:          clamp(p.InitialFuel, MinFuel, MaxFuel),
		ThermalPower:  InitialPower,
		Running:       true,
		TurbineOnline: true,
		SteamPressure: clamp((p.InitialTemperature-MinReactorTemp)/10, 0, MaxSteamPressure),
		ECCSCharges:   p.ECCSCharges,
		DieselFuel:    clamp(p.InitialDieselFuel, 0, MaxDieselFuel),
		Weather:       WeatherClear,
		GridDemand:    clamp(p.GridBase, p.GridMin, p.GridMax),
	}
}

// Halt stops the reactor without touching anything else. Used for meltdown.
func (c *Core) Halt() {
	c.state.Running = false
}

// CheckMeltdown reports whether the core is past the meltdown threshold.
func (c *Core) CheckMeltdown() bool {
	return c.state.Temperature > c.params.MeltdownTemp
}

// Auxiliary mutators. Each clamps to its own domain.

func (c *Core) SetTurbineOnline(online bool) {
	c.state.TurbineOnline = online
}

func (c *Core) SetTurbineRPM(rpm float64) {
	c.state.TurbineRPM = clamp(rpm, 0, c.params.TurbineMaxRPM)
}

func (c *Core) SetSteamPressure(p float64) {
	c.state.SteamPressure = clamp(p, 0, MaxSteamPressure)
}

func (c *Core) SetElectricity(mw float64) {
	c.state.Electricity = max(0, mw)
}

func (c *Core) SetXenon(x float64) {
	c.state.Xenon = clamp(x, 0, MaxXenon)
}

func (c *Core) SetECCS(cooldown, charges int) {
	c.state.ECCSCooldown = max(0, cooldown)
	c.state.ECCSCharges = max(0, charges)
}

// UpdateDieselFuel adds delta to the diesel tank, clamped to [0,100].
func (c *Core) UpdateDieselFuel(delta float64) {
	c.state.DieselFuel = clamp(c.state.DieselFuel+delta, 0, MaxDieselFuel)
}

func (c *Core) SetDieselRunning(running bool) {
	c.state.DieselRunning = running
}

func (c *Core) SetRadiation(r float64) {
	c.state.Radiation = clamp(r, 0, MaxRadiation)
}

func (c *Core) SetWeather(w Weather) {
	c.state.Weather = w
}

func (c *Core) SetGridDemand(mw float64) {
	c.state.GridDemand = clamp(mw, c.params.GridMin, c.params.GridMax)
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
