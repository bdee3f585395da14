package reactor

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewCoreStartsAtInitialValues(t *testing.T) {
	c := NewCore(Normal())
	s := c.Snapshot()

	if s.Neutrons != 1000 || s.ControlRods != 0.5 || s.Temperature != 300 {
		t.Errorf("Unexpected initial primary state: %+v", s)
	}
	if s.Coolant != 100 || s.Fuel != 100 || s.ThermalPower != 0 {
		t.Errorf("Unexpected initial inventory: %+v", s)
	}
	if !s.Running {
		t.Errorf("Expected a fresh core to be running")
	}
	if s.ECCSCharges != 3 || !s.ECCSReady() {
		t.Errorf("Expected ECCS ready with 3 charges, got cooldown=%d charges=%d", s.ECCSCooldown, s.ECCSCharges)
	}
}

func TestSetControlRodsClamps(t *testing.T) {
	c := NewCore(Normal())

	cases := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{7, 1},
	}
	for _, tc := range cases {
		c.SetControlRods(tc.in)
		if got := c.ControlRods(); got != tc.want {
			t.Errorf("SetControlRods(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestCoolantAndFuelBounds(t *testing.T) {
	c := NewCore(Normal())

	c.UpdateCoolant(50)
	if c.Coolant() != 100 {
		t.Errorf("Expected coolant capped at 100, got %v", c.Coolant())
	}
	c.UpdateCoolant(-250)
	if c.Coolant() != 0 {
		t.Errorf("Expected coolant floored at 0, got %v", c.Coolant())
	}
	c.RefillCoolant()
	if c.Coolant() != 100 {
		t.Errorf("Expected refill to 100, got %v", c.Coolant())
	}

	c.ConsumeFuel(30)
	if c.Fuel() != 70 {
		t.Errorf("Expected fuel 70, got %v", c.Fuel())
	}
	c.ConsumeFuel(500)
	if c.Fuel() != 0 {
		t.Errorf("Expected fuel floored at 0, got %v", c.Fuel())
	}

	c = NewCore(Normal())
	c.ConsumeFuel(-5)
	if c.Fuel() != 100 {
		t.Errorf("Expected a negative burn to leave fuel at 100, got %v", c.Fuel())
	}
}

func TestUpdateTemperatureFloor(t *testing.T) {
	c := NewCore(Normal())
	c.UpdateTemperature(-10000)
	if c.Temperature() != MinReactorTemp {
		t.Errorf("Expected temperature floored at %v, got %v", MinReactorTemp, c.Temperature())
	}
}

func TestUpdateNeutronsIsMultiplicative(t *testing.T) {
	c := NewCore(Normal())
	c.UpdateNeutrons(0.7)
	c.UpdateNeutrons(0.5)
	if !approx(c.Neutrons(), 350) {
		t.Errorf("Expected 1000*0.7*0.5 = 350, got %v", c.Neutrons())
	}
	c.UpdateNeutrons(-3)
	if c.Neutrons() != 0 {
		t.Errorf("Expected population floored at 0, got %v", c.Neutrons())
	}
}

func TestScram(t *testing.T) {
	c := NewCore(Normal())
	c.SetControlRods(0)
	c.UpdateTemperature(900) // 1200
	before := c.Neutrons()

	c.Scram()

	if c.IsRunning() {
		t.Errorf("Expected reactor halted after SCRAM")
	}
	if c.ControlRods() != 1.0 {
		t.Errorf("Expected rods fully inserted, got %v", c.ControlRods())
	}
	if c.Neutrons() > before*0.05+1e-9 {
		t.Errorf("Expected neutrons <= 5%% of %v, got %v", before, c.Neutrons())
	}
	if c.Temperature() != 1000 {
		t.Errorf("Expected 1200-200 = 1000, got %v", c.Temperature())
	}
}

func TestRestartKeepsRodsInserted(t *testing.T) {
	c := NewCore(Normal())
	c.SetControlRods(0.1)
	c.UpdateCoolant(-40)
	c.UpdateTemperature(1000)
	c.Scram()

	c.Restart()

	if !c.IsRunning() {
		t.Errorf("Expected running after restart")
	}
	if c.ControlRods() != 1.0 {
		t.Errorf("Expected rods at 1.0 after restart, got %v", c.ControlRods())
	}
	if c.Temperature() != InitialTemperature {
		t.Errorf("Expected temperature reset to %v, got %v", InitialTemperature, c.Temperature())
	}
	if c.Coolant() != 60 {
		t.Errorf("Expected coolant untouched by restart, got %v", c.Coolant())
	}
}

func TestResetIsIdempotent(t *testing.T) {
	c := NewCore(Hard())
	c.SetControlRods(0)
	c.UpdateTemperature(400)
	c.ConsumeFuel(12)
	c.SetXenon(40)
	c.Scram()

	c.Reset()
	first := c.Snapshot()
	c.Reset()
	second := c.Snapshot()

	if first != second {
		t.Errorf("Expected identical state after consecutive resets:\n%+v\n%+v", first, second)
	}
	if first != NewCore(Hard()).Snapshot() {
		t.Errorf("Expected reset to match a fresh core")
	}
}

func TestCheckMeltdown(t *testing.T) {
	c := NewCore(Normal())
	c.UpdateTemperature(MeltdownTemp - c.Temperature())
	if c.CheckMeltdown() {
		t.Errorf("Expected no meltdown at exactly the threshold")
	}
	c.UpdateTemperature(0.1)
	if !c.CheckMeltdown() {
		t.Errorf("Expected meltdown above the threshold")
	}
}

func TestRestoreReappliesClamps(t *testing.T) {
	c := NewCore(Normal())
	c.Restore(State{
		Neutrons:    -5,
		ControlRods: 3,
		Temperature: 20,
		Coolant:     140,
		Fuel:        -1,
		Xenon:       500,
		DieselFuel:  101,
		Radiation:   -2,
		GridDemand:  9999,
		Running:     true,
	})
	s := c.Snapshot()
	if s.Neutrons != 0 || s.ControlRods != 1 || s.Temperature != MinReactorTemp {
		t.Errorf("Expected primary fields clamped, got %+v", s)
	}
	if s.Coolant != 100 || s.Fuel != 0 || s.Xenon != MaxXenon || s.DieselFuel != 100 || s.Radiation != 0 {
		t.Errorf("Expected auxiliary fields clamped, got %+v", s)
	}
	if s.GridDemand != Normal().GridMax {
		t.Errorf("Expected grid demand clamped to %v, got %v", Normal().GridMax, s.GridDemand)
	}
}

func TestPresetByName(t *testing.T) {
	for _, name := range []string{"easy", "NORMAL", " hard ", ""} {
		p, err := PresetByName(name)
		if err != nil {
			t.Fatalf("PresetByName(%q): %v", name, err)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("Preset %q does not validate: %v", p.Name, err)
		}
	}
	if _, err := PresetByName("nightmare"); err == nil {
		t.Errorf("Expected error for unknown difficulty")
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	p := Normal()
	p.MeltdownTemp = p.ScramTemp
	if err := p.Validate(); err == nil {
		t.Errorf("Expected meltdown <= scram to be rejected")
	}

	negatives := map[string]func(*Params){
		"fuel_depletion_rate": func(p *Params) { p.FuelDepletionRate = -5 },
		"coolant_loss_rate":   func(p *Params) { p.CoolantLossRate = -1 },
		"passive_cooling":     func(p *Params) { p.PassiveCooling = -0.5 },
		"scram_penalty":       func(p *Params) { p.ScramPenalty = -100 },
		"radiation_penalty":   func(p *Params) { p.RadiationPenalty = -1 },
		"eccs_charges":        func(p *Params) { p.ECCSCharges = -1 },
	}
	for name, mutate := range negatives {
		p := Normal()
		mutate(&p)
		if err := p.Validate(); err == nil {
			t.Errorf("Expected negative %s to be rejected", name)
		}
	}
	for _, name := range PresetNames() {
		p, _ := PresetByName(name)
		if err := p.Validate(); err != nil {
			t.Errorf("Expected preset %s to validate, got %v", name, err)
		}
	}
}

func TestParseWeather(t *testing.T) {
	for w := WeatherClear; w <= WeatherCold; w++ {
		got, err := ParseWeather(w.String())
		if err != nil || got != w {
			t.Errorf("ParseWeather(%q) = %v, %v", w.String(), got, err)
		}
	}
	if _, err := ParseWeather("fog"); err == nil {
		t.Errorf("Expected unknown weather to fail")
	}
}
