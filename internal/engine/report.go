package engine

import (
	"fmt"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
)

// SafetyMode is the safety state machine position.
type SafetyMode uint8

const (
	ModeRunning SafetyMode = iota
	ModeScrammed
	ModeMeltdown
)

func (m SafetyMode) String() string {
	switch m {
	case ModeRunning:
		return "RUNNING"
	case ModeScrammed:
		return "SCRAMMED"
	case ModeMeltdown:
		return "MELTDOWN"
	}
	return fmt.Sprintf("SafetyMode(%d)", m)
}

func (m SafetyMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *SafetyMode) UnmarshalText(text []byte) error {
	parsed, err := ParseSafetyMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseSafetyMode is the inverse of String.
func ParseSafetyMode(s string) (SafetyMode, error) {
	for m := ModeRunning; m <= ModeMeltdown; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return ModeRunning, fmt.Errorf("unknown safety mode %q", s)
}

// Warning codes raised by the pipeline.
const (
	WarnLowCoolant        = "low_coolant"
	WarnXenon             = "xenon"
	WarnTurbineTrip       = "turbine_trip"
	WarnDieselEmpty       = "diesel_empty"
	WarnBlackout          = "blackout"
	WarnRadiation         = "radiation"
	WarnRadiationCritical = "radiation_critical"
	WarnPersistence       = "persistence"
)

// Warning is a non-fatal condition raised during a turn.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PhysicsStatus is what the primary physics step reports.
type PhysicsStatus struct {
	KEff              float64 `json:"k_eff"`
	FuelEfficiency    float64 `json:"fuel_efficiency"`
	LowCoolantWarning bool    `json:"low_coolant_warning"`
	ScramCondition    bool    `json:"scram_condition"`
}

// TurnReport is everything the console needs to render one turn.
type TurnReport struct {
	Turn int `json:"turn"`
	Day  int `json:"day"`
	Hour int `json:"hour"`

	State reactor.State `json:"state"`
	Mode  SafetyMode    `json:"mode"`

	Physics        PhysicsStatus `json:"physics"`
	ScramTriggered bool          `json:"scram_triggered"`
	Meltdown       bool          `json:"meltdown"`
	Restarted      bool          `json:"restarted,omitempty"`

	Warnings       []Warning     `json:"warnings,omitempty"`
	Event          *RandomEvent  `json:"event,omitempty"`
	WeatherChanged bool          `json:"weather_changed,omitempty"`
	Satisfaction   float64       `json:"satisfaction"`
	ScoreDelta     int64         `json:"score_delta"`
	Score          int64         `json:"score"`
	Achievements   []Achievement `json:"achievements,omitempty"`
	Command        string        `json:"command,omitempty"`
	Notes          []string      `json:"notes,omitempty"`
}

// LowCoolantWarning mirrors the physics flag for callers that only look at the report.
func (r TurnReport) LowCoolantWarning() bool {
	return r.Physics.LowCoolantWarning
}

func (r *TurnReport) warn(code, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

// HasWarning reports whether a warning with the given code was raised.
func (r TurnReport) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
