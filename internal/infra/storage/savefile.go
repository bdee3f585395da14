package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/engine"
)

// Save files are one line of whitespace separated fields behind a
// versioned header. Older versions are rejected, not migrated.
const (
	saveMagic   = "REACTORSAVE"
	saveVersion = "2"
)

// DefaultSaveSlot is the store slot the console mirrors its save file into.
const DefaultSaveSlot = "latest"

// ErrBadSave is wrapped by every decoding failure.
var ErrBadSave = errors.New("storage: malformed save")

// EncodeSave serialises a session.
func EncodeSave(s engine.Session) (string, error) {
	for name, v := range map[string]string{"id": s.ID, "difficulty": s.Difficulty} {
		if v == "" || strings.ContainsAny(v, " \t\r\n") {
			return "", fmt.Errorf("save field %s %q must be a single non-empty token", name, v)
		}
	}

	rng := "-"
	if len(s.RNGState) > 0 {
		rng = hex.EncodeToString(s.RNGState)
	}
	st := s.State
	fields := []string{
		saveMagic, saveVersion,
		s.ID,
		s.Difficulty,
		strconv.FormatUint(s.Seed, 10),
		rng,
		subsystemsToken(s.Subsystems),
		strconv.Itoa(s.Turn),
		strconv.Itoa(s.Day),
		strconv.Itoa(s.Hour),
		strconv.FormatInt(s.Score, 10),
		s.Mode.String(),
		boolToken(s.PendingLeak),
		strconv.Itoa(s.Tally.RunningTurns),
		floatToken(s.Tally.SatisfactionSum),
		strconv.Itoa(s.Tally.Scrams),

		floatToken(st.Neutrons),
		floatToken(st.ControlRods),
		floatToken(st.Temperature),
		floatToken(st.Coolant),
		floatToken(st.Fuel),
		floatToken(st.ThermalPower),
		boolToken(st.Running),
		boolToken(st.TurbineOnline),
		floatToken(st.TurbineRPM),
		floatToken(st.SteamPressure),
		floatToken(st.Electricity),
		floatToken(st.Xenon),
		strconv.Itoa(st.ECCSCooldown),
		strconv.Itoa(st.ECCSCharges),
		floatToken(st.DieselFuel),
		boolToken(st.DieselRunning),
		floatToken(st.Radiation),
		st.Weather.String(),
		floatToken(st.GridDemand),
	}
	return strings.Join(fields, " ") + "\n", nil
}

// DecodeSave parses what EncodeSave wrote.
func DecodeSave(data string) (engine.Session, error) {
	d := &saveDecoder{tokens: strings.Fields(data)}
	var s engine.Session

	if d.next() != saveMagic {
		return s, fmt.Errorf("%w: missing %s header", ErrBadSave, saveMagic)
	}
	if v := d.next(); v != saveVersion {
		return s, fmt.Errorf("%w: unsupported version %q", ErrBadSave, v)
	}

	s.ID = d.next()
	s.Difficulty = d.next()
	s.Seed = d.uint64()
	if rng := d.next(); rng != "-" && d.err == nil {
		b, err := hex.DecodeString(rng)
		if err != nil {
			d.fail("rng state: %v", err)
		}
		s.RNGState = b
	}
	s.Subsystems = d.subsystems()
	s.Turn = d.int()
	s.Day = d.int()
	s.Hour = d.int()
	s.Score = d.int64()
	s.Mode = d.mode()
	s.PendingLeak = d.bool()
	s.Tally.RunningTurns = d.int()
	s.Tally.SatisfactionSum = d.float()
	s.Tally.Scrams = d.int()

	st := &s.State
	st.Neutrons = d.float()
	st.ControlRods = d.float()
	st.Temperature = d.float()
	st.Coolant = d.float()
	st.Fuel = d.float()
	st.ThermalPower = d.float()
	st.Running = d.bool()
	st.TurbineOnline = d.bool()
	st.TurbineRPM = d.float()
	st.SteamPressure = d.float()
	st.Electricity = d.float()
	st.Xenon = d.float()
	st.ECCSCooldown = d.int()
	st.ECCSCharges = d.int()
	st.DieselFuel = d.float()
	st.DieselRunning = d.bool()
	st.Radiation = d.float()
	st.Weather = d.weather()
	st.GridDemand = d.float()

	if d.err == nil && d.pos != len(d.tokens) {
		d.fail("%d trailing fields", len(d.tokens)-d.pos)
	}
	if d.err != nil {
		return engine.Session{}, d.err
	}
	return s, nil
}

// SaveToFile writes the session atomically: a crash mid-write leaves the
// previous save intact.
func SaveToFile(path string, s engine.Session) error {
	data, err := EncodeSave(s)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create save directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".reactor-save-*")
	if err != nil {
		return fmt.Errorf("create temp save: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write save: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace save: %w", err)
	}
	return nil
}

// LoadFromFile reads a save. A missing file surfaces as os.ErrNotExist.
func LoadFromFile(path string) (engine.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Session{}, fmt.Errorf("read save: %w", err)
	}
	return DecodeSave(string(data))
}

func floatToken(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func boolToken(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// subsystemsToken writes the bitmask so the field never contains a comma
// list that a future name change could break.
func subsystemsToken(s engine.Subsystems) string {
	return strconv.FormatUint(uint64(s), 10)
}

type saveDecoder struct {
	tokens []string
	pos    int
	err    error
}

func (d *saveDecoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: field %d: %s", ErrBadSave, d.pos, fmt.Sprintf(format, args...))
	}
}

func (d *saveDecoder) next() string {
	if d.err != nil {
		return ""
	}
	if d.pos >= len(d.tokens) {
		d.fail("unexpected end of save")
		return ""
	}
	t := d.tokens[d.pos]
	d.pos++
	return t
}

func (d *saveDecoder) float() float64 {
	t := d.next()
	if d.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		d.fail("float %q", t)
	}
	return v
}

func (d *saveDecoder) int() int {
	return int(d.int64())
}

func (d *saveDecoder) int64() int64 {
	t := d.next()
	if d.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		d.fail("integer %q", t)
	}
	return v
}

func (d *saveDecoder) uint64() uint64 {
	t := d.next()
	if d.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(t, 10, 64)
	if err != nil {
		d.fail("unsigned %q", t)
	}
	return v
}

func (d *saveDecoder) bool() bool {
	switch t := d.next(); t {
	case "1":
		return true
	case "0", "":
		return false
	default:
		d.fail("bool %q", t)
		return false
	}
}

func (d *saveDecoder) subsystems() engine.Subsystems {
	v := d.uint64()
	if v&^uint64(engine.SubsystemsAll) != 0 {
		d.fail("unknown subsystem bits %d", v)
	}
	return engine.Subsystems(v)
}

func (d *saveDecoder) mode() engine.SafetyMode {
	t := d.next()
	if d.err != nil {
		return engine.ModeRunning
	}
	m, err := engine.ParseSafetyMode(t)
	if err != nil {
		d.fail("%v", err)
	}
	return m
}

func (d *saveDecoder) weather() reactor.Weather {
	t := d.next()
	if d.err != nil {
		return reactor.WeatherClear
	}
	w, err := reactor.ParseWeather(t)
	if err != nil {
		d.fail("%v", err)
	}
	return w
}
