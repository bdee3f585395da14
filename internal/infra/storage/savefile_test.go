package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
)

func newEngine(t *testing.T, el *events.EventLog) *engine.Engine {
	t.Helper()
	log, err := logger.New(logger.Options{Writer: io.Discard})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	e, err := engine.NewEngine(engine.Options{Params: reactor.Normal(), Seed: 7, Subsystems: engine.SubsystemsAll}, el, log)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func playedSession(t *testing.T) engine.Session {
	t.Helper()
	e := newEngine(t, nil)
	for _, in := range []string{"60", "", "t", "", "", "r", "45"} {
		if _, err := e.Apply(engine.ParseCommand(in)); err != nil {
			t.Fatalf("apply %q: %v", in, err)
		}
	}
	s, err := e.Session()
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	return s
}

func TestSaveRoundTrip(t *testing.T) {
	s := playedSession(t)
	data, err := EncodeSave(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(data, "REACTORSAVE 2 ") {
		t.Errorf("Expected versioned header, got %q", data[:20])
	}

	back, err := DecodeSave(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(s, back) {
		t.Errorf("Expected exact round trip\nwant %+v\ngot  %+v", s, back)
	}
}

func TestSaveFileResumesIdentically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves", "reactor.sav")
	e := newEngine(t, nil)
	e.Apply(engine.ParseCommand("55"))
	e.AdvanceTurn()

	s, _ := e.Session()
	if err := SaveToFile(path, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	resumed := newEngine(t, nil)
	if err := resumed.Restore(loaded); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if resumed.Summary() != e.Summary() {
		t.Errorf("Expected summary %+v after load, got %+v", e.Summary(), resumed.Summary())
	}
	for i := 0; i < 20; i++ {
		a, _ := e.AdvanceTurn()
		b, _ := resumed.AdvanceTurn()
		if !reflect.DeepEqual(a.State, b.State) {
			t.Fatalf("Turn %d diverged after load", a.Turn)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.sav"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

func TestDecodeRejectsBadSaves(t *testing.T) {
	good, err := EncodeSave(playedSession(t))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	fields := strings.Fields(good)

	replace := func(i int, v string) string {
		f := append([]string(nil), fields...)
		f[i] = v
		return strings.Join(f, " ")
	}

	cases := map[string]string{
		"empty":       "",
		"magic":       replace(0, "SAVE"),
		"version":     replace(1, "1"),
		"truncated":   strings.Join(fields[:len(fields)-1], " "),
		"trailing":    good + " extra",
		"bad float":   replace(16, "hot"),
		"bad tally":   replace(13, "1.5"),
		"bad sum":     replace(14, "lots"),
		"bad mode":    replace(11, "IDLE"),
		"bad bool":    replace(12, "yes"),
		"bad rng":     replace(5, "zz"),
		"bad weather": replace(len(fields)-2, "hail"),
		"bad bits":    replace(6, "99999"),
	}
	for name, data := range cases {
		if _, err := DecodeSave(data); !errors.Is(err, ErrBadSave) {
			t.Errorf("%s: expected ErrBadSave, got %v", name, err)
		}
	}
}

func TestEncodeRejectsSpacesInTokens(t *testing.T) {
	s := playedSession(t)
	s.Difficulty = "very hard"
	if _, err := EncodeSave(s); err == nil {
		t.Errorf("Expected an error for a difficulty with spaces")
	}
}

func TestFailedSaveKeepsPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactor.sav")
	s := playedSession(t)
	if err := SaveToFile(path, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	bad := s
	bad.ID = ""
	if err := SaveToFile(path, bad); err == nil {
		t.Fatalf("Expected save of an invalid session to fail")
	}
	back, err := LoadFromFile(path)
	if err != nil || back.ID != s.ID {
		t.Errorf("Expected the previous save to survive, got %+v (%v)", back.ID, err)
	}
}
