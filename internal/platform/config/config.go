// Package config resolves runtime settings and the difficulty parameter set.
//
// Sources are applied in order, later ones winning: built-in defaults, an
// optional CUE file, a .env file, REACTOR_* environment variables and
// finally command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
)

// Settings are the runtime knobs of one process.
type Settings struct {
	Difficulty    string `json:"difficulty"`
	Seed          uint64 `json:"seed"` // 0 picks a time-based seed at startup
	Subsystems    string `json:"subsystems"`
	Storage       string `json:"storage"`
	StorageDSN    string `json:"storage_dsn"`
	SavePath      string `json:"save_path"`
	TelemetryAddr string `json:"telemetry_addr"` // empty disables telemetry
	LogLevel      string `json:"log_level"`
	LogFile       string `json:"log_file"`
	LogJournal    bool   `json:"log_journal"`
}

// Config is the fully resolved configuration.
type Config struct {
	Settings Settings
	Params   reactor.Params

	// Path of the CUE file that was applied, if any.
	File string

	// Args are the positional arguments left after the flags.
	Args []string
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Settings {
	return Settings{
		Difficulty: "normal",
		Subsystems: "all",
		Storage:    "sqlite",
		StorageDSN: "reactor.db",
		SavePath:   "reactor.sav",
		LogLevel:   "info",
	}
}

// schema closes the accepted file layout. Unknown settings keys are
// rejected here; unknown parameter keys are rejected when decoding.
const schema = `
#Settings: {
	difficulty?:     string
	seed?:           int & >=0
	subsystems?:     string
	storage?:        "memory" | "sqlite" | "postgres"
	storage_dsn?:    string
	save_path?:      string
	telemetry_addr?: string
	log_level?:      "debug" | "info" | "warn" | "error"
	log_file?:       string
	log_journal?:    bool
}
settings?: #Settings
difficulty?: [string]: number
`

// Load resolves the configuration for a binary. args are the command-line
// arguments without the program name.
func Load(name string, args []string) (*Config, error) {
	s := Defaults()

	fl := s
	var envFile, cueFile string
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&envFile, "env", ".env", "dotenv file to load if present")
	fs.StringVar(&cueFile, "config", "", "CUE configuration file")
	fs.StringVar(&fl.Difficulty, "difficulty", fl.Difficulty, "difficulty tier: "+strings.Join(reactor.PresetNames(), ", "))
	fs.Uint64Var(&fl.Seed, "seed", fl.Seed, "random seed (0 = time based)")
	fs.StringVar(&fl.Subsystems, "subsystems", fl.Subsystems, "enabled subsystems: all, none or a comma list")
	fs.StringVar(&fl.Storage, "storage", fl.Storage, "storage backend: memory, sqlite or postgres")
	fs.StringVar(&fl.StorageDSN, "dsn", fl.StorageDSN, "storage DSN (sqlite path or postgres URL)")
	fs.StringVar(&fl.SavePath, "save", fl.SavePath, "save file path")
	fs.StringVar(&fl.TelemetryAddr, "telemetry", fl.TelemetryAddr, "telemetry listen address, e.g. :8080")
	fs.StringVar(&fl.LogLevel, "log-level", fl.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&fl.LogFile, "log-file", fl.LogFile, "JSON log file")
	fs.BoolVar(&fl.LogJournal, "log-journal", fl.LogJournal, "also log to the systemd journal")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if cueFile == "" {
		cueFile = os.Getenv("REACTOR_CONFIG")
	}

	var overlay []byte
	if cueFile != "" {
		var err error
		overlay, err = applyFile(cueFile, &s)
		if err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&s); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "difficulty":
			s.Difficulty = fl.Difficulty
		case "seed":
			s.Seed = fl.Seed
		case "subsystems":
			s.Subsystems = fl.Subsystems
		case "storage":
			s.Storage = fl.Storage
		case "dsn":
			s.StorageDSN = fl.StorageDSN
		case "save":
			s.SavePath = fl.SavePath
		case "telemetry":
			s.TelemetryAddr = fl.TelemetryAddr
		case "log-level":
			s.LogLevel = fl.LogLevel
		case "log-file":
			s.LogFile = fl.LogFile
		case "log-journal":
			s.LogJournal = fl.LogJournal
		}
	})

	params, err := ResolveParams(s.Difficulty, overlay)
	if err != nil {
		return nil, err
	}

	return &Config{Settings: s, Params: params, File: cueFile, Args: fs.Args()}, nil
}

// ResolveParams picks a preset and applies a JSON overlay of Params fields.
// An overlaid preset is renamed so its high scores are kept apart.
func ResolveParams(difficulty string, overlay []byte) (reactor.Params, error) {
	p, err := reactor.PresetByName(difficulty)
	if err != nil {
		return reactor.Params{}, err
	}
	if len(overlay) > 0 {
		name := p.Name
		dec := json.NewDecoder(strings.NewReader(string(overlay)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return reactor.Params{}, fmt.Errorf("difficulty overlay: %w", err)
		}
		p.Name = name + "-custom"
	}
	if err := p.Validate(); err != nil {
		return reactor.Params{}, fmt.Errorf("difficulty %s: %w", p.Name, err)
	}
	return p, nil
}

// applyFile validates a CUE file against the schema, merges its settings
// into s and returns the difficulty overlay as JSON.
func applyFile(path string, s *Settings) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	ctx := cuecontext.New()
	sch := ctx.CompileString("close({" + schema + "})")
	if err := sch.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	value := ctx.CompileBytes(content, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := sch.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	if v := value.LookupPath(cue.ParsePath("settings")); v.Exists() {
		data, err := v.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("settings in %s: %w", path, err)
		}
		if err := json.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("settings in %s: %w", path, err)
		}
	}

	v := value.LookupPath(cue.ParsePath("difficulty"))
	if !v.Exists() {
		return nil, nil
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("difficulty in %s: %w", path, err)
	}
	return data, nil
}

func applyEnv(s *Settings) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("REACTOR_DIFFICULTY", &s.Difficulty)
	str("REACTOR_SUBSYSTEMS", &s.Subsystems)
	str("REACTOR_STORAGE", &s.Storage)
	if s.Storage == "postgres" {
		str("DATABASE_URL", &s.StorageDSN)
	}
	str("REACTOR_STORAGE_DSN", &s.StorageDSN)
	str("REACTOR_SAVE_PATH", &s.SavePath)
	str("REACTOR_TELEMETRY_ADDR", &s.TelemetryAddr)
	str("REACTOR_LOG_LEVEL", &s.LogLevel)
	str("REACTOR_LOG_FILE", &s.LogFile)

	if v := strings.TrimSpace(os.Getenv("REACTOR_SEED")); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("REACTOR_SEED: %w", err)
		}
		s.Seed = seed
	}
	if v := strings.TrimSpace(os.Getenv("REACTOR_LOG_JOURNAL")); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REACTOR_LOG_JOURNAL: %w", err)
		}
		s.LogJournal = on
	}
	return nil
}
