package engine

import (
	"math"
	"strconv"
	"strings"
)

// CommandKind identifies an operator command.
type CommandKind uint8

const (
	// CmdWait advances a turn without touching anything. Blank and
	// unparseable input both map here, leaving the rods where they were.
	CmdWait CommandKind = iota
	CmdSetRods
	CmdRefillCoolant
	CmdToggleTurbine
	CmdActivateECCS
	CmdToggleDiesel
	CmdRefillDiesel
	CmdReset
	CmdNewGame

	// Console-only commands. The engine rejects these with ErrNotEngineCommand.
	CmdQuit
	CmdSave
	CmdLoad
	CmdHelp
	CmdHistory
)

var commandNames = map[CommandKind]string{
	CmdWait:          "wait",
	CmdSetRods:       "rods",
	CmdRefillCoolant: "refill-coolant",
	CmdToggleTurbine: "toggle-turbine",
	CmdActivateECCS:  "eccs",
	CmdToggleDiesel:  "toggle-diesel",
	CmdRefillDiesel:  "refill-diesel",
	CmdReset:         "reset",
	CmdNewGame:       "new",
	CmdQuit:          "quit",
	CmdSave:          "save",
	CmdLoad:          "load",
	CmdHelp:          "help",
	CmdHistory:       "history",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command is one parsed line of operator input.
type Command struct {
	Kind CommandKind
	Rods float64 // insertion in [0,1], only for CmdSetRods

	// Rejected holds the raw input when it looked like a rod setting but
	// was not a valid one. The command is still a CmdWait.
	Rejected string
}

// ConsoleOnly reports whether the command is handled outside the engine.
func (c Command) ConsoleOnly() bool {
	return c.Kind >= CmdQuit
}

// ParseCommand maps a line of operator input to a command. It never fails:
// anything unrecognised becomes a CmdWait that keeps the current rods.
func ParseCommand(input string) Command {
	in := strings.ToLower(strings.TrimSpace(input))
	switch in {
	case "":
		return Command{Kind: CmdWait}
	case "r":
		return Command{Kind: CmdRefillCoolant}
	case "q", "quit", "exit":
		return Command{Kind: CmdQuit}
	case "t":
		return Command{Kind: CmdToggleTurbine}
	case "e":
		return Command{Kind: CmdActivateECCS}
	case "d":
		return Command{Kind: CmdToggleDiesel}
	case "f":
		return Command{Kind: CmdRefillDiesel}
	case "reset":
		return Command{Kind: CmdReset}
	case "new":
		return Command{Kind: CmdNewGame}
	case "s", "save":
		return Command{Kind: CmdSave}
	case "l", "load":
		return Command{Kind: CmdLoad}
	case "h", "help", "?":
		return Command{Kind: CmdHelp}
	case "history":
		return Command{Kind: CmdHistory}
	case "w", "wait":
		return Command{Kind: CmdWait}
	}

	if rods, ok := ParseRodSetting(in); ok {
		return Command{Kind: CmdSetRods, Rods: rods}
	}
	return Command{Kind: CmdWait, Rejected: input}
}

// ParseRodSetting parses a rod percentage (0-100, optional '%') into an
// insertion fraction. Out-of-range or non-numeric input returns ok=false
// and the caller keeps the previous setting.
func ParseRodSetting(input string) (float64, bool) {
	s := strings.TrimSuffix(strings.TrimSpace(input), "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > 100 {
		return 0, false
	}
	return v / 100, true
}
