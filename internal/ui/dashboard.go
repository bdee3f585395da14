// Package ui renders the operator console: the per-turn dashboard, the
// help screen, the event history and the end-of-session summary.
package ui

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/reactorsim/internal/domain/reactor"
	"github.com/MRamiBalles/reactorsim/internal/engine"
	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/config"
)

const (
	panelWidth = 64
	barWidth   = 20
)

// Console holds the styles for one output stream. Colour is picked up from
// the writer, so piping the console to a file yields plain text.
type Console struct {
	title  lipgloss.Style
	label  lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	danger lipgloss.Style
	dim    lipgloss.Style
	panel  lipgloss.Style
}

// NewConsole builds the styles for w.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		label:  r.NewStyle().Foreground(lipgloss.Color("2")).Width(14),
		ok:     r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("11")),
		danger: r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		dim:    r.NewStyle().Foreground(lipgloss.Color("22")),
		panel: r.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("2")).
			Padding(0, 1).
			Width(panelWidth),
	}
}

// View is what the dashboard needs beyond the turn report.
type View struct {
	Params     reactor.Params
	Subsystems engine.Subsystems
	HighScore  int64
	HasHigh    bool
}

// Dashboard renders one turn.
func (c *Console) Dashboard(r engine.TurnReport, v View) string {
	p := v.Params
	s := r.State

	header := c.title.Render("REACTOR CONTROL") + "  " +
		c.dim.Render(fmt.Sprintf("%s | turn %d | day %d %02d:00", p.Name, r.Turn, r.Day, r.Hour)) +
		"  " + c.mode(r.Mode)

	var core strings.Builder
	c.row(&core, "Neutrons", humanize.SIWithDigits(s.Neutrons, 2, "n"))
	c.row(&core, "k-eff", fmt.Sprintf("%.3f", r.Physics.KEff))
	c.row(&core, "Control rods", fmt.Sprintf("%s %3.0f%%", Bar(s.ControlRods, barWidth), s.ControlRods*100))
	c.row(&core, "Temperature", c.level(s.Temperature, 0.8*p.ScramTemp, p.ScramTemp,
		fmt.Sprintf("%s %7.1f°C", Bar(s.Temperature/p.MeltdownTemp, barWidth), s.Temperature)))
	c.row(&core, "Coolant", c.levelLow(s.Coolant, 2*p.CriticalCoolant, p.CriticalCoolant,
		fmt.Sprintf("%s %5.1f%%", Bar(s.Coolant/100, barWidth), s.Coolant)))
	c.row(&core, "Fuel", fmt.Sprintf("%s %5.1f%%", Bar(s.Fuel/100, barWidth), s.Fuel))
	c.row(&core, "Thermal power", humanize.FormatFloat("#,###.#", s.ThermalPower)+" MW")
	c.row(&core, "Electricity", humanize.FormatFloat("#,###.#", s.Electricity)+" MW")

	blocks := []string{header, c.panel.Render(strings.TrimRight(core.String(), "\n"))}

	if aux := c.auxiliary(r, v); aux != "" {
		blocks = append(blocks, c.panel.Render(aux))
	}
	if msgs := c.messages(r); msgs != "" {
		blocks = append(blocks, msgs)
	}

	score := fmt.Sprintf("Score %s (%+d)", humanize.Comma(r.Score), r.ScoreDelta)
	if v.HasHigh {
		score += c.dim.Render("  best " + humanize.Comma(v.HighScore))
	}
	blocks = append(blocks, c.title.Render(score))
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func (c *Console) auxiliary(r engine.TurnReport, v View) string {
	p := v.Params
	s := r.State
	var b strings.Builder

	if v.Subsystems.Has(engine.SubsystemTurbine) {
		status := c.dim.Render("offline")
		if s.TurbineOnline {
			status = c.ok.Render("online")
		}
		c.row(&b, "Turbine", fmt.Sprintf("%s %s RPM, steam %.0f%%", status, humanize.FormatFloat("#,###.", s.TurbineRPM), s.SteamPressure))
	}
	if v.Subsystems.Has(engine.SubsystemXenon) {
		c.row(&b, "Xenon", c.level(s.Xenon, p.XenonWarning, reactor.MaxXenon*0.9,
			fmt.Sprintf("%s %5.1f", Bar(s.Xenon/reactor.MaxXenon, barWidth), s.Xenon)))
	}
	if v.Subsystems.Has(engine.SubsystemECCS) {
		status := c.ok.Render("ready")
		if !s.ECCSReady() {
			status = c.warn.Render(fmt.Sprintf("cooldown %d", s.ECCSCooldown))
			if s.ECCSCharges == 0 {
				status = c.danger.Render("depleted")
			}
		}
		c.row(&b, "ECCS", fmt.Sprintf("%s, %d/%d charges", status, s.ECCSCharges, p.ECCSCharges))
	}
	if v.Subsystems.Has(engine.SubsystemDiesel) {
		status := "standby"
		if s.DieselRunning {
			status = "running"
		}
		c.row(&b, "Diesel", fmt.Sprintf("%s, tank %s %5.1f%%", status, Bar(s.DieselFuel/reactor.MaxDieselFuel, 10), s.DieselFuel))
	}
	if v.Subsystems.Has(engine.SubsystemRadiation) {
		c.row(&b, "Radiation", c.level(s.Radiation, p.RadiationWarning, p.RadiationCritical,
			fmt.Sprintf("%.1f mSv", s.Radiation)))
	}
	if v.Subsystems.Has(engine.SubsystemWeather) {
		c.row(&b, "Weather", s.Weather.String())
	}
	if v.Subsystems.Has(engine.SubsystemGrid) {
		sat := c.warn.Render(fmt.Sprintf("%3.0f%%", r.Satisfaction*100))
		if engine.Satisfied(r.Satisfaction) {
			sat = c.ok.Render(fmt.Sprintf("%3.0f%%", r.Satisfaction*100))
		}
		c.row(&b, "Grid demand", fmt.Sprintf("%.1f MW, satisfied %s", s.GridDemand, sat))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Console) messages(r engine.TurnReport) string {
	var lines []string
	if r.Meltdown {
		lines = append(lines, c.danger.Render("*** MELTDOWN *** type 'new' to start again"))
	} else if r.ScramTriggered {
		lines = append(lines, c.danger.Render("*** SCRAM *** reactor shut down, type 'reset' to restart"))
	}
	if r.Restarted {
		lines = append(lines, c.ok.Render("Reactor restarted"))
	}
	if r.Event != nil {
		style := c.warn
		if r.Event.Beneficial() {
			style = c.ok
		}
		lines = append(lines, style.Render("EVENT: "+r.Event.Message))
	}
	for _, w := range r.Warnings {
		lines = append(lines, c.warn.Render("WARNING: "+w.Message))
	}
	for _, a := range r.Achievements {
		lines = append(lines, c.title.Render("ACHIEVEMENT: "+a.Name+" - "+a.Description))
	}
	for _, n := range r.Notes {
		lines = append(lines, c.dim.Render(n))
	}
	return strings.Join(lines, "\n")
}

func (c *Console) row(b *strings.Builder, label, value string) {
	b.WriteString(c.label.Render(label))
	b.WriteString(value)
	b.WriteByte('\n')
}

func (c *Console) mode(m engine.SafetyMode) string {
	switch m {
	case engine.ModeScrammed:
		return c.warn.Render("[" + m.String() + "]")
	case engine.ModeMeltdown:
		return c.danger.Render("[" + m.String() + "]")
	}
	return c.ok.Render("[" + m.String() + "]")
}

// level colours s by how far v has climbed towards the warn and danger marks.
func (c *Console) level(v, warn, danger float64, s string) string {
	switch {
	case v >= danger:
		return c.danger.Render(s)
	case v >= warn:
		return c.warn.Render(s)
	}
	return s
}

// levelLow is level for quantities where low is bad.
func (c *Console) levelLow(v, warn, danger float64, s string) string {
	switch {
	case v < danger:
		return c.danger.Render(s)
	case v < warn:
		return c.warn.Render(s)
	}
	return s
}

// Bar draws a fixed-width gauge for frac in [0,1]; values outside are clamped.
func Bar(frac float64, width int) string {
	if math.IsNaN(frac) || frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(math.Round(frac * float64(width)))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// Help lists the operator commands.
func (c *Console) Help(subs engine.Subsystems) string {
	type entry struct{ keys, what string }
	list := []entry{
		{"0-100", "set control rod insertion (percent)"},
		{"enter / w", "wait one turn"},
		{"r", "refill coolant"},
	}
	if subs.Has(engine.SubsystemTurbine) {
		list = append(list, entry{"t", "toggle turbine"})
	}
	if subs.Has(engine.SubsystemECCS) {
		list = append(list, entry{"e", "fire emergency core cooling"})
	}
	if subs.Has(engine.SubsystemDiesel) {
		list = append(list, entry{"d", "toggle diesel generator"}, entry{"f", "refill diesel tank"})
	}
	list = append(list,
		entry{"reset", "restart after a SCRAM"},
		entry{"new", "start a new game"},
		entry{"s / l", "save / load"},
		entry{"history", "show recent events"},
		entry{"h", "this help"},
		entry{"q", "quit"},
	)

	var b strings.Builder
	b.WriteString(c.title.Render("COMMANDS") + "\n")
	for _, e := range list {
		b.WriteString(c.label.Render(e.keys) + e.what + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// History renders the last n operator-relevant events, skipping the
// per-turn state records.
func (c *Console) History(log []events.TurnEvent, n int) string {
	var picked []events.TurnEvent
	for i := len(log) - 1; i >= 0 && len(picked) < n; i-- {
		if log[i].Type == events.EventTypeTurnAdvanced {
			continue
		}
		picked = append(picked, log[i])
	}
	if len(picked) == 0 {
		return c.dim.Render("No events yet")
	}

	var b strings.Builder
	b.WriteString(c.title.Render("RECENT EVENTS") + "\n")
	for i := len(picked) - 1; i >= 0; i-- {
		e := picked[i]
		b.WriteString(fmt.Sprintf("%s %-22s %s\n",
			c.dim.Render(fmt.Sprintf("t%-4d", e.Turn)), string(e.Type), describe(e)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func describe(e events.TurnEvent) string {
	switch e.Type {
	case events.EventTypeRodsSet:
		return fmt.Sprintf("%.0f%% -> %.0f%%", e.Float("from")*100, e.Float("to")*100)
	case events.EventTypeRandomEvent:
		return e.Text("kind")
	case events.EventTypeWarning:
		return e.Text("message")
	case events.EventTypeAchievementUnlocked:
		return e.Text("name")
	case events.EventTypeWeatherChanged:
		return e.Text("from") + " -> " + e.Text("to")
	case events.EventTypeScram, events.EventTypeMeltdown:
		return fmt.Sprintf("%.0f°C", e.Float("temperature"))
	case events.EventTypeSessionStarted:
		return e.Text("difficulty")
	}
	return ""
}

// Summary renders the end-of-session report and the next-tier suggestion.
func (c *Console) Summary(s config.Summary, score int64, newRecord bool, rec config.Recommendation) string {
	var b strings.Builder
	b.WriteString(c.title.Render("SESSION SUMMARY") + "\n")
	c.row(&b, "Difficulty", s.Difficulty)
	c.row(&b, "Turns", humanize.Comma(int64(s.Turns)))
	c.row(&b, "SCRAMs", humanize.Comma(int64(s.Scrams)))
	outcome := c.ok.Render("intact")
	if s.Meltdown {
		outcome = c.danger.Render("MELTDOWN")
	}
	c.row(&b, "Core", outcome)
	c.row(&b, "Grid served", fmt.Sprintf("%.0f%%", s.AvgSatisfaction*100))
	line := humanize.Comma(score)
	if newRecord {
		line += " " + c.title.Render("NEW HIGH SCORE")
	}
	c.row(&b, "Score", line)
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Next time try %s", c.title.Render(rec.Difficulty)))
	for _, n := range rec.Notes {
		b.WriteString("\n  " + c.dim.Render(n))
	}
	return b.String()
}

// Achievements lists every achievement with its unlock state.
func (c *Console) Achievements(unlocked []string) string {
	have := make(map[string]bool, len(unlocked))
	for _, id := range unlocked {
		have[id] = true
	}
	var b strings.Builder
	b.WriteString(c.title.Render(fmt.Sprintf("ACHIEVEMENTS %d/%d", len(have), len(engine.Achievements))) + "\n")
	for _, a := range engine.Achievements {
		mark := c.dim.Render("[ ]")
		if have[a.ID] {
			mark = c.ok.Render("[x]")
		}
		b.WriteString(mark + " " + a.Name + c.dim.Render(" - "+a.Description) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
