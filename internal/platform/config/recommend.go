package config

import (
	"fmt"
	"strings"
)

// Summary is what a finished session reports back for tuning.
type Summary struct {
	Difficulty      string
	Turns           int
	Scrams          int
	Meltdown        bool
	AvgSatisfaction float64 // mean grid satisfaction over running turns
}

// Recommendation suggests the tier for the next session.
type Recommendation struct {
	Difficulty string
	Change     int // -1 easier, 0 same, +1 harder
	Notes      []string
}

var tiers = []string{"easy", "normal", "hard"}

// Recommend examines a session summary and suggests the next difficulty.
func Recommend(s Summary) Recommendation {
	base := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s.Difficulty)), "-custom")
	if base == "" {
		base = "normal"
	}
	idx := 1
	for i, t := range tiers {
		if t == base {
			idx = i
		}
	}

	rec := Recommendation{Notes: make([]string, 0)}

	switch {
	case s.Meltdown:
		rec.Change = -1
		rec.Notes = append(rec.Notes, "Session ended in meltdown - drop a tier")
	case s.Turns > 0 && s.Scrams*25 > s.Turns:
		rec.Change = -1
		rec.Notes = append(rec.Notes, fmt.Sprintf("%d SCRAMs in %d turns - drop a tier", s.Scrams, s.Turns))
	case s.Turns >= 100 && s.Scrams == 0 && s.AvgSatisfaction >= 0.9:
		rec.Change = 1
		rec.Notes = append(rec.Notes, "100+ clean turns with the grid satisfied - try a harder tier")
	default:
		if s.Turns < 100 {
			rec.Notes = append(rec.Notes, "Not enough turns to judge - stay on this tier")
		}
	}

	next := idx + rec.Change
	if next < 0 || next >= len(tiers) {
		rec.Change = 0
		next = idx
		rec.Notes = append(rec.Notes, "Already at the "+tiers[idx]+" tier")
	}
	rec.Difficulty = tiers[next]
	return rec
}
