package engine

// Turn clock: each turn is one in-game hour.
const (
	StartDay     = 1
	StartHour    = 6 // sessions begin at 06:00
	HoursPerDay  = 24
	HoursPerTurn = 1
)

// Clock tracks turn progression. It does NOT know about the reactor -
// only time.
type Clock struct {
	turn int
	day  int
	hour int
}

// NewClock creates a clock at the start of day one.
func NewClock() *Clock {
	return &Clock{day: StartDay, hour: StartHour}
}

// Advance moves the clock forward by one turn.
func (c *Clock) Advance() {
	c.turn++
	c.hour += HoursPerTurn

	if c.hour >= HoursPerDay {
		c.hour -= HoursPerDay
		c.day++
	}
}

// Turn is the number of completed turns.
func (c *Clock) Turn() int { return c.turn }

// Day is the in-game day, starting at 1.
func (c *Clock) Day() int { return c.day }

// Hour is the in-game hour of day, 0-23.
func (c *Clock) Hour() int { return c.hour }

// SetTime allows loading a saved session to set the clock directly.
func (c *Clock) SetTime(turn, day, hour int) {
	c.turn = max(0, turn)
	c.day = max(StartDay, day)
	c.hour = ((hour % HoursPerDay) + HoursPerDay) % HoursPerDay
}

// Reset puts the clock back to the start of day one.
func (c *Clock) Reset() {
	*c = *NewClock()
}
