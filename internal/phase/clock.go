package phase

import "time"

type Phase string

const (
	Betting  Phase = "betting"
	Settling Phase = "settling"
)

const (
	DefaultRoundDuration = 60 * time.Second
	DefaultBettingWindow = 60 * time.Second
)

// Round is the logical round derived from wall-clock time. Its id space is
// unrelated to on-ledger round ids.
type Round struct {
	ID              int64     `json:"id"`
	PhaseStart      time.Time `json:"phase_start"`
	BettingDeadline time.Time `json:"betting_deadline"`
	RoundEnd        time.Time `json:"round_end"`
	Phase           Phase     `json:"phase"`
}

// Clock slices wall-clock time into fixed rounds whose first BettingWindow is
// the betting phase.
type Clock struct {
	RoundDuration time.Duration
	BettingWindow time.Duration
}

func NewClock(roundDuration, bettingWindow time.Duration) Clock {
	return Clock{RoundDuration: roundDuration, BettingWindow: bettingWindow}
}

func (c Clock) normalized() Clock {
	// At divides by whole milliseconds.
	if c.RoundDuration < time.Millisecond {
		c.RoundDuration = DefaultRoundDuration
	}
	c.RoundDuration = c.RoundDuration.Truncate(time.Millisecond)
	if c.BettingWindow < time.Millisecond {
		c.BettingWindow = DefaultBettingWindow
	}
	if c.BettingWindow > c.RoundDuration {
		c.BettingWindow = c.RoundDuration
	}
	return c
}

func (c Clock) At(now time.Time) Round {
	c = c.normalized()
	dur := c.RoundDuration.Milliseconds()
	ms := now.UnixMilli()
	slot := floorDiv(ms, dur)
	start := time.UnixMilli(slot * dur)
	r := Round{
		ID:              slot,
		PhaseStart:      start,
		BettingDeadline: start.Add(c.BettingWindow),
		RoundEnd:        start.Add(c.RoundDuration),
		Phase:           Settling,
	}
	if now.Before(r.BettingDeadline) {
		r.Phase = Betting
	}
	return r
}

// TimeLeft is the time until the end of the current phase.
func (c Clock) TimeLeft(now time.Time) time.Duration {
	r := c.At(now)
	if r.Phase == Betting {
		return r.BettingDeadline.Sub(now)
	}
	return r.RoundEnd.Sub(now)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
