/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package show

// ClockState is a two-sided chess clock. Exactly one side burns time while
// RunningSide is set and the clock is not paused. LastSwitchTs is the last
// instant remaining time was settled.
type ClockState struct {
	TotalMs          int64  `json:"totalMs"`
	LeftRemainingMs  int64  `json:"leftRemainingMs"`
	RightRemainingMs int64  `json:"rightRemainingMs"`
	RunningSide      Side   `json:"runningSide"`
	LastSwitchTs     *int64 `json:"lastSwitchTs"`
	Paused           bool   `json:"paused"`
}

// Start puts totalMs on both sides and sets the left side running.
func (c *ClockState) Start(totalMs, now int64) {
	*c = ClockState{
		TotalMs:          totalMs,
		LeftRemainingMs:  totalMs,
		RightRemainingMs: totalMs,
		RunningSide:      SideLeft,
		LastSwitchTs:     ts(now),
	}
}

// Running reports whether a side is currently burning time.
func (c *ClockState) Running() bool {
	return c.RunningSide != SideNone && !c.Paused
}

// Settle moves the time elapsed since LastSwitchTs off the running side.
// It is a no-op when nothing runs, so calling it twice at the same instant
// changes nothing.
func (c *ClockState) Settle(now int64) {
	if !c.Running() || c.LastSwitchTs == nil {
		return
	}
	elapsed := now - *c.LastSwitchTs
	if elapsed < 0 {
		elapsed = 0
	}
	*c.remaining(c.RunningSide) -= elapsed
	c.LastSwitchTs = ts(now)
}

// Pause settles and freezes the clock. The running side is kept so Resume
// continues the same turn.
func (c *ClockState) Pause(now int64) {
	c.Settle(now)
	c.Paused = true
}

// Resume restarts the frozen clock from now.
func (c *ClockState) Resume(now int64) {
	c.Paused = false
	c.LastSwitchTs = ts(now)
}

// Switch hands the turn from side to the other side. It reports false and
// leaves the clock untouched when side is not the one running.
func (c *ClockState) Switch(side Side, now int64) bool {
	if side == SideNone || c.RunningSide != side {
		return false
	}
	c.Settle(now)
	c.RunningSide = side.Other()
	c.LastSwitchTs = ts(now)
	return true
}

// Expired returns the running side once its remaining time is at or below
// zero. Ticks overshoot the true zero crossing, so this checks <= 0.
func (c *ClockState) Expired() (Side, bool) {
	if c.RunningSide == SideNone {
		return SideNone, false
	}
	if *c.remaining(c.RunningSide) <= 0 {
		return c.RunningSide, true
	}
	return SideNone, false
}

// Expire settles, zeroes the running side and stops the clock. The returned
// side is the loser; the caller awards the other side.
func (c *ClockState) Expire(now int64) (Side, bool) {
	c.Settle(now)
	loser := c.RunningSide
	if loser == SideNone {
		return SideNone, false
	}
	*c.remaining(loser) = 0
	c.RunningSide = SideNone
	return loser, true
}

// Stop settles and clears the running side without touching remaining time.
func (c *ClockState) Stop(now int64) {
	c.Settle(now)
	c.RunningSide = SideNone
}

// Remaining returns the remaining time of side.
func (c ClockState) Remaining(side Side) int64 {
	switch side {
	case SideLeft:
		return c.LeftRemainingMs
	case SideRight:
		return c.RightRemainingMs
	}
	return 0
}

func (c *ClockState) remaining(side Side) *int64 {
	if side == SideRight {
		return &c.RightRemainingMs
	}
	return &c.LeftRemainingMs
}

// Projected is the remaining time of side as it stands at now, counting the
// time the running side has burned since the last settle. It never goes
// below zero and never mutates the clock.
func (c ClockState) Projected(side Side, now int64) int64 {
	left := c.Remaining(side)
	if c.Running() && c.RunningSide == side && c.LastSwitchTs != nil {
		left -= max(now-*c.LastSwitchTs, 0)
	}
	return max(left, 0)
}
