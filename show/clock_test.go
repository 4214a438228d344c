/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package show

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const t0 int64 = 1_700_000_000_000

func TestClockStartRunsLeft(t *testing.T) {
	var c ClockState
	c.Start(45000, t0)

	assert.Equal(t, int64(45000), c.LeftRemainingMs)
	assert.Equal(t, int64(45000), c.RightRemainingMs)
	assert.Equal(t, SideLeft, c.RunningSide)
	assert.False(t, c.Paused)
	require.NotNil(t, c.LastSwitchTs)
	assert.Equal(t, t0, *c.LastSwitchTs)
}

func TestClockSettleIsIdempotentAtSameInstant(t *testing.T) {
	var c ClockState
	c.Start(60000, t0)

	c.Settle(t0 + 1500)
	once := c
	once.LastSwitchTs = cloneTs(c.LastSwitchTs)

	c.Settle(t0 + 1500)
	assert.Equal(t, once, c)
	assert.Equal(t, int64(58500), c.LeftRemainingMs)
}

func TestClockSettleIgnoresClockSkew(t *testing.T) {
	var c ClockState
	c.Start(60000, t0)

	c.Settle(t0 - 5000)
	assert.Equal(t, int64(60000), c.LeftRemainingMs)
}

func TestClockSwitchHandsTurnOver(t *testing.T) {
	var c ClockState
	c.Start(60000, t0)

	require.True(t, c.Switch(SideLeft, t0+10000))

	assert.Equal(t, int64(50000), c.LeftRemainingMs)
	assert.Equal(t, int64(60000), c.RightRemainingMs)
	assert.Equal(t, SideRight, c.RunningSide)
	assert.Equal(t, t0+10000, *c.LastSwitchTs)
}

func TestClockSwitchOfIdleSideIsNoop(t *testing.T) {
	var c ClockState
	c.Start(60000, t0)

	assert.False(t, c.Switch(SideRight, t0+10000))
	assert.Equal(t, SideLeft, c.RunningSide)
	assert.Equal(t, int64(60000), c.LeftRemainingMs)
	assert.Equal(t, t0, *c.LastSwitchTs)
}

func TestClockPauseFreezesTime(t *testing.T) {
	var c ClockState
	c.Start(30000, t0)

	c.Pause(t0 + 2000)
	c.Settle(t0 + 9000)
	assert.Equal(t, int64(28000), c.LeftRemainingMs)

	c.Resume(t0 + 9000)
	c.Settle(t0 + 10000)
	assert.Equal(t, int64(27000), c.LeftRemainingMs)
	assert.Equal(t, SideLeft, c.RunningSide)
}

func TestClockExpire(t *testing.T) {
	var c ClockState
	c.Start(1000, t0)

	_, expired := c.Expired()
	assert.False(t, expired)

	c.Settle(t0 + 1040)
	side, expired := c.Expired()
	require.True(t, expired)
	assert.Equal(t, SideLeft, side)

	loser, ok := c.Expire(t0 + 1040)
	require.True(t, ok)
	assert.Equal(t, SideLeft, loser)
	assert.Zero(t, c.LeftRemainingMs)
	assert.Equal(t, SideNone, c.RunningSide)
	assert.False(t, c.Running())
}

func TestClockProjected(t *testing.T) {
	var c ClockState
	c.Start(10000, t0)

	assert.Equal(t, int64(7500), c.Projected(SideLeft, t0+2500))
	assert.Equal(t, int64(10000), c.Projected(SideRight, t0+2500))
	assert.Zero(t, c.Projected(SideLeft, t0+20000))
	assert.Equal(t, int64(10000), c.LeftRemainingMs, "projection must not settle")

	c.Pause(t0 + 1000)
	assert.Equal(t, int64(9000), c.Projected(SideLeft, t0+5000))
}

func TestSideJSON(t *testing.T) {
	for _, tc := range []struct {
		side Side
		json string
	}{
		{SideNone, "null"},
		{SideLeft, `"left"`},
		{SideRight, `"right"`},
	} {
		b, err := tc.side.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, tc.json, string(b))
	}

	var s Side
	assert.Error(t, s.UnmarshalJSON([]byte(`"middle"`)))
}
