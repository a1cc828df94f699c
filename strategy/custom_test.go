package strategy

import (
	"testing"

	"github.com/duneflow/perpengine/indicator"
	"github.com/duneflow/perpengine/timeframe"
	"github.com/duneflow/perpengine/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyValues(rsi, srsi, k, d float64) []indicator.Value {
	return []indicator.Value{
		{Kind: indicator.KindRsi, Float: rsi},
		{Kind: indicator.KindSmaOnRsi, Float: srsi},
		{Kind: indicator.KindStochRsi, K: k, D: d},
	}
}

// S2 — long scalp signal.
func TestCustomStrategyLongScalpSignal(t *testing.T) {
	c := NewCustom()
	c.Risk, c.Style, c.Stance = RiskNormal, StyleScalp, StanceNeutral

	cmd, ok := c.GenerateSignal(readyValues(20, 22, 18, 19), 100, trade.ExecParams{Margin: 1000, Lev: 20, TF: timeframe.Min5})

	require.True(t, ok)
	assert.Equal(t, trade.CommandExecuteTrade, cmd.Kind)
	assert.InDelta(t, 180, cmd.Size, 1e-9)
	assert.True(t, cmd.IsLong)
	assert.Equal(t, int64(420), cmd.DurationS)
}

// S3 — short scalp suppressed by a contradicting Bull stance.
func TestCustomStrategyShortSuppressedByStance(t *testing.T) {
	c := NewCustom()
	c.Risk, c.Style, c.Stance = RiskNormal, StyleScalp, StanceBull

	cmd, ok := c.GenerateSignal(readyValues(82, 78, 90, 88), 100, trade.ExecParams{Margin: 1000, Lev: 20, TF: timeframe.Min5})

	assert.False(t, ok)
	assert.Nil(t, cmd)
}

func TestCustomStrategyShortScalpFiresWithoutStanceConflict(t *testing.T) {
	c := NewCustom()
	c.Risk, c.Style, c.Stance = RiskNormal, StyleScalp, StanceNeutral

	cmd, ok := c.GenerateSignal(readyValues(82, 78, 90, 88), 100, trade.ExecParams{Margin: 1000, Lev: 20, TF: timeframe.Min5})

	require.True(t, ok)
	assert.False(t, cmd.IsLong)
}

func TestCustomStrategyMissingIndicatorsYieldsNoSignal(t *testing.T) {
	c := NewCustom()
	_, ok := c.GenerateSignal(nil, 100, trade.ExecParams{Margin: 1000, Lev: 20})
	assert.False(t, ok)
}

func TestCustomStrategyIsDeterministic(t *testing.T) {
	c := NewCustom()
	values := readyValues(20, 22, 18, 19)
	params := trade.ExecParams{Margin: 1000, Lev: 20, TF: timeframe.Min5}

	cmd1, ok1 := c.GenerateSignal(values, 100, params)
	cmd2, ok2 := c.GenerateSignal(values, 100, params)

	require.Equal(t, ok1, ok2)
	assert.Equal(t, cmd1, cmd2)
}
