package trade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// S4 — PnL.
func TestCalculatePnL(t *testing.T) {
	open := TradeFillInfo{Size: 2, Price: 100, IsLong: true, FillType: FillOpen}
	close := TradeFillInfo{Size: 2, Price: 110, FillType: FillClose}

	pnl, fee := CalculatePnL(open, close, 0.0005)

	assert.InDelta(t, 0.21, fee, 1e-9)
	assert.InDelta(t, 19.79, pnl, 1e-9)
}

func TestCalculatePnLShort(t *testing.T) {
	open := TradeFillInfo{Size: 1, Price: 100, IsLong: false, FillType: FillOpen}
	close := TradeFillInfo{Size: 1, Price: 90, FillType: FillClose}

	pnl, _ := CalculatePnL(open, close, 0)
	assert.InDelta(t, 10, pnl, 1e-9, "a short profits when price falls")
}

// S5 — liquidation aggregation.
func TestAggregateLiquidation(t *testing.T) {
	fills := []RawFill{
		{Coin: "BTC", Side: "A", Size: 1, Price: 100, Liquidation: true},
		{Coin: "BTC", Side: "A", Size: 3, Price: 120, Liquidation: true},
	}

	agg := AggregateLiquidation(fills)

	assert.True(t, agg.IsLong)
	assert.InDelta(t, 4, agg.Size, 1e-6)
	assert.InDelta(t, 115, agg.Price, 1e-6)
	assert.Equal(t, uint64(0), agg.OrderID)
}

func TestExecParamEditApply(t *testing.T) {
	params := ExecParams{Margin: 100, Lev: 5}
	ExecParamEdit{Field: ExecParamMargin, Margin: 250}.Apply(&params)
	assert.Equal(t, 250.0, params.Margin)
	assert.Equal(t, 5, params.Lev, "editing margin must not disturb leverage")
}
