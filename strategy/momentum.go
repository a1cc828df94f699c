package strategy

import (
	"github.com/duneflow/perpengine/indicator"
	"github.com/duneflow/perpengine/trade"
)

// momentumDuration is the holding period RSIMomentum attaches to trades.
const momentumDuration int64 = 600

// RSIMomentum is a single-indicator RSI overbought/oversold strategy, built
// on the IndicatorKind.Rsi reading instead of
// a raw OHLCV close slice.
type RSIMomentum struct {
	Overbought float64
	Oversold   float64
}

// NewRSIMomentum builds the momentum strategy with the conventional
// 70/30 overbought/oversold thresholds.
func NewRSIMomentum() *RSIMomentum {
	return &RSIMomentum{Overbought: 70, Oversold: 30}
}

func (m *RSIMomentum) Name() string { return "rsi_momentum" }

func (m *RSIMomentum) GenerateSignal(values []indicator.Value, price float64, params trade.ExecParams) (*trade.Command, bool) {
	rsi, ok := firstByKind(values, indicator.KindRsi)
	if !ok {
		return nil, false
	}
	maxSize := params.Margin * float64(params.Lev) / price

	switch {
	case rsi.Float < m.Oversold:
		return &trade.Command{Kind: trade.CommandExecuteTrade, Size: 0.5 * maxSize, IsLong: true, DurationS: momentumDuration}, true
	case rsi.Float > m.Overbought:
		return &trade.Command{Kind: trade.CommandExecuteTrade, Size: 0.5 * maxSize, IsLong: false, DurationS: momentumDuration}, true
	default:
		return nil, false
	}
}
