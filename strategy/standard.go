package strategy

import (
	"github.com/duneflow/perpengine/indicator"
	"github.com/duneflow/perpengine/trade"
)

// standardDuration is the holding period the EMA-cross/ADX/ATR entry
// attaches to trades it opens.
const standardDuration int64 = 900

// adxTrendFloor is the minimum ADX reading the standard strategy treats as
// "trending" rather than chop.
const adxTrendFloor = 20.0

// Standard is a trend-following strategy keyed on an EMA cross confirmed by
// ADX strength and bounded by an ATR floor to avoid firing in dead markets.
//
// It mirrors logic present but unreachable in the reference engine's
// strategy module (never wired to generate_signal there); it is promoted
// here into the strategy Registry as a selectable, non-default alternate.
type Standard struct {
	Risk   Risk
	Stance Stance
}

// NewStandard builds the standard strategy at Normal risk, Neutral stance.
func NewStandard() *Standard {
	return &Standard{Risk: RiskNormal, Stance: StanceNeutral}
}

func (s *Standard) Name() string { return "standard" }

func (s *Standard) GenerateSignal(values []indicator.Value, price float64, params trade.ExecParams) (*trade.Command, bool) {
	cross, haveCross := firstByKind(values, indicator.KindEmaCross)
	adx, haveADX := firstByKind(values, indicator.KindAdx)
	atr, haveATR := firstByKind(values, indicator.KindAtr)
	if !haveCross || !haveADX || !haveATR {
		return nil, false
	}

	_, atrHigh := (&Custom{Risk: s.Risk}).GetATRThreshold()
	if atr.Float <= 0 || atr.Float > atrHigh {
		return nil, false
	}
	if adx.Float < adxTrendFloor {
		return nil, false
	}

	maxSize := params.Margin * float64(params.Lev) / price

	if cross.CrossedUp && s.Stance != StanceBear {
		return &trade.Command{Kind: trade.CommandExecuteTrade, Size: 0.5 * maxSize, IsLong: true, DurationS: standardDuration}, true
	}
	if cross.CrossedDown && s.Stance != StanceBull {
		return &trade.Command{Kind: trade.CommandExecuteTrade, Size: 0.5 * maxSize, IsLong: false, DurationS: standardDuration}, true
	}
	return nil, false
}
