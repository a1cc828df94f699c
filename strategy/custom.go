package strategy

import (
	"math"

	"github.com/duneflow/perpengine/indicator"
	"github.com/duneflow/perpengine/trade"
)

// scalpDuration is the fixed holding period, in seconds, the scalp entry
// predicate attaches to every ExecuteTrade it emits.
const scalpDuration int64 = 420

// stochOverbought and stochOversold bound the scalp entry's %K/%D check
// regardless of risk tier — the reference engine hardcodes these rather
// than deriving them from GetStochThreshold; see the discrepancy noted
// below.
const (
	stochOverbought = 80.0
	stochOversold   = 20.0
)

// Custom is the reference strategy: three risk bands, a style flag, and a
// directional stance, driving a single RSI/StochRSI scalp entry predicate.
type Custom struct {
	Risk        Risk
	Style       Style
	Stance      Stance
	FollowTrend bool
}

// NewCustom builds the default custom strategy: Normal risk, Scalp style,
// Neutral stance, follow-trend enabled.
func NewCustom() *Custom {
	return &Custom{Risk: RiskNormal, Style: StyleScalp, Stance: StanceNeutral, FollowTrend: true}
}

func (c *Custom) Name() string { return "custom" }

// GetRSIThreshold returns the risk-tiered RSI overbought/oversold band.
//
// Note: this getter is not consulted by rsiBasedScalp, which uses its own
// hardcoded per-risk deviation instead. Both exist in the reference engine;
// the discrepancy is preserved rather than reconciled — see DESIGN.md.
func (c *Custom) GetRSIThreshold() (low, high float64) {
	switch c.Risk {
	case RiskLow:
		return 25, 78
	case RiskHigh:
		return 33, 67
	default:
		return 30, 70
	}
}

// GetStochThreshold returns the risk-tiered StochRSI band. Unused by
// rsiBasedScalp for the same reason as GetRSIThreshold.
func (c *Custom) GetStochThreshold() (low, high float64) {
	switch c.Risk {
	case RiskLow:
		return 2, 95
	case RiskHigh:
		return 20, 80
	default:
		return 15, 85
	}
}

// GetATRThreshold returns the risk-tiered ATR band. Unused by the scalp
// entry predicate; kept for a future volatility-gated entry.
func (c *Custom) GetATRThreshold() (low, high float64) {
	switch c.Risk {
	case RiskLow:
		return 0.2, 1.0
	case RiskHigh:
		return 0.8, math.Inf(1)
	default:
		return 0.5, 3.0
	}
}

// rsiDeviation returns the scalp entry's actual risk-tiered RSI deviation
// from the 50 midline — the value rsiBasedScalp actually uses, distinct
// from GetRSIThreshold.
func (c *Custom) rsiDeviation() float64 {
	switch c.Risk {
	case RiskLow:
		return 15
	case RiskHigh:
		return 37
	default:
		return 30
	}
}

func (c *Custom) GenerateSignal(values []indicator.Value, price float64, params trade.ExecParams) (*trade.Command, bool) {
	rsi, haveRSI := firstByKind(values, indicator.KindRsi)
	srsi, haveSRSI := firstByKind(values, indicator.KindSmaOnRsi)
	stoch, haveStoch := firstByKind(values, indicator.KindStochRsi)
	if !haveRSI || !haveSRSI || !haveStoch {
		return nil, false
	}

	maxSize := params.Margin * float64(params.Lev) / price
	return c.rsiBasedScalp(rsi.Float, srsi.Float, stoch, maxSize)
}

// rsiBasedScalp is the only entry predicate the reference engine actually
// reaches. Short branch requires stance != Bull and RSI/SRSI/StochRSI all
// in the overbought band; long branch mirrors it on the oversold side.
func (c *Custom) rsiBasedScalp(rsi, srsi float64, stoch indicator.Value, maxSize float64) (*trade.Command, bool) {
	dev := c.rsiDeviation()

	short := c.Stance != StanceBull &&
		rsi > 100-dev && srsi > 100-dev-5 && stoch.K > stochOverbought && stoch.D > stochOverbought
	if short {
		return &trade.Command{
			Kind: trade.CommandExecuteTrade, Size: 0.9 * maxSize, IsLong: false, DurationS: scalpDuration,
		}, true
	}

	long := c.Stance != StanceBear &&
		rsi < dev && srsi < dev+5 && stoch.K < stochOversold && stoch.D < stochOversold
	if long {
		return &trade.Command{
			Kind: trade.CommandExecuteTrade, Size: 0.9 * maxSize, IsLong: true, DurationS: scalpDuration,
		}, true
	}

	return nil, false
}
