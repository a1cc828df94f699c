// Package indicator implements the stateful filters the Signal Engine
// evaluates per tick, and the Tracker that owns one timeframe's worth of
// them for one asset.
//
// Each indicator is an opaque stateful filter: it owns its own mutable
// state plus an is_active flag (held by the wrapping Handler, not the
// indicator itself), and supports exactly three operations — warm-up load,
// per-tick update, and value read — per the capability abstraction named
// in the control-plane design.
package indicator

import (
	"github.com/duneflow/perpengine/candle"
	"github.com/duneflow/perpengine/timeframe"
)

// Kind tags the variant of IndicatorKind.
type Kind int

const (
	KindRsi Kind = iota
	KindSmaOnRsi
	KindStochRsi
	KindAdx
	KindAtr
	KindEma
	KindEmaCross
	KindSma
)

// IndicatorKind is a tagged union over the indicator families the engine
// supports, parameterised exactly as the control-plane design enumerates.
// Two kinds are equal iff the tag and every parameter match; the struct is
// comparable so it can key a map directly (mirrors the original's
// PartialEq+Eq+Hash-derived enum).
type IndicatorKind struct {
	Kind Kind

	// Periods is used by Rsi, Atr, Ema, Sma, and as the RSI period for
	// SmaOnRsi/StochRsi.
	Periods int
	// Smoothing is SmaOnRsi's smoothing_length.
	Smoothing int
	// KSmoothing and DSmoothing are StochRsi's optional %K/%D smoothing
	// windows; zero means "no smoothing" (raw stochastic).
	KSmoothing int
	DSmoothing int
	// DiLength is Adx's directional-index smoothing period.
	DiLength int
	// Short and Long are EmaCross's two EMA periods.
	Short int
	Long  int
}

// IndexId uniquely identifies one indicator instance on one asset: its kind
// plus the timeframe it runs on.
type IndexId struct {
	Kind IndicatorKind
	TF   timeframe.TimeFrame
}

// Value is the typed read-out of an indicator. Only the fields relevant to
// the producing Kind are populated; the rest are zero.
type Value struct {
	Kind Kind

	// Float holds Rsi, SmaOnRsi, Adx, Atr, Ema, and Sma's single output.
	Float float64

	// K and D hold StochRsi's %K/%D pair.
	K float64
	D float64

	// Short and Long hold EmaCross's two EMA readings; CrossedUp/CrossedDown
	// report whether the short EMA crossed the long EMA on the last closed
	// update.
	Short       float64
	Long        float64
	CrossedUp   bool
	CrossedDown bool
}

// Indicator is the capability abstraction every concrete filter implements:
// warm-up load over an ordered sequence of closed candles, per-tick update
// tagged with whether this tick closed the candle, and a value read that
// may report "not ready" until enough samples have accumulated.
type Indicator interface {
	// Load replays an ordered sequence of closed candles, seeding state as
	// if each had been delivered via UpdateAfterClose in order.
	Load(ticks []candle.Tick)
	// UpdateBeforeClose folds in a provisional, not-yet-closed tick. The
	// indicator may keep a speculative value that a later close overwrites.
	UpdateBeforeClose(tick candle.Tick)
	// UpdateAfterClose commits a tick that closed the candle.
	UpdateAfterClose(tick candle.Tick)
	// Value reports the current reading; ok is false until enough samples
	// have been observed.
	Value() (Value, bool)
	// Reset discards all accumulated state.
	Reset()
}

// New constructs the concrete indicator for a kind (the "match_kind"
// factory in the control-plane design).
func New(kind IndicatorKind) Indicator {
	switch kind.Kind {
	case KindRsi:
		return newRSI(kind.Periods)
	case KindSmaOnRsi:
		return newSMAOnRSI(kind.Periods, kind.Smoothing)
	case KindStochRsi:
		return newStochRSI(kind.Periods, kind.KSmoothing, kind.DSmoothing)
	case KindAdx:
		return newADX(kind.Periods, kind.DiLength)
	case KindAtr:
		return newATR(kind.Periods)
	case KindEma:
		return newEMA(kind.Periods)
	case KindEmaCross:
		return newEMACross(kind.Short, kind.Long)
	case KindSma:
		return newSMA(kind.Periods)
	default:
		return newNoop()
	}
}

// Handler owns one indicator's mutable state plus its is_active flag. The
// flag lives here, not on the Indicator, so toggling an indicator off does
// not discard its accumulated state.
type Handler struct {
	Indicator Indicator
	IsActive  bool
}

// NewHandler wraps a freshly constructed indicator, active by default.
func NewHandler(kind IndicatorKind) *Handler {
	return &Handler{Indicator: New(kind), IsActive: true}
}

// Update dispatches to the indicator's before/after-close update. Inactive
// handlers still receive updates so state stays warm across a toggle.
func (h *Handler) Update(tick candle.Tick, afterClose bool) {
	if afterClose {
		h.Indicator.UpdateAfterClose(tick)
		return
	}
	h.Indicator.UpdateBeforeClose(tick)
}

// Value returns the handler's current reading, or ok=false if the handler
// is toggled off or the indicator is not yet warmed up.
func (h *Handler) Value() (Value, bool) {
	if !h.IsActive {
		return Value{}, false
	}
	return h.Indicator.Value()
}

// Load replays warm-up candles into the wrapped indicator.
func (h *Handler) Load(ticks []candle.Tick) { h.Indicator.Load(ticks) }

// Reset discards the wrapped indicator's state.
func (h *Handler) Reset() { h.Indicator.Reset() }

// Toggle flips IsActive and reports the new value.
func (h *Handler) Toggle() bool {
	h.IsActive = !h.IsActive
	return h.IsActive
}
