package indicator

import "github.com/duneflow/perpengine/candle"

// emaCrossIndicator tracks two EMAs and reports whether the short EMA
// crossed the long EMA on the last committed update, matching
// IndicatorKind.EmaCross{short, long}.
type emaCrossIndicator struct {
	short, long   *emaIndicator
	prevShort     float64
	prevLong      float64
	havePrev      bool
	crossedUp     bool
	crossedDown   bool
	ok            bool
	provShort     float64
	provLong      float64
	provOk        bool
}

func newEMACross(short, long int) *emaCrossIndicator {
	return &emaCrossIndicator{short: newEMA(short), long: newEMA(long)}
}

func (e *emaCrossIndicator) Load(ticks []candle.Tick) {
	e.Reset()
	for _, t := range ticks {
		e.UpdateAfterClose(t)
	}
}

func (e *emaCrossIndicator) UpdateAfterClose(tick candle.Tick) {
	e.short.UpdateAfterClose(tick)
	e.long.UpdateAfterClose(tick)
	sv, sok := e.short.Value()
	lv, lok := e.long.Value()
	if !sok || !lok {
		e.provOk = false
		return
	}
	if e.havePrev {
		e.crossedUp = e.prevShort <= e.prevLong && sv.Float > lv.Float
		e.crossedDown = e.prevShort >= e.prevLong && sv.Float < lv.Float
	}
	e.prevShort, e.prevLong, e.havePrev = sv.Float, lv.Float, true
	e.ok = true
	e.provOk = false
}

func (e *emaCrossIndicator) UpdateBeforeClose(tick candle.Tick) {
	e.short.UpdateBeforeClose(tick)
	e.long.UpdateBeforeClose(tick)
	sv, sok := e.short.Value()
	lv, lok := e.long.Value()
	if !sok || !lok {
		e.provOk = false
		return
	}
	e.provShort, e.provLong, e.provOk = sv.Float, lv.Float, true
}

func (e *emaCrossIndicator) Value() (Value, bool) {
	if e.provOk {
		return Value{Kind: KindEmaCross, Short: e.provShort, Long: e.provLong}, true
	}
	if e.ok {
		return Value{Kind: KindEmaCross, Short: e.prevShort, Long: e.prevLong, CrossedUp: e.crossedUp, CrossedDown: e.crossedDown}, true
	}
	return Value{}, false
}

func (e *emaCrossIndicator) Reset() {
	e.short.Reset()
	e.long.Reset()
	e.havePrev = false
	e.ok = false
	e.provOk = false
	e.crossedUp = false
	e.crossedDown = false
}
