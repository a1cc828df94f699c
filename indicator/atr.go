package indicator

import "github.com/duneflow/perpengine/candle"

// atrIndicator is a Wilder-smoothed Average True Range.
type atrIndicator struct {
	periods    int
	prevClose  float64
	haveClose  bool
	seedSum    float64
	seedN      int
	value      float64
	ok         bool
	provValue  float64
	provOk     bool
}

func newATR(periods int) *atrIndicator {
	if periods <= 0 {
		periods = 14
	}
	return &atrIndicator{periods: periods}
}

func trueRange(tick candle.Tick, prevClose float64, haveClose bool) float64 {
	hl := tick.High - tick.Low
	if !haveClose {
		return hl
	}
	hc := tick.High - prevClose
	if hc < 0 {
		hc = -hc
	}
	lc := tick.Low - prevClose
	if lc < 0 {
		lc = -lc
	}
	tr := hl
	if hc > tr {
		tr = hc
	}
	if lc > tr {
		tr = lc
	}
	return tr
}

func (a *atrIndicator) Load(ticks []candle.Tick) {
	a.Reset()
	for _, t := range ticks {
		a.UpdateAfterClose(t)
	}
}

func (a *atrIndicator) UpdateAfterClose(tick candle.Tick) {
	tr := trueRange(tick, a.prevClose, a.haveClose)
	a.prevClose, a.haveClose = tick.Close, true

	if !a.ok {
		a.seedSum += tr
		a.seedN++
		if a.seedN == a.periods {
			a.value = a.seedSum / float64(a.periods)
			a.ok = true
		}
	} else {
		a.value = (a.value*float64(a.periods-1) + tr) / float64(a.periods)
	}
	a.provOk = false
}

func (a *atrIndicator) UpdateBeforeClose(tick candle.Tick) {
	if !a.ok {
		a.provOk = false
		return
	}
	tr := trueRange(tick, a.prevClose, a.haveClose)
	a.provValue = (a.value*float64(a.periods-1) + tr) / float64(a.periods)
	a.provOk = true
}

func (a *atrIndicator) Value() (Value, bool) {
	if a.provOk {
		return Value{Kind: KindAtr, Float: a.provValue}, true
	}
	if a.ok {
		return Value{Kind: KindAtr, Float: a.value}, true
	}
	return Value{}, false
}

func (a *atrIndicator) Reset() {
	*a = atrIndicator{periods: a.periods}
}
