package indicator

import "github.com/duneflow/perpengine/candle"

// adxIndicator implements Wilder's Average Directional Index: +DI/-DI
// smoothed over diLength, DX smoothed over periods into the final ADX
// reading, matching IndicatorKind.Adx{periods, di_length}.
type adxIndicator struct {
	periods   int
	diLength  int
	prevHigh  float64
	prevLow   float64
	prevClose float64
	have      bool

	atrSum, plusDMSum, minusDMSum float64
	seedN                         int
	atr, plusDI14, minusDI14      float64
	diReady                       bool

	dxSum  float64
	dxN    int
	adx    float64
	ok     bool
	provOk bool
	provAdx float64
}

func newADX(periods, diLength int) *adxIndicator {
	if periods <= 0 {
		periods = 14
	}
	if diLength <= 0 {
		diLength = periods
	}
	return &adxIndicator{periods: periods, diLength: diLength}
}

func (a *adxIndicator) Load(ticks []candle.Tick) {
	a.Reset()
	for _, t := range ticks {
		a.UpdateAfterClose(t)
	}
}

func (a *adxIndicator) step(tick candle.Tick) (dx float64, ready bool) {
	if !a.have {
		a.prevHigh, a.prevLow, a.prevClose, a.have = tick.High, tick.Low, tick.Close, true
		return 0, false
	}
	upMove := tick.High - a.prevHigh
	downMove := a.prevLow - tick.Low
	var plusDM, minusDM float64
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}
	tr := trueRange(tick, a.prevClose, true)
	a.prevHigh, a.prevLow, a.prevClose = tick.High, tick.Low, tick.Close

	if !a.diReady {
		a.atrSum += tr
		a.plusDMSum += plusDM
		a.minusDMSum += minusDM
		a.seedN++
		if a.seedN == a.diLength {
			a.atr = a.atrSum / float64(a.diLength)
			a.plusDI14 = a.plusDMSum / float64(a.diLength)
			a.minusDI14 = a.minusDMSum / float64(a.diLength)
			a.diReady = true
		}
		return 0, false
	}

	a.atr = (a.atr*float64(a.diLength-1) + tr) / float64(a.diLength)
	a.plusDI14 = (a.plusDI14*float64(a.diLength-1) + plusDM) / float64(a.diLength)
	a.minusDI14 = (a.minusDI14*float64(a.diLength-1) + minusDM) / float64(a.diLength)

	if a.atr == 0 {
		return 0, true
	}
	plusDI := 100 * a.plusDI14 / a.atr
	minusDI := 100 * a.minusDI14 / a.atr
	sum := plusDI + minusDI
	if sum == 0 {
		return 0, true
	}
	diff := plusDI - minusDI
	if diff < 0 {
		diff = -diff
	}
	return 100 * diff / sum, true
}

func (a *adxIndicator) UpdateAfterClose(tick candle.Tick) {
	dx, ready := a.step(tick)
	a.provOk = false
	if !ready {
		return
	}
	if !a.ok {
		a.dxSum += dx
		a.dxN++
		if a.dxN == a.periods {
			a.adx = a.dxSum / float64(a.periods)
			a.ok = true
		}
		return
	}
	a.adx = (a.adx*float64(a.periods-1) + dx) / float64(a.periods)
}

func (a *adxIndicator) UpdateBeforeClose(tick candle.Tick) {
	if !a.ok {
		a.provOk = false
		return
	}
	// Provisional DI smoothing state isn't snapshotted, so the intra-candle
	// reading holds at the last committed ADX until this candle closes.
	a.provAdx = a.adx
	a.provOk = true
}

func (a *adxIndicator) Value() (Value, bool) {
	if a.provOk {
		return Value{Kind: KindAdx, Float: a.provAdx}, true
	}
	if a.ok {
		return Value{Kind: KindAdx, Float: a.adx}, true
	}
	return Value{}, false
}

func (a *adxIndicator) Reset() {
	*a = adxIndicator{periods: a.periods, diLength: a.diLength}
}
