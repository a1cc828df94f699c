package indicator

import "github.com/duneflow/perpengine/candle"

// rsiIndicator is a Wilder-smoothed RSI, kept stateful so it can be updated
// one candle at a time rather than recomputed over the whole history.
type rsiIndicator struct {
	periods  int
	prevSeen bool
	prevClose float64
	avgGain  float64
	avgLoss  float64
	seeded   bool
	seedGain float64
	seedLoss float64
	seedN    int
	value    float64
	ok       bool
	provVal  float64
	provOk   bool
}

func newRSI(periods int) *rsiIndicator {
	if periods <= 0 {
		periods = 14
	}
	return &rsiIndicator{periods: periods}
}

func (r *rsiIndicator) Load(ticks []candle.Tick) {
	r.Reset()
	for _, t := range ticks {
		r.UpdateAfterClose(t)
	}
}

func (r *rsiIndicator) fromRS(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func (r *rsiIndicator) commit(close float64) {
	if !r.prevSeen {
		r.prevClose = close
		r.prevSeen = true
		return
	}
	change := close - r.prevClose
	r.prevClose = close
	var gain, loss float64
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if !r.seeded {
		r.seedGain += gain
		r.seedLoss += loss
		r.seedN++
		if r.seedN == r.periods {
			r.avgGain = r.seedGain / float64(r.periods)
			r.avgLoss = r.seedLoss / float64(r.periods)
			r.value = r.fromRS(r.avgGain, r.avgLoss)
			r.ok = true
			r.seeded = true
		}
		return
	}

	r.avgGain = (r.avgGain*float64(r.periods-1) + gain) / float64(r.periods)
	r.avgLoss = (r.avgLoss*float64(r.periods-1) + loss) / float64(r.periods)
	r.value = r.fromRS(r.avgGain, r.avgLoss)
}

func (r *rsiIndicator) UpdateAfterClose(tick candle.Tick) {
	r.commit(tick.Close)
	r.provOk = false
}

func (r *rsiIndicator) UpdateBeforeClose(tick candle.Tick) {
	if !r.seeded || !r.prevSeen {
		r.provOk = false
		return
	}
	change := tick.Close - r.prevClose
	var gain, loss float64
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}
	provGain := (r.avgGain*float64(r.periods-1) + gain) / float64(r.periods)
	provLoss := (r.avgLoss*float64(r.periods-1) + loss) / float64(r.periods)
	r.provVal = r.fromRS(provGain, provLoss)
	r.provOk = true
}

func (r *rsiIndicator) Value() (Value, bool) {
	if r.provOk {
		return Value{Kind: KindRsi, Float: r.provVal}, true
	}
	if r.ok {
		return Value{Kind: KindRsi, Float: r.value}, true
	}
	return Value{}, false
}

func (r *rsiIndicator) Reset() {
	*r = rsiIndicator{periods: r.periods}
}

// rsiSeries is a helper used by SmaOnRsi/StochRsi to replay a window of raw
// RSI readings without pulling in the full Handler/Tracker machinery.
func rsiSeries(periods int, ticks []candle.Tick) []float64 {
	r := newRSI(periods)
	out := make([]float64, 0, len(ticks))
	for _, t := range ticks {
		r.UpdateAfterClose(t)
		if v, ok := r.Value(); ok {
			out = append(out, v.Float)
		}
	}
	return out
}
