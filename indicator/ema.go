package indicator

import "github.com/duneflow/perpengine/candle"

type emaIndicator struct {
	periods int
	k       float64
	seed    []float64 // closes collected before the EMA has a seed value
	value   float64
	ok      bool
	prov    float64
	provOk  bool
}

func newEMA(periods int) *emaIndicator {
	if periods <= 0 {
		periods = 1
	}
	return &emaIndicator{periods: periods, k: 2.0 / float64(periods+1), seed: make([]float64, 0, periods)}
}

func (e *emaIndicator) Load(ticks []candle.Tick) {
	e.Reset()
	for _, t := range ticks {
		e.UpdateAfterClose(t)
	}
}

func (e *emaIndicator) commit(close float64) {
	if !e.ok {
		e.seed = append(e.seed, close)
		if len(e.seed) == e.periods {
			var sum float64
			for _, v := range e.seed {
				sum += v
			}
			e.value = sum / float64(e.periods)
			e.ok = true
			e.seed = nil
		}
		return
	}
	e.value = (close-e.value)*e.k + e.value
}

func (e *emaIndicator) UpdateAfterClose(tick candle.Tick) {
	e.commit(tick.Close)
	e.provOk = false
}

func (e *emaIndicator) UpdateBeforeClose(tick candle.Tick) {
	if !e.ok {
		e.provOk = false
		return
	}
	e.prov = (tick.Close-e.value)*e.k + e.value
	e.provOk = true
}

func (e *emaIndicator) Value() (Value, bool) {
	if e.provOk {
		return Value{Kind: KindEma, Float: e.prov}, true
	}
	if e.ok {
		return Value{Kind: KindEma, Float: e.value}, true
	}
	return Value{}, false
}

func (e *emaIndicator) Reset() {
	e.seed = e.seed[:0]
	e.ok = false
	e.provOk = false
}
