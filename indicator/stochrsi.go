package indicator

import "github.com/duneflow/perpengine/candle"

// stochRSIIndicator computes the stochastic oscillator over a trailing
// window of raw RSI readings, with optional %K/%D smoothing, matching
// IndicatorKind.StochRsi{periods, k_smoothing?, d_smoothing?}.
type stochRSIIndicator struct {
	periods int
	rsi     *rsiIndicator
	window  []float64

	kSmooth *smaIndicator
	dSmooth *smaIndicator

	k, d     float64
	ok       bool
	provK    float64
	provD    float64
	provOk   bool
}

func newStochRSI(periods, kSmoothing, dSmoothing int) *stochRSIIndicator {
	if periods <= 0 {
		periods = 14
	}
	s := &stochRSIIndicator{periods: periods, rsi: newRSI(periods), window: make([]float64, 0, periods)}
	if kSmoothing > 0 {
		s.kSmooth = newSMA(kSmoothing)
	}
	if dSmoothing > 0 {
		s.dSmooth = newSMA(dSmoothing)
	}
	return s
}

func (s *stochRSIIndicator) Load(ticks []candle.Tick) {
	s.Reset()
	for _, t := range ticks {
		s.UpdateAfterClose(t)
	}
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return
}

func (s *stochRSIIndicator) stochOf(window []float64, current float64) (float64, bool) {
	if len(window) < s.periods {
		return 0, false
	}
	lo, hi := minMax(window)
	if hi == lo {
		return 50, true
	}
	return (current - lo) / (hi - lo) * 100, true
}

func (s *stochRSIIndicator) pushWindow(v float64) {
	if len(s.window) == s.periods {
		copy(s.window, s.window[1:])
		s.window[len(s.window)-1] = v
	} else {
		s.window = append(s.window, v)
	}
}

func (s *stochRSIIndicator) UpdateAfterClose(tick candle.Tick) {
	s.rsi.UpdateAfterClose(tick)
	rv, ok := s.rsi.Value()
	if !ok {
		s.provOk = false
		return
	}
	s.pushWindow(rv.Float)
	raw, ready := s.stochOf(s.window, rv.Float)
	if !ready {
		s.provOk = false
		return
	}
	kTick := candle.Tick{Close: raw}
	k := raw
	if s.kSmooth != nil {
		s.kSmooth.UpdateAfterClose(kTick)
		if kv, kok := s.kSmooth.Value(); kok {
			k = kv.Float
		} else {
			s.provOk = false
			return
		}
	}
	d := k
	if s.dSmooth != nil {
		s.dSmooth.UpdateAfterClose(candle.Tick{Close: k})
		if dv, dok := s.dSmooth.Value(); dok {
			d = dv.Float
		} else {
			s.provOk = false
			return
		}
	}
	s.k, s.d, s.ok = k, d, true
	s.provOk = false
}

func (s *stochRSIIndicator) UpdateBeforeClose(tick candle.Tick) {
	s.rsi.UpdateBeforeClose(tick)
	rv, ok := s.rsi.Value()
	if !ok {
		s.provOk = false
		return
	}
	window := append(append([]float64{}, s.window...), rv.Float)
	if len(window) > s.periods {
		window = window[len(window)-s.periods:]
	}
	raw, ready := s.stochOf(window, rv.Float)
	if !ready {
		s.provOk = false
		return
	}
	s.provK, s.provD, s.provOk = raw, raw, true
}

func (s *stochRSIIndicator) Value() (Value, bool) {
	if s.provOk {
		return Value{Kind: KindStochRsi, K: s.provK, D: s.provD}, true
	}
	if s.ok {
		return Value{Kind: KindStochRsi, K: s.k, D: s.d}, true
	}
	return Value{}, false
}

func (s *stochRSIIndicator) Reset() {
	s.rsi.Reset()
	s.window = s.window[:0]
	s.ok = false
	s.provOk = false
	if s.kSmooth != nil {
		s.kSmooth.Reset()
	}
	if s.dSmooth != nil {
		s.dSmooth.Reset()
	}
}
