package indicator

import "github.com/duneflow/perpengine/candle"

type smaIndicator struct {
	periods   int
	closes    []float64
	have      int
	value     float64
	ok        bool
	provValue float64
	provOk    bool
}

func newSMA(periods int) *smaIndicator {
	if periods <= 0 {
		periods = 1
	}
	return &smaIndicator{periods: periods, closes: make([]float64, 0, periods)}
}

func (s *smaIndicator) Load(ticks []candle.Tick) {
	s.Reset()
	for _, t := range ticks {
		s.UpdateAfterClose(t)
	}
}

func (s *smaIndicator) push(close float64) {
	if len(s.closes) == s.periods {
		copy(s.closes, s.closes[1:])
		s.closes[len(s.closes)-1] = close
	} else {
		s.closes = append(s.closes, close)
	}
}

func (s *smaIndicator) sumOf(window []float64) float64 {
	var sum float64
	for _, v := range window {
		sum += v
	}
	return sum
}

func (s *smaIndicator) UpdateAfterClose(tick candle.Tick) {
	s.push(tick.Close)
	if len(s.closes) == s.periods {
		s.value = s.sumOf(s.closes) / float64(s.periods)
		s.ok = true
	}
	s.provOk = false
}

func (s *smaIndicator) UpdateBeforeClose(tick candle.Tick) {
	if len(s.closes) < s.periods-1 {
		s.provOk = false
		return
	}
	window := append(append([]float64{}, s.closes...), tick.Close)
	if len(window) > s.periods {
		window = window[len(window)-s.periods:]
	}
	if len(window) == s.periods {
		s.provValue = s.sumOf(window) / float64(s.periods)
		s.provOk = true
	}
}

func (s *smaIndicator) Value() (Value, bool) {
	if s.provOk {
		return Value{Kind: KindSma, Float: s.provValue}, true
	}
	if s.ok {
		return Value{Kind: KindSma, Float: s.value}, true
	}
	return Value{}, false
}

func (s *smaIndicator) Reset() {
	s.closes = s.closes[:0]
	s.have = 0
	s.ok = false
	s.provOk = false
}
