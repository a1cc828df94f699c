package indicator

import "github.com/duneflow/perpengine/candle"

// smaOnRSIIndicator smooths the raw RSI reading with a trailing SMA, as the
// IndicatorKind.SmaOnRsi{periods, smoothing_length} variant names.
type smaOnRSIIndicator struct {
	rsi       *rsiIndicator
	sma       *smaIndicator
	smoothing int
}

func newSMAOnRSI(periods, smoothing int) *smaOnRSIIndicator {
	if smoothing <= 0 {
		smoothing = 1
	}
	return &smaOnRSIIndicator{rsi: newRSI(periods), sma: newSMA(smoothing), smoothing: smoothing}
}

func (s *smaOnRSIIndicator) Load(ticks []candle.Tick) {
	s.rsi.Reset()
	s.sma.Reset()
	for _, t := range ticks {
		s.UpdateAfterClose(t)
	}
}

func (s *smaOnRSIIndicator) UpdateAfterClose(tick candle.Tick) {
	s.rsi.UpdateAfterClose(tick)
	if v, ok := s.rsi.Value(); ok {
		s.sma.UpdateAfterClose(candle.Tick{Close: v.Float})
	}
}

func (s *smaOnRSIIndicator) UpdateBeforeClose(tick candle.Tick) {
	s.rsi.UpdateBeforeClose(tick)
	if v, ok := s.rsi.Value(); ok {
		s.sma.UpdateBeforeClose(candle.Tick{Close: v.Float})
	}
}

func (s *smaOnRSIIndicator) Value() (Value, bool) {
	v, ok := s.sma.Value()
	if !ok {
		return Value{}, false
	}
	return Value{Kind: KindSmaOnRsi, Float: v.Float}, true
}

func (s *smaOnRSIIndicator) Reset() {
	s.rsi.Reset()
	s.sma.Reset()
}
