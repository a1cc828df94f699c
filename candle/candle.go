// Package candle defines the price-tick shape that flows from the exchange
// candle stream through the Tracker and indicator pipeline.
package candle

// Tick is one OHLC sample. Within a single timeframe-aligned interval the
// stream may deliver many ticks; the last one observed at or after the
// interval boundary is the closed candle.
type Tick struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}
