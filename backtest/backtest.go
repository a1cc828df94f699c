// Package backtest carries a single placeholder constructor mirroring the
// original signal engine's new_backtest: a stub with an explicit comment
// that its semantics are unspecified. No replay loop is wired — this
// exists only so a future implementation has a concrete type to grow into.
package backtest

import "time"

// Config names the parameters a real replay run would eventually need.
type Config struct {
	Asset          string
	Strategy       string
	StartTime      time.Time
	EndTime        time.Time
	InitialCapital float64
	Commission     float64
}

// Result is the outcome of a replay run. No field is ever populated by
// this package today.
type Result struct {
	ID          string
	Config      Config
	Trades      []SimulatedTrade
	EquityCurve []EquityPoint
	StartedAt   time.Time
	CompletedAt time.Time
}

// SimulatedTrade is one trade a replay run would eventually report.
type SimulatedTrade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	PnL        float64
}

// EquityPoint is one sample of a replay run's equity curve.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// Engine is the stub replay engine. It holds placeholder channels only; no
// goroutine is spawned and no command is ever consumed from In. Matches
// spec.md's explicit "stub constructor; its semantics are not specified."
type Engine struct {
	Config Config

	In  chan Config
	Out chan Result
}

// NewStubEngine builds a stub Engine for cfg. The returned Engine performs
// no replay: this mirrors the original's new_backtest, which built
// channels and left their semantics unspecified.
func NewStubEngine(cfg Config) *Engine {
	return &Engine{
		Config: cfg,
		In:     make(chan Config, 1),
		Out:    make(chan Result, 1),
	}
}
