// Package signal implements the Signal Engine: the per-asset owner of every
// Tracker plus the current strategy and execution parameters, converting
// price ticks into at most one trade command per tick.
package signal

import (
	"time"

	"github.com/duneflow/perpengine/candle"
	"github.com/duneflow/perpengine/indicator"
	"github.com/duneflow/perpengine/strategy"
	"github.com/duneflow/perpengine/timeframe"
	"github.com/duneflow/perpengine/trade"
	"github.com/rs/zerolog"
)

// EditType tags an indicator edit within an EditIndicators command.
type EditType int

const (
	EditAdd EditType = iota
	EditRemove
	EditToggle
)

// Entry is one indicator edit: which IndexId, and what to do with it.
type Entry struct {
	ID   indicator.IndexId
	Edit EditType
}

// CommandKind tags the EngineCommand variant.
type CommandKind int

const (
	CmdUpdatePrice CommandKind = iota
	CmdUpdateStrategy
	CmdEditIndicators
	CmdUpdateExecParams
	CmdStop
)

// Command is the message the Market sends to the Signal Engine.
type Command struct {
	Kind CommandKind

	// UpdatePrice.
	Tick candle.Tick

	// UpdateStrategy.
	Strategy strategy.Strategy

	// EditIndicators.
	Entries   []Entry
	PriceData map[timeframe.TimeFrame][]candle.Tick

	// UpdateExecParams.
	ParamEdit trade.ExecParamEdit
}

// Snapshot is the indicator vector the Engine reports upstream every fifth
// tick, keyed by IndexId so the frontend can address one instance exactly.
type Snapshot struct {
	Asset  string
	Values map[indicator.IndexId]indicator.Value
}

// Engine owns every Tracker for one asset plus its current strategy and
// exec params. It is driven entirely by Command values delivered on In; it
// never reaches across a channel into another component's state.
type Engine struct {
	Asset string
	In    chan Command

	// tradeOut is the rendezvous (capacity-0) channel to the Executor; sends
	// are non-blocking try-sends, matching the "drop a stale signal rather
	// than queue it" back-pressure contract.
	tradeOut chan<- trade.Command
	// dataOut carries the periodic indicator snapshot upstream to the
	// Market, which relays it to the frontend.
	dataOut chan<- Snapshot

	trackers map[timeframe.TimeFrame]*indicator.Tracker
	strat    strategy.Strategy
	params   trade.ExecParams

	tick int
	log  zerolog.Logger
}

// New builds an Engine for asset. baseTF gets an empty tracker immediately,
// matching the reference engine's constructor; config lists any further
// IndexIds to register cold (no warm-up load), exactly as the original adds
// them via add_indicator(id, load=false).
func New(asset string, baseTF timeframe.TimeFrame, params trade.ExecParams, strat strategy.Strategy,
	tradeOut chan<- trade.Command, dataOut chan<- Snapshot, config []indicator.IndexId, log zerolog.Logger) *Engine {

	e := &Engine{
		Asset:    asset,
		In:       make(chan Command, 4096), // unbounded per the channel capacity table, approximated generously
		tradeOut: tradeOut,
		dataOut:  dataOut,
		trackers: make(map[timeframe.TimeFrame]*indicator.Tracker),
		strat:    strat,
		params:   params,
		log:      log.With().Str("asset", asset).Str("component", "signal_engine").Logger(),
	}
	e.trackerFor(baseTF)
	for _, id := range config {
		e.trackerFor(id.TF).Add(id.Kind, false)
	}
	return e
}

func (e *Engine) trackerFor(tf timeframe.TimeFrame) *indicator.Tracker {
	tr, ok := e.trackers[tf]
	if !ok {
		tr = indicator.NewTracker(tf)
		e.trackers[tf] = tr
	}
	return tr
}

// activeValues flattens every tracker's active readings into the Vec<Value>
// shape the strategy contract expects.
func (e *Engine) activeValues() []indicator.Value {
	var out []indicator.Value
	for _, tr := range e.trackers {
		for _, v := range tr.ActiveValues() {
			out = append(out, v)
		}
	}
	return out
}

func (e *Engine) snapshot() map[indicator.IndexId]indicator.Value {
	out := make(map[indicator.IndexId]indicator.Value)
	for tf, tr := range e.trackers {
		for kind, v := range tr.ActiveValues() {
			out[indicator.IndexId{Kind: kind, TF: tf}] = v
		}
	}
	return out
}

// Run drains In until a Stop command, applying each EngineCommand in order.
func (e *Engine) Run() {
	for cmd := range e.In {
		if e.apply(cmd) {
			return
		}
	}
}

// apply handles one command; it returns true when the engine should
// terminate.
func (e *Engine) apply(cmd Command) bool {
	switch cmd.Kind {
	case CmdUpdatePrice:
		e.onUpdatePrice(cmd.Tick)
	case CmdUpdateStrategy:
		e.strat = cmd.Strategy
	case CmdEditIndicators:
		e.onEditIndicators(cmd.Entries, cmd.PriceData)
	case CmdUpdateExecParams:
		cmd.ParamEdit.Apply(&e.params)
	case CmdStop:
		return true
	}
	return false
}

func (e *Engine) onUpdatePrice(tick candle.Tick) {
	now := time.Now().UnixMilli()
	for _, tr := range e.trackers {
		tr.Digest(tick, now)
	}

	e.tick++
	if e.tick%5 == 0 && e.dataOut != nil {
		select {
		case e.dataOut <- Snapshot{Asset: e.Asset, Values: e.snapshot()}:
		default:
			e.log.Warn().Msg("indicator snapshot dropped, market relay busy")
		}
	}

	if e.strat == nil {
		return
	}
	command, ok := e.strat.GenerateSignal(e.activeValues(), tick.Close, e.params)
	if !ok {
		return
	}
	select {
	case e.tradeOut <- *command:
	default:
		e.log.Debug().Msg("trade signal dropped, executor busy")
	}
}

func (e *Engine) onEditIndicators(entries []Entry, priceData map[timeframe.TimeFrame][]candle.Tick) {
	for _, entry := range entries {
		tr := e.trackerFor(entry.ID.TF)
		switch entry.Edit {
		case EditAdd:
			tr.Add(entry.ID.Kind, false)
		case EditRemove:
			tr.Remove(entry.ID.Kind)
		case EditToggle:
			if _, ok := tr.Toggle(entry.ID.Kind); !ok {
				e.log.Warn().Msg("toggle on unknown indicator ignored")
			}
		}
	}
	for tf, data := range priceData {
		e.trackerFor(tf).Load(data)
	}
}

// ExecParams returns a copy of the engine's current execution parameters.
// params is unsynchronized and only ever mutated on the goroutine running
// Run, so this must not be called from any other goroutine; it exists for
// tests that drive apply directly rather than through Run. Any component
// that needs to track exec params (e.g. the Market, for margin accounting)
// must keep its own copy and update it from the values it sends, never by
// reading this back.
func (e *Engine) ExecParams() trade.ExecParams { return e.params }
