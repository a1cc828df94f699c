// Package execution implements the Executor: the per-asset position state
// machine that submits market orders, enforces at-most-one open position,
// and handles timed auto-close, external liquidation, cancel, and pause.
package execution

import (
	"context"
	"sync"
	"time"

	"github.com/duneflow/perpengine/exchange"
	"github.com/duneflow/perpengine/execution/audit"
	"github.com/duneflow/perpengine/perrors"
	"github.com/duneflow/perpengine/trade"
	"github.com/rs/zerolog"
)

// MarketOrderer is the narrow slice of the exchange client the Executor
// needs: submit a market order with a slippage tolerance and classify the
// reply as filled or not. Any exchange.Client satisfies this directly.
type MarketOrderer interface {
	MarketOpen(ctx context.Context, asset string, isLong bool, size, slippage float64) (fill exchange.Filled, filled bool, err error)
}

const slippageTolerance = 0.01

// Executor is the per-asset position state machine. Zero value is not
// usable; build with New.
type Executor struct {
	asset  string
	client MarketOrderer
	out    chan<- trade.Info

	in chan trade.Command

	takerFeeRate float64

	mu       sync.Mutex
	position *trade.TradeFillInfo
	paused   bool

	log zerolog.Logger
}

// New builds an Executor for asset. out receives exactly one trade.Info per
// position destruction; takerFeeRate is the cross rate used in the PnL
// formula.
func New(asset string, client MarketOrderer, out chan<- trade.Info, takerFeeRate float64, log zerolog.Logger) *Executor {
	return &Executor{
		asset:        asset,
		client:       client,
		out:          out,
		in:           make(chan trade.Command), // rendezvous: capacity 0
		takerFeeRate: takerFeeRate,
		log:          log.With().Str("asset", asset).Str("component", "executor").Logger(),
	}
}

// In returns the inbound command channel (rendezvous capacity).
func (ex *Executor) In() chan<- trade.Command { return ex.in }

func (ex *Executor) openOrder(ctx context.Context, size float64, isLong bool) (trade.TradeFillInfo, error) {
	fill, filled, err := ex.client.MarketOpen(ctx, ex.asset, isLong, size, slippageTolerance)
	if err != nil {
		return trade.TradeFillInfo{}, &perrors.TransportError{Msg: err.Error()}
	}
	if !filled {
		return trade.TradeFillInfo{}, &perrors.ExchangeRejectError{Msg: "order not filled"}
	}
	return trade.TradeFillInfo{Price: fill.AvgPrice, FillType: trade.FillOpen, Size: fill.TotalSize, OrderID: fill.OrderID, IsLong: isLong}, nil
}

func (ex *Executor) closeOrder(ctx context.Context, size float64, isLong bool) (trade.TradeFillInfo, error) {
	fill, filled, err := ex.client.MarketOpen(ctx, ex.asset, !isLong, size, slippageTolerance)
	if err != nil {
		return trade.TradeFillInfo{}, &perrors.TransportError{Msg: err.Error()}
	}
	if !filled {
		return trade.TradeFillInfo{}, &perrors.ExchangeRejectError{Msg: "order not filled"}
	}
	return trade.TradeFillInfo{Price: fill.AvgPrice, FillType: trade.FillClose, Size: fill.TotalSize, OrderID: fill.OrderID, IsLong: isLong}, nil
}

func (ex *Executor) buildInfo(open, close trade.TradeFillInfo, durationS *int64) trade.Info {
	pnl, fee := trade.CalculatePnL(open, close, ex.takerFeeRate)
	return trade.Info{
		OpenPrice: open.Price, ClosePrice: close.Price, PnL: pnl, Fee: fee,
		IsLong: open.IsLong, DurationS: durationS, OpenOID: open.OrderID, CloseOID: close.OrderID,
	}
}

// takePosition atomically removes and returns the open position, nil if
// there is none. This is the single point both a timer-triggered close and
// an explicit CloseTrade/CancelTrade race through: whichever caller takes it
// first wins; the other observes nil and no-ops.
func (ex *Executor) takePosition() *trade.TradeFillInfo {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	p := ex.position
	ex.position = nil
	return p
}

func (ex *Executor) setPosition(p trade.TradeFillInfo) {
	ex.mu.Lock()
	ex.position = &p
	ex.mu.Unlock()
}

func (ex *Executor) hasPosition() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.position != nil
}

func (ex *Executor) emit(info trade.Info) {
	select {
	case ex.out <- info:
	default:
		// The Market's receive loop must keep up; if it's momentarily busy
		// we still must not block the executor loop on a peer, so retry
		// once in a goroutine instead of stalling command processing.
		go func() { ex.out <- info }()
	}
}

func (ex *Executor) timedClose(ctx context.Context, durationS int64) {
	timer := time.NewTimer(time.Duration(durationS) * time.Second)
	defer timer.Stop()
	<-timer.C

	p := ex.takePosition()
	if p == nil {
		return
	}
	close, err := ex.closeOrder(ctx, p.Size, p.IsLong)
	if err != nil {
		ex.log.Error().Err(err).Msg("timer-triggered close failed; position already removed from local state")
		return
	}
	d := durationS
	ex.emit(ex.buildInfo(*p, close, &d))
}

// cancelOpenIfAny closes any live position at full size and emits the
// resulting TradeInfo, used by Toggle/Pause and by CancelTrade.
func (ex *Executor) cancelOpenIfAny(ctx context.Context) {
	p := ex.takePosition()
	if p == nil {
		return
	}
	close, err := ex.closeOrder(ctx, p.Size, p.IsLong)
	if err != nil {
		ex.log.Error().Err(err).Msg("cancel close failed")
		return
	}
	ex.emit(ex.buildInfo(*p, close, nil))
}

// Run drains In until CancelTrade (terminal) or the channel is closed.
func (ex *Executor) Run(ctx context.Context) {
	for cmd := range ex.in {
		if ex.apply(ctx, cmd) {
			return
		}
	}
}

func (ex *Executor) apply(ctx context.Context, cmd trade.Command) (terminal bool) {
	if cmd.Origin == trade.OriginFrontend {
		ctx = audit.WithFrontendOrigin(ctx, cmd.ActorIP, cmd.ActorKeyID)
	} else {
		ctx = audit.WithEngineOrigin(ctx)
	}

	switch cmd.Kind {
	case trade.CommandExecuteTrade:
		ex.onExecuteTrade(ctx, cmd)
	case trade.CommandOpenTrade:
		ex.onOpenTrade(ctx, cmd)
	case trade.CommandCloseTrade:
		ex.onCloseTrade(ctx, cmd)
	case trade.CommandCancelTrade:
		ex.cancelOpenIfAny(ctx)
		return true
	case trade.CommandLiquidation:
		ex.onLiquidation(cmd)
	case trade.CommandToggle:
		ex.cancelOpenIfAny(ctx)
		ex.mu.Lock()
		ex.paused = !ex.paused
		ex.mu.Unlock()
	case trade.CommandPause:
		ex.cancelOpenIfAny(ctx)
		ex.mu.Lock()
		ex.paused = true
		ex.mu.Unlock()
	case trade.CommandResume:
		ex.mu.Lock()
		ex.paused = false
		ex.mu.Unlock()
	case trade.CommandBuildPosition:
		// Reserved, unhandled in the reference engine too.
		ex.log.Debug().Msg("BuildPosition received, no-op by design")
	}
	return false
}

func (ex *Executor) onExecuteTrade(ctx context.Context, cmd trade.Command) {
	ex.mu.Lock()
	idle := ex.position == nil
	paused := ex.paused
	ex.mu.Unlock()
	if !idle || paused {
		return
	}

	fill, err := ex.openOrder(ctx, cmd.Size, cmd.IsLong)
	if err != nil {
		ex.log.Error().Err(err).Msg("open order failed")
		return
	}
	ex.setPosition(fill)
	go ex.timedClose(ctx, cmd.DurationS)
}

func (ex *Executor) onOpenTrade(ctx context.Context, cmd trade.Command) {
	ex.mu.Lock()
	idle := ex.position == nil
	paused := ex.paused
	ex.mu.Unlock()
	if paused {
		return
	}
	if !idle {
		ex.log.Debug().Msg("OpenTrade ignored, position already open")
		return
	}

	fill, err := ex.openOrder(ctx, cmd.Size, cmd.IsLong)
	if err != nil {
		ex.log.Error().Err(err).Msg("open order failed")
		return
	}
	ex.setPosition(fill)
}

func (ex *Executor) onCloseTrade(ctx context.Context, cmd trade.Command) {
	ex.mu.Lock()
	paused := ex.paused
	ex.mu.Unlock()
	if paused {
		return
	}
	p := ex.takePosition()
	if p == nil {
		return
	}
	size := cmd.Size
	if size > p.Size {
		size = p.Size
	}
	close, err := ex.closeOrder(ctx, size, p.IsLong)
	if err != nil {
		ex.log.Error().Err(err).Msg("close order failed")
		return
	}
	ex.emit(ex.buildInfo(*p, close, nil))
}

func (ex *Executor) onLiquidation(cmd trade.Command) {
	p := ex.takePosition()
	if p == nil {
		return
	}
	ex.emit(ex.buildInfo(*p, cmd.Liquidation.AsFill(), nil))
}

// Paused reports the current pause flag.
func (ex *Executor) Paused() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.paused
}

// HasOpenPosition reports whether a position is currently held.
func (ex *Executor) HasOpenPosition() bool { return ex.hasPosition() }
