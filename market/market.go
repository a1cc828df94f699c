// Package market implements the Market worker: the per-asset supervisor
// wiring the exchange candle stream to the Signal Engine and Executor, and
// fanning control commands and result updates between the Bot and its two
// owned sub-workers.
package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/duneflow/perpengine/assets"
	"github.com/duneflow/perpengine/candle"
	"github.com/duneflow/perpengine/exchange"
	"github.com/duneflow/perpengine/execution"
	"github.com/duneflow/perpengine/frontend"
	"github.com/duneflow/perpengine/indicator"
	"github.com/duneflow/perpengine/signal"
	"github.com/duneflow/perpengine/strategy"
	"github.com/duneflow/perpengine/timeframe"
	"github.com/duneflow/perpengine/trade"
)

// cmdCapacity is the bounded MarketCommand channel capacity.
const cmdCapacity = 7

// warmupCandles is how many closed candles a fresh or newly-added timeframe
// is backfilled with, per the EditIndicators contract.
const warmupCandles = 3000

// UpdateKind tags a Market's outbound Update variant. This is the internal
// MarketUpdate, distinct from the frontend-facing UpdateFrontend: the Bot is
// the one place that translates between them.
type UpdateKind int

const (
	UpdateInitMarket UpdateKind = iota
	UpdatePriceUpdate
	UpdateTradeUpdate
	UpdateMarginUpdate
	UpdateRelayToFrontend
)

// Update is one message a Market worker emits upstream to the Bot.
type Update struct {
	Kind UpdateKind
	Asset string

	Price float64

	TradeInfo trade.Info

	Margin float64

	// RelayToFrontend carries a prebuilt frontend.Update through verbatim
	// (indicator snapshots, marketInfoEdit notifications).
	Frontend frontend.Update

	// InitMarket payload.
	InitMargin  float64
	InitCandles map[timeframe.TimeFrame][]candle.Tick
}

// Market is the per-asset supervisor. Build with New, then run Run in its
// own goroutine.
type Market struct {
	asset  string
	client exchange.Client

	engine   *signal.Engine
	executor *execution.Executor

	In chan frontend.MarketComm // bounded, capacity 7

	updatesOut chan<- Update

	tradeIn chan trade.Info     // Executor -> Market
	dataIn  chan signal.Snapshot // Signal Engine -> Market

	activeTFs map[timeframe.TimeFrame]bool
	history   []trade.Info

	// margin is this Market's authoritative reserved-capital figure. It is
	// only ever touched from Run's goroutine; the Signal Engine gets a copy
	// pushed to it over In whenever margin changes and never hands one back.
	margin float64

	subID string

	log zerolog.Logger
}

// New constructs a Market for asset. It performs the full startup sequence:
// cap leverage, push it to the exchange, warm up the base timeframe, emit
// InitMarket, and subscribe to the live candle feed. The caller must still
// call Run in its own goroutine; New itself spawns the Signal Engine and
// Executor loops.
func New(ctx context.Context, asset string, client exchange.Client, strat strategy.Strategy,
	baseTF timeframe.TimeFrame, leverage int, margin float64, takerFeeRate float64,
	config []indicator.IndexId, updatesOut chan<- Update, log zerolog.Logger) (*Market, error) {

	meta, ok := assets.Get(asset)
	if !ok {
		return nil, fmt.Errorf("market: unknown asset %q", asset)
	}
	if leverage > meta.MaxLeverage {
		leverage = meta.MaxLeverage
	}
	if err := client.UpdateLeverage(ctx, asset, leverage, false); err != nil {
		return nil, fmt.Errorf("update leverage: %w", err)
	}

	m := &Market{
		asset:      asset,
		client:     client,
		In:         make(chan frontend.MarketComm, cmdCapacity),
		updatesOut: updatesOut,
		tradeIn:    make(chan trade.Info, 8),
		dataIn:     make(chan signal.Snapshot, 8),
		activeTFs:  map[timeframe.TimeFrame]bool{baseTF: true},
		margin:     margin,
		log:        log.With().Str("asset", asset).Str("component", "market").Logger(),
	}

	warm, err := m.fetchCandles(ctx, baseTF, warmupCandles)
	if err != nil {
		return nil, fmt.Errorf("warm up %s: %w", baseTF, err)
	}

	params := trade.ExecParams{Margin: margin, Lev: leverage, TF: baseTF}
	m.executor = execution.New(asset, client, m.tradeIn, takerFeeRate, log)
	m.engine = signal.New(asset, baseTF, params, strat, m.executor.In(), m.dataIn, config, log)
	m.engine.In <- signal.Command{Kind: signal.CmdEditIndicators, PriceData: map[timeframe.TimeFrame][]candle.Tick{baseTF: warm}}

	subID, stream, err := client.SubscribeCandle(ctx, asset, baseTF)
	if err != nil {
		return nil, fmt.Errorf("subscribe candle %s: %w", asset, err)
	}
	m.subID = subID

	go m.engine.Run()
	go m.executor.Run(ctx)
	go m.ingestCandles(stream)

	m.updatesOut <- Update{
		Kind:        UpdateInitMarket,
		Asset:       asset,
		InitMargin:  margin,
		InitCandles: map[timeframe.TimeFrame][]candle.Tick{baseTF: warm},
	}

	return m, nil
}

func (m *Market) fetchCandles(ctx context.Context, tf timeframe.TimeFrame, n int) ([]candle.Tick, error) {
	now := time.Now().UnixMilli()
	start := now - tf.Millis()*int64(n)
	raw, err := m.client.CandlesSnapshot(ctx, m.asset, tf, start, now)
	if err != nil {
		return nil, err
	}
	out := make([]candle.Tick, 0, len(raw))
	for _, r := range raw {
		tick, ok := parseCandle(r)
		if !ok {
			continue // malformed snapshot entries are skipped, matching the live tick-parse policy
		}
		out = append(out, tick)
	}
	return out, nil
}

// parseCandle converts an exchange.RawCandle's wire strings to a
// candle.Tick, reporting ok=false on any parse failure. Per the Open
// Question (candle parse failures as tick-skip, see DESIGN.md), a
// failure here never aborts the stream — it drops exactly that one sample.
func parseCandle(r exchange.RawCandle) (candle.Tick, bool) {
	open, err1 := strconv.ParseFloat(r.Open, 64)
	high, err2 := strconv.ParseFloat(r.High, 64)
	low, err3 := strconv.ParseFloat(r.Low, 64)
	closePx, err4 := strconv.ParseFloat(r.Close, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return candle.Tick{}, false
	}
	return candle.Tick{Open: open, High: high, Low: low, Close: closePx}, true
}

// ingestCandles is the candle ingester: parses each incoming wire candle,
// forwards the tick to the Signal Engine, and emits a PriceUpdate upstream
// only when the close actually changes.
func (m *Market) ingestCandles(stream <-chan exchange.RawCandle) {
	var lastClose float64
	first := true
	for raw := range stream {
		tick, ok := parseCandle(raw)
		if !ok {
			m.log.Warn().Msg("candle parse failed, tick skipped")
			continue
		}
		m.engine.In <- signal.Command{Kind: signal.CmdUpdatePrice, Tick: tick}
		if first || tick.Close != lastClose {
			first = false
			lastClose = tick.Close
			m.updatesOut <- Update{Kind: UpdatePriceUpdate, Asset: m.asset, Price: tick.Close}
		}
	}
}

// Run serves MarketCommand, executor trade results, and indicator snapshots
// until a Close command terminates it.
func (m *Market) Run(ctx context.Context) {
	for {
		select {
		case cmd, ok := <-m.In:
			if !ok {
				return
			}
			if m.apply(ctx, cmd) {
				return
			}
		case info := <-m.tradeIn:
			m.onReceiveTrade(info)
		case snap := <-m.dataIn:
			m.updatesOut <- Update{Kind: UpdateRelayToFrontend, Asset: m.asset,
				Frontend: frontend.NewIndicatorValues(snap.Asset, snap.Values)}
		}
	}
}

func (m *Market) onReceiveTrade(info trade.Info) {
	m.history = append(m.history, info)
	m.margin += info.PnL
	m.engine.In <- signal.Command{Kind: signal.CmdUpdateExecParams,
		ParamEdit: trade.ExecParamEdit{Field: trade.ExecParamMargin, Margin: m.margin}}

	m.updatesOut <- Update{Kind: UpdateTradeUpdate, Asset: m.asset, TradeInfo: info}
	m.updatesOut <- Update{Kind: UpdateMarginUpdate, Asset: m.asset, Margin: m.margin}
}

// apply handles one MarketCommand; it returns true when the market should
// terminate.
func (m *Market) apply(ctx context.Context, cmd frontend.MarketComm) (terminal bool) {
	switch cmd.Kind {
	case frontend.MCUpdateLeverage:
		m.onUpdateLeverage(ctx, cmd.Leverage)
	case frontend.MCUpdateStrategy:
		m.log.Debug().Str("strategy", cmd.Strategy).Msg("update strategy forwarded")
		m.updatesOut <- Update{Kind: UpdateRelayToFrontend, Asset: m.asset,
			Frontend: frontend.NewMarketInfoEdit(m.asset, frontend.EditMarketInfo{Kind: frontend.EditInfoStrategy, Strategy: cmd.Strategy})}
	case frontend.MCUpdateTimeFrame:
		if tf, err := timeframe.Parse(cmd.TimeFrame); err == nil {
			m.engine.In <- signal.Command{Kind: signal.CmdUpdateExecParams,
				ParamEdit: trade.ExecParamEdit{Field: trade.ExecParamTF, TF: tf}}
		}
	case frontend.MCUpdateMargin:
		m.margin = cmd.Margin
		m.engine.In <- signal.Command{Kind: signal.CmdUpdateExecParams,
			ParamEdit: trade.ExecParamEdit{Field: trade.ExecParamMargin, Margin: cmd.Margin}}
	case frontend.MCEditIndicators:
		m.onEditIndicators(ctx, cmd.Entries)
	case frontend.MCToggle:
		m.executor.In() <- trade.Command{Kind: trade.CommandToggle, Origin: trade.OriginFrontend,
			ActorIP: cmd.ActorIP, ActorKeyID: cmd.ActorKeyID}
	case frontend.MCPause:
		m.executor.In() <- trade.Command{Kind: trade.CommandPause, Origin: trade.OriginFrontend,
			ActorIP: cmd.ActorIP, ActorKeyID: cmd.ActorKeyID}
	case frontend.MCResume:
		m.executor.In() <- trade.Command{Kind: trade.CommandResume, Origin: trade.OriginFrontend,
			ActorIP: cmd.ActorIP, ActorKeyID: cmd.ActorKeyID}
	case frontend.MCClose:
		m.onClose(ctx, cmd.ActorIP, cmd.ActorKeyID)
		return true
	}
	return false
}

func (m *Market) onUpdateLeverage(ctx context.Context, leverage int) {
	meta, ok := assets.Get(m.asset)
	if ok && leverage > meta.MaxLeverage {
		leverage = meta.MaxLeverage
	}
	if err := m.client.UpdateLeverage(ctx, m.asset, leverage, false); err != nil {
		m.log.Error().Err(err).Msg("update leverage failed")
		return
	}
	m.engine.In <- signal.Command{Kind: signal.CmdUpdateExecParams,
		ParamEdit: trade.ExecParamEdit{Field: trade.ExecParamLev, Lev: leverage}}
	m.updatesOut <- Update{Kind: UpdateRelayToFrontend, Asset: m.asset,
		Frontend: frontend.NewMarketInfoEdit(m.asset, frontend.EditMarketInfo{Kind: frontend.EditInfoLeverage, Leverage: leverage})}
}

func (m *Market) onEditIndicators(ctx context.Context, entries []frontend.IndicatorEdit) {
	var engineEntries []signal.Entry
	priceData := make(map[timeframe.TimeFrame][]candle.Tick)
	var touched []indicator.IndexId

	for _, e := range entries {
		tf, err := timeframe.Parse(e.TimeFrame)
		if err != nil {
			m.log.Warn().Str("timeFrame", e.TimeFrame).Msg("edit indicators: unknown timeframe ignored")
			continue
		}
		id := indicator.IndexId{Kind: e.Kind, TF: tf}
		touched = append(touched, id)

		var editType signal.EditType
		switch e.Edit {
		case "add":
			editType = signal.EditAdd
			if !m.activeTFs[tf] {
				warm, err := m.fetchCandles(ctx, tf, warmupCandles)
				if err != nil {
					m.log.Error().Err(err).Str("timeFrame", e.TimeFrame).Msg("warm-up snapshot failed")
				} else {
					priceData[tf] = warm
				}
				m.activeTFs[tf] = true
			}
		case "remove":
			editType = signal.EditRemove
		case "toggle":
			editType = signal.EditToggle
		default:
			continue
		}
		engineEntries = append(engineEntries, signal.Entry{ID: id, Edit: editType})
	}

	m.engine.In <- signal.Command{Kind: signal.CmdEditIndicators, Entries: engineEntries, PriceData: priceData}
	m.updatesOut <- Update{Kind: UpdateRelayToFrontend, Asset: m.asset,
		Frontend: frontend.NewMarketInfoEdit(m.asset, frontend.EditMarketInfo{Kind: frontend.EditInfoIndicator, Indicators: touched})}
}

// onClose terminates the engine and executor, awaiting the single final
// ReceiveTrade (if the executor had an open position), then unsubscribes
// from the candle feed.
func (m *Market) onClose(ctx context.Context, actorIP, actorKeyID string) {
	m.executor.In() <- trade.Command{Kind: trade.CommandCancelTrade, Origin: trade.OriginFrontend,
		ActorIP: actorIP, ActorKeyID: actorKeyID}
	select {
	case info := <-m.tradeIn:
		m.onReceiveTrade(info)
	case <-time.After(2 * time.Second):
	}
	m.engine.In <- signal.Command{Kind: signal.CmdStop}
	if err := m.client.Unsubscribe(ctx, m.subID); err != nil {
		m.log.Warn().Err(err).Msg("unsubscribe candle feed failed")
	}
}

// ReceiveLiquidation forwards an aggregated liquidation fill straight to the
// executor: liquidations are exchange-originated, not a frontend control
// command, so they bypass the bounded MarketCommand channel entirely.
func (m *Market) ReceiveLiquidation(agg trade.LiquidationFillInfo) {
	m.executor.In() <- trade.Command{Kind: trade.CommandLiquidation, Liquidation: agg}
}

// Asset returns the asset this Market trades.
func (m *Market) Asset() string { return m.asset }

// History returns a copy of the trade history accumulated so far.
func (m *Market) History() []trade.Info {
	out := make([]trade.Info, len(m.history))
	copy(out, m.history)
	return out
}
