// Package bot implements the Bot supervisor: the process-wide owner of the
// exchange client, the wallet, every live Market worker, the Margin Book,
// and the session snapshot, fanning control events in and update events out.
package bot

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/duneflow/perpengine/assets"
	"github.com/duneflow/perpengine/exchange"
	"github.com/duneflow/perpengine/frontend"
	"github.com/duneflow/perpengine/indicator"
	"github.com/duneflow/perpengine/margin"
	"github.com/duneflow/perpengine/market"
	"github.com/duneflow/perpengine/perrors"
	"github.com/duneflow/perpengine/strategy"
	"github.com/duneflow/perpengine/timeframe"
	"github.com/duneflow/perpengine/trade"
)

// marginSyncInterval is how often the Bot resyncs the Margin Book against
// the exchange and emits UpdateTotalMargin upstream.
const marginSyncInterval = 2 * time.Second

// marketHandle pairs a live Market with the goroutine-owned resources the
// Bot must clean up when the market is removed: its candle subscription id
// (market.Market already tracks and releases this on Close) and its command
// channel.
type marketHandle struct {
	mkt   *market.Market
	asset string
}

// Bot is the process-wide supervisor. Build with New, then run Run in its
// own goroutine.
type Bot struct {
	client   exchange.Client
	registry *strategy.Registry
	book     *margin.Book

	mu       sync.Mutex
	markets  map[string]*marketHandle
	session  map[string]frontend.SessionEntry

	In         chan frontend.Event // unbounded (large buffer)
	updatesOut chan<- frontend.Update

	marketUpdates chan marketUpdateEnvelope

	takerFeeRate float64

	log zerolog.Logger
}

// marketUpdateEnvelope pairs a market.Update with the asset it came from, so
// the Bot's fan-in select can attribute it without a lookup.
type marketUpdateEnvelope struct {
	asset  string
	update market.Update
}

// New builds a Bot. The wallet public address used to subscribe to the
// exchange's user-fill stream is passed later, to Run.
func New(client exchange.Client, book *margin.Book, registry *strategy.Registry, takerFeeRate float64,
	updatesOut chan<- frontend.Update, log zerolog.Logger) *Bot {
	return &Bot{
		client:        client,
		registry:      registry,
		book:          book,
		markets:       make(map[string]*marketHandle),
		session:       make(map[string]frontend.SessionEntry),
		In:            make(chan frontend.Event, 4096),
		updatesOut:    updatesOut,
		marketUpdates: make(chan marketUpdateEnvelope, 256),
		takerFeeRate:  takerFeeRate,
		log:           log.With().Str("component", "bot").Logger(),
	}
}

// Run drives the Bot's event loop, the periodic margin sync, and the
// user-fill stream, until ctx is cancelled. Exchange-originated events are
// biased ahead of control events within one select turn, matching the
// "exchange events processed before control events" policy.
func (b *Bot) Run(ctx context.Context, walletAddr string) {
	fillsID, fills, err := b.client.SubscribeUserFills(ctx, walletAddr)
	if err != nil {
		b.log.Error().Err(err).Msg("subscribe user fills failed, liquidation routing disabled")
		fills = nil
	} else {
		defer b.client.Unsubscribe(context.Background(), fillsID)
	}

	ticker := time.NewTicker(marginSyncInterval)
	defer ticker.Stop()

	for {
		if fills != nil {
			select {
			case batch, ok := <-fills:
				if !ok {
					fills = nil
					continue
				}
				b.onFillBatch(batch)
				continue
			default:
			}
		}

		select {
		case batch, ok := <-fills:
			if !ok {
				fills = nil
				continue
			}
			b.onFillBatch(batch)
		case env := <-b.marketUpdates:
			b.onMarketUpdate(env.asset, env.update)
		case ev := <-b.In:
			b.onEvent(ctx, ev)
		case <-ticker.C:
			b.syncMargin(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// onFillBatch groups a non-snapshot fill batch by coin, filters to
// liquidation-marked entries, aggregates per coin, and routes each
// aggregate to its Market. Fills on unknown markets are dropped silently.
func (b *Bot) onFillBatch(batch exchange.FillBatch) {
	if batch.IsSnapshot {
		return
	}
	byCoin := make(map[string][]trade.RawFill)
	for _, f := range batch.Fills {
		if !f.Liquidation {
			continue
		}
		coin := assets.Canonicalize(f.Coin)
		size, szErr := parseWireFloat(f.Size)
		price, pxErr := parseWireFloat(f.Price)
		if szErr != nil || pxErr != nil {
			continue
		}
		byCoin[coin] = append(byCoin[coin], trade.RawFill{Coin: coin, Side: f.Side, Size: size, Price: price, Liquidation: true})
	}

	for coin, fills := range byCoin {
		agg := trade.AggregateLiquidation(fills)
		b.mu.Lock()
		h, ok := b.markets[coin]
		b.mu.Unlock()
		if !ok {
			continue // unknown asset: silently dropped
		}
		h.mkt.ReceiveLiquidation(agg)
	}
}

func parseWireFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// onMarketUpdate translates a market.Update into a frontend.Update, updates
// the session snapshot, and forwards it to the application sink. MarginUpdate
// is routed through the Margin Book's update_asset before being re-emitted.
func (b *Bot) onMarketUpdate(asset string, u market.Update) {
	switch u.Kind {
	case market.UpdateInitMarket:
		b.mu.Lock()
		b.session[asset] = frontend.SessionEntry{Asset: asset, Margin: u.InitMargin}
		b.mu.Unlock()
		b.updatesOut <- frontend.ConfirmMarket(asset)

	case market.UpdatePriceUpdate:
		b.mu.Lock()
		entry := b.session[asset]
		entry.Asset = asset
		entry.Price = u.Price
		b.session[asset] = entry
		b.mu.Unlock()
		b.updatesOut <- frontend.NewPriceUpdate(asset, u.Price)

	case market.UpdateTradeUpdate:
		b.mu.Lock()
		entry := b.session[asset]
		entry.History = append(entry.History, u.TradeInfo)
		b.session[asset] = entry
		b.mu.Unlock()
		b.updatesOut <- frontend.NewTradeInfo(asset, u.TradeInfo)

	case market.UpdateMarginUpdate:
		newAmount, err := b.book.UpdateAsset(context.Background(), asset, u.Margin)
		if err != nil {
			b.log.Error().Err(err).Str("asset", asset).Msg("margin book update_asset failed")
			b.updatesOut <- frontend.NewUserError(err.Error())
			return
		}
		b.mu.Lock()
		entry := b.session[asset]
		entry.Margin = newAmount
		b.session[asset] = entry
		b.mu.Unlock()
		b.updatesOut <- frontend.NewMarketMargin(asset, newAmount)

	case market.UpdateRelayToFrontend:
		b.updatesOut <- u.Frontend
	}
}

func (b *Bot) syncMargin(ctx context.Context) {
	if err := b.book.Sync(ctx); err != nil {
		b.log.Error().Err(err).Msg("margin sync failed")
		b.updatesOut <- frontend.NewUserError(err.Error())
		return
	}
	b.updatesOut <- frontend.NewTotalMargin(b.book.Free())
}

// onEvent dispatches one inbound control Event.
func (b *Bot) onEvent(ctx context.Context, ev frontend.Event) {
	switch ev.Kind {
	case frontend.EventAddMarket:
		b.addMarket(ctx, *ev.AddMarket)
	case frontend.EventToggleMarket:
		b.forwardOrWarn(ev.Asset, frontend.MarketComm{Kind: frontend.MCToggle, ActorIP: ev.ActorIP, ActorKeyID: ev.ActorKeyID})
	case frontend.EventRemoveMarket:
		b.removeMarket(ctx, ev.Asset, ev.ActorIP, ev.ActorKeyID)
	case frontend.EventMarketComm:
		cmd := *ev.MarketComm
		cmd.ActorIP, cmd.ActorKeyID = ev.ActorIP, ev.ActorKeyID
		b.forwardOrWarn(ev.Asset, cmd)
	case frontend.EventManualUpdateMargin:
		b.manualUpdateMargin(ctx, *ev.ManualMargin)
	case frontend.EventPauseAll:
		b.broadcast(frontend.MarketComm{Kind: frontend.MCPause, ActorIP: ev.ActorIP, ActorKeyID: ev.ActorKeyID})
	case frontend.EventResumeAll:
		b.broadcast(frontend.MarketComm{Kind: frontend.MCResume, ActorIP: ev.ActorIP, ActorKeyID: ev.ActorKeyID})
	case frontend.EventCloseAll:
		b.closeAll(ev.ActorIP, ev.ActorKeyID)
	case frontend.EventGetSession:
		b.updatesOut <- frontend.NewLoadSession(b.sessionSnapshot())
	}
}

func (b *Bot) forwardOrWarn(asset string, cmd frontend.MarketComm) {
	asset = assets.Canonicalize(asset)
	b.mu.Lock()
	h, ok := b.markets[asset]
	b.mu.Unlock()
	if !ok {
		b.log.Warn().Str("asset", asset).Msg("command for unknown market dropped")
		return
	}
	h.mkt.In <- cmd
}

func (b *Bot) broadcast(cmd frontend.MarketComm) {
	b.mu.Lock()
	handles := make([]*marketHandle, 0, len(b.markets))
	for _, h := range b.markets {
		handles = append(handles, h)
	}
	b.mu.Unlock()
	for _, h := range handles {
		h.mkt.In <- cmd
	}
}

func (b *Bot) manualUpdateMargin(ctx context.Context, req frontend.ManualMarginUpdate) {
	asset := assets.Canonicalize(req.Asset)
	newAmount, err := b.book.UpdateAsset(ctx, asset, req.Amount)
	if err != nil {
		b.updatesOut <- frontend.NewUserError(err.Error())
		return
	}
	b.forwardOrWarn(asset, frontend.MarketComm{Kind: frontend.MCUpdateMargin, Margin: newAmount})
}

// addMarket wires a new per-asset Market worker into the Bot.
func (b *Bot) addMarket(ctx context.Context, info frontend.AddMarketInfo) {
	asset := assets.Canonicalize(info.Asset)

	b.mu.Lock()
	_, exists := b.markets[asset]
	b.mu.Unlock()
	if exists {
		return // duplicate AddMarket is a silent no-op
	}

	if _, ok := assets.Get(asset); !ok {
		b.updatesOut <- frontend.NewUserError((&perrors.AssetNotFoundError{Asset: asset}).Error())
		return
	}

	reserved, err := b.book.Allocate(ctx, asset, info.MarginAlloc.ToAllocation())
	if err != nil {
		b.updatesOut <- frontend.NewUserError(err.Error())
		return
	}

	strat, err := b.registry.New(info.TradeParams.Strategy)
	if err != nil {
		b.book.Remove(asset)
		b.updatesOut <- frontend.NewUserError(err.Error())
		return
	}

	baseTF, err := timeframe.Parse(info.TradeParams.TimeFrame)
	if err != nil {
		b.book.Remove(asset)
		b.updatesOut <- frontend.NewUserError(err.Error())
		return
	}

	idxIDs := buildIndexIds(info.Config)

	marketUpdates := make(chan market.Update, 256)
	mkt, err := market.New(ctx, asset, b.client, strat, baseTF, info.TradeParams.Leverage, reserved, b.takerFeeRate, idxIDs, marketUpdates, b.log)
	if err != nil {
		b.book.Remove(asset)
		b.updatesOut <- frontend.NewUserError(err.Error())
		return
	}

	b.mu.Lock()
	b.markets[asset] = &marketHandle{mkt: mkt, asset: asset}
	b.mu.Unlock()

	go b.relayMarket(asset, marketUpdates)
	go mkt.Run(ctx)
}

func (b *Bot) relayMarket(asset string, updates <-chan market.Update) {
	for u := range updates {
		b.marketUpdates <- marketUpdateEnvelope{asset: asset, update: u}
	}
}

func (b *Bot) removeMarket(ctx context.Context, asset, actorIP, actorKeyID string) {
	asset = assets.Canonicalize(asset)
	b.mu.Lock()
	h, ok := b.markets[asset]
	if ok {
		delete(b.markets, asset)
		delete(b.session, asset)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	// Fire-and-forget: this does not await the worker's exit before
	// returning, so a slow-to-drain Market may still emit one final update
	// after the map entry is gone. See DESIGN.md.
	h.mkt.In <- frontend.MarketComm{Kind: frontend.MCClose, ActorIP: actorIP, ActorKeyID: actorKeyID}
	b.book.Remove(asset)
}

func (b *Bot) closeAll(actorIP, actorKeyID string) {
	b.mu.Lock()
	handles := make([]*marketHandle, 0, len(b.markets))
	for _, h := range b.markets {
		handles = append(handles, h)
	}
	b.markets = make(map[string]*marketHandle)
	b.session = make(map[string]frontend.SessionEntry)
	b.mu.Unlock()

	for _, h := range handles {
		h.mkt.In <- frontend.MarketComm{Kind: frontend.MCClose, ActorIP: actorIP, ActorKeyID: actorKeyID}
	}
	b.book.Reset()
}

func (b *Bot) sessionSnapshot() []frontend.SessionEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]frontend.SessionEntry, 0, len(b.session))
	for _, e := range b.session {
		out = append(out, e)
	}
	return out
}

func buildIndexIds(cfg []frontend.IndicatorConfig) []indicator.IndexId {
	out := make([]indicator.IndexId, 0, len(cfg))
	for _, c := range cfg {
		tf, err := timeframe.Parse(c.TimeFrame)
		if err != nil {
			continue
		}
		out = append(out, indicator.IndexId{Kind: c.Kind, TF: tf})
	}
	return out
}
