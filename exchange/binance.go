package exchange

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/duneflow/perpengine/assets"
	"github.com/duneflow/perpengine/timeframe"
)

// binanceAPI is the narrow slice of the futures SDK this adapter calls, kept
// as a seam so tests can fake the wire without a live connection.
type binanceAPI interface {
	ExchangeInfo(ctx context.Context) (*futures.ExchangeInfoResponse, error)
	Klines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error)
	Account(ctx context.Context) (*futures.Account, error)
	CommissionRate(ctx context.Context, symbol string) (*futures.CommissionRateResponse, error)
	MarketOrder(ctx context.Context, symbol string, side futures.SideType, quantity string) (*futures.CreateOrderResponse, error)
	ChangeLeverage(ctx context.Context, symbol string, leverage int, cross bool) error
	StartUserStream(ctx context.Context) (listenKey string, err error)
}

type defaultBinanceAPI struct {
	client *futures.Client
}

func (a *defaultBinanceAPI) ExchangeInfo(ctx context.Context) (*futures.ExchangeInfoResponse, error) {
	return a.client.NewExchangeInfoService().Do(ctx)
}

func (a *defaultBinanceAPI) Klines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error) {
	svc := a.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit)
	if startMs > 0 {
		svc = svc.StartTime(startMs)
	}
	if endMs > 0 {
		svc = svc.EndTime(endMs)
	}
	return svc.Do(ctx)
}

func (a *defaultBinanceAPI) Account(ctx context.Context) (*futures.Account, error) {
	return a.client.NewGetAccountService().Do(ctx)
}

func (a *defaultBinanceAPI) CommissionRate(ctx context.Context, symbol string) (*futures.CommissionRateResponse, error) {
	return a.client.NewCommissionRateService().Symbol(symbol).Do(ctx)
}

func (a *defaultBinanceAPI) MarketOrder(ctx context.Context, symbol string, side futures.SideType, quantity string) (*futures.CreateOrderResponse, error) {
	return a.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(quantity).
		Do(ctx)
}

func (a *defaultBinanceAPI) ChangeLeverage(ctx context.Context, symbol string, leverage int, cross bool) error {
	if _, err := a.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx); err != nil {
		return err
	}
	marginType := futures.MarginTypeIsolated
	if cross {
		marginType = futures.MarginTypeCrossed
	}
	if err := a.client.NewChangeMarginTypeService().Symbol(symbol).MarginType(marginType).Do(ctx); err != nil {
		return err
	}
	return nil
}

func (a *defaultBinanceAPI) StartUserStream(ctx context.Context) (string, error) {
	return a.client.NewStartUserStreamService().Do(ctx)
}

// BinanceClient adapts the adshao/go-binance/v2/futures SDK to exchange.Client:
// a thin seam interface around the SDK plus request rate limiting, covering
// the futures USDⓈ-M endpoints this engine actually trades.
type BinanceClient struct {
	api         binanceAPI
	rateLimiter time.Time
	minInterval time.Duration

	mu   sync.Mutex
	subs map[string]chan<- struct{} // subID -> stop channel, closed on Unsubscribe

	log zerolog.Logger
}

// NewBinanceClient builds a BinanceClient against Binance USDⓈ-M futures.
func NewBinanceClient(apiKey, apiSecret string, log zerolog.Logger) *BinanceClient {
	client := futures.NewClient(apiKey, apiSecret)
	return &BinanceClient{
		api:         &defaultBinanceAPI{client: client},
		minInterval: 50 * time.Millisecond, // ~20 requests/second max, well under Binance weight limits
		subs:        make(map[string]chan<- struct{}),
		log:         log.With().Str("component", "exchange_binance").Logger(),
	}
}

func (c *BinanceClient) rateLimit() {
	if !c.rateLimiter.IsZero() {
		if elapsed := time.Since(c.rateLimiter); elapsed < c.minInterval {
			time.Sleep(c.minInterval - elapsed)
		}
	}
	c.rateLimiter = time.Now()
}

func (c *BinanceClient) Meta(ctx context.Context) (Meta, error) {
	c.rateLimit()
	info, err := c.api.ExchangeInfo(ctx)
	if err != nil {
		return Meta{}, fmt.Errorf("exchange info: %w", err)
	}
	m := Meta{Universe: make([]AssetInfo, 0, len(info.Symbols))}
	for _, s := range info.Symbols {
		lev := 1
		for _, f := range s.Filters {
			if maxQty, ok := f["maxQty"]; ok {
				_ = maxQty // leverage brackets require a separate per-symbol endpoint; default conservatively
			}
		}
		m.Universe = append(m.Universe, AssetInfo{Name: s.BaseAsset, MaxLeverage: lev})
	}
	return m, nil
}

func binanceInterval(tf timeframe.TimeFrame) string {
	return tf.String()
}

func (c *BinanceClient) CandlesSnapshot(ctx context.Context, asset string, tf timeframe.TimeFrame, startMs, endMs int64) ([]RawCandle, error) {
	c.rateLimit()
	symbol := asset + "USDT"
	klines, err := c.api.Klines(ctx, symbol, binanceInterval(tf), startMs, endMs, 1000)
	if err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}
	out := make([]RawCandle, 0, len(klines))
	for _, k := range klines {
		out = append(out, RawCandle{Open: k.Open, High: k.High, Low: k.Low, Close: k.Close})
	}
	return out, nil
}

// SubscribeCandle opens a live kline stream for asset/tf. The returned
// channel carries one RawCandle per closed kline (Binance's k.x==true flag);
// Unsubscribe(subID) tears it down.
func (c *BinanceClient) SubscribeCandle(ctx context.Context, asset string, tf timeframe.TimeFrame) (string, <-chan RawCandle, error) {
	symbol := asset + "USDT"
	out := make(chan RawCandle, 64)
	stop := make(chan struct{})

	handler := func(event *futures.WsKlineEvent) {
		if !event.Kline.IsFinal {
			return
		}
		select {
		case out <- RawCandle{Open: event.Kline.Open, High: event.Kline.High, Low: event.Kline.Low, Close: event.Kline.Close}:
		default:
			c.log.Warn().Str("asset", asset).Msg("candle stream consumer lagging, tick dropped")
		}
	}
	errHandler := func(err error) {
		c.log.Error().Err(err).Str("asset", asset).Msg("kline stream error")
	}

	doneC, stopC, err := futures.WsKlineServe(symbol, binanceInterval(tf), handler, errHandler)
	if err != nil {
		close(out)
		return "", nil, fmt.Errorf("subscribe candle %s: %w", symbol, err)
	}

	subID := uuid.NewString()
	c.mu.Lock()
	c.subs[subID] = stop
	c.mu.Unlock()

	go func() {
		select {
		case <-stop:
			close(stopC)
		case <-doneC:
		case <-ctx.Done():
			close(stopC)
		}
		close(out)
	}()

	return subID, out, nil
}

func (c *BinanceClient) Unsubscribe(_ context.Context, subID string) error {
	c.mu.Lock()
	stop, ok := c.subs[subID]
	delete(c.subs, subID)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown subscription %q", subID)
	}
	close(stop)
	return nil
}

// SubscribeUserFills opens the user data stream and translates order-trade
// update events into FillBatch deliveries. The first delivery is marked
// IsSnapshot, matching the exchange client contract's warning that the
// initial message of a fresh subscription is not a live fill.
func (c *BinanceClient) SubscribeUserFills(ctx context.Context, _ string) (string, <-chan FillBatch, error) {
	listenKey, err := c.api.StartUserStream(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("start user stream: %w", err)
	}

	out := make(chan FillBatch, 16)
	stop := make(chan struct{})
	first := true

	handler := func(event *futures.WsUserDataEvent) {
		if event.Event != futures.UserDataEventTypeOrderTradeUpdate {
			return
		}
		o := event.OrderTradeUpdate
		if o.Status != futures.OrderStatusTypeFilled && o.Status != futures.OrderStatusTypePartiallyFilled {
			return
		}
		side := "B"
		if o.Side == futures.SideTypeBuy {
			side = "A"
		}
		batch := FillBatch{
			IsSnapshot: first,
			Fills: []RawFill{{
				Coin:        o.Symbol,
				Side:        side,
				Size:        o.LastFilledQty,
				Price:       o.LastFilledPrice,
				Liquidation: o.IsLiquidationOrder,
			}},
		}
		first = false
		select {
		case out <- batch:
		default:
			c.log.Warn().Msg("user fill stream consumer lagging, fill dropped")
		}
	}
	errHandler := func(err error) {
		c.log.Error().Err(err).Msg("user data stream error")
	}

	doneC, stopC, err := futures.WsUserDataServe(listenKey, handler, errHandler)
	if err != nil {
		close(out)
		return "", nil, fmt.Errorf("subscribe user fills: %w", err)
	}

	subID := uuid.NewString()
	c.mu.Lock()
	c.subs[subID] = stop
	c.mu.Unlock()

	go func() {
		select {
		case <-stop:
			close(stopC)
		case <-doneC:
		case <-ctx.Done():
			close(stopC)
		}
		close(out)
	}()

	return subID, out, nil
}

func (c *BinanceClient) UserState(ctx context.Context, _ string) (UserState, error) {
	c.rateLimit()
	acct, err := c.api.Account(ctx)
	if err != nil {
		return UserState{}, fmt.Errorf("account: %w", err)
	}
	totalVal, err := strconv.ParseFloat(acct.TotalWalletBalance, 64)
	if err != nil {
		return UserState{}, &genericParseError{msg: "account total wallet balance: " + err.Error()}
	}
	state := UserState{AccountValue: totalVal}
	for _, p := range acct.Positions {
		upnl, err := strconv.ParseFloat(p.UnrealizedProfit, 64)
		if err != nil {
			continue
		}
		state.AssetPositions = append(state.AssetPositions, AssetPosition{UnrealizedPnL: upnl})
	}
	return state, nil
}

func (c *BinanceClient) UserFees(ctx context.Context, addr string) (float64, float64, error) {
	c.rateLimit()
	rate, err := c.api.CommissionRate(ctx, addr)
	if err != nil {
		return 0, 0, fmt.Errorf("commission rate: %w", err)
	}
	maker, err := strconv.ParseFloat(rate.MakerCommissionRate, 64)
	if err != nil {
		return 0, 0, &genericParseError{msg: "maker commission rate: " + err.Error()}
	}
	taker, err := strconv.ParseFloat(rate.TakerCommissionRate, 64)
	if err != nil {
		return 0, 0, &genericParseError{msg: "taker commission rate: " + err.Error()}
	}
	return maker, taker, nil
}

// MarketOpen submits a plain market order; the slippage argument is not
// applied, so the fill price is not bounded by it.
func (c *BinanceClient) MarketOpen(ctx context.Context, asset string, isLong bool, size, _ float64) (Filled, bool, error) {
	c.rateLimit()
	symbol := asset + "USDT"
	side := futures.SideTypeSell
	if isLong {
		side = futures.SideTypeBuy
	}
	resp, err := c.api.MarketOrder(ctx, symbol, side, formatSize(asset, size))
	if err != nil {
		return Filled{}, false, fmt.Errorf("market order %s: %w", symbol, err)
	}
	filled := resp.Status == futures.OrderStatusTypeFilled
	if !filled {
		return Filled{}, false, nil
	}
	avgPrice, err := strconv.ParseFloat(resp.AvgPrice, 64)
	if err != nil {
		return Filled{}, false, &genericParseError{msg: "fill avg price: " + err.Error()}
	}
	totalSize, err := strconv.ParseFloat(resp.OrigQuantity, 64)
	if err != nil {
		return Filled{}, false, &genericParseError{msg: "fill total size: " + err.Error()}
	}
	return Filled{TotalSize: totalSize, AvgPrice: avgPrice, OrderID: uint64(resp.OrderID)}, true, nil
}

func (c *BinanceClient) UpdateLeverage(ctx context.Context, asset string, leverage int, cross bool) error {
	c.rateLimit()
	symbol := asset + "USDT"
	if err := c.api.ChangeLeverage(ctx, symbol, leverage, cross); err != nil {
		return fmt.Errorf("update leverage %s: %w", symbol, err)
	}
	return nil
}

// formatSize renders size to the exact decimal precision the exchange
// accepts for asset, rounding with decimal.Decimal rather than
// strconv.FormatFloat so a binary-float artifact (e.g. 0.1+0.2 drift) can
// never push an order a decimal place past what the exchange allows.
// Unknown assets fall back to full float precision, matching the original
// untruncated behavior for anything outside the known-markets set.
func formatSize(asset string, size float64) string {
	meta, ok := assets.Get(asset)
	if !ok {
		return strconv.FormatFloat(size, 'f', -1, 64)
	}
	return decimal.NewFromFloat(size).Round(int32(meta.SizeDecimals)).String()
}

// genericParseError adapts perrors.GenericParseError without importing the
// perrors package, avoiding a needless cross-package dependency for a wire
// adapter that should stand alone. It satisfies error directly.
type genericParseError struct{ msg string }

func (e *genericParseError) Error() string { return e.msg }
