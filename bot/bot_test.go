package bot

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/duneflow/perpengine/exchange"
	"github.com/duneflow/perpengine/frontend"
	"github.com/duneflow/perpengine/margin"
	"github.com/duneflow/perpengine/strategy"
	"github.com/duneflow/perpengine/timeframe"
)

type fakeEquity struct{ value float64 }

func (f *fakeEquity) UserMargin(context.Context) (float64, error) { return f.value, nil }

type fakeExchangeClient struct {
	candleStream chan exchange.RawCandle
	fillsStream  chan exchange.FillBatch
}

func newFakeExchangeClient() *fakeExchangeClient {
	return &fakeExchangeClient{
		candleStream: make(chan exchange.RawCandle, 16),
		fillsStream:  make(chan exchange.FillBatch, 16),
	}
}

func (f *fakeExchangeClient) Meta(context.Context) (exchange.Meta, error) { return exchange.Meta{}, nil }

func (f *fakeExchangeClient) CandlesSnapshot(context.Context, string, timeframe.TimeFrame, int64, int64) ([]exchange.RawCandle, error) {
	return nil, nil
}

func (f *fakeExchangeClient) SubscribeCandle(context.Context, string, timeframe.TimeFrame) (string, <-chan exchange.RawCandle, error) {
	return "sub-1", f.candleStream, nil
}

func (f *fakeExchangeClient) Unsubscribe(context.Context, string) error { return nil }

func (f *fakeExchangeClient) SubscribeUserFills(context.Context, string) (string, <-chan exchange.FillBatch, error) {
	return "fills-1", f.fillsStream, nil
}

func (f *fakeExchangeClient) UserState(context.Context, string) (exchange.UserState, error) {
	return exchange.UserState{AccountValue: 1000}, nil
}

func (f *fakeExchangeClient) UserFees(context.Context, string) (float64, float64, error) {
	return 0.0002, 0.0005, nil
}

func (f *fakeExchangeClient) MarketOpen(_ context.Context, _ string, _ bool, size, _ float64) (exchange.Filled, bool, error) {
	return exchange.Filled{TotalSize: size, AvgPrice: 100, OrderID: 1}, true, nil
}

func (f *fakeExchangeClient) UpdateLeverage(context.Context, string, int, bool) error { return nil }

func newTestBot(equity float64) (*Bot, chan frontend.Update) {
	client := newFakeExchangeClient()
	book := margin.New(&fakeEquity{value: equity})
	registry := strategy.NewRegistry()
	updates := make(chan frontend.Update, 64)
	b := New(client, book, registry, 0.0005, updates, zerolog.Nop())
	return b, updates
}

// TestAddMarketAllocatesMarginAndConfirms exercises Scenario S1: a fractional
// AddMarket request reserves the corresponding slice of on-chain equity and
// the new Market's startup sequence reaches the frontend as confirmMarket.
func TestAddMarketAllocatesMarginAndConfirms(t *testing.T) {
	b, updates := newTestBot(1000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, "0xwallet")

	b.In <- frontend.Event{
		Kind: frontend.EventAddMarket,
		AddMarket: &frontend.AddMarketInfo{
			Asset:       "btc",
			MarginAlloc: frontend.MarginAlloc{Kind: frontend.MarginAllocFraction, Fraction: 0.5},
			TradeParams: frontend.TradeParams{Strategy: "custom", Leverage: 10, TimeFrame: "5m"},
		},
	}

	select {
	case u := <-updates:
		if u.Kind != frontend.UpdateConfirmMarket || u.Asset != "BTC" {
			t.Fatalf("expected confirmMarket for BTC, got %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected confirmMarket update")
	}

	if free := b.book.Free(); free >= 1000 {
		t.Fatalf("expected margin reserved, free=%.2f", free)
	}
}

// TestAddMarketDuplicateIsSilentNoOp covers the "reject duplicates as a
// silent no-op" branch of AddMarket.
func TestAddMarketDuplicateIsSilentNoOp(t *testing.T) {
	b, updates := newTestBot(1000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, "0xwallet")

	add := frontend.Event{
		Kind: frontend.EventAddMarket,
		AddMarket: &frontend.AddMarketInfo{
			Asset:       "ETH",
			MarginAlloc: frontend.MarginAlloc{Kind: frontend.MarginAllocFraction, Fraction: 0.1},
			TradeParams: frontend.TradeParams{Strategy: "custom", Leverage: 5, TimeFrame: "1m"},
		},
	}
	b.In <- add
	select {
	case u := <-updates:
		if u.Kind != frontend.UpdateConfirmMarket {
			t.Fatalf("expected confirmMarket, got %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected first confirmMarket")
	}

	b.In <- add
	select {
	case u := <-updates:
		t.Fatalf("duplicate AddMarket must be a silent no-op, got %+v", u)
	case <-time.After(300 * time.Millisecond):
	}
}

// TestAddMarketUnknownAssetYieldsUserError covers the AssetNotFoundError
// branch of AddMarket.
func TestAddMarketUnknownAssetYieldsUserError(t *testing.T) {
	b, updates := newTestBot(1000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, "0xwallet")

	b.In <- frontend.Event{
		Kind: frontend.EventAddMarket,
		AddMarket: &frontend.AddMarketInfo{
			Asset:       "NOPE",
			MarginAlloc: frontend.MarginAlloc{Kind: frontend.MarginAllocAmount, Amount: 100},
			TradeParams: frontend.TradeParams{Strategy: "custom", Leverage: 5, TimeFrame: "1m"},
		},
	}

	select {
	case u := <-updates:
		if u.Kind != frontend.UpdateUserError {
			t.Fatalf("expected userError, got %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a userError update")
	}
}

// TestGetSessionReturnsEmptySnapshot exercises the GetSession path with no
// markets added yet.
func TestGetSessionReturnsEmptySnapshot(t *testing.T) {
	b, updates := newTestBot(1000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, "0xwallet")

	b.In <- frontend.Event{Kind: frontend.EventGetSession}
	select {
	case u := <-updates:
		if u.Kind != frontend.UpdateLoadSession || len(u.Session) != 0 {
			t.Fatalf("expected empty loadSession, got %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected loadSession update")
	}
}
