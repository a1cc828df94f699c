package market

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/duneflow/perpengine/exchange"
	"github.com/duneflow/perpengine/frontend"
	"github.com/duneflow/perpengine/strategy"
	"github.com/duneflow/perpengine/timeframe"
	"github.com/duneflow/perpengine/trade"
)

type fakeClient struct {
	candleStream chan exchange.RawCandle
}

func newFakeClient() *fakeClient {
	return &fakeClient{candleStream: make(chan exchange.RawCandle, 16)}
}

func (f *fakeClient) Meta(context.Context) (exchange.Meta, error) { return exchange.Meta{}, nil }

func (f *fakeClient) CandlesSnapshot(context.Context, string, timeframe.TimeFrame, int64, int64) ([]exchange.RawCandle, error) {
	return nil, nil
}

func (f *fakeClient) SubscribeCandle(context.Context, string, timeframe.TimeFrame) (string, <-chan exchange.RawCandle, error) {
	return "sub-1", f.candleStream, nil
}

func (f *fakeClient) Unsubscribe(context.Context, string) error { return nil }

func (f *fakeClient) SubscribeUserFills(context.Context, string) (string, <-chan exchange.FillBatch, error) {
	ch := make(chan exchange.FillBatch)
	return "fills-1", ch, nil
}

func (f *fakeClient) UserState(context.Context, string) (exchange.UserState, error) {
	return exchange.UserState{AccountValue: 1000}, nil
}

func (f *fakeClient) UserFees(context.Context, string) (float64, float64, error) { return 0.0002, 0.0005, nil }

func (f *fakeClient) MarketOpen(_ context.Context, _ string, isLong bool, size, _ float64) (exchange.Filled, bool, error) {
	return exchange.Filled{TotalSize: size, AvgPrice: 100, OrderID: 1}, true, nil
}

func (f *fakeClient) UpdateLeverage(context.Context, string, int, bool) error { return nil }

func TestMarketEmitsInitMarketAndPriceUpdates(t *testing.T) {
	client := newFakeClient()
	updates := make(chan Update, 16)

	m, err := New(context.Background(), "BTC", client, strategy.NewCustom(), timeframe.Min5, 10, 500, 0.0005, nil, updates, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	go m.Run(context.Background())

	select {
	case u := <-updates:
		if u.Kind != UpdateInitMarket || u.Asset != "BTC" {
			t.Fatalf("expected InitMarket first, got %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("expected InitMarket update")
	}

	client.candleStream <- exchange.RawCandle{Open: "100", High: "101", Low: "99", Close: "100.5"}

	select {
	case u := <-updates:
		if u.Kind != UpdatePriceUpdate || u.Price != 100.5 {
			t.Fatalf("expected PriceUpdate at 100.5, got %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a PriceUpdate after the first candle")
	}
}

func TestMarketCloseDrainsExecutorAndTerminates(t *testing.T) {
	client := newFakeClient()
	updates := make(chan Update, 16)

	m, err := New(context.Background(), "BTC", client, strategy.NewCustom(), timeframe.Min5, 10, 500, 0.0005, nil, updates, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	<-updates // drain InitMarket

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	m.In <- frontend.MarketComm{Kind: frontend.MCClose}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close must terminate Market.Run")
	}
}

// TestMarketAccumulatesMarginLocallyAcrossTrades verifies that Market tracks
// its own running margin total from each trade's PnL, rather than reading an
// authoritative copy back from the Signal Engine.
func TestMarketAccumulatesMarginLocallyAcrossTrades(t *testing.T) {
	client := newFakeClient()
	updates := make(chan Update, 16)

	m, err := New(context.Background(), "BTC", client, strategy.NewCustom(), timeframe.Min5, 10, 500, 0.0005, nil, updates, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	<-updates // drain InitMarket

	go m.Run(context.Background())

	m.tradeIn <- trade.Info{PnL: 25}
	if got := drainUntilMarginUpdate(t, updates); got != 525 {
		t.Fatalf("expected margin 525 after first trade, got %v", got)
	}

	m.tradeIn <- trade.Info{PnL: -10}
	if got := drainUntilMarginUpdate(t, updates); got != 515 {
		t.Fatalf("expected margin 515 after second trade, got %v", got)
	}
}

func drainUntilMarginUpdate(t *testing.T, updates <-chan Update) float64 {
	t.Helper()
	for {
		select {
		case u := <-updates:
			if u.Kind == UpdateMarginUpdate {
				return u.Margin
			}
		case <-time.After(time.Second):
			t.Fatal("expected a MarginUpdate")
		}
	}
}
