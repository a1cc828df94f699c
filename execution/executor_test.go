package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/duneflow/perpengine/exchange"
	"github.com/duneflow/perpengine/trade"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderer struct {
	mu     sync.Mutex
	nextID uint64
	price  float64
	fail   bool
}

func (f *fakeOrderer) MarketOpen(_ context.Context, _ string, _ bool, size, _ float64) (exchange.Filled, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return exchange.Filled{}, false, assertError{"rejected"}
	}
	f.nextID++
	return exchange.Filled{TotalSize: size, AvgPrice: f.price, OrderID: f.nextID}, true, nil
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

func runExecutor(t *testing.T, client MarketOrderer, out chan trade.Info) *Executor {
	t.Helper()
	ex := New("BTC", client, out, 0.0005, zerolog.Nop())
	go ex.Run(context.Background())
	t.Cleanup(func() { close(ex.in) })
	return ex
}

func TestExecutorOpenThenCloseEmitsTradeInfo(t *testing.T) {
	client := &fakeOrderer{price: 100}
	out := make(chan trade.Info, 4)
	ex := runExecutor(t, client, out)

	ex.In() <- trade.Command{Kind: trade.CommandOpenTrade, Size: 2, IsLong: true}
	time.Sleep(20 * time.Millisecond)
	require.True(t, ex.HasOpenPosition())

	client.price = 110
	ex.In() <- trade.Command{Kind: trade.CommandCloseTrade, Size: 2}

	select {
	case info := <-out:
		assert.InDelta(t, 19.79, info.PnL, 1e-6)
		assert.False(t, ex.HasOpenPosition())
	case <-time.After(time.Second):
		t.Fatal("expected a TradeInfo after close")
	}
}

func TestExecutorAtMostOneOpenPosition(t *testing.T) {
	client := &fakeOrderer{price: 100}
	out := make(chan trade.Info, 4)
	ex := runExecutor(t, client, out)

	ex.In() <- trade.Command{Kind: trade.CommandOpenTrade, Size: 1, IsLong: true}
	time.Sleep(20 * time.Millisecond)
	ex.In() <- trade.Command{Kind: trade.CommandOpenTrade, Size: 1, IsLong: true}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, uint64(1), client.nextID, "a second OpenTrade while open must be ignored")
}

func TestExecutorPauseResumeIsIdentity(t *testing.T) {
	client := &fakeOrderer{price: 100}
	out := make(chan trade.Info, 4)
	ex := runExecutor(t, client, out)

	before := ex.Paused()
	ex.In() <- trade.Command{Kind: trade.CommandPause}
	time.Sleep(10 * time.Millisecond)
	ex.In() <- trade.Command{Kind: trade.CommandResume}
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, before, ex.Paused())
}

func TestExecutorCancelTradeTerminatesLoop(t *testing.T) {
	client := &fakeOrderer{price: 100}
	out := make(chan trade.Info, 4)
	ex := New("BTC", client, out, 0.0005, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		ex.Run(context.Background())
		close(done)
	}()

	ex.In() <- trade.Command{Kind: trade.CommandCancelTrade}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("CancelTrade must terminate the executor loop")
	}
}

func TestExecutorLiquidationClosesOpenPosition(t *testing.T) {
	client := &fakeOrderer{price: 100}
	out := make(chan trade.Info, 4)
	ex := runExecutor(t, client, out)

	ex.In() <- trade.Command{Kind: trade.CommandOpenTrade, Size: 1, IsLong: true}
	time.Sleep(20 * time.Millisecond)

	ex.In() <- trade.Command{Kind: trade.CommandLiquidation, Liquidation: trade.LiquidationFillInfo{Price: 90, Size: 1, IsLong: true}}

	select {
	case info := <-out:
		assert.False(t, ex.HasOpenPosition())
		assert.Less(t, info.PnL, 0.0, "a liquidation below entry price must realize a loss")
	case <-time.After(time.Second):
		t.Fatal("expected a TradeInfo after liquidation")
	}
}
