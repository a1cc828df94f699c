// Package exchange defines the exchange-neutral interface the core control
// plane consumes for market data, order submission, and account state. The
// core never talks to a concrete exchange SDK directly; see binance.go for
// the one adapter this engine ships.
package exchange

import (
	"context"

	"github.com/duneflow/perpengine/timeframe"
)

// AssetInfo is one entry of the exchange's universe metadata.
type AssetInfo struct {
	Name        string
	MaxLeverage int
}

// Meta is the exchange's tradable-universe snapshot.
type Meta struct {
	Universe []AssetInfo
}

// RawCandle is one OHLC sample exactly as the exchange wire format reports
// it: numeric fields transmitted as strings, parsed by the caller. This
// mirrors the exchange client contract, which reports candles_snapshot
// entries as strings.
type RawCandle struct {
	Open  string
	High  string
	Low   string
	Close string
}

// RawFill is one user-fill entry from the exchange's fill stream, with
// numeric fields still as wire strings.
type RawFill struct {
	Coin        string
	Side        string // "A" = long-taker, "B" = short-taker
	Size        string
	Price       string
	Liquidation bool
}

// FillBatch is one message from the user-fill subscription. IsSnapshot
// marks the very first message of a new subscription, which callers must
// ignore rather than treat as a live fill batch.
type FillBatch struct {
	IsSnapshot bool
	Fills      []RawFill
}

// AssetPosition is one entry of a user's open positions, as reported by
// UserState.
type AssetPosition struct {
	UnrealizedPnL       float64
	CumFundingSinceOpen float64
}

// UserState is the account snapshot UserMargin computations are derived
// from: user equity = account_value - sum(unrealized_pnl - funding_since_open).
type UserState struct {
	AccountValue   float64
	AssetPositions []AssetPosition
}

// Filled is the exchange's classification of a successful market order.
type Filled struct {
	TotalSize float64
	AvgPrice  float64
	OrderID   uint64
}

// Client is the exchange-neutral interface the core consumes. Every method
// here corresponds exactly to one entry of the external exchange client
// contract.
type Client interface {
	Meta(ctx context.Context) (Meta, error)

	CandlesSnapshot(ctx context.Context, asset string, tf timeframe.TimeFrame, startMs, endMs int64) ([]RawCandle, error)
	SubscribeCandle(ctx context.Context, asset string, tf timeframe.TimeFrame) (subID string, stream <-chan RawCandle, err error)
	Unsubscribe(ctx context.Context, subID string) error

	SubscribeUserFills(ctx context.Context, userAddr string) (subID string, stream <-chan FillBatch, err error)

	UserState(ctx context.Context, addr string) (UserState, error)
	UserFees(ctx context.Context, addr string) (addRate, crossRate float64, err error)

	// MarketOpen submits a market order with the given slippage tolerance.
	// filled reports whether the exchange's reply classified as Filled; a
	// non-filled reply never populates Filled meaningfully.
	MarketOpen(ctx context.Context, asset string, isLong bool, size, slippage float64) (fill Filled, filled bool, err error)

	UpdateLeverage(ctx context.Context, asset string, leverage int, cross bool) error
}

// UserMargin computes user equity from a UserState snapshot:
// account_value - sum(unrealized_pnl - cum_funding_since_open).
func UserMargin(state UserState) float64 {
	total := state.AccountValue
	for _, p := range state.AssetPositions {
		total -= p.UnrealizedPnL - p.CumFundingSinceOpen
	}
	return total
}
