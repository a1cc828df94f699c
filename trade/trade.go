// Package trade defines the wire and domain types the Signal Engine,
// Executor, and Market worker exchange: trade commands, fill records, and
// the per-asset execution parameters a strategy reads.
package trade

import (
	"math"

	"github.com/duneflow/perpengine/timeframe"
)

// FillType tags how a TradeFillInfo was produced.
type FillType string

const (
	FillOpen        FillType = "Open"
	FillClose       FillType = "Close"
	FillLiquidation FillType = "Liquidation"
)

// TradeFillInfo is one exchange fill: an open, a close, or a liquidation.
type TradeFillInfo struct {
	Price    float64  `json:"price"`
	FillType FillType `json:"fillType"`
	Size     float64  `json:"size"`
	OrderID  uint64   `json:"orderId"`
	IsLong   bool     `json:"isLong"`
}

// LiquidationFillInfo is the aggregated result of grouping an exchange
// user-fill batch by coin and summing the liquidation-marked entries, per
// the liquidation aggregation contract.
type LiquidationFillInfo struct {
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
	OrderID uint64 `json:"orderId"`
	IsLong bool    `json:"isLong"`
}

// AsFill converts an aggregated liquidation into the fill shape the
// Executor's close path consumes.
func (l LiquidationFillInfo) AsFill() TradeFillInfo {
	return TradeFillInfo{Price: l.Price, FillType: FillLiquidation, Size: l.Size, OrderID: l.OrderID, IsLong: l.IsLong}
}

// Info is the record emitted exactly once per position destruction: close by
// explicit command, timed expiry, cancel, or liquidation.
type Info struct {
	OpenPrice  float64  `json:"openPrice"`
	ClosePrice float64  `json:"closePrice"`
	PnL        float64  `json:"pnl"`
	Fee        float64  `json:"fee"`
	IsLong     bool     `json:"isLong"`
	DurationS  *int64   `json:"durationSeconds,omitempty"`
	OpenOID    uint64   `json:"openOrderId"`
	CloseOID   uint64   `json:"closeOrderId"`
}

// MarketInfo pairs a TradeInfo with the asset it belongs to, for the
// asset-scoped stream the Bot fans out to the frontend.
type MarketInfo struct {
	Asset string `json:"asset"`
	Info  Info   `json:"info"`
}

// ExecParams are the execution parameters a strategy reads on every tick:
// current margin, leverage, and the base timeframe.
type ExecParams struct {
	Margin float64            `json:"margin"`
	Lev    int                `json:"leverage"`
	TF     timeframe.TimeFrame `json:"timeFrame"`
}

// ExecParamField tags which field of ExecParams an UpdateExecParams edit
// touches.
type ExecParamField int

const (
	ExecParamMargin ExecParamField = iota
	ExecParamLev
	ExecParamTF
)

// ExecParamEdit carries one field update to apply to ExecParams.
type ExecParamEdit struct {
	Field ExecParamField
	Margin float64
	Lev    int
	TF     timeframe.TimeFrame
}

// Apply mutates params in place per Field.
func (e ExecParamEdit) Apply(params *ExecParams) {
	switch e.Field {
	case ExecParamMargin:
		params.Margin = e.Margin
	case ExecParamLev:
		params.Lev = e.Lev
	case ExecParamTF:
		params.TF = e.TF
	}
}

// CommandKind tags the Command variant.
type CommandKind int

const (
	CommandExecuteTrade CommandKind = iota
	CommandOpenTrade
	CommandCloseTrade
	CommandCancelTrade
	CommandLiquidation
	CommandToggle
	CommandPause
	CommandResume
	// CommandBuildPosition is carried over from the original engine's
	// trade_setup.rs as a reserved, unhandled placeholder, never dispatched.
	CommandBuildPosition
)

// CommandOrigin distinguishes a command the Signal Engine decided on its own
// from one a frontend operator explicitly requested, so the Executor can
// attribute the resulting exchange call correctly in the audit trail.
type CommandOrigin int

const (
	// OriginEngine is the zero value: most commands (ExecuteTrade,
	// OpenTrade, CloseTrade, Liquidation) are the Signal Engine or
	// exchange acting on its own.
	OriginEngine CommandOrigin = iota
	// OriginFrontend marks a command forwarded straight from a frontend
	// marketComm (Toggle/Pause/Resume/Close).
	OriginFrontend
)

// Command is the message the Signal Engine or Market sends to the Executor.
type Command struct {
	Kind   CommandKind
	Origin CommandOrigin

	// ActorIP / ActorKeyID identify the frontend session responsible for an
	// OriginFrontend command, carried from the HTTP request that issued it.
	// Unset (and meaningless) for OriginEngine commands.
	ActorIP    string
	ActorKeyID string

	// ExecuteTrade / OpenTrade / CloseTrade / BuildPosition.
	Size   float64
	IsLong bool
	// ExecuteTrade / BuildPosition duration, in seconds.
	DurationS int64

	// Liquidation.
	Liquidation LiquidationFillInfo
}

// RawFill is one exchange user-fill entry, already parsed from wire
// strings, as delivered by the UserFills subscription.
type RawFill struct {
	Coin        string
	Side        string // "A" = long-taker, "B" = short-taker
	Size        float64
	Price       float64
	Liquidation bool
}

// nearZero mirrors the original aggregator's initialisation sentinel
// (f64::from_bits(1)) instead of a clean 0.0 — see DESIGN.md open
// question 2. Carried over verbatim: results are off by a negligible
// epsilon, intentionally not "fixed".
var nearZero = math.Float64frombits(1)

// AggregateLiquidation groups fills already filtered to one coin and its
// liquidation-marked entries into a single LiquidationFillInfo, per the
// liquidation aggregation contract: is_long from the first fill's side,
// size-weighted average price, summed size, order id fixed at zero.
func AggregateLiquidation(fills []RawFill) LiquidationFillInfo {
	if len(fills) == 0 {
		return LiquidationFillInfo{}
	}
	isLong := fills[0].Side == "A"
	size := nearZero
	total := nearZero
	for _, f := range fills {
		size += f.Size
		total += f.Size * f.Price
	}
	avgPx := total / size
	return LiquidationFillInfo{Price: avgPx, Size: size, OrderID: 0, IsLong: isLong}
}

// CalculatePnL implements the PnL & fee formula: for open fill O and close
// fill C at taker fee rate tau,
//
//	fee = O.size*O.price*tau + C.size*C.price*tau
//	pnl = C.size*(C.price-O.price)*sign(isLong) - fee
func CalculatePnL(open, close TradeFillInfo, takerFeeRate float64) (pnl, fee float64) {
	fee = open.Size*open.Price*takerFeeRate + close.Size*close.Price*takerFeeRate
	sign := -1.0
	if open.IsLong {
		sign = 1.0
	}
	pnl = close.Size*(close.Price-open.Price)*sign - fee
	return pnl, fee
}
