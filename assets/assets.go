// Package assets holds the static known-markets set the engine is allowed
// to trade, standing in for the one-time offline fetch of exchange metadata
// (the "meta()" RPC named in the exchange client interface).
package assets

import "strings"

// Meta describes one tradable perpetual-futures market.
type Meta struct {
	// Symbol is the canonical (trimmed, upper-cased) market symbol.
	Symbol string
	// MaxLeverage is the exchange-imposed ceiling for this asset.
	MaxLeverage int
	// SizeDecimals is the number of decimal places the exchange accepts for
	// order size on this asset.
	SizeDecimals int
}

// Known is the compile-time universe of tradable assets. It mirrors a
// snapshot of the exchange's meta() response, fetched once offline, per the
// "Known markets" contract: membership is exact and case-sensitive after
// upper-casing.
var Known = map[string]Meta{
	"BTC":  {Symbol: "BTC", MaxLeverage: 50, SizeDecimals: 5},
	"ETH":  {Symbol: "ETH", MaxLeverage: 50, SizeDecimals: 4},
	"SOL":  {Symbol: "SOL", MaxLeverage: 20, SizeDecimals: 2},
	"AVAX": {Symbol: "AVAX", MaxLeverage: 20, SizeDecimals: 2},
	"ARB":  {Symbol: "ARB", MaxLeverage: 20, SizeDecimals: 1},
	"DOGE": {Symbol: "DOGE", MaxLeverage: 20, SizeDecimals: 0},
	"OP":   {Symbol: "OP", MaxLeverage: 20, SizeDecimals: 1},
	"SUI":  {Symbol: "SUI", MaxLeverage: 20, SizeDecimals: 1},
}

// Canonicalize trims and upper-cases a user-supplied symbol. Every ingress
// point (HTTP command decode, fill routing, market lookup) must canonicalize
// before comparing or indexing.
func Canonicalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Get resolves a canonical symbol to its metadata. ok is false when the
// asset is unknown, signaling callers to raise AssetNotFoundError.
func Get(symbol string) (Meta, bool) {
	m, ok := Known[Canonicalize(symbol)]
	return m, ok
}
