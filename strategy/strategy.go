// Package strategy implements the pure decision function the Signal Engine
// calls on every tick: (indicator values, price, exec params) -> at most one
// trade command.
package strategy

import (
	"github.com/duneflow/perpengine/indicator"
	"github.com/duneflow/perpengine/trade"
)

// Strategy is a pure function of the current indicator snapshot, price, and
// execution parameters. It must be deterministic given its inputs and must
// never block or mutate shared state.
type Strategy interface {
	Name() string
	GenerateSignal(values []indicator.Value, price float64, params trade.ExecParams) (*trade.Command, bool)
}

// Risk tunes how aggressively the reference strategy enters a position.
type Risk int

const (
	RiskLow Risk = iota
	RiskNormal
	RiskHigh
)

// Style flags the holding-period character of a strategy instance. Only
// Scalp drives entry logic today; Swing is carried as a configuration knob
// for a future entry predicate.
type Style int

const (
	StyleScalp Style = iota
	StyleSwing
)

// Stance is the operator's directional bias; it can suppress an entry that
// would otherwise fire (see S3).
type Stance int

const (
	StanceBull Stance = iota
	StanceBear
	StanceNeutral
)

// firstByKind returns the first value in values whose Kind matches k.
func firstByKind(values []indicator.Value, k indicator.Kind) (indicator.Value, bool) {
	for _, v := range values {
		if v.Kind == k {
			return v, true
		}
	}
	return indicator.Value{}, false
}
