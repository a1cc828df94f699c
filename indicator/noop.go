package indicator

import "github.com/duneflow/perpengine/candle"

// noopIndicator backstops an unrecognised IndicatorKind; it never reports a
// value, which the Tracker treats the same as "not ready yet".
type noopIndicator struct{}

func newNoop() *noopIndicator                         { return &noopIndicator{} }
func (n *noopIndicator) Load([]candle.Tick)           {}
func (n *noopIndicator) UpdateBeforeClose(candle.Tick) {}
func (n *noopIndicator) UpdateAfterClose(candle.Tick)  {}
func (n *noopIndicator) Value() (Value, bool)          { return Value{}, false }
func (n *noopIndicator) Reset()                        {}
