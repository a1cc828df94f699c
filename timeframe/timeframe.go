// Package timeframe defines the closed set of candle durations the engine
// trades on and their total order.
package timeframe

import (
	"fmt"
	"time"
)

// TimeFrame is a discrete candle duration. The zero value is not a valid
// timeframe; always construct one via Parse or the exported constants.
type TimeFrame int

const (
	Min1 TimeFrame = iota + 1
	Min3
	Min5
	Min15
	Min30
	Hour1
	Hour2
	Hour4
	Hour12
	Day1
	Day3
	Week1
	Month1
)

// All lists every timeframe in ascending duration order.
var All = []TimeFrame{Min1, Min3, Min5, Min15, Min30, Hour1, Hour2, Hour4, Hour12, Day1, Day3, Week1, Month1}

var wire = map[TimeFrame]string{
	Min1: "1m", Min3: "3m", Min5: "5m", Min15: "15m", Min30: "30m",
	Hour1: "1h", Hour2: "2h", Hour4: "4h", Hour12: "12h",
	Day1: "1d", Day3: "3d", Week1: "1w", Month1: "1M",
}

var fromWire = func() map[string]TimeFrame {
	m := make(map[string]TimeFrame, len(wire))
	for tf, s := range wire {
		m[s] = tf
	}
	return m
}()

// Seconds is the exact duration of the timeframe in seconds. Month is
// approximated as 30 days, matching the original engine's convention.
func (tf TimeFrame) Seconds() int64 {
	switch tf {
	case Min1:
		return 60
	case Min3:
		return 3 * 60
	case Min5:
		return 5 * 60
	case Min15:
		return 15 * 60
	case Min30:
		return 30 * 60
	case Hour1:
		return 60 * 60
	case Hour2:
		return 2 * 60 * 60
	case Hour4:
		return 4 * 60 * 60
	case Hour12:
		return 12 * 60 * 60
	case Day1:
		return 24 * 60 * 60
	case Day3:
		return 3 * 24 * 60 * 60
	case Week1:
		return 7 * 24 * 60 * 60
	case Month1:
		return 30 * 24 * 60 * 60
	default:
		return 0
	}
}

// Millis is Seconds in milliseconds, the unit the exchange candle stream and
// Tracker.next_close boundary arithmetic use.
func (tf TimeFrame) Millis() int64 { return tf.Seconds() * 1000 }

// Duration returns the timeframe as a time.Duration.
func (tf TimeFrame) Duration() time.Duration {
	return time.Duration(tf.Millis()) * time.Millisecond
}

// String returns the wire form ("1m", "3d", "1M", ...).
func (tf TimeFrame) String() string {
	if s, ok := wire[tf]; ok {
		return s
	}
	return "invalid"
}

// Valid reports whether tf is one of the closed enumeration's members.
func (tf TimeFrame) Valid() bool {
	_, ok := wire[tf]
	return ok
}

// Parse resolves a wire string to a TimeFrame.
func Parse(s string) (TimeFrame, error) {
	if tf, ok := fromWire[s]; ok {
		return tf, nil
	}
	return 0, fmt.Errorf("timeframe: unknown wire form %q", s)
}

// MarshalJSON renders the wire string form.
func (tf TimeFrame) MarshalJSON() ([]byte, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("timeframe: cannot marshal invalid value %d", int(tf))
	}
	return []byte(`"` + tf.String() + `"`), nil
}

// UnmarshalJSON parses the wire string form.
func (tf *TimeFrame) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("timeframe: malformed JSON value %s", b)
	}
	parsed, err := Parse(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*tf = parsed
	return nil
}

// NextClose computes the smallest multiple of tf's duration (in ms) that is
// strictly greater than nowMillis. This keeps Tracker.next_close always
// ahead of the wall clock, per the engine's timeframe-alignment invariant.
func (tf TimeFrame) NextClose(nowMillis int64) int64 {
	step := tf.Millis()
	if step <= 0 {
		return nowMillis
	}
	return (nowMillis/step + 1) * step
}
