package indicator

import (
	"testing"
	"time"

	"github.com/duneflow/perpengine/candle"
	"github.com/duneflow/perpengine/timeframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func millis(t time.Time) int64 { return t.UnixMilli() }

// S6 — timeframe alignment: tf=5m, wall-clock=12:07:23 gives next_close
// 12:10:00; a tick before the boundary is pre-close, a tick at/after it
// closes the candle and advances next_close to 12:15:00.
func TestTrackerTimeframeAlignment(t *testing.T) {
	base := time.Date(2026, 7, 31, 12, 7, 23, 0, time.UTC)
	tr := NewTracker(timeframe.Min5)

	closed := tr.Digest(candle.Tick{Close: 100}, millis(base))
	assert.False(t, closed)
	assert.Equal(t, millis(time.Date(2026, 7, 31, 12, 10, 0, 0, time.UTC)), tr.NextClose)

	mid := time.Date(2026, 7, 31, 12, 8, 0, 0, time.UTC)
	closed = tr.Digest(candle.Tick{Close: 101}, millis(mid))
	assert.False(t, closed)

	boundary := time.Date(2026, 7, 31, 12, 10, 0, 0, time.UTC)
	closed = tr.Digest(candle.Tick{Close: 102}, millis(boundary))
	assert.True(t, closed)
	assert.Equal(t, millis(time.Date(2026, 7, 31, 12, 15, 0, 0, time.UTC)), tr.NextClose)
}

func TestTrackerNextCloseInvariant(t *testing.T) {
	tr := NewTracker(timeframe.Hour1)
	now := millis(time.Now())
	tr.Digest(candle.Tick{Close: 1}, now)
	assert.Greater(t, tr.NextClose, now)
	assert.Equal(t, int64(0), tr.NextClose%timeframe.Hour1.Millis())
}

func TestTrackerAddRemoveToggleRoundTrip(t *testing.T) {
	tr := NewTracker(timeframe.Min5)
	kind := IndicatorKind{Kind: KindSma, Periods: 3}

	tr.Add(kind, false)
	require.Len(t, tr.ActiveKinds(), 1)

	active, ok := tr.Toggle(kind)
	require.True(t, ok)
	assert.False(t, active)

	active, ok = tr.Toggle(kind)
	require.True(t, ok)
	assert.True(t, active, "toggling twice restores is_active")

	tr.Remove(kind)
	assert.Len(t, tr.ActiveKinds(), 0)

	tr.Add(kind, false)
	assert.Len(t, tr.ActiveKinds(), 1, "add after remove leaves the post-add state")
}

func TestTrackerWarmUpLoadFeedsIndicators(t *testing.T) {
	tr := NewTracker(timeframe.Min1)
	kind := IndicatorKind{Kind: KindSma, Periods: 3}
	tr.Add(kind, false)

	data := []candle.Tick{{Close: 1}, {Close: 2}, {Close: 3}, {Close: 4}}
	tr.Load(data)

	vals := tr.ActiveValues()
	v, ok := vals[kind]
	require.True(t, ok)
	assert.InDelta(t, 3.0, v.Float, 1e-9) // SMA(3) of [2,3,4]
}
