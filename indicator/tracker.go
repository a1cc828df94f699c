package indicator

import (
	"sync"

	"github.com/duneflow/perpengine/candle"
	"github.com/duneflow/perpengine/timeframe"
)

// MaxHistory bounds the Tracker's closed-candle ring buffer.
const MaxHistory = 5000

// Tracker owns every indicator for one (asset, timeframe) pair: a bounded
// ring buffer of recent closed candles, the indicator handler map, and the
// next-close boundary that classifies an incoming tick as pre-close or
// close.
//
// Invariant: NextClose is always the smallest multiple of the timeframe
// duration (in ms) strictly greater than the last observed tick time.
type Tracker struct {
	mu sync.Mutex

	tf        timeframe.TimeFrame
	ring      []candle.Tick
	handlers  map[IndicatorKind]*Handler
	NextClose int64
}

// NewTracker builds an empty tracker for tf. NextClose is resolved lazily on
// the first Digest call so the zero-value tracker never reports a stale
// boundary computed before it started receiving ticks.
func NewTracker(tf timeframe.TimeFrame) *Tracker {
	return &Tracker{
		tf:       tf,
		ring:     make([]candle.Tick, 0, MaxHistory),
		handlers: make(map[IndicatorKind]*Handler),
	}
}

// TimeFrame returns the timeframe this tracker runs on.
func (t *Tracker) TimeFrame() timeframe.TimeFrame { return t.tf }

func (t *Tracker) pushRing(tick candle.Tick) {
	if len(t.ring) == MaxHistory {
		copy(t.ring, t.ring[1:])
		t.ring[len(t.ring)-1] = tick
	} else {
		t.ring = append(t.ring, tick)
	}
}

// Digest classifies an incoming tick against NextClose and fans it out to
// every handler, committing a closed candle to the ring buffer when the
// boundary is crossed. Returns whether this tick closed the candle.
func (t *Tracker) Digest(tick candle.Tick, nowMillis int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.NextClose == 0 {
		t.NextClose = t.tf.NextClose(nowMillis)
	}

	closed := nowMillis >= t.NextClose
	if closed {
		t.pushRing(tick)
		t.NextClose = t.tf.NextClose(nowMillis)
	}
	for _, h := range t.handlers {
		h.Update(tick, closed)
	}
	return closed
}

// Load replays the supplied ordered closed candles into every handler in
// parallel, then swaps the handler map in atomically — matching the
// control-plane requirement that per-indicator warm-up loads may be
// parallelised and the result installed as one unit.
func (t *Tracker) Load(data []candle.Tick) {
	t.mu.Lock()
	kinds := make([]IndicatorKind, 0, len(t.handlers))
	active := make(map[IndicatorKind]bool, len(t.handlers))
	for k, h := range t.handlers {
		kinds = append(kinds, k)
		active[k] = h.IsActive
	}
	t.mu.Unlock()

	next := make(map[IndicatorKind]*Handler, len(kinds))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, k := range kinds {
		wg.Add(1)
		go func(k IndicatorKind) {
			defer wg.Done()
			h := NewHandler(k)
			h.Load(data)
			h.IsActive = active[k]
			mu.Lock()
			next[k] = h
			mu.Unlock()
		}(k)
	}
	wg.Wait()

	t.mu.Lock()
	t.handlers = next
	ring := make([]candle.Tick, len(data))
	copy(ring, data)
	if len(ring) > MaxHistory {
		ring = ring[len(ring)-MaxHistory:]
	}
	t.ring = ring
	t.mu.Unlock()
}

// Add inserts a new handler for kind, optionally warming it up immediately
// from the ring buffer already held. Adding an indicator never removes or
// resets the tracker itself.
func (t *Tracker) Add(kind IndicatorKind, loadFromRing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := NewHandler(kind)
	if loadFromRing {
		h.Load(t.ring)
	}
	t.handlers[kind] = h
}

// Remove deletes the handler for kind, if present.
func (t *Tracker) Remove(kind IndicatorKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers, kind)
}

// Toggle flips is_active for kind and reports whether the handler exists.
func (t *Tracker) Toggle(kind IndicatorKind) (active bool, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, found := t.handlers[kind]
	if !found {
		return false, false
	}
	return h.Toggle(), true
}

// ActiveValues returns the current reading of every active, ready handler.
func (t *Tracker) ActiveValues() map[IndicatorKind]Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[IndicatorKind]Value, len(t.handlers))
	for k, h := range t.handlers {
		if v, ok := h.Value(); ok {
			out[k] = v
		}
	}
	return out
}

// ActiveKinds lists every IndicatorKind currently registered, active or not.
func (t *Tracker) ActiveKinds() []IndicatorKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]IndicatorKind, 0, len(t.handlers))
	for k := range t.handlers {
		out = append(out, k)
	}
	return out
}

// RingSnapshot copies the current closed-candle history for reuse (e.g. as
// the base for a Load replay after an edit).
func (t *Tracker) RingSnapshot() []candle.Tick {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]candle.Tick, len(t.ring))
	copy(out, t.ring)
	return out
}
