package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Gate decides, per incoming frame, whether preparation should run at all.
// It admits every Nth frame of the non-busy stream and refuses new frames
// while a previous one is still in flight. A refused frame is dropped, never
// queued: memory and latency stay bounded at the cost of dropped detections
// under load.
//
// The busy flag is the only exclusion mechanism; there is no lock around the
// counter because only the goroutine that wins the busy flag touches it.
type Gate struct {
	interval uint64
	// counter wraps by modulo arithmetic; it counts non-busy frames only.
	counter uint64
	busy    atomic.Bool
	// limiter optionally enforces a time floor between accepted frames.
	limiter *rate.Limiter
}

// NewGate builds a gate admitting every interval-th frame (interval >= 1,
// clamped). minInterval > 0 additionally rejects frames arriving sooner than
// that after the last accepted one.
func NewGate(interval int, minInterval time.Duration) *Gate {
	if interval < 1 {
		interval = 1
	}
	g := &Gate{interval: uint64(interval)}
	if minInterval > 0 {
		g.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return g
}

// TryAcquire reports whether the caller should process the current frame.
// ok=false is a pure skip. On ok=true the gate stays busy until release is
// called; release is idempotent and must run on every exit path, including
// failures.
func (g *Gate) TryAcquire() (release func(), ok bool) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, false
	}
	c := g.counter
	g.counter++
	if c%g.interval != 0 {
		g.busy.Store(false)
		return nil, false
	}
	if g.limiter != nil && !g.limiter.Allow() {
		// The Nth slot is consumed even when the time floor rejects it; the
		// next candidate is the following Nth frame.
		g.busy.Store(false)
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() { g.busy.Store(false) })
	}, true
}

// Reset clears the counter and the busy flag so the next incoming frame is
// treated as frame 0 of a fresh sequence. It does not abort in-flight work.
func (g *Gate) Reset() {
	g.counter = 0
	g.busy.Store(false)
}
