// Package clock provides an injectable wall clock so time-gated game rules can be
// driven by virtual time in tests.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current wall-clock time and paces periodic work.
type Clock interface {
	Now() time.Time
	// NewTicker returns a Ticker that fires every d.
	//
	// Precondition: d > 0.
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers the clock's time on C once per period. Like time.Ticker it
// drops ticks for slow receivers.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type systemClock struct{}

// System returns a Clock backed by time.Now.
func System() Clock {
	return systemClock{}
}

// Now returns time.Now().
func (systemClock) Now() time.Time {
	return time.Now()
}

// NewTicker wraps time.NewTicker.
func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// Manual is a Clock that only moves when told to. Its tickers fire from
// Advance and Set.
// It is safe for concurrent use.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManual creates a Manual clock frozen at start.
//
// Postcondition: Now() == start until Advance or Set is called.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d and returns the new time.
//
// Precondition: d may be negative to simulate clock skew.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	m.fireLocked()
	return m.now
}

// Set jumps the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
	m.fireLocked()
}

// NewTicker returns a Ticker that fires when the virtual time reaches each
// multiple of d after now.
//
// Precondition: d > 0.
func (m *Manual) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: Manual.NewTicker: non-positive interval")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{
		clock:  m,
		period: d,
		next:   m.now.Add(d),
		c:      make(chan time.Time, 1),
	}
	m.tickers = append(m.tickers, t)
	return t
}

// fireLocked delivers at most one tick to every ticker that is due.
func (m *Manual) fireLocked() {
	for _, t := range m.tickers {
		if t.next.After(m.now) {
			continue
		}
		select {
		case t.c <- m.now:
		default:
		}
		missed := m.now.Sub(t.next)/t.period + 1
		t.next = t.next.Add(missed * t.period)
	}
}

type manualTicker struct {
	clock  *Manual
	period time.Duration
	next   time.Time
	c      chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

// Stop detaches the ticker; no tick is delivered afterwards.
func (t *manualTicker) Stop() {
	m := t.clock
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, other := range m.tickers {
		if other == t {
			m.tickers = append(m.tickers[:i], m.tickers[i+1:]...)
			return
		}
	}
}
