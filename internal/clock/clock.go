// Package clock decouples time-driven logic from the wall clock so tests can
// drive it synchronously.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is backed by the time package.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) NewTicker(d time.Duration) Ticker { return &realTicker{t: time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// Manual only moves when told to. Tickers created from it fire on Advance
// once their interval has elapsed, or on demand via Tick.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward and fires every ticker whose next deadline
// has been reached. Deliveries block until the ticker's reader receives them.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	var due []*manualTicker
	for _, t := range m.tickers {
		if t.stopped || t.every <= 0 {
			continue
		}
		if !now.Before(t.next) {
			due = append(due, t)
			for !now.Before(t.next) {
				t.next = t.next.Add(t.every)
			}
		}
	}
	m.mu.Unlock()

	for _, t := range due {
		t.ch <- now
	}
}

// Tick fires every live ticker once at the current time.
func (m *Manual) Tick() {
	m.mu.Lock()
	now := m.now
	live := make([]*manualTicker, 0, len(m.tickers))
	for _, t := range m.tickers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	m.mu.Unlock()

	for _, t := range live {
		t.ch <- now
	}
}

func (m *Manual) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{owner: m, every: d, next: m.now.Add(d), ch: make(chan time.Time)}
	m.tickers = append(m.tickers, t)
	return t
}

type manualTicker struct {
	owner   *Manual
	every   time.Duration
	next    time.Time
	ch      chan time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.owner.mu.Lock()
	t.stopped = true
	t.owner.mu.Unlock()
}
