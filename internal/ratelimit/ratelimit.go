// Package ratelimit admits at most a fixed number of operations in any
// trailing window. It never waits: a rejected attempt is reported to the
// caller, which decides when to try again.
package ratelimit

import (
	"sync"
	"time"

	"github.com/me/examvm/pkg/model"
)

// DefaultWindow is the length of the rolling window.
const DefaultWindow = time.Second

// Limiter is a rolling-window log limiter shared by every call site that
// draws on the same external quota.
type Limiter struct {
	rate   int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	calls []time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter admitting rate attempts per window.
func New(rate int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		rate:   rate,
		window: window,
		now:    time.Now,
		calls:  make([]time.Time, 0, max(rate, 0)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rate returns the number of attempts admitted per window.
func (l *Limiter) Rate() int {
	return l.rate
}

// Window returns the window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Attempt records an attempt and reports whether it is admitted.
func (l *Limiter) Attempt() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.calls) >= l.rate {
		return false
	}
	l.calls = append(l.calls, now)
	return true
}

// Do calls fn if an attempt is admitted and returns model.ErrRateLimitExceeded
// without calling it otherwise.
func (l *Limiter) Do(fn func() error) error {
	if !l.Attempt() {
		return model.ErrRateLimitExceeded
	}
	return fn()
}

// InFlight returns the number of admitted attempts still inside the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())
	return len(l.calls)
}

// prune drops attempts older than the window. calls is kept in admission order.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}
