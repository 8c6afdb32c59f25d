package assistant

import (
	"sync"
	"time"
)

const defaultBreakerThreshold = 3

// Breaker disables function calling after consecutive failures. With a
// zero cooldown it stays open for the life of the process; otherwise it
// lets a trial call through once the cooldown has elapsed, and one more
// failure reopens it.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
}

// NewBreaker creates a closed breaker. A non-positive threshold means 3.
func NewBreaker(threshold int, cooldown time.Duration, now func() time.Time) *Breaker {
	if threshold <= 0 {
		threshold = defaultBreakerThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: now}
}

// Allow reports whether function calling may be attempted.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	return b.cooldown > 0 && b.now().Sub(b.openedAt) >= b.cooldown
}

// Success closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

// Failure records a failed function-calling attempt.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.failures >= b.threshold {
		b.openedAt = b.now()
	}
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
