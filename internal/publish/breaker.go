package publish

import (
	"sync"
	"time"

	"tribune/internal/logging"
)

// Breaker is a per-endpoint circuit breaker. It opens after a run of
// consecutive failures and resets once enough time has passed since the
// last one.
type Breaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	threshold   int
	reset       time.Duration
	now         func() time.Time
}

// NewBreaker creates a breaker with the given threshold and reset
// window. Zero values fall back to 5 failures and 5 minutes.
func NewBreaker(threshold int, reset time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if reset <= 0 {
		reset = 5 * time.Minute
	}
	return &Breaker{threshold: threshold, reset: reset, now: time.Now}
}

// Allow reports whether a request may proceed, resetting an open
// breaker once the reset window has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if b.now().Sub(b.lastFailure) > b.reset {
		b.failures = 0
		return true
	}
	return false
}

// RecordFailure counts one consecutive failure.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
}

// RecordSuccess closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// BreakerSet lazily creates one breaker per endpoint.
type BreakerSet struct {
	mu        sync.Mutex
	breakers  map[string]*Breaker
	threshold int
	reset     time.Duration
}

// NewBreakerSet creates the per-endpoint breaker table.
func NewBreakerSet(threshold int, reset time.Duration) *BreakerSet {
	return &BreakerSet{
		breakers:  make(map[string]*Breaker),
		threshold: threshold,
		reset:     reset,
	}
}

// For returns the breaker for an endpoint, creating it on first use.
func (s *BreakerSet) For(endpoint string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[endpoint]
	if !ok {
		b = NewBreaker(s.threshold, s.reset)
		s.breakers[endpoint] = b
	}
	return b
}

// Open reports whether the endpoint's breaker currently blocks
// requests.
func (s *BreakerSet) Open(endpoint string) bool {
	open := !s.For(endpoint).Allow()
	if open {
		logging.Publish("Circuit breaker open for %s", endpoint)
	}
	return open
}
