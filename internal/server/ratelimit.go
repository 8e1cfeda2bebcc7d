package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// rateLimiter is a sliding-window request limiter for the admin routes.
type rateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	hits   []time.Time
	now    func() time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{window: window, limit: limit, now: time.Now}
}

// allow records one request and reports whether it is within the limit.
// When rejected, the duration until the window frees up is returned.
func (r *rateLimiter) allow() (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)
	kept := r.hits[:0]
	for _, t := range r.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.hits = kept

	if len(r.hits) >= r.limit {
		return false, r.hits[0].Add(r.window).Sub(now)
	}
	r.hits = append(r.hits, now)
	return true, 0
}

// middleware enforces the limit, answering 429 with a reset hint.
func (r *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ok, reset := r.allow()
		if !ok {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(reset.Seconds())+1))
			writeError(w, http.StatusTooManyRequests,
				fmt.Sprintf("rate limit exceeded, retry in %s", reset.Round(time.Second)))
			return
		}
		next.ServeHTTP(w, req)
	})
}
