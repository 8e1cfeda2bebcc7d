// Package publish routes outbound content across platform adapters.
// Every adapter shares the same write semantics: dry runs when LIVE is
// off, an idempotency cache per (endpoint, key), per-endpoint circuit
// breakers, and bounded retry with backoff on rate limits.
package publish

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tribune/internal/config"
	"tribune/internal/logging"
	"tribune/internal/types"
)

// writeTimeout bounds one platform write.
const writeTimeout = 15 * time.Second

// Media is one attachment uploaded before the write.
type Media struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Request is one outbound publish request.
type Request struct {
	Text           string            `json:"text"`
	Kind           types.PostKind    `json:"kind"`
	InReplyTo      string            `json:"in_reply_to,omitempty"`
	QuoteTo        string            `json:"quote_to,omitempty"`
	Intensity      int               `json:"intensity"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Media          []Media           `json:"media,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`
}

// Adapter is one platform client.
type Adapter interface {
	Platform() string
	Enabled() bool
	Weight() float64
	Publish(ctx context.Context, req *Request) (types.Receipt, error)
}

// RateLimitError marks a retryable rate-limit response.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited on %s", e.Endpoint)
}

// IsRateLimit reports whether err is a rate-limit error.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// dryRunID builds the identifier returned for dry-run writes.
func dryRunID(platform string, kind types.PostKind) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s:%s/md_dry_%s", platform, kind, token)
}

// writer implements the shared write path for one platform.
type writer struct {
	platform    string
	live        func() bool
	breakers    *BreakerSet
	maxAttempts int
	maxBackoff  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	idempotency map[string]types.Receipt
	rng         *rand.Rand
}

func newWriter(platform string, live func() bool, cfg config.BreakerConfig, reset time.Duration) *writer {
	maxAttempts := cfg.MaxWriteAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	maxBackoff := time.Duration(cfg.MaxBackoffSeconds) * time.Second
	if maxBackoff <= 0 {
		maxBackoff = 60 * time.Second
	}
	return &writer{
		platform:    platform,
		live:        live,
		breakers:    NewBreakerSet(cfg.FailureThreshold, reset),
		maxAttempts: maxAttempts,
		maxBackoff:  maxBackoff,
		sleep:       sleepContext,
		idempotency: make(map[string]types.Receipt),
		rng:         rand.New(rand.NewSource(rand.Int63())),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *writer) dryReceipt(kind types.PostKind, meta map[string]string) types.Receipt {
	return types.Receipt{
		Platform:  w.platform,
		PostID:    dryRunID(w.platform, kind),
		DryRun:    true,
		Meta:      meta,
		CreatedAt: time.Now(),
	}
}

// write runs the shared write path: dry-run check, idempotency cache,
// breaker, then bounded attempts with rate-limit backoff.
func (w *writer) write(ctx context.Context, endpoint, key string, kind types.PostKind,
	meta map[string]string, call func(ctx context.Context) (string, error)) (types.Receipt, error) {

	if !w.live() {
		w.mu.Lock()
		w.idempotency = make(map[string]types.Receipt)
		w.mu.Unlock()
		logging.Publish("DRY RUN - %s would %s", w.platform, endpoint)
		return w.dryReceipt(kind, meta), nil
	}

	cacheKey := endpoint + "\x00" + key
	if key != "" {
		w.mu.Lock()
		cached, ok := w.idempotency[cacheKey]
		w.mu.Unlock()
		if ok {
			logging.PublishDebug("Idempotency hit for %s on %s", key, endpoint)
			return cached, nil
		}
	}

	breaker := w.breakers.For(endpoint)
	if !breaker.Allow() {
		logging.Publish("Circuit breaker open for %s:%s, skipping", w.platform, endpoint)
		return w.dryReceipt(kind, meta), nil
	}

	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		id, err := call(callCtx)
		cancel()

		if err == nil {
			breaker.RecordSuccess()
			receipt := types.Receipt{
				Platform:  w.platform,
				PostID:    id,
				Meta:      meta,
				CreatedAt: time.Now(),
			}
			if key != "" {
				w.mu.Lock()
				w.idempotency[cacheKey] = receipt
				w.mu.Unlock()
			}
			logging.Publish("%s %s succeeded: %s", w.platform, endpoint, id)
			return receipt, nil
		}

		lastErr = err
		breaker.RecordFailure()

		if !IsRateLimit(err) {
			logging.Publish("%s %s failed: %v", w.platform, endpoint, err)
			break
		}

		backoff := w.backoff(attempt)
		logging.Publish("%s %s rate limited, retrying in %s (attempt %d/%d)",
			w.platform, endpoint, backoff, attempt, w.maxAttempts)
		if err := w.sleep(ctx, backoff); err != nil {
			return types.Receipt{}, err
		}
	}
	return types.Receipt{}, fmt.Errorf("%s %s failed: %w", w.platform, endpoint, lastErr)
}

func (w *writer) backoff(attempt int) time.Duration {
	w.mu.Lock()
	jitter := w.rng.Float64()
	w.mu.Unlock()
	seconds := math.Min(w.maxBackoff.Seconds(), math.Pow(2, float64(attempt))+jitter)
	return time.Duration(seconds * float64(time.Second))
}
