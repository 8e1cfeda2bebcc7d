package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllow(t *testing.T) {
	clock := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	r := newRateLimiter(2, time.Minute)
	r.now = func() time.Time { return clock }

	ok, _ := r.allow()
	assert.True(t, ok)
	ok, _ = r.allow()
	assert.True(t, ok)

	ok, reset := r.allow()
	assert.False(t, ok)
	assert.Equal(t, time.Minute, reset)

	t.Run("window slides", func(t *testing.T) {
		clock = clock.Add(61 * time.Second)
		ok, _ := r.allow()
		assert.True(t, ok, "old hits expire")
	})

	t.Run("partial expiry frees partial budget", func(t *testing.T) {
		clock = clock.Add(30 * time.Second)
		ok, _ := r.allow()
		assert.True(t, ok)
		ok, reset := r.allow()
		assert.False(t, ok)
		assert.Equal(t, 30*time.Second, reset, "oldest hit anchors the reset hint")
	})
}

func TestRateLimiterDefaults(t *testing.T) {
	r := newRateLimiter(0, 0)
	assert.Equal(t, 10, r.limit)
	assert.Equal(t, time.Minute, r.window)
}

func TestRateLimiterMiddleware(t *testing.T) {
	clock := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	r := newRateLimiter(1, time.Minute)
	r.now = func() time.Time { return clock }

	handler := r.middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/live", nil))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "61", rec.Header().Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "rate limit exceeded")

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, http.StatusNoContent, do().Code)
}
