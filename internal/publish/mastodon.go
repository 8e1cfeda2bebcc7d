package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tribune/internal/config"
	"tribune/internal/types"
)

// MastodonClient posts statuses to a Mastodon instance. Only the
// create-post surface is implemented; the shared write semantics come
// from the base writer.
type MastodonClient struct {
	writer  *writer
	http    *http.Client
	baseURL string
	token   string
	enabled bool
	weight  float64
}

// NewMastodonClient builds the Mastodon adapter from configuration.
func NewMastodonClient(cfg *config.Config) *MastodonClient {
	pc := cfg.Platforms.Mastodon
	return &MastodonClient{
		writer:  newWriter("mastodon", cfg.IsLive, cfg.Breaker, cfg.GetBreakerReset()),
		http:    &http.Client{Timeout: writeTimeout},
		baseURL: pc.BaseURL,
		token:   pc.Token,
		enabled: pc.Enabled,
		weight:  pc.Weight,
	}
}

func (c *MastodonClient) Platform() string { return "mastodon" }
func (c *MastodonClient) Enabled() bool    { return c.enabled }
func (c *MastodonClient) Weight() float64  { return c.weight }

// Publish creates a status. Quotes are not native to Mastodon, so a
// quoted post's URL is appended to the status text.
func (c *MastodonClient) Publish(ctx context.Context, req *Request) (types.Receipt, error) {
	if c.baseURL == "" || c.token == "" {
		return c.writer.dryReceipt(req.Kind, req.Meta), nil
	}

	return c.writer.write(ctx, "create_status", req.IdempotencyKey, req.Kind, req.Meta,
		func(ctx context.Context) (string, error) {
			body := map[string]interface{}{"status": req.Text}
			if req.InReplyTo != "" {
				body["in_reply_to_id"] = req.InReplyTo
			}

			payload, err := json.Marshal(body)
			if err != nil {
				return "", fmt.Errorf("failed to encode status: %w", err)
			}
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
				c.baseURL+"/api/v1/statuses", bytes.NewReader(payload))
			if err != nil {
				return "", fmt.Errorf("failed to build request: %w", err)
			}
			httpReq.Header.Set("Authorization", "Bearer "+c.token)
			httpReq.Header.Set("Content-Type", "application/json")
			if req.IdempotencyKey != "" {
				httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
			}

			resp, err := c.http.Do(httpReq)
			if err != nil {
				return "", fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests {
				return "", &RateLimitError{Endpoint: "create_status", RetryAfter: retryAfter(resp)}
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return "", fmt.Errorf("mastodon returned %d: %s", resp.StatusCode, string(data))
			}

			var out struct {
				ID string `json:"id"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return "", fmt.Errorf("failed to decode response: %w", err)
			}
			return out.ID, nil
		})
}
