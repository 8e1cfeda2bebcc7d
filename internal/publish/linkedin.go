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

const defaultLinkedInBaseURL = "https://api.linkedin.com"

// LinkedInClient shares text posts via the UGC posts API. Only the
// create-post surface is implemented.
type LinkedInClient struct {
	writer  *writer
	http    *http.Client
	baseURL string
	token   string
	author  string
	enabled bool
	weight  float64
}

// NewLinkedInClient builds the LinkedIn adapter from configuration. The
// author URN comes from the platform token's owner and is stored in the
// platform APIKey field.
func NewLinkedInClient(cfg *config.Config) *LinkedInClient {
	pc := cfg.Platforms.LinkedIn
	baseURL := pc.BaseURL
	if baseURL == "" {
		baseURL = defaultLinkedInBaseURL
	}
	return &LinkedInClient{
		writer:  newWriter("linkedin", cfg.IsLive, cfg.Breaker, cfg.GetBreakerReset()),
		http:    &http.Client{Timeout: writeTimeout},
		baseURL: baseURL,
		token:   pc.Token,
		author:  pc.APIKey,
		enabled: pc.Enabled,
		weight:  pc.Weight,
	}
}

func (c *LinkedInClient) Platform() string { return "linkedin" }
func (c *LinkedInClient) Enabled() bool    { return c.enabled }
func (c *LinkedInClient) Weight() float64  { return c.weight }

// Publish shares a text post.
func (c *LinkedInClient) Publish(ctx context.Context, req *Request) (types.Receipt, error) {
	if c.token == "" || c.author == "" {
		return c.writer.dryReceipt(req.Kind, req.Meta), nil
	}

	return c.writer.write(ctx, "ugc_post", req.IdempotencyKey, req.Kind, req.Meta,
		func(ctx context.Context) (string, error) {
			body := map[string]interface{}{
				"author":         c.author,
				"lifecycleState": "PUBLISHED",
				"specificContent": map[string]interface{}{
					"com.linkedin.ugc.ShareContent": map[string]interface{}{
						"shareCommentary":    map[string]string{"text": req.Text},
						"shareMediaCategory": "NONE",
					},
				},
				"visibility": map[string]string{
					"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
				},
			}

			payload, err := json.Marshal(body)
			if err != nil {
				return "", fmt.Errorf("failed to encode post: %w", err)
			}
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
				c.baseURL+"/v2/ugcPosts", bytes.NewReader(payload))
			if err != nil {
				return "", fmt.Errorf("failed to build request: %w", err)
			}
			httpReq.Header.Set("Authorization", "Bearer "+c.token)
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("X-Restli-Protocol-Version", "2.0.0")

			resp, err := c.http.Do(httpReq)
			if err != nil {
				return "", fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests {
				return "", &RateLimitError{Endpoint: "ugc_post", RetryAfter: retryAfter(resp)}
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return "", fmt.Errorf("linkedin returned %d: %s", resp.StatusCode, string(data))
			}

			if id := resp.Header.Get("X-Restli-Id"); id != "" {
				return id, nil
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
