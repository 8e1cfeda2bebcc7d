package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"tribune/internal/config"
	"tribune/internal/logging"
	"tribune/internal/types"
)

const defaultXBaseURL = "https://api.twitter.com"

// XClient talks to the X v2 API: post writes, engagement actions, DMs,
// and the read endpoints perception ingests from.
type XClient struct {
	writer  *writer
	http    *http.Client
	baseURL string
	token   string
	userID  string
	handle  string

	enabled       bool
	weight        float64
	enableLikes   bool
	enableReposts bool
	enableDMs     bool
}

// NewXClient builds the X adapter from configuration.
func NewXClient(cfg *config.Config) *XClient {
	pc := cfg.Platforms.X
	baseURL := pc.BaseURL
	if baseURL == "" {
		baseURL = defaultXBaseURL
	}
	return &XClient{
		writer:        newWriter("x", cfg.IsLive, cfg.Breaker, cfg.GetBreakerReset()),
		http:          &http.Client{Timeout: writeTimeout},
		baseURL:       baseURL,
		token:         pc.Token,
		enabled:       pc.Enabled,
		weight:        pc.Weight,
		enableLikes:   cfg.Platforms.EnableLikes,
		enableReposts: cfg.Platforms.EnableReposts,
		enableDMs:     cfg.Platforms.EnableDMs,
	}
}

func (c *XClient) Platform() string { return "x" }
func (c *XClient) Enabled() bool    { return c.enabled }
func (c *XClient) Weight() float64  { return c.weight }

// SetIdentity records the authenticated account for mention and
// timeline lookups.
func (c *XClient) SetIdentity(userID, handle string) {
	c.userID = userID
	c.handle = handle
}

// Publish creates a post, uploading any media first.
func (c *XClient) Publish(ctx context.Context, req *Request) (types.Receipt, error) {
	meta := req.Meta

	var mediaIDs []string
	for _, m := range req.Media {
		id, err := c.uploadMedia(ctx, m)
		if err != nil {
			logging.Publish("Failed to upload media %s: %v", m.Path, err)
			continue
		}
		mediaIDs = append(mediaIDs, id)
	}

	return c.writer.write(ctx, "create_post", req.IdempotencyKey, req.Kind, meta,
		func(ctx context.Context) (string, error) {
			body := map[string]interface{}{"text": req.Text}
			if req.InReplyTo != "" {
				body["reply"] = map[string]string{"in_reply_to_tweet_id": req.InReplyTo}
			}
			if req.QuoteTo != "" {
				body["quote_tweet_id"] = req.QuoteTo
			}
			if len(mediaIDs) > 0 {
				body["media"] = map[string][]string{"media_ids": mediaIDs}
			}

			var out struct {
				Data struct {
					ID string `json:"id"`
				} `json:"data"`
			}
			if err := c.doJSON(ctx, http.MethodPost, "/2/tweets", nil, body, &out); err != nil {
				return "", err
			}
			return out.Data.ID, nil
		})
}

// Like likes a post when the feature toggle allows it.
func (c *XClient) Like(ctx context.Context, postID string) (types.Receipt, error) {
	if !c.enableLikes {
		return c.writer.dryReceipt("like", nil), nil
	}
	return c.writer.write(ctx, "like", postID, "like", nil,
		func(ctx context.Context) (string, error) {
			body := map[string]string{"tweet_id": postID}
			path := fmt.Sprintf("/2/users/%s/likes", c.userID)
			if err := c.doJSON(ctx, http.MethodPost, path, nil, body, nil); err != nil {
				return "", err
			}
			return postID, nil
		})
}

// Repost reposts a post when the feature toggle allows it.
func (c *XClient) Repost(ctx context.Context, postID string) (types.Receipt, error) {
	if !c.enableReposts {
		return c.writer.dryReceipt("repost", nil), nil
	}
	return c.writer.write(ctx, "repost", postID, "repost", nil,
		func(ctx context.Context) (string, error) {
			body := map[string]string{"tweet_id": postID}
			path := fmt.Sprintf("/2/users/%s/retweets", c.userID)
			if err := c.doJSON(ctx, http.MethodPost, path, nil, body, nil); err != nil {
				return "", err
			}
			return postID, nil
		})
}

// SendDM sends a direct message when the feature toggle allows it.
func (c *XClient) SendDM(ctx context.Context, recipientID, text string) (types.Receipt, error) {
	if !c.enableDMs {
		return c.writer.dryReceipt(types.KindDM, nil), nil
	}
	return c.writer.write(ctx, "send_dm", recipientID+"\x00"+text, types.KindDM, nil,
		func(ctx context.Context) (string, error) {
			body := map[string]string{"text": text}
			path := fmt.Sprintf("/2/dm_conversations/with/%s/messages", recipientID)
			var out struct {
				Data struct {
					EventID string `json:"dm_event_id"`
				} `json:"data"`
			}
			if err := c.doJSON(ctx, http.MethodPost, path, nil, body, &out); err != nil {
				return "", err
			}
			return out.Data.EventID, nil
		})
}

func (c *XClient) uploadMedia(ctx context.Context, m Media) (string, error) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read media: %w", err)
	}
	var out struct {
		MediaIDString string `json:"media_id_string"`
	}
	query := url.Values{"media_category": {m.Type}}
	if err := c.doRaw(ctx, http.MethodPost, "/2/media/upload", query, data, &out); err != nil {
		return "", err
	}
	return out.MediaIDString, nil
}

// tweetFields are requested on every read endpoint.
var tweetQuery = url.Values{
	"tweet.fields": {"created_at,public_metrics,author_id"},
	"expansions":   {"author_id"},
	"user.fields":  {"username,verified,public_metrics"},
}

type xListResponse struct {
	Data []struct {
		ID            string    `json:"id"`
		Text          string    `json:"text"`
		AuthorID      string    `json:"author_id"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			LikeCount    int `json:"like_count"`
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
			QuoteCount   int `json:"quote_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			Verified      bool   `json:"verified"`
			PublicMetrics struct {
				FollowersCount int `json:"followers_count"`
			} `json:"public_metrics"`
		} `json:"users"`
	} `json:"includes"`
	Meta struct {
		NewestID  string `json:"newest_id"`
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

func (r *xListResponse) posts() []types.RemotePost {
	users := make(map[string]int, len(r.Includes.Users))
	for i, u := range r.Includes.Users {
		users[u.ID] = i
	}
	out := make([]types.RemotePost, 0, len(r.Data))
	for _, t := range r.Data {
		p := types.RemotePost{
			ID:        t.ID,
			AuthorID:  t.AuthorID,
			Text:      t.Text,
			CreatedAt: t.CreatedAt,
			Engagement: t.PublicMetrics.LikeCount + t.PublicMetrics.RetweetCount +
				t.PublicMetrics.ReplyCount + t.PublicMetrics.QuoteCount,
		}
		if i, ok := users[t.AuthorID]; ok {
			u := r.Includes.Users[i]
			p.Username = u.Username
			p.Verified = u.Verified
			p.Followers = u.PublicMetrics.FollowersCount
		}
		out = append(out, p)
	}
	return out
}

// Mentions fetches mentions after sinceID, returning the new cursor.
func (c *XClient) Mentions(ctx context.Context, sinceID string, limit int) ([]types.RemotePost, string, error) {
	query := cloneQuery(tweetQuery)
	query.Set("max_results", strconv.Itoa(limit))
	if sinceID != "" {
		query.Set("since_id", sinceID)
	}
	var out xListResponse
	path := fmt.Sprintf("/2/users/%s/mentions", c.userID)
	if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, sinceID, err
	}
	return out.posts(), maxID(out.Meta.NewestID, sinceID), nil
}

// HomeTimeline fetches the reverse-chronological timeline page after
// token, returning the next pagination token.
func (c *XClient) HomeTimeline(ctx context.Context, token string, limit int) ([]types.RemotePost, string, error) {
	query := cloneQuery(tweetQuery)
	query.Set("max_results", strconv.Itoa(limit))
	if token != "" {
		query.Set("pagination_token", token)
	}
	var out xListResponse
	path := fmt.Sprintf("/2/users/%s/timelines/reverse_chronological", c.userID)
	if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, token, err
	}
	return out.posts(), out.Meta.NextToken, nil
}

// UserPosts fetches a voice's recent posts after sinceID.
func (c *XClient) UserPosts(ctx context.Context, userID, sinceID string, limit int) ([]types.RemotePost, string, error) {
	query := cloneQuery(tweetQuery)
	query.Set("max_results", strconv.Itoa(limit))
	if sinceID != "" {
		query.Set("since_id", sinceID)
	}
	var out xListResponse
	path := fmt.Sprintf("/2/users/%s/tweets", userID)
	if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, sinceID, err
	}
	return out.posts(), maxID(out.Meta.NewestID, sinceID), nil
}

// SearchRecent runs a recent-search query.
func (c *XClient) SearchRecent(ctx context.Context, q string, limit int) ([]types.RemotePost, error) {
	query := cloneQuery(tweetQuery)
	query.Set("max_results", strconv.Itoa(limit))
	query.Set("query", q)
	var out xListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/2/tweets/search/recent", query, nil, &out); err != nil {
		return nil, err
	}
	return out.posts(), nil
}

// Trends fetches personalized trends, truncated to limit.
func (c *XClient) Trends(ctx context.Context, limit int) ([]types.Trend, error) {
	var out struct {
		Data []struct {
			TrendName string `json:"trend_name"`
			PostCount int    `json:"post_count"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/2/users/%s/personalized_trends", c.userID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	trends := make([]types.Trend, 0, len(out.Data))
	for _, t := range out.Data {
		if len(trends) >= limit {
			break
		}
		trends = append(trends, types.Trend{Name: t.TrendName, Volume: t.PostCount})
	}
	return trends, nil
}

// MetricsFor fetches engagement counts for a batch of post ids.
func (c *XClient) MetricsFor(ctx context.Context, ids []string) (map[string]types.Engagement, error) {
	if len(ids) == 0 {
		return map[string]types.Engagement{}, nil
	}
	query := url.Values{
		"ids":          {strings.Join(ids, ",")},
		"tweet.fields": {"public_metrics"},
	}
	var out xListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/2/tweets", query, nil, &out); err != nil {
		return nil, err
	}
	metrics := make(map[string]types.Engagement, len(out.Data))
	for _, t := range out.Data {
		metrics[t.ID] = types.Engagement{
			Likes:   t.PublicMetrics.LikeCount,
			Reposts: t.PublicMetrics.RetweetCount,
			Replies: t.PublicMetrics.ReplyCount,
			Quotes:  t.PublicMetrics.QuoteCount,
		}
	}
	return metrics, nil
}

// Me fetches the authenticated account and caches its identity.
func (c *XClient) Me(ctx context.Context) (userID, handle string, followers int, err error) {
	query := url.Values{"user.fields": {"username,public_metrics"}}
	var out struct {
		Data struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			PublicMetrics struct {
				FollowersCount int `json:"followers_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/2/users/me", query, nil, &out); err != nil {
		return "", "", 0, err
	}
	c.SetIdentity(out.Data.ID, out.Data.Username)
	return out.Data.ID, out.Data.Username, out.Data.PublicMetrics.FollowersCount, nil
}

// UserByUsername resolves a handle to its account id.
func (c *XClient) UserByUsername(ctx context.Context, username string) (string, error) {
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/2/users/by/username/%s", url.PathEscape(username))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return "", err
	}
	return out.Data.ID, nil
}

func (c *XClient) doJSON(ctx context.Context, method, path string, query url.Values,
	body, out interface{}) error {

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}
	return c.doRaw(ctx, method, path, query, payload, out)
}

func (c *XClient) doRaw(ctx context.Context, method, path string, query url.Values,
	payload []byte, out interface{}) error {

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Endpoint: path, RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("x api %s returned %d: %s", path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

func cloneQuery(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func maxID(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		if ai >= bi {
			return a
		}
		return b
	}
	if a >= b {
		return a
	}
	return b
}
