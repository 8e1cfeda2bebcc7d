// Package perception ingests the outside world: mentions, the home
// timeline, trends, and whitelisted voices, persisting each pass as one
// sensed event with per-source counts and durable cursors.
package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"tribune/internal/config"
	"tribune/internal/logging"
	"tribune/internal/store"
	"tribune/internal/types"
)

// Cursor names persisted in the store.
const (
	cursorMentionsSinceID = "x_mentions_since_id"
	cursorTimelineToken   = "x_timeline_token"
	cursorVoicePrefix     = "x_voice_cursor:"
)

// XSource is the read surface of the X adapter.
type XSource interface {
	Mentions(ctx context.Context, sinceID string, limit int) ([]types.RemotePost, string, error)
	HomeTimeline(ctx context.Context, token string, limit int) ([]types.RemotePost, string, error)
	UserPosts(ctx context.Context, userID, sinceID string, limit int) ([]types.RemotePost, string, error)
	UserByUsername(ctx context.Context, username string) (string, error)
	Trends(ctx context.Context, limit int) ([]types.Trend, error)
}

// XPayload is the X slice of one sensed-event payload.
type XPayload struct {
	Mentions       []types.RemotePost            `json:"mentions"`
	HomeTimeline   []types.RemotePost            `json:"home_timeline"`
	TrendingTopics []types.Trend                 `json:"trending_topics"`
	Voices         map[string][]types.RemotePost `json:"voices"`
	Meta           map[string]string             `json:"meta"`
}

// Payload is the full sensed-event payload.
type Payload struct {
	WhitelistedVoices []types.Voice              `json:"whitelisted_voices"`
	Keywords          []string                   `json:"keywords"`
	X                 XPayload                   `json:"x"`
	Platforms         map[string]json.RawMessage `json:"platforms,omitempty"`
}

// Service collects perception signals each ingest cycle.
type Service struct {
	cfg   config.PerceptionConfig
	store *store.Store
	x     XSource

	voices   []types.Voice
	keywords []string

	mu           sync.Mutex
	userIDs      map[string]string
	lastMentions []types.RemotePost
	lastCounts   map[string]int
}

// New loads the voice whitelist and creates the service. A nil XSource
// produces zero-count events.
func New(cfg config.PerceptionConfig, st *store.Store, x XSource) (*Service, error) {
	voices, err := LoadVoices(cfg.VoicesPath)
	if err != nil {
		logging.Perception("Failed to load voices from %s: %v", cfg.VoicesPath, err)
		voices = nil
	}
	return &Service{
		cfg:      cfg,
		store:    st,
		x:        x,
		voices:   voices,
		keywords: cfg.Keywords,
		userIDs:  make(map[string]string),
	}, nil
}

// Voices returns the loaded whitelist.
func (s *Service) Voices() []types.Voice {
	return s.voices
}

// PriorityVoices returns the highest-authority voices, sorted by
// authority weight descending.
func (s *Service) PriorityVoices(minAuthority float64, max int) []types.Voice {
	out := make([]types.Voice, 0, len(s.voices))
	for _, v := range s.voices {
		if v.AuthorityWeight >= minAuthority && v.Username != "" {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AuthorityWeight > out[j].AuthorityWeight
	})
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// LastMentions returns the mentions from the most recent ingest, for
// crisis evaluation.
func (s *Service) LastMentions() []types.RemotePost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.RemotePost(nil), s.lastMentions...)
}

// LastCounts returns the counts from the most recent ingest.
func (s *Service) LastCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.lastCounts))
	for k, v := range s.lastCounts {
		out[k] = v
	}
	return out
}

// Ingest runs one perception pass. Per-source failures are logged and
// the partial payload is still persisted.
func (s *Service) Ingest(ctx context.Context) (int, error) {
	counts := map[string]int{
		"voices":   len(s.voices),
		"keywords": len(s.keywords),
	}

	payload := Payload{
		WhitelistedVoices: truncateVoices(s.voices, s.limit(s.cfg.VoiceLimit, 5)),
		Keywords:          truncateStrings(s.keywords, s.limit(s.cfg.KeywordLimit, 10)),
		X: XPayload{
			Voices: make(map[string][]types.RemotePost),
			Meta:   make(map[string]string),
		},
	}

	var mentions []types.RemotePost
	if s.x != nil {
		mentions = s.ingestX(ctx, &payload.X, counts)
	} else {
		counts["x_mentions"] = 0
		counts["x_timeline"] = 0
		counts["x_trends"] = 0
		counts["x_voice_updates"] = 0
	}

	total := 0
	for _, v := range counts {
		total += v
	}
	counts["signals"] = total

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload: %w", err)
	}
	if _, err := s.store.SaveSensedEvent(&types.SensedEvent{
		Source:  "perception",
		Counts:  counts,
		Payload: string(body),
	}); err != nil {
		return 0, fmt.Errorf("failed to persist sensed event: %w", err)
	}

	s.mu.Lock()
	s.lastMentions = mentions
	s.lastCounts = counts
	s.mu.Unlock()

	logging.Perception("Ingested %d signals (mentions=%d timeline=%d trends=%d voices=%d)",
		total, counts["x_mentions"], counts["x_timeline"], counts["x_trends"], counts["x_voice_updates"])
	return total, nil
}

// ingestX fetches each X source with isolated error handling and
// advances the cursors.
func (s *Service) ingestX(ctx context.Context, out *XPayload, counts map[string]int) []types.RemotePost {
	sinceID, _ := s.store.GetCursor(cursorMentionsSinceID)
	mentions, newSince, err := s.x.Mentions(ctx, sinceID, s.limit(s.cfg.MentionLimit, 25))
	if err != nil {
		logging.Perception("Mentions fetch failed: %v", err)
	} else {
		out.Mentions = mentions
		if newSince != "" && newSince != sinceID {
			if err := s.store.SetCursor(cursorMentionsSinceID, newSince); err != nil {
				logging.Perception("Failed to persist mention cursor: %v", err)
			}
		}
	}
	counts["x_mentions"] = len(out.Mentions)

	token, _ := s.store.GetCursor(cursorTimelineToken)
	timeline, nextToken, err := s.x.HomeTimeline(ctx, token, s.limit(s.cfg.TimelineLimit, 25))
	if err != nil {
		logging.Perception("Timeline fetch failed: %v", err)
	} else {
		out.HomeTimeline = timeline
		out.Meta["next_token"] = nextToken
		if nextToken != token {
			// An empty next token explicitly clears the stale cursor.
			if err := s.store.SetCursor(cursorTimelineToken, nextToken); err != nil {
				logging.Perception("Failed to persist timeline cursor: %v", err)
			}
		}
	}
	counts["x_timeline"] = len(out.HomeTimeline)

	trends, err := s.x.Trends(ctx, s.limit(s.cfg.TrendLimit, 10))
	if err != nil {
		logging.Perception("Trends fetch failed: %v", err)
	} else {
		out.TrendingTopics = trends
	}
	counts["x_trends"] = len(out.TrendingTopics)

	voiceUpdates := 0
	for _, v := range s.PriorityVoices(0, s.limit(s.cfg.VoiceLimit, 5)) {
		posts := s.ingestVoice(ctx, v.Username)
		if len(posts) > 0 {
			out.Voices[v.Username] = posts
			voiceUpdates += len(posts)
		}
	}
	counts["x_voice_updates"] = voiceUpdates

	return out.Mentions
}

func (s *Service) ingestVoice(ctx context.Context, username string) []types.RemotePost {
	userID, err := s.resolveUser(ctx, username)
	if err != nil {
		logging.PerceptionDebug("Failed to resolve voice %s: %v", username, err)
		return nil
	}

	cursor := cursorVoicePrefix + username
	sinceID, _ := s.store.GetCursor(cursor)
	posts, newSince, err := s.x.UserPosts(ctx, userID, sinceID, s.limit(s.cfg.VoiceLimit, 5))
	if err != nil {
		logging.PerceptionDebug("Voice fetch failed for %s: %v", username, err)
		return nil
	}
	if newSince != "" && newSince != sinceID {
		if err := s.store.SetCursor(cursor, newSince); err != nil {
			logging.Perception("Failed to persist voice cursor for %s: %v", username, err)
		}
	}
	return posts
}

func (s *Service) resolveUser(ctx context.Context, username string) (string, error) {
	s.mu.Lock()
	id, ok := s.userIDs[username]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := s.x.UserByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.userIDs[username] = id
	s.mu.Unlock()
	return id, nil
}

func (s *Service) limit(configured, fallback int) int {
	if configured > 0 {
		return configured
	}
	return fallback
}

func truncateVoices(voices []types.Voice, max int) []types.Voice {
	if len(voices) > max {
		return voices[:max]
	}
	return voices
}

func truncateStrings(values []string, max int) []string {
	if len(values) > max {
		return values[:max]
	}
	return values
}
