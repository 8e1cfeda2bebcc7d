// Package analytics computes the measurement side of the loop: fame,
// revenue, authority and penalty metrics, per-post and global J-scores,
// structured-outcome extraction, KPI rollups, reflection and feedback
// notes, and the weekly plan.
package analytics

import (
	"math"
	"time"

	"tribune/internal/config"
	"tribune/internal/logging"
	"tribune/internal/store"
	"tribune/internal/types"
)

// Service computes analytics over the store.
type Service struct {
	store *store.Store
	cfg   *config.Config
	now   func() time.Time
}

// New creates the analytics service.
func New(st *store.Store, cfg *config.Config) *Service {
	return &Service{store: st, cfg: cfg, now: time.Now}
}

// EngagementProxy weights raw interaction counts into one number.
func (s *Service) EngagementProxy(e types.Engagement) float64 {
	a := s.cfg.Analytics
	return a.LikeWeight*float64(e.Likes) +
		a.RepostWeight*float64(e.Reposts) +
		a.ReplyWeight*float64(e.Replies) +
		a.QuoteWeight*float64(e.Quotes)
}

// FameScore computes z(engagement_proxy) + z(follower delta) over a
// window of days.
func (s *Service) FameScore(days int) (float64, error) {
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	posts, err := s.store.RecentPosts(since, 1000)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, p := range posts {
		total += s.EngagementProxy(p.Engagement)
	}

	delta, err := s.followerDelta(days)
	if err != nil {
		return 0, err
	}

	a := s.cfg.Analytics
	engagementZ := zScore(total, a.EngagementMean, a.EngagementStd)
	followerZ := zScore(delta, a.FollowersMean, a.FollowersStd)
	return engagementZ + followerZ, nil
}

// RevenuePerDay sums tracked redirect clicks at the configured rate.
func (s *Service) RevenuePerDay() (float64, error) {
	clicks, err := s.store.TotalClicks()
	if err != nil {
		return 0, err
	}
	return float64(clicks) * s.cfg.Analytics.RevenuePerClick, nil
}

// AuthoritySignals sums per-post authority over a window, scaled by 10
// and capped at 100.
func (s *Service) AuthoritySignals(days int) (float64, error) {
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	posts, err := s.store.RecentPosts(since, 1000)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, p := range posts {
		total += float64(p.AuthorityHits)
	}
	return math.Min(total/10, 100), nil
}

// PenaltyScore weights rate-limit strikes and account-level negatives
// recorded as actions over a window.
func (s *Service) PenaltyScore(days int) (float64, error) {
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	actions, err := s.store.RecentActions(since, 5000)
	if err != nil {
		return 0, err
	}

	rateLimits, penalties := 0, 0
	for _, a := range actions {
		switch a.Result {
		case "rate_limited":
			rateLimits++
		case "mute_detected", "block_detected", "ethics_violation":
			penalties++
		}
	}
	a := s.cfg.Analytics
	return a.RateLimitPenalty*float64(rateLimits) + a.BlockMutePenalty*float64(penalties), nil
}

// EngagementRate averages per-post engagement against the latest
// follower count, as a percentage capped at 100.
func (s *Service) EngagementRate() (float64, error) {
	since := s.now().Add(-7 * 24 * time.Hour)
	posts, err := s.store.RecentPosts(since, 1000)
	if err != nil {
		return 0, err
	}
	if len(posts) == 0 {
		return 0, nil
	}

	total := 0.0
	for _, p := range posts {
		e := p.Engagement
		total += float64(e.Likes + e.Reposts + e.Replies + e.Quotes)
	}

	followers := s.latestFollowers()
	if followers <= 0 {
		followers = 1000
	}
	rate := (total / float64(len(posts))) / float64(followers) * 100
	return math.Min(rate, 100), nil
}

func (s *Service) latestFollowers() int {
	snaps, err := s.store.FollowerSnapshots("x", s.now().Add(-60*24*time.Hour))
	if err != nil || len(snaps) == 0 {
		return 0
	}
	return snaps[len(snaps)-1].Count
}

func (s *Service) followerDelta(days int) (float64, error) {
	since := s.now().Add(-time.Duration(days+1) * 24 * time.Hour)
	snaps, err := s.store.FollowerSnapshots("x", since)
	if err != nil {
		return 0, err
	}
	if len(snaps) < 2 {
		return 0, nil
	}
	return float64(snaps[len(snaps)-1].Count - snaps[0].Count), nil
}

func zScore(value, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (value - mean) / std
}

// Summary is the dashboard analytics payload.
type Summary struct {
	FameScore      float64 `json:"fame_score"`
	RevenueDaily   float64 `json:"revenue_daily"`
	Authority      float64 `json:"authority_signals"`
	Penalty        float64 `json:"penalty_score"`
	EngagementRate float64 `json:"engagement_rate"`
	ImpactScore    float64 `json:"impact_score"`
	GlobalJ        float64 `json:"objective_score"`
	PostsToday     int     `json:"posts_today"`
}

// Summarize computes the current analytics summary.
func (s *Service) Summarize() (*Summary, error) {
	fame, err := s.FameScore(1)
	if err != nil {
		return nil, err
	}
	revenue, err := s.RevenuePerDay()
	if err != nil {
		return nil, err
	}
	authority, err := s.AuthoritySignals(1)
	if err != nil {
		return nil, err
	}
	penalty, err := s.PenaltyScore(1)
	if err != nil {
		return nil, err
	}
	rate, err := s.EngagementRate()
	if err != nil {
		return nil, err
	}
	impact, err := s.ImpactScore(7)
	if err != nil {
		return nil, err
	}
	globalJ := s.GlobalJScore(fame, revenue, authority, penalty, impact)

	posts, err := s.store.CountPostsSince(s.now().Truncate(24 * time.Hour))
	if err != nil {
		return nil, err
	}

	logging.AnalyticsDebug("Summary: fame=%.2f revenue=%.2f authority=%.2f penalty=%.2f J=%.3f",
		fame, revenue, authority, penalty, globalJ)

	return &Summary{
		FameScore:      fame,
		RevenueDaily:   revenue,
		Authority:      authority,
		Penalty:        penalty,
		EngagementRate: rate,
		ImpactScore:    impact,
		GlobalJ:        globalJ,
		PostsToday:     posts,
	}, nil
}
