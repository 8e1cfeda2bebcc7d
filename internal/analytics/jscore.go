package analytics

import (
	"math"
	"time"

	"tribune/internal/logging"
	"tribune/internal/types"
)

// PostJScore computes the per-post objective: half engagement, half
// mission alignment, minus a mode-weighted penalty, never negative.
func (s *Service) PostJScore(p *types.Post, impactScore float64) float64 {
	weights := s.cfg.WeightsFor(s.cfg.CurrentGoalMode())

	engagement := math.Min(s.EngagementProxy(p.Engagement)/100, 1)
	alignment := impactScore / 100
	penalty := math.Min(p.PenaltyScore/10, 1)

	j := 0.5*engagement + 0.5*alignment - weights.Lambda*penalty
	if j < 0 {
		j = 0
	}
	return j
}

// GlobalJScore computes the goal-aligned objective from normalized
// metric components. Below the weekly impact floor the revenue term is
// halved so monetization cannot mask a stalled mission.
func (s *Service) GlobalJScore(fame, revenue, authority, penalty, impact float64) float64 {
	weights := s.cfg.WeightsFor(s.cfg.CurrentGoalMode())

	beta := weights.Beta
	if impact < s.cfg.Impact.WeeklyFloor {
		beta /= 2
	}

	j := weights.Alpha*normalize(fame, 10) +
		beta*normalize(revenue, 100) +
		weights.Gamma*normalize(authority, 100) -
		weights.Lambda*normalize(penalty, 100)
	if j < 0 {
		j = 0
	}
	return j
}

func normalize(value, scale float64) float64 {
	if value < 0 {
		return 0
	}
	return math.Min(value/scale, 1)
}

// ScorePosts fills in authority, penalty, and J-score for live posts
// whose metrics have been measured but not yet scored. The reward is
// written onto the post's pending arm rows, and onScored (optional)
// receives each newly scored post for bandit updates.
func (s *Service) ScorePosts(onScored func(p *types.Post, reward float64)) (int, error) {
	posts, err := s.store.PostsMissingScores(200)
	if err != nil {
		return 0, err
	}
	if len(posts) == 0 {
		return 0, nil
	}

	impact, err := s.ImpactScore(7)
	if err != nil {
		return 0, err
	}

	scored := 0
	for i := range posts {
		p := &posts[i]
		authority := AuthorityScore(p.Engagement)
		p.AuthorityHits = int(authority)
		j := s.PostJScore(p, impact)

		if err := s.store.UpdatePostScores(p.ID, p.AuthorityHits, p.PenaltyScore, j); err != nil {
			logging.Analytics("Failed to score post %d: %v", p.ID, err)
			continue
		}
		if err := s.store.RecordArmRewards(p.ID, j); err != nil {
			logging.Analytics("Failed to record arm rewards for post %d: %v", p.ID, err)
		}
		scored++

		if onScored != nil {
			onScored(p, j)
		}
	}
	logging.Analytics("Scored %d posts (impact=%.1f)", scored, impact)
	return scored, nil
}

// RecentJScores returns the measured J-scores over a window, newest
// first, for reward normalization.
func (s *Service) RecentJScores(days, limit int) ([]float64, error) {
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	posts, err := s.store.RecentPosts(since, limit)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, 0, len(posts))
	for _, p := range posts {
		if p.JScore != nil {
			scores = append(scores, *p.JScore)
		}
	}
	return scores, nil
}
