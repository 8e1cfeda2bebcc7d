package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tribune/internal/logging"
	"tribune/internal/types"
)

// Reflect reviews the last 24 hours of activity and records one
// improvement note summarizing engagement and follower movement.
func (s *Service) Reflect() (string, error) {
	since := s.now().Add(-24 * time.Hour)
	actions, err := s.store.RecentActions(since, 500)
	if err != nil {
		return "", err
	}

	var note string
	if len(actions) == 0 {
		note = "No recent activity to reflect on. Increase engagement and output."
	} else {
		posts, err := s.store.RecentPosts(since, 500)
		if err != nil {
			return "", err
		}
		engagement := 0.0
		for _, p := range posts {
			engagement += s.EngagementProxy(p.Engagement)
		}
		delta, err := s.followerDelta(1)
		if err != nil {
			return "", err
		}

		note = fmt.Sprintf("Reviewed %d actions. Engagement %.1f, follower change %.1f.",
			len(actions), engagement, delta)
		if engagement < 10 {
			note += " Consider posting more compelling content."
		}
		if delta < 0 {
			note += " Address follower decline."
		}
	}

	if err := s.store.SaveNote("reflection", note); err != nil {
		return "", err
	}
	logging.Analytics("Reflection recorded: %s", note)
	return note, nil
}

// DailyFeedback analyzes the last day's posts by topic, hour, and CTA
// and records one improvement note with up to three recommendations.
func (s *Service) DailyFeedback() (string, error) {
	since := s.now().Add(-24 * time.Hour)
	posts, err := s.store.RecentPosts(since, 500)
	if err != nil {
		return "", err
	}
	if len(posts) == 0 {
		note := "No recent posts to analyze. Consider increasing posting frequency."
		if err := s.store.SaveNote("feedback", note); err != nil {
			return "", err
		}
		return note, nil
	}

	topicAvg := averageBy(posts, func(p types.Post) string {
		if p.Topic == "" {
			return "unknown"
		}
		return p.Topic
	})
	hourAvg := averageBy(posts, func(p types.Post) string {
		return fmt.Sprintf("%d", p.CreatedAt.Hour())
	})
	ctaAvg := averageBy(posts, func(p types.Post) string {
		if p.CTAVariant == "" {
			return "none"
		}
		return p.CTAVariant
	})

	var improvements []string
	if topic := bestKey(topicAvg); topic != "" {
		improvements = append(improvements, fmt.Sprintf("Focus more on '%s' topic (highest J-score)", topic))
	}
	if hour := bestKey(hourAvg); hour != "" {
		improvements = append(improvements, fmt.Sprintf("Post more frequently around hour %s", hour))
	}
	if cta := bestKey(ctaAvg); cta != "" && cta != "none" {
		improvements = append(improvements, fmt.Sprintf("Use '%s' CTA variant more often", cta))
	}

	avg := 0.0
	for _, p := range posts {
		if p.JScore != nil {
			avg += *p.JScore
		}
	}
	avg /= float64(len(posts))
	if avg < 0.5 {
		improvements = append(improvements, "Overall performance below target - review content quality")
	} else if avg > 0.8 {
		improvements = append(improvements, "Strong performance - maintain current strategy")
	}

	if len(improvements) == 0 {
		improvements = append(improvements, "Maintain current strategy and monitor for emerging patterns")
	}
	if len(improvements) > 3 {
		improvements = improvements[:3]
	}
	note := strings.Join(improvements, "; ")

	if err := s.store.SaveNote("feedback", note); err != nil {
		return "", err
	}
	logging.Analytics("Daily feedback recorded: %s", note)
	return note, nil
}

// WeeklyTrend classifies the week's J-score direction: the last three
// daily averages against the earlier ones, with a ten percent band.
type WeeklyTrend struct {
	Direction     string             `json:"trend_direction"` // improving, declining, stable
	DailyAverages map[string]float64 `json:"daily_averages"`
	TotalPosts    int                `json:"total_posts"`
	WeekAverage   float64            `json:"week_average"`
}

// AnalyzeWeeklyTrend computes the weekly J-score trend.
func (s *Service) AnalyzeWeeklyTrend() (*WeeklyTrend, error) {
	since := s.now().Add(-7 * 24 * time.Hour)
	posts, err := s.store.RecentPosts(since, 1000)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string][]float64)
	total := 0.0
	for _, p := range posts {
		score := 0.0
		if p.JScore != nil {
			score = *p.JScore
		}
		day := p.CreatedAt.Format("2006-01-02")
		byDay[day] = append(byDay[day], score)
		total += score
	}

	dailyAverages := make(map[string]float64, len(byDay))
	days := make([]string, 0, len(byDay))
	for day, scores := range byDay {
		sum := 0.0
		for _, v := range scores {
			sum += v
		}
		dailyAverages[day] = sum / float64(len(scores))
		days = append(days, day)
	}
	sort.Strings(days)

	direction := "stable"
	if len(days) >= 3 {
		recent, earlier := 0.0, 0.0
		for _, day := range days[len(days)-3:] {
			recent += dailyAverages[day]
		}
		recent /= 3
		for _, day := range days[:len(days)-3] {
			earlier += dailyAverages[day]
		}
		earlier /= float64(len(days) - 3)

		if recent > earlier*1.1 {
			direction = "improving"
		} else if recent < earlier*0.9 {
			direction = "declining"
		}
	}

	weekAvg := 0.0
	if len(posts) > 0 {
		weekAvg = total / float64(len(posts))
	}
	return &WeeklyTrend{
		Direction:     direction,
		DailyAverages: dailyAverages,
		TotalPosts:    len(posts),
		WeekAverage:   weekAvg,
	}, nil
}

func averageBy(posts []types.Post, key func(types.Post) string) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, p := range posts {
		k := key(p)
		if p.JScore != nil {
			sums[k] += *p.JScore
		}
		counts[k]++
	}
	out := make(map[string]float64, len(sums))
	for k, sum := range sums {
		out[k] = sum / float64(counts[k])
	}
	return out
}

func bestKey(averages map[string]float64) string {
	best, bestScore := "", -1.0
	keys := make([]string, 0, len(averages))
	for k := range averages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if averages[k] > bestScore {
			best, bestScore = k, averages[k]
		}
	}
	return best
}
