package analytics

import (
	"fmt"
	"time"

	"tribune/internal/logging"
)

// OKR is the standing objective with its key results.
type OKR struct {
	Objective  string   `json:"objective"`
	KeyResults []string `json:"key_results"`
	PeriodDays int      `json:"period_days"`
}

// DefaultOKR returns the standing pilot-execution objective.
func DefaultOKR() OKR {
	return OKR{
		Objective: "Execute 1 pilot mechanism within 30 days",
		KeyResults: []string{
			"Generate 6 high-quality proposal posts",
			"Conduct 3 coalition-building calls",
			"Publish 2 concrete artifacts (frameworks/tools)",
		},
		PeriodDays: 30,
	}
}

// WeeklyPlan is the output of the Sunday planning pass.
type WeeklyPlan struct {
	CreatedAt   time.Time `json:"created_at"`
	Focus       string    `json:"focus"` // scale_success, course_correct
	Priorities  []string  `json:"priorities"`
	OKR         OKR       `json:"okr"`
	OKRProgress float64   `json:"okr_progress"`
	Summary     string    `json:"plan_summary"`
}

// CreateWeeklyPlan reviews the trailing week, picks a strategic focus,
// adjusts the OKR's ambition to observed throughput, and records the
// plan summary as an improvement note.
func (s *Service) CreateWeeklyPlan() (*WeeklyPlan, error) {
	trend, err := s.AnalyzeWeeklyTrend()
	if err != nil {
		return nil, err
	}
	rates, err := s.GrowthRates(7)
	if err != nil {
		return nil, err
	}

	strengths, weaknesses := 0, 0
	for _, rate := range rates {
		if rate > 10 {
			strengths++
		} else if rate < -10 {
			weaknesses++
		}
	}
	if trend.Direction == "improving" {
		strengths++
	} else if trend.Direction == "declining" {
		weaknesses++
	}

	focus := "course_correct"
	priorities := []string{
		"Address performance gaps",
		"Experiment with new approaches",
		"Rebuild engagement",
	}
	if strengths > weaknesses {
		focus = "scale_success"
		priorities = []string{
			"Double down on working strategies",
			"Expand successful content types",
			"Build on momentum",
		}
	}

	okr := DefaultOKR()
	proposals := trend.TotalPosts
	if proposals > 6 {
		proposals = 6
	}
	progress := float64(proposals) / 6 * 100 / 3
	if progress > 80 {
		okr.KeyResults[0] = "Generate 8 high-quality proposal posts"
	} else if progress < 30 {
		okr.KeyResults[0] = "Generate 4 high-quality proposal posts"
	}

	plan := &WeeklyPlan{
		CreatedAt:   s.now(),
		Focus:       focus,
		Priorities:  priorities,
		OKR:         okr,
		OKRProgress: progress,
		Summary: fmt.Sprintf("Weekly plan: %s focus, %d priorities, OKR progress: %.0f%%",
			focus, len(priorities), progress),
	}

	if err := s.store.SaveNote("planner", plan.Summary); err != nil {
		return nil, err
	}
	logging.Analytics("Weekly plan created: %s", plan.Summary)
	return plan, nil
}
