package selector

import (
	"tribune/internal/logging"
	"tribune/internal/types"
)

// NextIntensity computes the intensity level for the next post of one
// action type. It starts from the last successful level, adjusts on
// penalty, recent J-scores, and authority, and steps down hard during a
// crisis.
func (s *Selector) NextIntensity(action types.ActionType) int {
	cfg := s.cfg.Intensity

	s.mu.Lock()
	current, ok := s.lastIntensity[action]
	s.mu.Unlock()
	if !ok {
		current = cfg.MinLevel
	}
	if !cfg.Adaptive {
		return clamp(current, cfg.MinLevel, cfg.MaxLevel)
	}

	crisisActive := s.guard.Active()
	step := 0

	penalty, err := s.metrics.PenaltyScore(1)
	if err == nil {
		if penalty >= 8 {
			step -= 2
		} else if penalty >= 4 {
			step--
		}
	}

	if scores, err := s.metrics.RecentJScores(7, 100); err == nil && len(scores) > 0 {
		sum := 0.0
		for _, j := range scores {
			sum += j
		}
		avg := sum / float64(len(scores))
		if avg >= 0.65 {
			step++
		} else if avg <= 0.35 && !crisisActive {
			step--
		}
	}

	if authority, err := s.metrics.AuthoritySignals(1); err == nil && authority >= 60 {
		step++
	}

	if crisisActive {
		if step > -2 {
			step = -2
		}
	} else if s.guard.LastSignal() >= s.cfg.Crisis.SignalThreshold {
		if step > -1 {
			step = -1
		}
	}

	maxStep := 1
	if crisisActive {
		maxStep = 2
	}
	step = clamp(step, -maxStep, maxStep)

	level := clamp(current+step, cfg.MinLevel, cfg.MaxLevel)
	logging.SelectorDebug("Intensity for %s: %d (step %+d)", action, level, step)
	return level
}

// RecordIntensity stores the intensity of a successfully published post
// as the starting point for the next one.
func (s *Selector) RecordIntensity(action types.ActionType, level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIntensity[action] = clamp(level, s.cfg.Intensity.MinLevel, s.cfg.Intensity.MaxLevel)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
