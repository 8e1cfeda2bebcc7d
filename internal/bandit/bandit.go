// Package bandit implements the Beta-Bernoulli Thompson sampler used
// for action selection and the per-dimension arm optimizer that learns
// from measured J-scores.
package bandit

import (
	"sync"

	"tribune/internal/logging"
)

// ArmState holds the Beta posterior for one arm.
type ArmState struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Pulls int     `json:"pulls"`
}

// Prior parameters for new arms.
const (
	priorAlpha = 2.0
	priorBeta  = 2.0
)

// Sampler draws from a Beta(alpha, beta) distribution. Deterministic
// samplers are injected in tests.
type Sampler func(alpha, beta float64) float64

// MeanSampler returns the posterior mean instead of a random draw.
func MeanSampler(alpha, beta float64) float64 {
	return alpha / (alpha + beta)
}

// Thompson is a Beta-Bernoulli Thompson sampler over discrete arms.
type Thompson struct {
	mu     sync.Mutex
	state  map[string]*ArmState
	sample Sampler
}

// NewThompson creates a sampler over the given arms. A nil sampler uses
// random Beta draws.
func NewThompson(arms []string, sample Sampler) *Thompson {
	if sample == nil {
		sample = BetaSampler()
	}
	t := &Thompson{
		state:  make(map[string]*ArmState),
		sample: sample,
	}
	for _, arm := range arms {
		t.state[arm] = &ArmState{Alpha: priorAlpha, Beta: priorBeta}
	}
	return t
}

// Select draws one sample per candidate and returns the argmax. With an
// empty candidate list, all known arms compete.
func (t *Thompson) Select(candidates []string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(candidates) == 0 {
		for arm := range t.state {
			candidates = append(candidates, arm)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	best := ""
	bestSample := -1.0
	for _, arm := range candidates {
		st, ok := t.state[arm]
		if !ok {
			st = &ArmState{Alpha: priorAlpha, Beta: priorBeta}
			t.state[arm] = st
		}
		s := t.sample(st.Alpha, st.Beta)
		if s > bestSample {
			bestSample = s
			best = arm
		}
	}
	logging.BanditDebug("Selected arm %s (sample %.3f)", best, bestSample)
	return best
}

// SelectWeighted draws one posterior sample per candidate, scales it by
// the candidate's prior weight, and returns the argmax with its score.
func (t *Thompson) SelectWeighted(weights map[string]float64) (string, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	best := ""
	bestScore := -1.0
	for arm, weight := range weights {
		st, ok := t.state[arm]
		if !ok {
			st = &ArmState{Alpha: priorAlpha, Beta: priorBeta}
			t.state[arm] = st
		}
		score := weight * t.sample(st.Alpha, st.Beta)
		if score > bestScore {
			bestScore = score
			best = arm
		}
	}
	if best != "" {
		logging.BanditDebug("Selected weighted arm %s (score %.3f)", best, bestScore)
	}
	return best, bestScore
}

// RecordOutcome applies a reward in [0,1] to an arm's posterior.
func (t *Thompson) RecordOutcome(arm string, reward float64) {
	if reward < 0 {
		reward = 0
	}
	if reward > 1 {
		reward = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.state[arm]
	if !ok {
		st = &ArmState{Alpha: priorAlpha, Beta: priorBeta}
		t.state[arm] = st
	}
	st.Alpha += reward
	st.Beta += 1.0 - reward
	st.Pulls++
	logging.BanditDebug("Arm %s updated: alpha=%.2f beta=%.2f pulls=%d",
		arm, st.Alpha, st.Beta, st.Pulls)
}

// State returns a copy of the posterior table.
func (t *Thompson) State() map[string]ArmState {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]ArmState, len(t.state))
	for arm, st := range t.state {
		out[arm] = *st
	}
	return out
}
