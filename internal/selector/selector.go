// Package selector decides the agent's next action: it filters for
// eligibility (quiet hours, crisis guard, cooldowns), scores candidates
// from base probabilities, persona content mix, and drive weights, and
// lets a Thompson sampler pick from the weighted eligible set.
package selector

import (
	"math/rand"
	"sync"
	"time"

	"tribune/internal/bandit"
	"tribune/internal/config"
	"tribune/internal/logging"
	"tribune/internal/types"
)

// Guard is the crisis check every outbound decision passes first.
type Guard interface {
	Guard(action types.ActionType) bool
	Active() bool
	LastSignal() float64
}

// Metrics is the slice of analytics the selector consults.
type Metrics interface {
	PenaltyScore(days int) (float64, error)
	AuthoritySignals(days int) (float64, error)
	RecentJScores(days, limit int) ([]float64, error)
}

// History reads last-action times persisted across restarts.
type History interface {
	LastActionTime(t types.ActionType) (time.Time, error)
	DMSentSince(recipient string, since time.Time) (bool, error)
}

// Selector picks the next action each decision cycle.
type Selector struct {
	cfg       *config.Config
	guard     Guard
	metrics   Metrics
	history   History
	thompson  *bandit.Thompson
	optimizer *bandit.Optimizer

	contentMix func() map[string]float64

	mu            sync.Mutex
	lastActions   map[types.ActionType]time.Time
	lastIntensity map[types.ActionType]int
	rng           *rand.Rand
	now           func() time.Time
}

// New creates a selector. contentMix supplies the current persona's
// content-mix map; a nil sampler uses random Beta draws.
func New(cfg *config.Config, guard Guard, metrics Metrics, history History,
	optimizer *bandit.Optimizer, contentMix func() map[string]float64,
	sample bandit.Sampler) *Selector {

	arms := make([]string, 0, len(types.AllActionTypes))
	for _, a := range types.AllActionTypes {
		arms = append(arms, string(a))
	}

	return &Selector{
		cfg:           cfg,
		guard:         guard,
		metrics:       metrics,
		history:       history,
		thompson:      bandit.NewThompson(arms, sample),
		optimizer:     optimizer,
		contentMix:    contentMix,
		lastActions:   make(map[types.ActionType]time.Time),
		lastIntensity: make(map[types.ActionType]int),
		rng:           rand.New(rand.NewSource(rand.Int63())),
		now:           time.Now,
	}
}

// NextAction runs one decision cycle.
func (s *Selector) NextAction() *types.Decision {
	now := s.now()

	if s.cfg.InQuietHours(now) {
		logging.Selector("Quiet hours, resting")
		return s.restDecision("quiet_hours", 60)
	}

	if !s.guard.Guard(types.ActionPostProposal) {
		logging.Selector("Crisis active, resting")
		return s.restDecision("crisis_active", 5)
	}

	eligible := s.eligibleActions(now)
	if len(eligible) == 0 {
		logging.Selector("All actions on cooldown, resting")
		return s.restDecision("all_actions_on_cooldown", 5)
	}

	weights := s.scoreActions(eligible)
	picked, score := s.thompson.SelectWeighted(weights)
	action := types.ActionType(picked)

	decision := &types.Decision{
		Action:       action,
		Score:        score,
		Deliberation: "weighted_bandit_selection",
		DecidedAt:    now,
	}

	if action != types.ActionRest {
		combo := s.optimizer.SampleCombination()
		decision.SampledProb = combo.SampledProb
		decision.Arms = types.ArmSelection{
			Topic:      combo.Topic,
			CTAVariant: combo.CTAVariant,
			PostFormat: combo.PostType,
			Hour:       combo.HourBin,
			Intensity:  s.NextIntensity(action),
		}
	} else {
		decision.NextCheckMin = 5 + s.rng.Intn(11)
	}

	s.mu.Lock()
	s.lastActions[action] = now
	s.mu.Unlock()

	logging.Selector("Decision: %s topic=%s intensity=%d score=%.3f",
		decision.Action, decision.Arms.Topic, decision.Arms.Intensity, decision.Score)
	return decision
}

// RecordOutcome feeds a measured reward back to the action-type arm.
func (s *Selector) RecordOutcome(action types.ActionType, reward float64) {
	s.thompson.RecordOutcome(string(action), reward)
}

// ActionState reports the top-level posterior table for the dashboard.
func (s *Selector) ActionState() map[string]bandit.ArmState {
	return s.thompson.State()
}

func (s *Selector) restDecision(reason string, nextCheckMin int) *types.Decision {
	return &types.Decision{
		Action:       types.ActionRest,
		Deliberation: reason,
		NextCheckMin: nextCheckMin,
		DecidedAt:    s.now(),
	}
}

// eligibleActions filters by per-action minimum intervals. REST is
// always eligible.
func (s *Selector) eligibleActions(now time.Time) []types.ActionType {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eligible []types.ActionType
	for _, action := range types.AllActionTypes {
		if action == types.ActionRest {
			eligible = append(eligible, action)
			continue
		}

		last, ok := s.lastActions[action]
		if !ok {
			if t, err := s.history.LastActionTime(action); err == nil && !t.IsZero() {
				last, ok = t, true
				s.lastActions[action] = t
			}
		}
		if !ok {
			eligible = append(eligible, action)
			continue
		}

		interval := s.minInterval(action)
		if now.Sub(last) >= interval {
			eligible = append(eligible, action)
		}
	}
	return eligible
}

func (s *Selector) minInterval(action types.ActionType) time.Duration {
	minutes, ok := s.cfg.Selector.MinIntervalsMinutes[string(action)]
	if !ok {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// scoreActions computes prob(a) = base(a) * mix_factor(a) *
// drive_factor(a), normalized over the eligible set.
func (s *Selector) scoreActions(eligible []types.ActionType) map[string]float64 {
	mix := map[string]float64{}
	if s.contentMix != nil {
		mix = s.contentMix()
	}

	scores := make(map[string]float64, len(eligible))
	total := 0.0
	for _, action := range eligible {
		base, ok := s.cfg.Selector.BaseProbs[string(action)]
		if !ok {
			base = 0.1
		}
		score := base * s.mixFactor(action, mix) * s.driveFactor(action)
		scores[string(action)] = score
		total += score
	}
	if total > 0 {
		for k := range scores {
			scores[k] /= total
		}
	}
	return scores
}

func (s *Selector) mixFactor(action types.ActionType, mix map[string]float64) float64 {
	switch action {
	case types.ActionPostProposal:
		share, ok := mix["proposals"]
		if !ok {
			share = 0.7
		}
		return share * 2
	case types.ActionReplyMentions:
		share, ok := mix["elite_replies"]
		if !ok {
			share = 0.2
		}
		return share * 5
	default:
		return 1.0
	}
}

func (s *Selector) driveFactor(action types.ActionType) float64 {
	drives := s.cfg.Selector.Drives
	switch action {
	case types.ActionPostProposal:
		return drives["impact"] + drives["novelty"]
	case types.ActionSearchEngage:
		return drives["curiosity"] + drives["novelty"]
	case types.ActionRest:
		return drives["stability"] * 2
	default:
		return 1.0
	}
}

// PickTopic returns a uniform-random topic from the inventory.
func (s *Selector) PickTopic() string {
	topics := s.cfg.Selector.Topics
	if len(topics) == 0 {
		return "general"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return topics[s.rng.Intn(len(topics))]
}

// PickDMTarget filters priority voices for high authority and excludes
// anyone contacted in the last 24 hours.
func (s *Selector) PickDMTarget(voices []types.Voice) (types.Voice, bool) {
	cutoff := s.now().Add(-24 * time.Hour)
	for _, v := range voices {
		if v.AuthorityWeight < 0.75 {
			continue
		}
		sent, err := s.history.DMSentSince(v.Username, cutoff)
		if err != nil || sent {
			continue
		}
		return v, true
	}
	return types.Voice{}, false
}
