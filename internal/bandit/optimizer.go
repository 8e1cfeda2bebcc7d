package bandit

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"tribune/internal/logging"
	"tribune/internal/store"
	"tribune/internal/types"
)

// Arm dimensions optimized per post.
const (
	DimPostType   = "post_type"
	DimTopic      = "topic"
	DimHourBin    = "hour_bin"
	DimCTAVariant = "cta_variant"
)

var dimensions = []string{DimPostType, DimTopic, DimHourBin, DimCTAVariant}

// epsilonFloor is the minimum exploration probability.
const epsilonFloor = 0.1

// rewardWindowSize caps the rolling J-score buffer used for percentile
// normalization.
const rewardWindowSize = 100

// minSampleSize is how many pulls an arm needs before it can be
// recommended.
const minSampleSize = 3

// ArmHistory is the slice of the store the optimizer reads.
type ArmHistory interface {
	ArmStatsSince(since time.Time) ([]store.ArmStats, error)
	RecentArmPulls(limit int) ([]types.ArmLogEntry, error)
}

// Combination is one sampled arm tuple.
type Combination struct {
	PostType    string  `json:"post_type"`
	Topic       string  `json:"topic"`
	HourBin     int     `json:"hour_bin"`
	CTAVariant  string  `json:"cta_variant"`
	Method      string  `json:"selection_method"` // exploration, exploitation, fallback
	SampledProb float64 `json:"sampled_prob"`
}

// Optimizer performs per-dimension Thompson sampling over recorded arm
// performance, with an epsilon-floor on exploration.
type Optimizer struct {
	history ArmHistory
	arms    map[string][]string
	sample  Sampler
	rng     *rand.Rand

	mu            sync.Mutex
	rewardHistory []float64
	now           func() time.Time
}

// NewOptimizer creates the optimizer. topics and ctaVariants come from
// configuration; post types and hour bins are fixed inventories.
func NewOptimizer(history ArmHistory, topics, ctaVariants []string, sample Sampler) *Optimizer {
	if sample == nil {
		sample = BetaSampler()
	}
	hours := make([]string, 24)
	for i := range hours {
		hours[i] = strconv.Itoa(i)
	}
	return &Optimizer{
		history: history,
		arms: map[string][]string{
			DimPostType:   {"proposal", "thread", "question", "insight"},
			DimTopic:      topics,
			DimHourBin:    hours,
			DimCTAVariant: ctaVariants,
		},
		sample: sample,
		rng:    rand.New(rand.NewSource(rand.Int63())),
		now:    time.Now,
	}
}

// SampleCombination picks one arm per dimension, exploring at random
// when recent history is exploitation-heavy or absent.
func (o *Optimizer) SampleCombination() Combination {
	stats, err := o.history.ArmStatsSince(o.now().Add(-30 * 24 * time.Hour))
	if err != nil {
		logging.Get(logging.CategoryBandit).Warn("Arm stats unavailable, falling back to random: %v", err)
		return o.randomCombination("fallback", 0.5)
	}

	perf := groupStats(stats)
	if o.shouldExplore() || len(perf) == 0 {
		logging.Bandit("Selected arms via exploration")
		return o.randomCombination("exploration", o.rng.Float64()*0.5)
	}

	c := o.thompsonCombination(perf)
	logging.Bandit("Selected arms via Thompson sampling: %s/%s/h%d/%s (p=%.3f)",
		c.PostType, c.Topic, c.HourBin, c.CTAVariant, c.SampledProb)
	return c
}

// shouldExplore checks the exploration ratio of the last ten pulls
// against the epsilon floor. No data always explores.
func (o *Optimizer) shouldExplore() bool {
	recent, err := o.history.RecentArmPulls(10)
	if err != nil || len(recent) == 0 {
		return true
	}
	exploring := 0
	for _, e := range recent {
		if e.Sampled < 0.5 {
			exploring++
		}
	}
	return float64(exploring)/float64(len(recent)) < epsilonFloor
}

func (o *Optimizer) randomCombination(method string, prob float64) Combination {
	c := Combination{Method: method, SampledProb: prob}
	c.PostType = o.randomArm(DimPostType)
	c.Topic = o.randomArm(DimTopic)
	c.CTAVariant = o.randomArm(DimCTAVariant)
	c.HourBin, _ = strconv.Atoi(o.randomArm(DimHourBin))
	return c
}

func (o *Optimizer) randomArm(dimension string) string {
	arms := o.arms[dimension]
	if len(arms) == 0 {
		return ""
	}
	return arms[o.rng.Intn(len(arms))]
}

// thompsonCombination samples each dimension's arms from Beta posteriors
// built from percentile-normalized mean rewards.
func (o *Optimizer) thompsonCombination(perf map[string]map[string]store.ArmStats) Combination {
	c := Combination{Method: "exploitation"}
	totalProb := 1.0

	pick := func(dimension string) string {
		arms, ok := perf[dimension]
		if !ok || len(arms) == 0 {
			totalProb *= 0.5
			return o.randomArm(dimension)
		}
		best := ""
		bestSample := -1.0
		for arm, st := range arms {
			succ, fail := o.betaParams(st.MeanReward, st.Pulls)
			alpha := priorAlpha + float64(succ)
			beta := priorBeta + float64(fail)
			s := o.sample(alpha, beta)
			if s > bestSample {
				bestSample = s
				best = arm
			}
		}
		totalProb *= bestSample
		return best
	}

	c.PostType = pick(DimPostType)
	c.Topic = pick(DimTopic)
	c.HourBin, _ = strconv.Atoi(pick(DimHourBin))
	c.CTAVariant = pick(DimCTAVariant)
	c.SampledProb = totalProb
	return c
}

// betaParams converts an arm's mean reward and pull count into
// success/failure counts via percentile normalization.
func (o *Optimizer) betaParams(meanReward float64, pulls int) (succ, fail int) {
	normalized := o.normalizeReward(meanReward)
	succ = int(normalized * float64(pulls))
	fail = pulls - succ
	if succ < 0 {
		succ = 0
	}
	if fail < 0 {
		fail = 0
	}
	return succ, fail
}

// UpdateRewardHistory replaces the rolling normalization window with the
// most recent scores, capped at the window size.
func (o *Optimizer) UpdateRewardHistory(scores []float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(scores) > rewardWindowSize {
		scores = scores[:rewardWindowSize]
	}
	o.rewardHistory = append([]float64(nil), scores...)
	logging.BanditDebug("Reward history updated with %d samples", len(o.rewardHistory))
}

// normalizeReward maps a reward to [0,1] by its percentile in the
// rolling window, with linear interpolation. Without history the raw
// value is clamped.
func (o *Optimizer) normalizeReward(reward float64) float64 {
	o.mu.Lock()
	history := append([]float64(nil), o.rewardHistory...)
	o.mu.Unlock()

	if len(history) == 0 {
		if reward < 0 {
			return 0
		}
		if reward > 1 {
			return 1
		}
		return reward
	}

	sorted := append([]float64(nil), history...)
	sort.Float64s(sorted)
	return findPercentile(reward, sorted) / 100.0
}

// findPercentile locates value in the sorted list with linear
// interpolation between neighbors.
func findPercentile(value float64, sorted []float64) float64 {
	if len(sorted) == 0 {
		return 50.0
	}
	if value <= sorted[0] {
		return 0.0
	}
	if value >= sorted[len(sorted)-1] {
		return 100.0
	}
	for i := 0; i < len(sorted)-1; i++ {
		if sorted[i] <= value && value <= sorted[i+1] {
			ratio := 0.0
			if sorted[i+1] != sorted[i] {
				ratio = (value - sorted[i]) / (sorted[i+1] - sorted[i])
			}
			return (float64(i) + ratio) / float64(len(sorted)) * 100.0
		}
	}
	return 50.0
}

func groupStats(stats []store.ArmStats) map[string]map[string]store.ArmStats {
	out := make(map[string]map[string]store.ArmStats)
	for _, st := range stats {
		if out[st.Dimension] == nil {
			out[st.Dimension] = make(map[string]store.ArmStats)
		}
		out[st.Dimension][st.Arm] = st
	}
	return out
}

// Recommendations returns the best arm per dimension over the last two
// weeks, requiring the minimum sample size; dimensions without a
// qualified arm fall back to the most-pulled one.
func (o *Optimizer) Recommendations() (map[string]string, error) {
	stats, err := o.history.ArmStatsSince(o.now().Add(-14 * 24 * time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load arm stats: %w", err)
	}
	perf := groupStats(stats)

	recs := make(map[string]string)
	for dimension, arms := range perf {
		bestArm, bestReward := "", -1.0
		mostPulled, mostPulls := "", -1
		for arm, st := range arms {
			if st.Pulls >= minSampleSize && st.MeanReward > bestReward {
				bestArm, bestReward = arm, st.MeanReward
			}
			if st.Pulls > mostPulls {
				mostPulled, mostPulls = arm, st.Pulls
			}
		}
		if bestArm != "" {
			recs[dimension] = bestArm
		} else if mostPulled != "" {
			recs[dimension] = mostPulled
		}
	}
	return recs, nil
}

// Summary aggregates experiment status over the last week.
type Summary struct {
	RecentExperiments int                         `json:"recent_experiments"`
	ExplorationRatio  float64                     `json:"exploration_ratio"`
	BestArms          map[string]store.ArmStats   `json:"best_arms"`
	ByDimension       map[string]map[string]store.ArmStats `json:"performance_by_dimension"`
}

// ExperimentSummary reports per-dimension best arms and the recent
// exploration/exploitation split.
func (o *Optimizer) ExperimentSummary() (*Summary, error) {
	stats, err := o.history.ArmStatsSince(o.now().Add(-7 * 24 * time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load arm stats: %w", err)
	}
	perf := groupStats(stats)

	best := make(map[string]store.ArmStats)
	for dimension, arms := range perf {
		var top store.ArmStats
		found := false
		for _, st := range arms {
			if !found || st.MeanReward > top.MeanReward {
				top = st
				found = true
			}
		}
		if found {
			best[dimension] = top
		}
	}

	recent, err := o.history.RecentArmPulls(200)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent pulls: %w", err)
	}
	exploring := 0
	for _, e := range recent {
		if e.Sampled < 0.5 {
			exploring++
		}
	}
	ratio := 0.0
	if len(recent) > 0 {
		ratio = float64(exploring) / float64(len(recent))
	}

	return &Summary{
		RecentExperiments: len(recent),
		ExplorationRatio:  ratio,
		BestArms:          best,
		ByDimension:       perf,
	}, nil
}
