package bandit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribune/internal/store"
	"tribune/internal/types"
)

type fakeArmHistory struct {
	stats    []store.ArmStats
	pulls    []types.ArmLogEntry
	statsErr error
	pullsErr error
}

func (f *fakeArmHistory) ArmStatsSince(since time.Time) ([]store.ArmStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeArmHistory) RecentArmPulls(limit int) ([]types.ArmLogEntry, error) {
	return f.pulls, f.pullsErr
}

func exploitPulls(n int) []types.ArmLogEntry {
	out := make([]types.ArmLogEntry, n)
	for i := range out {
		out[i] = types.ArmLogEntry{Sampled: 0.9}
	}
	return out
}

func newTestOptimizer(h ArmHistory) *Optimizer {
	return NewOptimizer(h, []string{"grids", "permits"}, []string{"reply", "join"}, MeanSampler)
}

func TestSampleCombination(t *testing.T) {
	t.Run("stats error falls back to random", func(t *testing.T) {
		o := newTestOptimizer(&fakeArmHistory{statsErr: errors.New("db gone")})
		c := o.SampleCombination()
		assert.Equal(t, "fallback", c.Method)
		assert.Equal(t, 0.5, c.SampledProb)
		assert.Contains(t, []string{"grids", "permits"}, c.Topic)
	})

	t.Run("no history explores", func(t *testing.T) {
		o := newTestOptimizer(&fakeArmHistory{})
		c := o.SampleCombination()
		assert.Equal(t, "exploration", c.Method)
		assert.Less(t, c.SampledProb, 0.5)
		assert.GreaterOrEqual(t, c.HourBin, 0)
	})

	t.Run("exploitation-heavy recent pulls trip the epsilon floor", func(t *testing.T) {
		h := &fakeArmHistory{
			pulls: exploitPulls(10),
			stats: []store.ArmStats{{Dimension: DimTopic, Arm: "grids", Pulls: 5, MeanReward: 0.9}},
		}
		o := newTestOptimizer(h)
		c := o.SampleCombination()
		assert.Equal(t, "exploration", c.Method)
	})

	t.Run("mixed recent pulls exploit the stats", func(t *testing.T) {
		pulls := exploitPulls(10)
		pulls[0].Sampled = 0.1
		pulls[1].Sampled = 0.2
		h := &fakeArmHistory{
			pulls: pulls,
			stats: []store.ArmStats{
				{Dimension: DimTopic, Arm: "grids", Pulls: 10, MeanReward: 0.9},
				{Dimension: DimTopic, Arm: "permits", Pulls: 10, MeanReward: 0.1},
				{Dimension: DimPostType, Arm: "proposal", Pulls: 10, MeanReward: 0.8},
				{Dimension: DimHourBin, Arm: "14", Pulls: 10, MeanReward: 0.7},
				{Dimension: DimCTAVariant, Arm: "reply", Pulls: 10, MeanReward: 0.6},
			},
		}
		o := newTestOptimizer(h)
		c := o.SampleCombination()
		assert.Equal(t, "exploitation", c.Method)
		assert.Equal(t, "grids", c.Topic)
		assert.Equal(t, "proposal", c.PostType)
		assert.Equal(t, 14, c.HourBin)
		assert.Equal(t, "reply", c.CTAVariant)
		assert.Greater(t, c.SampledProb, 0.0)
	})
}

func TestNormalizeReward(t *testing.T) {
	o := newTestOptimizer(&fakeArmHistory{})

	t.Run("without history clamps", func(t *testing.T) {
		assert.Equal(t, 0.0, o.normalizeReward(-3))
		assert.Equal(t, 1.0, o.normalizeReward(7))
		assert.Equal(t, 0.4, o.normalizeReward(0.4))
	})

	t.Run("with history uses percentile", func(t *testing.T) {
		o.UpdateRewardHistory([]float64{1, 2, 3, 4})
		assert.Equal(t, 1.0, o.normalizeReward(10))
		assert.Equal(t, 0.0, o.normalizeReward(0))
		assert.InDelta(t, 0.375, o.normalizeReward(2.5), 1e-9)
	})

	t.Run("window is capped", func(t *testing.T) {
		big := make([]float64, rewardWindowSize+50)
		o.UpdateRewardHistory(big)
		o.mu.Lock()
		n := len(o.rewardHistory)
		o.mu.Unlock()
		assert.Equal(t, rewardWindowSize, n)
	})
}

func TestBetaParams(t *testing.T) {
	o := newTestOptimizer(&fakeArmHistory{})
	succ, fail := o.betaParams(0.75, 8)
	assert.Equal(t, 6, succ)
	assert.Equal(t, 2, fail)

	succ, fail = o.betaParams(0, 5)
	assert.Equal(t, 0, succ)
	assert.Equal(t, 5, fail)
}

func TestRecommendations(t *testing.T) {
	h := &fakeArmHistory{stats: []store.ArmStats{
		{Dimension: DimTopic, Arm: "grids", Pulls: 5, MeanReward: 0.9},
		{Dimension: DimTopic, Arm: "permits", Pulls: 8, MeanReward: 0.4},
		{Dimension: DimCTAVariant, Arm: "reply", Pulls: 2, MeanReward: 0.99},
		{Dimension: DimCTAVariant, Arm: "join", Pulls: 1, MeanReward: 0.1},
	}}
	o := newTestOptimizer(h)

	recs, err := o.Recommendations()
	require.NoError(t, err)
	assert.Equal(t, "grids", recs[DimTopic])
	// No cta arm reaches the minimum sample size; most-pulled wins
	assert.Equal(t, "reply", recs[DimCTAVariant])
}

func TestExperimentSummary(t *testing.T) {
	h := &fakeArmHistory{
		stats: []store.ArmStats{
			{Dimension: DimTopic, Arm: "grids", Pulls: 4, MeanReward: 0.9},
			{Dimension: DimTopic, Arm: "permits", Pulls: 4, MeanReward: 0.2},
		},
		pulls: []types.ArmLogEntry{{Sampled: 0.9}, {Sampled: 0.2}, {Sampled: 0.1}, {Sampled: 0.8}},
	}
	o := newTestOptimizer(h)

	sum, err := o.ExperimentSummary()
	require.NoError(t, err)
	assert.Equal(t, 4, sum.RecentExperiments)
	assert.InDelta(t, 0.5, sum.ExplorationRatio, 1e-9)
	assert.Equal(t, "grids", sum.BestArms[DimTopic].Arm)
	assert.Len(t, sum.ByDimension[DimTopic], 2)
}
