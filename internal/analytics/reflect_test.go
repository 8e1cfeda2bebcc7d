package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribune/internal/types"
)

func TestReflect(t *testing.T) {
	t.Run("quiet day asks for more output", func(t *testing.T) {
		s, st := newTestService(t)
		note, err := s.Reflect()
		require.NoError(t, err)
		assert.Contains(t, note, "No recent activity")

		notes, err := st.RecentNotes(5)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, "reflection", notes[0].Source)
	})

	t.Run("active day summarizes the numbers", func(t *testing.T) {
		s, st := newTestService(t)
		_, err := st.SaveAction(&types.Action{Type: types.ActionPostProposal, Result: "published"})
		require.NoError(t, err)
		id, err := st.SavePost(&types.Post{Platform: "x", Kind: types.KindProposal, Text: "a", TextHash: "a"})
		require.NoError(t, err)
		require.NoError(t, st.UpdateEngagement(id, types.Engagement{Likes: 3}))

		note, err := s.Reflect()
		require.NoError(t, err)
		assert.Contains(t, note, "Reviewed 1 actions")
		assert.Contains(t, note, "Consider posting more compelling content", "engagement 3.0 is under the bar")
	})
}

func TestDailyFeedback(t *testing.T) {
	t.Run("no posts", func(t *testing.T) {
		s, _ := newTestService(t)
		note, err := s.DailyFeedback()
		require.NoError(t, err)
		assert.Contains(t, note, "No recent posts")
	})

	t.Run("recommendations from the best performers", func(t *testing.T) {
		s, st := newTestService(t)

		strong, err := st.SavePost(&types.Post{
			Platform: "x", Kind: types.KindProposal, Text: "a", TextHash: "a",
			Topic: "grids", CTAVariant: "join_pilot",
		})
		require.NoError(t, err)
		weak, err := st.SavePost(&types.Post{
			Platform: "x", Kind: types.KindProposal, Text: "b", TextHash: "b",
			Topic: "permits", CTAVariant: "reply_model",
		})
		require.NoError(t, err)
		require.NoError(t, st.UpdatePostScores(strong, 0, 0, 0.9))
		require.NoError(t, st.UpdatePostScores(weak, 0, 0, 0.2))

		note, err := s.DailyFeedback()
		require.NoError(t, err)
		assert.Contains(t, note, "Focus more on 'grids' topic")
		assert.Contains(t, note, "Use 'join_pilot' CTA variant")
		assert.LessOrEqual(t, len(splitSemicolons(note)), 3)
	})
}

func splitSemicolons(s string) []string {
	var parts []string
	start := 0
	for i := 0; i+1 < len(s); i++ {
		if s[i] == ';' && s[i+1] == ' ' {
			parts = append(parts, s[start:i])
			start = i + 2
		}
	}
	return append(parts, s[start:])
}

func TestAnalyzeWeeklyTrend(t *testing.T) {
	s, st := newTestService(t)

	t.Run("empty week", func(t *testing.T) {
		trend, err := s.AnalyzeWeeklyTrend()
		require.NoError(t, err)
		assert.Equal(t, "stable", trend.Direction)
		assert.Equal(t, 0, trend.TotalPosts)
		assert.Equal(t, 0.0, trend.WeekAverage)
	})

	t.Run("single day stays stable", func(t *testing.T) {
		a, err := st.SavePost(&types.Post{Platform: "x", Kind: types.KindProposal, Text: "a", TextHash: "a"})
		require.NoError(t, err)
		b, err := st.SavePost(&types.Post{Platform: "x", Kind: types.KindProposal, Text: "b", TextHash: "b"})
		require.NoError(t, err)
		require.NoError(t, st.UpdatePostScores(a, 0, 0, 0.6))
		require.NoError(t, st.UpdatePostScores(b, 0, 0, 0.4))

		trend, err := s.AnalyzeWeeklyTrend()
		require.NoError(t, err)
		assert.Equal(t, "stable", trend.Direction, "needs at least three days of data")
		assert.Equal(t, 2, trend.TotalPosts)
		assert.InDelta(t, 0.5, trend.WeekAverage, 1e-9)
		assert.Len(t, trend.DailyAverages, 1)
	})
}

func TestBestKey(t *testing.T) {
	assert.Equal(t, "", bestKey(nil))
	assert.Equal(t, "b", bestKey(map[string]float64{"a": 0.2, "b": 0.9, "c": 0.5}))
}

func TestRollupKPIs(t *testing.T) {
	s, st := newTestService(t)
	id, err := st.SavePost(&types.Post{Platform: "x", Kind: types.KindProposal, Text: "a", TextHash: "a"})
	require.NoError(t, err)
	require.NoError(t, st.UpdateEngagement(id, types.Engagement{Likes: 10}))

	require.NoError(t, s.RollupKPIs())

	for _, series := range types.AllKPISeries {
		_, ok, err := st.LatestKPI(series)
		require.NoError(t, err)
		assert.True(t, ok, series)
	}

	freq, ok, err := st.LatestKPI(types.KPIPostFrequency)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, freq)
}

func TestKPITrendsAndGrowthRates(t *testing.T) {
	s, st := newTestService(t)

	t.Run("no history means zero growth", func(t *testing.T) {
		rates, err := s.GrowthRates(7)
		require.NoError(t, err)
		assert.Equal(t, 0.0, rates[types.KPIFameScore])
	})

	require.NoError(t, st.SaveKPI(types.KPIPostFrequency, 2))
	require.NoError(t, st.SaveKPI(types.KPIPostFrequency, 3))

	trends, err := s.KPITrends(7)
	require.NoError(t, err)
	points := trends[types.KPIPostFrequency]
	require.Len(t, points, 2)
	assert.Len(t, trends, len(types.AllKPISeries))

	rates, err := s.GrowthRates(7)
	require.NoError(t, err)
	expected := (points[1].Value - points[0].Value) / points[0].Value * 100
	assert.InDelta(t, expected, rates[types.KPIPostFrequency], 1e-9)
	assert.NotZero(t, rates[types.KPIPostFrequency])
}

func TestCreateWeeklyPlan(t *testing.T) {
	s, st := newTestService(t)

	plan, err := s.CreateWeeklyPlan()
	require.NoError(t, err)
	assert.Equal(t, "course_correct", plan.Focus, "no signal defaults to correction")
	assert.Len(t, plan.Priorities, 3)
	assert.Equal(t, "Generate 4 high-quality proposal posts", plan.OKR.KeyResults[0], "low progress trims ambition")
	assert.Equal(t, 0.0, plan.OKRProgress)
	assert.WithinDuration(t, time.Now(), plan.CreatedAt, time.Minute)

	notes, err := st.RecentNotes(5)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Text, "Weekly plan: course_correct")
}
