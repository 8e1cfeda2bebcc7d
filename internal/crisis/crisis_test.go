package crisis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribune/internal/types"
)

type fakePublisher struct {
	calls    int
	lastText string
	lastKind types.PostKind
	receipts []types.Receipt
	err      error
}

func (f *fakePublisher) PublishPost(ctx context.Context, text string, kind types.PostKind) ([]types.Receipt, error) {
	f.calls++
	f.lastText = text
	f.lastKind = kind
	return f.receipts, f.err
}

func TestSentiment(t *testing.T) {
	assert.Equal(t, 0.0, Sentiment(""))
	assert.Equal(t, 0.0, Sentiment("neutral words only"))
	assert.Equal(t, 1.0, Sentiment("great success"))
	assert.Equal(t, -1.0, Sentiment("terrible problem"))
	assert.InDelta(t, 1.0/3.0, Sentiment("good growth but a loss"), 1e-9)
}

func TestMeanSentiment(t *testing.T) {
	assert.Equal(t, 0.0, MeanSentiment(nil))
	assert.Equal(t, 0.0, MeanSentiment([]string{"", ""}))
	got := MeanSentiment([]string{"great win", "terrible loss", ""})
	assert.InDelta(t, 0.0, got, 1e-9)
}

func TestComputeSignal(t *testing.T) {
	s := New(Config{SignalThreshold: 12})

	t.Run("non-negative sentiment yields zero", func(t *testing.T) {
		got := s.UpdateMetrics(context.Background(), "test",
			types.CrisisInput{Sentiment: 0.2, Velocity: 50, Authority: 10}, nil)
		assert.Equal(t, 0.0, got)
	})

	t.Run("zero velocity or authority yields zero", func(t *testing.T) {
		got := s.UpdateMetrics(context.Background(), "test",
			types.CrisisInput{Sentiment: -0.8, Velocity: 0, Authority: 10}, nil)
		assert.Equal(t, 0.0, got)
		got = s.UpdateMetrics(context.Background(), "test",
			types.CrisisInput{Sentiment: -0.8, Velocity: 5, Authority: 0}, nil)
		assert.Equal(t, 0.0, got)
	})

	t.Run("product of magnitudes", func(t *testing.T) {
		got := s.UpdateMetrics(context.Background(), "test",
			types.CrisisInput{Sentiment: -0.5, Velocity: 4, Authority: 2}, nil)
		assert.InDelta(t, 4.0, got, 1e-9)
		assert.Equal(t, got, s.LastSignal())
		assert.False(t, s.Active())
	})
}

func TestEscalationAndRecovery(t *testing.T) {
	pub := &fakePublisher{receipts: []types.Receipt{{Platform: "x", PostID: "1", DryRun: false}}}
	s := New(Config{SignalThreshold: 10, ResumeThreshold: 5, CalmingMessage: "We hear you."})

	hot := types.CrisisInput{Sentiment: -1, Velocity: 10, Authority: 2}
	s.UpdateMetrics(context.Background(), "mentions", hot, pub)

	require.True(t, s.Active())
	assert.Equal(t, "mentions", s.Reason())
	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, "We hear you.", pub.lastText)
	assert.Equal(t, types.KindCalming, pub.lastKind)

	t.Run("guard blocks everything but rest", func(t *testing.T) {
		assert.False(t, s.Guard(types.ActionPostProposal))
		assert.False(t, s.Guard(types.ActionReplyMentions))
		assert.True(t, s.Guard(types.ActionRest))
	})

	t.Run("repeat escalation does not republish", func(t *testing.T) {
		s.UpdateMetrics(context.Background(), "mentions", hot, pub)
		assert.Equal(t, 1, pub.calls)
	})

	t.Run("signal above resume threshold stays paused", func(t *testing.T) {
		s.UpdateMetrics(context.Background(), "analytics",
			types.CrisisInput{Sentiment: -1, Velocity: 7, Authority: 1}, pub)
		assert.True(t, s.Active())
	})

	t.Run("decayed signal with live receipt resumes", func(t *testing.T) {
		s.UpdateMetrics(context.Background(), "analytics",
			types.CrisisInput{Sentiment: -0.2, Velocity: 2, Authority: 1}, pub)
		assert.False(t, s.Active())
		assert.True(t, s.Guard(types.ActionPostProposal))
	})
}

func TestRecoveryBlockedWithoutLiveReceipt(t *testing.T) {
	pub := &fakePublisher{receipts: []types.Receipt{{Platform: "x", DryRun: true}}}
	s := New(Config{SignalThreshold: 10, ResumeThreshold: 5})

	s.UpdateMetrics(context.Background(), "mentions",
		types.CrisisInput{Sentiment: -1, Velocity: 10, Authority: 2}, pub)
	require.True(t, s.Active())

	s.UpdateMetrics(context.Background(), "mentions",
		types.CrisisInput{Sentiment: -0.1, Velocity: 1, Authority: 1}, pub)
	assert.True(t, s.Active(), "dry-run receipt must not unlock resumption")

	assert.True(t, s.RecordReceipts([]types.Receipt{{Platform: "x", PostID: "9"}}))
	s.UpdateMetrics(context.Background(), "mentions",
		types.CrisisInput{Sentiment: -0.1, Velocity: 1, Authority: 1}, pub)
	assert.False(t, s.Active())
}

func TestEscalationSurvivesPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("network down")}
	s := New(Config{SignalThreshold: 10})

	s.UpdateMetrics(context.Background(), "mentions",
		types.CrisisInput{Sentiment: -1, Velocity: 10, Authority: 2}, pub)
	assert.True(t, s.Active())
}

func TestEvaluateMentions(t *testing.T) {
	s := New(Config{SignalThreshold: 100})
	mentions := []types.RemotePost{
		{Text: "this is terrible and a problem", Followers: 5000},
		{Text: "total decline and loss"},
		{Text: ""},
	}
	got := s.EvaluateMentions(context.Background(), mentions, 0, nil)
	// sentiment -1, velocity 2, authority 5.0 from follower count
	assert.InDelta(t, 10.0, got, 1e-9)
	assert.False(t, s.Active())
}

func TestIsCrisisText(t *testing.T) {
	s := New(Config{Keywords: []string{"lawsuit", "Outage"}, SentimentThreshold: -0.5})
	assert.True(t, s.IsCrisisText("the LAWSUIT drops tomorrow"))
	assert.True(t, s.IsCrisisText("major outage reported"))
	assert.True(t, s.IsCrisisText("terrible horrible decline"))
	assert.False(t, s.IsCrisisText("a pleasant day of growth"))
}

func TestOperatorOverride(t *testing.T) {
	s := New(Config{})
	s.Activate("operator_override")
	assert.True(t, s.Active())
	assert.Equal(t, "operator_override", s.Reason())

	s.Activate("second")
	assert.Equal(t, "operator_override", s.Reason())

	s.Resolve("done")
	assert.False(t, s.Active())
	assert.Equal(t, 0.0, s.LastSignal())

	s.Resolve("again")
	assert.False(t, s.Active())
}

func TestEstimateAuthority(t *testing.T) {
	assert.Equal(t, 1.0, EstimateAuthority(nil))
	assert.Equal(t, 5.0, EstimateAuthority([]types.RemotePost{{Followers: 5000}}))
	assert.Equal(t, 3.0, EstimateAuthority([]types.RemotePost{{Verified: true}}))
	assert.Equal(t, 8.0, EstimateAuthority([]types.RemotePost{
		{Followers: 2000, Verified: true, Engagement: 80},
	}))
}

func TestNewDefaults(t *testing.T) {
	s := New(Config{SignalThreshold: 8})
	assert.Equal(t, 4.0, s.cfg.ResumeThreshold)
	assert.Equal(t, -0.5, s.cfg.SentimentThreshold)
	assert.NotEmpty(t, s.cfg.CalmingMessage)
}
