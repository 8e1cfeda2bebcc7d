package perception

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribune/internal/config"
	"tribune/internal/store"
	"tribune/internal/types"
)

const voicesYAML = `
policy:
  - username: gridwatcher
    authority_weight: 0.9
  - username: ""
    authority_weight: 0.5
research:
  - username: labnotes
    platform: mastodon
    authority_weight: 0.7
`

func writeVoices(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(voicesYAML), 0644))
	return path
}

func TestLoadVoices(t *testing.T) {
	t.Run("flattens groups and skips blanks", func(t *testing.T) {
		voices, err := LoadVoices(writeVoices(t))
		require.NoError(t, err)
		require.Len(t, voices, 2)

		byName := map[string]types.Voice{}
		for _, v := range voices {
			byName[v.Username] = v
		}
		assert.Equal(t, "x", byName["gridwatcher"].Platform, "platform defaults to x")
		assert.Equal(t, "mastodon", byName["labnotes"].Platform)
	})

	t.Run("missing or empty path is not an error", func(t *testing.T) {
		voices, err := LoadVoices("")
		require.NoError(t, err)
		assert.Nil(t, voices)

		voices, err = LoadVoices(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Nil(t, voices)
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("policy: [unterminated"), 0644))
		_, err := LoadVoices(path)
		assert.Error(t, err)
	})
}

type fakeX struct {
	mentions  []types.RemotePost
	mentionID string
	timeline  []types.RemotePost
	nextToken string
	trends    []types.Trend
	userPosts map[string][]types.RemotePost

	mentionsErr error
	timelineErr error
	trendsErr   error

	seenSinceID string
	seenToken   string
}

func (f *fakeX) Mentions(ctx context.Context, sinceID string, limit int) ([]types.RemotePost, string, error) {
	f.seenSinceID = sinceID
	return f.mentions, f.mentionID, f.mentionsErr
}

func (f *fakeX) HomeTimeline(ctx context.Context, token string, limit int) ([]types.RemotePost, string, error) {
	f.seenToken = token
	return f.timeline, f.nextToken, f.timelineErr
}

func (f *fakeX) UserPosts(ctx context.Context, userID, sinceID string, limit int) ([]types.RemotePost, string, error) {
	posts := f.userPosts[userID]
	last := ""
	if len(posts) > 0 {
		last = posts[0].ID
	}
	return posts, last, nil
}

func (f *fakeX) UserByUsername(ctx context.Context, username string) (string, error) {
	if username == "gridwatcher" {
		return "u1", nil
	}
	return "", errors.New("unknown user")
}

func (f *fakeX) Trends(ctx context.Context, limit int) ([]types.Trend, error) {
	return f.trends, f.trendsErr
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "tribune.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPriorityVoices(t *testing.T) {
	st := openTestStore(t)
	svc, err := New(config.PerceptionConfig{VoicesPath: writeVoices(t)}, st, nil)
	require.NoError(t, err)

	top := svc.PriorityVoices(0.8, 5)
	require.Len(t, top, 1)
	assert.Equal(t, "gridwatcher", top[0].Username)

	all := svc.PriorityVoices(0, 5)
	require.Len(t, all, 2)
	assert.Equal(t, "gridwatcher", all[0].Username, "sorted by authority descending")

	assert.Len(t, svc.PriorityVoices(0, 1), 1)
}

func TestIngestNilSource(t *testing.T) {
	st := openTestStore(t)
	svc, err := New(config.PerceptionConfig{Keywords: []string{"grid", "permits"}}, st, nil)
	require.NoError(t, err)

	total, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, total, "keywords only")

	ev, err := st.LatestSensedEvent()
	require.NoError(t, err)
	assert.Equal(t, "perception", ev.Source)
	assert.Equal(t, 0, ev.Counts["x_mentions"])
	assert.Equal(t, 2, ev.Counts["signals"])
}

func TestIngest(t *testing.T) {
	st := openTestStore(t)
	x := &fakeX{
		mentions: []types.RemotePost{
			{ID: "m2", Text: "this rollout is a disaster", Followers: 4000},
			{ID: "m1", Text: "love the pilot"},
		},
		mentionID: "m2",
		timeline:  []types.RemotePost{{ID: "t1", Text: "grid news"}},
		nextToken: "tok-2",
		trends:    []types.Trend{{Name: "interconnection", Volume: 1200}},
		userPosts: map[string][]types.RemotePost{
			"u1": {{ID: "v5", Text: "queue reform draft is out"}},
		},
	}
	svc, err := New(config.PerceptionConfig{VoicesPath: writeVoices(t)}, st, x)
	require.NoError(t, err)

	total, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	// 2 mentions + 1 timeline + 1 trend + 1 voice post + 2 whitelist entries
	assert.Equal(t, 7, total)

	t.Run("cursors advance", func(t *testing.T) {
		since, err := st.GetCursor("x_mentions_since_id")
		require.NoError(t, err)
		assert.Equal(t, "m2", since)

		token, err := st.GetCursor("x_timeline_token")
		require.NoError(t, err)
		assert.Equal(t, "tok-2", token)

		voice, err := st.GetCursor("x_voice_cursor:gridwatcher")
		require.NoError(t, err)
		assert.Equal(t, "v5", voice)
	})

	t.Run("payload persists all sources", func(t *testing.T) {
		ev, err := st.LatestSensedEvent()
		require.NoError(t, err)

		var p Payload
		require.NoError(t, json.Unmarshal([]byte(ev.Payload), &p))
		assert.Len(t, p.X.Mentions, 2)
		assert.Len(t, p.X.HomeTimeline, 1)
		assert.Len(t, p.X.TrendingTopics, 1)
		assert.Len(t, p.X.Voices["gridwatcher"], 1)
		assert.Equal(t, "tok-2", p.X.Meta["next_token"])
	})

	t.Run("last mentions feed the crisis monitor", func(t *testing.T) {
		mentions := svc.LastMentions()
		require.Len(t, mentions, 2)
		assert.Equal(t, "m2", mentions[0].ID)
		assert.Equal(t, 2, svc.LastCounts()["x_mentions"])
	})

	t.Run("next ingest resumes from the stored cursors", func(t *testing.T) {
		_, err := svc.Ingest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "m2", x.seenSinceID)
		assert.Equal(t, "tok-2", x.seenToken)
	})

	t.Run("empty next token clears the timeline cursor", func(t *testing.T) {
		x.nextToken = ""
		_, err := svc.Ingest(context.Background())
		require.NoError(t, err)
		token, err := st.GetCursor("x_timeline_token")
		require.NoError(t, err)
		assert.Empty(t, token)
	})
}

func TestIngestPartialFailure(t *testing.T) {
	st := openTestStore(t)
	x := &fakeX{
		mentionsErr: errors.New("mentions down"),
		timelineErr: errors.New("timeline down"),
		trends:      []types.Trend{{Name: "permits", Volume: 300}},
	}
	svc, err := New(config.PerceptionConfig{}, st, x)
	require.NoError(t, err)

	total, err := svc.Ingest(context.Background())
	require.NoError(t, err, "source failures never fail the pass")
	assert.Equal(t, 1, total)

	ev, err := st.LatestSensedEvent()
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Counts["x_mentions"])
	assert.Equal(t, 1, ev.Counts["x_trends"])

	since, err := st.GetCursor("x_mentions_since_id")
	require.NoError(t, err)
	assert.Empty(t, since, "failed fetch leaves the cursor alone")
}
