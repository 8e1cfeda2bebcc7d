package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribune/internal/gates"
	"tribune/internal/llm"
)

type scriptedLLM struct {
	outputs []string
	calls   int
}

func (s *scriptedLLM) Chat(ctx context.Context, system string, messages []llm.Message, temperature float64, maxTokens int) (string, error) {
	out := s.outputs[s.calls%len(s.outputs)]
	s.calls++
	return out, nil
}

type fakeHistory struct {
	texts []struct{ Text, Hash string }
}

func (f *fakeHistory) RecentTexts(since time.Time) ([]struct{ Text, Hash string }, error) {
	return f.texts, nil
}

func (f *fakeHistory) add(text string) {
	f.texts = append(f.texts, struct{ Text, Hash string }{Text: text, Hash: TextHash(text)})
}

type staticPrompts struct{}

func (staticPrompts) SystemPrompt() string { return "system" }

const validProposal = "Problem: permits stall small solar. Mechanism: one shared review " +
	"queue. Pilot for 30 days, track KPIs weekly. Risk: backlog gaming. Reply for the " +
	"checklist. https://example.gov/permits"

func newTestGenerator(out []string, hist *fakeHistory) *Generator {
	if hist == nil {
		hist = &fakeHistory{}
	}
	pipeline := gates.NewPipeline([]string{".gov"}, true)
	return New(&scriptedLLM{outputs: out}, pipeline, hist, staticPrompts{})
}

func TestTextHash(t *testing.T) {
	assert.Equal(t, TextHash("Hello World"), TextHash("  hello   world "))
	assert.NotEqual(t, TextHash("hello world"), TextHash("hello worlds"))
	assert.Len(t, TextHash("x"), 32)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("same text", "SAME   text"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Less(t, Similarity("completely different words", "nothing in common here"), 0.5)

	near := Similarity("run a 30 day pilot with one kpi", "run a 30 day pilot with two kpi")
	assert.Greater(t, near, 0.8)

	t.Run("multibyte text normalized on runes", func(t *testing.T) {
		// 8 runes, edit distance 1
		got := Similarity("日本語のテキスト", "日本語のテキスロ")
		assert.InDelta(t, 1.0-1.0/8.0, got, 1e-9)
	})
}

func TestMakeProposal(t *testing.T) {
	t.Run("valid draft passes the gates", func(t *testing.T) {
		g := newTestGenerator([]string{validProposal}, nil)
		out, err := g.MakeProposal(context.Background(), "grids", "checklist", 1)
		require.NoError(t, err)
		assert.Contains(t, out, "https://example.gov/permits")
	})

	t.Run("hedge-free draft gains the addendum", func(t *testing.T) {
		g := newTestGenerator([]string{validProposal}, nil)
		out, err := g.MakeProposal(context.Background(), "grids", "checklist", 1)
		require.NoError(t, err)
		assert.Contains(t, out, "Uncertainty:")
		assert.Contains(t, out, "Rollback:")
	})

	t.Run("gate rejection surfaces as GateError", func(t *testing.T) {
		g := newTestGenerator([]string{"We must destroy them all."}, nil)
		_, err := g.MakeProposal(context.Background(), "grids", "checklist", 1)
		var ge *gates.GateError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, "ethics", ge.Gate)
	})
}

func TestDuplicateMutation(t *testing.T) {
	reply := "Fair point well made. A 30 day pilot with one KPI settles it."
	mutated := "Disagree on framing here. The mechanism matters far more than the metric early on."

	t.Run("duplicate draft retries once with a mutation", func(t *testing.T) {
		hist := &fakeHistory{}
		hist.add(reply)
		g := newTestGenerator([]string{reply, mutated}, hist)

		out, err := g.MakeReply(context.Background(), "@user: thoughts?", 0)
		require.NoError(t, err)
		assert.Equal(t, mutated, out)
	})

	t.Run("duplicate mutation gives up", func(t *testing.T) {
		hist := &fakeHistory{}
		hist.add(reply)
		g := newTestGenerator([]string{reply}, hist)

		_, err := g.MakeReply(context.Background(), "@user: thoughts?", 0)
		assert.ErrorIs(t, err, ErrDuplicateContent)
	})
}

func TestMakeReplyCadence(t *testing.T) {
	good := "Short sharp point. Another short one. " +
		"The third sentence runs much longer because it carries the actual substance " +
		"of the argument and the receipts that make it worth posting at all."

	g := newTestGenerator([]string{good}, nil)
	out, err := g.MakeReply(context.Background(), "@user: what gives?", 2)
	require.NoError(t, err)
	assert.Equal(t, good, out)

	g = newTestGenerator([]string{"One. Two. Three. Four."}, nil)
	_, err = g.MakeReply(context.Background(), "@user: hm", 0)
	var ge *gates.GateError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "cadence", ge.Gate)
}

func TestMakeDMCopy(t *testing.T) {
	g := newTestGenerator([]string{"  Saw your thread on storage; the permit checklist might save you a week.  "}, nil)
	out, err := g.MakeDMCopy(context.Background(), "gridwatcher", "storage thread")
	require.NoError(t, err)
	assert.Equal(t, "Saw your thread on storage; the permit checklist might save you a week.", out)

	g = newTestGenerator([]string{"   "}, nil)
	_, err = g.MakeDMCopy(context.Background(), "gridwatcher", "x")
	assert.Error(t, err)
}

func TestParseThread(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		th, err := parseThread(`{"posts":[{"text":"one"},{"text":"two"}],"dm_copy":"ping"}`)
		require.NoError(t, err)
		require.Len(t, th.Posts, 2)
		assert.Equal(t, "ping", th.DMCopy)
	})

	t.Run("code fences and prose tolerated", func(t *testing.T) {
		raw := "Here you go:\n```json\n{\"posts\":[{\"text\":\"one\"}]}\n```\nEnjoy."
		th, err := parseThread(raw)
		require.NoError(t, err)
		require.Len(t, th.Posts, 1)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := parseThread("no json here")
		assert.Error(t, err)
	})
}

func TestMakeThread(t *testing.T) {
	threadJSON := `{"posts":[` +
		`{"text":"Permit queues are the quiet bottleneck. Receipts: https://example.gov/permits"},` +
		`{"text":"Next step: pilot a shared review pool in one county."}` +
		`]}`

	t.Run("citation and step across segments satisfy the guard", func(t *testing.T) {
		g := newTestGenerator([]string{threadJSON}, nil)
		th, err := g.MakeThread(context.Background(), "permits", 3)
		require.NoError(t, err)
		require.Len(t, th.Posts, 2)
	})

	t.Run("high intensity without citation rejected", func(t *testing.T) {
		g := newTestGenerator([]string{`{"posts":[{"text":"Bold claim, zero receipts."}]}`}, nil)
		_, err := g.MakeThread(context.Background(), "permits", 3)
		var ge *gates.GateError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, "receipts", ge.Gate)
	})

	t.Run("off-whitelist link is not a citation", func(t *testing.T) {
		g := newTestGenerator([]string{`{"posts":[` +
			`{"text":"Receipts: https://random.blog/post. Next step: pilot it in one county."}` +
			`]}`}, nil)
		_, err := g.MakeThread(context.Background(), "permits", 3)
		var ge *gates.GateError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, "receipts", ge.Gate)
		assert.Contains(t, ge.Detail, "citation")
	})

	t.Run("high intensity without constructive step rejected", func(t *testing.T) {
		g := newTestGenerator([]string{`{"posts":[` +
			`{"text":"The backlog doubled in a year: https://example.gov/permits"}` +
			`]}`}, nil)
		_, err := g.MakeThread(context.Background(), "permits", 3)
		var ge *gates.GateError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, "receipts", ge.Gate)
		assert.Contains(t, ge.Detail, "constructive")
	})

	t.Run("low intensity needs no citation", func(t *testing.T) {
		g := newTestGenerator([]string{`{"posts":[{"text":"Bold claim, zero receipts."}]}`}, nil)
		th, err := g.MakeThread(context.Background(), "permits", 1)
		require.NoError(t, err)
		require.Len(t, th.Posts, 1)
	})

	t.Run("duplicate root rejected", func(t *testing.T) {
		hist := &fakeHistory{}
		hist.add("Permit queues are the quiet bottleneck. Receipts: https://example.gov/permits")
		g := newTestGenerator([]string{threadJSON}, hist)
		_, err := g.MakeThread(context.Background(), "permits", 1)
		assert.ErrorIs(t, err, ErrDuplicateContent)
	})
}
