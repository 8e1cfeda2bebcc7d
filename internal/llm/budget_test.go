package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	calls int
	out   string
	err   error
}

func (f *fakeClient) Chat(ctx context.Context, system string, messages []Message, temperature float64, maxTokens int) (string, error) {
	f.calls++
	return f.out, f.err
}

func TestBudgetTake(t *testing.T) {
	t.Run("zero caps are unlimited", func(t *testing.T) {
		b := NewBudget(0, 0)
		for i := 0; i < 100; i++ {
			assert.True(t, b.Take())
		}
	})

	t.Run("hourly cap enforced", func(t *testing.T) {
		b := NewBudget(2, 0)
		assert.True(t, b.Take())
		assert.True(t, b.Take())
		assert.False(t, b.Take())
	})

	t.Run("daily cap enforced across hour resets", func(t *testing.T) {
		clock := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
		b := NewBudget(10, 3)
		b.now = func() time.Time { return clock }

		require.True(t, b.Take())
		require.True(t, b.Take())
		require.True(t, b.Take())
		assert.False(t, b.Take())

		clock = clock.Add(2 * time.Hour)
		assert.False(t, b.Take(), "hour reset must not clear the daily count")

		clock = clock.Add(25 * time.Hour)
		assert.True(t, b.Take())
	})

	t.Run("hour window rolls over", func(t *testing.T) {
		clock := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
		b := NewBudget(1, 0)
		b.now = func() time.Time { return clock }

		require.True(t, b.Take())
		require.False(t, b.Take())
		clock = clock.Add(61 * time.Minute)
		assert.True(t, b.Take())
	})
}

func TestBudgetRemaining(t *testing.T) {
	b := NewBudget(5, 20)
	b.Take()
	b.Take()
	hour, day := b.Remaining()
	assert.Equal(t, 3, hour)
	assert.Equal(t, 18, day)
}

func TestBudgetedClientFallbacks(t *testing.T) {
	ctx := context.Background()
	proposalMsg := []Message{{Role: "user", Content: "Draft a proposal about grids"}}
	replyMsg := []Message{{Role: "user", Content: "Write a reply to this"}}

	t.Run("nil inner always uses templates", func(t *testing.T) {
		c := NewBudgetedClient(nil, NewBudget(0, 0), 0)
		out, err := c.Chat(ctx, "sys", proposalMsg, 0.7, 0)
		require.NoError(t, err)
		assert.Equal(t, proposalTemplate, out)
	})

	t.Run("exhausted budget falls back without error", func(t *testing.T) {
		inner := &fakeClient{out: "real output"}
		c := NewBudgetedClient(inner, NewBudget(1, 1), 100)

		out, err := c.Chat(ctx, "sys", replyMsg, 0.6, 0)
		require.NoError(t, err)
		assert.Equal(t, "real output", out)
		assert.Equal(t, 1, inner.calls)

		out, err = c.Chat(ctx, "sys", replyMsg, 0.6, 0)
		require.NoError(t, err)
		assert.Equal(t, replyTemplate, out)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("provider error falls back without error", func(t *testing.T) {
		inner := &fakeClient{err: errors.New("upstream 500")}
		c := NewBudgetedClient(inner, NewBudget(0, 0), 100)
		out, err := c.Chat(ctx, "sys", []Message{{Role: "user", Content: "anything"}}, 0.7, 0)
		require.NoError(t, err)
		assert.Equal(t, genericTemplate, out)
	})
}

func TestTemplateFor(t *testing.T) {
	assert.Equal(t, proposalTemplate, templateFor([]Message{{Role: "user", Content: "a PROPOSAL please"}}))
	assert.Equal(t, replyTemplate, templateFor([]Message{{Role: "user", Content: "please respond"}}))
	assert.Equal(t, genericTemplate, templateFor(nil))
	assert.Equal(t, replyTemplate, templateFor([]Message{
		{Role: "user", Content: "reply to this"},
		{Role: "assistant", Content: "proposal draft"},
	}))
}
