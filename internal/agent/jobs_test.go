package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"tribune/internal/types"
)

func TestRelevance(t *testing.T) {
	t.Run("direct term match", func(t *testing.T) {
		assert.Equal(t, 3, relevance("interconnection", "the interconnection queue is stuck"))
	})

	t.Run("no match scores zero", func(t *testing.T) {
		assert.Equal(t, 0, relevance("permits", "cats are great"))
	})

	t.Run("related keywords widen the net", func(t *testing.T) {
		// "energy" group: power, renewable both present, plus the term itself
		got := relevance("energy", "renewable power beats energy waste")
		assert.Equal(t, 5, got)
	})

	t.Run("questions and substance add a point each", func(t *testing.T) {
		long := "how do we fix the permits backlog? " + strings.Repeat("context ", 12)
		got := relevance("permits", long)
		assert.Equal(t, 5, got) // 3 term + 1 question + 1 length
	})

	t.Run("capped at ten", func(t *testing.T) {
		text := "energy power fuel renewable efficiency? " + strings.Repeat("x", 100)
		assert.LessOrEqual(t, relevance("energy", text), 10)
	})
}

func TestActionForKind(t *testing.T) {
	assert.Equal(t, types.ActionReplyMentions, actionForKind(types.KindReply))
	assert.Equal(t, types.ActionSearchEngage, actionForKind(types.KindQuote))
	assert.Equal(t, types.ActionPostProposal, actionForKind(types.KindProposal))
	assert.Equal(t, types.ActionPostProposal, actionForKind(types.KindThread))
}

// The job-only action names are persisted on action records, so they
// are pinned here.
func TestJobActionNames(t *testing.T) {
	assert.Equal(t, types.ActionType("POST_THREAD"), types.ActionPostThread)
	assert.Equal(t, types.ActionType("SEND_VALUE_DM"), types.ActionValueDM)
}

func TestResultFor(t *testing.T) {
	assert.Equal(t, "published", resultFor(true))
	assert.Equal(t, "dry_run", resultFor(false))
}

func TestChainID(t *testing.T) {
	t.Run("prefers the x receipt", func(t *testing.T) {
		got := chainID(map[string]types.Receipt{
			"mastodon": {Platform: "mastodon", PostID: "m1"},
			"x":        {Platform: "x", PostID: "x1"},
		})
		assert.Equal(t, "x1", got)
	})

	t.Run("falls back to any receipt", func(t *testing.T) {
		got := chainID(map[string]types.Receipt{
			"mastodon": {Platform: "mastodon", PostID: "m1"},
		})
		assert.Equal(t, "m1", got)
	})

	t.Run("empty map yields empty id", func(t *testing.T) {
		assert.Equal(t, "", chainID(nil))
	})
}
