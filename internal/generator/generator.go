// Package generator drafts persona-conditioned content and runs it
// through the validation gates. Drafting uses the LLM client (with its
// template fallback); every draft is deduplicated against the last 30
// days of published text and mutated once before giving up.
package generator

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tribune/internal/gates"
	"tribune/internal/llm"
	"tribune/internal/logging"
	"tribune/internal/types"
)

// Drafting temperatures per content kind.
const (
	tempProposal = 0.7
	tempReply    = 0.6
	tempMutation = 0.8
)

// dedupeWindow is how far back published text is checked for duplicates.
const dedupeWindow = 30 * 24 * time.Hour

// ErrDuplicateContent is returned when a draft (and its one mutation)
// both collide with recently published text.
var ErrDuplicateContent = fmt.Errorf("duplicate content")

// History is the slice of the store the duplicate gate needs.
type History interface {
	RecentTexts(since time.Time) ([]struct{ Text, Hash string }, error)
}

// Prompter supplies the current system prompt.
type Prompter interface {
	SystemPrompt() string
}

// Generator drafts and validates content.
type Generator struct {
	llm     llm.Client
	gates   *gates.Pipeline
	history History
	prompts Prompter
	now     func() time.Time
}

// New creates a generator.
func New(client llm.Client, pipeline *gates.Pipeline, history History, prompts Prompter) *Generator {
	return &Generator{
		llm:     client,
		gates:   pipeline,
		history: history,
		prompts: prompts,
		now:     time.Now,
	}
}

// MakeProposal drafts a standalone proposal post.
func (g *Generator) MakeProposal(ctx context.Context, topic, ctaVariant string, intensity int) (string, error) {
	draft, err := g.llm.Chat(ctx, g.prompts.SystemPrompt(),
		[]llm.Message{{Role: "user", Content: proposalPrompt(topic, ctaVariant, intensity)}},
		tempProposal, 0)
	if err != nil {
		return "", fmt.Errorf("proposal draft failed: %w", err)
	}

	draft = gates.EnforceAddendum(draft, "proposal")
	return g.finalize(ctx, draft, types.KindProposal, intensity)
}

// MakeReply drafts a reply to an inbound post.
func (g *Generator) MakeReply(ctx context.Context, original string, intensity int) (string, error) {
	draft, err := g.llm.Chat(ctx, g.prompts.SystemPrompt(),
		[]llm.Message{{Role: "user", Content: replyPrompt(original, intensity)}},
		tempReply, 0)
	if err != nil {
		return "", fmt.Errorf("reply draft failed: %w", err)
	}
	return g.finalize(ctx, draft, types.KindReply, intensity)
}

// MakeQuote drafts a quote post commenting on another post.
func (g *Generator) MakeQuote(ctx context.Context, original, topic string, intensity int) (string, error) {
	draft, err := g.llm.Chat(ctx, g.prompts.SystemPrompt(),
		[]llm.Message{{Role: "user", Content: quotePrompt(original, topic, intensity)}},
		tempReply, 0)
	if err != nil {
		return "", fmt.Errorf("quote draft failed: %w", err)
	}
	return g.finalize(ctx, draft, types.KindQuote, intensity)
}

// MakeDMCopy drafts a short value-first direct message for a voice.
func (g *Generator) MakeDMCopy(ctx context.Context, username, context_ string) (string, error) {
	draft, err := g.llm.Chat(ctx, g.prompts.SystemPrompt(),
		[]llm.Message{{Role: "user", Content: dmPrompt(username, context_)}},
		tempReply, 0)
	if err != nil {
		return "", fmt.Errorf("dm draft failed: %w", err)
	}
	draft = gates.HardTrim(strings.TrimSpace(draft), gates.MaxPostLength)
	if draft == "" {
		return "", gates.Rejected("length", "empty dm")
	}
	return draft, nil
}

// finalize gates the draft, dedupes it, and retries once with a mutation.
func (g *Generator) finalize(ctx context.Context, draft string, kind types.PostKind, intensity int) (string, error) {
	validated, err := g.gates.Validate(draft, kind, intensity)
	if err != nil {
		return "", err
	}

	dup, err := g.isDuplicate(validated)
	if err != nil {
		return "", err
	}
	if !dup {
		return validated, nil
	}

	logging.Generator("Draft duplicates recent content, attempting one mutation")
	mutated, err := g.llm.Chat(ctx, g.prompts.SystemPrompt(),
		[]llm.Message{{Role: "user", Content: mutationPrompt(validated)}},
		tempMutation, 0)
	if err != nil {
		return "", fmt.Errorf("mutation failed: %w", err)
	}

	validated, err = g.gates.Validate(mutated, kind, intensity)
	if err != nil {
		return "", err
	}
	dup, err = g.isDuplicate(validated)
	if err != nil {
		return "", err
	}
	if dup {
		return "", ErrDuplicateContent
	}
	return validated, nil
}

// isDuplicate checks exact hash and near-duplicate similarity against
// the recent publication window.
func (g *Generator) isDuplicate(text string) (bool, error) {
	recent, err := g.history.RecentTexts(g.now().Add(-dedupeWindow))
	if err != nil {
		return false, fmt.Errorf("failed to load recent texts: %w", err)
	}

	hash := TextHash(text)
	for _, r := range recent {
		if r.Hash == hash {
			return true, nil
		}
		if Similarity(text, r.Text) > 0.8 {
			return true, nil
		}
	}
	return false, nil
}

// TextHash returns the hash of the normalized text used for exact dedupe.
func TextHash(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum[:16])
}

// ThreadSegment is one post in a generated thread.
type ThreadSegment struct {
	Text  string `json:"text"`
	Media string `json:"media,omitempty"`
}

// Thread is a generated reply chain plus an optional DM follow-up.
type Thread struct {
	Posts  []ThreadSegment `json:"posts"`
	DMCopy string          `json:"dm_copy,omitempty"`
}

// MakeThread drafts a multi-post thread. The first segment carries the
// hook and receipts; every segment is validated as a standalone post.
func (g *Generator) MakeThread(ctx context.Context, topic string, intensity int) (*Thread, error) {
	raw, err := g.llm.Chat(ctx, g.prompts.SystemPrompt(),
		[]llm.Message{{Role: "user", Content: threadPrompt(topic, intensity)}},
		tempProposal, 0)
	if err != nil {
		return nil, fmt.Errorf("thread draft failed: %w", err)
	}

	thread, err := parseThread(raw)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(thread.Posts))
	for i := range thread.Posts {
		// Segments are gated individually at intensity 0; the
		// high-intensity requirements apply to the thread as a whole.
		validated, err := g.gates.Validate(thread.Posts[i].Text, types.KindQuote, 0)
		if err != nil {
			return nil, fmt.Errorf("thread segment %d rejected: %w", i, err)
		}
		thread.Posts[i].Text = validated
		texts = append(texts, validated)
	}

	if len(thread.Posts) == 0 {
		return nil, gates.Rejected("length", "thread has no segments")
	}
	if err := g.gates.GuardThread(texts, intensity); err != nil {
		return nil, err
	}

	dup, err := g.isDuplicate(thread.Posts[0].Text)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateContent
	}
	return thread, nil
}

// parseThread extracts the thread JSON from LLM output, tolerating
// surrounding prose and code fences.
func parseThread(raw string) (*Thread, error) {
	raw = strings.TrimSpace(raw)
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	var t Thread
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("thread output is not valid JSON: %w", err)
	}
	return &t, nil
}
