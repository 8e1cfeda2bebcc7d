package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tribune/internal/logging"
)

// ErrBudgetExhausted is returned when the hourly or daily call cap is hit.
var ErrBudgetExhausted = fmt.Errorf("llm call budget exhausted")

// Budget tracks rolling per-hour and per-day call counts.
type Budget struct {
	mu           sync.Mutex
	maxPerHour   int
	maxPerDay    int
	hourCount    int
	dayCount     int
	hourResetAt  time.Time
	dayResetAt   time.Time
	now          func() time.Time
}

// NewBudget creates a call budget. Zero caps mean unlimited.
func NewBudget(maxPerHour, maxPerDay int) *Budget {
	return &Budget{
		maxPerHour: maxPerHour,
		maxPerDay:  maxPerDay,
		now:        time.Now,
	}
}

// Take consumes one call from the budget. Returns false when exhausted.
func (b *Budget) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.After(b.hourResetAt) {
		b.hourCount = 0
		b.hourResetAt = now.Add(time.Hour)
	}
	if now.After(b.dayResetAt) {
		b.dayCount = 0
		b.dayResetAt = now.Add(24 * time.Hour)
	}

	if b.maxPerHour > 0 && b.hourCount >= b.maxPerHour {
		return false
	}
	if b.maxPerDay > 0 && b.dayCount >= b.maxPerDay {
		return false
	}

	b.hourCount++
	b.dayCount++
	return true
}

// Remaining returns how many calls are left this hour and day.
func (b *Budget) Remaining() (hour, day int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	hourCount, dayCount := b.hourCount, b.dayCount
	if now.After(b.hourResetAt) {
		hourCount = 0
	}
	if now.After(b.dayResetAt) {
		dayCount = 0
	}
	return b.maxPerHour - hourCount, b.maxPerDay - dayCount
}

// BudgetedClient wraps a Client with the call budget and template fallback.
// Jobs never fail on budget exhaustion; a deterministic template is
// returned instead.
type BudgetedClient struct {
	inner     Client
	budget    *Budget
	maxTokens int
}

// NewBudgetedClient wraps a client with a budget. A nil inner client
// always uses templates.
func NewBudgetedClient(inner Client, budget *Budget, maxTokens int) *BudgetedClient {
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	return &BudgetedClient{inner: inner, budget: budget, maxTokens: maxTokens}
}

// Chat calls the inner client within budget; otherwise returns a template
// matched to the request hint in the last user message.
func (c *BudgetedClient) Chat(ctx context.Context, system string, messages []Message, temperature float64, maxTokens int) (string, error) {
	if maxTokens <= 0 || maxTokens > c.maxTokens {
		maxTokens = c.maxTokens
	}

	if c.inner == nil {
		logging.LLMDebug("No provider configured, using template fallback")
		return templateFor(messages), nil
	}
	if !c.budget.Take() {
		logging.LLM("Call budget exhausted, using template fallback")
		return templateFor(messages), nil
	}

	out, err := c.inner.Chat(ctx, system, messages, temperature, maxTokens)
	if err != nil {
		logging.Get(logging.CategoryLLM).Warn("Chat failed, using template fallback: %v", err)
		return templateFor(messages), nil
	}
	return out, nil
}
