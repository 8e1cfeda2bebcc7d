package publish

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"tribune/internal/config"
	"tribune/internal/logging"
	"tribune/internal/types"
)

// Routing modes.
const (
	ModeBroadcast = "broadcast"
	ModeSingle    = "single"
	ModeWeighted  = "weighted"
)

// Multiplexer routes publish requests to the enabled platform adapters
// according to the configured mode.
type Multiplexer struct {
	cfg      *config.Config
	adapters []Adapter

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMultiplexer creates the router over the given adapters. Disabled
// adapters are dropped.
func NewMultiplexer(cfg *config.Config, adapters ...Adapter) *Multiplexer {
	enabled := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		if a.Enabled() {
			enabled = append(enabled, a)
		}
	}
	return &Multiplexer{
		cfg:      cfg,
		adapters: enabled,
		rng:      rand.New(rand.NewSource(rand.Int63())),
	}
}

// EnabledPlatforms lists the adapters the multiplexer routes to.
func (m *Multiplexer) EnabledPlatforms() []string {
	names := make([]string, 0, len(m.adapters))
	for _, a := range m.adapters {
		names = append(names, a.Platform())
	}
	sort.Strings(names)
	return names
}

// Publish routes one request. Per-adapter failures are logged and do
// not block the others; an error is returned only when every target
// failed.
func (m *Multiplexer) Publish(ctx context.Context, req *Request) (map[string]types.Receipt, error) {
	targets := m.selectTargets()
	if len(targets) == 0 {
		return nil, fmt.Errorf("no enabled platforms")
	}

	receipts := make(map[string]types.Receipt, len(targets))
	var lastErr error
	for _, a := range targets {
		receipt, err := a.Publish(ctx, req)
		if err != nil {
			logging.Publish("Publish to %s failed: %v", a.Platform(), err)
			lastErr = err
			continue
		}
		receipts[a.Platform()] = receipt
	}
	if len(receipts) == 0 {
		return nil, fmt.Errorf("publish failed on all platforms: %w", lastErr)
	}
	return receipts, nil
}

// PublishPost is the simplified surface used by the crisis responder.
func (m *Multiplexer) PublishPost(ctx context.Context, text string, kind types.PostKind) ([]types.Receipt, error) {
	receipts, err := m.Publish(ctx, &Request{Text: text, Kind: kind})
	if err != nil {
		return nil, err
	}
	out := make([]types.Receipt, 0, len(receipts))
	for _, platform := range m.EnabledPlatforms() {
		if r, ok := receipts[platform]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Multiplexer) selectTargets() []Adapter {
	if len(m.adapters) == 0 {
		return nil
	}

	switch m.cfg.Platforms.Mode {
	case ModeSingle:
		best := m.adapters[0]
		for _, a := range m.adapters[1:] {
			if a.Weight() > best.Weight() {
				best = a
			}
		}
		return []Adapter{best}

	case ModeWeighted:
		total := 0.0
		for _, a := range m.adapters {
			total += a.Weight()
		}
		if total <= 0 {
			return m.adapters
		}
		m.mu.Lock()
		choice := m.rng.Float64() * total
		m.mu.Unlock()
		upto := 0.0
		for _, a := range m.adapters {
			upto += a.Weight()
			if choice <= upto {
				return []Adapter{a}
			}
		}
		return m.adapters[:1]

	default: // broadcast, or unknown mode
		return m.adapters
	}
}
