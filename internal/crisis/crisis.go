// Package crisis implements the crisis-detection state machine. The
// signal is |negative sentiment| x mention velocity x authority; crossing
// the threshold pauses all outbound actions, publishes a calming message,
// and requires a validated non-dry-run receipt plus a decayed signal
// before resuming.
package crisis

import (
	"context"
	"strings"
	"sync"

	"tribune/internal/logging"
	"tribune/internal/types"
)

// Publisher is the slice of the multiplexer the crisis service needs to
// publish its calming message.
type Publisher interface {
	PublishPost(ctx context.Context, text string, kind types.PostKind) ([]types.Receipt, error)
}

// Config holds crisis tuning.
type Config struct {
	SignalThreshold    float64
	ResumeThreshold    float64
	SentimentThreshold float64
	Keywords           []string
	CalmingMessage     string
}

// Service tracks the crisis state machine.
type Service struct {
	cfg Config

	mu                sync.RWMutex
	active            bool
	reason            string
	lastSignal        float64
	sentiment         float64
	velocity          float64
	authority         float64
	receiptsValidated bool
	lastReceipts      []types.Receipt
}

// New creates the crisis service. A zero ResumeThreshold defaults to
// half the entry threshold.
func New(cfg Config) *Service {
	if cfg.SignalThreshold <= 0 {
		cfg.SignalThreshold = 12.0
	}
	if cfg.ResumeThreshold <= 0 {
		cfg.ResumeThreshold = cfg.SignalThreshold / 2
	}
	if cfg.SentimentThreshold == 0 {
		cfg.SentimentThreshold = -0.5
	}
	if cfg.CalmingMessage == "" {
		cfg.CalmingMessage = "We are aware of heightened concerns and are pausing outgoing updates while we verify details."
	}
	return &Service{cfg: cfg}
}

// Active reports whether the agent is paused.
func (s *Service) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Reason returns why the crisis was entered.
func (s *Service) Reason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// LastSignal returns the most recently computed signal value.
func (s *Service) LastSignal() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSignal
}

// Guard reports whether an action may proceed. During a crisis only
// REST passes.
func (s *Service) Guard(action types.ActionType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active {
		return true
	}
	return action == types.ActionRest
}

// IsCrisisText reports whether text trips the keyword or sentiment
// triggers.
func (s *Service) IsCrisisText(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range s.cfg.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return Sentiment(text) < s.cfg.SentimentThreshold
}

// UpdateMetrics feeds a new signal sample and evaluates escalation or
// recovery. The calming message is published through mux on escalation.
func (s *Service) UpdateMetrics(ctx context.Context, source string, in types.CrisisInput, mux Publisher) float64 {
	s.mu.Lock()
	s.sentiment = in.Sentiment
	if in.Velocity > 0 {
		s.velocity = in.Velocity
	} else {
		s.velocity = 0
	}
	if in.Authority > 0 {
		s.authority = in.Authority
	} else {
		s.authority = 0
	}
	signal := s.computeSignalLocked()
	s.lastSignal = signal
	active := s.active
	s.mu.Unlock()

	logging.Crisis("Signal update from %s: %.2f (active=%v)", source, signal, active)

	if signal >= s.cfg.SignalThreshold {
		s.escalate(ctx, source, signal, mux)
	} else {
		s.maybeRecover(source, signal)
	}
	return signal
}

// EvaluateMentions derives the signal sample from inbound mentions:
// velocity is mention count, sentiment the mean score, authority the
// best available hint.
func (s *Service) EvaluateMentions(ctx context.Context, mentions []types.RemotePost, authorityHint float64, mux Publisher) float64 {
	texts := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if m.Text != "" {
			texts = append(texts, m.Text)
		}
	}

	authority := authorityHint
	if est := EstimateAuthority(mentions); est > authority {
		authority = est
	}
	s.mu.RLock()
	if s.authority > authority {
		authority = s.authority
	}
	s.mu.RUnlock()

	return s.UpdateMetrics(ctx, "mentions", types.CrisisInput{
		Sentiment: MeanSentiment(texts),
		Velocity:  float64(len(texts)),
		Authority: authority,
	}, mux)
}

// RecordReceipts validates calming-message receipts; at least one
// non-dry-run receipt is required for resumption.
func (s *Service) RecordReceipts(receipts []types.Receipt) bool {
	valid := false
	for _, r := range receipts {
		if !r.DryRun {
			valid = true
			break
		}
	}
	s.mu.Lock()
	if valid {
		s.lastReceipts = receipts
		s.receiptsValidated = true
	}
	s.mu.Unlock()
	return valid
}

// Activate forces crisis mode, for the operator override endpoint.
func (s *Service) Activate(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.reason = reason
	logging.CrisisWarn("Crisis activated: %s", reason)
}

// Resolve exits crisis mode and resets the tracked metrics.
func (s *Service) Resolve(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	s.reason = ""
	s.lastSignal = 0
	s.sentiment = 0
	s.velocity = 0
	s.receiptsValidated = false
	s.lastReceipts = nil
	logging.Crisis("Crisis resolved: %s", reason)
}

func (s *Service) computeSignalLocked() float64 {
	if s.sentiment >= 0 {
		return 0
	}
	if s.velocity <= 0 || s.authority <= 0 {
		return 0
	}
	return -s.sentiment * s.velocity * s.authority
}

func (s *Service) escalate(ctx context.Context, source string, signal float64, mux Publisher) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.reason = source
	s.receiptsValidated = false
	s.mu.Unlock()

	logging.CrisisWarn("Crisis escalated from %s at signal %.2f", source, signal)

	if mux == nil {
		return
	}
	receipts, err := mux.PublishPost(ctx, s.cfg.CalmingMessage, types.KindCalming)
	if err != nil {
		logging.Get(logging.CategoryCrisis).Error("Calming message publish failed: %v", err)
		return
	}
	if !s.RecordReceipts(receipts) {
		logging.CrisisWarn("Calming message produced no live receipt; resumption blocked")
	}
}

func (s *Service) maybeRecover(source string, signal float64) {
	s.mu.RLock()
	active := s.active
	validated := s.receiptsValidated
	s.mu.RUnlock()

	if !active {
		return
	}
	if signal > s.cfg.ResumeThreshold {
		return
	}
	if !validated {
		logging.Crisis("Signal %.2f below resume threshold but waiting on receipts", signal)
		return
	}
	s.Resolve(source + "_signal_clear")
}

// EstimateAuthority derives the authority hint from mention metadata:
// follower counts scaled by 1000, a verified badge worth 3.0, and
// engagement scaled by 10. Minimum 1.0.
func EstimateAuthority(mentions []types.RemotePost) float64 {
	best := 1.0
	for _, m := range mentions {
		if v := float64(m.Followers) / 1000.0; v > best {
			best = v
		}
		if m.Verified && 3.0 > best {
			best = 3.0
		}
		if v := float64(m.Engagement) / 10.0; v > best {
			best = v
		}
	}
	return best
}
