package analytics

import (
	"math"
	"net/url"
	"strings"
	"time"

	"tribune/internal/types"
)

// outcomeSignal maps outcome kinds to impact-weight keys.
var outcomeSignal = map[types.OutcomeKind]string{
	types.OutcomePilotAccepted: "pilots",
	types.OutcomeArtifactFork:  "artifacts",
	types.OutcomePartnerIntro:  "coalitions",
	types.OutcomeCitation:      "citations",
	types.OutcomeHelpfulReply:  "helpfulness",
}

// ImpactScore computes the mission-impact composite over a window of
// days: each structured-outcome signal is counted, normalized against
// its target, weighted, and the weighted sum scaled to 0..100.
func (s *Service) ImpactScore(days int) (float64, error) {
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	outcomes, err := s.store.OutcomesSince(since)
	if err != nil {
		return 0, err
	}

	counts := make(map[string]float64)
	for _, o := range outcomes {
		if signal, ok := outcomeSignal[o.Kind]; ok {
			counts[signal]++
		}
	}

	weights := s.cfg.Impact.Weights
	targets := s.cfg.Impact.Targets

	totalWeight := 0.0
	for _, w := range weights {
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0, nil
	}

	score := 0.0
	for signal, weight := range weights {
		target := targets[signal]
		if target <= 0 {
			continue
		}
		progress := math.Min(counts[signal]/target, 1)
		score += (weight / totalWeight) * progress
	}
	return score * 100, nil
}

// ExtractOutcomes scans text for mission-relevant signals: pilot
// acceptances, artifact forks, partner introductions, citations, and
// helpfulness feedback.
func ExtractOutcomes(postID int64, text string) []types.StructuredOutcome {
	lower := strings.ToLower(text)
	var out []types.StructuredOutcome

	add := func(kind types.OutcomeKind, detail string) {
		out = append(out, types.StructuredOutcome{PostID: postID, Kind: kind, Detail: detail})
	}

	if strings.Contains(lower, "pilot accepted") || strings.Contains(lower, "signed the pilot") {
		add(types.OutcomePilotAccepted, snippet(text))
	}
	if strings.Contains(lower, "fork") || strings.Contains(lower, "clone") {
		detail := snippet(text)
		if strings.Contains(lower, "github") {
			detail = "github: " + detail
		}
		add(types.OutcomeArtifactFork, detail)
	}
	if strings.Contains(lower, "partner") {
		add(types.OutcomePartnerIntro, snippet(text))
	}
	for _, u := range extractURLs(text) {
		add(types.OutcomeCitation, u)
	}
	if strings.Contains(lower, "thank you") || strings.Contains(lower, "appreciate") ||
		strings.Contains(lower, "super helpful") {
		add(types.OutcomeHelpfulReply, snippet(text))
	}
	return out
}

func snippet(text string) string {
	if len(text) > 100 {
		return text[:100]
	}
	return text
}

func extractURLs(text string) []string {
	var urls []string
	for _, field := range strings.Fields(text) {
		if !strings.HasPrefix(field, "http://") && !strings.HasPrefix(field, "https://") {
			continue
		}
		trimmed := strings.TrimRight(field, ".,;:!?)")
		if _, err := url.Parse(trimmed); err == nil {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

// AuthorityScore estimates the authority signal of one post from its
// engagement shape: a high repost-to-like ratio plus heavy reply volume.
func AuthorityScore(e types.Engagement) float64 {
	score := 0.0
	if e.Likes > 0 {
		ratio := float64(e.Reposts) / float64(e.Likes)
		score = math.Min(ratio*10, 10)
	}
	if e.Replies > 5 {
		score += math.Min(float64(e.Replies)*0.5, 5)
	}
	return score
}
