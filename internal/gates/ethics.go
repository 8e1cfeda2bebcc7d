package gates

import (
	"regexp"
	"strings"
)

// Ethics rejects harmful-intent language and overt deception markers,
// and scores how much uncertainty the text acknowledges.
type Ethics struct {
	harmful   []*regexp.Regexp
	deceptive []*regexp.Regexp
}

var harmfulPatterns = []string{
	`\b(hate|violence|harm|attack|destroy|eliminate)\b`,
	`\b(scam|fraud|deceive|manipulate|exploit)\b`,
	`\b(illegal|criminal|unlawful)\b`,
}

var deceptionPatterns = []string{
	`\bguaranteed?\b`,
	`\b100%\s+(?:success|profit|return)\b`,
	`\bno\s+risk\b`,
	`\bsecret\s+(?:method|formula|system)\b`,
}

var uncertaintyKeywords = []string{
	"uncertain", "unclear", "unknown", "might", "could", "possibly",
	"likely", "probably", "estimate", "approximate",
}

var rollbackKeywords = []string{
	"rollback", "revert", "undo", "cancel", "abort", "stop",
	"fail-safe", "backup plan", "exit strategy",
}

var constructiveKeywords = []string{
	"try", "pilot", "test", "fix", "rollback", "next step", "cta", "call to action",
}

var urlRe = regexp.MustCompile(`https?://\S+`)

// NewEthics compiles the pattern tables once.
func NewEthics() *Ethics {
	e := &Ethics{}
	for _, p := range harmfulPatterns {
		e.harmful = append(e.harmful, regexp.MustCompile(p))
	}
	for _, p := range deceptionPatterns {
		e.deceptive = append(e.deceptive, regexp.MustCompile(p))
	}
	return e
}

// Check returns the list of violations; empty means approved.
func (e *Ethics) Check(text string) []string {
	lower := strings.ToLower(text)
	var reasons []string
	for _, re := range e.harmful {
		if re.MatchString(lower) {
			reasons = append(reasons, "harmful language: "+re.String())
		}
	}
	for _, re := range e.deceptive {
		if re.MatchString(lower) {
			reasons = append(reasons, "deceptive claim: "+re.String())
			break
		}
	}
	return reasons
}

// UncertaintyScore counts hedge words, normalized to [0,1] against an
// expected maximum of five.
func UncertaintyScore(text string) float64 {
	lower := strings.ToLower(text)
	count := 0
	for _, kw := range uncertaintyKeywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	score := float64(count) / 5.0
	if score > 1.0 {
		return 1.0
	}
	return score
}

// HasConstructiveStep reports whether the text names a concrete next step.
func HasConstructiveStep(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range constructiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// EnforceAddendum appends uncertainty and rollback lines to proposals
// that lack them.
func EnforceAddendum(text string, kind string) string {
	if kind != "proposal" {
		return text
	}
	lower := strings.ToLower(text)

	hasUncertainty := false
	for _, kw := range uncertaintyKeywords {
		if strings.Contains(lower, kw) {
			hasUncertainty = true
			break
		}
	}
	hasRollback := false
	for _, kw := range rollbackKeywords {
		if strings.Contains(lower, kw) {
			hasRollback = true
			break
		}
	}

	var addendum []string
	if !hasUncertainty {
		addendum = append(addendum, "Uncertainty: Metrics may wobble; review weekly before scaling.")
	}
	if !hasRollback {
		addendum = append(addendum, "Rollback: Revert to the prior system if KPIs miss for two weeks.")
	}
	if len(addendum) > 0 {
		return text + "\n\n" + strings.Join(addendum, " ")
	}
	return text
}
