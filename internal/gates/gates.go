// Package gates validates drafted content before publication. Gates are
// table-driven compiled regex rules applied in a fixed order: ethics,
// length, completeness (proposals), receipts, cadence (replies), and the
// high-intensity citation requirement.
package gates

import (
	"fmt"
	"strings"

	"tribune/internal/logging"
	"tribune/internal/types"
)

// MaxPostLength is the platform character limit.
const MaxPostLength = 280

// GateError identifies which gate rejected the content and why.
type GateError struct {
	Gate   string
	Detail string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("gate %s rejected content: %s", e.Gate, e.Detail)
}

// Rejected constructs a gate rejection.
func Rejected(gate, format string, args ...interface{}) error {
	return &GateError{Gate: gate, Detail: fmt.Sprintf(format, args...)}
}

// Pipeline runs all gates against drafted content.
type Pipeline struct {
	ethics       *Ethics
	completeness *Completeness
	evidence     *Evidence
	guardHigh    bool
}

// NewPipeline builds the gate pipeline. whitelist lists accepted host
// suffixes for the evidence gate; ragebaitGuard enables the strict
// citation + constructive-step requirement at intensity >= 3.
func NewPipeline(whitelist []string, ragebaitGuard bool) *Pipeline {
	return &Pipeline{
		ethics:       NewEthics(),
		completeness: NewCompleteness(),
		evidence:     NewEvidence(whitelist),
		guardHigh:    ragebaitGuard,
	}
}

// Validate runs the gates in order and returns the (possibly patched)
// text. A *GateError is returned on rejection.
func (p *Pipeline) Validate(text string, kind types.PostKind, intensity int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", Rejected("length", "empty content")
	}

	if reasons := p.ethics.Check(text); len(reasons) > 0 {
		logging.GeneratorDebug("Ethics gate rejected: %v", reasons)
		return "", Rejected("ethics", "%s", strings.Join(reasons, "; "))
	}

	text = HardTrim(text, MaxPostLength)

	if kind == types.KindProposal {
		if missing := p.completeness.Missing(text); len(missing) > 0 {
			return "", Rejected("completeness", "missing elements: %s", strings.Join(missing, ", "))
		}
		if !p.evidence.HasWhitelistedURL(text) {
			return "", Rejected("receipts", "proposal carries no whitelisted citation")
		}
	}

	if kind == types.KindReply {
		patched, err := EnforceCadence(text, intensity)
		if err != nil {
			return "", err
		}
		text = patched
	}

	if p.guardHigh && intensity >= 3 {
		if !p.evidence.HasWhitelistedURL(text) {
			return "", Rejected("receipts", "high-intensity content requires a whitelisted citation")
		}
		if !HasConstructiveStep(text) {
			return "", Rejected("receipts", "high-intensity content requires a constructive next step")
		}
	}

	return text, nil
}

// GuardThread applies the high-intensity requirements across thread
// segments as a whole: at least one segment must carry a whitelisted
// citation and at least one a constructive next step.
func (p *Pipeline) GuardThread(texts []string, intensity int) error {
	if !p.guardHigh || intensity < 3 {
		return nil
	}
	cited, step := false, false
	for _, t := range texts {
		if p.evidence.HasWhitelistedURL(t) {
			cited = true
		}
		if HasConstructiveStep(t) {
			step = true
		}
	}
	if !cited {
		return Rejected("receipts", "high-intensity thread carries no whitelisted citation")
	}
	if !step {
		return Rejected("receipts", "high-intensity thread names no constructive next step")
	}
	return nil
}

// HardTrim cuts text to the limit with a trailing ellipsis. The limit
// counts runes, not bytes, so multibyte text is never cut mid-character.
func HardTrim(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimRight(string(runes[:limit-3]), " ") + "..."
}
