// Package persona manages the agent's identity document: validation,
// content-addressed versioning, atomic file persistence, hot reload, and
// system prompt composition.
package persona

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Persona is the agent's identity document.
type Persona struct {
	Handle     string             `json:"handle"`
	Name       string             `json:"name"`
	Mission    string             `json:"mission"`
	Beliefs    []string           `json:"beliefs"`
	Doctrine   []string           `json:"doctrine"`
	ToneRules  []string           `json:"tone_rules"`
	Templates  map[string]string  `json:"templates"`
	Guardrails []string           `json:"guardrails"`
	ContentMix map[string]float64 `json:"content_mix"`
}

var handleRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// Validate checks structural invariants before a persona is accepted.
func (p *Persona) Validate() error {
	if !handleRe.MatchString(p.Handle) {
		return fmt.Errorf("invalid handle %q: must be 1-15 alphanumeric/underscore characters", p.Handle)
	}
	if strings.TrimSpace(p.Mission) == "" {
		return fmt.Errorf("mission must not be empty")
	}
	for i, b := range p.Beliefs {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("belief %d is empty", i)
		}
	}
	if len(p.ContentMix) > 0 {
		sum := 0.0
		for _, v := range p.ContentMix {
			sum += v
		}
		if sum < 0.95 || sum > 1.05 {
			return fmt.Errorf("content_mix sums to %.2f, expected ~1.0", sum)
		}
	}
	return nil
}

// Hash returns a 16-hex-character content hash of the canonical JSON form.
// The document is round-tripped through a map so key order is canonical
// regardless of struct field order.
func (p *Persona) Hash() (string, error) {
	canonical, err := canonicalJSON(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("%x", sum)[:16], nil
}

// canonicalJSON marshals v with sorted keys and no insignificant whitespace.
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal persona: %w", err)
	}
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to canonicalize persona: %w", err)
	}
	var sb strings.Builder
	if err := writeCanonical(&sb, tree); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func writeCanonical(sb *strings.Builder, v interface{}) error {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			sb.Write(kb)
			sb.WriteByte(':')
			if err := writeCanonical(sb, t[k]); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	case []interface{}:
		sb.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeCanonical(sb, e); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		sb.Write(b)
	}
	return nil
}

// SystemPrompt composes the LLM system prompt from the persona plus the
// most recent improvement notes (at most five are used).
func (p *Persona) SystemPrompt(notes []string) string {
	var sb strings.Builder

	sb.WriteString("You are an autonomous public voice. Stay factual, constructive, and accountable.\n\n")

	fmt.Fprintf(&sb, "Identity: @%s", p.Handle)
	if p.Name != "" {
		fmt.Fprintf(&sb, " (%s)", p.Name)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Mission: %s\n", p.Mission)

	if len(p.Beliefs) > 0 {
		sb.WriteString("\nBeliefs:\n")
		for _, b := range p.Beliefs {
			fmt.Fprintf(&sb, "- %s\n", b)
		}
	}

	if len(p.Doctrine) > 0 {
		fmt.Fprintf(&sb, "\nDoctrine: %s\n", strings.Join(p.Doctrine, " → "))
	}

	if len(p.ToneRules) > 0 {
		sb.WriteString("\nTone:\n")
		for _, t := range p.ToneRules {
			fmt.Fprintf(&sb, "- %s\n", t)
		}
	}

	if len(p.Templates) > 0 {
		sb.WriteString("\nTemplates:\n")
		keys := make([]string, 0, len(p.Templates))
		for k := range p.Templates {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %s\n", k, p.Templates[k])
		}
	}

	if len(p.Guardrails) > 0 {
		sb.WriteString("\nGuardrails:\n")
		for _, g := range p.Guardrails {
			fmt.Fprintf(&sb, "- %s\n", g)
		}
	}

	if len(notes) > 0 {
		if len(notes) > 5 {
			notes = notes[:5]
		}
		sb.WriteString("\nRecent lessons:\n")
		for _, n := range notes {
			fmt.Fprintf(&sb, "- %s\n", n)
		}
	}

	if len(p.ContentMix) > 0 {
		sb.WriteString("\nContent mix:\n")
		keys := make([]string, 0, len(p.ContentMix))
		for k := range p.ContentMix {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %.0f%%\n", k, p.ContentMix[k]*100)
		}
	}

	return sb.String()
}

// Default returns the bootstrap persona used when no file exists yet.
func Default() *Persona {
	return &Persona{
		Handle:  "tribune_agent",
		Name:    "Tribune",
		Mission: "Surface coordination problems and propose concrete, testable mechanisms to fix them.",
		Beliefs: []string{
			"Mechanisms beat exhortation.",
			"Small pilots with clear KPIs beat grand plans.",
			"Receipts or silence.",
		},
		Doctrine: []string{
			"name the problem", "propose the mechanism", "pilot it", "measure", "scale or revert",
		},
		ToneRules: []string{
			"Plain language, no hype.",
			"State uncertainty when it exists.",
			"Never attack people, only mechanisms.",
		},
		Templates: map[string]string{
			"proposal": "Problem → mechanism → pilot → KPIs → risks → CTA",
			"reply":    "Acknowledge → add one concrete point → invite follow-up",
		},
		Guardrails: []string{
			"No medical, legal, or financial advice.",
			"No engagement bait.",
			"Cite sources for strong claims.",
		},
		ContentMix: map[string]float64{
			"proposals": 0.40,
			"replies":   0.30,
			"threads":   0.15,
			"curation":  0.15,
		},
	}
}
