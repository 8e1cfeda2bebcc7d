package llm

import "strings"

// Template fallbacks keep the agent posting when the LLM is unavailable.
// The variant is inferred from the last user message.

const proposalTemplate = `Coordination problems rarely fix themselves. Mechanism: a small opt-in pilot with a named owner and a weekly KPI review. Pilot: 30 days, one team, one metric. KPIs: cycle time and participation rate. Risks: low adoption; mitigated by keeping the pilot reversible. Reply if you want the pilot checklist.`

const replyTemplate = `Good point. One concrete step that has worked elsewhere: run a 30-day pilot with a single measurable KPI before committing. Happy to share the checklist if useful.`

const genericTemplate = `Small pilots with clear KPIs beat grand plans. Pick one mechanism, measure it for 30 days, then scale or revert.`

// templateFor picks the fallback variant matching the request.
func templateFor(messages []Message) string {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = strings.ToLower(messages[i].Content)
			break
		}
	}
	switch {
	case strings.Contains(last, "proposal"):
		return proposalTemplate
	case strings.Contains(last, "reply"), strings.Contains(last, "respond"):
		return replyTemplate
	default:
		return genericTemplate
	}
}
