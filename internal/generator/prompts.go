package generator

import "fmt"

func proposalPrompt(topic, ctaVariant string, intensity int) string {
	return fmt.Sprintf(`Write a proposal post about %s.

Structure: problem, mechanism, pilot plan, KPIs, risks, call to action.
CTA style: %s. Intensity level: %d of 5.
Include one credible source link if making a strong claim.
- Maximum 280 characters
- No hashtag spam, at most one hashtag
- Plain language, no hype`, topic, ctaVariant, intensity)
}

func replyPrompt(original string, intensity int) string {
	cadence := "Keep it to at most two sentences."
	if intensity >= 2 {
		cadence = "Use exactly three sentences: two short ones (under 18 words each) then one long one (at least 24 words)."
	}
	return fmt.Sprintf(`Write a reply to this post:

"%s"

Acknowledge their point, add one concrete mechanism or next step, invite follow-up.
%s Intensity level: %d of 5.
- Maximum 280 characters`, original, cadence, intensity)
}

func quotePrompt(original, topic string, intensity int) string {
	return fmt.Sprintf(`Write a quote-post comment on this post, relating it to %s:

"%s"

Add a concrete observation or mechanism, not a restatement.
Intensity level: %d of 5.
- Maximum 280 characters`, topic, original, intensity)
}

func threadPrompt(topic string, intensity int) string {
	return fmt.Sprintf(`Write a thread of 3-5 posts about %s.

The first post is the hook and carries any source links.
Each post stands alone, maximum 280 characters.
Intensity level: %d of 5.

Respond with JSON only:
{"posts": [{"text": "..."}, {"text": "..."}], "dm_copy": "optional short DM offering the full writeup"}`, topic, intensity)
}

func dmPrompt(username, context string) string {
	return fmt.Sprintf(`Write a short, value-first direct message to @%s.

Context: %s

Offer something concrete (a checklist, a result, an intro), ask for nothing.
Two sentences maximum, no links unless essential.`, username, context)
}

func mutationPrompt(text string) string {
	return fmt.Sprintf(`Rewrite this post so it makes the same argument with substantially different wording and structure:

"%s"

Keep the same links and any uncertainty or rollback lines. Maximum 280 characters.`, text)
}
