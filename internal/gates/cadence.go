package gates

import (
	"regexp"
	"strings"
)

// Cadence thresholds for intensity >= 2 replies: exactly three sentences,
// the first two at most shortMax words each and the third at least longMin.
const (
	shortMax = 18
	longMin  = 24
)

var sentenceSplitRe = regexp.MustCompile(`(?:[.!?])\s+`)

// SplitSentences splits text on terminal punctuation followed by space.
func SplitSentences(text string) []string {
	parts := sentenceSplitRe.Split(strings.TrimSpace(text), -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// EnforceCadence validates the reply rhythm. At intensity >= 2 the text
// must be three sentences, short/short/long; extra trailing sentences are
// merged into the third when that repairs the rhythm. At lower intensity
// the text must stay within two sentences.
func EnforceCadence(text string, intensity int) (string, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return "", Rejected("cadence", "no sentences")
	}

	if intensity < 2 {
		if len(sentences) > 2 {
			return "", Rejected("cadence", "receipts or silence")
		}
		return text, nil
	}

	// Merge overflow sentences into the third slot when a draft runs long
	if len(sentences) > 3 {
		merged := append([]string{}, sentences[:2]...)
		merged = append(merged, strings.Join(sentences[2:], " "))
		sentences = merged
	}
	if len(sentences) != 3 {
		return "", Rejected("cadence", "expected 3 sentences, got %d", len(sentences))
	}

	if wordCount(sentences[0]) > shortMax {
		return "", Rejected("cadence", "first sentence exceeds %d words", shortMax)
	}
	if wordCount(sentences[1]) > shortMax {
		return "", Rejected("cadence", "second sentence exceeds %d words", shortMax)
	}
	if wordCount(sentences[2]) < longMin {
		return "", Rejected("cadence", "third sentence under %d words", longMin)
	}

	return reassemble(text, sentences), nil
}

// reassemble restores terminal punctuation lost during splitting, keeping
// the original text when it already matched.
func reassemble(original string, sentences []string) string {
	if len(SplitSentences(original)) == len(sentences) {
		return original
	}
	var sb strings.Builder
	for i, s := range sentences {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s)
		if !strings.ContainsAny(s[len(s)-1:], ".!?") {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}
