package crisis

import "strings"

// Deterministic lexicon-based sentiment. Scores land in [-1,1]; unknown
// words have no effect.

var positiveWords = []string{
	"good", "great", "excellent", "positive", "benefit",
	"success", "growth", "improve", "happy", "win",
}

var negativeWords = []string{
	"bad", "terrible", "horrible", "negative", "loss",
	"decline", "fail", "problem", "sad", "anger",
}

// Sentiment scores text as (positive - negative) / total matches.
// Zero matches score 0.
func Sentiment(text string) float64 {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	pos, neg := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}

// MeanSentiment averages the scores of the non-empty texts.
func MeanSentiment(texts []string) float64 {
	sum, n := 0.0, 0
	for _, t := range texts {
		if t == "" {
			continue
		}
		sum += Sentiment(t)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
