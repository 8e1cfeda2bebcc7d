package generator

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity returns the normalized edit similarity of two texts in
// [0,1], where 1 is identical. Texts are whitespace-normalized and
// lowercased first.
func Similarity(a, b string) float64 {
	na := strings.ToLower(strings.Join(strings.Fields(a), " "))
	nb := strings.ToLower(strings.Join(strings.Fields(b), " "))
	if na == nb {
		return 1.0
	}
	// The edit distance is rune-based, so the normalizer must be too.
	maxLen := utf8.RuneCountInString(na)
	if l := utf8.RuneCountInString(nb); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(na, nb)
	return 1.0 - float64(dist)/float64(maxLen)
}
