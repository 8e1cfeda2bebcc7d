package gates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvidenceHostWhitelisted(t *testing.T) {
	e := NewEvidence([]string{".gov", ".edu", "ourlab.org", " "})

	cases := []struct {
		raw  string
		want bool
	}{
		{"https://energy.gov/report", true},
		{"https://www.mit.edu/paper", true},
		{"https://ourlab.org/data", true},
		{"https://sub.ourlab.org/data", true},
		{"https://evil.example.com/x", false},
		{"https://energy.gov.example.com/x", false},
		{"not a url", false},
		{"", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, e.HostWhitelisted(c.raw), c.raw)
	}

	t.Run("trailing punctuation stripped", func(t *testing.T) {
		assert.True(t, e.HostWhitelisted("https://energy.gov/report)."))
		assert.True(t, e.HostWhitelisted("https://energy.gov/report,"))
	})
}

func TestHasWhitelistedURL(t *testing.T) {
	e := NewEvidence([]string{".gov"})

	assert.True(t, e.HasWhitelistedURL("See https://data.gov/set for details."))
	assert.False(t, e.HasWhitelistedURL("See https://blog.example.com/post instead."))
	assert.False(t, e.HasWhitelistedURL("No links here."))
	assert.True(t, e.HasWhitelistedURL(
		"First https://blog.example.com/a then https://data.gov/b."))
}

func TestURLs(t *testing.T) {
	found := URLs("One https://a.gov/x and two http://b.edu/y here.")
	assert.Len(t, found, 2)
	assert.Empty(t, URLs("plain text"))
}

func TestCompletenessMissing(t *testing.T) {
	c := NewCompleteness()

	t.Run("full proposal has nothing missing", func(t *testing.T) {
		assert.Empty(t, c.Missing(goodProposal))
	})

	t.Run("empty text misses all six families", func(t *testing.T) {
		missing := c.Missing("nothing here")
		assert.Equal(t, []string{"problem", "mechanism", "pilot", "kpis", "risks", "cta"}, missing)
	})

	t.Run("synonyms count", func(t *testing.T) {
		text := "The gap: slow permits. Our approach: a 30-day trial where we measure " +
			"throughput. Limitation: staffing. Sign-up at the link."
		assert.Empty(t, c.Missing(text))
	})
}
