package gates

import (
	"regexp"
	"strings"
)

// Completeness checks proposals for the six marker families:
// problem, mechanism, pilot, kpis, risks, cta.
type Completeness struct {
	families []markerFamily
}

type markerFamily struct {
	name     string
	patterns []*regexp.Regexp
}

var familyPatterns = []struct {
	name     string
	patterns []string
}{
	{"problem", []string{`\bproblem\b`, `\bissue\b`, `\bchallenge\b`, `\bgap\b`, `\bfailing\b`}},
	{"mechanism", []string{`\bmechanism\b`, `\bsolution\b`, `\bapproach\b`, `\bframework\b`, `\bsystem\b`, `\bmethod\b`}},
	{"pilot", []string{`\bpilot\b`, `\btest\b`, `\btrial\b`, `\bexperiment\b`, `\b30.day\b`, `\b90.day\b`}},
	{"kpis", []string{`\bkpi\b`, `\bkpis\b`, `\bmetric\b`, `\bmeasure\b`, `\bindicator\b`, `\bsuccess\b`, `\btrack\b`}},
	{"risks", []string{`\brisk\b`, `\brisks\b`, `\bdanger\b`, `\bconcern\b`, `\blimitation\b`, `\bfail\b`, `\bchallenge\b`}},
	{"cta", []string{`\bjoin\b`, `\bsign.up\b`, `\blearn.more\b`, `\bcontact\b`, `\bapply\b`, `\bparticipate\b`, `\blink\b`, `\breply\b`}},
}

// NewCompleteness compiles the marker family tables once.
func NewCompleteness() *Completeness {
	c := &Completeness{}
	for _, f := range familyPatterns {
		fam := markerFamily{name: f.name}
		for _, p := range f.patterns {
			fam.patterns = append(fam.patterns, regexp.MustCompile(p))
		}
		c.families = append(c.families, fam)
	}
	return c
}

// Missing returns the marker families absent from the text.
func (c *Completeness) Missing(text string) []string {
	lower := strings.ToLower(text)
	var missing []string
	for _, fam := range c.families {
		found := false
		for _, re := range fam.patterns {
			if re.MatchString(lower) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, fam.name)
		}
	}
	return missing
}
