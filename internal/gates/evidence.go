package gates

import (
	"net/url"
	"strings"
)

// Evidence checks citations against a host-suffix whitelist.
type Evidence struct {
	suffixes []string
}

// NewEvidence builds the evidence gate from configured host suffixes.
func NewEvidence(suffixes []string) *Evidence {
	normalized := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			normalized = append(normalized, s)
		}
	}
	return &Evidence{suffixes: normalized}
}

// URLs extracts all URLs from the text.
func URLs(text string) []string {
	return urlRe.FindAllString(text, -1)
}

// HostWhitelisted reports whether the raw URL's host ends in an accepted
// suffix.
func (e *Evidence) HostWhitelisted(raw string) bool {
	raw = strings.TrimRight(raw, ".,;:!?)")
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range e.suffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// HasWhitelistedURL reports whether the text carries at least one URL on
// a whitelisted host.
func (e *Evidence) HasWhitelistedURL(text string) bool {
	for _, raw := range URLs(text) {
		if e.HostWhitelisted(raw) {
			return true
		}
	}
	return false
}
