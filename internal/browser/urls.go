package browser

import (
	"net/url"
	"strings"
)

const (
	jobPath     = "/job/"
	insightPath = "/job/insight/"
)

// CanonicalURL is the posting page for raw, never its insight page.
func CanonicalURL(raw string) string {
	return strings.Replace(strings.TrimSpace(raw), insightPath, jobPath, 1)
}

// InsightURL is the price-insight page for a posting URL.
func InsightURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/insight/") {
		return raw
	}
	return strings.Replace(raw, jobPath, insightPath, 1)
}

// IsLoginURL reports whether the marketplace bounced us to its login page.
func IsLoginURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.Contains(strings.ToLower(raw), "login")
	}
	return strings.Contains(strings.ToLower(u.Path), "login") ||
		strings.Contains(strings.ToLower(u.RawQuery), "login")
}
