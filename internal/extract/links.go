package extract

import (
	"net/url"
	"regexp"
	"strings"
)

// MaxExternalURLs caps the number of cross-domain URLs kept per page.
const MaxExternalURLs = 10

var urlPattern = regexp.MustCompile("https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")

// Trailing characters that belong to the surrounding markdown or prose rather
// than to the URL itself, e.g. "[jobs](https://acme.io/careers)."
const urlTrailers = ").,;:!?'"

// Domain extracts the lowercased hostname from an absolute URL string.
// Relative URLs yield an empty hostname and no error.
func Domain(rawURL string) (string, error) {
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	}

	if !strings.Contains(rawURL, "://") {
		return "", nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	return strings.ToLower(parsed.Hostname()), nil
}

// ExternalURLs returns the distinct absolute http(s) URLs in text whose
// hostname differs from baseURL's, in order of first appearance, capped at
// MaxExternalURLs. javascript:, mailto: and fragment references are skipped.
func ExternalURLs(text, baseURL string) []string {
	baseDomain, err := Domain(baseURL)
	if err != nil || baseDomain == "" {
		return []string{}
	}

	seen := make(map[string]bool)
	filtered := []string{}

	for _, link := range urlPattern.FindAllString(text, -1) {
		link = strings.TrimRight(link, urlTrailers)

		if strings.Contains(link, "javascript:") ||
			strings.Contains(link, "mailto:") ||
			strings.Contains(link, "#") {
			continue
		}

		targetDomain, err := Domain(link)
		if err != nil || targetDomain == "" {
			continue
		}

		if targetDomain == baseDomain {
			continue
		}

		if seen[link] {
			continue
		}

		seen[link] = true
		filtered = append(filtered, link)

		if len(filtered) >= MaxExternalURLs {
			break
		}
	}

	return filtered
}
