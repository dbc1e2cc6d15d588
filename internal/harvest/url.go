package harvest

import (
	"net/url"
	"strings"
)

// ValidTargetURL reports whether a discovered URL is worth keeping as a
// fetch target: absolute, http or https, with a host. The raw string is the
// permanent store key, so no rewriting happens here. Invalid candidates are
// dropped, valid ones are kept byte-for-byte.
func ValidTargetURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return u.Host != ""
}

// Hostname extracts the lowercase host of a URL, or "" if it cannot be
// parsed. Used for domain filtering and metric labels.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
