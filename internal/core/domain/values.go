package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// utcTimestampRE matches the strict UTC pattern YYYY-MM-DDTHH:MM:SSZ.
// This is a format check only; calendar validity is not verified.
var utcTimestampRE = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2}Z$`)

// IsUTCTimestamp reports whether s matches the strict UTC timestamp pattern.
func IsUTCTimestamp(s string) bool {
	return utcTimestampRE.MatchString(s)
}

// IsHTTPSURL reports whether s is a valid absolute https URL.
func IsHTTPSURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return u.Scheme == "https" && u.Host != ""
}

// IsHTTPURL reports whether s is a valid absolute http or https URL.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// NormalizeOrganizationURL prepares an OrganizationURL value for
// validation: surrounding whitespace is trimmed and values without an
// http or https scheme are prefixed with "https://". This is the one
// URL field where http is tolerated.
func NormalizeOrganizationURL(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	return s
}

// ParseIndex parses an index-like attribute value as a non-negative
// integer. Values that are non-numeric or negative return an error.
func ParseIndex(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("index %q is not a number", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("index %d is negative", n)
	}
	return n, nil
}
