package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeBaseURL validates an API base URL and strips trailing slashes so
// paths can be appended directly.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid base url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid base url %q: missing host", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
