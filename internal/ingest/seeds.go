package ingest

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL lowercases the scheme and host, drops the fragment and
// trims a trailing slash from non-root paths.
func NormalizeURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("URL cannot be empty")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("URL must have a scheme (http, https, etc.)")
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL must have a host")
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Fragment = ""
	if len(parsed.Path) > 1 && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}
	return parsed.String(), nil
}

// Seeds normalizes and de-duplicates seed URLs, keeping first-seen order.
// URLs that cannot be normalized are kept verbatim so the fetch reports
// them as failures.
func Seeds(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := NormalizeURL(raw)
		if err != nil {
			u = raw
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
