package schema

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL returns the canonical form used for reference comparison:
// lower-case scheme and host, "/" for an empty path, no fragment.
// Only absolute http and https URLs with a host are accepted.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", raw)
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.RawPath == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// DedupeReferences normalizes refs, drops invalid and repeated entries
// (first occurrence wins) and caps the result at max entries.
func DedupeReferences(refs []string, max int) []string {
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if len(out) == max {
			break
		}
		norm, err := NormalizeURL(ref)
		if err != nil || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}
