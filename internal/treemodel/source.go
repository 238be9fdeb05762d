package treemodel

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL for Source equality: lowercase scheme
// and host, stripped "www." prefix, no trailing slash, no fragment.
// Query strings are preserved since two otherwise-identical URLs with
// different queries are legitimately different sources.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(raw), "/"))
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// Hostname extracts the normalized (lowercase, "www."-stripped) hostname
// from a URL, used by the researcher to deduplicate sources by domain.
func Hostname(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	host := strings.ToLower(u.Host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}

// SourcesEqual compares two sources by normalized URL.
func SourcesEqual(a, b Source) bool {
	return NormalizeURL(a.URL) == NormalizeURL(b.URL)
}

// DedupeByHostname filters sources, keeping only the first source seen
// for each hostname, and skipping any hostname already present in seen.
// seen is mutated to record the hostnames kept.
func DedupeByHostname(sources []Source, seen map[string]bool) []Source {
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		h := Hostname(s.URL)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, s)
	}
	return out
}

// CapSources truncates a source list to MaxSourcesPerNode entries.
func CapSources(sources []Source) []Source {
	if len(sources) <= MaxSourcesPerNode {
		return sources
	}
	return sources[:MaxSourcesPerNode]
}

// ContainsSource reports whether candidate's normalized URL is present in pool.
// Used to enforce the invariant that a child's sources are a subsequence
// of its parent's research sources.
func ContainsSource(pool []Source, candidate Source) bool {
	for _, s := range pool {
		if SourcesEqual(s, candidate) {
			return true
		}
	}
	return false
}
