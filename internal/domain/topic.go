package domain

import "strings"

// NormalizeTopics returns topics as an ordered set: entries are trimmed and
// lowercased, empty entries and repeats are dropped.
func NormalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	seen := make(map[string]bool, len(topics))
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
