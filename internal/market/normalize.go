package market

import "strings"

// ParseIDs splits a comma-separated id list and normalizes it.
func ParseIDs(raw string) []string {
	return NormalizeIDs(strings.Split(raw, ","))
}

// NormalizeIDs trims and lowercases ids, dropping empties and duplicates
// while keeping first-seen order. An empty result means top-N mode.
func NormalizeIDs(ids []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
