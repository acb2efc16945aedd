package utils

import "strings"

// ParseCommaDelimited splits a comma separated flag value into trimmed,
// non-empty items. Repeated items are kept once, in first-seen order.
func ParseCommaDelimited(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(input, ",") {
		item := strings.TrimSpace(part)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
