package planner

import "strings"

// ParseCorpus splits newline-delimited captions, trimming each and dropping
// empty lines.
func ParseCorpus(raw string) []string {
	return NormalizeCaptions([]string{raw}, "")
}

// NormalizeCaptions flattens entries that may themselves hold several lines.
// An empty result falls back to the single default caption when one is given.
func NormalizeCaptions(entries []string, fallback string) []string {
	var out []string
	for _, entry := range entries {
		for _, line := range strings.Split(strings.ReplaceAll(entry, "\r\n", "\n"), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
	}

	if len(out) == 0 && fallback != "" {
		return []string{fallback}
	}
	return out
}
