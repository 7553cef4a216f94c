// Package util holds small helpers shared across the harness.
package util

import "strings"

// SplitCSV splits a comma-separated flag value, such as the table list
// passed to --tables, into its entries, trimming whitespace and
// dropping empties. Returns nil for an empty string.
func SplitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var entries []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			entries = append(entries, part)
		}
	}
	return entries
}
