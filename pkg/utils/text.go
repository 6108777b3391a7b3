// Package utils holds small shared helpers for logging, text, and vector math.
package utils

// Truncate shortens s to maxLen bytes and marks the cut with "...". A
// non-positive maxLen disables truncation.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
