// Package textutil holds small line-oriented helpers shared by the descriptor
// and manifest editors.
package textutil

import "strings"

// SplitLines splits s on "\n", dropping a preceding '\r' so that both LF and
// CRLF files yield the same logical lines. A trailing line ending does not
// produce an extra empty element.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, ln := range lines {
		lines[i] = strings.TrimSuffix(ln, "\r")
	}
	return lines
}

// NonBlankLines returns the trimmed, non-empty lines of s in order.
func NonBlankLines(s string) []string {
	var out []string
	for _, ln := range SplitLines(s) {
		if t := strings.TrimSpace(ln); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// NormalizeLF converts CRLF and lone CR line endings to LF.
func NormalizeLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// EnsureTrailingLF appends a single \n if not already present.
func EnsureTrailingLF(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// LineOf returns the 1-based line number of byte offset off in s.
func LineOf(s string, off int) int {
	if off > len(s) {
		off = len(s)
	}
	return 1 + strings.Count(s[:off], "\n")
}
