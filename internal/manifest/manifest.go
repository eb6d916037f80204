// Package manifest edits service-loader manifests (META-INF/services/<iface>):
// flat files listing one fully-qualified implementation per line.
package manifest

import (
	"strings"

	"modwire/internal/textutil"
)

// Contains reports whether impl is listed in text. Lines are compared after
// trimming; LF and CRLF files are treated alike.
func Contains(text, impl string) bool {
	for _, ln := range textutil.SplitLines(text) {
		if strings.TrimSpace(ln) == impl {
			return true
		}
	}
	return false
}

// Register returns text with impl listed exactly once, and whether the text
// changed. A blank manifest becomes just impl; otherwise impl is appended on
// a new line after the trimmed existing content, so repeated registrations do
// not accumulate blank lines.
func Register(text, impl string) (string, bool) {
	if Contains(text, impl) {
		return text, false
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return impl, true
	}
	return trimmed + "\n" + impl, true
}

// Entries lists the implementations in text in file order.
func Entries(text string) []string {
	return textutil.NonBlankLines(text)
}
