// Package diff renders unified patches for pending descriptor and manifest
// edits. It uses github.com/pmezard/go-difflib/difflib to produce classic
// unified output (---/+++ headers, @@ hunks, lines prefixed with ' ', '-', '+').
package diff

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// Options controls patch generation behavior.
type Options struct {
	// MaxBytes is a guardrail on input size (old+new). When exceeded,
	// a minimal placeholder patch is returned and oversize=true.
	// 0 means "no limit".
	MaxBytes int

	// Context controls the number of context lines in unified hunks.
	// If 0, default to 3.
	Context int

	// NoPrefix disables the "a/" and "b/" prefixes on file names.
	NoPrefix bool
}

// Unified produces a unified patch for a↦b of the file at path.
// Returns the patch body and a flag indicating it was omitted due to size.
func Unified(path, a, b string, opt Options) (body string, oversize bool) {
	from, to := names(path, opt)
	if opt.MaxBytes > 0 && len(a)+len(b) > opt.MaxBytes {
		return omitted(from, to), true
	}
	return render(from, to, splitLinesKeepNL(a), splitLinesKeepNL(b), opt), false
}

// Added produces a patch that creates path with content b.
func Added(path, b string, opt Options) (string, bool) {
	_, to := names(path, opt)
	if opt.MaxBytes > 0 && len(b) > opt.MaxBytes {
		return omitted("/dev/null", to), true
	}
	return render("/dev/null", to, []string{}, splitLinesKeepNL(b), opt), false
}

func render(from, to string, a, b []string, opt Options) string {
	ctx := opt.Context
	if ctx <= 0 {
		ctx = 3
	}
	u := difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: from,
		ToFile:   to,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil || s == "" {
		return omitted(from, to)
	}
	return s
}

func names(path string, opt Options) (string, string) {
	path = strings.TrimPrefix(path, "/")
	if opt.NoPrefix {
		return path, path
	}
	return "a/" + path, "b/" + path
}

// splitLinesKeepNL splits into lines and keeps newline characters. A final
// line without "\n" gets one so difflib does not glue it to the next hunk
// line; the patch is for display only.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if last := lines[len(lines)-1]; !strings.HasSuffix(last, "\n") {
		lines[len(lines)-1] = last + "\n"
	}
	return lines
}

// omitted returns a compact placeholder when size limits are exceeded.
func omitted(aName, bName string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted\n", aName, bName)
}
