// Package descriptor edits Java module descriptors (module-info.java) so that
// a provision fact appears exactly once as a provides statement.
//
// Editing works on the raw text: the statement for an interface is located by
// its "provides <iface> with " prefix outside comments, the implementation list is merged, and
// the result is spliced back so every byte outside the edited region stays as
// it was. Parse offers a read-only statement view for listing and checks.
package descriptor

import (
	"errors"
	"fmt"
	"strings"

	"modwire/internal/textutil"
)

// ErrMalformedDescriptor means the text cannot be edited safely: a provides
// statement has no terminator, or the module block has no closing brace.
var ErrMalformedDescriptor = errors.New("malformed module descriptor")

const (
	terminator = ';'
	blockClose = '}'
)

// Span is the located provides statement for one interface.
type Span struct {
	Start     int      // offset of "provides"
	End       int      // exclusive; text[End-1] is the terminator
	ListStart int      // first byte after the "with " of the prefix
	ListEnd   int      // offset of the terminator
	Impls     []string // trimmed implementation names in declared order
}

// ProvidesPrefix is the literal text searched for when locating the statement
// for iface.
func ProvidesPrefix(iface string) string {
	return "provides " + iface + " with "
}

// Statement renders a complete provides statement for a single implementation.
func Statement(iface, impl string) string {
	return ProvidesPrefix(iface) + impl + string(terminator)
}

// Locate finds the first provides statement for iface outside comments. It
// returns (nil, nil) when there is none, and ErrMalformedDescriptor when the
// statement is not terminated before the end of its block. Span offsets index
// text itself.
func Locate(text, iface string) (*Span, error) {
	code := blankComments(text)
	prefix := ProvidesPrefix(iface)
	start := strings.Index(code, prefix)
	if start < 0 {
		return nil, nil
	}
	listStart := start + len(prefix)
	rel := strings.IndexByte(code[listStart:], terminator)
	if rel < 0 {
		return nil, fmt.Errorf("%w: provides %s at line %d has no terminating ';'",
			ErrMalformedDescriptor, iface, textutil.LineOf(text, start))
	}
	listEnd := listStart + rel
	seg := code[listStart:listEnd]
	if i := strings.IndexAny(seg, "{}"); i >= 0 {
		return nil, fmt.Errorf("%w: provides %s at line %d runs past a block delimiter at line %d",
			ErrMalformedDescriptor, iface, textutil.LineOf(text, start), textutil.LineOf(text, listStart+i))
	}
	return &Span{
		Start:     start,
		End:       listEnd + 1,
		ListStart: listStart,
		ListEnd:   listEnd,
		Impls:     splitImpls(seg),
	}, nil
}

// splitImpls splits a raw implementation list on commas. Entries are trimmed
// and empty entries (e.g. from a trailing comma) dropped.
func splitImpls(seg string) []string {
	var out []string
	for _, p := range strings.Split(seg, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
