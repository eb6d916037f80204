package descriptor

import (
	"fmt"
	"strings"
	"unicode"

	"modwire/internal/provision"
)

// Outcome reports what a patch did to the text.
type Outcome int

const (
	// OutcomeUnchanged: the implementation was already declared.
	OutcomeUnchanged Outcome = iota
	// OutcomeAppended: the implementation was added to an existing statement.
	OutcomeAppended
	// OutcomeInserted: a new provides statement was added to the block.
	OutcomeInserted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeAppended:
		return "appended"
	case OutcomeInserted:
		return "inserted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Changed reports whether the text differs from the input.
func (o Outcome) Changed() bool { return o != OutcomeUnchanged }

// Patch applies fact to text given the result of Locate for fact.Interface.
//
// With a span, the implementation list is extended in place (or left alone
// when the implementation is already listed). Without one, a new statement is
// inserted on its own line right before the last '}' outside comments. On error no
// text is returned.
func Patch(text string, span *Span, fact provision.Fact) (string, Outcome, error) {
	impl := fact.Implementation
	if span != nil {
		if Merge(span.Impls, impl).AlreadyPresent {
			return text, OutcomeUnchanged, nil
		}
		seg := blankComments(text)[span.ListStart:span.ListEnd]
		kept := strings.TrimRightFunc(seg, unicode.IsSpace)
		cut := span.ListStart + len(kept)
		insert := "," + impl
		if strings.TrimSpace(kept) == "" || strings.HasSuffix(kept, ",") {
			insert = impl
		}
		return text[:cut] + insert + text[cut:], OutcomeAppended, nil
	}

	closing := strings.LastIndexByte(blankComments(text), blockClose)
	if closing < 0 {
		return "", OutcomeUnchanged, fmt.Errorf("%w: no closing '}' to insert provides %s", ErrMalformedDescriptor, fact.Interface)
	}
	stmt := "\t" + Statement(fact.Interface, impl) + "\n"
	return text[:closing] + stmt + text[closing:], OutcomeInserted, nil
}

// Result is the full outcome of Apply.
type Result struct {
	Text    string
	Outcome Outcome
	Span    *Span // statement found before patching, nil when inserted
}

// Apply locates the statement for fact.Interface and patches text. It is the
// single entry point used by the registrar.
func Apply(text string, fact provision.Fact) (Result, error) {
	span, err := Locate(text, fact.Interface)
	if err != nil {
		return Result{}, err
	}
	out, outcome, err := Patch(text, span, fact)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: out, Outcome: outcome, Span: span}, nil
}
