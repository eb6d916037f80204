package descriptor

import (
	"fmt"
	"regexp"
	"strings"

	"modwire/internal/textutil"
)

// Module is a read-only statement view of a descriptor.
type Module struct {
	Name       string
	Open       bool
	Imports    []string // qualified names imported before the header
	Statements []Stmt
}

// Stmt is one terminated directive inside the module block.
type Stmt struct {
	Keyword string // requires | exports | opens | uses | provides | ...
	Body    string // text between keyword and ';', whitespace collapsed
	Start   int    // offset of the keyword in the original text
	Line    int    // 1-based line of the keyword
}

// Provision is a parsed provides statement.
type Provision struct {
	Interface string
	Impls     []string
	Line      int
}

var (
	reHeader   = regexp.MustCompile(`(?s)(?:^|[\s;])(open\s+)?module\s+([A-Za-z_$][A-Za-z0-9_$.]*)\s*$`)
	reProvides = regexp.MustCompile(`(?s)^([A-Za-z_$][A-Za-z0-9_$.]*)\s+with\s+(.+)$`)
	reImport   = regexp.MustCompile(`\bimport\s+([A-Za-z_$][A-Za-z0-9_$.]*)\s*;`)
)

// Parse tokenizes text into a Module. Comments are ignored. It fails with
// ErrMalformedDescriptor when the module header or block is missing, or when
// text is left over after the last terminator.
func Parse(text string) (*Module, error) {
	clean := blankComments(text)
	open := strings.IndexByte(clean, '{')
	closing := strings.LastIndexByte(clean, blockClose)
	if open < 0 || closing < 0 || closing < open {
		return nil, fmt.Errorf("%w: missing module block", ErrMalformedDescriptor)
	}
	hm := reHeader.FindStringSubmatch(clean[:open])
	if hm == nil {
		return nil, fmt.Errorf("%w: missing module declaration before '{'", ErrMalformedDescriptor)
	}
	mod := &Module{Name: hm[2], Open: hm[1] != ""}
	for _, im := range reImport.FindAllStringSubmatch(clean[:open], -1) {
		mod.Imports = append(mod.Imports, im[1])
	}

	body := clean[open+1 : closing]
	base := open + 1
	pos := 0
	for {
		rel := strings.IndexByte(body[pos:], terminator)
		if rel < 0 {
			break
		}
		raw := body[pos : pos+rel]
		if s, ok := makeStmt(text, raw, base+pos); ok {
			mod.Statements = append(mod.Statements, s)
		}
		pos += rel + 1
	}
	if rest := strings.TrimSpace(body[pos:]); rest != "" {
		return nil, fmt.Errorf("%w: unterminated statement %q at line %d",
			ErrMalformedDescriptor, firstWord(rest), textutil.LineOf(text, base+pos+strings.Index(body[pos:], rest)))
	}
	return mod, nil
}

func makeStmt(text, raw string, off int) (Stmt, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Stmt{}, false
	}
	start := off + strings.Index(raw, trimmed)
	kw := firstWord(trimmed)
	body := strings.Join(strings.Fields(strings.TrimPrefix(trimmed, kw)), " ")
	return Stmt{Keyword: kw, Body: body, Start: start, Line: textutil.LineOf(text, start)}, true
}

// Provides returns the provides statements in declaration order.
func (m *Module) Provides() []Provision {
	var out []Provision
	for _, s := range m.Statements {
		if s.Keyword != "provides" {
			continue
		}
		pm := reProvides.FindStringSubmatch(s.Body)
		if pm == nil {
			continue
		}
		var impls []string
		for _, p := range strings.Split(pm[2], ",") {
			if p = strings.Join(strings.Fields(p), ""); p != "" {
				impls = append(impls, p)
			}
		}
		out = append(out, Provision{Interface: pm[1], Impls: impls, Line: s.Line})
	}
	return out
}

// Requires returns the module names of requires statements, without
// transitive/static modifiers.
func (m *Module) Requires() []string {
	var out []string
	for _, s := range m.Statements {
		if s.Keyword != "requires" {
			continue
		}
		f := strings.Fields(s.Body)
		if len(f) > 0 {
			out = append(out, f[len(f)-1])
		}
	}
	return out
}

// Uses returns the service interfaces consumed through uses statements.
func (m *Module) Uses() []string {
	var out []string
	for _, s := range m.Statements {
		if s.Keyword == "uses" && s.Body != "" {
			out = append(out, s.Body)
		}
	}
	return out
}

// Resolve expands a simple type name using the descriptor's imports. Names
// that are already qualified, or not imported, are returned as is.
func (m *Module) Resolve(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	for _, im := range m.Imports {
		if strings.HasSuffix(im, "."+name) {
			return im
		}
	}
	return name
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

// blankComments replaces // and /* */ comments with spaces, keeping newlines
// so offsets and line numbers match the original text.
func blankComments(text string) string {
	b := []byte(text)
	for i := 0; i < len(b); i++ {
		if b[i] != '/' || i+1 >= len(b) {
			continue
		}
		switch b[i+1] {
		case '/':
			for ; i < len(b) && b[i] != '\n'; i++ {
				b[i] = ' '
			}
		case '*':
			b[i], b[i+1] = ' ', ' '
			i += 2
			for ; i < len(b); i++ {
				if b[i] == '*' && i+1 < len(b) && b[i+1] == '/' {
					b[i], b[i+1] = ' ', ' '
					i++
					break
				}
				if b[i] != '\n' {
					b[i] = ' '
				}
			}
		}
	}
	return string(b)
}
