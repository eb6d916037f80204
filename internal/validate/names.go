// Package validate performs lightweight, dependency-free checks on the Java
// names that flow into descriptors, manifests and generated sources.
//
// Goals:
//   - Aggregate multiple issues into a single error for better UX
//   - Strict enough to keep a descriptor syntactically valid after a merge
//   - No knowledge of which classes actually exist (that is the checker's job)
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// javaKeywords cannot be used as identifier segments.
var javaKeywords = map[string]struct{}{
	"abstract": {}, "assert": {}, "boolean": {}, "break": {}, "byte": {}, "case": {},
	"catch": {}, "char": {}, "class": {}, "const": {}, "continue": {}, "default": {},
	"do": {}, "double": {}, "else": {}, "enum": {}, "extends": {}, "final": {},
	"finally": {}, "float": {}, "for": {}, "goto": {}, "if": {}, "implements": {},
	"import": {}, "instanceof": {}, "int": {}, "interface": {}, "long": {}, "native": {},
	"new": {}, "package": {}, "private": {}, "protected": {}, "public": {}, "return": {},
	"short": {}, "static": {}, "strictfp": {}, "super": {}, "switch": {}, "synchronized": {},
	"this": {}, "throw": {}, "throws": {}, "transient": {}, "try": {}, "void": {},
	"volatile": {}, "while": {}, "true": {}, "false": {}, "null": {}, "_": {},
}

// Identifier reports whether s is a single legal Java identifier.
func Identifier(s string) error {
	if s == "" {
		return errors.New("identifier must be non-empty")
	}
	for i, r := range s {
		if i == 0 && !(unicode.IsLetter(r) || r == '_' || r == '$') {
			return fmt.Errorf("identifier %q must start with a letter, '_' or '$'", s)
		}
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$') {
			return fmt.Errorf("identifier %q contains illegal character %q", s, r)
		}
	}
	if _, kw := javaKeywords[s]; kw {
		return fmt.Errorf("identifier %q is a reserved word", s)
	}
	return nil
}

// QualifiedName validates a dotted name such as "com.acme.Service".
// Every segment must be an identifier; blanks anywhere are rejected because a
// blank would end up inside a provides statement or a manifest line.
func QualifiedName(name string) error {
	var errs errlist
	if strings.TrimSpace(name) == "" {
		return errors.New("qualified name must be non-empty")
	}
	if strings.ContainsAny(name, " \t\r\n,;{}") {
		return fmt.Errorf("qualified name %q contains whitespace or delimiter characters", name)
	}
	for i, seg := range strings.Split(name, ".") {
		if seg == "" {
			errs.add("%q: empty segment at position %d", name, i)
			continue
		}
		if err := Identifier(seg); err != nil {
			errs.add("%q: %v", name, err)
		}
	}
	return errs.err()
}

// PackageName validates a package name; the empty (default) package is allowed.
func PackageName(pkg string) error {
	if pkg == "" {
		return nil
	}
	return QualifiedName(pkg)
}

// All runs each check and joins the failures into one error.
func All(checks ...func() error) error {
	var errs errlist
	for _, c := range checks {
		if err := c(); err != nil {
			errs.add("%v", err)
		}
	}
	return errs.err()
}

// errlist aggregates multiple validation issues into a single error.
type errlist struct {
	msgs []string
}

func (e *errlist) add(format string, args ...any) {
	if e == nil {
		return
	}
	e.msgs = append(e.msgs, fmt.Sprintf(format, args...))
}

func (e *errlist) err() error {
	if e == nil || len(e.msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(e.msgs, "\n"))
}
