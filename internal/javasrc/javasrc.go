// Package javasrc holds lightweight Java source helpers.
//
// This package answers the few questions the registrar and the scaffolder ask
// about Java sources, using regular expressions rather than a parser:
//   - which package a source file or directory belongs to
//   - which top-level type a file declares
//   - where the .java file for a qualified class name lives
//
// Limitations:
//   - Only the first declared top-level type is reported.
//   - Nested classes resolve to the file of their outermost class.
package javasrc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"modwire/internal/validate"
)

var (
	// package com.acme.foo;
	rePkg = regexp.MustCompile(`(?m)^\s*package\s+([A-Za-z0-9_$.]+)\s*;`)

	// public final class|interface|enum|record Name ...
	// Groups:
	//   1: kind
	//   2: type name
	reType = regexp.MustCompile(`(?m)^\s*(?:(?:public|protected|private|abstract|final|sealed|non-sealed|static|strictfp)\s+)*(class|interface|enum|record|@interface)\s+([A-Za-z0-9_$]+)`)

	// open module com.acme.app {
	reModule = regexp.MustCompile(`(?m)^\s*(?:@[A-Za-z0-9_.]+(?:\([^)]*\))?\s*)*(?:open\s+)?module\s+([A-Za-z0-9_$.]+)\s*\{`)
)

// PackageOf returns the declared package of a Java source, or "".
func PackageOf(src string) string {
	if m := rePkg.FindStringSubmatch(src); m != nil {
		return m[1]
	}
	return ""
}

// PrimaryType returns the kind ("class", "interface", "enum", "record",
// "@interface") and name of the first top-level type, or "file" and "".
func PrimaryType(src string) (kind, name string) {
	if m := reType.FindStringSubmatch(src); m != nil {
		return m[1], m[2]
	}
	return "file", ""
}

// ModuleName returns the module declared by a module-info.java source.
func ModuleName(src string) string {
	if m := reModule.FindStringSubmatch(src); m != nil {
		return m[1]
	}
	return ""
}

// QualifiedType joins the declared package and primary type of src.
func QualifiedType(src string) string {
	_, typ := PrimaryType(src)
	return joinName(PackageOf(src), typ)
}

// PackageForDir derives the package of dir from its position under
// sourceRoot. It fails when dir is outside the root or a path segment is not
// a legal identifier.
func PackageForDir(sourceRoot, dir string) (string, error) {
	rootAbs, err := filepath.Abs(sourceRoot)
	if err != nil {
		return "", err
	}
	dirAbs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(rootAbs, dirAbs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", nil
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is not under source root %s", dir, sourceRoot)
	}
	pkg := strings.ReplaceAll(rel, "/", ".")
	if err := validate.PackageName(pkg); err != nil {
		return "", fmt.Errorf("directory %s does not map to a package: %w", dir, err)
	}
	return pkg, nil
}

// DirForPackage returns the directory holding sources of pkg.
func DirForPackage(sourceRoot, pkg string) string {
	if pkg == "" {
		return sourceRoot
	}
	return filepath.Join(sourceRoot, filepath.FromSlash(strings.ReplaceAll(pkg, ".", "/")))
}

// ClassFile returns the path of the .java file declaring fqcn. Nested class
// names written with '$' map to the outer class file.
func ClassFile(sourceRoot, fqcn string) string {
	if i := strings.IndexByte(fqcn, '$'); i > 0 {
		fqcn = fqcn[:i]
	}
	pkg, simple := Split(fqcn)
	return filepath.Join(DirForPackage(sourceRoot, pkg), simple+".java")
}

// Split separates a qualified name into package and simple name.
func Split(fqcn string) (pkg, simple string) {
	if i := strings.LastIndexByte(fqcn, '.'); i >= 0 {
		return fqcn[:i], fqcn[i+1:]
	}
	return "", fqcn
}

// Declares reports whether the file for fqcn exists under any of roots and
// declares that type. A missing file is (false, nil); read errors are
// returned.
func Declares(roots []string, fqcn string) (bool, error) {
	outer := fqcn
	if i := strings.IndexByte(outer, '$'); i > 0 {
		outer = outer[:i]
	}
	candidates := []string{outer}
	if o := nestedOuter(outer); o != "" {
		candidates = append(candidates, o)
	}
	for _, root := range roots {
		for _, name := range candidates {
			b, err := os.ReadFile(ClassFile(root, name))
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return false, err
			}
			if QualifiedType(string(b)) == name {
				return true, nil
			}
		}
	}
	return false, nil
}

// nestedOuter returns the enclosing type of a nested class written with dots
// (com.acme.Outer.Inner), or "" when the last two segments are not both
// type names.
func nestedOuter(fqcn string) string {
	pkg, simple := Split(fqcn)
	_, parent := Split(pkg)
	if !isTypeName(simple) || !isTypeName(parent) {
		return ""
	}
	return pkg
}

func isTypeName(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}

// joinName concatenates non-empty segments with '.'.
func joinName(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(p)
	}
	return b.String()
}
