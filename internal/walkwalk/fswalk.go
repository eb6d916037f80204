// Package walkwalk provides a deterministic, filterable filesystem walker
// used to discover module descriptors in a project tree.
package walkwalk

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DescriptorName is the file name of a Java module descriptor.
const DescriptorName = "module-info.java"

// FileInfo is a minimal, deterministic descriptor of a collected file.
type FileInfo struct {
	RelPath string // project-relative path with forward slashes
	AbsPath string // absolute filesystem path
	Size    int64  // size in bytes
}

// Options filters the walk.
type Options struct {
	// Exclude skips entries whose base name equals a key.
	Exclude map[string]struct{}
	// UseGitignore honors <root>/.gitignore.
	UseGitignore bool
	// FollowSymlinks descends into symlinked directories.
	FollowSymlinks bool
}

// DefaultOptions excludes VCS, IDE and build output directories.
func DefaultOptions() Options {
	ex := map[string]struct{}{}
	for _, k := range []string{".git", ".idea", ".vscode", ".modwire", "node_modules", "target", "build", "out", ".gradle"} {
		ex[k] = struct{}{}
	}
	return Options{Exclude: ex, UseGitignore: true}
}

type walkState struct {
	opt      Options
	root     string
	name     string
	patterns []gitPattern
	files    []FileInfo
}

// FindNamed walks root and returns every regular file called name, sorted by
// relative path.
func FindNamed(root, name string, opt Options) ([]FileInfo, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	ws := &walkState{opt: opt, root: rootAbs, name: name}
	if opt.UseGitignore {
		if pats, err := parseGitignore(filepath.Join(rootAbs, ".gitignore")); err == nil {
			ws.patterns = pats
		}
	}
	if err := filepath.WalkDir(rootAbs, ws.visit); err != nil {
		return nil, err
	}
	sort.Slice(ws.files, func(i, j int) bool { return ws.files[i].RelPath < ws.files[j].RelPath })
	return ws.files, nil
}

// FindDescriptors returns every module-info.java under root.
func FindDescriptors(root string, opt Options) ([]FileInfo, error) {
	return FindNamed(root, DescriptorName, opt)
}

func (ws *walkState) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		if path == ws.root {
			return err
		}
		return nil
	}
	rel, ok := ws.relative(path)
	if !ok {
		return nil
	}
	if rel != "." && ws.shouldSkip(rel, d) {
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}
	if d.IsDir() {
		if rel != "." && !ws.opt.FollowSymlinks && isSymlink(d) {
			return filepath.SkipDir
		}
		return nil
	}
	return ws.handleFile(path, rel, d)
}

func (ws *walkState) relative(path string) (string, bool) {
	rel, err := filepath.Rel(ws.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return "", false
	}
	return rel, true
}

func (ws *walkState) shouldSkip(rel string, d fs.DirEntry) bool {
	base := filepath.Base(rel)
	if _, bad := ws.opt.Exclude[base]; bad {
		return true
	}
	if ws.opt.UseGitignore && matchGitignore(ws.patterns, rel, d.IsDir()) {
		return true
	}
	return false
}

func (ws *walkState) handleFile(path, rel string, d fs.DirEntry) error {
	if d.Name() != ws.name {
		return nil
	}
	if !ws.opt.FollowSymlinks && isSymlink(d) {
		return nil
	}
	info, err := d.Info()
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	ws.files = append(ws.files, FileInfo{RelPath: rel, AbsPath: path, Size: info.Size()})
	return nil
}

// isSymlink reports whether the DirEntry is a symlink (file or directory).
func isSymlink(d fs.DirEntry) bool {
	return d.Type()&fs.ModeSymlink != 0
}

// ---------------- .gitignore support ----------------

type gitPattern struct {
	neg     bool           // pattern starts with '!'
	dirOnly bool           // pattern ends with '/'
	rx      *regexp.Regexp // compiled matcher
}

// parseGitignore reads a .gitignore file and compiles patterns. Minimal support:
//   - '#' comments, blank lines ignored
//   - '!' negation
//   - leading '/' anchors to repo root
//   - trailing '/' restricts to directories
//   - '**' matches across directories
//   - '*' and '?' behave like shell globs (not crossing '/')
func parseGitignore(path string) ([]gitPattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var res []gitPattern
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		neg := false
		if strings.HasPrefix(line, "!") {
			neg = true
			line = strings.TrimSpace(line[1:])
			if line == "" {
				continue
			}
		}
		dirOnly := strings.HasSuffix(line, "/")
		line = strings.TrimSuffix(line, "/")
		anchored := strings.HasPrefix(line, "/")
		line = strings.TrimPrefix(line, "/")
		res = append(res, gitPattern{neg: neg, dirOnly: dirOnly, rx: compileGitGlob(line, anchored)})
	}
	return res, s.Err()
}

func compileGitGlob(glob string, anchored bool) *regexp.Regexp {
	esc := regexp.QuoteMeta(glob)
	esc = strings.ReplaceAll(esc, `\*\*`, "__DOUBLESTAR__")
	esc = strings.ReplaceAll(esc, `\*`, "[^/]*")
	esc = strings.ReplaceAll(esc, `\?`, "[^/]")
	esc = strings.ReplaceAll(esc, "__DOUBLESTAR__", ".*")
	if anchored {
		return regexp.MustCompile("^" + esc + "$")
	}
	return regexp.MustCompile("(^|.*/)" + esc + "$")
}

func matchGitignore(pats []gitPattern, rel string, isDir bool) bool {
	ignored := false
	for _, p := range pats {
		if p.rx.MatchString(rel) {
			if p.dirOnly && !isDir {
				continue
			}
			ignored = !p.neg
		}
	}
	return ignored
}
