package registrar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"modwire/internal/descriptor"
	"modwire/internal/javasrc"
	"modwire/internal/manifest"
	"modwire/internal/walkwalk"
)

// Finding kinds reported by Check.
const (
	// FindingMissingManifest: a provides entry has no manifest line.
	FindingMissingManifest = "missing-manifest-entry"
	// FindingMissingProvides: a manifest line has no provides entry.
	FindingMissingProvides = "missing-provides"
	// FindingMalformed: the descriptor could not be parsed.
	FindingMalformed = "malformed-descriptor"
	// FindingUnknownClass: the implementation has no source file in the module.
	FindingUnknownClass = "unknown-class"
)

// Finding is one inconsistency between a descriptor and its manifests.
type Finding struct {
	Kind           string
	Path           string // file the finding is about, root-relative
	Line           int    // 0 when not applicable
	Interface      string
	Implementation string
	Detail         string
}

func (f Finding) String() string {
	loc := f.Path
	if f.Line > 0 {
		loc = fmt.Sprintf("%s:%d", f.Path, f.Line)
	}
	switch f.Kind {
	case FindingMissingManifest:
		return fmt.Sprintf("%s: %s provides %s but META-INF/services/%s does not list it", loc, f.Interface, f.Implementation, f.Interface)
	case FindingMissingProvides:
		return fmt.Sprintf("%s: lists %s but no descriptor provides %s with it", loc, f.Implementation, f.Interface)
	case FindingUnknownClass:
		return fmt.Sprintf("%s: %s has no source file", loc, f.Implementation)
	default:
		return fmt.Sprintf("%s: %s", loc, f.Detail)
	}
}

// ModuleView is a descriptor together with the manifests next to it.
type ModuleView struct {
	Descriptor string // root-relative
	Name       string
	Provides   []descriptor.Provision // interfaces resolved through imports
	Requires   []string
	Uses       []string
	Manifests  map[string][]string    // interface -> implementations
	Err        error                  // parse failure, if any

	sourceRoot    string
	resourcesRoot string
}

// List discovers every descriptor under the project root (tests only with
// IncludeTests) and reads its provides statements and manifests. Descriptors
// are processed concurrently; the result is sorted by descriptor path.
func (r *Registrar) List(ctx context.Context) ([]ModuleView, error) {
	files, err := walkwalk.FindDescriptors(r.opt.Layout.Root, r.opt.Walk)
	if err != nil {
		return nil, err
	}
	var selected []walkwalk.FileInfo
	for _, f := range files {
		if !r.opt.IncludeTests && r.isTestDescriptor(f.AbsPath) {
			r.log.Debug("skipping test descriptor", zap.String("path", f.RelPath))
			continue
		}
		selected = append(selected, f)
	}

	views := make([]ModuleView, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	limit := r.opt.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for i, f := range selected {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := r.readModule(f)
			if err != nil {
				return err
			}
			views[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func (r *Registrar) readModule(f walkwalk.FileInfo) (ModuleView, error) {
	srcRoot := filepath.Dir(f.AbsPath)
	v := ModuleView{
		Descriptor:    f.RelPath,
		Manifests:     map[string][]string{},
		sourceRoot:    srcRoot,
		resourcesRoot: r.resourcesFor(srcRoot),
	}
	b, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return v, err
	}
	mod, err := descriptor.Parse(string(b))
	if err != nil {
		v.Err = err
	} else {
		v.Name = mod.Name
		v.Requires = mod.Requires()
		for _, u := range mod.Uses() {
			v.Uses = append(v.Uses, mod.Resolve(u))
		}
		for _, p := range mod.Provides() {
			p.Interface = mod.Resolve(p.Interface)
			impls := make([]string, len(p.Impls))
			for i, impl := range p.Impls {
				impls[i] = mod.Resolve(impl)
			}
			p.Impls = impls
			v.Provides = append(v.Provides, p)
		}
	}

	dir := filepath.Join(v.resourcesRoot, "META-INF", "services")
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return v, err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		mb, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return v, err
		}
		v.Manifests[e.Name()] = manifest.Entries(string(mb))
	}
	return v, nil
}

// resourcesFor maps a source root to its resources root: the layout's own
// pairs first, then the Maven/Gradle sibling convention.
func (r *Registrar) resourcesFor(srcRoot string) string {
	l := r.opt.Layout
	switch srcRoot {
	case l.SourceRoot:
		return l.ResourcesRoot
	case l.TestSourceRoot:
		return l.TestResourcesRoot
	}
	if filepath.Base(srcRoot) == "java" {
		return filepath.Join(filepath.Dir(srcRoot), "resources")
	}
	return l.ResourcesRoot
}

func (r *Registrar) isTestDescriptor(p string) bool {
	if r.opt.Layout.IsTestPath(p) {
		return true
	}
	dir := filepath.ToSlash(filepath.Dir(p))
	return strings.HasSuffix(dir, "/src/test/java")
}

// Check cross-checks every discovered descriptor against its manifests.
// Findings are sorted by path, line, kind, interface and implementation.
func (r *Registrar) Check(ctx context.Context) ([]Finding, error) {
	views, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, v := range views {
		out = append(out, r.checkModule(v)...)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Interface != b.Interface {
			return a.Interface < b.Interface
		}
		return a.Implementation < b.Implementation
	})
	r.log.Debug("check finished", zap.Int("modules", len(views)), zap.Int("findings", len(out)))
	return out, nil
}

func (r *Registrar) checkModule(v ModuleView) []Finding {
	if v.Err != nil {
		return []Finding{{Kind: FindingMalformed, Path: v.Descriptor, Detail: v.Err.Error()}}
	}
	var out []Finding
	provided := map[string]map[string]bool{}
	for _, p := range v.Provides {
		if provided[p.Interface] == nil {
			provided[p.Interface] = map[string]bool{}
		}
		listed := map[string]bool{}
		for _, impl := range v.Manifests[p.Interface] {
			listed[impl] = true
		}
		for _, impl := range p.Impls {
			provided[p.Interface][impl] = true
			if !listed[impl] {
				out = append(out, Finding{Kind: FindingMissingManifest, Path: v.Descriptor, Line: p.Line, Interface: p.Interface, Implementation: impl})
			}
			ok, err := javasrc.Declares([]string{v.sourceRoot}, impl)
			if err != nil {
				r.log.Warn("cannot read implementation source", zap.String("class", impl), zap.Error(err))
				continue
			}
			if !ok {
				out = append(out, Finding{Kind: FindingUnknownClass, Path: v.Descriptor, Line: p.Line, Interface: p.Interface, Implementation: impl})
			}
		}
	}
	for iface, impls := range v.Manifests {
		rel := r.opt.Layout.Rel(filepath.Join(v.resourcesRoot, "META-INF", "services", iface))
		for _, impl := range impls {
			if !provided[iface][impl] {
				out = append(out, Finding{Kind: FindingMissingProvides, Path: rel, Interface: iface, Implementation: impl})
			}
		}
	}
	return out
}
