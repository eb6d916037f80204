// Package registrar projects provision facts into a project's module
// descriptor and service manifests, and checks the two stay consistent.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"modwire/internal/descriptor"
	"modwire/internal/diff"
	"modwire/internal/logging"
	"modwire/internal/manifest"
	"modwire/internal/meta"
	"modwire/internal/provision"
	"modwire/internal/txn"
	"modwire/internal/walkwalk"
)

// Outcome is what happened to one file for one fact.
type Outcome string

const (
	Unchanged Outcome = "unchanged"
	Appended  Outcome = "appended"
	Inserted  Outcome = "inserted"
	Created   Outcome = "created"
)

// File kinds reported in FileResult.
const (
	KindDescriptor = "descriptor"
	KindManifest   = "manifest"
)

// Options configure a Registrar.
type Options struct {
	Layout       meta.Layout
	IncludeTests bool
	DryRun       bool
	Diff         diff.Options
	Walk         walkwalk.Options
	// Concurrency bounds descriptor parsing in Check; 0 picks a default.
	Concurrency int
	Logger      *zap.Logger
}

// FileResult is the outcome of one fact on one file.
type FileResult struct {
	Fact    provision.Fact
	Path    string // root-relative, forward slashes
	Kind    string
	Outcome Outcome
}

// FileDiff is a dry-run preview of one pending write.
type FileDiff struct {
	Path  string
	Patch string
}

// Report summarizes a registration.
type Report struct {
	TxID   string // empty for dry runs and no-ops
	DryRun bool
	Files  []FileResult
	Diffs  []FileDiff
	// NoDescriptor is set when the project has no module descriptor; only
	// manifests were touched.
	NoDescriptor bool
}

// Changed reports whether any file would be or was written.
func (r *Report) Changed() bool {
	for _, f := range r.Files {
		if f.Outcome != Unchanged {
			return true
		}
	}
	return false
}

// Registrar applies provision facts to one project.
type Registrar struct {
	opt Options
	log *zap.Logger
}

// New returns a Registrar for opt.Layout.
func New(opt Options) *Registrar {
	return &Registrar{opt: opt, log: logging.OrNop(opt.Logger)}
}

// Layout returns the project layout the registrar works on.
func (r *Registrar) Layout() meta.Layout { return r.opt.Layout }

// Register applies facts in order within one transaction and commits it,
// or previews it when DryRun is set. Facts are threaded: each sees the text
// produced by the previous one.
func (r *Registrar) Register(ctx context.Context, facts ...provision.Fact) (*Report, error) {
	tx, err := txn.Begin(r.opt.Layout.Root, r.log)
	if err != nil {
		return nil, err
	}
	files, err := r.Stage(ctx, tx, facts...)
	if err != nil {
		tx.Discard()
		return nil, err
	}
	return r.Finish(tx, files)
}

// Stage applies facts to the staged contents of tx without writing. Any
// malformed descriptor fails the whole call; the caller must Discard tx.
func (r *Registrar) Stage(ctx context.Context, tx *txn.Tx, facts ...provision.Fact) ([]FileResult, error) {
	descs, err := r.targetDescriptors()
	if err != nil {
		return nil, err
	}
	var out []FileResult
	for _, f := range facts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		res, err := r.stageManifest(tx, r.opt.Layout.ResourcesRoot, f)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
		for _, d := range descs {
			res, err := r.stageDescriptor(tx, d, f)
			if err != nil {
				return nil, err
			}
			out = append(out, res)
			if r.opt.IncludeTests && r.opt.Layout.IsTestPath(d) {
				res, err := r.stageManifest(tx, r.opt.Layout.TestResourcesRoot, f)
				if err != nil {
					return nil, err
				}
				out = append(out, res)
			}
		}
		r.log.Debug("fact staged", zap.Stringer("fact", f), zap.Int("descriptors", len(descs)))
	}
	return out, nil
}

func (r *Registrar) stageManifest(tx *txn.Tx, resourcesRoot string, f provision.Fact) (FileResult, error) {
	p := filepath.Join(resourcesRoot, filepath.FromSlash(f.ServiceFile()))
	res := FileResult{Fact: f, Path: r.opt.Layout.Rel(p), Kind: KindManifest, Outcome: Unchanged}
	text, exists, err := tx.Read(p)
	if err != nil {
		return res, err
	}
	next, changed := manifest.Register(text, f.Implementation)
	if !changed {
		return res, nil
	}
	if err := tx.Stage(p, next); err != nil {
		return res, err
	}
	res.Outcome = Appended
	if !exists {
		res.Outcome = Created
	}
	return res, nil
}

func (r *Registrar) stageDescriptor(tx *txn.Tx, path string, f provision.Fact) (FileResult, error) {
	rel := r.opt.Layout.Rel(path)
	res := FileResult{Fact: f, Path: rel, Kind: KindDescriptor, Outcome: Unchanged}
	text, _, err := tx.Read(path)
	if err != nil {
		return res, err
	}
	applied, err := descriptor.Apply(text, f)
	if err != nil {
		return res, fmt.Errorf("%s: %w", rel, err)
	}
	if !applied.Outcome.Changed() {
		return res, nil
	}
	if err := tx.Stage(path, applied.Text); err != nil {
		return res, err
	}
	res.Outcome = Outcome(applied.Outcome.String())
	return res, nil
}

// Finish commits tx, or renders diffs and discards it for dry runs.
func (r *Registrar) Finish(tx *txn.Tx, files []FileResult) (*Report, error) {
	rep := &Report{DryRun: r.opt.DryRun, Files: files}
	rep.NoDescriptor = !hasKind(files, KindDescriptor)
	if r.opt.DryRun {
		for _, c := range tx.Changes() {
			var patch string
			if c.Created {
				patch, _ = diff.Added(c.Rel, c.After, r.opt.Diff)
			} else {
				patch, _ = diff.Unified(c.Rel, c.Before, c.After, r.opt.Diff)
			}
			rep.Diffs = append(rep.Diffs, FileDiff{Path: c.Rel, Patch: patch})
		}
		tx.Discard()
		return rep, nil
	}
	j, err := tx.Commit()
	if err != nil {
		return nil, err
	}
	if j != nil {
		rep.TxID = j.ID
	}
	return rep, nil
}

func hasKind(files []FileResult, kind string) bool {
	for _, f := range files {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// targetDescriptors returns the descriptor at the main source root and, with
// IncludeTests, the one at the test source root. Missing ones are skipped.
func (r *Registrar) targetDescriptors() ([]string, error) {
	roots := []string{r.opt.Layout.SourceRoot}
	if r.opt.IncludeTests {
		roots = append(roots, r.opt.Layout.TestSourceRoot)
	}
	var out []string
	for _, root := range roots {
		p := filepath.Join(root, walkwalk.DescriptorName)
		st, err := os.Stat(p)
		switch {
		case err == nil && st.Mode().IsRegular():
			out = append(out, p)
		case err == nil, errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	if len(out) == 0 {
		r.log.Info("no module descriptor found; registering in manifests only",
			zap.String("source_root", r.opt.Layout.Rel(r.opt.Layout.SourceRoot)))
	}
	return out, nil
}
