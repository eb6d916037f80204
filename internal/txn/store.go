// Package txn applies a set of text edits to files as one unit.
//
// A transaction stages new contents per file, then Commit writes them all
// atomically (temp file in the same directory, fsync, rename). If any write
// fails, files already written are put back. Committed transactions leave a
// journal and content-addressed copies of the originals so Undo can revert.
//
// Conventions:
//   - State lives at:        <root>/.modwire/
//   - The journal is stored at: <root>/.modwire/journal.json
//   - Originals are stored under: <root>/.modwire/blobs/aa/bb/<sha256>
package txn

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// StateDirName is the per-project directory holding journal and blobs.
	StateDirName    = ".modwire"
	journalFileName = "journal.json"
	blobsDirName    = "blobs"
	formatVersion   = "1"
)

var (
	// ErrConflict means a file changed on disk after it was read (commit) or
	// after it was written (undo).
	ErrConflict = errors.New("file changed on disk")
	// ErrNoJournal means there is no committed transaction to undo.
	ErrNoJournal = errors.New("no transaction to undo")
	// ErrClosed is returned when a committed or discarded transaction is reused.
	ErrClosed = errors.New("transaction closed")
)

// commitWrite writes project files during Commit and rollback.
var commitWrite = writeAtomic

type stagedFile struct {
	orig   string
	exists bool
	mode   fs.FileMode
	text   string
}

// Tx is a pending set of file edits. A Tx is meant for one goroutine; the
// mutex only guards against accidental concurrent Commit calls.
type Tx struct {
	mu     sync.Mutex
	id     string
	root   string
	log    *zap.Logger
	files  map[string]*stagedFile
	order  []string
	closed bool
}

// Begin opens a transaction for files under root.
func Begin(root string, log *zap.Logger) (*Tx, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	log.Debug("transaction begin", zap.String("tx", id), zap.String("root", abs))
	return &Tx{id: id, root: abs, log: log, files: map[string]*stagedFile{}}, nil
}

// ID returns the transaction id recorded in the journal.
func (t *Tx) ID() string { return t.id }

// Read returns the staged text of path, or its disk contents on first access.
// A missing file reads as "" with exists=false.
func (t *Tx) Read(path string) (text string, exists bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", false, ErrClosed
	}
	sf, err := t.load(path)
	if err != nil {
		return "", false, err
	}
	return sf.text, sf.exists, nil
}

// Stage sets the new contents of path. Staging the current text is a no-op.
func (t *Tx) Stage(path, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	sf, err := t.load(path)
	if err != nil {
		return err
	}
	sf.text = text
	return nil
}

func (t *Tx) load(path string) (*stagedFile, error) {
	abs, err := t.abs(path)
	if err != nil {
		return nil, err
	}
	if sf, ok := t.files[abs]; ok {
		return sf, nil
	}
	sf := &stagedFile{mode: 0o644}
	b, err := os.ReadFile(abs)
	switch {
	case err == nil:
		sf.orig, sf.exists = string(b), true
		if st, statErr := os.Stat(abs); statErr == nil {
			sf.mode = st.Mode().Perm()
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", abs, err)
	}
	sf.text = sf.orig
	t.files[abs] = sf
	t.order = append(t.order, abs)
	return sf, nil
}

func (t *Tx) abs(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(t.root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(t.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside project root %s", path, t.root)
	}
	return path, nil
}

// Changes lists staged edits that differ from disk, in staging order.
func (t *Tx) Changes() []Change {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.changes()
}

func (t *Tx) changes() []Change {
	var out []Change
	for _, p := range t.order {
		sf := t.files[p]
		if sf.exists && sf.text == sf.orig {
			continue
		}
		if !sf.exists && sf.text == "" {
			continue
		}
		out = append(out, Change{Path: p, Rel: t.rel(p), Before: sf.orig, After: sf.text, Created: !sf.exists})
	}
	return out
}

func (t *Tx) rel(p string) string {
	r, err := filepath.Rel(t.root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(r)
}

// Discard drops all staged edits.
func (t *Tx) Discard() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.files = nil
	t.order = nil
}

// Commit writes all changes. It returns (nil, nil) when nothing changed, in
// which case no file, journal or blob is written.
func (t *Tx) Commit() (*Journal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	t.closed = true
	changes := t.changes()
	if len(changes) == 0 {
		t.log.Debug("transaction commit: nothing to write", zap.String("tx", t.id))
		return nil, nil
	}

	// Refuse to overwrite edits made by someone else since we read the file.
	for _, c := range changes {
		b, err := os.ReadFile(c.Path)
		now, exists := string(b), err == nil
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("re-read %s: %w", c.Rel, err)
		}
		if exists == c.Created || now != c.Before {
			return nil, fmt.Errorf("%w: %s", ErrConflict, c.Rel)
		}
	}

	stateDir := filepath.Join(t.root, StateDirName)
	j := &Journal{ID: t.id, Created: time.Now().UTC().Format(time.RFC3339), FormatVersion: formatVersion}
	for _, c := range changes {
		e := Entry{Path: c.Rel, HashAfter: hashOf(c.After), Created: c.Created}
		if !c.Created {
			e.HashBefore = hashOf(c.Before)
			if err := SaveBlob(stateDir, e.HashBefore, c.Before); err != nil {
				return nil, fmt.Errorf("back up %s: %w", c.Rel, err)
			}
		}
		j.Entries = append(j.Entries, e)
	}

	var written []Change
	for _, c := range changes {
		if err := commitWrite(c.Path, c.After, t.files[c.Path].mode); err != nil {
			rbErr := t.rollback(written)
			t.log.Warn("transaction rolled back", zap.String("tx", t.id), zap.String("path", c.Rel), zap.Error(err))
			return nil, errors.Join(fmt.Errorf("write %s: %w", c.Rel, err), rbErr)
		}
		written = append(written, c)
		t.log.Debug("wrote file", zap.String("tx", t.id), zap.String("path", c.Rel), zap.Bool("created", c.Created))
	}

	if err := saveJournal(stateDir, j); err != nil {
		rbErr := t.rollback(written)
		t.log.Warn("transaction rolled back", zap.String("tx", t.id), zap.Error(err))
		return nil, errors.Join(fmt.Errorf("save journal: %w", err), rbErr)
	}
	t.log.Info("transaction committed", zap.String("tx", t.id), zap.Int("files", len(changes)))
	return j, nil
}

// rollback restores originals of already-written files, newest first, with
// the permissions they had when staged.
func (t *Tx) rollback(written []Change) error {
	var errs []error
	for i := len(written) - 1; i >= 0; i-- {
		c := written[i]
		if c.Created {
			if err := os.Remove(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("rollback %s: %w", c.Rel, err))
			}
			continue
		}
		if err := commitWrite(c.Path, c.Before, t.files[c.Path].mode); err != nil {
			errs = append(errs, fmt.Errorf("rollback %s: %w", c.Rel, err))
		}
	}
	return errors.Join(errs...)
}

// LoadJournal reads the last journal under root. Missing journal returns
// (nil, nil).
func LoadJournal(root string) (*Journal, error) {
	b, err := os.ReadFile(filepath.Join(root, StateDirName, journalFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var j Journal
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, fmt.Errorf("parse journal: %w", err)
	}
	return &j, nil
}

// Undo reverts the last committed transaction under root. Every file must
// still hold the content the transaction wrote; otherwise nothing is touched
// and ErrConflict is returned.
func Undo(root string, log *zap.Logger) (*UndoReport, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	j, err := LoadJournal(abs)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, ErrNoJournal
	}
	stateDir := filepath.Join(abs, StateDirName)

	var conflicts []string
	for _, e := range j.Entries {
		b, err := os.ReadFile(filepath.Join(abs, filepath.FromSlash(e.Path)))
		if err != nil || hashOf(string(b)) != e.HashAfter {
			conflicts = append(conflicts, e.Path)
			continue
		}
		if !e.Created && !HasBlob(stateDir, e.HashBefore) {
			return nil, fmt.Errorf("backup of %s is missing", e.Path)
		}
	}
	if len(conflicts) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrConflict, strings.Join(conflicts, ", "))
	}

	rep := &UndoReport{ID: j.ID}
	for i := len(j.Entries) - 1; i >= 0; i-- {
		e := j.Entries[i]
		p := filepath.Join(abs, filepath.FromSlash(e.Path))
		if e.Created {
			if err := os.Remove(p); err != nil {
				return rep, fmt.Errorf("remove %s: %w", e.Path, err)
			}
			rep.Removed = append(rep.Removed, e.Path)
			continue
		}
		orig, err := ReadBlob(stateDir, e.HashBefore)
		if err != nil {
			return rep, fmt.Errorf("read backup of %s: %w", e.Path, err)
		}
		mode := fs.FileMode(0o644)
		if st, err := os.Stat(p); err == nil {
			mode = st.Mode().Perm()
		}
		if err := writeAtomic(p, string(orig), mode); err != nil {
			return rep, fmt.Errorf("restore %s: %w", e.Path, err)
		}
		rep.Restored = append(rep.Restored, e.Path)
	}
	if err := os.Remove(filepath.Join(stateDir, journalFileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return rep, err
	}
	log.Info("transaction undone", zap.String("tx", j.ID), zap.Int("restored", len(rep.Restored)), zap.Int("removed", len(rep.Removed)))
	return rep, nil
}

func saveJournal(dir string, j *Journal) error {
	b, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, journalFileName), string(b)+"\n", 0o644)
}

// ----- Blob helpers -----

// SaveBlob stores content under <dir>/blobs/aa/bb/<hash>.
// If the blob already exists, the call is a no-op.
func SaveBlob(dir, hash, content string) error {
	if !isHex(hash) || len(hash) < 6 {
		return errors.New("invalid hash for blob storage")
	}
	p := blobPath(dir, hash)
	if _, err := os.Stat(p); err == nil {
		return nil
	}
	return writeAtomic(p, content, 0o644)
}

// ReadBlob loads a blob by content hash.
func ReadBlob(dir, hash string) ([]byte, error) {
	if !isHex(hash) || len(hash) < 6 {
		return nil, errors.New("invalid hash for blob read")
	}
	return os.ReadFile(blobPath(dir, hash))
}

// HasBlob checks for the existence of a content-addressed blob.
func HasBlob(dir, hash string) bool {
	if !isHex(hash) || len(hash) < 6 {
		return false
	}
	_, err := os.Stat(blobPath(dir, hash))
	return err == nil
}

// blobPath returns the canonical path for a content-addressed blob.
// Layout: <dir>/blobs/aa/bb/<hash>
func blobPath(dir, hash string) string {
	h := strings.ToLower(hash)
	return filepath.Join(dir, blobsDirName, h[:2], h[2:4], h)
}

// writeAtomic writes content to a temp file next to path, syncs it and
// renames it over path, creating parent directories as needed.
func writeAtomic(path, content string, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, mode); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func hashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// isHex checks if s is a lowercase hex string.
func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
