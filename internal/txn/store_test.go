package txn

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestCommitWritesAndJournals(t *testing.T) {
	root := t.TempDir()
	desc := filepath.Join(root, "src/main/java/module-info.java")
	writeFile(t, desc, "module m {\n}\n")

	tx, err := Begin(root, zap.NewNop())
	require.NoError(t, err)
	text, exists, err := tx.Read(desc)
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, tx.Stage(desc, text+"// x\n"))
	require.NoError(t, tx.Stage("src/main/resources/META-INF/services/a.IFoo", "a.Foo"))

	changes := tx.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, "src/main/java/module-info.java", changes[0].Rel)
	assert.True(t, changes[1].Created)

	j, err := tx.Commit()
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(t, tx.ID(), j.ID)
	require.Len(t, j.Entries, 2)
	assert.NotEmpty(t, j.Entries[0].HashBefore)
	assert.Empty(t, j.Entries[1].HashBefore)

	assert.Equal(t, "module m {\n}\n// x\n", readFile(t, desc))
	assert.Equal(t, "a.Foo", readFile(t, filepath.Join(root, "src/main/resources/META-INF/services/a.IFoo")))
	assert.True(t, HasBlob(filepath.Join(root, StateDirName), j.Entries[0].HashBefore))

	loaded, err := LoadJournal(root)
	require.NoError(t, err)
	assert.Equal(t, j.ID, loaded.ID)

	_, err = tx.Commit()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCommitNothingChanged(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "a.txt")
	writeFile(t, p, "same")

	tx, err := Begin(root, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Stage(p, "same"))
	j, err := tx.Commit()
	require.NoError(t, err)
	assert.Nil(t, j)

	_, err = os.Stat(filepath.Join(root, StateDirName))
	assert.True(t, errors.Is(err, os.ErrNotExist), "state dir must not be created")
}

func TestCommitDetectsConcurrentEdit(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "a.txt")
	writeFile(t, p, "v1")

	tx, err := Begin(root, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Stage(p, "v2"))
	writeFile(t, p, "someone else")

	_, err = tx.Commit()
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "someone else", readFile(t, p))
}

func stageTwo(t *testing.T, root string) (*Tx, string, string) {
	t.Helper()
	p := filepath.Join(root, "a.txt")
	writeFile(t, p, "one\r\n")
	require.NoError(t, os.Chmod(p, 0o600))
	created := filepath.Join(root, "new/b.txt")

	tx, err := Begin(root, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Stage(p, "two\n"))
	require.NoError(t, tx.Stage(created, "fresh"))
	return tx, p, created
}

func assertRolledBack(t *testing.T, p, created string) {
	t.Helper()
	assert.Equal(t, "one\r\n", readFile(t, p))
	st, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())
	_, err = os.Stat(created)
	assert.True(t, errors.Is(err, os.ErrNotExist), "created file must be removed")
}

func TestCommitRollsBackOnWriteFailure(t *testing.T) {
	root := t.TempDir()
	tx, p, created := stageTwo(t, root)

	calls := 0
	commitWrite = func(path, content string, mode os.FileMode) error {
		calls++
		if calls == 2 {
			return errors.New("disk full")
		}
		return writeAtomic(path, content, mode)
	}
	t.Cleanup(func() { commitWrite = writeAtomic })

	_, err := tx.Commit()
	require.ErrorContains(t, err, "disk full")
	assertRolledBack(t, p, created)

	j, err := LoadJournal(root)
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestCommitRollsBackWhenJournalFails(t *testing.T) {
	root := t.TempDir()
	tx, p, created := stageTwo(t, root)
	// A non-empty directory where the journal goes makes the final rename fail.
	writeFile(t, filepath.Join(root, StateDirName, journalFileName, "x"), "")

	_, err := tx.Commit()
	require.ErrorContains(t, err, "save journal")
	assertRolledBack(t, p, created)
}

func TestStageOutsideRoot(t *testing.T) {
	tx, err := Begin(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Error(t, tx.Stage("../escape.txt", "x"))
}

func TestUndoRestoresAndRemoves(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "a.txt")
	created := filepath.Join(root, "new/b.txt")
	writeFile(t, p, "before")

	tx, err := Begin(root, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Stage(p, "after"))
	require.NoError(t, tx.Stage(created, "fresh"))
	_, err = tx.Commit()
	require.NoError(t, err)

	rep, err := Undo(root, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, rep.Restored)
	assert.Equal(t, []string{"new/b.txt"}, rep.Removed)
	assert.Equal(t, "before", readFile(t, p))
	_, err = os.Stat(created)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = Undo(root, nil)
	assert.ErrorIs(t, err, ErrNoJournal)
}

func TestUndoRefusesWhenFileEdited(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "a.txt")
	writeFile(t, p, "before")

	tx, err := Begin(root, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Stage(p, "after"))
	_, err = tx.Commit()
	require.NoError(t, err)

	writeFile(t, p, "hand edit")
	_, err = Undo(root, nil)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "hand edit", readFile(t, p))

	j, err := LoadJournal(root)
	require.NoError(t, err)
	assert.NotNil(t, j, "journal must survive a refused undo")
}

func TestBlobHelpers(t *testing.T) {
	dir := t.TempDir()
	h := hashOf("hello")
	require.NoError(t, SaveBlob(dir, h, "hello"))
	require.NoError(t, SaveBlob(dir, h, "hello"))
	b, err := ReadBlob(dir, h)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	assert.Equal(t, filepath.Join(dir, "blobs", h[:2], h[2:4], h), blobPath(dir, h))

	assert.Error(t, SaveBlob(dir, "XYZ", "x"))
	assert.False(t, HasBlob(dir, "nothex"))
}
