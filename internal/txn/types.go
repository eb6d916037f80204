// Package txn defines the data types used by the edit transaction journal.
package txn

// Entry records one file touched by a committed transaction.
// Path is root-relative with forward slashes; hashes are lowercase sha256 hex.
// HashBefore is empty when the transaction created the file.
type Entry struct {
	Path       string `json:"path"`
	HashBefore string `json:"hashBefore,omitempty"`
	HashAfter  string `json:"hashAfter"`
	Created    bool   `json:"created,omitempty"`
}

// Journal is the record of the last committed transaction, used by Undo.
// Created is an RFC 3339 timestamp (UTC). FormatVersion versions the schema.
type Journal struct {
	ID            string  `json:"id"`
	Created       string  `json:"created"`
	FormatVersion string  `json:"formatVersion"`
	Entries       []Entry `json:"entries"`
}

// Change is a pending edit as seen before commit.
type Change struct {
	Path    string // absolute
	Rel     string // root-relative, forward slashes
	Before  string
	After   string
	Created bool
}

// UndoReport lists what Undo did.
type UndoReport struct {
	ID       string
	Restored []string
	Removed  []string
}
