// Package workspace keeps the working tree in step with ledger commits.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"ledgervcs/internal/ledger"
	"ledgervcs/internal/validation"
	"ledgervcs/shared/utils"
)

// Entry is one regular file of the working tree.
type Entry struct {
	// Path is slash-separated and relative to the root.
	Path string
	Abs  string
	Size int64
}

// Scan lists the regular files under root, sorted by path. The descriptor
// file is never listed. Symlinks and other special files are skipped.
func Scan(root string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(abs string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == validation.ReservedPath {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: rel, Abs: abs, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// HashTree returns the working tree as a path to content hash map, hashed
// the way every blob store hashes content.
func HashTree(root string) (ledger.FileMap, error) {
	entries, err := Scan(root)
	if err != nil {
		return nil, err
	}

	m := make(ledger.FileMap, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(e.Abs)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Path, err)
		}
		m[e.Path] = utils.HashContent(data)
	}
	return m, nil
}
