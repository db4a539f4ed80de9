// Package fswalk is a lazy recursive directory enumerator: CollectElf and
// PinTimestamps both need to visit every entry under a dest tree without
// loading the whole tree into memory first.
package fswalk

import (
	"io/fs"
	"path/filepath"
)

// Entry is one filesystem entry observed during a walk.
type Entry struct {
	Path string
	Info fs.DirEntry
}

// Walk lazily enumerates every file and directory under root, calling yield
// for each. Returning false from yield stops the walk early, mirroring
// range-over-func iterator semantics without requiring the caller to build a
// slice first.
func Walk(root string, yield func(Entry) bool) error {
	stop := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if !yield(Entry{Path: path, Info: d}) {
			stop = true
			return filepath.SkipAll
		}
		return nil
	})
	if stop {
		return nil
	}
	return err
}
