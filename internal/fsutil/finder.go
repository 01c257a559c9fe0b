// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"path/filepath"
)

// FindMatching recursively searches the given root path for all files whose
// base name satisfies the match function. It returns their full paths in
// walk order. Unreadable subtrees are skipped rather than aborting the walk,
// since a search path may legitimately contain directories we cannot enter.
func FindMatching(rootPath string, match func(name string) bool) []string {
	if match == nil {
		panic("match function must not be nil")
	}

	var files []string
	_ = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && match(d.Name()) {
			files = append(files, path)
		}
		return nil
	})

	return files
}

// Normalize expands a path to its canonical absolute form, resolving
// symlinks when possible. It is used wherever two paths must be compared
// for identity.
func Normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return filepath.Clean(abs)
}

// SamePath reports whether two paths refer to the same file once expanded
// and normalized.
func SamePath(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
