// Package hobpath is a pure function from a root directory to the derived
// paths every other component reads and writes: cache, source, dest,
// package, per-recipe and per-side paths.
package hobpath

import (
	"encoding/hex"
	"path/filepath"

	"github.com/hob-build/hob/internal/recipe"
)

// Settings is shared immutably across the Fetcher, Extractor, Player,
// Environment and Packager for the duration of a build.
type Settings struct {
	// RootPath is the build root: .hob/{src,dest,pkg} live under it.
	RootPath string
	// CachePath is the fetch cache root. New sets it to {root}/.hob/cache;
	// it may be pointed at a tree outside RootPath.
	CachePath string
}

// New builds Settings rooted at root, with the cache alongside it at
// {root}/.hob/cache unless overridden.
func New(root string) *Settings {
	return &Settings{
		RootPath:  root,
		CachePath: filepath.Join(root, ".hob", "cache"),
	}
}

func (s *Settings) hobRoot() string { return filepath.Join(s.RootPath, ".hob") }

// SourcePath is the bare source root, .hob/src, that the Extract stage joins
// a recipe's name onto (spec.md §4.1: "extracts into
// {source_path}/{recipe.name}").
func (s *Settings) SourcePath() string {
	return filepath.Join(s.hobRoot(), "src")
}

// RecipeSourcePath is where a recipe's artifacts are extracted:
// .hob/src/{recipe}/.
func (s *Settings) RecipeSourcePath(recipeName string) string {
	return filepath.Join(s.SourcePath(), recipeName)
}

// ExtractedSourcePath is where build actions actually run: the recipe's
// source root, descended into its source_dir (the subdirectory most
// upstream archives unpack a single top-level directory into).
func (s *Settings) ExtractedSourcePath(r *recipe.Recipe) string {
	return filepath.Join(s.RecipeSourcePath(r.Name), r.SourceDir)
}

// DestPath is a recipe's (or side's) install destination:
// .hob/dest/{name}/.
func (s *Settings) DestPath(name string) string {
	return filepath.Join(s.hobRoot(), "dest", name)
}

// PackagePath is where a named packager emits its output:
// .hob/pkg/{packager}/.
func (s *Settings) PackagePath(packagerName string) string {
	return filepath.Join(s.hobRoot(), "pkg", packagerName)
}

// CacheFilePath is the fetch cache slot for an artifact:
// {cache_path}/{hex(hash_id)}-{file_name}.
func (s *Settings) CacheFilePath(a recipe.Artifact) string {
	id := a.HashID()
	return filepath.Join(s.CachePath, hex.EncodeToString(id[:])+"-"+a.FileName())
}
