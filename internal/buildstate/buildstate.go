// Package buildstate holds BuildState: the single mutable value a recipe
// build threads through every stage body and hook. It is its own package,
// separate from internal/engine, so internal/hook (which both the engine
// driver and the install/package hooks depend on) does not need to import
// the engine package and create a cycle.
package buildstate

import (
	"time"

	"github.com/hob-build/hob/internal/elfhdr"
	"github.com/hob-build/hob/internal/fetch"
	"github.com/hob-build/hob/internal/recipe"
)

// BuildState is created fresh at the start of build_recipe, mutated only by
// the driver and the hooks it invokes one at a time, and dropped at the end
// of the build.
type BuildState struct {
	BuildTime time.Time
	Stage     recipe.Stage
	Recipe    *recipe.Recipe

	FetchedArtifacts []*fetch.FetchedArtifact
	ElfHeaders       map[string]*elfhdr.Header
	Archives         []string
}

// New creates a BuildState for r, capturing the current wall clock as
// BuildTime.
func New(r *recipe.Recipe, now time.Time) *BuildState {
	return &BuildState{
		BuildTime:  now,
		Stage:      recipe.StagePrepare,
		Recipe:     r,
		ElfHeaders: map[string]*elfhdr.Header{},
	}
}
