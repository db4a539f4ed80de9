// Package hook implements the process-wide hook registry: a priority-sorted,
// (stage, trigger)-indexed set of build hooks the engine driver runs before
// and after each stage body.
package hook

import (
	"context"
	"sort"

	"github.com/hob-build/hob/internal/buildstate"
	"github.com/hob-build/hob/internal/recipe"
)

// Trigger selects whether a hook runs before or after its stage's body.
type Trigger int

const (
	Before Trigger = iota
	After
)

// RunFunc is a hook's body. It is handed exclusive access to state; hooks
// never run concurrently with each other or with the stage body.
type RunFunc func(ctx context.Context, state *buildstate.BuildState) error

// Hook is one registered piece of build-time work.
type Hook struct {
	Name     string
	Stage    recipe.Stage
	Trigger  Trigger
	Priority int
	Run      RunFunc
}

// Registry is the process-wide, materialize-once set of hooks. The sort
// order is ((stage, trigger), priority) ascending, ties broken by
// registration order (sort.SliceStable preserves that).
type Registry struct {
	hooks []Hook
}

// NewRegistry builds a Registry from hooks, sorting once at construction.
func NewRegistry(hooks ...Hook) *Registry {
	r := &Registry{hooks: append([]Hook(nil), hooks...)}
	sort.SliceStable(r.hooks, func(i, j int) bool {
		a, b := r.hooks[i], r.hooks[j]
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if a.Trigger != b.Trigger {
			return a.Trigger < b.Trigger
		}
		return a.Priority < b.Priority
	})
	return r
}

// RunAll runs every hook registered for (stage, trigger), in sort order,
// stopping at the first error.
func (r *Registry) RunAll(ctx context.Context, stage recipe.Stage, trigger Trigger, state *buildstate.BuildState) error {
	for _, h := range r.hooks {
		if h.Stage != stage || h.Trigger != trigger {
			continue
		}
		if err := h.Run(ctx, state); err != nil {
			return err
		}
	}
	return nil
}
