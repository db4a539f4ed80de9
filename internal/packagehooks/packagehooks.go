// Package packagehooks implements the two hooks registered Before the
// Package stage: PinTimestamps, which gives every built tree reproducible
// mtimes, and FixPermissions, a placeholder for a concern the document
// names but never specifies.
package packagehooks

import (
	"context"
	"os"
	"time"

	"github.com/hob-build/hob/internal/buildstate"
	"github.com/hob-build/hob/internal/fswalk"
	"github.com/hob-build/hob/internal/hobpath"
	"github.com/hob-build/hob/internal/hook"
	"github.com/hob-build/hob/internal/recipe"
)

// PinTimestamps walks the recipe's dest tree and every side's dest tree,
// setting atime and mtime on every entry to state.BuildTime. It calls
// lutimes (platform-specific, see lutimes_linux.go) rather than
// os.Chtimes because os.Chtimes follows symlinks, and a symlink left with
// its creation-time mtime would make two otherwise identical builds produce
// different archives.
func PinTimestamps(settings *hobpath.Settings) hook.Hook {
	return hook.Hook{
		Name:     "pin_timestamps",
		Stage:    recipe.StagePackage,
		Trigger:  hook.Before,
		Priority: 100,
		Run: func(ctx context.Context, state *buildstate.BuildState) error {
			trees := []string{settings.DestPath(state.Recipe.Name)}
			for _, s := range state.Recipe.Sides {
				trees = append(trees, settings.DestPath(s.Name))
			}

			for _, root := range trees {
				if _, err := os.Lstat(root); os.IsNotExist(err) {
					continue
				}
				if err := pinTree(root, state.BuildTime); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func pinTree(root string, when time.Time) error {
	var firstErr error
	_ = fswalk.Walk(root, func(e fswalk.Entry) bool {
		if err := lutimes(e.Path, when); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// FixPermissions is a placeholder: the document names a permissions-fixing
// concern in the Package stage without specifying what it normalizes, so
// this hook intentionally does nothing until that's decided.
func FixPermissions() hook.Hook {
	return hook.Hook{
		Name:     "fix_permissions",
		Stage:    recipe.StagePackage,
		Trigger:  hook.Before,
		Priority: 0,
		Run: func(ctx context.Context, state *buildstate.BuildState) error {
			return nil
		},
	}
}
