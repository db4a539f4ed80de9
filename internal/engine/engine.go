// Package engine drives the staged build pipeline: for every stage in the
// canonical order it runs Before hooks, the stage body, then After hooks,
// aborting the remaining stages on any failure.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hob-build/hob/internal/buildenv"
	"github.com/hob-build/hob/internal/buildstate"
	"github.com/hob-build/hob/internal/extract"
	"github.com/hob-build/hob/internal/fetch"
	"github.com/hob-build/hob/internal/hobpath"
	"github.com/hob-build/hob/internal/hook"
	"github.com/hob-build/hob/internal/logx"
	"github.com/hob-build/hob/internal/packager"
	"github.com/hob-build/hob/internal/player"
	"github.com/hob-build/hob/internal/recipe"
)

// EngineError aggregates every per-artifact failure the Fetch stage's
// concurrent fetch produced. Unlike most errors in this pipeline it does
// not abort on the first failure: every artifact gets a chance to fetch
// before the stage reports what went wrong.
type EngineError struct {
	Failures []error
}

func (e *EngineError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, err := range e.Failures {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("engine: %d fetch failure(s): %s", len(e.Failures), strings.Join(parts, "; "))
}

// Engine owns the long-lived collaborators shared across every build: the
// path settings, the fetcher/extractor/player, the hook registry, and the
// packager the Package stage invokes.
type Engine struct {
	Settings  *hobpath.Settings
	Fetcher   *fetch.Fetcher
	Extractor *extract.Extractor
	Player    *player.Player
	Hooks     *hook.Registry
	Packager  packager.Packager
	Log       logx.Logger
}

// New builds an Engine. hooks is the process-wide set the driver runs
// before/after every stage; env carries the chroot method and bootstrap
// flag the Player's commands run through.
func New(settings *hobpath.Settings, env *buildenv.Environment, pkgr packager.Packager, log logx.Logger, hooks ...hook.Hook) *Engine {
	if log == nil {
		log = logx.NewNoop()
	}
	return &Engine{
		Settings:  settings,
		Fetcher:   fetch.New(settings, log),
		Extractor: extract.New(settings),
		Player:    player.New(env),
		Hooks:     hook.NewRegistry(hooks...),
		Packager:  pkgr,
		Log:       log,
	}
}

// PrepareEngine ensures the fetch cache directory exists. It is the Prepare
// stage's entire body.
func (e *Engine) PrepareEngine() error {
	return os.MkdirAll(e.Settings.CachePath, 0o755)
}

// BuildRecipe drives r through every canonical stage. Failure of any step
// aborts the remaining stages; there is no rollback.
func (e *Engine) BuildRecipe(ctx context.Context, r *recipe.Recipe) error {
	state := buildstate.New(r, time.Now())
	pc := &player.Context{Recipe: r, Settings: e.Settings}

	for _, stage := range recipe.CanonicalStages {
		state.Stage = stage

		if err := e.Hooks.RunAll(ctx, stage, hook.Before, state); err != nil {
			return fmt.Errorf("engine: before-%s hooks: %w", stage, err)
		}

		if err := e.runStage(ctx, state, pc, stage); err != nil {
			return fmt.Errorf("engine: stage %s: %w", stage, err)
		}

		if err := e.Hooks.RunAll(ctx, stage, hook.After, state); err != nil {
			return fmt.Errorf("engine: after-%s hooks: %w", stage, err)
		}
	}
	return nil
}

func (e *Engine) runStage(ctx context.Context, state *buildstate.BuildState, pc *player.Context, stage recipe.Stage) error {
	switch stage {
	case recipe.StagePrepare:
		return e.PrepareEngine()
	case recipe.StageFetch:
		return e.Player.Play(ctx, state, pc, func(ctx context.Context) error {
			return e.fetchAll(ctx, state)
		})
	case recipe.StageExtract:
		return e.Player.Play(ctx, state, pc, func(ctx context.Context) error {
			return e.extractAll(state)
		})
	case recipe.StageConfigure, recipe.StageBuild, recipe.StageInstall:
		return e.Player.PlayBuildStage(ctx, state, pc)
	case recipe.StageSplit:
		return e.split(state)
	case recipe.StagePackage:
		return e.packageAll(state)
	default:
		return fmt.Errorf("engine: unhandled stage %s", stage)
	}
}

// fetchAll fetches every artifact concurrently, accumulating every failure
// into one EngineError rather than stopping at the first.
func (e *Engine) fetchAll(ctx context.Context, state *buildstate.BuildState) error {
	var (
		mu       sync.Mutex
		fetched  = make([]*fetch.FetchedArtifact, len(state.Recipe.Artifacts))
		failures []error
		eg       errgroup.Group
	)

	for i, a := range state.Recipe.Artifacts {
		i, a := i, a
		eg.Go(func() error {
			fa, err := e.Fetcher.Fetch(ctx, a)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return nil
			}
			fetched[i] = fa
			return nil
		})
	}
	_ = eg.Wait()

	if len(failures) > 0 {
		return &EngineError{Failures: failures}
	}
	state.FetchedArtifacts = fetched
	return nil
}

// extractAll extracts every fetched artifact sequentially into
// {source_path}/{recipe.name}.
func (e *Engine) extractAll(state *buildstate.BuildState) error {
	for _, fa := range state.FetchedArtifacts {
		if err := e.Extractor.Extract(fa, state.Recipe.Name); err != nil {
			return err
		}
	}
	return nil
}

// split moves files matching each side's claim globs from the recipe's
// dest directory into the side's dest directory, creating parent
// directories as needed.
func (e *Engine) split(state *buildstate.BuildState) error {
	recipeDest := e.Settings.DestPath(state.Recipe.Name)
	if _, err := os.Lstat(recipeDest); os.IsNotExist(err) {
		return nil
	}

	for _, side := range state.Recipe.Sides {
		sideDest := e.Settings.DestPath(side.Name)

		var matches []string
		err := filepath.WalkDir(recipeDest, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(recipeDest, path)
			if err != nil {
				return err
			}
			for _, claim := range side.Claims {
				if ok, _ := filepath.Match(claim, rel); ok {
					matches = append(matches, rel)
					break
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("engine: split %s: %w", side.Name, err)
		}

		for _, rel := range matches {
			src := filepath.Join(recipeDest, rel)
			dst := filepath.Join(sideDest, rel)
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return fmt.Errorf("engine: split %s: %w", side.Name, err)
			}
			if err := os.Rename(src, dst); err != nil {
				return fmt.Errorf("engine: split %s: %w", side.Name, err)
			}
		}
	}
	return nil
}

func (e *Engine) packageAll(state *buildstate.BuildState) error {
	targets := []packager.Target{{Name: state.Recipe.Name, DestDir: e.Settings.DestPath(state.Recipe.Name)}}
	for _, s := range state.Recipe.Sides {
		targets = append(targets, packager.Target{Name: s.Name, DestDir: e.Settings.DestPath(s.Name)})
	}
	for _, t := range targets {
		if err := e.Packager.BuildPackage(e.Settings, t); err != nil {
			return fmt.Errorf("engine: package %s: %w", t.Name, err)
		}
	}
	return nil
}
