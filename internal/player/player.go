// Package player executes a stage's ActionPlaybook: the Default action is a
// splice point where the stage's built-in behavior runs, interleaved with
// whatever explicit actions the recipe document named.
package player

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hob-build/hob/internal/buildenv"
	"github.com/hob-build/hob/internal/buildstate"
	"github.com/hob-build/hob/internal/hobpath"
	"github.com/hob-build/hob/internal/recipe"
)

// Context is the recipe-or-side context an action executes against: it
// determines which dest directory {dest} resolves to. Side is nil for the
// recipe's own context.
type Context struct {
	Recipe   *recipe.Recipe
	Side     *recipe.Side
	Settings *hobpath.Settings
}

// DestPath is {dest}: the recipe's or side's install destination.
func (c *Context) DestPath() string {
	if c.Side != nil {
		return c.Settings.DestPath(c.Side.Name)
	}
	return c.Settings.DestPath(c.Recipe.Name)
}

// SourcePath is {src}: the recipe's extracted source tree. Sides build
// nothing of their own; they claim files the recipe's own actions produced.
func (c *Context) SourcePath() string {
	return c.Settings.ExtractedSourcePath(c.Recipe)
}

// Player executes playbooks against a shared Environment.
type Player struct {
	Env *buildenv.Environment
}

// New builds a Player running commands through env.
func New(env *buildenv.Environment) *Player {
	return &Player{Env: env}
}

// DefaultBody is the stage-specific built-in behavior spliced in wherever a
// playbook names a Default action.
type DefaultBody func(ctx context.Context) error

// Play runs state.Stage's playbook (or the implicit one-element [Default]
// playbook if the recipe named none), executing each action in order and
// calling body exactly once, at the first Default it encounters. A second
// Default in the same playbook is a fatal error.
func (p *Player) Play(ctx context.Context, state *buildstate.BuildState, pc *Context, body DefaultBody) error {
	pb := state.Recipe.Playbook(state.Stage)
	actions := []recipe.Action{recipe.DefaultAction{}}
	if pb != nil {
		actions = pb.Actions
	}

	seenDefault := false
	for _, a := range actions {
		if _, ok := a.(recipe.DefaultAction); ok {
			if seenDefault {
				return fmt.Errorf("player: stage %s playbook names .default more than once", state.Stage)
			}
			seenDefault = true
			if body != nil {
				if err := body(ctx); err != nil {
					return err
				}
			}
			continue
		}
		if err := p.executeAction(ctx, state, pc, a); err != nil {
			return err
		}
	}
	return nil
}

// PlayBuildStage wraps Play with a default body that pulls the action list
// for state.Stage out of the build-style table and runs it in order.
func (p *Player) PlayBuildStage(ctx context.Context, state *buildstate.BuildState, pc *Context) error {
	return p.Play(ctx, state, pc, func(ctx context.Context) error {
		for _, a := range DefaultActionsFor(state.Recipe.Style, state.Stage) {
			if err := p.executeAction(ctx, state, pc, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Player) executeAction(ctx context.Context, state *buildstate.BuildState, pc *Context, a recipe.Action) error {
	switch act := a.(type) {
	case recipe.CcAction:
		return p.runCc(ctx, state, act)
	case recipe.ConfigureAction:
		return p.runConfigure(ctx, state)
	case recipe.MakeAction:
		return p.runMake(ctx, state)
	case recipe.MakeInstallAction:
		return p.runMakeInstall(ctx, state, pc)
	case recipe.BinAction:
		return p.runBin(pc, act)
	case recipe.ManAction:
		return p.runMan(pc, act)
	case recipe.LinkAction:
		return p.runLink(pc, act)
	case recipe.RmAction:
		return p.runRm(pc, act)
	case recipe.DirAction:
		return p.runDir(pc, act)
	default:
		return fmt.Errorf("player: unhandled action type %T", a)
	}
}

func (p *Player) run(ctx context.Context, state *buildstate.BuildState, program string, args []string) error {
	cmd := p.Env.Command(ctx, state.Recipe, program, args)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("player: %s %s: %w", program, strings.Join(args, " "), err)
	}
	return nil
}

func (p *Player) runCc(ctx context.Context, state *buildstate.BuildState, act recipe.CcAction) error {
	args := append([]string{"-o", act.Output}, state.Recipe.Style.Vars.CCFlags...)
	args = append(args, act.Input...)
	return p.run(ctx, state, "gcc", args)
}

func (p *Player) runConfigure(ctx context.Context, state *buildstate.BuildState) error {
	script := state.Recipe.Style.Vars.ConfigureScript
	if script == "" {
		script = "./configure"
	}
	args := append([]string{"--prefix=/usr"}, state.Recipe.Style.Vars.ConfigureArgs...)
	return p.run(ctx, state, script, args)
}

func (p *Player) runMake(ctx context.Context, state *buildstate.BuildState) error {
	vars := state.Recipe.Style.Vars
	command := vars.MakeCommand
	if command == "" {
		command = "make"
	}
	args := append([]string{fmt.Sprintf("-j%d", p.Env.CPUCount+1)}, vars.MakeArgs...)
	return p.run(ctx, state, command, args)
}

func (p *Player) runMakeInstall(ctx context.Context, state *buildstate.BuildState, pc *Context) error {
	vars := state.Recipe.Style.Vars
	command := vars.MakeCommand
	if command == "" {
		command = "make"
	}
	args := append(append([]string{}, vars.MakeArgs...), "DESTDIR="+pc.DestPath(), "install")
	return p.run(ctx, state, command, args)
}

// runBin reproduces the document's literal (and, per design notes, almost
// certainly unintended) behavior: the directory it ensures exists is
// {dest}/path, not {dest}/bin, even though binaries are copied into
// {dest}/bin.
func (p *Player) runBin(pc *Context, act recipe.BinAction) error {
	if pc.Side != nil {
		return fmt.Errorf("player: bin action is not implemented in side context")
	}
	if err := os.MkdirAll(filepath.Join(pc.DestPath(), "path"), 0o755); err != nil {
		return fmt.Errorf("player: bin: %w", err)
	}
	binDir := filepath.Join(pc.DestPath(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("player: bin: %w", err)
	}
	for _, b := range act.Binaries {
		if err := copyFile(filepath.Join(pc.SourcePath(), b), filepath.Join(binDir, b)); err != nil {
			return fmt.Errorf("player: bin %s: %w", b, err)
		}
	}
	return nil
}

func (p *Player) runMan(pc *Context, act recipe.ManAction) error {
	if pc.Side != nil {
		return fmt.Errorf("player: man action is not implemented in side context")
	}
	for _, entry := range act.ManFiles {
		ext := entry[strings.LastIndex(entry, ".")+1:]
		if ext == entry || !isAllDigits(ext) {
			return fmt.Errorf("player: man %s: last dotted suffix must be all decimal digits", entry)
		}
		dir := filepath.Join(pc.DestPath(), "usr", "share", "man", "man"+ext)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("player: man: %w", err)
		}
		if err := copyFile(filepath.Join(pc.SourcePath(), entry), filepath.Join(dir, filepath.Base(entry))); err != nil {
			return fmt.Errorf("player: man %s: %w", entry, err)
		}
	}
	return nil
}

// runLink preserves a known oddity: every source in act.Source symlinks to
// the same {dest}/{target}, so only the first succeeds and the rest fail
// with "file exists". This is the document's literal contract, not a bug in
// this implementation.
func (p *Player) runLink(pc *Context, act recipe.LinkAction) error {
	target := filepath.Join(pc.DestPath(), act.Target)
	for _, src := range act.Source {
		if err := os.Symlink(src, target); err != nil {
			return fmt.Errorf("player: link %s -> %s: %w", src, target, err)
		}
	}
	return nil
}

func (p *Player) runRm(pc *Context, act recipe.RmAction) error {
	for _, t := range act.Targets {
		path := filepath.Join(pc.DestPath(), t)
		info, err := os.Lstat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("player: rm %s: %w", t, err)
		}
		if info.IsDir() {
			err = os.RemoveAll(path)
		} else {
			err = os.Remove(path)
		}
		if err != nil {
			return fmt.Errorf("player: rm %s: %w", t, err)
		}
	}
	return nil
}

func (p *Player) runDir(pc *Context, act recipe.DirAction) error {
	for _, t := range act.Targets {
		if err := os.MkdirAll(filepath.Join(pc.DestPath(), t), 0o755); err != nil {
			return fmt.Errorf("player: dir %s: %w", t, err)
		}
	}
	return nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
