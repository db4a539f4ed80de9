// Package buildenv builds the child-process invocation every action runs
// through, optionally rewriting it to run inside a chroot.
package buildenv

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/hob-build/hob/internal/hobpath"
	"github.com/hob-build/hob/internal/recipe"
)

// ChrootMethod is a pure function from (program, args) to the (possibly
// rewritten) program and args that actually get executed.
type ChrootMethod interface {
	Rewrite(rootPath, program string, args []string) (string, []string)
}

// NoneMethod runs the command unchanged.
type NoneMethod struct{}

func (NoneMethod) Rewrite(_ string, program string, args []string) (string, []string) {
	return program, args
}

// SystemChrootMethod rewrites to `chroot {root_path} -- {program} {args...}`.
type SystemChrootMethod struct{}

func (SystemChrootMethod) Rewrite(rootPath, program string, args []string) (string, []string) {
	rewritten := append([]string{rootPath, "--", program}, args...)
	return "chroot", rewritten
}

// Environment builds process invocations for one build. CPUCount is read
// from the host once, at construction.
type Environment struct {
	Settings  *hobpath.Settings
	Method    ChrootMethod
	Bootstrap bool // during bootstrap, treat as None regardless of Method
	CPUCount  int
}

// New builds an Environment. method is ignored entirely while bootstrap is
// true.
func New(settings *hobpath.Settings, method ChrootMethod, bootstrap bool) *Environment {
	if method == nil {
		method = NoneMethod{}
	}
	return &Environment{
		Settings:  settings,
		Method:    method,
		Bootstrap: bootstrap,
		CPUCount:  runtime.NumCPU(),
	}
}

// Command builds an *exec.Cmd for running program+args against r, with
// working directory set to r's extracted source path and the chroot
// rewrite applied unless Bootstrap is set.
func (e *Environment) Command(ctx context.Context, r *recipe.Recipe, program string, args []string) *exec.Cmd {
	method := e.Method
	if e.Bootstrap {
		method = NoneMethod{}
	}
	rewrittenProgram, rewrittenArgs := method.Rewrite(e.Settings.RootPath, program, args)

	cmd := exec.CommandContext(ctx, rewrittenProgram, rewrittenArgs...)
	cmd.Dir = e.Settings.ExtractedSourcePath(r)
	return cmd
}
