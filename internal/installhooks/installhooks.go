// Package installhooks implements the two hooks registered After the
// Install stage: CollectElf, which classifies every regular file under a
// recipe's dest tree, and StripBinaries, which strips what CollectElf found.
package installhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"

	"github.com/hob-build/hob/internal/buildstate"
	"github.com/hob-build/hob/internal/elfhdr"
	"github.com/hob-build/hob/internal/fswalk"
	"github.com/hob-build/hob/internal/hobpath"
	"github.com/hob-build/hob/internal/hook"
	"github.com/hob-build/hob/internal/recipe"
)

var arMagic = []byte("!<arch>\n")

// CollectElf walks dest, testing each non-symlink regular file for the ar
// archive magic before attempting to parse it as an ELF header. Both reads
// happen on the same file handle; the archive test seeks back to offset 0
// before handing the reader to the ELF parser so no bytes are lost between
// the two.
func CollectElf(settings *hobpath.Settings) hook.Hook {
	return hook.Hook{
		Name:     "collect_elf",
		Stage:    recipe.StageInstall,
		Trigger:  hook.After,
		Priority: 0,
		Run: func(ctx context.Context, state *buildstate.BuildState) error {
			dest := settings.DestPath(state.Recipe.Name)
			return fswalk.Walk(dest, func(e fswalk.Entry) bool {
				if e.Info.IsDir() || e.Info.Type()&fs.ModeSymlink != 0 {
					return true
				}
				info, err := e.Info.Info()
				if err != nil || !info.Mode().IsRegular() {
					return true
				}

				f, err := os.Open(e.Path)
				if err != nil {
					return true
				}
				defer f.Close()

				magic := make([]byte, len(arMagic))
				n, _ := io.ReadFull(f, magic)
				if n == len(arMagic) && bytes.Equal(magic, arMagic) {
					state.Archives = append(state.Archives, e.Path)
					return true
				}

				if _, err := f.Seek(0, io.SeekStart); err != nil {
					return true
				}
				if h, ok := elfhdr.Parse(f); ok {
					state.ElfHeaders[e.Path] = h
				}
				return true
			})
		},
	}
}

// StripBinaries invokes strip on whatever CollectElf found, unless
// options.strip is explicitly false. ELF headers with a zero Machine field
// are ignored: a zeroed machine is not a real object the linker produced.
func StripBinaries() hook.Hook {
	return hook.Hook{
		Name:     "strip_binaries",
		Stage:    recipe.StageInstall,
		Trigger:  hook.After,
		Priority: 100,
		Run: func(ctx context.Context, state *buildstate.BuildState) error {
			if state.Recipe.Options.Strip != nil && !*state.Recipe.Options.Strip {
				return nil
			}

			var binaries, libraries []string
			for path, h := range state.ElfHeaders {
				if h.Machine == 0 {
					continue
				}
				switch {
				case h.IsSharedObject():
					libraries = append(libraries, path)
				case h.IsExecutable():
					binaries = append(binaries, path)
				}
			}

			if len(binaries) > 0 {
				if err := runStrip(ctx, append([]string{}, binaries...)); err != nil {
					return err
				}
			}
			if len(libraries) > 0 {
				if err := runStrip(ctx, append([]string{"--strip-unneeded"}, libraries...)); err != nil {
					return err
				}
			}
			if len(state.Archives) > 0 {
				if err := runStrip(ctx, append([]string{"--strip-debug"}, state.Archives...)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func runStrip(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "strip", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("installhooks: strip %v: %w", args, err)
	}
	return nil
}
