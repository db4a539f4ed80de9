package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hob-build/hob/internal/buildenv"
	"github.com/hob-build/hob/internal/engine"
	"github.com/hob-build/hob/internal/fetch"
	"github.com/hob-build/hob/internal/hobconfig"
	"github.com/hob-build/hob/internal/hoberr"
	"github.com/hob-build/hob/internal/hobpath"
	"github.com/hob-build/hob/internal/installhooks"
	"github.com/hob-build/hob/internal/logx"
	"github.com/hob-build/hob/internal/packagehooks"
	"github.com/hob-build/hob/internal/packager"
	"github.com/hob-build/hob/internal/recipe"
	"github.com/hob-build/hob/internal/recipe/walk"
)

var strictFlag bool

var buildCmd = &cobra.Command{
	Use:   "build <recipe-file>",
	Short: "Build every recipe named in a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&strictFlag, "strict", false, "Abort on any parse error instead of building the partial document")
}

func runBuild(cmd *cobra.Command, args []string) error {
	log := newLogger()

	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	recipes, parseErrs := recipe.ParseDocument(string(src))
	if len(parseErrs) > 0 {
		fmt.Fprintln(os.Stderr, hoberr.Format(parseErrs))
		if strictFlag {
			return fmt.Errorf("aborting on parse errors (--strict)")
		}
	}

	cfg, err := hobconfig.DefaultConfig()
	if err != nil {
		return err
	}
	settings := hobpath.New(cfg.RootPath)

	method := buildenv.ChrootMethod(buildenv.NoneMethod{})
	if cfg.Chroot == "system" {
		method = buildenv.SystemChrootMethod{}
	}
	env := buildenv.New(settings, method, false)

	eng := engine.New(settings, env, packager.Passthrough{}, log,
		installhooks.CollectElf(settings),
		installhooks.StripBinaries(),
		packagehooks.PinTimestamps(settings),
		packagehooks.FixPermissions(),
	)
	if cfg.FetchTimeout != 0 {
		eng.Fetcher = fetch.NewWithTimeout(settings, log, cfg.FetchTimeout)
	}

	for _, r := range recipes {
		walk.Apply(r)
		log.Info("building recipe", "name", r.Name, "version", r.Version)

		sp := newBuildSpinner()
		sp.start(fmt.Sprintf("building %s %s", r.Name, r.Version))
		err := eng.BuildRecipe(cmd.Context(), r)
		if err != nil {
			sp.stop()
			return fmt.Errorf("building %s: %s", r.Name, hoberr.Format(err))
		}
		sp.stopWithMessage(fmt.Sprintf("built %s %s", r.Name, r.Version))
	}
	return nil
}

func newLogger() logx.Logger {
	level := slog.LevelWarn
	switch {
	case debugFlag:
		level = slog.LevelDebug
	case verboseFlag:
		level = slog.LevelInfo
	case quietFlag:
		level = slog.LevelError
	}
	return logx.NewText(level)
}
