package player

import "github.com/hob-build/hob/internal/recipe"

// buildStyleTable is the static mapping from (style tag, stage) to the
// default action sequence a build stage's Default splice point expands to.
// Configure and GnuConfigure share a sequence, and ConfigureAction itself
// does not look at the style tag either, so the two styles behave the same.
var buildStyleTable = map[recipe.BuildStyleTag]map[recipe.Stage][]recipe.Action{
	recipe.StyleNoop: {},
	recipe.StyleConfigure: {
		recipe.StageConfigure: {recipe.ConfigureAction{}},
		recipe.StageBuild:     {recipe.MakeAction{}},
		recipe.StageInstall:   {recipe.MakeInstallAction{}},
	},
	recipe.StyleGnuConfigure: {
		recipe.StageConfigure: {recipe.ConfigureAction{}},
		recipe.StageBuild:     {recipe.MakeAction{}},
		recipe.StageInstall:   {recipe.MakeInstallAction{}},
	},
}

// DefaultActionsFor returns the build style's canonical action list for
// stage, or nil if the style defines none (Noop, or a build stage the style
// doesn't touch).
func DefaultActionsFor(style recipe.BuildStyle, stage recipe.Stage) []recipe.Action {
	byStage, ok := buildStyleTable[style.Tag]
	if !ok {
		return nil
	}
	return byStage[stage]
}
