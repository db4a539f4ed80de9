// Package acceptance drives the engine's collaborators (recipe parsing,
// fetch, extract, player, install and package hooks) in-process against the
// documented seed scenarios, without going through internal/engine itself,
// using godog the way test/functional drives a
// compiled binary against shell scenarios.
package acceptance

import (
	"context"
	"testing"

	"github.com/cucumber/godog"
)

func TestSeedScenarios(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario(t),
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("acceptance scenarios failed")
	}
}

func initializeScenario(t *testing.T) func(*godog.ScenarioContext) {
	return func(ctx *godog.ScenarioContext) {
		registerSteps(t, ctx)
	}
}

func registerSteps(t *testing.T, ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		return setState(c, newScenarioState(t, sc)), nil
	})

	ctx.Step(`^the document:$`, theDocument)
	ctx.Step(`^I parse the document$`, iParseTheDocument)
	ctx.Step(`^recipe (\d+) depends on "([^"]*)"$`, recipeDependsOn)

	ctx.Step(`^a source server serving "([^"]*)" at "([^"]*)"$`, aSourceServer)
	ctx.Step(`^a recipe "([^"]*)" fetching that URL with a matching sha256$`, aRecipeFetchingThatURL)
	ctx.Step(`^I fetch the recipe's artifacts twice$`, iFetchTheRecipesArtifactsTwice)
	ctx.Step(`^the second fetch makes no additional request$`, theSecondFetchMakesNoAdditionalRequest)
	ctx.Step(`^the cached file is named with the artifact's hash and file name$`, theCachedFileIsNamedWithHashAndFileName)

	ctx.Step(`^a tar\.gz artifact containing "([^"]*)"$`, aTarGzArtifactContaining)
	ctx.Step(`^I extract the fetched artifact for recipe "([^"]*)"$`, iExtractTheFetchedArtifactForRecipe)
	ctx.Step(`^the file "([^"]*)" exists under the recipe's extracted source tree$`, theFileExistsUnderExtractedSourceTree)

	ctx.Step(`^a recipe "([^"]*)" with style "([^"]*)"$`, aRecipeWithStyle)
	ctx.Step(`^an install playbook of "([^"]*)" then "\.default"$`, anInstallPlaybookOfThenDefault)
	ctx.Step(`^I run the install stage$`, iRunTheInstallStage)
	ctx.Step(`^the action order was "([^"]*)" then "([^"]*)"$`, theActionOrderWas)

	ctx.Step(`^a recipe "([^"]*)" whose install produces one ELF executable and one archive$`, aRecipeWhoseInstallProducesElfAndArchive)
	ctx.Step(`^I run the install stage's After hooks$`, iRunTheInstallStagesAfterHooks)
	ctx.Step(`^strip was invoked on the binary and strip --strip-debug was invoked on the archive$`, stripWasInvokedOnBinaryAndArchive)

	ctx.Step(`^a recipe "([^"]*)" with sides "([^"]*)" and "([^"]*)"$`, aRecipeWithSides)
	ctx.Step(`^each of their dest trees has a file$`, eachOfTheirDestTreesHasAFile)
	ctx.Step(`^I run the package stage's Before hooks with a fixed build time$`, iRunThePackageStagesBeforeHooksWithFixedBuildTime)
	ctx.Step(`^every file's mtime equals the fixed build time$`, everyFilesMtimeEqualsFixedBuildTime)
}
