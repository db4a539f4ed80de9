package acceptance

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/require"

	"github.com/hob-build/hob/internal/buildenv"
	"github.com/hob-build/hob/internal/buildstate"
	"github.com/hob-build/hob/internal/extract"
	"github.com/hob-build/hob/internal/fetch"
	"github.com/hob-build/hob/internal/hobpath"
	"github.com/hob-build/hob/internal/installhooks"
	"github.com/hob-build/hob/internal/logx"
	"github.com/hob-build/hob/internal/packagehooks"
	"github.com/hob-build/hob/internal/player"
	"github.com/hob-build/hob/internal/recipe"
)

// scenarioState carries everything one scenario's steps thread through, the
// in-process analogue of the functional suite's captured stdout/stderr/exit
// code: parsed recipes, an httptest server, a temp-rooted Settings, and
// whatever artifacts each step built for the next one to consume.
type scenarioState struct {
	t *testing.T

	docText    string
	recipes    []*recipe.Recipe
	parseErrs  recipe.ParseErrors

	settings *hobpath.Settings

	server       *httptest.Server
	serverHits   int32
	artifactBody []byte
	fetchRecipe  *recipe.Recipe
	firstFetch   *fetch.FetchedArtifact
	secondFetch  *fetch.FetchedArtifact

	extractArtifact *fetch.FetchedArtifact

	playbookRecipe *recipe.Recipe
	commandLog     string
	oldPath        string

	stripRecipe *recipe.Recipe
	stripState  *buildstate.BuildState
	stripLog    string

	pinRecipe    *recipe.Recipe
	pinBuildTime time.Time
}

type stateKeyType struct{}

var stateKey = stateKeyType{}

func newScenarioState(t *testing.T, sc *godog.Scenario) *scenarioState {
	return &scenarioState{t: t}
}

func setState(ctx context.Context, s *scenarioState) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

func getState(ctx context.Context) *scenarioState {
	return ctx.Value(stateKey).(*scenarioState)
}

func newTestSettings(t *testing.T) *hobpath.Settings {
	return hobpath.New(t.TempDir())
}

// --- S1: depends extends=false ---

func theDocument(ctx context.Context, doc *godog.DocString) error {
	getState(ctx).docText = doc.Content
	return nil
}

func iParseTheDocument(ctx context.Context) error {
	s := getState(ctx)
	s.recipes, s.parseErrs = recipe.ParseDocument(s.docText)
	return nil
}

func recipeDependsOn(ctx context.Context, index int, dep string) error {
	s := getState(ctx)
	if index < 1 || index > len(s.recipes) {
		return fmt.Errorf("recipe %d: only %d recipe(s) parsed", index, len(s.recipes))
	}
	r := s.recipes[index-1]
	for _, d := range r.Depends {
		if d == dep {
			return nil
		}
	}
	return fmt.Errorf("recipe %d depends %v, want %q among them", index, r.Depends, dep)
}

// --- S2: fetch caching ---

func aSourceServer(ctx context.Context, body, path string) error {
	s := getState(ctx)
	s.artifactBody = []byte(body)
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != path {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		atomic.AddInt32(&s.serverHits, 1)
		w.Write(s.artifactBody)
	}))
	return nil
}

func aRecipeFetchingThatURL(ctx context.Context, name string) error {
	s := getState(ctx)
	sum := sha256.Sum256(s.artifactBody)
	r := &recipe.Recipe{
		Name:    name,
		Version: "1.0",
		Artifacts: []recipe.Artifact{{
			Source:       recipe.FetchSource{URL: s.server.URL + "/file.tar.gz"},
			Verification: recipe.Verification{SHA256: &sum},
		}},
	}
	r.ApplyDefaults()
	s.fetchRecipe = r
	s.settings = newTestSettings(s.t)
	return nil
}

func iFetchTheRecipesArtifactsTwice(ctx context.Context) error {
	s := getState(ctx)
	fetcher := fetch.New(s.settings, logx.NewNoop())

	first, err := fetcher.Fetch(context.Background(), s.fetchRecipe.Artifacts[0])
	if err != nil {
		return err
	}
	second, err := fetcher.Fetch(context.Background(), s.fetchRecipe.Artifacts[0])
	if err != nil {
		return err
	}
	s.firstFetch, s.secondFetch = first, second
	return nil
}

func theSecondFetchMakesNoAdditionalRequest(ctx context.Context) error {
	s := getState(ctx)
	if got := atomic.LoadInt32(&s.serverHits); got != 1 {
		return fmt.Errorf("expected exactly 1 network request, got %d", got)
	}
	return nil
}

func theCachedFileIsNamedWithHashAndFileName(ctx context.Context) error {
	s := getState(ctx)
	want := s.settings.CacheFilePath(s.fetchRecipe.Artifacts[0])
	if s.firstFetch.Path != want {
		return fmt.Errorf("cached path %q, want %q", s.firstFetch.Path, want)
	}
	if filepath.Base(want) != filepath.Base(s.secondFetch.Path) {
		return fmt.Errorf("second fetch returned a different cache slot: %q", s.secondFetch.Path)
	}
	return nil
}

// --- S3: tar.gz extraction ---

func buildTarGz(files map[string]string) []byte {
	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	for name, content := range files {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}); err != nil {
			panic(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			panic(err)
		}
	}
	if err := tw.Close(); err != nil {
		panic(err)
	}

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	if _, err := gw.Write(raw.Bytes()); err != nil {
		panic(err)
	}
	if err := gw.Close(); err != nil {
		panic(err)
	}
	return gz.Bytes()
}

func aTarGzArtifactContaining(ctx context.Context, entryPath string) error {
	s := getState(ctx)
	s.settings = newTestSettings(s.t)

	body := buildTarGz(map[string]string{entryPath: "contents\n"})
	cachePath := filepath.Join(s.settings.CachePath, "seed-src.tar.gz")
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(cachePath, body, 0o644); err != nil {
		return err
	}

	s.extractArtifact = &fetch.FetchedArtifact{
		Artifact: recipe.Artifact{Source: recipe.FetchSource{FileName: "seed-src.tar.gz"}},
		Path:     cachePath,
	}
	return nil
}

func iExtractTheFetchedArtifactForRecipe(ctx context.Context, recipeName string) error {
	s := getState(ctx)
	s.fetchRecipe = &recipe.Recipe{Name: recipeName}
	return extract.New(s.settings).Extract(s.extractArtifact, recipeName)
}

func theFileExistsUnderExtractedSourceTree(ctx context.Context, relPath string) error {
	s := getState(ctx)
	full := filepath.Join(s.settings.RecipeSourcePath(s.fetchRecipe.Name), relPath)
	if _, err := os.Stat(full); err != nil {
		return fmt.Errorf("expected %s to exist: %w", full, err)
	}
	return nil
}

// --- S4: explicit action before a build-style default body ---

// fakeBin drops an executable shell script named name onto dir that appends
// its own name to logPath, standing in for gcc/make so the scenario can
// assert invocation order without depending on a real toolchain.
func fakeBin(t *testing.T, dir, name, logPath string) {
	t.Helper()
	script := fmt.Sprintf("#!/bin/sh\necho %s >> %s\nexit 0\n", name, logPath)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755))
}

func aRecipeWithStyle(ctx context.Context, name, style string) error {
	s := getState(ctx)
	tag := recipe.StyleNoop
	if style == "configure" {
		tag = recipe.StyleConfigure
	}
	r := &recipe.Recipe{Name: name, Version: "1.0", Style: recipe.BuildStyle{Tag: tag}, Playbooks: map[recipe.Stage]recipe.ActionPlaybook{}}
	r.ApplyDefaults()
	s.playbookRecipe = r
	s.settings = newTestSettings(s.t)
	return os.MkdirAll(s.settings.ExtractedSourcePath(r), 0o755)
}

func anInstallPlaybookOfThenDefault(ctx context.Context, ccSpec string) error {
	s := getState(ctx)
	s.playbookRecipe.Playbooks[recipe.StageInstall] = recipe.ActionPlaybook{
		Stage: recipe.StageInstall,
		Actions: []recipe.Action{
			recipe.CcAction{Input: []string{"x.c"}, Output: "x"},
			recipe.DefaultAction{},
		},
	}
	return nil
}

func iRunTheInstallStage(ctx context.Context) error {
	s := getState(ctx)
	t := s.t

	binDir := t.TempDir()
	logPath := filepath.Join(binDir, "invocations.log")
	fakeBin(t, binDir, "gcc", logPath)
	fakeBin(t, binDir, "make", logPath)
	s.commandLog = logPath

	s.oldPath = os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+s.oldPath); err != nil {
		return err
	}

	env := buildenv.New(s.settings, buildenv.NoneMethod{}, false)
	p := player.New(env)
	state := buildstate.New(s.playbookRecipe, time.Now())
	state.Stage = recipe.StageInstall
	pc := &player.Context{Recipe: s.playbookRecipe, Settings: s.settings}

	playErr := p.PlayBuildStage(context.Background(), state, pc)
	os.Setenv("PATH", s.oldPath)
	return playErr
}

func theActionOrderWas(ctx context.Context, first, second string) error {
	s := getState(ctx)
	data, err := os.ReadFile(s.commandLog)
	if err != nil {
		return err
	}
	names := map[string]string{"cc": "gcc", "make-install": "make"}
	wantFirst, wantSecond := names[first], names[second]

	lines := bytes.Fields(data)
	if len(lines) < 2 {
		return fmt.Errorf("expected 2 invocations, got %q", data)
	}
	if string(lines[0]) != wantFirst || string(lines[1]) != wantSecond {
		return fmt.Errorf("invocation order %q, want [%s %s]", data, wantFirst, wantSecond)
	}
	return nil
}

// --- S5: CollectElf + StripBinaries ---

func build64BitExecutableHeader() []byte {
	h := make([]byte, 64)
	copy(h, []byte{0x7f, 'E', 'L', 'F'})
	h[4] = 2 // ELFCLASS64
	h[5] = 1 // little endian
	h[16] = 2 // ET_EXEC
	h[18] = 0x3e // EM_X86_64
	return h
}

func aRecipeWhoseInstallProducesElfAndArchive(ctx context.Context, name string) error {
	s := getState(ctx)
	r := &recipe.Recipe{Name: name, Version: "1.0"}
	r.ApplyDefaults()
	s.stripRecipe = r
	s.settings = newTestSettings(s.t)

	dest := s.settings.DestPath(name)
	if err := os.MkdirAll(filepath.Join(dest, "bin"), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dest, "lib"), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dest, "bin", "prog"), build64BitExecutableHeader(), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, "lib", "static.a"), append([]byte("!<arch>\n"), []byte("padding")...), 0o644)
}

func iRunTheInstallStagesAfterHooks(ctx context.Context) error {
	s := getState(ctx)

	binDir := s.t.TempDir()
	s.stripLog = filepath.Join(binDir, "strip.log")
	script := fmt.Sprintf("#!/bin/sh\necho \"$@\" >> %s\nexit 0\n", s.stripLog)
	if err := os.WriteFile(filepath.Join(binDir, "strip"), []byte(script), 0o755); err != nil {
		return err
	}

	s.oldPath = os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+s.oldPath); err != nil {
		return err
	}
	defer os.Setenv("PATH", s.oldPath)

	state := buildstate.New(s.stripRecipe, time.Now())
	state.Stage = recipe.StageInstall
	s.stripState = state

	collect := installhooks.CollectElf(s.settings)
	if err := collect.Run(context.Background(), state); err != nil {
		return err
	}
	strip := installhooks.StripBinaries()
	return strip.Run(context.Background(), state)
}

func stripWasInvokedOnBinaryAndArchive(ctx context.Context) error {
	s := getState(ctx)
	data, err := os.ReadFile(s.stripLog)
	if err != nil {
		return fmt.Errorf("strip was never invoked: %w", err)
	}
	if !bytes.Contains(data, []byte("bin/prog")) {
		return fmt.Errorf("strip log %q does not mention the binary", data)
	}
	if !bytes.Contains(data, []byte("--strip-debug")) || !bytes.Contains(data, []byte("lib/static.a")) {
		return fmt.Errorf("strip log %q does not show --strip-debug on the archive", data)
	}
	return nil
}

// --- S6: PinTimestamps ---

func aRecipeWithSides(ctx context.Context, name, side1, side2 string) error {
	s := getState(ctx)
	r := &recipe.Recipe{
		Name:    name,
		Version: "1.0",
		Sides:   []recipe.Side{{Name: side1}, {Name: side2}},
	}
	r.ApplyDefaults()
	s.pinRecipe = r
	s.settings = newTestSettings(s.t)
	return nil
}

func eachOfTheirDestTreesHasAFile(ctx context.Context) error {
	s := getState(ctx)
	old := time.Now().Add(-24 * time.Hour)

	trees := []string{s.pinRecipe.Name}
	for _, side := range s.pinRecipe.Sides {
		trees = append(trees, side.Name)
	}
	for _, name := range trees {
		dir := s.settings.DestPath(name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		f := filepath.Join(dir, "file.txt")
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			return err
		}
		if err := os.Chtimes(f, old, old); err != nil {
			return err
		}
	}
	return nil
}

func iRunThePackageStagesBeforeHooksWithFixedBuildTime(ctx context.Context) error {
	s := getState(ctx)
	s.pinBuildTime = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

	state := buildstate.New(s.pinRecipe, s.pinBuildTime)
	state.Stage = recipe.StagePackage

	hook := packagehooks.PinTimestamps(s.settings)
	return hook.Run(context.Background(), state)
}

func everyFilesMtimeEqualsFixedBuildTime(ctx context.Context) error {
	s := getState(ctx)
	trees := []string{s.pinRecipe.Name}
	for _, side := range s.pinRecipe.Sides {
		trees = append(trees, side.Name)
	}
	for _, name := range trees {
		f := filepath.Join(s.settings.DestPath(name), "file.txt")
		info, err := os.Stat(f)
		if err != nil {
			return err
		}
		if !info.ModTime().Truncate(time.Second).Equal(s.pinBuildTime.Truncate(time.Second)) {
			return fmt.Errorf("%s has mtime %s, want %s", f, info.ModTime(), s.pinBuildTime)
		}
	}
	return nil
}
