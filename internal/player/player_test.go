package player

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hob-build/hob/internal/buildenv"
	"github.com/hob-build/hob/internal/buildstate"
	"github.com/hob-build/hob/internal/hobpath"
	"github.com/hob-build/hob/internal/recipe"
)

func newTestPlayer(t *testing.T) (*Player, *Context, *buildstate.BuildState) {
	t.Helper()
	root := t.TempDir()
	settings := hobpath.New(root)
	r := &recipe.Recipe{Name: "foo", Version: "1.0", Playbooks: map[recipe.Stage]recipe.ActionPlaybook{}}
	r.ApplyDefaults()

	env := buildenv.New(settings, buildenv.NoneMethod{}, false)
	p := New(env)
	pc := &Context{Recipe: r, Settings: settings}
	state := buildstate.New(r, time.Now())
	return p, pc, state
}

func TestPlay_DefaultRunsBodyOnce(t *testing.T) {
	p, pc, state := newTestPlayer(t)
	state.Stage = recipe.StageInstall
	state.Recipe.Playbooks[recipe.StageInstall] = recipe.ActionPlaybook{
		Stage:   recipe.StageInstall,
		Actions: []recipe.Action{recipe.DefaultAction{}},
	}

	calls := 0
	err := p.Play(context.Background(), state, pc, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPlay_DoubleDefaultFails(t *testing.T) {
	p, pc, state := newTestPlayer(t)
	state.Stage = recipe.StageInstall
	state.Recipe.Playbooks[recipe.StageInstall] = recipe.ActionPlaybook{
		Stage:   recipe.StageInstall,
		Actions: []recipe.Action{recipe.DefaultAction{}, recipe.DefaultAction{}},
	}

	err := p.Play(context.Background(), state, pc, func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestPlay_NoPlaybookRunsImplicitDefault(t *testing.T) {
	p, pc, state := newTestPlayer(t)
	state.Stage = recipe.StageInstall

	calls := 0
	err := p.Play(context.Background(), state, pc, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunDir_CreatesDirectory(t *testing.T) {
	p, pc, state := newTestPlayer(t)
	state.Stage = recipe.StageInstall
	state.Recipe.Playbooks[recipe.StageInstall] = recipe.ActionPlaybook{
		Stage:   recipe.StageInstall,
		Actions: []recipe.Action{recipe.DirAction{Targets: []string{"usr/lib"}}},
	}

	err := p.Play(context.Background(), state, pc, nil)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(pc.DestPath(), "usr", "lib"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRunBin_CreatesLiteralPathDirAndCopiesIntoBin(t *testing.T) {
	p, pc, state := newTestPlayer(t)
	require.NoError(t, os.MkdirAll(pc.SourcePath(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pc.SourcePath(), "tool"), []byte("#!/bin/sh\n"), 0o755))

	err := p.executeAction(context.Background(), state, pc, recipe.BinAction{Binaries: []string{"tool"}})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(pc.DestPath(), "path"))
	assert.NoError(t, err, "literal {dest}/path directory must exist per the documented behavior")

	data, err := os.ReadFile(filepath.Join(pc.DestPath(), "bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(data))
}

func TestRunMan_RejectsNonDigitSuffix(t *testing.T) {
	p, pc, state := newTestPlayer(t)
	err := p.executeAction(context.Background(), state, pc, recipe.ManAction{ManFiles: []string{"foo.txt"}})
	require.Error(t, err)
}

func TestRunMan_InstallsIntoManN(t *testing.T) {
	p, pc, state := newTestPlayer(t)
	require.NoError(t, os.MkdirAll(pc.SourcePath(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pc.SourcePath(), "foo.1"), []byte("manpage"), 0o644))

	err := p.executeAction(context.Background(), state, pc, recipe.ManAction{ManFiles: []string{"foo.1"}})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(pc.DestPath(), "usr", "share", "man", "man1", "foo.1"))
	require.NoError(t, err)
	assert.Equal(t, "manpage", string(data))
}

func TestRunLink_SecondSourceFailsOnSameTarget(t *testing.T) {
	p, pc, state := newTestPlayer(t)
	require.NoError(t, os.MkdirAll(pc.DestPath(), 0o755))
	act := recipe.LinkAction{Source: []string{"/a", "/b"}, Target: "lib.so"}
	err := p.executeAction(context.Background(), state, pc, act)
	assert.Error(t, err, "second source targeting the same link path must fail, per the documented oddity")
	linked, readErr := os.Readlink(filepath.Join(pc.DestPath(), "lib.so"))
	require.NoError(t, readErr, "the first source's symlink must have been created")
	assert.Equal(t, "/a", linked)
}

func TestRunRm_RemovesDirectoryRecursively(t *testing.T) {
	p, pc, state := newTestPlayer(t)
	nested := filepath.Join(pc.DestPath(), "old", "nested")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	err := p.executeAction(context.Background(), state, pc, recipe.RmAction{Targets: []string{"old"}})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(pc.DestPath(), "old"))
	assert.True(t, os.IsNotExist(err))
}
