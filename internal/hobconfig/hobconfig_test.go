package hobconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFileMissing(t *testing.T) {
	fc, err := loadFile(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	require.Equal(t, fileConfig{}, fc)
}

func TestLoadFileEmptyPath(t *testing.T) {
	fc, err := loadFile("")
	require.NoError(t, err)
	require.Equal(t, fileConfig{}, fc)
}

func TestLoadFileDecodesValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
root_path = "/srv/hob"
fetch_timeout = "45s"
chroot = "system"
`), 0o644))

	fc, err := loadFile(path)
	require.NoError(t, err)
	require.Equal(t, fileConfig{RootPath: "/srv/hob", FetchTimeout: "45s", Chroot: "system"}, fc)
}

func TestFetchTimeoutPrecedence(t *testing.T) {
	t.Setenv(EnvFetchTimeout, "")
	require.Equal(t, DefaultFetchTimeout, fetchTimeout(""))
	require.Equal(t, 45*time.Second, fetchTimeout("45s"))

	t.Setenv(EnvFetchTimeout, "90s")
	require.Equal(t, 90*time.Second, fetchTimeout("45s"))
}

func TestFetchTimeoutFloorsAtOneSecond(t *testing.T) {
	t.Setenv(EnvFetchTimeout, "")
	require.Equal(t, time.Second, fetchTimeout("200ms"))
}

func TestFetchTimeoutFallsBackOnGarbage(t *testing.T) {
	t.Setenv(EnvFetchTimeout, "")
	require.Equal(t, DefaultFetchTimeout, fetchTimeout("not-a-duration"))
}

func TestChrootMethodNamePrecedence(t *testing.T) {
	t.Setenv(EnvChroot, "")
	require.Equal(t, "none", chrootMethodName(""))
	require.Equal(t, "system", chrootMethodName("system"))

	t.Setenv(EnvChroot, "system")
	require.Equal(t, "system", chrootMethodName(""))

	t.Setenv(EnvChroot, "bogus")
	require.Equal(t, "none", chrootMethodName("system"))
}

func TestDefaultConfigUsesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
root_path = "/srv/hob"
fetch_timeout = "10s"
chroot = "system"
`), 0o644))

	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvHobHome, "")
	t.Setenv(EnvFetchTimeout, "")
	t.Setenv(EnvChroot, "")

	cfg, err := DefaultConfig()
	require.NoError(t, err)
	require.Equal(t, "/srv/hob", cfg.RootPath)
	require.Equal(t, 10*time.Second, cfg.FetchTimeout)
	require.Equal(t, "system", cfg.Chroot)
}

func TestDefaultConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
root_path = "/srv/hob"
chroot = "system"
`), 0o644))

	home := t.TempDir()
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvHobHome, home)
	t.Setenv(EnvFetchTimeout, "")
	t.Setenv(EnvChroot, "none")

	cfg, err := DefaultConfig()
	require.NoError(t, err)
	require.Equal(t, home, cfg.RootPath)
	require.Equal(t, "none", cfg.Chroot)
}
