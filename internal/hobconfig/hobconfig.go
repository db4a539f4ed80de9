// Package hobconfig resolves the engine's root path, network timeout, and
// chroot method. Settings come from an optional TOML file, with environment
// variables overriding whatever the file (or its absence) supplies.
package hobconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// EnvHobHome overrides the default build root.
	EnvHobHome = "HOB_HOME"
	// EnvFetchTimeout overrides the HTTP client's per-request timeout.
	EnvFetchTimeout = "HOB_FETCH_TIMEOUT"
	// EnvChroot selects the chroot method: "none" (default) or "system".
	EnvChroot = "HOB_CHROOT"
	// EnvConfigFile overrides the path of the TOML config file.
	EnvConfigFile = "HOB_CONFIG"

	// DefaultFetchTimeout is used when neither the config file nor
	// EnvFetchTimeout supplies a valid value.
	DefaultFetchTimeout = 30 * time.Second
)

// fileConfig is the shape of the optional TOML config file. Every field is
// optional; an absent field falls through to the built-in default.
type fileConfig struct {
	RootPath     string `toml:"root_path"`
	FetchTimeout string `toml:"fetch_timeout"`
	Chroot       string `toml:"chroot"`
}

// Config is the resolved set of engine-wide settings a cmd/hob invocation
// builds once at startup.
type Config struct {
	RootPath     string // build root; .hob/{src,dest,pkg} live under it
	FetchTimeout time.Duration
	Chroot       string
}

// DefaultConfig resolves Config by layering the working directory default,
// an optional TOML config file, and environment variable overrides, in that
// order.
func DefaultConfig() (*Config, error) {
	fc, err := loadFile(configFilePath())
	if err != nil {
		return nil, err
	}

	root := fc.RootPath
	if envRoot := os.Getenv(EnvHobHome); envRoot != "" {
		root = envRoot
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("hobconfig: resolving working directory: %w", err)
		}
		root = wd
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("hobconfig: resolving %s: %w", root, err)
	}

	return &Config{
		RootPath:     root,
		FetchTimeout: fetchTimeout(fc.FetchTimeout),
		Chroot:       chrootMethodName(fc.Chroot),
	}, nil
}

// configFilePath returns the TOML config file location: EnvConfigFile if
// set, otherwise ~/.config/hob/config.toml.
func configFilePath() string {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "hob", "config.toml")
}

// loadFile decodes the TOML config at path, returning a zero-value
// fileConfig (every field falls through to its default) when path is empty
// or the file doesn't exist.
func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("hobconfig: reading %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), &fc); err != nil {
		return fc, fmt.Errorf("hobconfig: parsing %s: %w", path, err)
	}
	return fc, nil
}

// fetchTimeout resolves the fetch timeout from, in order of precedence: the
// EnvFetchTimeout env var, the file-supplied duration string, then
// DefaultFetchTimeout.
func fetchTimeout(fileValue string) time.Duration {
	raw := fileValue
	if envValue := os.Getenv(EnvFetchTimeout); envValue != "" {
		raw = envValue
	}
	if raw == "" {
		return DefaultFetchTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hobconfig: invalid fetch timeout %q, using default %v\n", raw, DefaultFetchTimeout)
		return DefaultFetchTimeout
	}
	if d < time.Second {
		return time.Second
	}
	return d
}

func chrootMethodName(fileValue string) string {
	method := fileValue
	if envValue := os.Getenv(EnvChroot); envValue != "" {
		method = envValue
	}
	if method == "system" {
		return "system"
	}
	return "none"
}
