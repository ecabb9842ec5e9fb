package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	poeterrors "github.com/matzehuels/poet/pkg/errors"
)

const appName = "poet"

// Defaults for values left unset by the config file and environment.
const (
	DefaultIndexURL       = "https://pypi.org/pypi"
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultMaxConcurrency = 8
)

// Environment variables that override file settings.
const (
	EnvIndexURL             = "POET_INDEX_URL"
	EnvVirtualenvsInProject = "POET_VIRTUALENVS_IN_PROJECT"
	EnvVirtualenvsPath      = "POET_VIRTUALENVS_PATH"
	EnvVirtualenvsCreate    = "POET_VIRTUALENVS_CREATE"
)

// Config holds user settings for resolution and environment placement.
type Config struct {
	IndexURL             string        // PyPI-compatible JSON API root
	HTTPTimeout          time.Duration // Per-request timeout
	VirtualenvsInProject bool          // Place the environment at <project>/.venv
	VirtualenvsPath      string        // Parent directory for shared environments
	VirtualenvsCreate    bool          // Create a missing environment instead of failing
	MaxConcurrency       int           // Upper bound on parallel lookups per provider
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{VirtualenvsCreate: true}.WithDefaults()
}

// WithDefaults returns a copy of Config with zero values replaced by defaults.
// Booleans are left as they are.
func (c Config) WithDefaults() Config {
	cfg := c
	if cfg.IndexURL == "" {
		cfg.IndexURL = DefaultIndexURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.VirtualenvsPath == "" {
		cfg.VirtualenvsPath = defaultVirtualenvsPath()
	}
	return cfg
}

// Validate reports the first invalid setting as INVALID_CONFIG.
func (c Config) Validate() error {
	u, err := url.Parse(c.IndexURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return poeterrors.New(poeterrors.ErrCodeInvalidConfig, "index url %q must be an absolute http(s) URL", c.IndexURL)
	}
	if c.HTTPTimeout <= 0 {
		return poeterrors.New(poeterrors.ErrCodeInvalidConfig, "http timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.MaxConcurrency <= 0 {
		return poeterrors.New(poeterrors.ErrCodeInvalidConfig, "max workers must be positive, got %d", c.MaxConcurrency)
	}
	if !c.VirtualenvsInProject && c.VirtualenvsPath == "" {
		return poeterrors.New(poeterrors.ErrCodeInvalidConfig, "virtualenvs path is required unless virtualenvs are kept in the project")
	}
	return nil
}

// file mirrors config.toml.
type file struct {
	Repositories struct {
		PyPI struct {
			URL string `toml:"url"`
		} `toml:"pypi"`
	} `toml:"repositories"`
	Virtualenvs struct {
		InProject *bool  `toml:"in-project"`
		Path      string `toml:"path"`
		Create    *bool  `toml:"create"`
	} `toml:"virtualenvs"`
	HTTP struct {
		Timeout int `toml:"timeout"` // seconds
	} `toml:"http"`
	Installer struct {
		MaxWorkers int `toml:"max-workers"`
	} `toml:"installer"`
}

// Load reads the config file at path, applies environment overrides and
// fills defaults. An empty path selects [DefaultPath]; a missing file is not
// an error. The result is validated before it is returned.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Config{VirtualenvsCreate: true}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return poeterrors.Wrap(poeterrors.ErrCodeInvalidConfig, err, "read %s", path)
	}

	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return poeterrors.Wrap(poeterrors.ErrCodeInvalidConfig, err, "parse %s", path)
	}

	c.IndexURL = f.Repositories.PyPI.URL
	c.VirtualenvsPath = expandHome(f.Virtualenvs.Path)
	if f.Virtualenvs.InProject != nil {
		c.VirtualenvsInProject = *f.Virtualenvs.InProject
	}
	if f.Virtualenvs.Create != nil {
		c.VirtualenvsCreate = *f.Virtualenvs.Create
	}
	if f.HTTP.Timeout < 0 || f.Installer.MaxWorkers < 0 {
		return poeterrors.New(poeterrors.ErrCodeInvalidConfig, "%s: timeout and max-workers must not be negative", path)
	}
	c.HTTPTimeout = time.Duration(f.HTTP.Timeout) * time.Second
	c.MaxConcurrency = f.Installer.MaxWorkers
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvIndexURL); ok && v != "" {
		c.IndexURL = v
	}
	if v, ok := os.LookupEnv(EnvVirtualenvsPath); ok && v != "" {
		c.VirtualenvsPath = expandHome(v)
	}
	for env, dst := range map[string]*bool{
		EnvVirtualenvsInProject: &c.VirtualenvsInProject,
		EnvVirtualenvsCreate:    &c.VirtualenvsCreate,
	} {
		v, ok := os.LookupEnv(env)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return poeterrors.Wrap(poeterrors.ErrCodeInvalidConfig, err, "%s", env)
		}
		*dst = b
	}
	return nil
}

// DefaultPath returns the config file location using the XDG standard
// (~/.config/poet/config.toml). It returns "" when no home directory is known.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.toml")
}

// defaultVirtualenvsPath returns ~/.cache/poet/virtualenvs, honouring XDG_CACHE_HOME.
func defaultVirtualenvsPath() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName, "virtualenvs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", appName, "virtualenvs")
}

func expandHome(p string) string {
	rest, ok := cutHome(p)
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}

func cutHome(p string) (string, bool) {
	if p == "~" {
		return "", true
	}
	if len(p) > 1 && p[0] == '~' && (p[1] == '/' || p[1] == filepath.Separator) {
		return p[2:], true
	}
	return "", false
}
