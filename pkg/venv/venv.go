package venv

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/matzehuels/poet/pkg/buildinfo"
	"github.com/matzehuels/poet/pkg/config"
	poeterrors "github.com/matzehuels/poet/pkg/errors"
)

// Layout names inside an environment root.
const (
	InProjectDir = ".venv"
	ConfigFile   = "pyvenv.cfg"
	sitePackages = "lib/site-packages"
	srcDir       = "src"
)

var (
	// ErrNotFound means no environment exists at the expected location.
	ErrNotFound = errors.New("environment not found")

	// ErrCorrupted means a directory exists at the location but is not a
	// usable environment.
	ErrCorrupted = errors.New("environment corrupted")
)

// Environment is an isolated installation root for one project.
type Environment struct {
	Root string
	ID   string // Stable identifier written at creation
}

// Locate returns where the environment for projectDir lives: <project>/.venv
// when configured in-project or when that directory already exists, otherwise
// <VirtualenvsPath>/<name>-<hash> where the hash is derived from the
// absolute project path.
func Locate(cfg config.Config, projectDir string) (string, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return "", poeterrors.Wrap(poeterrors.ErrCodeEnvironmentState, err, "resolve %s", projectDir)
	}
	inProject := filepath.Join(abs, InProjectDir)
	if cfg.VirtualenvsInProject {
		return inProject, nil
	}
	if info, err := os.Stat(inProject); err == nil && info.IsDir() {
		return inProject, nil
	}
	if cfg.VirtualenvsPath == "" {
		return "", poeterrors.New(poeterrors.ErrCodeInvalidConfig, "no virtualenvs path configured")
	}
	return filepath.Join(cfg.VirtualenvsPath, envName(abs)), nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func envName(absProjectDir string) string {
	base := unsafeChars.ReplaceAllString(strings.ToLower(filepath.Base(absProjectDir)), "-")
	sum := sha256.Sum256([]byte(absProjectDir))
	return base + "-" + base64.RawURLEncoding.EncodeToString(sum[:])[:8]
}

// CreateFromConfig returns the environment for projectDir, creating it when
// it does not exist and cfg.VirtualenvsCreate allows it. An existing but
// corrupted environment is never overwritten.
func CreateFromConfig(cfg config.Config, projectDir string) (*Environment, error) {
	root, err := Locate(cfg, projectDir)
	if err != nil {
		return nil, err
	}
	env, err := FromExisting(root)
	if err == nil {
		return env, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if !cfg.VirtualenvsCreate {
		return nil, poeterrors.Wrap(poeterrors.ErrCodeEnvironmentState, ErrNotFound,
			"no environment at %s and virtualenvs.create is false", root)
	}
	return Create(root)
}

// FromExisting validates the environment at root. A missing root fails with
// ErrNotFound; a root without the config file or site-packages directory
// fails with ErrCorrupted. Both are wrapped as ENVIRONMENT_STATE.
func FromExisting(root string) (*Environment, error) {
	info, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, stateError(ErrNotFound, root)
	}
	if err != nil {
		return nil, poeterrors.Wrap(poeterrors.ErrCodeEnvironmentState, err, "stat %s", root)
	}
	if !info.IsDir() {
		return nil, stateError(ErrCorrupted, root)
	}

	cfg, err := readConfig(filepath.Join(root, ConfigFile))
	if err != nil {
		return nil, poeterrors.Wrap(poeterrors.ErrCodeEnvironmentState,
			fmt.Errorf("%w: %v", ErrCorrupted, err), "environment %s", root)
	}
	if info, err := os.Stat(filepath.Join(root, filepath.FromSlash(sitePackages))); err != nil || !info.IsDir() {
		return nil, poeterrors.Wrap(poeterrors.ErrCodeEnvironmentState,
			fmt.Errorf("%w: missing %s", ErrCorrupted, sitePackages), "environment %s", root)
	}
	return &Environment{Root: root, ID: cfg["id"]}, nil
}

func stateError(cause error, root string) error {
	return poeterrors.Wrap(poeterrors.ErrCodeEnvironmentState, cause, "environment %s", root)
}

// Create builds a fresh environment at root.
func Create(root string) (*Environment, error) {
	for _, dir := range []string{filepath.FromSlash(sitePackages), srcDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, poeterrors.Wrap(poeterrors.ErrCodeEnvironmentState, err, "create %s", root)
		}
	}

	env := &Environment{Root: root, ID: uuid.NewString()}
	content := fmt.Sprintf("include-system-site-packages = false\ncreated-by = poet %s\nid = %s\n",
		buildinfo.Version, env.ID)
	if err := os.WriteFile(filepath.Join(root, ConfigFile), []byte(content), 0o644); err != nil {
		return nil, poeterrors.Wrap(poeterrors.ErrCodeEnvironmentState, err, "write %s", ConfigFile)
	}
	return env, nil
}

// readConfig parses the key = value lines of pyvenv.cfg.
func readConfig(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return out, nil
}

// SitePackages returns the install location for packages.
func (e *Environment) SitePackages() string {
	return filepath.Join(e.Root, filepath.FromSlash(sitePackages))
}

// SourceDir returns where repository checkouts are kept.
func (e *Environment) SourceDir() string {
	return filepath.Join(e.Root, srcDir)
}

// StagingDir creates an empty directory inside the environment for
// providers to clone into. The caller removes it when done.
func (e *Environment) StagingDir() (string, error) {
	dir := filepath.Join(e.SourceDir(), ".staging-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", poeterrors.Wrap(poeterrors.ErrCodeEnvironmentState, err, "create staging directory")
	}
	return dir, nil
}
