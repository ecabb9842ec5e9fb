package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/poet/pkg/config"
	"github.com/matzehuels/poet/pkg/errors"
	"github.com/matzehuels/poet/pkg/integrations/git"
	"github.com/matzehuels/poet/pkg/manifest"
	"github.com/matzehuels/poet/pkg/observability"
	"github.com/matzehuels/poet/pkg/venv"
)

const pyproject = `[tool.poetry]
name = "demo"
version = "0.1.0"
description = "A demo project"
authors = ["Jane Doe <jane@example.com>"]

[tool.poetry.dependencies]
python = "^3.11"

[build-system]
requires = ["poetry-core"]
build-backend = "poetry.core.masonry.api"
`

// indexServer serves PyPI JSON for a fixed set of projects.
type indexServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newIndexServer(t *testing.T, versions map[string]string) *indexServer {
	t.Helper()
	s := &indexServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/pypi/"), "/json")
		version, ok := versions[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"info": map[string]any{"name": name, "version": version},
			"releases": map[string]any{
				version: []map[string]any{{"filename": name + ".whl", "yanked": false}},
			},
		})
	}))
	t.Cleanup(s.Close)
	return s
}

// fakeClone creates the destination directory and reports a fixed commit.
func fakeClone(_ context.Context, url, rev, dest string) (*git.Checkout, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dest, "pyproject.toml"), []byte("[project]\nname = \"x\"\n"), 0o644); err != nil {
		return nil, err
	}
	return &git.Checkout{URL: url, Ref: rev, Commit: "0123456789abcdef", Dir: dest}, nil
}

type fixture struct {
	dir    string
	index  *indexServer
	runner *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(manifest.Path(dir), []byte(pyproject), 0o644); err != nil {
		t.Fatal(err)
	}

	index := newIndexServer(t, map[string]string{
		"requests": "2.31.0",
		"numpy":    "1.26.4",
		"pytest":   "8.0.0",
		"python":   "3.12.0",
	})

	cfg := config.Default()
	cfg.IndexURL = index.URL + "/pypi"
	cfg.HTTPTimeout = 5 * time.Second
	cfg.VirtualenvsPath = filepath.Join(t.TempDir(), "envs")

	runner := NewRunner(cfg, log.New(io.Discard))
	runner.Cloner = git.ClonerFunc(fakeClone)
	return &fixture{dir: dir, index: index, runner: runner}
}

func (f *fixture) add(t *testing.T, opts Options) (*Result, error) {
	t.Helper()
	opts.Dir = f.dir
	return f.runner.Add(context.Background(), opts)
}

func (f *fixture) manifestText(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(manifest.Path(f.dir))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func (f *fixture) load(t *testing.T) *manifest.Project {
	t.Helper()
	p, err := manifest.Load(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestAdd_Registry(t *testing.T) {
	f := newFixture(t)

	result, err := f.add(t, Options{Packages: []string{"requests", "numpy@^1.20"}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if result.Stats.PackageCount != 2 || result.Group != manifest.MainGroup {
		t.Errorf("result = %+v", result)
	}
	if result.OperationID == "" {
		t.Error("missing operation id")
	}

	deps := f.load(t).Table(manifest.MainGroup)
	if deps["requests"].Version != "2.31.0" || deps["numpy"].Version != "1.26.4" {
		t.Errorf("dependencies = %+v", deps)
	}
	if deps["python"].Version != "^3.11" {
		t.Errorf("existing dependency lost: %+v", deps["python"])
	}
	if p := f.load(t); p.BuildSystem == nil || p.BuildSystem.BuildBackend != "poetry.core.masonry.api" {
		t.Error("build-system not preserved")
	}

	env, err := venv.FromExisting(result.Environment)
	if err != nil {
		t.Fatalf("FromExisting: %v", err)
	}
	if !env.ContainsModule("requests") || !env.ContainsModule("numpy") {
		t.Error("packages not staged into environment")
	}
	entries, _ := os.ReadDir(env.SourceDir())
	if len(entries) != 0 {
		t.Errorf("staging left behind: %v", entries)
	}
}

func TestAdd_DevGroupWithExtras(t *testing.T) {
	f := newFixture(t)

	if _, err := f.add(t, Options{Packages: []string{"pytest"}, Dev: true, Extras: []string{"testing"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	p := f.load(t)
	dep, ok := p.Table(manifest.DevGroup)["pytest"]
	if !ok {
		t.Fatalf("pytest not in dev group: %s", f.manifestText(t))
	}
	if len(dep.Extras) != 1 || dep.Extras[0] != "testing" {
		t.Errorf("extras = %v", dep.Extras)
	}
	if _, ok := p.Table(manifest.MainGroup)["pytest"]; ok {
		t.Error("pytest also added to main group")
	}
	if !strings.Contains(f.manifestText(t), "[tool.poetry.group.dev.dependencies]") {
		t.Errorf("manifest:\n%s", f.manifestText(t))
	}
}

func TestAdd_Git(t *testing.T) {
	f := newFixture(t)

	result, err := f.add(t, Options{Packages: []string{"https://github.com/psf/black.git#24.1.0"}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	dep := f.load(t).Table(manifest.MainGroup)["black"]
	if dep.Git != "https://github.com/psf/black.git" || dep.Rev != "24.1.0" {
		t.Errorf("git dependency = %+v", dep)
	}
	if _, err := os.Stat(filepath.Join(result.Environment, "src", "black", "pyproject.toml")); err != nil {
		t.Errorf("checkout not installed: %v", err)
	}
	if f.index.hits.Load() != 0 {
		t.Errorf("index contacted %d times for a git package", f.index.hits.Load())
	}
}

func TestAdd_EditableFolder(t *testing.T) {
	f := newFixture(t)
	lib := filepath.Join(f.dir, "libs", "mylib")
	os.MkdirAll(lib, 0o755)
	os.WriteFile(filepath.Join(lib, "pyproject.toml"), []byte("[tool.poetry]\nname = \"mylib\"\nversion = \"0.3.0\"\n"), 0o644)

	if _, err := f.add(t, Options{Packages: []string{lib}, Editable: true}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	dep := f.load(t).Table(manifest.MainGroup)["mylib"]
	if dep.Path != lib || !dep.Develop {
		t.Errorf("path dependency = %+v", dep)
	}
}

func writeLib(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte("[tool.poetry]\nname = \"mylib\"\nversion = \"0.3.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAdd_RelativeFolder(t *testing.T) {
	tests := []struct {
		name     string
		cwd      func(project string) string
		dir      func(project string) string
		typed    string
		lib      func(project string) string
		wantPath string
	}{
		{
			name:     "from project",
			cwd:      func(project string) string { return project },
			dir:      func(string) string { return "." },
			typed:    "./libs/mylib",
			lib:      func(project string) string { return filepath.Join(project, "libs", "mylib") },
			wantPath: "./libs/mylib",
		},
		{
			name:     "other directory",
			cwd:      filepath.Dir,
			dir:      filepath.Base,
			typed:    "./shared/mylib",
			lib:      func(project string) string { return filepath.Join(filepath.Dir(project), "shared", "mylib") },
			wantPath: "../shared/mylib",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			project, err := filepath.EvalSymlinks(f.dir)
			if err != nil {
				t.Fatal(err)
			}
			lib := tt.lib(project)
			writeLib(t, lib)
			t.Chdir(tt.cwd(project))

			result, err := f.runner.Add(context.Background(), Options{
				Dir:      tt.dir(project),
				Packages: []string{tt.typed},
				Editable: true,
			})
			if err != nil {
				t.Fatalf("Add: %v", err)
			}

			p, err := manifest.Load(project)
			if err != nil {
				t.Fatal(err)
			}
			if dep := p.Table(manifest.MainGroup)["mylib"]; dep.Path != tt.wantPath || !dep.Develop {
				t.Errorf("path dependency = %+v, want path %q", dep, tt.wantPath)
			}

			env, err := venv.FromExisting(result.Environment)
			if err != nil {
				t.Fatal(err)
			}
			pth, err := os.ReadFile(filepath.Join(env.SitePackages(), "mylib.pth"))
			if err != nil {
				t.Fatal(err)
			}
			if got := strings.TrimSpace(string(pth)); got != lib {
				t.Errorf(".pth = %q, want %q", got, lib)
			}
		})
	}
}

func TestAdd_DryRun(t *testing.T) {
	f := newFixture(t)
	before := f.manifestText(t)

	result, err := f.add(t, Options{Packages: []string{"requests"}, DryRun: true})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if result.Environment != "" {
		t.Errorf("Environment = %q, want empty", result.Environment)
	}
	if got := result.Manifest.Table(manifest.MainGroup)["requests"]; got.Version != "2.31.0" {
		t.Errorf("would-be entry = %+v", got)
	}
	if f.manifestText(t) != before {
		t.Error("dry run modified pyproject.toml")
	}
	if _, err := os.Stat(f.runner.Config.VirtualenvsPath); !os.IsNotExist(err) {
		t.Error("dry run created an environment")
	}
}

func TestAdd_FailuresLeaveManifestUntouched(t *testing.T) {
	tests := []struct {
		name     string
		packages []string
		want     errors.Code
	}{
		{"unknown format", []string{"requests", "my package"}, errors.ErrCodeUnknownPackageFormat},
		{"invalid constraint", []string{"requests@>>1"}, errors.ErrCodeInvalidVersionConstraint},
		{"missing package", []string{"requests", "does-not-exist"}, errors.ErrCodePackageNotFound},
		{"no matching version", []string{"numpy@>=2.0"}, errors.ErrCodeNoMatchingVersion},
		{"conflict with existing", []string{"python"}, errors.ErrCodeAddConflict},
		{"missing folder", []string{"./no/such/dir/"}, errors.ErrCodeInvalidPackage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			before := f.manifestText(t)

			_, err := f.add(t, Options{Packages: tt.packages})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %s", err, tt.want)
			}
			if f.manifestText(t) != before {
				t.Error("pyproject.toml modified after failure")
			}
		})
	}
}

func TestAdd_ClassifyFailsBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	if _, err := f.add(t, Options{Packages: []string{"requests", "numpy@1.2.3@x"}}); err == nil {
		t.Fatal("expected error")
	}
	if n := f.index.hits.Load(); n != 0 {
		t.Errorf("index contacted %d times", n)
	}
}

func TestAdd_ConflictLeavesEnvironmentEmpty(t *testing.T) {
	f := newFixture(t)
	if _, err := f.add(t, Options{Packages: []string{"requests"}}); err != nil {
		t.Fatal(err)
	}

	_, err := f.add(t, Options{Packages: []string{"numpy", "requests"}})
	if !errors.Is(err, errors.ErrCodeAddConflict) {
		t.Fatalf("err = %v, want ADD_CONFLICT", err)
	}

	root, err := venv.Locate(f.runner.Config, f.dir)
	if err != nil {
		t.Fatal(err)
	}
	env, err := venv.FromExisting(root)
	if err != nil {
		t.Fatal(err)
	}
	if env.ContainsModule("numpy") {
		t.Error("numpy staged despite conflict")
	}
	if _, ok := f.load(t).Table(manifest.MainGroup)["numpy"]; ok {
		t.Error("numpy recorded despite conflict")
	}
}

func TestAdd_MissingManifest(t *testing.T) {
	f := newFixture(t)
	os.Remove(manifest.Path(f.dir))

	_, err := f.add(t, Options{Packages: []string{"requests"}})
	if !errors.Is(err, errors.ErrCodeManifestIO) {
		t.Errorf("err = %v, want MANIFEST_IO", err)
	}
}

func TestAdd_ReportsManifestWrite(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	defer observability.Reset()

	f := newFixture(t)
	if _, err := f.add(t, Options{Packages: []string{"requests"}}); err != nil {
		t.Fatal(err)
	}

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.writes) != 1 || hooks.writes[0] != manifest.Path(f.dir) {
		t.Errorf("manifest writes = %v", hooks.writes)
	}
	if hooks.applied != 1 {
		t.Errorf("apply completions = %d, want 1", hooks.applied)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	mu      sync.Mutex
	writes  []string
	applied int
}

func (h *recordingHooks) OnApplyComplete(context.Context, string, int, time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.applied++
}

func (h *recordingHooks) OnManifestWrite(_ context.Context, path string, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		h.writes = append(h.writes, path)
	}
}

func ExampleRunner_Add() {
	runner := NewRunner(config.Default(), nil)
	result, err := runner.Add(context.Background(), Options{
		Dir:      ".",
		Packages: []string{"requests@^2.31"},
		DryRun:   true,
	})
	if err != nil {
		fmt.Println(errors.UserMessage(err))
		return
	}
	fmt.Println(len(result.Packages))
}
