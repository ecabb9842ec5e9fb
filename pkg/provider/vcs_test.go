package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/matzehuels/poet/pkg/errors"
	"github.com/matzehuels/poet/pkg/integrations/git"
	"github.com/matzehuels/poet/pkg/manifest"
	"github.com/matzehuels/poet/pkg/specifier"
)

// fakeCloner creates dest and records each clone instead of running git.
type fakeCloner struct {
	fail map[string]bool

	mu     sync.Mutex
	clones []string
}

func (f *fakeCloner) Clone(ctx context.Context, url, rev, dest string) (*git.Checkout, error) {
	f.mu.Lock()
	f.clones = append(f.clones, url+"#"+rev)
	f.mu.Unlock()

	if f.fail[url] {
		return nil, fmt.Errorf("git clone %s: exit status 128", url)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}
	return &git.Checkout{URL: url, Ref: rev, Commit: "0123456789abcdef0123456789abcdef01234567", Dir: dest}, nil
}

func vcsSpec(t *testing.T, raw string) specifier.VersionControl {
	t.Helper()
	s, err := specifier.Classify(raw)
	if err != nil {
		t.Fatalf("Classify(%q): %v", raw, err)
	}
	v, ok := s.(specifier.VersionControl)
	if !ok {
		t.Fatalf("Classify(%q) = %T", raw, s)
	}
	return v
}

func TestVCSDownload(t *testing.T) {
	out := t.TempDir()
	cloner := &fakeCloner{}
	v := NewVCS(cloner, out, 0)

	pkgs, err := v.Download(context.Background(), []specifier.VersionControl{
		vcsSpec(t, "https://github.com/org/alpha.git#main"),
		vcsSpec(t, "https://github.com/org/beta"),
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("len = %d, want 2", len(pkgs))
	}

	alpha := pkgs[0]
	if alpha.Name != "alpha" {
		t.Errorf("Name = %q", alpha.Name)
	}
	if want := manifest.GitSource("https://github.com/org/alpha.git", "main"); !reflect.DeepEqual(alpha.Dependency, want) {
		t.Errorf("Dependency = %+v, want %+v", alpha.Dependency, want)
	}
	if alpha.Location != filepath.Join(out, "alpha") {
		t.Errorf("Location = %q", alpha.Location)
	}
	if len(alpha.Version) != 40 {
		t.Errorf("Version = %q, want commit hash", alpha.Version)
	}
	if pkgs[1].Dependency.Rev != "" {
		t.Errorf("beta should have no revision: %+v", pkgs[1].Dependency)
	}
}

func TestVCSDownload_Failure(t *testing.T) {
	cloner := &fakeCloner{fail: map[string]bool{"https://github.com/org/gone.git": true}}
	pkgs, err := NewVCS(cloner, t.TempDir(), 0).Download(context.Background(), []specifier.VersionControl{
		vcsSpec(t, "https://github.com/org/alpha.git"),
		vcsSpec(t, "https://github.com/org/gone.git"),
	})
	if err == nil {
		t.Fatalf("expected error, got %v", pkgs)
	}
	if pkgs != nil {
		t.Error("partial batch returned")
	}
	if !errors.Is(err, errors.ErrCodeVCS) {
		t.Errorf("code = %v, want VCS_ERROR", errors.GetCode(err))
	}
}

func TestVCSDownload_Duplicates(t *testing.T) {
	cloner := &fakeCloner{}
	spec := vcsSpec(t, "https://github.com/org/alpha.git#v1")
	pkgs, err := NewVCS(cloner, t.TempDir(), 0).Download(context.Background(), []specifier.VersionControl{spec, spec})
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 1 || len(cloner.clones) != 1 {
		t.Errorf("identical specifiers cloned %d times, %d packages", len(cloner.clones), len(pkgs))
	}

	respelled := specifier.VersionControl{Name: spec.Name, URL: "https://github.com/org/alpha/", Revision: spec.Revision}
	pkgs, err = NewVCS(&fakeCloner{}, t.TempDir(), 0).Download(context.Background(), []specifier.VersionControl{spec, respelled})
	if err != nil || len(pkgs) != 1 {
		t.Errorf("respelled URL: %d packages, err = %v", len(pkgs), err)
	}

	_, err = NewVCS(cloner, t.TempDir(), 0).Download(context.Background(), []specifier.VersionControl{
		vcsSpec(t, "https://github.com/one/alpha.git"),
		vcsSpec(t, "https://github.com/two/alpha.git"),
	})
	if !errors.Is(err, errors.ErrCodeAddConflict) {
		t.Errorf("code = %v, want ADD_CONFLICT for same-named repositories", errors.GetCode(err))
	}
}
