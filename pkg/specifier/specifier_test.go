package specifier

import (
	"strings"
	"testing"

	"github.com/matzehuels/poet/pkg/errors"
)

func TestClassify_Named(t *testing.T) {
	tests := []struct {
		raw            string
		wantName       string
		wantConstraint string
		wantNil        bool
	}{
		{"numpy", "numpy", "", true},
		{"numpy@1.2.3", "numpy", "1.2.3", false},
		{"requests@^2.31", "requests", "^2.31", false},
		{"Django@>=4.0, <5.0", "Django", ">=4.0, <5.0", false},
		{"typing_extensions", "typing_extensions", "", true},
		{"zope.interface@~5.4", "zope.interface", "~5.4", false},
		{"flask@latest", "flask", "latest", true},
		{"  numpy  ", "numpy", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec, err := Classify(tt.raw)
			if err != nil {
				t.Fatalf("Classify(%q) failed: %v", tt.raw, err)
			}
			n, ok := spec.(Named)
			if !ok {
				t.Fatalf("Classify(%q) = %T, want Named", tt.raw, spec)
			}
			if n.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", n.Name, tt.wantName)
			}
			if n.ConstraintText != tt.wantConstraint {
				t.Errorf("ConstraintText = %q, want %q", n.ConstraintText, tt.wantConstraint)
			}
			if (n.Constraint == nil) != tt.wantNil {
				t.Errorf("Constraint nil = %v, want %v", n.Constraint == nil, tt.wantNil)
			}
		})
	}
}

func TestClassify_NamedConstraintIsChecked(t *testing.T) {
	spec, err := Classify("numpy@1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	n := spec.(Named)
	if n.Constraint == nil {
		t.Fatal("expected a parsed constraint")
	}
	if n.Constraint.String() == "" {
		t.Error("constraint should render")
	}
}

func TestClassify_VersionControl(t *testing.T) {
	tests := []struct {
		raw          string
		wantName     string
		wantURL      string
		wantRevision string
	}{
		{"https://github.com/org/repo.git#main", "repo", "https://github.com/org/repo.git", "main"},
		{"https://github.com/org/repo", "repo", "https://github.com/org/repo", ""},
		{"https://gitlab.com/group/sub/tool.git/", "tool", "https://gitlab.com/group/sub/tool.git/", ""},
		{"ssh://git@github.com/org/my-lib.git#v1.0.0", "my-lib", "ssh://git@github.com/org/my-lib.git", "v1.0.0"},
		{"git://example.org/pkg.git", "pkg", "git://example.org/pkg.git", ""},
		{"git+ssh://git@github.com/org/repo.git#4f2a9c1", "repo", "git+ssh://git@github.com/org/repo.git", "4f2a9c1"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec, err := Classify(tt.raw)
			if err != nil {
				t.Fatalf("Classify(%q) failed: %v", tt.raw, err)
			}
			v, ok := spec.(VersionControl)
			if !ok {
				t.Fatalf("Classify(%q) = %T, want VersionControl", tt.raw, spec)
			}
			if v.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", v.Name, tt.wantName)
			}
			if v.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", v.URL, tt.wantURL)
			}
			if v.Revision != tt.wantRevision {
				t.Errorf("Revision = %q, want %q", v.Revision, tt.wantRevision)
			}
			if v.String() != tt.raw {
				t.Errorf("String() = %q, want %q", v.String(), tt.raw)
			}
		})
	}
}

func TestClassify_GitPlusHTTP(t *testing.T) {
	tests := []struct {
		raw          string
		wantURL      string
		wantRevision string
	}{
		{"git+https://github.com/psf/black.git#24.1.0", "https://github.com/psf/black.git", "24.1.0"},
		{"git+http://git.internal/tools/black", "http://git.internal/tools/black", ""},
		{"GIT+HTTPS://github.com/psf/black.git", "https://github.com/psf/black.git", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec, err := Classify(tt.raw)
			if err != nil {
				t.Fatalf("Classify(%q) failed: %v", tt.raw, err)
			}
			v, ok := spec.(VersionControl)
			if !ok {
				t.Fatalf("Classify(%q) = %T, want VersionControl", tt.raw, spec)
			}
			if v.Name != "black" {
				t.Errorf("Name = %q, want black", v.Name)
			}
			if v.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", v.URL, tt.wantURL)
			}
			if v.Revision != tt.wantRevision {
				t.Errorf("Revision = %q, want %q", v.Revision, tt.wantRevision)
			}
		})
	}
}

func TestClassify_RepoURLContainsPath(t *testing.T) {
	spec, err := Classify("https://github.com/org/repo.git#main")
	if err != nil {
		t.Fatal(err)
	}
	v := spec.(VersionControl)
	if !strings.Contains(v.URL, "org/repo") {
		t.Errorf("URL %q should contain org/repo", v.URL)
	}
}

func TestClassify_Paths(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind Kind
		wantPath string
	}{
		{"./dist/requests-2.31.0-py3-none-any.whl", KindFilePath, "./dist/requests-2.31.0-py3-none-any.whl"},
		{"../pkg-1.0.tar.gz", KindFilePath, "../pkg-1.0.tar.gz"},
		{"/tmp/archive.ZIP", KindFilePath, "/tmp/archive.ZIP"},
		{"file:///opt/wheels/x-1.0-py3-none-any.whl", KindFilePath, "/opt/wheels/x-1.0-py3-none-any.whl"},
		{"./libs/mylib", KindFolder, "./libs/mylib"},
		{"../sibling", KindFolder, "../sibling"},
		{"/abs/project", KindFolder, "/abs/project"},
		{"~/code/proj", KindFolder, "~/code/proj"},
		{".", KindFolder, "."},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec, err := Classify(tt.raw)
			if err != nil {
				t.Fatalf("Classify(%q) failed: %v", tt.raw, err)
			}
			if spec.Kind() != tt.wantKind {
				t.Fatalf("Kind = %v, want %v", spec.Kind(), tt.wantKind)
			}
			if spec.String() != tt.wantPath {
				t.Errorf("path = %q, want %q", spec.String(), tt.wantPath)
			}
		})
	}
}

func TestClassify_Unknown(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"numpy@1.2.3@x",
		"ftp://example.org/repo.git",
		"https://github.com/org/repo.git#main#extra",
		"https://github.com/org/repo.git#",
		"my package",
		"-leading-dash",
		"https:///missing-host",
		"https://github.com/org/repo.git#--upload-pack=touch",
		"https://example.com/dist/foo-1.0.tar.gz",
		"git+https://example.com/dist/foo-1.0-py3-none-any.whl",
	}

	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			spec, err := Classify(raw)
			if err == nil {
				t.Fatalf("Classify(%q) = %v, want error", raw, spec)
			}
			if !errors.Is(err, errors.ErrCodeUnknownPackageFormat) {
				t.Errorf("Classify(%q) code = %v, want UNKNOWN_PACKAGE_FORMAT", raw, errors.GetCode(err))
			}
		})
	}
}

func TestClassify_InvalidConstraint(t *testing.T) {
	for _, raw := range []string{"numpy@not-a-version", "numpy@", "requests@banana"} {
		t.Run(raw, func(t *testing.T) {
			_, err := Classify(raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, errors.ErrCodeInvalidVersionConstraint) {
				t.Errorf("code = %v, want INVALID_VERSION_CONSTRAINT", errors.GetCode(err))
			}
			if !strings.Contains(err.Error(), "numpy") && !strings.Contains(err.Error(), "requests") {
				t.Errorf("error should name the package: %v", err)
			}
		})
	}
}

func TestClassify_PrecedenceVCSBeforeNamed(t *testing.T) {
	// Contains "@" but is a valid ssh URL: VCS must win.
	spec, err := Classify("ssh://git@github.com/org/repo.git")
	if err != nil {
		t.Fatal(err)
	}
	if spec.Kind() != KindVersionControl {
		t.Errorf("Kind = %v, want vcs", spec.Kind())
	}
}

func TestClassify_PrecedenceFileBeforeFolder(t *testing.T) {
	spec, err := Classify("./build/pkg-1.0.tgz")
	if err != nil {
		t.Fatal(err)
	}
	if spec.Kind() != KindFilePath {
		t.Errorf("Kind = %v, want file", spec.Kind())
	}
}

func TestClassifyAll(t *testing.T) {
	specs, err := ClassifyAll([]string{"requests", "https://github.com/org/repo.git", "./lib"})
	if err != nil {
		t.Fatal(err)
	}
	want := []Kind{KindNamed, KindVersionControl, KindFolder}
	for i, s := range specs {
		if s.Kind() != want[i] {
			t.Errorf("specs[%d].Kind = %v, want %v", i, s.Kind(), want[i])
		}
	}

	if _, err := ClassifyAll([]string{"requests", "bad@1@2"}); err == nil {
		t.Error("ClassifyAll should fail when any input fails")
	}
}

func TestRepoName(t *testing.T) {
	tests := map[string]string{
		"/org/repo.git":  "repo",
		"/org/repo":      "repo",
		"/org/repo.git/": "repo",
		"":               "",
		"/":              "",
	}
	for in, want := range tests {
		if got := RepoName(in); got != want {
			t.Errorf("RepoName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindNamed.String() != "named" || KindVersionControl.String() != "vcs" ||
		KindFilePath.String() != "file" || KindFolder.String() != "folder" || Kind(99).String() != "unknown" {
		t.Error("unexpected Kind strings")
	}
}
