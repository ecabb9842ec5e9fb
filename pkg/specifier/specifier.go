package specifier

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/poet/pkg/errors"
)

// Kind identifies which source variant a specifier was classified as.
type Kind int

const (
	KindNamed Kind = iota
	KindVersionControl
	KindFilePath
	KindFolder
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNamed:
		return "named"
	case KindVersionControl:
		return "vcs"
	case KindFilePath:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// Specifier is a classified package specifier. The set of implementations is
// closed: [Named], [VersionControl], [FilePath] and [Folder].
type Specifier interface {
	Kind() Kind
	String() string
	sealed()
}

// Named is a registry package, optionally constrained to a version range.
type Named struct {
	Name           string              // Package name as typed by the user
	Constraint     *semver.Constraints // Parsed range, nil when absent or "latest"
	ConstraintText string              // Range exactly as typed, empty when absent
}

func (Named) Kind() Kind { return KindNamed }
func (Named) sealed()    {}

func (n Named) String() string {
	if n.ConstraintText == "" {
		return n.Name
	}
	return n.Name + "@" + n.ConstraintText
}

// VersionControl is a git repository reference.
type VersionControl struct {
	Name     string // Derived from the last path segment of the URL
	URL      string // Repository URL without the revision fragment
	Revision string // Branch, tag or commit; empty for the default branch
}

func (VersionControl) Kind() Kind { return KindVersionControl }
func (VersionControl) sealed()    {}

func (v VersionControl) String() string {
	if v.Revision == "" {
		return v.URL
	}
	return v.URL + "#" + v.Revision
}

// FilePath points at a single local distribution archive.
type FilePath struct {
	Path string
}

func (FilePath) Kind() Kind       { return KindFilePath }
func (FilePath) sealed()          {}
func (f FilePath) String() string { return f.Path }

// Folder points at a local directory containing an installable project.
type Folder struct {
	Path string
}

func (Folder) Kind() Kind       { return KindFolder }
func (Folder) sealed()          {}
func (f Folder) String() string { return f.Path }

// vcsSchemes lists the URL schemes recognized as repository references.
var vcsSchemes = map[string]bool{
	"https":     true,
	"ssh":       true,
	"git":       true,
	"git+ssh":   true,
	"git+https": true,
	"git+http":  true,
}

// strippedSchemes are accepted with a git+ prefix that git itself does not
// understand; the prefix is dropped from the recorded URL.
var strippedSchemes = map[string]bool{
	"git+https": true,
	"git+http":  true,
}

// archiveSuffixes lists file endings that classify a path as a [FilePath].
var archiveSuffixes = []string{".whl", ".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".zip"}

// parser attempts one variant. ok=false means the text is not of this form
// and the next parser is tried; a non-nil err stops classification.
type parser func(raw string) (spec Specifier, ok bool, err error)

// precedence is the fixed classification order.
var precedence = []parser{
	parseVersionControl,
	parseFilePath,
	parseFolder,
	parseNamed,
}

// Classify turns user input into exactly one [Specifier].
//
// Variants are attempted in the order VCS URL, file path, folder, named
// package; the first that matches wins. Text matching no grammar yields an
// UNKNOWN_PACKAGE_FORMAT error. A named package whose "@" suffix is not a
// valid range yields INVALID_VERSION_CONSTRAINT instead.
func Classify(text string) (Specifier, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, unknown(text)
	}
	for _, parse := range precedence {
		spec, ok, err := parse(raw)
		if err != nil {
			return nil, err
		}
		if ok {
			return spec, nil
		}
	}
	return nil, unknown(text)
}

// ClassifyAll classifies every input and stops at the first failure.
func ClassifyAll(texts []string) ([]Specifier, error) {
	specs := make([]Specifier, 0, len(texts))
	for _, t := range texts {
		s, err := Classify(t)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

func unknown(text string) error {
	return errors.New(errors.ErrCodeUnknownPackageFormat, "unknown package format: %q", text)
}

func parseVersionControl(raw string) (Specifier, bool, error) {
	segments := strings.Split(raw, "#")
	if len(segments) > 2 {
		return nil, false, nil
	}

	u, err := url.Parse(segments[0])
	if err != nil || u.Host == "" {
		return nil, false, nil
	}
	scheme := strings.ToLower(u.Scheme)
	if !vcsSchemes[scheme] || isArchive(u.Path) {
		return nil, false, nil
	}

	name := RepoName(u.Path)
	if errors.ValidatePythonPackageName(name) != nil {
		return nil, false, nil
	}

	spec := VersionControl{Name: name, URL: segments[0]}
	if strippedSchemes[scheme] {
		spec.URL = strings.TrimPrefix(scheme, "git+") + segments[0][len(scheme):]
	}
	if len(segments) == 2 {
		// A leading dash would be read as a git option.
		if segments[1] == "" || strings.HasPrefix(segments[1], "-") {
			return nil, false, nil
		}
		spec.Revision = segments[1]
	}
	return spec, true, nil
}

// RepoName derives a project name from a repository URL path:
// the last segment with any ".git" suffix removed.
func RepoName(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	return strings.TrimSuffix(path.Base(p), ".git")
}

func parseFilePath(raw string) (Specifier, bool, error) {
	p, ok := localPath(raw)
	if !ok || !isArchive(p) {
		return nil, false, nil
	}
	return FilePath{Path: p}, true, nil
}

func parseFolder(raw string) (Specifier, bool, error) {
	p, ok := localPath(raw)
	if !ok || isArchive(p) {
		return nil, false, nil
	}
	return Folder{Path: p}, true, nil
}

// localPath reports whether raw is written as an explicit filesystem path and
// returns it with any file:// scheme removed.
func localPath(raw string) (string, bool) {
	if p, ok := strings.CutPrefix(raw, "file://"); ok {
		return p, p != ""
	}
	if raw == "." || raw == ".." {
		return raw, true
	}
	for _, prefix := range []string{"/", "./", "../", "~/"} {
		if strings.HasPrefix(raw, prefix) {
			return raw, true
		}
	}
	return "", false
}

func isArchive(p string) bool {
	lower := strings.ToLower(p)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func parseNamed(raw string) (Specifier, bool, error) {
	segments := strings.Split(raw, "@")
	if len(segments) > 2 {
		return nil, false, nil
	}

	name := segments[0]
	if errors.ValidatePythonPackageName(name) != nil {
		return nil, false, nil
	}

	spec := Named{Name: name}
	if len(segments) == 1 {
		return spec, true, nil
	}

	text := segments[1]
	spec.ConstraintText = text
	if text == "latest" {
		return spec, true, nil
	}
	c, err := parseConstraint(text)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidVersionConstraint, err,
			"invalid version constraint %q for package %s", text, name)
	}
	spec.Constraint = c
	return spec, true, nil
}

func parseConstraint(text string) (*semver.Constraints, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty constraint")
	}
	return semver.NewConstraint(text)
}
