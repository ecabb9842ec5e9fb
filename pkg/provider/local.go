package provider

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	poeterrors "github.com/matzehuels/poet/pkg/errors"
	"github.com/matzehuels/poet/pkg/manifest"
	"github.com/matzehuels/poet/pkg/specifier"
)

// unknownVersion is recorded for local projects that declare no version.
const unknownVersion = "0.0.0"

// Local resolves archive and folder specifiers without network access.
type Local struct {
	// Editable records folders with develop = true.
	Editable bool
	// ProjectDir is the directory relative paths are recorded against;
	// the working directory when empty.
	ProjectDir string
}

// Name implements [Provider].
func (l *Local) Name() string { return "local" }

// Download inspects each path. Folders are named by their pyproject.toml;
// archives by their file name. Relative paths are read from the working
// directory and recorded relative to ProjectDir; absolute and home paths are
// recorded as typed. Location is always absolute.
func (l *Local) Download(ctx context.Context, specs []specifier.Specifier) ([]Package, error) {
	out := make([]Package, 0, len(specs))
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			pkg Package
			err error
		)
		switch s := spec.(type) {
		case specifier.Folder:
			pkg, err = l.folder(s)
		case specifier.FilePath:
			pkg, err = l.archive(s)
		default:
			err = poeterrors.New(poeterrors.ErrCodeInternal, "local provider cannot resolve %s specifier %s", spec.Kind(), spec)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, pkg)
	}
	return out, nil
}

func (l *Local) folder(s specifier.Folder) (Package, error) {
	dir, recorded, err := l.locate(s.Path)
	if err != nil {
		return Package{}, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return Package{}, poeterrors.Wrap(poeterrors.ErrCodeInvalidPackage, err, "folder %s", s.Path)
	}
	if !info.IsDir() {
		return Package{}, poeterrors.New(poeterrors.ErrCodeInvalidPackage, "%s is not a directory", s.Path)
	}

	name, version, err := projectIdentity(dir)
	if err != nil {
		return Package{}, err
	}
	return Package{
		Entry:    manifest.Entry{Name: name, Dependency: manifest.PathSource(recorded, l.Editable)},
		Version:  version,
		Location: dir,
	}, nil
}

// projectIdentity reads the name and version of the project in dir,
// preferring [tool.poetry] over [project].
func projectIdentity(dir string) (name, version string, err error) {
	path := filepath.Join(dir, manifest.FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", poeterrors.Wrap(poeterrors.ErrCodeInvalidPackage, err, "no project in %s", dir)
	}
	var pyproject struct {
		Tool struct {
			Poetry struct {
				Name    string `toml:"name"`
				Version string `toml:"version"`
			} `toml:"poetry"`
		} `toml:"tool"`
		Project struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"project"`
	}
	if err := toml.Unmarshal(data, &pyproject); err != nil {
		return "", "", poeterrors.Wrap(poeterrors.ErrCodeInvalidPackage, err, "parse %s", path)
	}

	name, version = pyproject.Tool.Poetry.Name, pyproject.Tool.Poetry.Version
	if name == "" {
		name, version = pyproject.Project.Name, pyproject.Project.Version
	}
	if name == "" {
		return "", "", poeterrors.New(poeterrors.ErrCodeInvalidPackage, "%s declares no project name", path)
	}
	if version == "" {
		version = unknownVersion
	}
	return name, version, nil
}

// wheelName matches {name}-{version}(-{build})?-{python}-{abi}-{platform}.whl.
var wheelName = regexp.MustCompile(`^([A-Za-z0-9_.]+)-([A-Za-z0-9_.!+]+)-`)

func (l *Local) archive(s specifier.FilePath) (Package, error) {
	path, recorded, err := l.locate(s.Path)
	if err != nil {
		return Package{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Package{}, poeterrors.Wrap(poeterrors.ErrCodeInvalidPackage, err, "archive %s", s.Path)
	}
	if info.IsDir() {
		return Package{}, poeterrors.New(poeterrors.ErrCodeInvalidPackage, "%s is a directory", s.Path)
	}

	name, version, ok := archiveIdentity(filepath.Base(path))
	if !ok {
		return Package{}, poeterrors.New(poeterrors.ErrCodeInvalidPackage,
			"cannot determine project name from archive %s", filepath.Base(path))
	}
	return Package{
		Entry:    manifest.Entry{Name: name, Dependency: manifest.PathSource(recorded, false)},
		Version:  version,
		Location: path,
	}, nil
}

// archiveIdentity splits a wheel or sdist file name into project name and version.
func archiveIdentity(base string) (name, version string, ok bool) {
	if strings.HasSuffix(strings.ToLower(base), ".whl") {
		m := wheelName.FindStringSubmatch(base)
		if m == nil {
			return "", "", false
		}
		return m[1], m[2], true
	}

	stem := base
	for _, suffix := range []string{".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".zip"} {
		if strings.HasSuffix(strings.ToLower(stem), suffix) {
			stem = stem[:len(stem)-len(suffix)]
			break
		}
	}
	i := strings.LastIndex(stem, "-")
	if i <= 0 || i == len(stem)-1 {
		return "", "", false
	}
	return stem[:i], stem[i+1:], true
}

// locate returns the absolute location of typed and the path to record for it.
func (l *Local) locate(typed string) (abs, recorded string, err error) {
	expanded := expandHome(typed)
	abs, err = filepath.Abs(expanded)
	if err != nil {
		return "", "", poeterrors.Wrap(poeterrors.ErrCodeInvalidPackage, err, "resolve %s", typed)
	}
	if filepath.IsAbs(typed) || expanded != typed {
		return abs, typed, nil
	}

	project := l.ProjectDir
	if project == "" {
		project = "."
	}
	project, err = filepath.Abs(project)
	if err != nil {
		return "", "", poeterrors.Wrap(poeterrors.ErrCodeInvalidPackage, err, "resolve %s", l.ProjectDir)
	}
	rel, err := filepath.Rel(project, abs)
	if err != nil {
		return abs, filepath.ToSlash(abs), nil
	}
	rel = filepath.ToSlash(rel)
	if rel != "." && rel != ".." && !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return abs, rel, nil
}

func expandHome(p string) string {
	rest, ok := strings.CutPrefix(p, "~/")
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}
