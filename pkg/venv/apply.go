package venv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	poeterrors "github.com/matzehuels/poet/pkg/errors"
	"github.com/matzehuels/poet/pkg/integrations"
	"github.com/matzehuels/poet/pkg/manifest"
	"github.com/matzehuels/poet/pkg/observability"
	"github.com/matzehuels/poet/pkg/provider"
	"github.com/matzehuels/poet/pkg/specifier"
)

const (
	distInfoSuffix = ".dist-info"
	installerName  = "poet"
)

// ApplyChanges records pkgs in the group table of project and stages them
// into the environment. The returned project is a new value; project itself
// is never modified, and nothing is written to the manifest file.
//
// The merge runs first, so a conflict fails before the environment is
// touched. If staging any package fails, everything staged by this call is
// rolled back and the error is returned.
func (e *Environment) ApplyChanges(ctx context.Context, project *manifest.Project, group string,
	requested []specifier.Specifier, pkgs []provider.Package) (*manifest.Project, error) {
	updated, err := project.Add(group, provider.Entries(pkgs))
	if err != nil {
		return nil, err
	}

	hooks := observability.Pipeline()
	hooks.OnApplyStart(ctx, group, len(pkgs))
	start := time.Now()

	tx := &transaction{}
	for _, pkg := range pkgs {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = e.install(tx, pkg, requestFor(pkg, requested)); err != nil {
			break
		}
	}
	if err != nil {
		if rbErr := tx.rollback(); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		hooks.OnApplyComplete(ctx, group, len(pkgs), time.Since(start), err)
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, poeterrors.Wrap(poeterrors.ErrCodeEnvironmentState, err, "install into %s", e.Root)
	}

	tx.commit()
	hooks.OnApplyComplete(ctx, group, len(pkgs), time.Since(start), nil)
	return updated, nil
}

// install writes the install record for pkg and moves its checkout into
// place. Every filesystem change is registered with tx.
func (e *Environment) install(tx *transaction, pkg provider.Package, request string) error {
	site := e.SitePackages()
	dist := distName(pkg.Name)

	for _, old := range e.records(dist) {
		if err := tx.setAside(filepath.Join(site, old)); err != nil {
			return err
		}
	}

	location := pkg.Location
	if pkg.Dependency.Kind() == manifest.KindGit && location != "" {
		target := filepath.Join(e.SourceDir(), dist)
		if err := tx.setAside(target); err != nil {
			return err
		}
		if err := tx.move(location, target); err != nil {
			return fmt.Errorf("move checkout of %s: %w", pkg.Name, err)
		}
		location = target
	}

	tmp := filepath.Join(site, ".tmp-"+uuid.NewString())
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return err
	}
	files, err := recordFiles(pkg, location, request)
	if err == nil {
		err = writeFiles(tmp, files)
	}
	if err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("write record for %s: %w", pkg.Name, err)
	}
	if err := tx.publish(tmp, filepath.Join(site, dist+"-"+versionOrUnknown(pkg.Version)+distInfoSuffix)); err != nil {
		os.RemoveAll(tmp)
		return err
	}

	if pkg.Dependency.Kind() == manifest.KindPath && pkg.Dependency.Develop {
		pth := filepath.Join(site, dist+".pth")
		if err := tx.setAside(pth); err != nil {
			return err
		}
		if err := tx.create(pth, []byte(location+"\n")); err != nil {
			return err
		}
	}
	return nil
}

// recordFiles builds the contents of a dist-info directory.
func recordFiles(pkg provider.Package, location, request string) (map[string][]byte, error) {
	files := map[string][]byte{
		"METADATA":  []byte(fmt.Sprintf("Metadata-Version: 2.1\nName: %s\nVersion: %s\n", pkg.Name, versionOrUnknown(pkg.Version))),
		"INSTALLER": []byte(installerName + "\n"),
	}
	if request != "" {
		files["REQUESTED"] = []byte(request + "\n")
	}

	origin, err := directURL(pkg, location)
	if err != nil {
		return nil, err
	}
	if origin != nil {
		data, err := json.Marshal(origin)
		if err != nil {
			return nil, err
		}
		files["direct_url.json"] = data
	}
	return files, nil
}

func writeFiles(dir string, files map[string][]byte) error {
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// directURLRecord is the direct_url.json document for packages that did not
// come from the index.
type directURLRecord struct {
	URL     string       `json:"url"`
	VCSInfo *vcsInfo     `json:"vcs_info,omitempty"`
	DirInfo *dirInfo     `json:"dir_info,omitempty"`
	Archive *archiveInfo `json:"archive_info,omitempty"`
}

type vcsInfo struct {
	VCS               string `json:"vcs"`
	CommitID          string `json:"commit_id"`
	RequestedRevision string `json:"requested_revision,omitempty"`
}

type dirInfo struct {
	Editable bool `json:"editable,omitempty"`
}

type archiveInfo struct{}

func directURL(pkg provider.Package, location string) (*directURLRecord, error) {
	dep := pkg.Dependency
	switch dep.Kind() {
	case manifest.KindGit:
		return &directURLRecord{
			URL:     dep.Git,
			VCSInfo: &vcsInfo{VCS: "git", CommitID: pkg.Version, RequestedRevision: dep.Ref()},
		}, nil
	case manifest.KindPath:
		if location == "" {
			location = dep.Path
		}
		abs, err := filepath.Abs(location)
		if err != nil {
			return nil, err
		}
		rec := &directURLRecord{URL: fileURL(abs)}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			rec.DirInfo = &dirInfo{Editable: dep.Develop}
		} else {
			rec.Archive = &archiveInfo{}
		}
		return rec, nil
	default:
		return nil, nil
	}
}

func fileURL(abs string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// requestFor returns the specifier text that produced pkg, or "" when none
// of requested matches it.
func requestFor(pkg provider.Package, requested []specifier.Specifier) string {
	for _, spec := range requested {
		switch s := spec.(type) {
		case specifier.Named:
			if integrations.NormalizePkgName(s.Name) == integrations.NormalizePkgName(pkg.Name) {
				return s.String()
			}
		case specifier.VersionControl:
			if s.Name == pkg.Name {
				return s.String()
			}
		case specifier.FilePath:
			if s.Path == pkg.Dependency.Path {
				return s.String()
			}
		case specifier.Folder:
			if s.Path == pkg.Dependency.Path {
				return s.String()
			}
		}
	}
	return ""
}

// distName is the file-system form of a package name: normalized, with
// underscores as separators.
func distName(name string) string {
	return strings.ReplaceAll(integrations.NormalizePkgName(name), "-", "_")
}

func versionOrUnknown(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

// records lists the dist-info directories installed for dist.
func (e *Environment) records(dist string) []string {
	entries, err := os.ReadDir(e.SitePackages())
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if name, _, ok := parseRecord(entry); ok && name == dist {
			out = append(out, entry.Name())
		}
	}
	return out
}

func parseRecord(entry os.DirEntry) (name, version string, ok bool) {
	if !entry.IsDir() || !strings.HasSuffix(entry.Name(), distInfoSuffix) {
		return "", "", false
	}
	return strings.Cut(strings.TrimSuffix(entry.Name(), distInfoSuffix), "-")
}

// Modules returns the normalized names of every installed package, sorted.
func (e *Environment) Modules() ([]string, error) {
	entries, err := os.ReadDir(e.SitePackages())
	if err != nil {
		return nil, poeterrors.Wrap(poeterrors.ErrCodeEnvironmentState, err, "read %s", e.SitePackages())
	}
	var out []string
	for _, entry := range entries {
		if name, _, ok := parseRecord(entry); ok {
			out = append(out, strings.ReplaceAll(name, "_", "-"))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ContainsModule reports whether a package is installed. Names are compared
// after normalization, so "Foo_Bar" matches an installed "foo-bar".
func (e *Environment) ContainsModule(name string) bool {
	return len(e.records(distName(name))) > 0
}

// transaction tracks filesystem changes so they can be undone.
type transaction struct {
	undo    []func() error
	cleanup []string
}

// move renames src to dst and registers the reverse rename.
func (tx *transaction) move(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() error { return os.Rename(dst, src) })
	return nil
}

// publish renames a fully written temporary directory to dst and registers
// its removal.
func (tx *transaction) publish(tmp, dst string) error {
	if err := os.Rename(tmp, dst); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() error { return os.RemoveAll(dst) })
	return nil
}

// create writes a new file and registers its removal.
func (tx *transaction) create(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() error { return os.Remove(path) })
	return nil
}

// setAside moves an existing path out of the way. It is restored on rollback
// and deleted on commit. Missing paths are ignored.
func (tx *transaction) setAside(path string) error {
	if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	backup := filepath.Join(filepath.Dir(path), ".replaced-"+uuid.NewString())
	if err := tx.move(path, backup); err != nil {
		return err
	}
	tx.cleanup = append(tx.cleanup, backup)
	return nil
}

func (tx *transaction) rollback() error {
	var errs []error
	for i := len(tx.undo) - 1; i >= 0; i-- {
		if err := tx.undo[i](); err != nil {
			errs = append(errs, err)
		}
	}
	tx.undo, tx.cleanup = nil, nil
	return errors.Join(errs...)
}

func (tx *transaction) commit() {
	for _, path := range tx.cleanup {
		os.RemoveAll(path)
	}
	tx.undo, tx.cleanup = nil, nil
}
