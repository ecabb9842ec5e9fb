package provider

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	poeterrors "github.com/matzehuels/poet/pkg/errors"
	"github.com/matzehuels/poet/pkg/integrations"
	"github.com/matzehuels/poet/pkg/integrations/git"
	"github.com/matzehuels/poet/pkg/manifest"
	"github.com/matzehuels/poet/pkg/specifier"
)

// VCS stages repositories into an output directory it owns and records them
// as git dependencies.
type VCS struct {
	cloner         git.Cloner
	outputDir      string
	maxConcurrency int
}

// NewVCS creates a version-control provider that clones into
// outputDir/<name>. outputDir must exist and should be empty.
func NewVCS(cloner git.Cloner, outputDir string, maxConcurrency int) *VCS {
	return &VCS{cloner: cloner, outputDir: outputDir, maxConcurrency: maxConcurrency}
}

// Name implements [Provider].
func (v *VCS) Name() string { return "vcs" }

// Download clones every repository concurrently. Identical specifiers are
// cloned once; two different repositories with the same derived name are an
// ADD_CONFLICT since both would be recorded under one key.
func (v *VCS) Download(ctx context.Context, specs []specifier.VersionControl) ([]Package, error) {
	specs, err := distinctVCS(specs)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, nil
	}

	results := make([]Package, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	if v.maxConcurrency > 0 {
		g.SetLimit(v.maxConcurrency)
	}
	for i, spec := range specs {
		g.Go(func() error {
			dest := filepath.Join(v.outputDir, spec.Name)
			co, err := v.cloner.Clone(gctx, spec.URL, spec.Revision, dest)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				return poeterrors.Wrap(poeterrors.ErrCodeVCS, err, "stage %s", spec)
			}
			results[i] = Package{
				Entry:    manifest.Entry{Name: spec.Name, Dependency: manifest.GitSource(spec.URL, spec.Revision)},
				Version:  co.Commit,
				Location: co.Dir,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func distinctVCS(specs []specifier.VersionControl) ([]specifier.VersionControl, error) {
	byName := make(map[string]specifier.VersionControl, len(specs))
	out := make([]specifier.VersionControl, 0, len(specs))
	var clashes []string
	for _, s := range specs {
		prev, ok := byName[s.Name]
		if !ok {
			byName[s.Name] = s
			out = append(out, s)
			continue
		}
		if !sameCheckout(prev, s) {
			clashes = append(clashes, s.Name)
		}
	}
	if len(clashes) > 0 {
		slices.Sort(clashes)
		clashes = slices.Compact(clashes)
		return nil, poeterrors.Wrap(poeterrors.ErrCodeAddConflict, &poeterrors.ConflictError{Names: clashes},
			"different repositories share the name %s", strings.Join(clashes, ", "))
	}
	return out, nil
}

// sameCheckout reports whether a and b clone the same repository at the same
// revision, ignoring URL spelling (git+ prefix, .git suffix, trailing slash).
func sameCheckout(a, b specifier.VersionControl) bool {
	return a.Revision == b.Revision &&
		integrations.NormalizeRepoURL(a.URL) == integrations.NormalizeRepoURL(b.URL)
}
