package provider

import (
	"context"
	"errors"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	poeterrors "github.com/matzehuels/poet/pkg/errors"
	"github.com/matzehuels/poet/pkg/integrations"
	"github.com/matzehuels/poet/pkg/integrations/pypi"
	"github.com/matzehuels/poet/pkg/manifest"
	"github.com/matzehuels/poet/pkg/specifier"
)

// ProjectFetcher looks up project metadata on a package index.
// [*pypi.Client] implements it.
type ProjectFetcher interface {
	FetchProject(ctx context.Context, name string) (*pypi.ProjectInfo, error)
}

// Registry resolves named packages against a package index.
type Registry struct {
	client         ProjectFetcher
	maxConcurrency int
}

// NewRegistry creates a registry provider. maxConcurrency bounds the number of
// lookups in flight; zero or less means unbounded.
func NewRegistry(client ProjectFetcher, maxConcurrency int) *Registry {
	return &Registry{client: client, maxConcurrency: maxConcurrency}
}

// Name implements [Provider].
func (r *Registry) Name() string { return "registry" }

// Download issues one lookup per distinct package name, concurrently, and
// returns one versioned entry per name in first-seen order.
//
// A constraint on the specifier is enforced: the index's latest version is
// used when it satisfies the constraint, otherwise the highest installable
// release that does. Without a constraint the latest version is used.
func (r *Registry) Download(ctx context.Context, specs []specifier.Named) ([]Package, error) {
	specs = distinctNamed(specs)
	if len(specs) == 0 {
		return nil, nil
	}

	results := make([]Package, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	if r.maxConcurrency > 0 {
		g.SetLimit(r.maxConcurrency)
	}
	for i, spec := range specs {
		g.Go(func() error {
			pkg, err := r.resolve(gctx, spec)
			if err != nil {
				return err
			}
			results[i] = pkg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Registry) resolve(ctx context.Context, spec specifier.Named) (Package, error) {
	info, err := r.client.FetchProject(ctx, spec.Name)
	if err != nil {
		return Package{}, lookupError(spec.Name, err)
	}
	version, err := selectVersion(spec, info)
	if err != nil {
		return Package{}, err
	}
	return Package{
		Entry:   manifest.Entry{Name: spec.Name, Dependency: manifest.Versioned(version)},
		Version: version,
	}, nil
}

func lookupError(name string, err error) error {
	switch {
	case errors.Is(err, integrations.ErrNotFound):
		return poeterrors.Wrap(poeterrors.ErrCodePackageNotFound, err, "package %s not found", name)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return poeterrors.Wrap(poeterrors.ErrCodeNetwork, err, "look up %s", name)
	}
}

func selectVersion(spec specifier.Named, info *pypi.ProjectInfo) (string, error) {
	latest, err := semver.NewVersion(info.Version)
	if err != nil {
		return "", poeterrors.Wrap(poeterrors.ErrCodeInvalidVersionResolved, err,
			"index reported unparsable version %q for %s", info.Version, spec.Name)
	}
	if spec.Constraint == nil {
		return info.Version, nil
	}
	if !info.Yanked && spec.Constraint.Check(latest) {
		return info.Version, nil
	}

	var best *semver.Version
	var bestText string
	for _, text := range info.Releases {
		v, err := semver.NewVersion(text)
		if err != nil || !spec.Constraint.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestText = v, text
		}
	}
	if best == nil {
		return "", poeterrors.New(poeterrors.ErrCodeNoMatchingVersion,
			"no version of %s satisfies %s (latest is %s)", spec.Name, spec.ConstraintText, info.Version)
	}
	return bestText, nil
}

// distinctNamed drops repeated names, keeping the first occurrence.
func distinctNamed(specs []specifier.Named) []specifier.Named {
	seen := make(map[string]bool, len(specs))
	out := make([]specifier.Named, 0, len(specs))
	for _, s := range specs {
		if seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	return out
}
