package provider

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/poet/pkg/integrations/git"
	"github.com/matzehuels/poet/pkg/observability"
	"github.com/matzehuels/poet/pkg/specifier"
)

// Orchestrator partitions specifiers by kind and runs each provider once
// over its partition.
type Orchestrator struct {
	Registry       Provider[specifier.Named]
	Cloner         git.Cloner
	Local          Provider[specifier.Specifier]
	MaxConcurrency int
}

// Resolve resolves specs into packages. Named specifiers go to the registry,
// repositories are cloned into outputDir, and local paths are inspected; the
// providers run concurrently. The result lists registry packages first, then
// repositories, then local paths. Any provider failure fails the whole call.
func (o *Orchestrator) Resolve(ctx context.Context, specs []specifier.Specifier, outputDir string) ([]Package, error) {
	var (
		named []specifier.Named
		vcs   []specifier.VersionControl
		local []specifier.Specifier
	)
	for _, s := range specs {
		switch s := s.(type) {
		case specifier.Named:
			named = append(named, s)
		case specifier.VersionControl:
			vcs = append(vcs, s)
		case specifier.FilePath, specifier.Folder:
			local = append(local, s)
		}
	}

	var fromRegistry, fromVCS, fromLocal []Package
	g, gctx := errgroup.WithContext(ctx)
	if len(named) > 0 {
		g.Go(func() (err error) {
			fromRegistry, err = run(gctx, o.Registry, named)
			return err
		})
	}
	if len(vcs) > 0 {
		g.Go(func() (err error) {
			fromVCS, err = run[specifier.VersionControl](gctx, NewVCS(o.Cloner, outputDir, o.MaxConcurrency), vcs)
			return err
		})
	}
	if len(local) > 0 {
		g.Go(func() (err error) {
			fromLocal, err = run(gctx, o.local(), local)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Package, 0, len(fromRegistry)+len(fromVCS)+len(fromLocal))
	out = append(out, fromRegistry...)
	out = append(out, fromVCS...)
	out = append(out, fromLocal...)
	return out, nil
}

func (o *Orchestrator) local() Provider[specifier.Specifier] {
	if o.Local != nil {
		return o.Local
	}
	return &Local{}
}

// run calls p.Download and reports it to the pipeline hooks.
func run[S specifier.Specifier](ctx context.Context, p Provider[S], specs []S) ([]Package, error) {
	hooks := observability.Pipeline()
	hooks.OnResolveStart(ctx, p.Name(), len(specs))
	start := time.Now()
	pkgs, err := p.Download(ctx, specs)
	hooks.OnResolveComplete(ctx, p.Name(), len(pkgs), time.Since(start), err)
	return pkgs, err
}
