// Package provider turns classified specifiers into resolved dependencies.
//
// # Providers
//
// A [Provider] handles one kind of specifier:
//
//   - [Registry]: named packages, looked up on a PyPI-compatible index
//   - [VCS]: repository URLs, cloned into an output directory
//   - [Local]: wheel and sdist archives or project folders on disk
//
// Each provider resolves its batch concurrently and fails as a unit: one bad
// specifier fails the batch and nothing is returned.
//
// # Orchestration
//
// [Orchestrator.Resolve] partitions a mixed list, runs every provider once
// over its own partition in parallel and concatenates the results:
//
//	o := &provider.Orchestrator{
//	    Registry: provider.NewRegistry(pypi.NewClient("", 0), 8),
//	    Cloner:   git.NewExec(),
//	}
//	pkgs, err := o.Resolve(ctx, specs, stagingDir)
//
// # Versions
//
// The registry honours version constraints. Without one, the index's latest
// version is recorded exactly as reported; with one, the latest version is
// used if it satisfies the constraint, otherwise the highest installable
// release that does.
package provider
