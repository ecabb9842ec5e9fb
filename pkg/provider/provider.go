package provider

import (
	"context"

	"github.com/matzehuels/poet/pkg/manifest"
	"github.com/matzehuels/poet/pkg/specifier"
)

// Provider resolves one kind of specifier into manifest entries.
//
// Download fails as a unit: when any specifier cannot be resolved, the
// error is returned and no packages are. On success every distinct input
// appears exactly once in the result.
type Provider[S specifier.Specifier] interface {
	// Name identifies the provider in logs and metrics (e.g., "registry").
	Name() string
	Download(ctx context.Context, specs []S) ([]Package, error)
}

// Package is a resolved dependency: the entry to record in the manifest plus
// what the environment needs to install it.
type Package struct {
	manifest.Entry
	Version  string // Concrete installed version, commit hash for git sources
	Location string // Local checkout, folder or archive; empty for index packages
}

// Entries extracts the manifest entries from pkgs.
func Entries(pkgs []Package) []manifest.Entry {
	out := make([]manifest.Entry, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.Entry
	}
	return out
}
