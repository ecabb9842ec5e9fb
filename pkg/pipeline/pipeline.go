// Package pipeline provides the add pipeline for poet.
//
// This package implements the complete classify → resolve → apply → write
// sequence behind "poet add". The CLI only gathers flags and prints results;
// everything with a side effect on the project happens here.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Classify: Turn each argument into a specifier (registry name,
//     repository, archive or folder)
//  2. Resolve: Run the providers concurrently and collect one package per
//     specifier
//  3. Apply: Merge the packages into the target dependency table and stage
//     them into the virtual environment
//  4. Write: Persist the updated pyproject.toml
//
// Any failure before stage 4 leaves pyproject.toml untouched. Dry runs stop
// after checking the merge.
//
// # Usage
//
//	runner := pipeline.NewRunner(cfg, logger)
//	result, err := runner.Add(ctx, pipeline.Options{
//	    Dir:      ".",
//	    Packages: []string{"requests@^2.31", "git+https://github.com/psf/black.git#24.1.0"},
//	    Group:    "dev",
//	})
//	if err != nil {
//	    return err
//	}
//	for _, pkg := range result.Packages {
//	    fmt.Println(pkg.Name, pkg.Dependency)
//	}
package pipeline

import (
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/poet/pkg/errors"
	"github.com/matzehuels/poet/pkg/manifest"
	"github.com/matzehuels/poet/pkg/provider"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all inputs of one add operation.
type Options struct {
	Dir      string   // Project directory holding pyproject.toml; "" means "."
	Packages []string // Specifiers exactly as typed
	Group    string   // Target dependency group; "" means main
	Dev      bool     // Shorthand for Group = "dev"
	Extras   []string // Extras recorded on every added dependency
	Editable bool     // Record local folders with develop = true
	DryRun   bool     // Resolve and check the merge without changing anything

	// Runtime options
	Logger *log.Logger

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outcome of an add operation.
type Result struct {
	// OperationID correlates log lines of one invocation.
	OperationID string

	// Group is the dependency group the packages were added to.
	Group string

	// Packages are the resolved packages in resolution order.
	Packages []provider.Package

	// Manifest is the updated project. For dry runs it is never written.
	Manifest *manifest.Project

	// Environment is the root of the environment packages were staged
	// into; empty for dry runs.
	Environment string

	// Stats contains timing information.
	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	PackageCount int
	ResolveTime  time.Duration
	ApplyTime    time.Duration
	WriteTime    time.Duration
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks the options and fills defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if len(o.Packages) == 0 {
		return errors.New(errors.ErrCodeInvalidPackage, "no packages given")
	}
	if o.Dir == "" {
		o.Dir = "."
	}

	switch {
	case o.Dev && o.Group != "" && o.Group != manifest.DevGroup:
		return errors.New(errors.ErrCodeInvalidConfig, "--dev cannot be combined with --group %s", o.Group)
	case o.Dev:
		o.Group = manifest.DevGroup
	case o.Group == "":
		o.Group = manifest.MainGroup
	}
	if err := errors.ValidateGroupName(o.Group); err != nil {
		return err
	}

	extras, err := normalizeExtras(o.Extras)
	if err != nil {
		return err
	}
	o.Extras = extras

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// normalizeExtras splits comma-separated values, drops blanks and duplicates,
// and sorts the result.
func normalizeExtras(raw []string) ([]string, error) {
	var out []string
	for _, value := range raw {
		for _, extra := range strings.Split(value, ",") {
			extra = strings.TrimSpace(extra)
			if extra == "" {
				continue
			}
			if err := errors.ValidatePythonPackageName(extra); err != nil {
				return nil, err
			}
			out = append(out, extra)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
