// Package pkg provides the core libraries behind the poet "add" command.
//
// # Overview
//
// poet records new dependencies of a Python project in its pyproject.toml
// and stages them into the project's virtual environment. The pkg directory
// is organized by stage:
//
//  1. [specifier] - Classify command-line arguments into package specifiers
//  2. [provider] - Resolve specifiers against the index, git or local paths
//  3. [manifest] - Load, merge and atomically write pyproject.toml
//  4. [venv] - Locate, create and install into the virtual environment
//  5. [pipeline] - Orchestration (classify → resolve → apply → write)
//
// Supporting packages:
//
//   - [integrations] - PyPI JSON client and git runner
//   - [config] - Configuration file, environment overrides and defaults
//   - [errors] - Coded errors shared by every stage
//   - [observability] - Hooks and Prometheus metrics
//   - [buildinfo] - Version information injected at build time
//
// # Architecture
//
// The data flow of one add operation:
//
//	"requests@^2.31"  "git+https://…/black.git#24.1.0"  "./libs/shared"
//	         ↓
//	    [specifier] Named / VersionControl / FilePath / Folder
//	         ↓
//	    [provider] registry, vcs and local providers run concurrently
//	         ↓
//	    [venv] merge into the target group, stage into the environment
//	         ↓
//	    [manifest] pyproject.toml written once, atomically
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/poet/pkg/config"
//	    "github.com/matzehuels/poet/pkg/pipeline"
//	)
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	runner := pipeline.NewRunner(cfg, nil)
//	result, err := runner.Add(context.Background(), pipeline.Options{
//	    Dir:      ".",
//	    Packages: []string{"requests@^2.31"},
//	})
//
// [specifier]: github.com/matzehuels/poet/pkg/specifier
// [provider]: github.com/matzehuels/poet/pkg/provider
// [manifest]: github.com/matzehuels/poet/pkg/manifest
// [venv]: github.com/matzehuels/poet/pkg/venv
// [pipeline]: github.com/matzehuels/poet/pkg/pipeline
// [integrations]: github.com/matzehuels/poet/pkg/integrations
// [config]: github.com/matzehuels/poet/pkg/config
// [errors]: github.com/matzehuels/poet/pkg/errors
// [observability]: github.com/matzehuels/poet/pkg/observability
// [buildinfo]: github.com/matzehuels/poet/pkg/buildinfo
package pkg
