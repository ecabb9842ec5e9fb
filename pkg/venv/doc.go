// Package venv manages the per-project virtual environment that added
// dependencies are staged into.
//
// # Location
//
// [Locate] places the environment at <project>/.venv when
// virtualenvs.in-project is set or that directory already exists. Otherwise
// it lives under the configured virtualenvs path as <name>-<hash>, where the
// hash is derived from the absolute project directory so that projects with
// the same name do not collide.
//
// # Lifecycle
//
//	env, err := venv.CreateFromConfig(cfg, projectDir)  // reuse or create
//	updated, err := env.ApplyChanges(ctx, project, manifest.MainGroup, specs, pkgs)
//
// [FromExisting] separates an environment that was never created
// ([ErrNotFound]) from one that exists but is unusable ([ErrCorrupted]).
// Both are wrapped in ENVIRONMENT_STATE errors; test them with errors.Is.
//
// # Layout
//
//	pyvenv.cfg
//	lib/site-packages/<dist>-<version>.dist-info/  METADATA, INSTALLER, REQUESTED, direct_url.json
//	lib/site-packages/<dist>.pth                   editable folders
//	src/<dist>/                                    repository checkouts
//
// The installed-module set is the set of dist-info directories; see
// [Environment.Modules] and [Environment.ContainsModule]. Nothing is built
// or compiled.
package venv
