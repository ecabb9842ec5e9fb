// Package specifier classifies user-typed dependency specifiers.
//
// # Grammar
//
// One token per dependency, attempted in this order:
//
//	<vcs-url>[#<revision>]      https, ssh, git or git+ssh scheme
//	<path>.whl | .tar.gz | ...  explicit path (/, ./, ../, ~/, file://) to an archive
//	<path>                      explicit path to a project folder
//	<name>[@<version-range>]    registry package
//
// The first form that matches wins, so a string is never ambiguous between
// variants. [Classify] returns a [Specifier] which is one of [Named],
// [VersionControl], [FilePath] or [Folder].
//
// # Version Ranges
//
// Ranges use [semver.NewConstraint] syntax, which covers the caret and tilde
// operators used in poetry manifests (e.g. "^2.31", "~1.4", ">=1.0, <2.0").
// The literal "latest" is accepted and means no constraint.
//
// [semver.NewConstraint]: https://pkg.go.dev/github.com/Masterminds/semver/v3#NewConstraint
package specifier
