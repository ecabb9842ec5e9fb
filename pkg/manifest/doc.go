// Package manifest reads, merges and writes the project manifest
// (pyproject.toml).
//
// # Document Model
//
// A [Project] holds the [tool.poetry] identity block as [Metadata], the main
// dependency table, named groups under [tool.poetry.group.<name>] and the
// [build-system] table. Keys poet does not model are carried through a load
// and write unchanged.
//
// Dependency values take one of three shapes:
//
//	requests = "2.31.0"                                       # version
//	mylib = { git = "https://github.com/org/mylib.git", rev = "main" }
//	local = { path = "../local", develop = true }
//
// # Merging
//
// [Merge] is conservative: adding a name that already exists in the target
// table is an ADD_CONFLICT, and no entry is ever overwritten.
//
//	deps, err := manifest.Merge(project.Dependencies, incoming)
//
// # Writing
//
// [Write] replaces the manifest atomically via a temporary file and rename.
package manifest
