// Package git checks out repositories for version-control dependencies.
//
// [Exec] shells out to the git executable:
//
//	co, err := git.NewExec().Clone(ctx, "https://github.com/org/repo.git", "v1.2.0", dest)
//	fmt.Println(co.Commit)
//
// Callers that must not touch the network accept a [Cloner], which tests
// satisfy with a [ClonerFunc].
package git
