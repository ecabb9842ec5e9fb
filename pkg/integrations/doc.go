// Package integrations provides the network and VCS clients used to resolve
// dependencies.
//
// # Overview
//
// Each source has its own subpackage:
//
//   - [pypi]: Python Package Index JSON API
//   - [git]: repository checkouts through the git executable
//
// # Client Pattern
//
// HTTP clients embed the shared [Client], which applies default headers,
// enforces a request timeout and maps status codes onto sentinel errors:
//
//	client := pypi.NewClient("", 30*time.Second)
//	project, err := client.FetchProject(ctx, "requests")
//	if errors.Is(err, integrations.ErrNotFound) {
//	    // no such package
//	}
//
// Requests are neither cached nor retried; every invocation observes the
// index as it is.
//
// [pypi]: github.com/matzehuels/poet/pkg/integrations/pypi
// [git]: github.com/matzehuels/poet/pkg/integrations/git
package integrations
