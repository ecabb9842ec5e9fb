// Package pypi provides an HTTP client for the Python Package Index JSON API.
//
// # Usage
//
//	client := pypi.NewClient("", 30*time.Second)  // default index, 30s timeout
//
//	project, err := client.FetchProject(ctx, "requests")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(project.Name, project.Version)
//
// # ProjectInfo
//
// [Client.FetchProject] requests GET {base}/{name}/json with an
// Accept: application/json header and returns a [ProjectInfo] holding the
// latest version from info.version plus every release with at least one
// non-yanked file. Choosing a version is left to the caller.
//
// A different index, such as a private mirror that speaks the same API, is
// selected through the base URL.
package pypi
