package pypi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/matzehuels/poet/pkg/buildinfo"
	"github.com/matzehuels/poet/pkg/integrations"
)

// DefaultBaseURL is the PyPI JSON API root.
const DefaultBaseURL = "https://pypi.org/pypi"

// ProjectInfo holds the metadata poet needs from a PyPI project page.
//
// Releases lists the versions that have at least one non-yanked file, sorted
// as strings. It may be empty for indexes that only report info.version.
type ProjectInfo struct {
	Name     string   // Project name as reported by the index (e.g., "Django")
	Version  string   // Latest version from info.version, never empty in valid info
	Summary  string   // Short description (may be empty)
	Yanked   bool     // Whether the latest version was yanked
	Releases []string // Installable release versions
}

// Client provides access to the PyPI JSON API.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a PyPI client. An empty baseURL selects [DefaultBaseURL];
// a non-positive timeout selects [integrations.DefaultTimeout].
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		Client: integrations.NewClient(timeout, map[string]string{
			"Accept":     "application/json",
			"User-Agent": buildinfo.UserAgent(),
		}),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// FetchProject retrieves metadata for a project.
//
// Returns:
//   - [integrations.ErrNotFound] if the project doesn't exist
//   - [integrations.ErrNetwork] for transport failures and non-200 statuses
//   - [integrations.ErrInvalidResponse] when the body is not JSON or lacks
//     info.name or info.version
func (c *Client) FetchProject(ctx context.Context, name string) (*ProjectInfo, error) {
	endpoint := fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(name))

	var data apiResponse
	if err := c.Get(ctx, endpoint, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, fmt.Errorf("%w: pypi package %s", err, name)
		}
		return nil, err
	}

	if data.Info.Name == "" || data.Info.Version == "" {
		return nil, fmt.Errorf("%w: pypi package %s: missing name or version", integrations.ErrInvalidResponse, name)
	}

	return &ProjectInfo{
		Name:     data.Info.Name,
		Version:  data.Info.Version,
		Summary:  data.Info.Summary,
		Yanked:   data.Info.Yanked,
		Releases: installable(data.Releases),
	}, nil
}

// installable returns release keys with at least one non-yanked file.
func installable(releases map[string][]apiFile) []string {
	out := make([]string, 0, len(releases))
	for version, files := range releases {
		for _, f := range files {
			if !f.Yanked {
				out = append(out, version)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

type apiResponse struct {
	Info     apiInfo              `json:"info"`
	Releases map[string][]apiFile `json:"releases"`
}

type apiInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Summary string `json:"summary"`
	Yanked  bool   `json:"yanked"`
}

type apiFile struct {
	Filename string `json:"filename"`
	Yanked   bool   `json:"yanked"`
}
