package integrations

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the index.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, non-200 responses).
	ErrNetwork = errors.New("network error")

	// ErrInvalidResponse is returned when a response body cannot be decoded
	// or lacks required fields.
	ErrInvalidResponse = errors.New("invalid response")
)

// NewHTTPClient creates an HTTP client with the given timeout.
// A zero or negative timeout selects [DefaultTimeout].
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

var separatorRuns = regexp.MustCompile(`[-_.]+`)

// NormalizePkgName converts a package name to its canonical form.
// Applies lowercase and collapses runs of "-", "_" and "." into a single
// hyphen, following PEP 503 normalization rules used by PyPI.
func NormalizePkgName(name string) string {
	return separatorRuns.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
)

// NormalizeRepoURL converts various repository URL formats to canonical HTTPS form.
// Handles git@, git://, and git+ prefixes, and removes .git suffixes.
// Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	return strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".git")
}
