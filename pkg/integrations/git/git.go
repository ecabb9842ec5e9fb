package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/matzehuels/poet/pkg/observability"
)

// Checkout describes a repository cloned to local disk.
type Checkout struct {
	URL    string // Repository URL as given
	Ref    string // Requested revision, empty for the default branch
	Commit string // Full hash of the checked-out HEAD
	Dir    string // Working tree location
}

// Cloner fetches a repository at an optional revision into dest.
type Cloner interface {
	Clone(ctx context.Context, url, rev, dest string) (*Checkout, error)
}

// ClonerFunc adapts a function to the [Cloner] interface.
type ClonerFunc func(ctx context.Context, url, rev, dest string) (*Checkout, error)

// Clone calls f.
func (f ClonerFunc) Clone(ctx context.Context, url, rev, dest string) (*Checkout, error) {
	return f(ctx, url, rev, dest)
}

// Exec clones repositories by running the git executable.
type Exec struct {
	Binary string // Executable name or path; "git" when empty
}

// NewExec returns a Cloner backed by the git on PATH.
func NewExec() *Exec {
	return &Exec{Binary: "git"}
}

// Clone runs git clone into dest and, when rev is set, checks it out.
// rev may be a branch, tag or commit.
func (e *Exec) Clone(ctx context.Context, url, rev, dest string) (co *Checkout, err error) {
	hooks := observability.VCS()
	hooks.OnCloneStart(ctx, url)
	start := time.Now()
	defer func() { hooks.OnCloneComplete(ctx, url, time.Since(start), err) }()

	if strings.HasPrefix(url, "-") || strings.HasPrefix(rev, "-") {
		return nil, fmt.Errorf("refusing option-like repository %q at %q", url, rev)
	}
	if _, err := e.run(ctx, "", "clone", "--quiet", "--", url, dest); err != nil {
		return nil, fmt.Errorf("git clone %s: %w", url, err)
	}
	if rev != "" {
		if _, err := e.run(ctx, dest, "checkout", "--quiet", rev); err != nil {
			return nil, fmt.Errorf("git checkout %s in %s: %w", rev, url, err)
		}
	}
	commit, err := e.run(ctx, dest, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("git rev-parse %s: %w", url, err)
	}
	return &Checkout{URL: url, Ref: rev, Commit: commit, Dir: dest}, nil
}

func (e *Exec) run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := e.Binary
	if bin == "" {
		bin = "git"
	}
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Never block on a credential prompt.
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}
