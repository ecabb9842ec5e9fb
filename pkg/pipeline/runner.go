package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/poet/pkg/config"
	"github.com/matzehuels/poet/pkg/errors"
	"github.com/matzehuels/poet/pkg/integrations/git"
	"github.com/matzehuels/poet/pkg/integrations/pypi"
	"github.com/matzehuels/poet/pkg/manifest"
	"github.com/matzehuels/poet/pkg/observability"
	"github.com/matzehuels/poet/pkg/provider"
	"github.com/matzehuels/poet/pkg/specifier"
	"github.com/matzehuels/poet/pkg/venv"
)

// Runner executes add operations.
//
// The Runner holds no per-operation state. Multiple goroutines can use the
// same Runner as long as they target different project directories.
type Runner struct {
	Config config.Config
	Index  provider.ProjectFetcher
	Cloner git.Cloner
	Logger *log.Logger
}

// NewRunner creates a runner for cfg.
// The index client is built from cfg.IndexURL and cfg.HTTPTimeout; repositories
// are cloned with the git executable. If logger is nil, log.Default() is used.
func NewRunner(cfg config.Config, logger *log.Logger) *Runner {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Config: cfg,
		Index:  pypi.NewClient(cfg.IndexURL, cfg.HTTPTimeout),
		Cloner: git.NewExec(),
		Logger: logger,
	}
}

// Add runs the classify → resolve → apply → write pipeline.
//
// pyproject.toml is written only after every package resolved, merged
// without conflict and was staged into the environment.
func (r *Runner) Add(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{OperationID: uuid.NewString(), Group: opts.Group}
	logger := opts.Logger.With("op", result.OperationID[:8])

	// Stage 1: Classify
	specs, err := specifier.ClassifyAll(opts.Packages)
	if err != nil {
		return nil, err
	}
	for _, s := range specs {
		logger.Debug("classified", "input", s.String(), "kind", s.Kind())
	}

	project, err := manifest.Load(opts.Dir)
	if err != nil {
		return nil, err
	}

	var env *venv.Environment
	if !opts.DryRun {
		if env, err = venv.CreateFromConfig(r.Config, opts.Dir); err != nil {
			return nil, err
		}
		result.Environment = env.Root
		logger.Debug("using environment", "path", env.Root)
	}

	// Checkouts are moved out of staging by ApplyChanges, and moved back
	// there on rollback, so staging is always removed at the end.
	staging, err := stagingDir(env)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)

	// Stage 2: Resolve
	resolveStart := time.Now()
	pkgs, err := r.resolve(ctx, specs, staging, opts)
	if err != nil {
		return nil, err
	}
	result.Packages = pkgs
	result.Stats.PackageCount = len(pkgs)
	result.Stats.ResolveTime = time.Since(resolveStart)

	logger.Info("resolved packages",
		"count", len(pkgs),
		"duration", result.Stats.ResolveTime)

	// Stage 3: Apply
	applyStart := time.Now()
	if opts.DryRun {
		result.Manifest, err = project.Add(opts.Group, provider.Entries(pkgs))
	} else {
		result.Manifest, err = env.ApplyChanges(ctx, project, opts.Group, specs, pkgs)
	}
	if err != nil {
		return nil, err
	}
	result.Stats.ApplyTime = time.Since(applyStart)

	if opts.DryRun {
		logger.Info("dry run, nothing written", "group", opts.Group)
		return result, nil
	}
	logger.Info("staged packages",
		"group", opts.Group,
		"duration", result.Stats.ApplyTime)

	// Stage 4: Write
	writeStart := time.Now()
	err = manifest.Write(opts.Dir, result.Manifest)
	result.Stats.WriteTime = time.Since(writeStart)
	observability.Pipeline().OnManifestWrite(ctx, manifest.Path(opts.Dir), result.Stats.WriteTime, err)
	if err != nil {
		return nil, err
	}

	logger.Info("updated manifest", "path", manifest.Path(opts.Dir))
	return result, nil
}

// resolve runs the providers, cloning repositories into staging.
func (r *Runner) resolve(ctx context.Context, specs []specifier.Specifier, staging string, opts Options) ([]provider.Package, error) {
	index, cloner := r.Index, r.Cloner
	if index == nil {
		index = pypi.NewClient(r.Config.IndexURL, r.Config.HTTPTimeout)
	}
	if cloner == nil {
		cloner = git.NewExec()
	}

	orchestrator := &provider.Orchestrator{
		Registry:       provider.NewRegistry(index, r.Config.MaxConcurrency),
		Cloner:         cloner,
		Local:          &provider.Local{Editable: opts.Editable, ProjectDir: opts.Dir},
		MaxConcurrency: r.Config.MaxConcurrency,
	}
	pkgs, err := orchestrator.Resolve(ctx, specs, staging)
	if err != nil {
		return nil, err
	}
	return withExtras(pkgs, opts.Extras), nil
}

// stagingDir returns a scratch directory for repository checkouts: inside
// the environment so checkouts can be renamed into place, or a temporary
// directory for dry runs.
func stagingDir(env *venv.Environment) (string, error) {
	if env != nil {
		return env.StagingDir()
	}
	dir, err := os.MkdirTemp("", "poet-staging-")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeEnvironmentState, err, "create staging directory")
	}
	return dir, nil
}

// withExtras records extras on every package.
func withExtras(pkgs []provider.Package, extras []string) []provider.Package {
	if len(extras) == 0 {
		return pkgs
	}
	for i := range pkgs {
		pkgs[i].Dependency.Extras = append([]string(nil), extras...)
	}
	return pkgs
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
