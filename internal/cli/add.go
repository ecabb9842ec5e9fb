package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/poet/pkg/errors"
	"github.com/matzehuels/poet/pkg/manifest"
	"github.com/matzehuels/poet/pkg/pipeline"
)

// addFlags holds the flags of the add command.
type addFlags struct {
	group    string
	dev      bool
	extras   []string
	editable bool
	dryRun   bool
}

// addCommand creates the add command for recording new dependencies.
func (c *CLI) addCommand() *cobra.Command {
	var flags addFlags

	cmd := &cobra.Command{
		Use:   "add <package>...",
		Short: "Add dependencies to pyproject.toml",
		Long: `Resolve one or more packages, stage them into the project environment and
record them in pyproject.toml.

Each argument is one of:
  name[@constraint]        a package on the index (requests, numpy@^1.26)
  git+<url>[#rev] or <url>.git[#rev]
                           a git repository at an optional branch, tag or commit
  ./path/to/archive.whl    a local wheel or sdist
  ./path/to/folder         a local project folder

If any package fails to resolve, or is already present in the target group,
nothing is changed.`,
		Example: `  poet add requests
  poet add "numpy@>=1.24,<2" pandas
  poet add --dev pytest
  poet add git+https://github.com/psf/black.git#24.1.0
  poet add --editable ./libs/shared`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAdd(cmd.Context(), args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.group, "group", "G", "", "dependency group to add to (default: main)")
	cmd.Flags().BoolVarP(&flags.dev, "dev", "D", false, "add to the dev group")
	cmd.Flags().StringSliceVarP(&flags.extras, "extras", "E", nil, "extras to record for the added packages")
	cmd.Flags().BoolVarP(&flags.editable, "editable", "e", false, "add local folders in editable mode")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "resolve without changing the environment or pyproject.toml")

	return cmd
}

func (c *CLI) runAdd(ctx context.Context, args []string, flags addFlags) error {
	dir, err := c.projectDir()
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Dir:      dir,
		Packages: args,
		Group:    flags.group,
		Dev:      flags.dev,
		Extras:   flags.extras,
		Editable: flags.editable,
		DryRun:   flags.dryRun,
		Logger:   loggerFromContext(ctx),
	}

	spinner := newSpinnerWithContext(ctx, "Resolving "+plural(len(args), "package")+"...")
	spinner.Start()
	result, err := c.newRunner().Add(ctx, opts)
	if err != nil {
		spinner.StopWithError("Failed to add " + plural(len(args), "package"))
		opts.Logger.Debug("add failed", "code", errors.GetCode(err))
		return err
	}
	spinner.Stop()

	printAddResult(result, flags.dryRun)
	return nil
}

func printAddResult(result *pipeline.Result, dryRun bool) {
	target := manifest.FileName
	if result.Group != manifest.MainGroup {
		target = fmt.Sprintf("group %s", StyleHighlight.Render(result.Group))
	}

	if dryRun {
		printInfo("Would add %s to %s", StyleNumber.Render(fmt.Sprint(len(result.Packages))), target)
	} else {
		printSuccess("Added %s to %s", StyleNumber.Render(fmt.Sprint(len(result.Packages))), target)
	}
	for _, pkg := range result.Packages {
		printDetail("%s = %s", pkg.Name, pkg.Dependency)
	}

	if dryRun {
		printWarning("Dry run: nothing was written")
		return
	}
	printNewline()
	printKeyValue("Environment", result.Environment)
}

// plural returns "1 package" style counts.
func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
