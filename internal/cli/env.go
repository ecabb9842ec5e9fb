package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/poet/pkg/venv"
)

// envCommand creates the env command group.
func (c *CLI) envCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect and create the project environment",
	}
	cmd.AddCommand(c.envInfoCommand())
	cmd.AddCommand(c.envCreateCommand())
	return cmd
}

func (c *CLI) envInfoCommand() *cobra.Command {
	var listPackages bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the project environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.projectDir()
			if err != nil {
				return err
			}
			root, err := venv.Locate(c.config, dir)
			if err != nil {
				return err
			}

			printKeyValue("Path", root)
			env, err := venv.FromExisting(root)
			switch {
			case errors.Is(err, venv.ErrNotFound):
				printKeyValue("State", StyleWarning.Render("not created"))
				printNewline()
				printNextStep("Create it with", "poet env create")
				return nil
			case errors.Is(err, venv.ErrCorrupted):
				printKeyValue("State", StyleWarning.Render("corrupted"))
				return err
			case err != nil:
				return err
			}

			modules, err := env.Modules()
			if err != nil {
				return err
			}
			printKeyValue("State", StyleSuccess.Render("ready"))
			printKeyValue("ID", env.ID)
			printKeyValue("Packages", fmt.Sprint(len(modules)))
			if listPackages {
				for _, m := range modules {
					printDetail("%s", m)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&listPackages, "packages", "p", false, "list installed packages")
	return cmd
}

func (c *CLI) envCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create the project environment if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.projectDir()
			if err != nil {
				return err
			}

			cfg := c.config
			cfg.VirtualenvsCreate = true

			prog := newProgress(loggerFromContext(cmd.Context()))
			env, err := venv.CreateFromConfig(cfg, dir)
			if err != nil {
				return err
			}
			prog.done("environment ready")
			printSuccess("Environment at %s", StyleValue.Render(env.Root))
			return nil
		},
	}
}
