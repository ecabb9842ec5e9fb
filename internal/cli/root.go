package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/poet/pkg/config"
	"github.com/matzehuels/poet/pkg/observability"
)

// registerPersistentFlags adds the flags shared by every command.
func (c *CLI) registerPersistentFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVarP(&c.directory, "directory", "C", "", "project directory (default: current directory)")
	flags.StringVar(&c.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/poet/config.toml)")
	flags.StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
}

// setup loads the configuration and installs metric hooks. It runs before
// every command.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.config = cfg
	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	c.Logger.Debug("loaded config",
		"index", cfg.IndexURL,
		"virtualenvs", cfg.VirtualenvsPath,
		"in_project", cfg.VirtualenvsInProject)

	if c.metricsFile != "" && c.metrics == nil {
		c.metrics = observability.NewPromHooks()
		observability.SetHTTPHooks(c.metrics)
		observability.SetPipelineHooks(c.metrics)
		observability.SetVCSHooks(c.metrics)
	}
	return nil
}

// projectDir returns the directory commands operate on.
func (c *CLI) projectDir() (string, error) {
	if c.directory != "" {
		return c.directory, nil
	}
	return os.Getwd()
}

// Close flushes metrics when --metrics-file was given. It is safe to call
// when no command ran.
func (c *CLI) Close() error {
	if c.metrics == nil {
		return nil
	}
	err := c.metrics.WriteToTextfile(c.metricsFile)
	observability.Reset()
	c.metrics = nil
	return err
}
