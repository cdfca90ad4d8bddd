package main

import (
	"taskflow/internal/config"
	"taskflow/internal/version"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "taskflow",
		Short:         "Taskflow is a task and team management API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version.Get().Version
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a TOML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newUserCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads configuration and installs the default logger.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := configureLogger(o.logLevel, cfg.Log.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}
