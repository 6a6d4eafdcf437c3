package main

import (
	"github.com/spf13/cobra"

	"fieldsign/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "fieldsign",
		Short: "Fieldsign is the trust and usage-control service for field workers",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogger(logLevel, cfg.LogLevel)
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newSweepCmd(cfg),
		newUserCmd(cfg),
		newConfigCmd(cfg),
	)

	return cmd
}
