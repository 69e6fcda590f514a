package main

import (
	"github.com/spf13/cobra"

	"github.com/idan157001/TestShuffleFinal/internal/config"
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "examctl",
		Short:         "Operational commands for the exam service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newTokenCommand())

	return rootCmd
}
