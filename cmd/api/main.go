package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "identity-service",
		Short:         "Identity service: accounts, single-use tokens and domain events",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSweepTokensCmd(),
		newSystemTokenCmd(),
	)
	return rootCmd
}
