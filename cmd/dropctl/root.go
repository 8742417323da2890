package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dropctl",
		Short:         "dropctl: inspect and claim token drops from the terminal",
		Long:          "dropctl loads a drop collection from the catalog, shows its live supply and price, and claims a token with the configured wallet.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newStatusCmd(),
		newClaimCmd(),
	)
	return rootCmd
}
