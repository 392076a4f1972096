package cmd

import "github.com/spf13/cobra"

const appName = "mkelffixture"

// Execute builds the root command tree and runs it.
func Execute() error {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: appName + " - assembles minimal ELF64 fixtures for the kernel's loader",
	}

	rootCmd.AddCommand(newBuildCommand())

	return rootCmd.Execute()
}
