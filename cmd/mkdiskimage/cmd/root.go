package cmd

import "github.com/spf13/cobra"

const appName = "mkdiskimage"

// Execute builds the root command tree and runs it.
func Execute() error {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: appName + " - builds FAT32 disk images for the corekernel boot disk",
	}

	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newInspectCommand())

	return rootCmd.Execute()
}
