package cmd

import "github.com/spf13/cobra"

// cacheCmd groups search cache subcommands.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Search cache utilities",
}

func init() {
	rootCmd.AddCommand(cacheCmd)
}
