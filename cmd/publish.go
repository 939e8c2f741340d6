package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var publishRunID string

// publishCmd retries publishing a saved draft, e.g. after a Notion outage.
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a saved draft to Notion without re-running the editorial loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx, cancel := signalContext()
		defer cancel()

		deps, err := buildDrafter(cfg, nil, draftOptions{maxIterations: -1, publish: true})
		if err != nil {
			return err
		}
		defer deps.Close()

		pageID, err := deps.drafter.Publish(ctx, publishRunID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Published run %s to Notion page %s\n", publishRunID, pageID)
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishRunID, "run-id", "latest", "run whose draft to publish")
	rootCmd.AddCommand(publishCmd)
}
