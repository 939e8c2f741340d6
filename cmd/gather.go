package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// gatherCmd collects, merges and stores this week's candidates.
var gatherCmd = &cobra.Command{
	Use:   "gather",
	Short: "Collect venue events, news and email artifacts into a new run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx, cancel := signalContext()
		defer cancel()

		j, err := newJudge(ctx, cfg)
		if err != nil {
			return err
		}
		deps, err := buildGatherer(cfg, j)
		if err != nil {
			return err
		}
		defer deps.Close()

		run, err := deps.gatherer.Run(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run %s: %d candidates from %d raw records\n", run.RunID, len(run.Candidates), run.Metadata.RawRecordCount)
		for name, n := range run.Metadata.SourceCounts {
			fmt.Fprintf(out, "  %-15s %d\n", name, n)
		}
		if sp := run.Metadata.Spotlight; sp != nil {
			fmt.Fprintf(out, "Spotlight: %s\n", sp.Venue)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gatherCmd)
}
