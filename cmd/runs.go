package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"sauna-briefing/internal/runstore"

	"github.com/spf13/cobra"
)

// runsCmd lists stored gather runs, newest first.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List gathered runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		runs, err := runstore.New(cfg.Gather.RunsDir).List()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No runs in %s\n", cfg.Gather.RunsDir)
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tCREATED\tCANDIDATES")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", r.RunID, r.CreatedAt.Local().Format(time.DateTime), r.CandidateCount)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}
