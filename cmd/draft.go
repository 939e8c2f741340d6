package cmd

import (
	"fmt"
	"io"

	"sauna-briefing/worker"

	"github.com/spf13/cobra"
)

var (
	draftRunID         string
	draftMaxIterations int
	draftNoPublish     bool
	draftList          bool
)

// draftCmd writes, critiques and publishes an issue from a stored run.
var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Draft the newsletter from a gathered run and publish it to Notion",
	RunE: func(cmd *cobra.Command, args []string) error {
		if draftList {
			return runsCmd.RunE(cmd, args)
		}
		cfg := GetConfig()
		ctx, cancel := signalContext()
		defer cancel()

		j, err := newJudge(ctx, cfg)
		if err != nil {
			return err
		}
		deps, err := buildDrafter(cfg, j, draftOptions{maxIterations: draftMaxIterations, publish: !draftNoPublish})
		if err != nil {
			return err
		}
		defer deps.Close()

		res, err := deps.drafter.Run(ctx, draftRunID)
		printDraft(cmd.OutOrStdout(), res)
		return err
	},
}

func printDraft(out io.Writer, res worker.DraftResult) {
	if res.Path == "" {
		return
	}
	fmt.Fprintf(out, "Draft for run %s: %s (%s after %d revisions, %d items)\n",
		res.RunID, res.Path, res.Outcome.State, res.Outcome.Iterations, len(res.Shortlist))
	if res.PageID != "" {
		fmt.Fprintf(out, "Notion page: %s\n", res.PageID)
	}
}

func init() {
	draftCmd.Flags().StringVar(&draftRunID, "run-id", "latest", "run to draft from")
	draftCmd.Flags().IntVar(&draftMaxIterations, "max-iterations", -1, "override draft.max_iterations")
	draftCmd.Flags().BoolVar(&draftNoPublish, "no-publish", false, "save the draft locally without publishing")
	draftCmd.Flags().BoolVar(&draftList, "list", false, "list available runs and exit")
	rootCmd.AddCommand(draftCmd)
}
