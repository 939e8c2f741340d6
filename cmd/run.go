package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runGather bool
	runDraft  bool
)

// runCmd chains gather and draft in one invocation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Gather then draft this week's issue",
	Long:  "Runs both pipelines in order. Use --gather or --draft to run only one of them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !runGather && !runDraft {
			runGather, runDraft = true, true
		}
		cfg := GetConfig()
		ctx, cancel := signalContext()
		defer cancel()

		j, err := newJudge(ctx, cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		runID := "latest"
		if runGather {
			deps, err := buildGatherer(cfg, j)
			if err != nil {
				return err
			}
			run, err := deps.gatherer.Run(ctx)
			deps.Close()
			if err != nil {
				return fmt.Errorf("gather: %w", err)
			}
			fmt.Fprintf(out, "Run %s: %d candidates\n", run.RunID, len(run.Candidates))
			runID = run.RunID
		}
		if !runDraft {
			return nil
		}
		if ctx.Err() != nil {
			return errors.New("interrupted before drafting")
		}
		deps, err := buildDrafter(cfg, j, draftOptions{maxIterations: -1, publish: true})
		if err != nil {
			return err
		}
		defer deps.Close()
		res, err := deps.drafter.Run(ctx, runID)
		printDraft(out, res)
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&runGather, "gather", false, "only run the gather pipeline")
	runCmd.Flags().BoolVar(&runDraft, "draft", false, "only run the draft pipeline on the latest run")
	rootCmd.AddCommand(runCmd)
}
