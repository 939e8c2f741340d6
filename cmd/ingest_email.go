package cmd

import (
	"fmt"
	"os"

	"sauna-briefing/internal/ingest"
	"sauna-briefing/internal/storage"

	"github.com/spf13/cobra"
)

var ingestAuth bool

// ingestEmailCmd triages newsletter emails into the artifact store.
var ingestEmailCmd = &cobra.Command{
	Use:   "ingest-email",
	Short: "Fetch newsletter emails from Gmail and store relevant ones as artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx, cancel := signalContext()
		defer cancel()

		if ingestAuth {
			if err := ingest.Authorize(ctx, cfg.Email.Gmail, os.Stdin, cmd.OutOrStdout()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", cfg.Email.Gmail.TokenFile)
			return nil
		}

		src, err := ingest.NewGmail(ctx, cfg.Email.Gmail)
		if err != nil {
			return fmt.Errorf("%w (run with --auth to authorise)", err)
		}
		store, err := storage.NewSQLiteStore(cfg.Email.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		j, err := newJudge(ctx, cfg)
		if err != nil {
			return err
		}

		in := &ingest.Ingester{
			Source:     src,
			Classifier: j,
			Store:      store,
			DaysBack:   cfg.Email.DaysBack,
			MaxResults: cfg.Email.Gmail.MaxResults,
		}
		st, err := in.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d, skipped %d, stored %d (%d relevant), failed %d\n",
			st.Fetched, st.Skipped, st.Stored, st.Relevant, st.Failed)
		return nil
	},
}

func init() {
	ingestEmailCmd.Flags().BoolVar(&ingestAuth, "auth", false, "run the Gmail OAuth flow and save the token")
	rootCmd.AddCommand(ingestEmailCmd)
}
