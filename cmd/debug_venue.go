package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sauna-briefing/internal/config"
	"sauna-briefing/internal/scrape"
	"sauna-briefing/internal/venues"

	"github.com/spf13/cobra"
)

var debugVenueCmd = &cobra.Command{
	Use:   "debug-venue <name>",
	Short: "Debug: scrape one venue and print parsed events and filter decisions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		var v *config.VenueConfig
		for i := range cfg.Venues {
			if strings.EqualFold(cfg.Venues[i].Name, args[0]) {
				v = &cfg.Venues[i]
				break
			}
		}
		if v == nil {
			return fmt.Errorf("venue %q not in config", args[0])
		}
		filter, err := venues.NewFilter(cfg.Gather.EventFilter)
		if err != nil {
			return err
		}

		var f scrape.Fetcher = scrape.NewHTTPFetcher(30 * time.Second)
		if v.Render && cfg.Cloudflare.AccountID != "" && cfg.Cloudflare.APIToken != "" {
			f = scrape.NewCloudflare(cfg.Cloudflare.AccountID, cfg.Cloudflare.APIToken, 60*time.Second)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		html, err := f.Fetch(ctx, v.URL)
		if err != nil {
			return err
		}
		events, err := venues.ParseEvents(html, *v)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "page bytes: %d, events: %d\n", len(html), len(events))
		for _, e := range events {
			mark := "keep"
			if filter.Skip(e.Title, v.Name) {
				mark = "skip"
			}
			fmt.Fprintf(out, "[%s] %s | %s | %s\n", mark, e.Title, e.DateText, e.Link)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugVenueCmd)
}
