package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var errNoRedis = errors.New("redis.addr is not set; the search cache is disabled")

// pingCmd pings the configured Redis server.
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping Redis and print PONG",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, rdb, err := newSearchCache(GetConfig())
		if err != nil {
			return err
		}
		if rdb == nil {
			return errNoRedis
		}
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		res, err := rdb.Ping(ctx).Result()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res)
		return nil
	},
}

// clearCmd drops every cached search answer.
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached search answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, rdb, err := newSearchCache(GetConfig())
		if err != nil {
			return err
		}
		if rdb == nil {
			return errNoRedis
		}
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := cache.Clear(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached answers\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(pingCmd)
	cacheCmd.AddCommand(clearCmd)
}
