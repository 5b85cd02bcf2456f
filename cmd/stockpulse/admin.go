package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seenimoa/stockpulse/internal/app"
	"github.com/seenimoa/stockpulse/internal/cache"
	"github.com/seenimoa/stockpulse/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the signal cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached entry from the configured backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := app.OpenBackend(cmd.Context(), cfg.Cache, log)
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := cache.New(backend, cfg.Cache.TTL, log).Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s cache\n", cfg.Cache.Backend)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Show which provider credentials are set",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "not set"
			if k.IsSet {
				status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Fprintf(out, "  %-22s %s\n", k.Name+":", status)
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Cache:      %s (ttl %s)\n", cfg.Cache.Backend, cfg.Cache.TTL)
		fmt.Fprintf(out, "Sentiment:  %s\n", cfg.Sentiment.Mode)
		fmt.Fprintf(out, "Rationale:  %s\n", cfg.Rationale.Provider)
		fmt.Fprintf(out, "API:        %s\n", cfg.API.Addr())
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	configCmd.AddCommand(configKeysCmd)
}
