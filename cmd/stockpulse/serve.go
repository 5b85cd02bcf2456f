package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seenimoa/stockpulse/api"
	"github.com/seenimoa/stockpulse/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.API.Addr()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hub := api.NewWSHub()
		a, err := app.New(ctx, cfg, log, app.WithObserver(hub))
		if err != nil {
			return err
		}
		defer a.Close()

		stopGC, err := a.StartMaintenance(cfg.Cache.GCSchedule)
		if err != nil {
			return err
		}
		defer stopGC()

		api.Version = version
		srv := api.NewServer(cfg, a, hub, log, api.WithCache(a.Cache()))
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from api.host and api.port)")
}
