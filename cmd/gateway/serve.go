package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/scan-gateway/internal/logging"
	"github.com/yourorg/scan-gateway/internal/server"
	"github.com/yourorg/scan-gateway/internal/worker"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			d, err := a.buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			cfg := server.DefaultConfig()
			cfg.Addr = a.cfg.HTTPAddr
			if addr != "" {
				cfg.Addr = addr
			}
			cfg.CORSOrigins = a.cfg.CORSOrigins
			srv := server.New(cfg, d.scans, d.users, d.store, &a.logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(gctx) })
			if interval := a.cfg.ReconcileInterval; interval > 0 {
				runner := worker.NewRunner(d.scans, a.cfg.ReconcileConcurrency)
				g.Go(func() error { return runner.RunForever(gctx, interval) })
			} else {
				log.Info().Msg("Background reconciler disabled")
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}
