package main

import (
	"github.com/spf13/cobra"

	"github.com/yourorg/scan-gateway/internal/logging"
	"github.com/yourorg/scan-gateway/internal/worker"
)

func newReconcileCommand(a *app) *cobra.Command {
	var (
		maxScans    int
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Refresh every active scan from the engine once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := a.buildDeps(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if concurrency < 1 {
				concurrency = a.cfg.ReconcileConcurrency
			}
			res, err := worker.NewRunner(d.scans, concurrency).Sweep(ctx, maxScans)
			if err != nil {
				return err
			}
			logging.FromContext(ctx).Info().
				Int("checked", res.Checked).
				Int("changed", res.Changed).
				Msg("Reconcile finished")
			return nil
		},
	}
	cmd.Flags().IntVar(&maxScans, "max-scans", 0, "maximum scans to check (0 = unlimited)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel engine lookups (default RECONCILE_CONCURRENCY)")
	return cmd
}
