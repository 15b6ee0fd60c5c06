// Command gateway runs the scan gateway: the REST API in front of the
// Acunetix engine, schema migrations and one-shot status reconciliation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yourorg/scan-gateway/internal/config"
	"github.com/yourorg/scan-gateway/internal/logging"
)

// app carries state shared by every subcommand, filled in by the root pre-run.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	v := viper.New()

	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Authenticated REST gateway for the Acunetix scanning engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadDotenv()
			config.SetDefaults(v)
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			logging.SetDefault(a.logger)
			cmd.SetContext(logging.WithLogger(cmd.Context(), &a.logger))
			return nil
		},
	}

	root.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newReconcileCommand(a),
	)
	return root
}
