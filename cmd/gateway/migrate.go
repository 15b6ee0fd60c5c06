package main

import (
	"github.com/spf13/cobra"

	"github.com/yourorg/scan-gateway/internal/logging"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd.Context(), a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer store.Close()
			logging.FromContext(cmd.Context()).Info().Msg("Schema is up to date")
			return nil
		},
	}
}
