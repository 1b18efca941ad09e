package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/evaldash/internal/logging"
	"github.com/nhle/evaldash/internal/store"
)

func newSeedCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures.json>",
		Short: "Load notification fixtures into the local database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewConsole(cfg.Log.Level)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening fixtures: %w", err)
			}
			defer f.Close()

			fixtures, err := store.DecodeFixtures(f)
			if err != nil {
				return err
			}

			st, err := store.NewSQLiteStore(cfg.API.SQLitePath)
			if err != nil {
				return err
			}
			defer st.Close()

			ids, err := store.Seed(cmd.Context(), st, fixtures)
			logger.Info("seeded notifications",
				zap.Int("inserted", len(ids)),
				zap.Int("fixtures", len(fixtures)),
				zap.String("db", cfg.API.SQLitePath))
			return err
		},
	}
}
