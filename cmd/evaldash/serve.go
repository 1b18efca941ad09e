package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/evaldash/internal/credential"
	"github.com/nhle/evaldash/internal/logging"
	"github.com/nhle/evaldash/internal/server"
	"github.com/nhle/evaldash/internal/store"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr, token string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the notifications REST API from the local database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			logger, err := logging.NewConsole(cfg.Log.Level)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if token == "" {
				token = os.Getenv("EVALDASH_SERVER_TOKEN")
			}
			if token == "" {
				token, err = credential.Lookup(credential.KeyServerToken)
				if err != nil {
					logger.Warn("reading server token from keyring", zap.Error(err))
				}
			}
			if token == "" {
				logger.Warn("no server token configured, API is open")
			}

			st, err := store.NewSQLiteStore(cfg.API.SQLitePath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.New(st, cfg.Server, token, logger).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token clients must send")
	return cmd
}
