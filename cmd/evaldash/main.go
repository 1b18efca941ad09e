// Command evaldash is the notification centre of the school evaluation
// dashboard. Without a subcommand it runs the terminal UI.
package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/evaldash/internal/app"
	"github.com/nhle/evaldash/internal/logging"
	"github.com/nhle/evaldash/internal/model"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "evaldash:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "evaldash",
		Short:         "Notification centre for the school evaluation dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(opts), newSeedCmd(opts))
	return cmd
}

// loadConfig reads the config file and applies flag overrides.
func (o *rootOptions) loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

func runTUI(opts *rootOptions) error {
	_, statErr := os.Stat(opts.configPath)
	firstRun := errors.Is(statErr, os.ErrNotExist)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	appOpts := []app.Option{app.WithLogger(logger)}
	if firstRun {
		appOpts = append(appOpts, app.StartInSetup())
	}

	m, err := app.New(cfg, opts.configPath, appOpts...)
	if err != nil {
		return err
	}

	logger.Info("starting",
		zap.String("backend", cfg.API.Backend),
		zap.String("config", opts.configPath))

	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if fm, ok := final.(app.Model); ok {
		fm.Close()
	} else {
		m.Close()
	}
	if err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}
