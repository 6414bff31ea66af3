package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"uzigbee-devices/internal/catalog"
	"uzigbee-devices/internal/store"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs.
type app struct {
	configPath string
	cfg        *Config
	logger     *slog.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "uzb-devices",
		Short: "Zigbee2MQTT device registry for uzigbee firmware",
		Long: `uzb-devices keeps the Zigbee2MQTT external converter for uzigbee devices.

It merges the built-in descriptors with descriptor files, Lua scripts and
descriptors saved over the API, publishes the rendered converter to the
bridge over MQTT and checks how the bridge interviewed uzigbee devices.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Name() == "serve")
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config.yaml", "config file path (YAML)")

	cmd.AddCommand(
		serveCmd(a),
		validateCmd(a),
		exportCmd(a),
		templateCmd(a),
		interviewCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "uzb-devices %s\n", version)
			},
		},
	)
	return cmd
}

// setup loads the config and logger. Only serve insists on a config file.
func (a *app) setup(requireConfig bool) error {
	cfg, err := loadConfig(a.configPath, requireConfig)
	if err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	a.logger = newLogger(cfg)
	slog.SetDefault(a.logger)
	return nil
}

// loadCatalog builds and loads the catalog for one-shot commands. The store is
// opened read-only and skipped when it is missing or held by a server.
func (a *app) loadCatalog(ctx context.Context) (*catalog.Catalog, func(), error) {
	closeAll := func() {}

	var st store.Store
	if db, err := store.OpenReadOnly(a.cfg.Store.Path, time.Second); err != nil {
		a.logger.Debug("stored descriptors unavailable", "path", a.cfg.Store.Path, "err", err)
	} else {
		st = db
		closeAll = func() { db.Close() }
	}

	engine, err := initScripts(a.cfg, a.logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	cat := catalog.New(st,
		catalog.WithLogger(a.logger),
		catalog.WithDevicesDir(a.cfg.DevicesDir),
		catalog.WithScripts(engine),
	)
	if err := cat.Reload(ctx); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("load registry: %w", err)
	}
	return cat, closeAll, nil
}
