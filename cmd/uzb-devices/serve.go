package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"uzigbee-devices/internal/catalog"
	"uzigbee-devices/internal/store"
	"uzigbee-devices/internal/web"
	"uzigbee-devices/internal/zcl"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the MQTT converter publisher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	cfg, logger := a.cfg, a.logger
	logger.Info("uzb-devices starting", "version", version)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine, err := initScripts(cfg, logger)
	if err != nil {
		return err
	}

	cat := catalog.New(db,
		catalog.WithLogger(logger),
		catalog.WithDevicesDir(cfg.DevicesDir),
		catalog.WithScripts(engine),
	)
	if err := cat.Reload(ctx); err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	logger.Info("registry loaded", "devices", cat.Len(), "issues", len(cat.Issues()))

	// Connect before the web server so it can serve the bridge's reports.
	mqtt, mqttWebOpts := initMQTT(cat, db, cfg, logger)

	webOpts := []web.ServerOption{
		web.WithVersion(version),
		web.WithRegistry(zcl.NewStandardRegistry(logger)),
		web.WithScripts(engine),
	}
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, mqttWebOpts...)

	webServer, err := web.NewServer(cat, logger, webOpts...)
	if err != nil {
		mqtt.Stop()
		return fmt.Errorf("create web server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Watch.Enabled {
		dirs := []string{cfg.DevicesDir}
		if engine != nil {
			dirs = append(dirs, cfg.ScriptsDir)
		}
		w, err := catalog.NewWatcher(cat, cfg.duration(cfg.Watch.Debounce, catalog.DefaultDebounce), dirs...)
		if err != nil {
			logger.Error("watch sources", "err", err)
		} else {
			logger.Info("watching sources", "dirs", dirs)
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mqtt.Stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown", "err", err)
		}
		webServer.Stop()
		return nil
	})

	err = g.Wait()
	logger.Info("goodbye")
	return err
}
