//go:build !no_scripts

package main

import (
	"fmt"
	"log/slog"

	"uzigbee-devices/internal/script"
)

func initScripts(cfg *Config, logger *slog.Logger) (*script.Engine, error) {
	mgr, err := script.NewManager(cfg.ScriptsDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create script manager: %w", err)
	}
	timeout := cfg.duration(cfg.Script.Timeout, script.DefaultTimeout)
	return script.NewEngine(mgr, logger, timeout), nil
}
