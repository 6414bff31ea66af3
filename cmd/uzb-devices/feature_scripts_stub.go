//go:build no_scripts

package main

import (
	"log/slog"

	"uzigbee-devices/internal/script"
)

func initScripts(_ *Config, _ *slog.Logger) (*script.Engine, error) {
	return nil, nil
}
