//go:build no_mqtt

package main

import (
	"log/slog"

	"uzigbee-devices/internal/catalog"
	"uzigbee-devices/internal/store"
	"uzigbee-devices/internal/web"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *catalog.Catalog, _ store.Store, _ *Config, _ *slog.Logger) (*mqttStopper, []web.ServerOption) {
	return &mqttStopper{}, nil
}
