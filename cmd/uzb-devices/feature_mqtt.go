//go:build !no_mqtt

package main

import (
	"log/slog"

	"uzigbee-devices/internal/catalog"
	mqttbridge "uzigbee-devices/internal/mqtt"
	"uzigbee-devices/internal/store"
	"uzigbee-devices/internal/web"
)

type mqttStopper struct {
	bridge *mqttbridge.Bridge
}

func (m *mqttStopper) Stop() {
	if m.bridge != nil {
		m.bridge.Stop()
	}
}

func initMQTT(cat *catalog.Catalog, st store.Store, cfg *Config, logger *slog.Logger) (*mqttStopper, []web.ServerOption) {
	if !cfg.MQTT.Enabled {
		return &mqttStopper{}, nil
	}
	bridge, err := mqttbridge.NewBridge(cat, st, mqttbridge.Config{
		Broker:        cfg.MQTT.Broker,
		Username:      cfg.MQTT.Username,
		Password:      cfg.MQTT.Password,
		TopicPrefix:   cfg.MQTT.TopicPrefix,
		ConverterName: cfg.MQTT.ConverterName,
	}, logger)
	if err != nil {
		logger.Error("mqtt bridge", "err", err)
		return &mqttStopper{}, nil
	}
	bridge.Start()
	return &mqttStopper{bridge: bridge}, []web.ServerOption{web.WithReports(bridge)}
}
