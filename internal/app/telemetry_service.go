package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunrised/internal/config"
	"github.com/dokzlo13/sunrised/internal/eventbus"
	"github.com/dokzlo13/sunrised/internal/influx"
	"github.com/dokzlo13/sunrised/internal/mqtt"
	"github.com/dokzlo13/sunrised/internal/state"
)

// TelemetryService publishes controller events to MQTT and InfluxDB when enabled.
type TelemetryService struct {
	cfg     *config.Config
	runtime *state.Runtime
	bus     *eventbus.Bus

	MQTT   *mqtt.Client
	Influx *influx.Writer
}

// NewTelemetryService creates a new TelemetryService. Connections are made in Start.
func NewTelemetryService(cfg *config.Config, runtime *state.Runtime, bus *eventbus.Bus) *TelemetryService {
	return &TelemetryService{
		cfg:     cfg,
		runtime: runtime,
		bus:     bus,
	}
}

// Start connects the enabled sinks and subscribes them to the bus.
func (s *TelemetryService) Start(ctx context.Context) error {
	if s.cfg.MQTT.Enabled {
		client, err := mqtt.Connect(s.cfg.MQTT)
		if err != nil {
			return err
		}
		s.MQTT = client

		bridge := mqtt.NewBridge(client, s.runtime, client.Topics())
		if err := bridge.Start(); err != nil {
			return fmt.Errorf("failed to start MQTT bridge: %w", err)
		}
		s.bus.Subscribe(bridge.Handler(), append([]eventbus.EventType{eventbus.EventTypeStepApplied}, eventbus.Lifecycle...)...)
	} else {
		log.Debug().Msg("MQTT is disabled")
	}

	if s.cfg.InfluxDB.Enabled {
		writer, err := influx.Connect(ctx, s.cfg.InfluxDB)
		if err != nil {
			return err
		}
		s.Influx = writer
		s.bus.Subscribe(writer.Handler(), eventbus.EventTypeStepApplied)
	} else {
		log.Debug().Msg("InfluxDB is disabled")
	}

	return nil
}

// Close disconnects the sinks.
func (s *TelemetryService) Close() {
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.Influx != nil {
		s.Influx.Close()
	}
}
