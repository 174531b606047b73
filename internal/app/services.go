package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunrised/internal/config"
	"github.com/dokzlo13/sunrised/internal/eventbus"
	"github.com/dokzlo13/sunrised/internal/gateway"
	"github.com/dokzlo13/sunrised/internal/state"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	Runtime *state.Runtime
	Bus     *eventbus.Bus

	// High-level services
	Alarm     *AlarmService
	Ledger    *LedgerService
	Telemetry *TelemetryService
	API       *APIService

	wg sync.WaitGroup
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	return NewServicesWithDialer(cfg, gateway.NewHueDialer(gateway.HueConfig{
		RateLimitRPS:     cfg.Gateway.RateLimitRPS,
		Brightness:       cfg.Gateway.Brightness.Range(),
		ColorTemperature: cfg.Gateway.ColorTemperature.Range(),
	}))
}

// NewServicesWithDialer creates all services talking to gateways created by dialer.
func NewServicesWithDialer(cfg *config.Config, dialer gateway.Dialer) (*Services, error) {
	s := &Services{cfg: cfg}

	schedule, err := cfg.Alarm.Schedule()
	if err != nil {
		return nil, err
	}
	s.Runtime = state.NewRuntime(schedule, cfg.Alarm.IsActivated(), cfg.Gateway.URL, cfg.Gateway.APIKey)

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	s.Ledger, err = NewLedgerService(cfg, s.Bus)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Alarm, err = NewAlarmService(cfg, s.Runtime, dialer, s.Bus)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Telemetry = NewTelemetryService(cfg, s.Runtime, s.Bus)
	s.API = NewAPIService(cfg, s.Runtime, s.Ledger.History(), s.Alarm.Ready)

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a service cannot continue.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Sinks first so the first window is recorded
	if err := s.Telemetry.Start(ctx); err != nil {
		return err
	}
	s.Ledger.Start(ctx, &s.wg)

	s.API.Start(ctx, &s.wg, onFatalError)
	s.Alarm.Start(ctx, &s.wg)

	return nil
}

// Stop gracefully stops all services. The context passed to Start must already
// be cancelled.
func (s *Services) Stop() error {
	timeout := s.cfg.ShutdownTimeout.Duration()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("Timed out waiting for services to stop")
	}

	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.Telemetry != nil {
		s.Telemetry.Close()
	}
	if s.Ledger != nil {
		s.Ledger.Close()
	}
}
