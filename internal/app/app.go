package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunrised/internal/alarm"
	"github.com/dokzlo13/sunrised/internal/config"
	"github.com/dokzlo13/sunrised/internal/gateway"
)

// App owns the sunrise services: the fade supervisor, its event sinks and the
// configuration API.
type App struct {
	cfg      *config.Config
	services *Services
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopErr  error
}

// New creates an App talking to the Hue gateway from cfg.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, services: services}, nil
}

// NewWithDialer creates an App whose fade controller dials gateways through dialer.
func NewWithDialer(cfg *config.Config, dialer gateway.Dialer) (*App, error) {
	services, err := NewServicesWithDialer(cfg, dialer)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, services: services}, nil
}

// Start launches the services. A fatal service error cancels the app context.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	onFatalError := func(err error) {
		log.Error().Err(err).Msg("Fatal error, initiating shutdown")
		a.cancel()
	}

	if err := a.services.Start(a.ctx, onFatalError); err != nil {
		a.cancel()
		return err
	}

	a.logStartup()
	return nil
}

// logStartup reports the alarm the supervisor starts with.
func (a *App) logStartup() {
	ev := log.Info().
		Str("api", a.cfg.API.Addr()).
		Bool("ledger", a.services.Ledger.Ledger != nil).
		Bool("mqtt", a.cfg.MQTT.Enabled).
		Bool("influxdb", a.cfg.InfluxDB.Enabled)

	rt := a.services.Runtime
	if schedule, err := rt.Schedule(); err == nil {
		ev = ev.Str("wake_time", alarm.FormatWakeTime(schedule.WakeTime)).
			Dur("fade_duration", schedule.FadeDuration)
	}
	if activated, err := rt.Activated(); err == nil {
		ev = ev.Bool("activated", activated)
	}
	if endpoint, err := rt.Endpoint(); err == nil {
		ev = ev.Str("gateway", endpoint)
	}
	ev.Msg("Sunrise alarm armed")
}

// Run starts the app, blocks until ctx is cancelled or a service fails fatally,
// then shuts down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		a.Stop()
		return err
	}
	a.Wait()
	return a.Stop()
}

// Stop cancels the app context and waits for the services. Safe to call more
// than once.
func (a *App) Stop() error {
	a.stopOnce.Do(func() {
		log.Info().Msg("Shutting down...")
		if a.cancel != nil {
			a.cancel()
		}
		if a.services != nil {
			a.stopErr = a.services.Stop()
		}
	})
	return a.stopErr
}

// Wait blocks until the application context is cancelled.
func (a *App) Wait() {
	if a.ctx != nil {
		<-a.ctx.Done()
	}
}

// Services exposes the service container.
func (a *App) Services() *Services {
	return a.services
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
