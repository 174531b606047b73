package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunrised/internal/alarm"
	"github.com/dokzlo13/sunrised/internal/config"
	"github.com/dokzlo13/sunrised/internal/eventbus"
	"github.com/dokzlo13/sunrised/internal/gateway"
	"github.com/dokzlo13/sunrised/internal/state"
)

// AlarmService wraps the fade controller and its supervisor.
type AlarmService struct {
	Controller *alarm.Controller
	Supervisor *alarm.Supervisor
}

// NewAlarmService creates the controller and supervisor.
func NewAlarmService(cfg *config.Config, runtime *state.Runtime, dialer gateway.Dialer, bus *eventbus.Bus) (*AlarmService, error) {
	loc, err := cfg.Alarm.Location()
	if err != nil {
		return nil, err
	}

	clock := alarm.SystemClock()

	controller := alarm.NewController(runtime, dialer, clock, bus, alarm.ControllerConfig{
		BrightnessStep:       cfg.Fade.BrightnessStep,
		ColorTemperatureStep: cfg.Fade.ColorTemperatureStep,
		Location:             loc,
	})

	supervisor := alarm.NewSupervisor(controller, runtime, clock, bus, alarm.SupervisorConfig{
		MinBackoff:       cfg.Supervisor.GetMinBackoff(),
		MaxBackoff:       cfg.Supervisor.MaxBackoff.Duration(),
		Multiplier:       cfg.Supervisor.Multiplier,
		ReactivationPoll: cfg.Supervisor.ReactivationPoll.Duration(),
	})

	return &AlarmService{
		Controller: controller,
		Supervisor: supervisor,
	}, nil
}

// Start runs the supervisor in the background until ctx is done.
func (s *AlarmService) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Supervisor.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Alarm supervisor error")
		}
	}()
}

// Ready reports whether the supervisor loop is running.
func (s *AlarmService) Ready() bool {
	return s.Supervisor.Running()
}
