// Package alarm implements the sunrise fade: computing the next fade window,
// waiting for it, ramping lights across fixed steps and restarting forever.
package alarm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunrised/internal/eventbus"
	"github.com/dokzlo13/sunrised/internal/gateway"
	"github.com/dokzlo13/sunrised/internal/light"
	"github.com/dokzlo13/sunrised/internal/state"
)

// Publisher receives controller events.
type Publisher interface {
	Publish(event eventbus.Event)
}

type discard struct{}

func (discard) Publish(eventbus.Event) {}

// ControllerConfig tunes the fade.
type ControllerConfig struct {
	BrightnessStep       int            // added to brightness every step
	ColorTemperatureStep int            // subtracted from color temperature every step
	Location             *time.Location // zone the wake time is interpreted in
}

// Controller runs fade cycles against the gateway.
type Controller struct {
	runtime *state.Runtime
	dialer  gateway.Dialer
	clock   Clock
	events  Publisher
	cfg     ControllerConfig
}

// NewController creates a controller. A nil clock or publisher falls back to
// the system clock and a discarding publisher.
func NewController(runtime *state.Runtime, dialer gateway.Dialer, clock Clock, events Publisher, cfg ControllerConfig) *Controller {
	if clock == nil {
		clock = SystemClock()
	}
	if events == nil {
		events = discard{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.BrightnessStep == 0 {
		cfg.BrightnessStep = 1
	}
	if cfg.ColorTemperatureStep == 0 {
		cfg.ColorTemperatureStep = 1
	}

	return &Controller{
		runtime: runtime,
		dialer:  dialer,
		clock:   clock,
		events:  events,
		cfg:     cfg,
	}
}

// Run executes fade cycles back to back. It returns nil when the activation flag
// is found cleared before a step, ctx.Err() when ctx is done, and an error when
// the runtime state is unavailable or the gateway cannot be reached. The number
// of fully completed cycles is returned in every case.
func (c *Controller) Run(ctx context.Context, runID string) (int, error) {
	completed := 0
	for {
		done, err := c.cycle(ctx, runID)
		if err != nil {
			return completed, err
		}
		if !done {
			return completed, nil
		}
		completed++
	}
}

// cycle runs one window. It reports false when the fade was deactivated.
func (c *Controller) cycle(ctx context.Context, runID string) (bool, error) {
	cycleID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Str("cycle_id", cycleID).Logger()

	schedule, err := c.runtime.Schedule()
	if err != nil {
		return false, fmt.Errorf("failed to read alarm schedule: %w", err)
	}

	gw, err := c.connect()
	if err != nil {
		return false, err
	}
	defer gw.Close()

	now := c.clock.Now().In(c.cfg.Location)
	win := NextWindow(now, schedule)

	logger.Info().
		Time("start", win.Start).
		Time("end", win.End).
		Dur("delta", win.Delta).
		Msg("Fade window computed, sleeping")

	c.publish(eventbus.EventTypeWindowComputed, runID, cycleID, map[string]interface{}{
		"start":         win.Start.Format(time.RFC3339),
		"end":           win.End.Format(time.RFC3339),
		"delta":         win.Delta.String(),
		"fade_duration": schedule.FadeDuration.String(),
	})

	if err := c.clock.Sleep(ctx, win.Delta); err != nil {
		return false, err
	}

	lights, err := gw.Lights(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, err
	}
	addresses := lights.Addresses()

	for _, addr := range addresses {
		l := lights[addr].Baseline()
		logger.Debug().Str("address", addr).Interface("state", l.State).Msg("Baseline state")
		c.apply(ctx, gw, l, -1)
	}

	c.publish(eventbus.EventTypeFadeStarted, runID, cycleID, map[string]interface{}{
		"lights": addresses,
	})

	chunk := ChunkDelta(schedule.FadeDuration)
	for i := 0; i < Steps; i++ {
		active, err := c.runtime.Activated()
		if err != nil {
			return false, fmt.Errorf("failed to read activation flag: %w", err)
		}
		if !active {
			logger.Info().Int("step", i).Msg("Exiting fade, deactivated")
			return false, nil
		}

		if err := c.clock.Sleep(ctx, chunk); err != nil {
			return false, err
		}

		logger.Debug().Int("step", i).Msg("Setting lights")
		states := make(map[string]interface{}, len(addresses))
		for _, addr := range addresses {
			l := lights[addr].
				ChangeBrightness(c.cfg.BrightnessStep).
				ChangeColorTemperature(-c.cfg.ColorTemperatureStep)
			c.apply(ctx, gw, l, i)
			states[addr] = l.State
		}

		c.publish(eventbus.EventTypeStepApplied, runID, cycleID, map[string]interface{}{
			"step":   i,
			"lights": states,
		})
	}

	logger.Info().Msg("Fade cycle completed")
	c.publish(eventbus.EventTypeCycleCompleted, runID, cycleID, map[string]interface{}{
		"lights": len(addresses),
	})

	return true, nil
}

// connect builds a fresh gateway session from the current endpoint and credential.
func (c *Controller) connect() (gateway.Gateway, error) {
	endpoint, err := c.runtime.Endpoint()
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway endpoint: %w", err)
	}
	credential, err := c.runtime.Credential()
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway credential: %w", err)
	}

	gw, err := c.dialer.Dial(endpoint, credential)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway connection: %w", err)
	}
	return gw, nil
}

// apply sends a light's state. Failures are logged and never abort the fade.
func (c *Controller) apply(ctx context.Context, gw gateway.Gateway, l *light.Light, step int) {
	results, err := gw.SetState(ctx, l.Address, l.State)
	if err != nil {
		log.Warn().Err(err).Str("address", l.Address).Int("step", step).Msg("Failed to set light state")
		return
	}

	for _, r := range results {
		if r.Err != nil {
			log.Debug().
				Str("address", r.Err.Address).
				Str("description", r.Err.Description).
				Int("type", r.Err.Type).
				Int("step", step).
				Msg("Light command failed")
			continue
		}
		log.Debug().Interface("success", r.Success).Int("step", step).Msg("Light command applied")
	}
}

func (c *Controller) publish(t eventbus.EventType, runID, cycleID string, data map[string]interface{}) {
	c.events.Publish(eventbus.Event{
		Type:    t,
		Time:    c.clock.Now(),
		RunID:   runID,
		CycleID: cycleID,
		Data:    data,
	})
}
