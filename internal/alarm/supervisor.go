package alarm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunrised/internal/eventbus"
	"github.com/dokzlo13/sunrised/internal/state"
)

// Exit reasons reported in run_exited events.
const (
	ExitDeactivated = "deactivated"
	ExitError       = "error"
	ExitCancelled   = "cancelled"
)

// Runner is one fade controller run.
type Runner interface {
	Run(ctx context.Context, runID string) (int, error)
}

// SupervisorConfig contains restart settings.
type SupervisorConfig struct {
	MinBackoff       time.Duration // Delay before the first restart after an error (0 = immediate)
	MaxBackoff       time.Duration // Upper bound for the restart delay
	Multiplier       float64       // Backoff multiplier
	ReactivationPoll time.Duration // How often to check the flag after a deactivation exit
}

// DefaultSupervisorConfig returns the default restart settings.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		MinBackoff:       1 * time.Second,
		MaxBackoff:       1 * time.Minute,
		Multiplier:       2.0,
		ReactivationPoll: 1 * time.Second,
	}
}

// Supervisor keeps a fade controller running for the lifetime of the process.
type Supervisor struct {
	runner  Runner
	runtime *state.Runtime
	clock   Clock
	events  Publisher
	cfg     SupervisorConfig

	running atomic.Bool
	runs    atomic.Int64
}

// NewSupervisor creates a supervisor for runner.
func NewSupervisor(runner Runner, runtime *state.Runtime, clock Clock, events Publisher, cfg SupervisorConfig) *Supervisor {
	if clock == nil {
		clock = SystemClock()
	}
	if events == nil {
		events = discard{}
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	if cfg.ReactivationPoll <= 0 {
		cfg.ReactivationPoll = time.Second
	}

	return &Supervisor{
		runner:  runner,
		runtime: runtime,
		clock:   clock,
		events:  events,
		cfg:     cfg,
	}
}

// Running reports whether the supervisor loop is active.
func (s *Supervisor) Running() bool {
	return s.running.Load()
}

// Runs returns the number of controller runs started so far.
func (s *Supervisor) Runs() int64 {
	return s.runs.Load()
}

// Run starts controller runs until ctx is done. After an error the next run is
// delayed by an exponential backoff; after a deactivation the next run starts
// once the activation flag is set again.
func (s *Supervisor) Run(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)

	log.Info().Msg("Alarm supervisor started")

	backoff := s.cfg.MinBackoff
	for {
		runID := uuid.NewString()
		s.runs.Add(1)

		log.Info().Str("run_id", runID).Msg("Starting fade controller")
		cycles, err := s.runOnce(ctx, runID)

		if ctx.Err() != nil {
			s.publishExit(runID, ExitCancelled, cycles, nil)
			log.Info().Msg("Alarm supervisor stopping")
			return nil
		}

		if cycles > 0 {
			backoff = s.cfg.MinBackoff
		}

		if err != nil {
			s.publishExit(runID, ExitError, cycles, err)
			log.Error().
				Err(err).
				Str("run_id", runID).
				Int("cycles", cycles).
				Dur("backoff", backoff).
				Msg("Fade controller failed, restarting")

			if err := s.clock.Sleep(ctx, backoff); err != nil {
				return nil
			}
			backoff = s.nextBackoff(backoff)
			continue
		}

		s.publishExit(runID, ExitDeactivated, cycles, nil)
		log.Info().Str("run_id", runID).Int("cycles", cycles).Msg("Fade controller exited, deactivated")
		backoff = s.cfg.MinBackoff

		if err := s.waitForActivation(ctx); err != nil {
			return nil
		}
	}
}

// runOnce runs the controller in its own goroutine and converts a panic into an error.
func (s *Supervisor) runOnce(ctx context.Context, runID string) (int, error) {
	type result struct {
		cycles int
		err    error
	}

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("fade controller panicked: %v", r)}
			}
		}()
		cycles, err := s.runner.Run(ctx, runID)
		done <- result{cycles: cycles, err: err}
	}()

	res := <-done
	if errors.Is(res.err, context.Canceled) && ctx.Err() != nil {
		res.err = nil
	}
	return res.cycles, res.err
}

// waitForActivation polls the activation flag until it is set.
func (s *Supervisor) waitForActivation(ctx context.Context) error {
	for {
		active, err := s.runtime.Activated()
		if err != nil {
			log.Error().Err(err).Msg("Failed to read activation flag")
		} else if active {
			log.Info().Msg("Alarm reactivated")
			return nil
		}

		if err := s.clock.Sleep(ctx, s.cfg.ReactivationPoll); err != nil {
			return err
		}
	}
}

func (s *Supervisor) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * s.cfg.Multiplier)
	if next > s.cfg.MaxBackoff {
		next = s.cfg.MaxBackoff
	}
	return next
}

func (s *Supervisor) publishExit(runID, reason string, cycles int, err error) {
	data := map[string]interface{}{
		"reason": reason,
		"cycles": cycles,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	s.events.Publish(eventbus.Event{
		Type:  eventbus.EventTypeRunExited,
		Time:  s.clock.Now(),
		RunID: runID,
		Data:  data,
	})
}
