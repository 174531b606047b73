// Package state provides the runtime state shared by the fade controller and the
// configuration service. Every field is guarded independently so that reading
// one never waits on a writer of another.
package state

import (
	"fmt"
	"time"
)

// MaxFadeDuration is the longest accepted fade window.
const MaxFadeDuration = 24 * time.Hour

// Schedule is the alarm schedule: the time of day at which lights must be at
// full brightness and how long the fade towards it lasts.
type Schedule struct {
	WakeTime     time.Duration // offset since local midnight
	FadeDuration time.Duration
}

// Validate checks that the schedule describes a reachable daily window.
func (s Schedule) Validate() error {
	if s.WakeTime < 0 || s.WakeTime >= 24*time.Hour {
		return fmt.Errorf("wake time %s must be within [0s, 24h)", s.WakeTime)
	}
	if s.FadeDuration < 0 {
		return fmt.Errorf("fade duration %s must not be negative", s.FadeDuration)
	}
	if s.FadeDuration > MaxFadeDuration {
		return fmt.Errorf("fade duration %s exceeds %s", s.FadeDuration, MaxFadeDuration)
	}
	return nil
}

// Runtime is the mutable state of a running daemon.
type Runtime struct {
	schedule   *Cell[Schedule]
	activated  *Cell[bool]
	endpoint   *Cell[string]
	credential *Cell[string]
}

// NewRuntime creates the runtime state from the initial configuration.
func NewRuntime(schedule Schedule, activated bool, endpoint, credential string) *Runtime {
	return &Runtime{
		schedule:   NewCell("schedule", schedule),
		activated:  NewCell("activated", activated),
		endpoint:   NewCell("endpoint", endpoint),
		credential: NewCell("credential", credential),
	}
}

// Schedule returns the current alarm schedule.
func (r *Runtime) Schedule() (Schedule, error) {
	return r.schedule.Get()
}

// SetSchedule replaces the alarm schedule. The fade controller picks it up at the
// start of its next window computation.
func (r *Runtime) SetSchedule(s Schedule) error {
	return r.schedule.Set(s)
}

// Activated reports whether fades should run.
func (r *Runtime) Activated() (bool, error) {
	return r.activated.Get()
}

// SetActivated replaces the activation flag.
func (r *Runtime) SetActivated(v bool) error {
	return r.activated.Set(v)
}

// ToggleActivated flips the activation flag and returns the new value.
func (r *Runtime) ToggleActivated() (bool, error) {
	var next bool
	err := r.activated.Update(func(current bool) bool {
		next = !current
		return next
	})
	return next, err
}

// Endpoint returns the gateway endpoint.
func (r *Runtime) Endpoint() (string, error) {
	return r.endpoint.Get()
}

// SetEndpoint replaces the gateway endpoint.
func (r *Runtime) SetEndpoint(v string) error {
	return r.endpoint.Set(v)
}

// Credential returns the gateway credential.
func (r *Runtime) Credential() (string, error) {
	return r.credential.Get()
}

// SetCredential replaces the gateway credential.
func (r *Runtime) SetCredential(v string) error {
	return r.credential.Set(v)
}
