// Package gateway defines the device gateway used to enumerate and command lights,
// and the errors it reports.
package gateway

import (
	"context"
	"fmt"

	"github.com/dokzlo13/sunrised/internal/light"
)

// Gateway is a session with a lighting hub.
type Gateway interface {
	// Lights enumerates all controllable lights with their current state.
	Lights(ctx context.Context) (light.Set, error)

	// SetState applies a state to one light. Per-attribute failures reported by the
	// hub are returned as results carrying a DeviceCommandError; the error return is
	// reserved for transport failures.
	SetState(ctx context.Context, address string, state light.State) ([]Result, error)

	// Close releases the session.
	Close() error
}

// Dialer constructs gateway sessions.
type Dialer interface {
	Dial(endpoint, credential string) (Gateway, error)
}

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(endpoint, credential string) (Gateway, error)

// Dial calls f.
func (f DialFunc) Dial(endpoint, credential string) (Gateway, error) {
	return f(endpoint, credential)
}

// Result is the outcome of one attribute of a command.
type Result struct {
	Success map[string]any
	Err     *DeviceCommandError
}

// OK reports whether the result is a success acknowledgment.
func (r Result) OK() bool {
	return r.Err == nil
}

// DeviceCommandError describes a failed command for a single light.
type DeviceCommandError struct {
	Address     string
	Description string
	Type        int
}

func (e *DeviceCommandError) Error() string {
	return fmt.Sprintf("%s failed with '%s' (code: %d)", e.Address, e.Description, e.Type)
}

// ConnectionError is returned when a gateway session cannot be established
// or the hub cannot be reached for enumeration.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
