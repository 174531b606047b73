package alarm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dokzlo13/sunrised/internal/eventbus"
	"github.com/dokzlo13/sunrised/internal/gateway"
	"github.com/dokzlo13/sunrised/internal/light"
)

// fakeClock advances virtual time on every sleep and runs an optional hook
// with the zero-based index of the sleep.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int, d time.Duration)
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	n := len(c.sleeps) - 1
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n, d)
	}
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type command struct {
	address string
	state   light.State
}

// fakeGateway records commands. Lights listed in deviceErr answer with a
// per-device error, lights in transportErr fail at the transport level.
type fakeGateway struct {
	mu           sync.Mutex
	initial      map[string]light.State
	commands     []command
	deviceErr    map[string]bool
	transportErr map[string]bool
	lightsErr    error
	dials        int
}

func newFakeGateway(addresses ...string) *fakeGateway {
	g := &fakeGateway{
		initial:      map[string]light.State{},
		deviceErr:    map[string]bool{},
		transportErr: map[string]bool{},
	}
	for _, a := range addresses {
		g.initial[a] = light.State{On: false, Brightness: 100, ColorTemperature: 300}
	}
	return g
}

func (g *fakeGateway) dialer() gateway.Dialer {
	return gateway.DialFunc(func(endpoint, credential string) (gateway.Gateway, error) {
		g.mu.Lock()
		g.dials++
		g.mu.Unlock()
		return g, nil
	})
}

func (g *fakeGateway) Lights(ctx context.Context) (light.Set, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lightsErr != nil {
		return nil, g.lightsErr
	}

	set := light.Set{}
	for addr, st := range g.initial {
		set[addr] = &light.Light{
			Address:          addr,
			State:            st,
			Brightness:       light.Range{Min: 1, Max: 254},
			ColorTemperature: light.Range{Min: 153, Max: 500},
		}
	}
	return set, nil
}

func (g *fakeGateway) SetState(ctx context.Context, address string, state light.State) ([]gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.commands = append(g.commands, command{address: address, state: state})

	if g.transportErr[address] {
		return nil, errors.New("connection reset by peer")
	}
	if g.deviceErr[address] {
		return []gateway.Result{{Err: &gateway.DeviceCommandError{
			Address:     "/lights/" + address + "/state/bri",
			Description: "not modifiable",
			Type:        201,
		}}}, nil
	}
	return []gateway.Result{{Success: map[string]any{"/lights/" + address + "/state/on": true}}}, nil
}

func (g *fakeGateway) Close() error { return nil }

func (g *fakeGateway) Commands() []command {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]command(nil), g.commands...)
}

// recorder collects published events synchronously.
type recorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recorder) Publish(e eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Types() []eventbus.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]eventbus.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func (r *recorder) OfType(t eventbus.EventType) []eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []eventbus.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
