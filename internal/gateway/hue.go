package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/sunrised/internal/light"
)

// Attribute limits of the v1 light state on the wire.
var (
	WireBrightness       = light.Range{Min: 0, Max: 254}
	WireColorTemperature = light.Range{Min: 0, Max: 65535}
)

// HueConfig configures sessions against Hue v1 compatible REST gateways
// (Philips Hue bridge, deCONZ).
type HueConfig struct {
	RateLimitRPS     float64
	Brightness       light.Range
	ColorTemperature light.Range
}

// HueDialer creates huego-backed gateway sessions.
type HueDialer struct {
	cfg HueConfig
}

// NewHueDialer creates a new dialer.
func NewHueDialer(cfg HueConfig) *HueDialer {
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 10.0
	}
	return &HueDialer{cfg: cfg}
}

// Dial validates the endpoint and credential and returns a session.
// It does not perform network I/O.
func (d *HueDialer) Dial(endpoint, credential string) (Gateway, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpoint, Err: fmt.Errorf("invalid endpoint: %w", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConnectionError{Endpoint: endpoint, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &ConnectionError{Endpoint: endpoint, Err: errors.New("endpoint has no host")}
	}
	if credential == "" {
		return nil, &ConnectionError{Endpoint: endpoint, Err: errors.New("empty api key")}
	}

	burst := int(d.cfg.RateLimitRPS)
	if burst < 1 {
		burst = 1
	}

	return &HueGateway{
		endpoint: endpoint,
		bridge:   huego.New(u.String(), credential),
		limiter:  rate.NewLimiter(rate.Limit(d.cfg.RateLimitRPS), burst),
		cfg:      d.cfg,
	}, nil
}

// HueGateway implements Gateway using huego.
type HueGateway struct {
	endpoint string
	bridge   *huego.Bridge
	limiter  *rate.Limiter
	cfg      HueConfig
}

// Lights enumerates all lights known to the gateway.
func (g *HueGateway) Lights(ctx context.Context) (light.Set, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	lights, err := g.bridge.GetLights()
	if err != nil {
		return nil, &ConnectionError{Endpoint: g.endpoint, Err: fmt.Errorf("failed to enumerate lights: %w", err)}
	}

	set := make(light.Set, len(lights))
	for _, l := range lights {
		addr := strconv.Itoa(l.ID)
		item := &light.Light{
			Address:          addr,
			Name:             l.Name,
			Brightness:       g.cfg.Brightness,
			ColorTemperature: g.cfg.ColorTemperature,
		}
		if l.State != nil {
			item.State = light.State{
				On:               l.State.On,
				Brightness:       int(l.State.Bri),
				ColorTemperature: int(l.State.Ct),
			}
		}
		set[addr] = item
	}

	log.Debug().Int("lights", len(set)).Str("endpoint", g.endpoint).Msg("Enumerated lights")
	return set, nil
}

// SetState applies the state to a light.
func (g *HueGateway) SetState(ctx context.Context, address string, state light.State) ([]Result, error) {
	id, err := strconv.Atoi(address)
	if err != nil {
		return nil, fmt.Errorf("invalid light address %q: %w", address, err)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := g.bridge.SetLightStateContext(ctx, id, huego.State{
		On:  state.On,
		Bri: uint8(WireBrightness.Clamp(state.Brightness)),
		Ct:  uint16(WireColorTemperature.Clamp(state.ColorTemperature)),
	})
	if err != nil {
		var apiErr *huego.APIError
		if errors.As(err, &apiErr) {
			return []Result{{Err: &DeviceCommandError{
				Address:     apiErr.Address,
				Description: apiErr.Description,
				Type:        apiErr.Type,
			}}}, nil
		}
		return nil, err
	}

	results := make([]Result, 0, 1)
	if resp != nil {
		results = append(results, Result{Success: resp.Success})
	}
	return results, nil
}

// Close is a no-op; huego keeps no per-session resources.
func (g *HueGateway) Close() error {
	return nil
}
