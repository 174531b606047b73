// Package light models a controllable light and its desired state.
package light

import "sort"

// Range is an inclusive bound for a device property.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Clamp limits v to the range.
func (r Range) Clamp(v int) int {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// State is the desired state of a light.
type State struct {
	On               bool `json:"on"`
	Brightness       int  `json:"bri"`
	ColorTemperature int  `json:"ct"` // mirek: higher is warmer
}

// Light is one addressable light with its device-defined bounds.
type Light struct {
	Address          string
	Name             string
	State            State
	Brightness       Range
	ColorTemperature Range
}

// Baseline switches the light on at its dimmest and warmest setting.
func (l *Light) Baseline() *Light {
	l.State.On = true
	l.State.Brightness = l.Brightness.Min
	l.State.ColorTemperature = l.ColorTemperature.Max
	return l
}

// ChangeBrightness moves brightness by delta, clamped to the device bounds.
func (l *Light) ChangeBrightness(delta int) *Light {
	l.State.Brightness = l.Brightness.Clamp(l.State.Brightness + delta)
	return l
}

// ChangeColorTemperature moves color temperature by delta, clamped to the device bounds.
func (l *Light) ChangeColorTemperature(delta int) *Light {
	l.State.ColorTemperature = l.ColorTemperature.Clamp(l.State.ColorTemperature + delta)
	return l
}

// Set is a collection of lights keyed by address.
type Set map[string]*Light

// Addresses returns the addresses in a stable order.
func (s Set) Addresses() []string {
	addrs := make([]string, 0, len(s))
	for addr := range s {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}
