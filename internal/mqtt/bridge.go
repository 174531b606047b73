package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunrised/internal/eventbus"
	"github.com/dokzlo13/sunrised/internal/state"
)

// Transport is the subset of Client used by the bridge.
type Transport interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler MessageHandler) error
}

// Bridge mirrors controller events to MQTT and writes activation commands
// received from MQTT into the runtime state.
type Bridge struct {
	transport Transport
	runtime   *state.Runtime
	topics    Topics
}

// NewBridge creates a bridge.
func NewBridge(transport Transport, runtime *state.Runtime, topics Topics) *Bridge {
	return &Bridge{
		transport: transport,
		runtime:   runtime,
		topics:    topics,
	}
}

// Start subscribes to activation commands and publishes the current flag.
func (b *Bridge) Start() error {
	if err := b.transport.Subscribe(b.topics.ActivatedSet(), b.handleSet); err != nil {
		return err
	}

	active, err := b.runtime.Activated()
	if err != nil {
		return err
	}
	return b.publishActivated(active)
}

// Handler returns an event bus handler publishing every event it receives.
// Step events update the retained progress topic, other events go to their
// own event topic.
func (b *Bridge) Handler() eventbus.Handler {
	return func(e eventbus.Event) {
		payload, err := json.Marshal(eventPayload{
			Type:    e.Type,
			Time:    e.Time.UTC(),
			RunID:   e.RunID,
			CycleID: e.CycleID,
			Data:    e.Data,
		})
		if err != nil {
			log.Error().Err(err).Str("event_type", string(e.Type)).Msg("Failed to encode MQTT event")
			return
		}

		topic, retained := b.topics.Event(e.Type), false
		if e.Type == eventbus.EventTypeStepApplied {
			topic, retained = b.topics.Progress(), true
		}

		if err := b.transport.Publish(topic, payload, retained); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Failed to publish MQTT event")
		}
	}
}

type eventPayload struct {
	Type    eventbus.EventType     `json:"type"`
	Time    time.Time              `json:"time"`
	RunID   string                 `json:"run_id,omitempty"`
	CycleID string                 `json:"cycle_id,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (b *Bridge) handleSet(topic string, payload []byte) error {
	value, toggle, err := ParseActivation(payload)
	if err != nil {
		return err
	}

	if toggle {
		value, err = b.runtime.ToggleActivated()
	} else {
		err = b.runtime.SetActivated(value)
	}
	if err != nil {
		return fmt.Errorf("failed to update activation flag: %w", err)
	}

	log.Info().Bool("activated", value).Str("topic", topic).Msg("Activation flag set via MQTT")
	return b.publishActivated(value)
}

func (b *Bridge) publishActivated(active bool) error {
	payload, _ := json.Marshal(map[string]bool{"activated": active})
	return b.transport.Publish(b.topics.Activated(), payload, true)
}

// ParseActivation parses an activation command. It accepts true/false, on/off,
// 1/0, toggle, and a JSON object {"activated": bool}.
func ParseActivation(payload []byte) (value bool, toggle bool, err error) {
	s := strings.ToLower(strings.TrimSpace(string(payload)))

	switch s {
	case "true", "on", "1":
		return true, false, nil
	case "false", "off", "0":
		return false, false, nil
	case "toggle":
		return false, true, nil
	}

	if strings.HasPrefix(s, "{") {
		var body struct {
			Activated *bool `json:"activated"`
		}
		if err := json.Unmarshal(payload, &body); err == nil && body.Activated != nil {
			return *body.Activated, false, nil
		}
	}

	return false, false, fmt.Errorf("invalid activation payload %q", string(payload))
}
