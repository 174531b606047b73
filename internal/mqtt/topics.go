package mqtt

import (
	"strings"

	"github.com/dokzlo13/sunrised/internal/eventbus"
)

// Topics builds topic names under a common prefix.
type Topics struct {
	prefix string
}

// NewTopics creates topics rooted at prefix. Trailing slashes are ignored.
func NewTopics(prefix string) Topics {
	return Topics{prefix: strings.TrimRight(prefix, "/")}
}

// Event is where a controller lifecycle event of type t is published.
func (t Topics) Event(eventType eventbus.EventType) string {
	return t.prefix + "/event/" + string(eventType)
}

// Progress holds the latest applied step (retained).
func (t Topics) Progress() string {
	return t.prefix + "/progress"
}

// Activated holds the activation flag (retained).
func (t Topics) Activated() string {
	return t.prefix + "/activated"
}

// ActivatedSet receives activation commands.
func (t Topics) ActivatedSet() string {
	return t.prefix + "/activated/set"
}

// Status holds online/offline (retained, also the LWT topic).
func (t Topics) Status() string {
	return t.prefix + "/status"
}
