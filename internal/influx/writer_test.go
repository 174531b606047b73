package influx

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sunrised/internal/eventbus"
	"github.com/dokzlo13/sunrised/internal/light"
)

type fakeWriter struct {
	points []*write.Point
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.points = append(f.points, p)
}

func stepEvent() eventbus.Event {
	return eventbus.Event{
		Type:  eventbus.EventTypeStepApplied,
		Time:  time.Date(2024, time.March, 14, 6, 30, 0, 0, time.UTC),
		RunID: "run-1",
		Data: map[string]interface{}{
			"step": 12,
			"lights": map[string]interface{}{
				"2": light.State{On: true, Brightness: 14, ColorTemperature: 487},
				"1": light.State{On: true, Brightness: 13, ColorTemperature: 488},
			},
		},
	}
}

func TestStepPoints(t *testing.T) {
	points := StepPoints(stepEvent())
	require.Len(t, points, 2)

	assert.Equal(t, Measurement, points[0].Name())

	line := write.PointToLineProtocol(points[0], time.Second)
	assert.Contains(t, line, "sunrise_step,light=1,run_id=run-1 ")
	assert.Contains(t, line, "brightness=13i")
	assert.Contains(t, line, "color_temperature=488i")
	assert.Contains(t, line, "step=12i")
	assert.Contains(t, line, " 1710397800")

	assert.Contains(t, write.PointToLineProtocol(points[1], time.Second), "light=2")
}

func TestStepHandler(t *testing.T) {
	w := &fakeWriter{}
	handle := StepHandler(w)

	handle(eventbus.Event{Type: eventbus.EventTypeCycleCompleted})
	assert.Empty(t, w.points)

	handle(stepEvent())
	assert.Len(t, w.points, 2)

	handle(eventbus.Event{Type: eventbus.EventTypeStepApplied, Data: map[string]interface{}{"step": 1}})
	assert.Len(t, w.points, 2)
}
