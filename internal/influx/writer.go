// Package influx records per-step fade telemetry in InfluxDB.
package influx

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunrised/internal/config"
	"github.com/dokzlo13/sunrised/internal/eventbus"
	"github.com/dokzlo13/sunrised/internal/light"
)

// Measurement is the name of the per-step measurement.
const Measurement = "sunrise_step"

const pingTimeout = 5 * time.Second

var ErrConnectionFailed = errors.New("influxdb connection failed")

// PointWriter accepts points for asynchronous writing.
type PointWriter interface {
	WritePoint(point *write.Point)
}

// Writer writes step telemetry through the non-blocking write API.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// Connect creates the client and verifies the server responds.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Writer, error) {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(cfg.BatchSize)).
			SetFlushInterval(uint(cfg.FlushInterval.Duration().Milliseconds())),
	)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.Warn().Err(err).Msg("InfluxDB write failed")
		}
	}()

	log.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("Connected to InfluxDB")
	return &Writer{client: client, writeAPI: writeAPI}, nil
}

// Handler returns an event bus handler for step events.
func (w *Writer) Handler() eventbus.Handler {
	return StepHandler(w.writeAPI)
}

// Close flushes pending points and closes the client.
func (w *Writer) Close() {
	w.writeAPI.Flush()
	w.client.Close()
}

// StepHandler converts step_applied events into points written to pw.
func StepHandler(pw PointWriter) eventbus.Handler {
	return func(e eventbus.Event) {
		if e.Type != eventbus.EventTypeStepApplied {
			return
		}
		for _, p := range StepPoints(e) {
			pw.WritePoint(p)
		}
	}
}

// StepPoints builds one point per light from a step_applied event, in address order.
func StepPoints(e eventbus.Event) []*write.Point {
	step, _ := e.Data["step"].(int)
	lights, _ := e.Data["lights"].(map[string]interface{})

	addresses := make([]string, 0, len(lights))
	for addr := range lights {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	points := make([]*write.Point, 0, len(lights))
	for _, addr := range addresses {
		st, ok := lights[addr].(light.State)
		if !ok {
			continue
		}
		points = append(points, write.NewPoint(
			Measurement,
			map[string]string{
				"light":  addr,
				"run_id": e.RunID,
			},
			map[string]interface{}{
				"step":              step,
				"brightness":        st.Brightness,
				"color_temperature": st.ColorTemperature,
			},
			e.Time,
		))
	}
	return points
}
