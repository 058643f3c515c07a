// Package telemetry implements the "influx" broker runner: spec.md §1
// keeps the real time-series write-through out of scope, but the
// routing seam is part of the broker's registry contract, so this
// stub logs every InfluxDataSave it receives. Grounded in the original
// source's lib-server/src/broker.rs TelemetryData → "influx" routing
// and main.rs's influx_run task.
package telemetry

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/nimbic-io/otahub/internal/broker"
)

// Sink is the "influx" runner: it never writes to a real time-series
// database, only logs what it would have written.
type Sink struct {
	log logr.Logger
	in  chan broker.Event
}

func New(log logr.Logger) *Sink {
	return &Sink{
		log: log,
		in:  make(chan broker.Event, 256),
	}
}

// Inbox returns the channel the sink should be registered with under
// the broker name "influx".
func (s *Sink) Inbox() chan broker.Event {
	return s.in
}

func (s *Sink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.in:
			if save, ok := ev.(broker.InfluxDataSave); ok {
				s.log.Info("telemetry write-through (stub)", "query", save.Query)
			}
		}
	}
}
