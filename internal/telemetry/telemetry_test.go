package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/nimbic-io/otahub/internal/broker"
)

func TestRunLogsInfluxDataSaveAndIgnoresOthers(t *testing.T) {
	s := New(logr.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Inbox() <- broker.InfluxDataSave{Query: "insert into telemetry..."}
	s.Inbox() <- broker.AckEvent{Op: "AddOta", OK: true}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
