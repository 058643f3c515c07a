package broker

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

func newTestBroker() *Broker {
	return New(logr.Discard())
}

func TestRegisterIsIdempotent(t *testing.T) {
	b := newTestBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	first := make(chan Event, 1)
	second := make(chan Event, 1)

	b.Register(ctx, "mqtt", first)
	b.Register(ctx, "mqtt", second)

	// Give the loop a chance to process both registrations.
	time.Sleep(20 * time.Millisecond)

	b.Send(ctx, OtaRequestEvent{DeviceID: "1234", Cmd: 0})

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("expected first registrant to receive the broadcast event")
	}

	select {
	case ev := <-second:
		t.Fatalf("second registration should have been ignored, but received %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesAllRunners(t *testing.T) {
	b := newTestBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	a := make(chan Event, 1)
	c := make(chan Event, 1)
	b.Register(ctx, "a", a)
	b.Register(ctx, "c", c)
	time.Sleep(20 * time.Millisecond)

	b.Send(ctx, InfluxDataSave{Query: "write telemetry"})

	for _, ch := range []chan Event{a, c} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("expected every registered runner to receive the broadcast")
		}
	}
}

func TestBroadcastToFullChannelDoesNotBlockOrPanic(t *testing.T) {
	b := newTestBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	full := make(chan Event) // unbuffered, never drained
	b.Register(ctx, "slow", full)
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		b.Send(ctx, InfluxDataSave{Query: "x"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send should not block on a slow/unready recipient")
	}
}
