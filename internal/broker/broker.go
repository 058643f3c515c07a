// Package broker implements the event-routed message bus: a single
// long-lived task owning a registry of named runners, forwarding every
// inbound event to all of them. Grounded on the original source's
// lib-server/src/broker.rs event loop (a HashMap<String, Sender<Event>>
// populated via an idempotent Event::NewRunner) and on the teacher's
// errgroup-joined task style (internal/cloudhub/server/manager.go).
package broker

import (
	"context"
	"sync"

	"github.com/go-logr/logr"

	"github.com/nimbic-io/otahub/internal/metrics"
)

// inboxSize bounds the broker's inbox channel. spec.md §5 calls for
// unbounded channels; Go has no unbounded channel primitive, so a
// generous fixed capacity stands in for it (see DESIGN.md).
const inboxSize = 4096

// Broker is the single owner of the name→sender routing table. It must
// be constructed with New and driven by Run; Send is safe to call from
// any goroutine, including before Run starts (the inbox absorbs events up
// to inboxSize).
type Broker struct {
	log logr.Logger

	inbox chan Event

	mu      sync.RWMutex
	runners map[string]chan<- Event
}

// New constructs a Broker. log should already be named (e.g.
// log.WithName("broker")) by the caller.
func New(log logr.Logger) *Broker {
	return &Broker{
		log:     log,
		inbox:   make(chan Event, inboxSize),
		runners: make(map[string]chan<- Event),
	}
}

// Send enqueues an event for routing. It blocks only if the broker's
// inbox is full, which under normal operation (human-driven admin
// traffic, one request per device per heartbeat) does not happen.
func (b *Broker) Send(ctx context.Context, ev Event) {
	select {
	case b.inbox <- ev:
	case <-ctx.Done():
	}
}

// Register is a convenience wrapper around Send(NewRunner{...}) for
// callers that construct their own channel before subscribing.
func (b *Broker) Register(ctx context.Context, name string, sender chan<- Event) {
	b.Send(ctx, NewRunner{Name: name, Sender: sender})
}

// Run drives the broker's event loop until ctx is cancelled. It never
// returns a non-nil error on a malformed or unknown event — per spec.md
// §4.1, "the broker never terminates on a malformed event" — so the only
// way Run returns is ctx cancellation, at which point it returns
// ctx.Err() for errgroup.Group to observe as expected shutdown.
func (b *Broker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-b.inbox:
			b.route(ev)
		}
	}
}

func (b *Broker) route(ev Event) {
	if nr, ok := ev.(NewRunner); ok {
		b.register(nr)
		return
	}
	b.broadcast(ev)
}

// register inserts a new runner if its name is not already present.
// Duplicate registrations are ignored, matching the append-only registry
// invariant in spec.md §3.
func (b *Broker) register(nr NewRunner) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.runners[nr.Name]; exists {
		b.log.Info("runner already registered, ignoring", "name", nr.Name)
		return
	}
	b.runners[nr.Name] = nr.Sender
	b.log.Info("runner registered", "name", nr.Name)
}

// broadcast forwards ev to every registered runner. Delivery is
// best-effort: a full or closed recipient channel is logged and the
// recipient is not unregistered (spec.md §4.1).
func (b *Broker) broadcast(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	name := eventName(ev)
	metrics.EventsRoutedTotal.WithLabelValues(name).Inc()

	for runnerName, sender := range b.runners {
		select {
		case sender <- ev:
		default:
			metrics.EventsDroppedTotal.WithLabelValues(runnerName, name).Inc()
			b.log.Info("dropping event for slow or closed runner", "runner", runnerName, "event", name)
		}
	}
}

// eventName returns a short, loggable name for an event's concrete type.
func eventName(ev Event) string {
	switch ev.(type) {
	case NewRunner:
		return "NewRunner"
	case OtaNewPackage:
		return "OtaNewPackage"
	case OtaDeletePackage:
		return "OtaDeletePackage"
	case OtaLinkEvent:
		return "OtaLink"
	case OtaUnlinkEvent:
		return "OtaUnlink"
	case OtaRequestEvent:
		return "OtaRequest"
	case OtaResponseEvent:
		return "OtaResponse"
	case OtaUpdateGroupListRequest:
		return "OtaUpdateGroupListRequest"
	case OtaUpdateGroupListResponse:
		return "OtaUpdateGroupListResponse"
	case OtaUpdateImageListRequest:
		return "OtaUpdateImageListRequest"
	case OtaUpdateImageListResponse:
		return "OtaUpdateImageListResponse"
	case ApplicationManagementRequest:
		return "ApplicationManagementRequest"
	case ApplicationManagementResponse:
		return "ApplicationManagementResponse"
	case ApplicationRequest:
		return "ApplicationRequest"
	case ApplicationResponse:
		return "ApplicationResponse"
	case OtaPackageSaved:
		return "OtaPackageSaved"
	case InfluxDataSave:
		return "InfluxDataSave"
	case AckEvent:
		return "AckEvent"
	default:
		return "unknown"
	}
}
