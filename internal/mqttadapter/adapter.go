// Package mqttadapter implements spec.md §4.3: the MQTT ingress/egress
// adapter. It connects as a local client to the broker's embedded (or
// external) MQTT server, subscribes to the device wildcard filter,
// parses topics, decodes payloads, and emits/consumes bus events.
// Grounded on the teacher's pkg/mqtt client and the original source's
// lib-server/src/mqtt.rs topic/payload handling.
package mqttadapter

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/nimbic-io/otahub/internal/broker"
	"github.com/nimbic-io/otahub/internal/pkg/mqtt/paths"
	"github.com/nimbic-io/otahub/internal/wire"
	"github.com/nimbic-io/otahub/pkg/mqtt"
)

const publishQoS = 1

// Adapter bridges the MQTT transport and the broker's event bus.
type Adapter struct {
	log    logr.Logger
	client mqtt.Client

	in  chan broker.Event
	out chan<- broker.Event
}

// New constructs an Adapter over an already-configured (but not yet
// started) MQTT client.
func New(client mqtt.Client, out chan<- broker.Event, log logr.Logger) *Adapter {
	return &Adapter{
		log:    log,
		client: client,
		in:     make(chan broker.Event, 256),
		out:    out,
	}
}

// Inbox returns the channel the adapter should be registered with under
// the broker name "mqtt".
func (a *Adapter) Inbox() chan broker.Event {
	return a.in
}

// Run starts the MQTT client, subscribes to the device wildcard filter,
// and serially processes outbound bus events until ctx is cancelled.
// Inbound MQTT messages are routed by handleMessage, which pkg/mqtt runs
// on a new goroutine for each received message, directly onto the bus,
// not through Run's loop — Run only owns the outbound direction, so all
// publishes come from this single task.
func (a *Adapter) Run(ctx context.Context) error {
	if err := a.client.Start(ctx); err != nil {
		return fmt.Errorf("mqtt adapter: start client: %w", err)
	}
	defer a.client.Disconnect(ctx)

	if err := a.client.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("mqtt adapter: await connection: %w", err)
	}

	if err := a.client.Subscribe(ctx, paths.SubscribeFilter, 1, a.handleMessage); err != nil {
		return fmt.Errorf("mqtt adapter: subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.in:
			a.dispatchOutbound(ctx, ev)
		}
	}
}

// handleMessage implements spec.md §4.3's inbound routing. Decode errors
// are logged and the message dropped; the MQTT session is never
// disconnected over a bad payload.
func (a *Adapter) handleMessage(ctx context.Context, topic string, payload []byte) {
	parsed, err := parseTopic(topic)
	if err != nil {
		a.log.Info("dropping message on unparseable topic", "topic", topic, "error", err.Error())
		return
	}

	switch parsed.Channel {
	case paths.OTA:
		a.handleOtaRequest(ctx, parsed.DeviceID, payload)
	case paths.Telemetry:
		a.handleTelemetry(ctx, parsed.DeviceID, payload)
	default:
		a.out <- broker.ApplicationRequest{DeviceID: parsed.DeviceID, Target: parsed.Channel, Msg: payload}
	}
}

func (a *Adapter) handleOtaRequest(ctx context.Context, deviceID string, payload []byte) {
	cmd, err := decodeOtaRequestCmd(payload)
	if err != nil {
		a.log.Info("dropping malformed ota request", "deviceID", deviceID, "error", err.Error())
		return
	}
	a.out <- broker.OtaRequestEvent{DeviceID: deviceID, Cmd: cmd}
}

// decodeOtaRequestCmd tolerates both encodings spec.md §4.3 allows for a
// device's OTA heartbeat: the map form {cmd:u8} and a bare legacy cmd
// byte. The map form is tried first since it is the current encoding;
// the bare byte is a fallback for older devices still on the legacy
// wire shape.
func decodeOtaRequestCmd(payload []byte) (wire.OtaRequestCmd, error) {
	var req wire.OtaRequest
	if err := wire.Unmarshal(payload, &req); err == nil {
		return req.Cmd, nil
	}

	var cmd wire.OtaRequestCmd
	if err := wire.Unmarshal(payload, &cmd); err != nil {
		return 0, fmt.Errorf("decode ota request: %w", err)
	}
	return cmd, nil
}

func (a *Adapter) handleTelemetry(ctx context.Context, deviceID string, payload []byte) {
	var telemetry map[string]any
	if err := wire.Unmarshal(payload, &telemetry); err != nil {
		a.log.Info("dropping malformed telemetry", "deviceID", deviceID, "error", err.Error())
		return
	}
	a.out <- broker.InfluxDataSave{Query: telemetryWriteQuery(deviceID, telemetry)}
}

// dispatchOutbound implements spec.md §4.3's outbound routing.
func (a *Adapter) dispatchOutbound(ctx context.Context, ev broker.Event) {
	switch e := ev.(type) {
	case broker.OtaResponseEvent:
		a.publishOtaResponse(ctx, e)
	case broker.ApplicationResponse:
		a.publishApplicationResponse(ctx, e)
	default:
		// Not addressed to the MQTT adapter.
	}
}

func (a *Adapter) publishOtaResponse(ctx context.Context, ev broker.OtaResponseEvent) {
	data, err := wire.Marshal(ev.Package)
	if err != nil {
		a.log.Error(err, "failed to encode ota response", "deviceID", ev.DeviceID)
		return
	}
	topic := otaSubTopic(ev.DeviceID)
	if err := a.client.Publish(ctx, topic, publishQoS, false, data); err != nil {
		a.log.Error(err, "failed to publish ota response", "topic", topic)
	}
}

func (a *Adapter) publishApplicationResponse(ctx context.Context, ev broker.ApplicationResponse) {
	topic := applicationSubTopic(ev.DeviceID, ev.Target)
	if err := a.client.Publish(ctx, topic, publishQoS, false, ev.Msg); err != nil {
		a.log.Error(err, "failed to publish application response", "topic", topic)
	}
}
