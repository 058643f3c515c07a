// Package paths defines the topic segment vocabulary for the device OTA
// protocol carried over MQTT.
package paths

// SubscribeFilter is the single wildcard filter the MQTT adapter subscribes
// to at startup: every device, every channel, publish direction only.
// Pattern: "+/+/pub"
const SubscribeFilter = "+/+/pub"

// Publish-direction and subscribe-direction channel suffixes, joined as
// "<device-id>/<channel>/<suffix>".
const (
	PublishSuffix   = "pub"
	SubscribeSuffix = "sub"
)

// Reserved channel tokens. Any other token is an application-defined
// channel and is forwarded verbatim as application data.
const (
	// OTA carries OTA request/response traffic.
	// Upstream:   {device-id}/ota/pub   payload {cmd: u8}
	// Downstream: {device-id}/ota/sub   payload packed CBOR OTAPackage
	OTA = "ota"

	// App is the default application-data passthrough channel.
	App = "app"

	// Telemetry carries device telemetry, forwarded to the broker's
	// telemetry runner and otherwise left unprocessed by the MQTT adapter.
	Telemetry = "tel"
)
