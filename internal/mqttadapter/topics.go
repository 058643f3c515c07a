package mqttadapter

import (
	"fmt"
	"strings"

	"github.com/nimbic-io/otahub/internal/pkg/mqtt/paths"
)

// parsedTopic is the result of splitting an inbound publish topic into
// its device-id and channel per spec.md §4.3's "<device-id>/<channel>/
// pub" shape.
type parsedTopic struct {
	DeviceID string
	Channel  string
}

// parseTopic parses "<device-id>/<channel>/pub"; any topic that doesn't
// match exactly this three-segment publish shape is rejected so the
// adapter never guesses at malformed input.
func parseTopic(topic string) (parsedTopic, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 {
		return parsedTopic{}, fmt.Errorf("topic %q: expected 3 segments, got %d", topic, len(parts))
	}
	if parts[2] != paths.PublishSuffix {
		return parsedTopic{}, fmt.Errorf("topic %q: expected suffix %q, got %q", topic, paths.PublishSuffix, parts[2])
	}
	if parts[0] == "" || parts[1] == "" {
		return parsedTopic{}, fmt.Errorf("topic %q: device-id and channel must be non-empty", topic)
	}
	return parsedTopic{DeviceID: parts[0], Channel: parts[1]}, nil
}

// otaSubTopic builds the downstream OTA response topic for deviceID.
func otaSubTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", deviceID, paths.OTA, paths.SubscribeSuffix)
}

// applicationSubTopic builds the downstream application-response topic
// for deviceID and target channel.
func applicationSubTopic(deviceID, target string) string {
	return fmt.Sprintf("%s/%s/%s", deviceID, target, paths.SubscribeSuffix)
}
