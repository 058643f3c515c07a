package mqttadapter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// telemetryWriteQuery renders a decoded telemetry payload as an
// InfluxDB line-protocol write, the wire format the (out-of-scope,
// external) telemetry writer expects. Measurement name is fixed to
// "telemetry"; deviceID becomes a tag so series stay per-device.
func telemetryWriteQuery(deviceID string, fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fieldLiteral(fields[k])))
	}

	return fmt.Sprintf("telemetry,device_id=%s %s", deviceID, strings.Join(parts, ","))
}

func fieldLiteral(v any) string {
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10) + "i"
	case uint64:
		return strconv.FormatUint(val, 10) + "i"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%q", fmt.Sprint(val))
	}
}
