package mqttadapter

import "testing"

func TestTelemetryWriteQuery(t *testing.T) {
	fields := map[string]any{
		"temp_c": 21.5,
		"online": true,
	}
	got := telemetryWriteQuery("1234", fields)
	want := `telemetry,device_id=1234 online=true,temp_c=21.5`
	if got != want {
		t.Errorf("telemetryWriteQuery = %q, want %q", got, want)
	}
}
