package mqttadapter

import "testing"

func TestParseTopic(t *testing.T) {
	tests := []struct {
		topic   string
		want    parsedTopic
		wantErr bool
	}{
		{topic: "1234/ota/pub", want: parsedTopic{DeviceID: "1234", Channel: "ota"}},
		{topic: "1234/tel/pub", want: parsedTopic{DeviceID: "1234", Channel: "tel"}},
		{topic: "1234/custom-app/pub", want: parsedTopic{DeviceID: "1234", Channel: "custom-app"}},
		{topic: "1234/ota/sub", wantErr: true},
		{topic: "1234/ota", wantErr: true},
		{topic: "/ota/pub", wantErr: true},
		{topic: "1234//pub", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, err := parseTopic(tt.topic)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseTopic(%q) = %+v, want error", tt.topic, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTopic(%q) error: %v", tt.topic, err)
			}
			if got != tt.want {
				t.Errorf("parseTopic(%q) = %+v, want %+v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestOtaSubTopic(t *testing.T) {
	if got := otaSubTopic("1234"); got != "1234/ota/sub" {
		t.Errorf("otaSubTopic = %q, want %q", got, "1234/ota/sub")
	}
}

func TestApplicationSubTopic(t *testing.T) {
	if got := applicationSubTopic("1234", "app"); got != "1234/app/sub" {
		t.Errorf("applicationSubTopic = %q, want %q", got, "1234/app/sub")
	}
}
