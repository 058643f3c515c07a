package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "otahub.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesOverridesAndKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[mqtt]
broker = "mqtt://broker.example.com:8883"

[admin]
api-key = "secret"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mqtt.Broker != "mqtt://broker.example.com:8883" {
		t.Errorf("Mqtt.Broker = %q, want override", cfg.Mqtt.Broker)
	}
	if cfg.Admin.APIKey != "secret" {
		t.Errorf("Admin.APIKey = %q, want %q", cfg.Admin.APIKey, "secret")
	}
	// Fields the file never mentions must keep their documented defaults.
	if cfg.Admin.Path != "/socket" {
		t.Errorf("Admin.Path = %q, want default /socket", cfg.Admin.Path)
	}
	if cfg.Ota.HTTPPort != 8081 {
		t.Errorf("Ota.HTTPPort = %d, want default 8081", cfg.Ota.HTTPPort)
	}
	if cfg.Backup.Enabled {
		t.Error("Backup.Enabled should default to false")
	}
	if cfg.Metrics.Addr != "0.0.0.0:9090" {
		t.Errorf("Metrics.Addr = %q, want default", cfg.Metrics.Addr)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestWatchInvokesOnChangeAfterEdit(t *testing.T) {
	path := writeConfig(t, `
[admin]
api-key = "original"
`)

	changed := make(chan *Config, 1)
	if err := Watch(path, logr.Discard(), func(cfg *Config) { changed <- cfg }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(path, []byte(`
[admin]
api-key = "rotated"
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Admin.APIKey != "rotated" {
			t.Errorf("Admin.APIKey = %q, want %q", cfg.Admin.APIKey, "rotated")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for onChange after config edit")
	}
}

func TestDefaultDurationsArePositive(t *testing.T) {
	cfg := Default()
	if cfg.Mqtt.ConnectTimeout <= 0 {
		t.Error("Mqtt.ConnectTimeout should default to a positive duration")
	}
	if cfg.Admin.WriteTimeout < time.Second {
		t.Error("Admin.WriteTimeout should default to at least a second")
	}
}
