// Package cliconfig loads otahub-cli's small local config file
// (~/.otahub/cli.toml by default), the admin-endpoint counterpart to
// internal/config's server-side TOML loading.
package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is everything otahub-cli needs to reach the admin WebSocket.
type Config struct {
	Addr    string        `mapstructure:"addr"`
	Path    string        `mapstructure:"path"`
	APIKey  string        `mapstructure:"api-key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Default returns the out-of-the-box config pointing at a local
// otahub-server instance.
func Default() *Config {
	return &Config{
		Addr:    "127.0.0.1:8000",
		Path:    "/socket",
		APIKey:  "",
		Timeout: 10 * time.Second,
	}
}

// DefaultPath returns ~/.otahub/cli.toml, expanding the user's home
// directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".otahub", "cli.toml"), nil
}

// Load reads path into a Config seeded with Default()'s values, so the
// file only needs to set the fields it wants to override.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read cli config %s: %w", path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal cli config %s: %w", path, err)
	}
	return cfg, nil
}

// Init writes cfg to path as TOML, creating parent directories as
// needed. Used by "otahub-cli config init".
func Init(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	v := viper.New()
	v.Set("addr", cfg.Addr)
	v.Set("path", cfg.Path)
	v.Set("api-key", cfg.APIKey)
	v.Set("timeout", cfg.Timeout.String())

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write cli config %s: %w", path, err)
	}
	return nil
}
