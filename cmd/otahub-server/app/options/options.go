// Package options aggregates otahub-server's per-subsystem flags, the
// same role the teacher's cmd/*/app/options packages play for their own
// binaries.
package options

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/nimbic-io/otahub/internal/config"
	"github.com/nimbic-io/otahub/pkg/log"
	"github.com/nimbic-io/otahub/pkg/options"
)

var _ options.IOptions = (*ServerOptions)(nil)

// ServerOptions is the root flag/validation surface for otahub-server.
// ConfigFile, when set, is loaded over these flag-derived defaults by
// Config(); either source alone is sufficient to run the server.
type ServerOptions struct {
	ConfigFile string

	Mqtt    *options.MqttOptions
	Admin   *options.AdminOptions
	Ota     *options.OtaOptions
	Backup  *options.S3Options
	BackupEnabled bool
	Log     *log.Options
	Metrics *options.MetricsOptions
}

// NewServerOptions creates a ServerOptions with every subsystem's
// documented defaults applied.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		Mqtt:    options.NewMqttOptions(),
		Admin:   options.NewAdminOptions(),
		Ota:     options.NewOtaOptions(),
		Backup:  options.NewS3Options(),
		Log:     log.NewOptions(),
		Metrics: options.NewMetricsOptions(),
	}
}

// AddFlags registers every subsystem's flags plus --config for loading
// a TOML file over them.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ConfigFile, "config", o.ConfigFile, "Path to a TOML configuration file. Overrides flag defaults where set.")
	fs.BoolVar(&o.BackupEnabled, "backup.enabled", o.BackupEnabled, "Enable the optional S3-compatible firmware image mirror.")

	o.Mqtt.AddFlags(fs)
	o.Admin.AddFlags(fs)
	o.Ota.AddFlags(fs)
	o.Backup.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Metrics.AddFlags(fs)
}

// Validate runs every subsystem's own Validate, aggregating every
// failure instead of stopping at the first.
func (o *ServerOptions) Validate() []error {
	var errs []error
	errs = append(errs, o.Mqtt.Validate()...)
	errs = append(errs, o.Admin.Validate()...)
	errs = append(errs, o.Ota.Validate()...)
	if o.BackupEnabled {
		errs = append(errs, o.Backup.Validate()...)
	}
	errs = append(errs, o.Log.Validate()...)
	errs = append(errs, o.Metrics.Validate()...)
	return errs
}

// Config resolves a flag-backed ServerOptions into a config.Config,
// loading ConfigFile over the flag defaults when it is set.
func (o *ServerOptions) Config() (*config.Config, error) {
	if o.ConfigFile == "" {
		return &config.Config{
			Mqtt:    *o.Mqtt,
			Admin:   *o.Admin,
			Ota:     *o.Ota,
			Backup:  config.BackupConfig{Enabled: o.BackupEnabled, S3Options: *o.Backup},
			Log:     *o.Log,
			Metrics: *o.Metrics,
		}, nil
	}

	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config file %s: %w", o.ConfigFile, err)
	}
	return cfg, nil
}
