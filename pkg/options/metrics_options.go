package options

import (
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*MetricsOptions)(nil)

// MetricsOptions configures the prometheus metrics HTTP endpoint. It
// embeds HttpOptions for the bind address and shutdown timeout rather
// than redeclaring them, the same bare HTTP-server shape the teacher
// uses for every other listener in this pack.
type MetricsOptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	HttpOptions `mapstructure:",squash"`
}

// NewMetricsOptions creates a MetricsOptions object with default parameters.
func NewMetricsOptions() *MetricsOptions {
	return &MetricsOptions{
		Enabled: true,
		HttpOptions: HttpOptions{
			Network: "tcp",
			Addr:    "0.0.0.0:9090",
			Timeout: 5 * time.Second,
		},
	}
}

// Validate is used to parse and validate the parameters entered by the user
// at the command line when the program starts.
func (o *MetricsOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}
	return o.HttpOptions.Validate()
}

// AddFlags adds flags for MetricsOptions to the specified FlagSet.
func (o *MetricsOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, "metrics.enabled", o.Enabled, "Enable the prometheus metrics HTTP endpoint.")
	fs.StringVar(&o.Addr, "metrics.addr", o.Addr, "Bind address for the prometheus metrics HTTP endpoint.")
	fs.DurationVar(&o.Timeout, "metrics.shutdown-timeout", o.Timeout, "Graceful shutdown timeout for the metrics HTTP endpoint.")
}
