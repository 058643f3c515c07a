package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*AdminOptions)(nil)

var errAdminAPIKeyRequired = errors.New("admin.api-key must be set")

// AdminOptions configures the authenticated WebSocket admin control plane.
type AdminOptions struct {
	// Addr is the bind address for the admin WebSocket listener.
	Addr string `json:"addr" mapstructure:"addr"`

	// Path is the HTTP upgrade path operators connect to.
	Path string `json:"path" mapstructure:"path"`

	// APIKey is checked against the request's "ApiKey" header before the
	// WebSocket upgrade completes. Empty disables authentication; Validate
	// rejects an empty key.
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// WriteTimeout bounds how long a single outbound frame write may take
	// before the admin session is torn down.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
}

// NewAdminOptions creates an AdminOptions object with default parameters.
func NewAdminOptions() *AdminOptions {
	return &AdminOptions{
		Addr:         "0.0.0.0:8000",
		Path:         "/socket",
		WriteTimeout: 10 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user
// at the command line when the program starts.
func (o *AdminOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}
	if o.APIKey == "" {
		errors = append(errors, errAdminAPIKeyRequired)
	}

	return errors
}

// AddFlags adds flags for AdminOptions to the specified FlagSet.
func (o *AdminOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, "admin.addr", o.Addr, "Bind address for the admin WebSocket listener.")
	fs.StringVar(&o.Path, "admin.path", o.Path, "HTTP path operators connect to for the admin WebSocket upgrade.")
	fs.StringVar(&o.APIKey, "admin.api-key", o.APIKey, "Shared secret required in the ApiKey header for admin connections.")
	fs.DurationVar(&o.WriteTimeout, "admin.write-timeout", o.WriteTimeout, "Timeout for writing a single frame to the admin session.")
}
