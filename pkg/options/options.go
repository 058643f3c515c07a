// Package options defines the IOptions convention shared by every
// configuration section of the otahub server and CLI: a struct with
// sane defaults, command-line flag bindings, and validation.
package options

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every configuration section (MQTT, HTTP,
// admin, S3, OTA, ...). Validate returns every problem found rather than
// failing on the first one, so a user sees all config errors at once.
// AddFlags registers command-line overrides for the section's fields;
// prefixes lets a caller namespace flags when a section is mounted more
// than once (unused by the single-instance sections in this module, kept
// for symmetry with the rest of the IOptions family).
type IOptions interface {
	Validate() []error
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAddress checks that addr is a well-formed "host:port" pair and
// that port is a valid, non-zero TCP port number. Host may be empty to
// bind all interfaces.
func ValidateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port in address %q: %w", addr, err)
	}
	if p <= 0 || p > 65535 {
		return fmt.Errorf("port %d in address %q out of range", p, addr)
	}

	return nil
}
