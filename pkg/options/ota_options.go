package options

import (
	"errors"

	"github.com/spf13/pflag"
)

var _ IOptions = (*OtaOptions)(nil)

var (
	errOtaDBPathRequired    = errors.New("ota.db-path must be set")
	errOtaImagePathRequired = errors.New("ota.image-path must be set")
	errOtaHTTPPortRange     = errors.New("ota.http-port must be between 1 and 65535")
)

// OtaOptions configures the OTA catalog store and the firmware image
// server devices download from.
type OtaOptions struct {
	// URL is the public base URL devices use to fetch firmware, written
	// into the Host field of every OTAPackageFileInfo the catalog hands
	// back. Typically points at the HTTP image server.
	URL string `json:"url" mapstructure:"url"`

	// DBPath is the path to the embedded bbolt catalog database file.
	DBPath string `json:"db-path" mapstructure:"db-path"`

	// HTTPPort is the bind port for the static firmware image server.
	HTTPPort int `json:"http-port" mapstructure:"http-port"`

	// ImagePath is the directory firmware binaries are written to and
	// served from.
	ImagePath string `json:"image-path" mapstructure:"image-path"`
}

// NewOtaOptions creates an OtaOptions object with default parameters.
func NewOtaOptions() *OtaOptions {
	return &OtaOptions{
		URL:       "http://localhost:8081",
		DBPath:    "data/ota.db",
		HTTPPort:  8081,
		ImagePath: "data/images",
	}
}

// Validate is used to parse and validate the parameters entered by the user
// at the command line when the program starts.
func (o *OtaOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.DBPath == "" {
		errors = append(errors, errOtaDBPathRequired)
	}
	if o.ImagePath == "" {
		errors = append(errors, errOtaImagePathRequired)
	}
	if o.HTTPPort <= 0 || o.HTTPPort > 65535 {
		errors = append(errors, errOtaHTTPPortRange)
	}

	return errors
}

// AddFlags adds flags for OtaOptions to the specified FlagSet.
func (o *OtaOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.URL, "ota.url", o.URL, "Public base URL devices use to download firmware images.")
	fs.StringVar(&o.DBPath, "ota.db-path", o.DBPath, "Path to the embedded OTA catalog database file.")
	fs.IntVar(&o.HTTPPort, "ota.http-port", o.HTTPPort, "Bind port for the static firmware image server.")
	fs.StringVar(&o.ImagePath, "ota.image-path", o.ImagePath, "Directory firmware images are stored in and served from.")
}
