// Package cmd implements otahub-cli's subcommand tree: ota, cert, and
// config. Grounded on the teacher's cobra-based cmd/*/app packages for
// overall shape, adapted to a flat multi-subcommand CLI since the
// teacher itself ships single-purpose binaries rather than a
// kubectl-style tool.
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbic-io/otahub/cmd/otahub-cli/client"
	"github.com/nimbic-io/otahub/cmd/otahub-cli/cliconfig"
)

var (
	flagConfigFile string
	flagAddr       string
	flagPath       string
	flagAPIKey     string
	flagTimeout    time.Duration
)

// NewRootCommand builds otahub-cli's top-level command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "otahub-cli",
		Short:         "Admin client for the otahub IoT device-management broker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Path to a cli.toml config file (default ~/.otahub/cli.toml)")
	root.PersistentFlags().StringVar(&flagAddr, "addr", "", "Admin WebSocket host:port, overrides the config file")
	root.PersistentFlags().StringVar(&flagPath, "path", "", "Admin WebSocket upgrade path, overrides the config file")
	root.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "Admin ApiKey header value, overrides the config file")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "Request timeout, overrides the config file")

	root.AddCommand(newOtaCommand())
	root.AddCommand(newCertCommand())
	root.AddCommand(newConfigCommand())

	return root
}

// resolveConfig loads the cli.toml config (explicit --config, else
// ~/.otahub/cli.toml if present, else Default()) and applies any
// flag overrides on top.
func resolveConfig() (*cliconfig.Config, error) {
	path := flagConfigFile
	if path == "" {
		defaultPath, err := cliconfig.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	cfg, err := cliconfig.Load(path)
	if err != nil {
		if flagConfigFile != "" {
			return nil, err
		}
		cfg = cliconfig.Default()
	}

	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if flagPath != "" {
		cfg.Path = flagPath
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}
	if flagTimeout != 0 {
		cfg.Timeout = flagTimeout
	}
	return cfg, nil
}

// dial resolves the effective config and opens an admin connection.
func dial() (*client.Client, *cliconfig.Config, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve cli config: %w", err)
	}
	c, err := client.Dial(cfg.Addr, cfg.Path, cfg.APIKey, cfg.Timeout)
	if err != nil {
		return nil, nil, err
	}
	return c, cfg, nil
}
