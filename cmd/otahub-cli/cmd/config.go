package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nimbic-io/otahub/cmd/otahub-cli/cliconfig"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize otahub-cli's local configuration",
	}
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigInitCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (file + flag overrides)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			fmt.Printf("addr    = %s\n", cfg.Addr)
			fmt.Printf("path    = %s\n", cfg.Path)
			fmt.Printf("api-key = %s\n", maskAPIKey(cfg.APIKey))
			fmt.Printf("timeout = %s\n", cfg.Timeout)
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter ~/.otahub/cli.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flagConfigFile
			if path == "" {
				defaultPath, err := cliconfig.DefaultPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}

			cfg := cliconfig.Default()
			if flagAddr != "" {
				cfg.Addr = flagAddr
			}
			if flagPath != "" {
				cfg.Path = flagPath
			}
			if flagAPIKey != "" {
				cfg.APIKey = flagAPIKey
			}

			if err := cliconfig.Init(path, cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
}

func maskAPIKey(key string) string {
	if key == "" {
		return "(none)"
	}
	return "********"
}
