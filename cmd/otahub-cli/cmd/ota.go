package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/nimbic-io/otahub/cmd/otahub-cli/client"
	"github.com/nimbic-io/otahub/internal/wire"
)

func newOtaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ota",
		Short: "Manage firmware packages and device/group associations",
	}
	cmd.AddCommand(newOtaAddCommand())
	cmd.AddCommand(newOtaRemoveCommand())
	cmd.AddCommand(newOtaLinkCommand())
	cmd.AddCommand(newOtaUnlinkCommand())
	cmd.AddCommand(newOtaListImagesCommand())
	cmd.AddCommand(newOtaListGroupsCommand())
	return cmd
}

func newOtaAddCommand() *cobra.Command {
	var version, primary, secondary string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a firmware package to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if primary == "" && secondary == "" {
				return fmt.Errorf("at least one of --primary or --secondary is required")
			}

			ver, err := parseVersion(version)
			if err != nil {
				return err
			}

			var images []wire.OTAImageData
			if primary != "" {
				data, err := os.ReadFile(primary)
				if err != nil {
					return fmt.Errorf("read primary image: %w", err)
				}
				images = append(images, wire.OTAImageData{Data: data, ImageType: wire.ImageTypePrimary})
			}
			if secondary != "" {
				data, err := os.ReadFile(secondary)
				if err != nil {
					return fmt.Errorf("read secondary image: %w", err)
				}
				images = append(images, wire.OTAImageData{Data: data, ImageType: wire.ImageTypeSecondary})
			}

			c, cfg, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			update := wire.OTAUpdate{
				Package: &wire.OTAPackage{Version: ver},
				Images:  images,
			}
			ack, err := c.AddOta(update, cfg.Timeout)
			if err != nil {
				return err
			}
			return printAck("AddOta", ack)
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "Firmware version as M.m.p-c-hash, e.g. 1.0.0-0-abcd1234 (required)")
	cmd.Flags().StringVar(&primary, "primary", "", "Path to the primary-slot firmware image")
	cmd.Flags().StringVar(&secondary, "secondary", "", "Path to the secondary-slot firmware image")
	cmd.MarkFlagRequired("version")

	return cmd
}

func newOtaRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <update-id>",
		Short: "Remove a firmware package from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			ack, err := c.RemoveOta(args[0], cfg.Timeout)
			if err != nil {
				return err
			}
			return printAck("RemoveOta", ack)
		},
	}
}

func newOtaLinkCommand() *cobra.Command {
	var deviceID, groupID, imageID string

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Associate a device or group with an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deviceID == "" && groupID == "" {
				return fmt.Errorf("at least one of --device or --group is required")
			}
			if imageID == "" {
				return fmt.Errorf("--image is required")
			}

			c, cfg, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			link := wire.OtaLink{ImageID: &imageID}
			if deviceID != "" {
				link.DeviceID = &deviceID
			}
			if groupID != "" {
				link.GroupID = &groupID
			}

			ack, err := c.LinkOta(link, cfg.Timeout)
			if err != nil {
				return err
			}
			return printAck("LinkOta", ack)
		},
	}

	cmd.Flags().StringVar(&deviceID, "device", "", "Device ID to link")
	cmd.Flags().StringVar(&groupID, "group", "", "Group ID to link")
	cmd.Flags().StringVar(&imageID, "image", "", "Update-id of the image to link (required)")

	return cmd
}

func newOtaUnlinkCommand() *cobra.Command {
	var deviceID, groupID string

	cmd := &cobra.Command{
		Use:   "unlink",
		Short: "Remove a device or group association",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deviceID == "" && groupID == "" {
				return fmt.Errorf("at least one of --device or --group is required")
			}

			c, cfg, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			link := wire.OtaLink{}
			if deviceID != "" {
				link.DeviceID = &deviceID
			}
			if groupID != "" {
				link.GroupID = &groupID
			}

			ack, err := c.UnlinkOta(link, cfg.Timeout)
			if err != nil {
				return err
			}
			return printAck("UnlinkOta", ack)
		},
	}

	cmd.Flags().StringVar(&deviceID, "device", "", "Device ID to unlink")
	cmd.Flags().StringVar(&groupID, "group", "", "Group ID to unlink")

	return cmd
}

func newOtaListImagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-images",
		Short: "List every firmware package in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.ListImages(cfg.Timeout)
			if err != nil {
				return err
			}

			table := uitable.New()
			table.MaxColWidth = 60
			table.AddRow("UPDATE-ID", "FILES", "DATE-ADDED")
			for _, item := range resp.Images {
				var files []string
				for _, f := range item.Package.Files {
					files = append(files, fmt.Sprintf("%s:%s", f.ImageType, f.File))
				}
				dateAdded := ""
				if item.Package.DateAdded != nil {
					dateAdded = item.Package.DateAdded.Format("2006-01-02T15:04:05Z")
				}
				table.AddRow(item.UpdateID, strings.Join(files, ", "), dateAdded)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newOtaListGroupsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-groups",
		Short: "List every device group known to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.ListGroups(cfg.Timeout)
			if err != nil {
				return err
			}

			table := uitable.New()
			table.AddRow("GROUP")
			for _, g := range resp.Groups {
				table.AddRow(g)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func printAck(op string, ack *client.Ack) error {
	if !ack.OK {
		return fmt.Errorf("%s failed: %s", op, ack.Message)
	}
	fmt.Printf("%s: ok\n", op)
	return nil
}

// parseVersion parses the "M.m.p-c-hash" form wire.OTAPackageVersion.String
// produces, the canonical update-id shape used throughout this module.
func parseVersion(s string) (wire.OTAPackageVersion, error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return wire.OTAPackageVersion{}, fmt.Errorf("invalid version %q: expected M.m.p-c-hash", s)
	}

	mmp := strings.Split(parts[0], ".")
	if len(mmp) != 3 {
		return wire.OTAPackageVersion{}, fmt.Errorf("invalid version %q: expected M.m.p-c-hash", s)
	}

	major, err := strconv.ParseUint(mmp[0], 10, 8)
	if err != nil {
		return wire.OTAPackageVersion{}, fmt.Errorf("invalid major version %q: %w", mmp[0], err)
	}
	minor, err := strconv.ParseUint(mmp[1], 10, 8)
	if err != nil {
		return wire.OTAPackageVersion{}, fmt.Errorf("invalid minor version %q: %w", mmp[1], err)
	}
	patch, err := strconv.ParseUint(mmp[2], 10, 8)
	if err != nil {
		return wire.OTAPackageVersion{}, fmt.Errorf("invalid patch version %q: %w", mmp[2], err)
	}
	commit, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return wire.OTAPackageVersion{}, fmt.Errorf("invalid commit %q: %w", parts[1], err)
	}

	var hash [8]byte
	copy(hash[:], parts[2])

	return wire.OTAPackageVersion{
		Major:  uint8(major),
		Minor:  uint8(minor),
		Patch:  uint8(patch),
		Commit: uint8(commit),
		Hash:   hash,
	}, nil
}
