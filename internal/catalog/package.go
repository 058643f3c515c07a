package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nimbic-io/otahub/internal/catalog/legacyv1"
	"github.com/nimbic-io/otahub/internal/catalog/store"
	"github.com/nimbic-io/otahub/internal/wire"
)

// SaveOtaPackage implements spec.md §4.2's save_ota_package. Precondition:
// update.Package present and update.Images non-empty. Image files are
// written to disk before anything is committed to the KV store, so a
// write failure never leaves a partial KV entry (spec.md §7).
// The second return value lists the absolute paths of every image file
// written to disk, for the caller to forward to the optional backup
// mirror; it is empty whenever an error is returned.
func (c *Catalog) SaveOtaPackage(update wire.OTAUpdate) (string, []string, error) {
	if update.Package == nil {
		return "", nil, fmt.Errorf("save ota package: update.package is required")
	}
	if len(update.Images) == 0 {
		return "", nil, fmt.Errorf("save ota package: update.images must be non-empty")
	}

	updateID := update.Package.Version.String()
	dir := filepath.Join(c.imagePath, updateID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("save ota package %s: create image dir: %w", updateID, err)
	}

	files := make([]wire.OTAPackageFileInfo, 0, len(update.Images))
	writtenPaths := make([]string, 0, len(update.Images))
	for _, img := range update.Images {
		relFile := updateFilePath(updateID, img.ImageType)
		absFile := filepath.Join(c.imagePath, relFile)
		if err := os.WriteFile(absFile, img.Data, 0o644); err != nil {
			return "", nil, fmt.Errorf("save ota package %s: write image: %w", updateID, err)
		}
		files = append(files, wire.OTAPackageFileInfo{
			ImageType: img.ImageType,
			Host:      c.currentBaseURL(),
			File:      relFile,
		})
		writtenPaths = append(writtenPaths, absFile)
	}

	pkg := *update.Package
	pkg.Files = files
	if pkg.DateAdded == nil {
		now := time.Now().UTC()
		pkg.DateAdded = &now
	}

	if exists, err := c.store.Has(store.Images, updateID); err == nil && exists {
		c.log.Info("overwriting existing ota package", "updateID", updateID)
	}

	data, err := wire.Marshal(pkg)
	if err != nil {
		return "", nil, fmt.Errorf("save ota package %s: encode: %w", updateID, err)
	}
	if err := c.store.Put(store.Images, updateID, data); err != nil {
		return "", nil, fmt.Errorf("save ota package %s: store: %w", updateID, err)
	}

	return updateID, writtenPaths, nil
}

// GetOtaPackage implements spec.md §4.2's get_ota_package. Entries
// written before the catalog adopted the v2 schema are still decodable:
// a record that doesn't parse as a v2 wire.OTAPackage is retried against
// the legacy v1 single-image shape and upgraded on read (see
// internal/catalog/legacyv1), so pre-existing v1 catalogs stay usable
// without a migration step.
func (c *Catalog) GetOtaPackage(updateID string) (wire.OTAPackage, error) {
	data, ok, err := c.store.Get(store.Images, updateID)
	if err != nil {
		return wire.OTAPackage{}, fmt.Errorf("get ota package %s: %w", updateID, err)
	}
	if !ok {
		return wire.OTAPackage{}, fmt.Errorf("get ota package %s: not found", updateID)
	}

	var pkg wire.OTAPackage
	decodeErr := wire.Unmarshal(data, &pkg)
	// A v1 record has no "files" key, so it decodes into pkg without
	// error but leaves Files empty — that, as well as an outright
	// decode failure, is the signal to retry as legacy v1.
	if decodeErr != nil || len(pkg.Files) == 0 {
		if legacy, legacyErr := legacyv1.Decode(data); legacyErr == nil && legacy.File != "" {
			return legacy.ToV2(), nil
		}
	}
	if decodeErr != nil {
		return wire.OTAPackage{}, fmt.Errorf("get ota package %s: decode: %w", updateID, decodeErr)
	}
	return pkg, nil
}

// DeleteOtaPackage implements spec.md §4.2's delete_ota_package: removes
// the KV entry (no-op if absent), removes the image directory, and
// cascades into devices/groups: device records pinned to the image are
// removed, group records pinned to it have their pin cleared.
func (c *Catalog) DeleteOtaPackage(updateID string) error {
	if err := c.store.Delete(store.Images, updateID); err != nil {
		return fmt.Errorf("delete ota package %s: %w", updateID, err)
	}

	dir := filepath.Join(c.imagePath, updateID)
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		// Delete of an already-absent image file is ignored per spec.md
		// §7; RemoveAll itself does not error on a missing directory, but
		// guard anyway for a defensive, documented no-op.
		c.log.Error(err, "failed to remove image directory, continuing", "updateID", updateID)
	}

	if err := c.clearReferencesTo(updateID); err != nil {
		return fmt.Errorf("delete ota package %s: clear references: %w", updateID, err)
	}

	return nil
}

// clearReferencesTo implements the cascade spec.md §4.2 describes: any
// device record pinned to updateID is removed entirely (a device record
// with a null update_id has no reason to exist); any group record
// pinned to updateID has its update_id cleared but its membership is
// retained.
func (c *Catalog) clearReferencesTo(updateID string) error {
	return c.store.Update(func(tx *store.Tx) error {
		var devicesToRemove []string
		tx.ForEach(store.Devices, func(deviceID string, value []byte) bool {
			if string(value) == updateID {
				devicesToRemove = append(devicesToRemove, deviceID)
			}
			return true
		})
		for _, deviceID := range devicesToRemove {
			if err := tx.Delete(store.Devices, deviceID); err != nil {
				return err
			}
		}

		var groupUpdates []string
		tx.ForEach(store.Groups, func(groupID string, value []byte) bool {
			var rec groupRecord
			if err := wire.Unmarshal(value, &rec); err == nil && rec.UpdateID == updateID {
				groupUpdates = append(groupUpdates, groupID)
			}
			return true
		})
		for _, groupID := range groupUpdates {
			raw, ok := tx.Get(store.Groups, groupID)
			if !ok {
				continue
			}
			var rec groupRecord
			if err := wire.Unmarshal(raw, &rec); err != nil {
				return err
			}
			rec.UpdateID = ""
			encoded, err := wire.Marshal(rec)
			if err != nil {
				return err
			}
			if err := tx.Put(store.Groups, groupID, encoded); err != nil {
				return err
			}
		}

		return nil
	})
}
