package catalog

import (
	"fmt"

	"github.com/nimbic-io/otahub/internal/catalog/store"
	"github.com/nimbic-io/otahub/internal/wire"
)

// groupRecord is the persisted shape of a group: an optional pinned
// update-id plus its device membership set.
type groupRecord struct {
	UpdateID string   `cbor:"update_id,omitempty"`
	Members  []string `cbor:"members,omitempty"`
}

func (r groupRecord) hasMember(deviceID string) bool {
	for _, m := range r.Members {
		if m == deviceID {
			return true
		}
	}
	return false
}

func (r *groupRecord) addMember(deviceID string) {
	if r.hasMember(deviceID) {
		return
	}
	r.Members = append(r.Members, deviceID)
}

func (r *groupRecord) removeMember(deviceID string) {
	out := r.Members[:0]
	for _, m := range r.Members {
		if m != deviceID {
			out = append(out, m)
		}
	}
	r.Members = out
}

func (c *Catalog) getGroupRecord(tx *store.Tx, groupID string) groupRecord {
	raw, ok := tx.Get(store.Groups, groupID)
	if !ok {
		return groupRecord{}
	}
	var rec groupRecord
	_ = wire.Unmarshal(raw, &rec)
	return rec
}

func (c *Catalog) putGroupRecord(tx *store.Tx, groupID string, rec groupRecord) error {
	data, err := wire.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Put(store.Groups, groupID, data)
}

// Link implements spec.md §4.2's Link(device_id?, group_id?, image_id?).
// At least one of device_id/group_id must be present and image_id must
// resolve to an existing image. When a device-level link is made, the
// device's newly-resolved package is returned so the caller can emit the
// immediate OtaResponse spec.md §4.2 requires.
func (c *Catalog) Link(link wire.OtaLink) (*wire.OTAPackage, error) {
	if link.DeviceID == nil && link.GroupID == nil {
		return nil, fmt.Errorf("link: at least one of device_id/group_id is required")
	}
	if link.ImageID == nil || *link.ImageID == "" {
		return nil, fmt.Errorf("link: image_id is required")
	}

	if exists, err := c.store.Has(store.Images, *link.ImageID); err != nil {
		return nil, fmt.Errorf("link: %w", err)
	} else if !exists {
		return nil, fmt.Errorf("link: image %q does not exist", *link.ImageID)
	}

	err := c.store.Update(func(tx *store.Tx) error {
		if link.DeviceID != nil {
			if err := tx.Put(store.Devices, *link.DeviceID, []byte(*link.ImageID)); err != nil {
				return err
			}
			if link.GroupID != nil {
				rec := c.getGroupRecord(tx, *link.GroupID)
				rec.addMember(*link.DeviceID)
				if err := c.putGroupRecord(tx, *link.GroupID, rec); err != nil {
					return err
				}
			}
			return nil
		}

		// Group-only link: pin the group's default update.
		rec := c.getGroupRecord(tx, *link.GroupID)
		rec.UpdateID = *link.ImageID
		return c.putGroupRecord(tx, *link.GroupID, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("link: %w", err)
	}

	if link.DeviceID == nil {
		return nil, nil
	}

	pkg, err := c.Resolve(*link.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("link: resolve after link: %w", err)
	}
	return pkg, nil
}

// Unlink implements spec.md §4.2's Unlink(device_id?, group_id?).
func (c *Catalog) Unlink(link wire.OtaLink) error {
	return c.store.Update(func(tx *store.Tx) error {
		if link.DeviceID != nil {
			if err := tx.Delete(store.Devices, *link.DeviceID); err != nil {
				return err
			}
			// Remove membership from every group, retaining group pins.
			var groupIDs []string
			tx.ForEach(store.Groups, func(groupID string, _ []byte) bool {
				groupIDs = append(groupIDs, groupID)
				return true
			})
			for _, groupID := range groupIDs {
				rec := c.getGroupRecord(tx, groupID)
				if !rec.hasMember(*link.DeviceID) {
					continue
				}
				rec.removeMember(*link.DeviceID)
				if err := c.putGroupRecord(tx, groupID, rec); err != nil {
					return err
				}
			}
			return nil
		}

		if link.GroupID != nil {
			rec := c.getGroupRecord(tx, *link.GroupID)
			rec.UpdateID = ""
			return c.putGroupRecord(tx, *link.GroupID, rec)
		}

		return fmt.Errorf("unlink: at least one of device_id/group_id is required")
	})
}

// clearDevicePin implements spec.md §4.2's OtaRequest{Done} policy:
// remove the device's pin without deleting the (possibly shared) image.
func (c *Catalog) clearDevicePin(deviceID string) error {
	return c.store.Delete(store.Devices, deviceID)
}

// Resolve implements spec.md §3's lookup invariant: a device's own pin
// wins over any group pin; absence of both is a valid "no update"
// answer (nil, nil).
func (c *Catalog) Resolve(deviceID string) (*wire.OTAPackage, error) {
	updateID, ok, err := c.deviceUpdateID(deviceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		updateID, ok, err = c.groupUpdateIDFor(deviceID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	}

	pkg, err := c.GetOtaPackage(updateID)
	if err != nil {
		// The referenced image vanished (e.g. deleted out from under a
		// stale association); treat as "no update" rather than error.
		c.log.Info("resolved update-id has no backing image", "deviceID", deviceID, "updateID", updateID)
		return nil, nil
	}
	return &pkg, nil
}

func (c *Catalog) deviceUpdateID(deviceID string) (string, bool, error) {
	data, ok, err := c.store.Get(store.Devices, deviceID)
	if err != nil || !ok {
		return "", false, err
	}
	return string(data), true, nil
}

func (c *Catalog) groupUpdateIDFor(deviceID string) (string, bool, error) {
	var updateID string
	var found bool
	err := c.store.ForEach(store.Groups, func(groupID string, value []byte) bool {
		var rec groupRecord
		if err := wire.Unmarshal(value, &rec); err != nil {
			return true
		}
		if rec.UpdateID != "" && rec.hasMember(deviceID) {
			updateID = rec.UpdateID
			found = true
			return false
		}
		return true
	})
	return updateID, found, err
}

// GetGroupList implements spec.md §4.2's GetGroupList.
func (c *Catalog) GetGroupList() ([]string, error) {
	var groups []string
	err := c.store.ForEach(store.Groups, func(groupID string, _ []byte) bool {
		groups = append(groups, groupID)
		return true
	})
	return groups, err
}

// GetImageList implements spec.md §4.2's GetImageList.
func (c *Catalog) GetImageList() ([]wire.OtaImageListItem, error) {
	var items []wire.OtaImageListItem
	err := c.store.ForEach(store.Images, func(updateID string, value []byte) bool {
		var pkg wire.OTAPackage
		if err := wire.Unmarshal(value, &pkg); err != nil {
			c.log.Error(err, "skipping undecodable image record", "updateID", updateID)
			return true
		}
		items = append(items, wire.OtaImageListItem{UpdateID: updateID, Package: pkg})
		return true
	})
	return items, err
}
