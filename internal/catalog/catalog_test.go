package catalog

import (
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"

	"github.com/nimbic-io/otahub/internal/broker"
	"github.com/nimbic-io/otahub/internal/catalog/legacyv1"
	"github.com/nimbic-io/otahub/internal/catalog/store"
	"github.com/nimbic-io/otahub/internal/wire"
)

func newTestCatalog(t *testing.T) (*Catalog, chan broker.Event) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"), logr.Discard())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	out := make(chan broker.Event, 64)
	cfg := Config{
		ImagePath: t.TempDir(),
		BaseURL:   "http://ota.example.com",
	}
	return New(st, cfg, out, logr.Discard()), out
}

func testUpdate(major, minor, patch, commit uint8, hash string, data []byte) wire.OTAUpdate {
	var hashBytes [8]byte
	copy(hashBytes[:], hash)
	version := wire.OTAPackageVersion{Major: major, Minor: minor, Patch: patch, Commit: commit, Hash: hashBytes}
	pkg := wire.OTAPackage{Version: version}
	return wire.OTAUpdate{
		Package: &pkg,
		Images: []wire.OTAImageData{
			{Data: data, ImageType: wire.ImageTypePrimary},
		},
	}
}

func TestAddOtaThenGetImageList(t *testing.T) {
	c, _ := newTestCatalog(t)

	update := testUpdate(1, 0, 1, 0, "67396539", []byte{0, 0, 0, 0})
	updateID := update.Package.Version.String()

	if _, _, err := c.SaveOtaPackage(update); err != nil {
		t.Fatalf("SaveOtaPackage: %v", err)
	}

	items, err := c.GetImageList()
	if err != nil {
		t.Fatalf("GetImageList: %v", err)
	}
	if len(items) != 1 || items[0].UpdateID != updateID {
		t.Fatalf("GetImageList = %+v, want one item with id %q", items, updateID)
	}
	if len(items[0].Package.Files) != 1 {
		t.Fatalf("expected resolved files, got %+v", items[0].Package.Files)
	}
	wantFile := updateID + "/primary-" + updateID + ".bin"
	if items[0].Package.Files[0].File != wantFile {
		t.Errorf("file = %q, want %q", items[0].Package.Files[0].File, wantFile)
	}
	if items[0].Package.Files[0].Host != "http://ota.example.com" {
		t.Errorf("host = %q, want configured base url", items[0].Package.Files[0].Host)
	}
}

func TestAddThenRemoveRestoresPriorState(t *testing.T) {
	c, _ := newTestCatalog(t)

	update := testUpdate(1, 0, 1, 0, "67396539", []byte{1, 2, 3, 4})
	updateID := update.Package.Version.String()

	if _, _, err := c.SaveOtaPackage(update); err != nil {
		t.Fatalf("SaveOtaPackage: %v", err)
	}
	if err := c.DeleteOtaPackage(updateID); err != nil {
		t.Fatalf("DeleteOtaPackage: %v", err)
	}

	if _, err := c.GetOtaPackage(updateID); err == nil {
		t.Error("expected image to be gone after delete")
	}
	items, err := c.GetImageList()
	if err != nil {
		t.Fatalf("GetImageList: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty image list after delete, got %+v", items)
	}
}

func TestDeviceLinkWinsOverGroupLink(t *testing.T) {
	c, _ := newTestCatalog(t)

	deviceUpdate := testUpdate(1, 0, 0, 0, "aaaaaaaa", []byte{1})
	groupUpdate := testUpdate(2, 0, 0, 0, "bbbbbbbb", []byte{2})
	if _, _, err := c.SaveOtaPackage(deviceUpdate); err != nil {
		t.Fatalf("SaveOtaPackage device update: %v", err)
	}
	if _, _, err := c.SaveOtaPackage(groupUpdate); err != nil {
		t.Fatalf("SaveOtaPackage group update: %v", err)
	}

	deviceID := "1234"
	groupID := "g1"
	groupImageID := groupUpdate.Package.Version.String()
	deviceImageID := deviceUpdate.Package.Version.String()

	if _, err := c.Link(wire.OtaLink{GroupID: &groupID, ImageID: &groupImageID}); err != nil {
		t.Fatalf("Link group: %v", err)
	}
	if _, err := c.Link(wire.OtaLink{DeviceID: &deviceID, GroupID: &groupID, ImageID: &deviceImageID}); err != nil {
		t.Fatalf("Link device: %v", err)
	}

	resolved, err := c.Resolve(deviceID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved == nil || resolved.UpdateID() != deviceImageID {
		t.Fatalf("Resolve = %+v, want device-pinned update %q", resolved, deviceImageID)
	}
}

func TestUnlinkDeviceKeepsGroup(t *testing.T) {
	c, _ := newTestCatalog(t)

	groupUpdate := testUpdate(1, 1, 3, 0, "g965b9df", []byte{9})
	if _, _, err := c.SaveOtaPackage(groupUpdate); err != nil {
		t.Fatalf("SaveOtaPackage: %v", err)
	}
	imageID := groupUpdate.Package.Version.String()
	deviceID := "1234"
	groupID := "1"

	if _, err := c.Link(wire.OtaLink{DeviceID: &deviceID, GroupID: &groupID, ImageID: &imageID}); err != nil {
		t.Fatalf("Link: %v", err)
	}

	groups, err := c.GetGroupList()
	if err != nil || len(groups) != 1 || groups[0] != groupID {
		t.Fatalf("GetGroupList = %v, err=%v", groups, err)
	}

	if err := c.Unlink(wire.OtaLink{DeviceID: &deviceID}); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	if _, ok, _ := c.deviceUpdateID(deviceID); ok {
		t.Error("expected device record to be gone after unlink")
	}
	groups, err = c.GetGroupList()
	if err != nil || len(groups) != 1 {
		t.Fatalf("expected group to remain after device unlink, got %v err=%v", groups, err)
	}
}

func TestRemoveCascadesToDevice(t *testing.T) {
	c, _ := newTestCatalog(t)

	update := testUpdate(1, 0, 0, 0, "cccccccc", []byte{7})
	if _, _, err := c.SaveOtaPackage(update); err != nil {
		t.Fatalf("SaveOtaPackage: %v", err)
	}
	imageID := update.Package.Version.String()
	deviceID := "D"

	if _, err := c.Link(wire.OtaLink{DeviceID: &deviceID, ImageID: &imageID}); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := c.DeleteOtaPackage(imageID); err != nil {
		t.Fatalf("DeleteOtaPackage: %v", err)
	}

	if _, ok, _ := c.deviceUpdateID(deviceID); ok {
		t.Error("expected device record removed after its image was deleted")
	}

	resolved, err := c.Resolve(deviceID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != nil {
		t.Errorf("expected nil resolution after cascading delete, got %+v", resolved)
	}
}

func TestCheckWithNoAssociationReturnsNil(t *testing.T) {
	c, _ := newTestCatalog(t)

	resolved, err := c.Resolve("no-such-device")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != nil {
		t.Errorf("expected nil package for unassociated device, got %+v", resolved)
	}
}

func TestOtaRequestDoneClearsPinWithoutDeletingImage(t *testing.T) {
	c, _ := newTestCatalog(t)

	update := testUpdate(3, 0, 0, 0, "dddddddd", []byte{3})
	if _, _, err := c.SaveOtaPackage(update); err != nil {
		t.Fatalf("SaveOtaPackage: %v", err)
	}
	imageID := update.Package.Version.String()
	deviceID := "D2"

	if _, err := c.Link(wire.OtaLink{DeviceID: &deviceID, ImageID: &imageID}); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := c.clearDevicePin(deviceID); err != nil {
		t.Fatalf("clearDevicePin: %v", err)
	}

	if _, ok, _ := c.deviceUpdateID(deviceID); ok {
		t.Error("expected device pin cleared")
	}
	if _, err := c.GetOtaPackage(imageID); err != nil {
		t.Errorf("expected shared image to survive Done, got error: %v", err)
	}
}

func TestGetOtaPackageUpgradesLegacyV1Record(t *testing.T) {
	c, _ := newTestCatalog(t)

	version := wire.OTAPackageVersion{Major: 1, Hash: [8]byte{'l', 'e', 'g', 'a', 'c', 'y', '0', '1'}}
	updateID := version.String()
	v1 := legacyv1.Package{
		Version: version,
		Host:    "http://legacy.example.com",
		File:    updateID + ".bin",
	}
	data, err := wire.Marshal(v1)
	if err != nil {
		t.Fatalf("wire.Marshal: %v", err)
	}
	if err := c.store.Put(store.Images, updateID, data); err != nil {
		t.Fatalf("store.Put: %v", err)
	}

	pkg, err := c.GetOtaPackage(updateID)
	if err != nil {
		t.Fatalf("GetOtaPackage: %v", err)
	}
	if len(pkg.Files) != 1 || pkg.Files[0].File != v1.File || pkg.Files[0].Host != v1.Host {
		t.Fatalf("GetOtaPackage = %+v, want legacy file upgraded to v2 shape", pkg)
	}
	if pkg.Files[0].ImageType != wire.ImageTypePrimary {
		t.Errorf("ImageType = %v, want primary", pkg.Files[0].ImageType)
	}
}

func TestOverwriteExistingVersionLogsAndReplaces(t *testing.T) {
	c, _ := newTestCatalog(t)

	update := testUpdate(1, 0, 0, 0, "eeeeeeee", []byte{1})
	if _, _, err := c.SaveOtaPackage(update); err != nil {
		t.Fatalf("first SaveOtaPackage: %v", err)
	}
	before, err := c.GetImageList()
	if err != nil || len(before) != 1 {
		t.Fatalf("expected one image after first save, got %v err=%v", before, err)
	}

	update2 := testUpdate(1, 0, 0, 0, "eeeeeeee", []byte{2, 2})
	if _, _, err := c.SaveOtaPackage(update2); err != nil {
		t.Fatalf("second SaveOtaPackage: %v", err)
	}
	after, err := c.GetImageList()
	if err != nil || len(after) != 1 {
		t.Fatalf("expected overwrite to keep image count at one, got %v err=%v", after, err)
	}
}
