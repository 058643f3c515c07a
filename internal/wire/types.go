package wire

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// OTAPackageVersion identifies a firmware build. Its String form is the
// canonical update-id used as the catalog's KV key and as the on-disk
// file-name prefix.
type OTAPackageVersion struct {
	Major  uint8   `cbor:"major"`
	Minor  uint8   `cbor:"minor"`
	Patch  uint8   `cbor:"patch"`
	Commit uint8   `cbor:"commit"`
	Hash   [8]byte `cbor:"hash"`
}

// String renders "M.m.p-c-H" where H is the hash bytes interpreted as
// UTF-8, falling back to the literal "unknown" when the bytes are not
// valid UTF-8.
func (v OTAPackageVersion) String() string {
	hash := "unknown"
	if utf8.Valid(v.Hash[:]) {
		hash = string(v.Hash[:])
	}
	return fmt.Sprintf("%d.%d.%d-%d-%s", v.Major, v.Minor, v.Patch, v.Commit, hash)
}

// OTAImageType tags which firmware slot an image file targets. An update
// may carry one or both.
type OTAImageType uint8

const (
	ImageTypePrimary   OTAImageType = 1
	ImageTypeSecondary OTAImageType = 2
)

func (t OTAImageType) String() string {
	switch t {
	case ImageTypePrimary:
		return "primary"
	case ImageTypeSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// OTAPackageFileInfo describes one resolved, downloadable firmware file.
type OTAPackageFileInfo struct {
	ImageType OTAImageType `cbor:"image_type"`
	Host      string       `cbor:"host"`
	File      string       `cbor:"file"`
}

// OTAPackage is the persisted, device-facing description of a firmware
// update: a version plus the resolved file(s) that carry it.
type OTAPackage struct {
	Version   OTAPackageVersion    `cbor:"version"`
	Files     []OTAPackageFileInfo `cbor:"files"`
	DateAdded *time.Time           `cbor:"date_added,omitempty"`
}

// UpdateID is the canonical KV key for this package: its version's string
// form.
func (p OTAPackage) UpdateID() string {
	return p.Version.String()
}

// OTAImageData carries one raw firmware image during ingress from an
// admin AddOta command, before the catalog has written it to disk.
type OTAImageData struct {
	Data      []byte       `cbor:"data"`
	ImageType OTAImageType `cbor:"image_type"`
}

// OTAUpdate is the envelope an admin AddOta carries: Images holds raw
// bytes and Package.Files is empty. Devices are not sent this envelope;
// their OTA responses are a bare OTAPackage with Files populated. No
// code in this module sets UID.
type OTAUpdate struct {
	UID     *string        `cbor:"uid,omitempty"`
	Package *OTAPackage    `cbor:"package,omitempty"`
	Images  []OTAImageData `cbor:"images,omitempty"`
}

// OtaLink associates a device and/or group with an image. At least one
// of DeviceID/GroupID must be set by the caller; ImageID is required for
// a Link operation and absent for an Unlink operation.
type OtaLink struct {
	DeviceID *string `cbor:"device_id,omitempty"`
	GroupID  *string `cbor:"group_id,omitempty"`
	ImageID  *string `cbor:"image_id,omitempty"`
}

// OtaRequestCmd is the device-originated OTA command carried on the
// "<device-id>/ota/pub" MQTT channel.
type OtaRequestCmd uint8

const (
	OtaRequestCheck OtaRequestCmd = 0
	OtaRequestDone  OtaRequestCmd = 1
)

// OtaRequest is the CBOR payload of a device's OTA heartbeat.
type OtaRequest struct {
	Cmd OtaRequestCmd `cbor:"cmd"`
}

// ManagementDataType tags the admin WebSocket command carried in a
// ManagementData envelope. Numeric values mirror the original source's
// ManagmentDataType enum ordering.
type ManagementDataType uint8

const (
	ManagementApplication  ManagementDataType = 0
	ManagementAddOta       ManagementDataType = 1
	ManagementRemoveOta    ManagementDataType = 2
	ManagementLinkOta      ManagementDataType = 3
	ManagementUnlinkOta    ManagementDataType = 4
	ManagementGetGroupList ManagementDataType = 5
	ManagementGetImageList ManagementDataType = 6
)

// ManagementData is the single CBOR envelope every inbound admin
// WebSocket frame decodes to.
type ManagementData struct {
	Cmd    ManagementDataType `cbor:"cmd"`
	Target *string            `cbor:"target,omitempty"`
	Msg    []byte             `cbor:"msg"`
}

// OtaImageListItem is one entry of an OtaImageListResponse.
type OtaImageListItem struct {
	UpdateID string     `cbor:"update_id"`
	Package  OTAPackage `cbor:"package"`
}

// OtaImageListResponse answers a GetImageList request.
type OtaImageListResponse struct {
	Images []OtaImageListItem `cbor:"images"`
}

// OtaGroupListResponse answers a GetGroupList request.
type OtaGroupListResponse struct {
	Groups []string `cbor:"groups"`
}

// AckResponse is the positive-acknowledgement envelope this module adds
// on top of spec.md's baseline protocol (see SPEC_FULL.md, Supplemented
// Features) for AddOta/RemoveOta/LinkOta/UnlinkOta.
type AckResponse struct {
	OK      bool   `cbor:"ok"`
	Message string `cbor:"message,omitempty"`
}

// ApplicationManagementData is the opaque payload forwarded verbatim
// between the admin adapter and application-tier code.
type ApplicationManagementData struct {
	Target string `cbor:"target"`
	Msg    []byte `cbor:"msg"`
}
