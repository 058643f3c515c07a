package broker

import "github.com/nimbic-io/otahub/internal/wire"

// Event is the sum type carried on the bus. Every concrete event below
// implements it; the broker and every runner switch on the concrete type
// via a type switch (Go's stand-in for an exhaustive match over a
// discriminated union).
type Event interface {
	eventTag()
}

// event embeds into every concrete event type to satisfy Event without
// repeating an empty method body everywhere.
type event struct{}

func (event) eventTag() {}

// NewRunner registers name as a recipient of every event broadcast by the
// broker. Registration is idempotent: re-registering an existing name is
// ignored.
type NewRunner struct {
	event
	Name   string
	Sender chan<- Event
}

// OtaNewPackage is emitted by the admin adapter for AddOta.
type OtaNewPackage struct {
	event
	Update wire.OTAUpdate
}

// OtaDeletePackage is emitted by the admin adapter for RemoveOta.
type OtaDeletePackage struct {
	event
	UpdateID string
}

// OtaLinkEvent is emitted by the admin adapter for LinkOta.
type OtaLinkEvent struct {
	event
	Link wire.OtaLink
}

// OtaUnlinkEvent is emitted by the admin adapter for UnlinkOta.
type OtaUnlinkEvent struct {
	event
	Link wire.OtaLink
}

// OtaRequestEvent is emitted by the MQTT adapter for a device's OTA
// heartbeat.
type OtaRequestEvent struct {
	event
	DeviceID string
	Cmd      wire.OtaRequestCmd
}

// OtaResponseEvent is emitted by the catalog (for a device's Check
// request, and after a device-level Link) and consumed by the MQTT
// adapter, which publishes it to "<uid>/ota/sub".
type OtaResponseEvent struct {
	event
	DeviceID string
	Package  *wire.OTAPackage
}

// OtaUpdateGroupListRequest is emitted by the admin adapter for
// GetGroupList.
type OtaUpdateGroupListRequest struct {
	event
}

// OtaUpdateGroupListResponse answers OtaUpdateGroupListRequest.
type OtaUpdateGroupListResponse struct {
	event
	Groups []string
}

// OtaUpdateImageListRequest is emitted by the admin adapter for
// GetImageList.
type OtaUpdateImageListRequest struct {
	event
}

// OtaUpdateImageListResponse answers OtaUpdateImageListRequest.
type OtaUpdateImageListResponse struct {
	event
	Images []wire.OtaImageListItem
}

// ApplicationManagementRequest is opaque admin→application traffic,
// forwarded verbatim.
type ApplicationManagementRequest struct {
	event
	Target string
	Msg    []byte
}

// ApplicationManagementResponse is opaque application→admin traffic,
// forwarded verbatim.
type ApplicationManagementResponse struct {
	event
	Target string
	Msg    []byte
}

// ApplicationRequest is opaque device→application traffic from a
// non-reserved MQTT channel.
type ApplicationRequest struct {
	event
	DeviceID string
	Target   string
	Msg      []byte
}

// ApplicationResponse is opaque application→device traffic, published by
// the MQTT adapter to "<uid>/<target>/sub".
type ApplicationResponse struct {
	event
	DeviceID string
	Target   string
	Msg      []byte
}

// InfluxDataSave is forwarded to the (external, out-of-scope) telemetry
// writer.
type InfluxDataSave struct {
	event
	Query string
}

// OtaPackageSaved is emitted by the catalog after a new firmware image
// has been written to local disk. The backup mirror is the only
// consumer: it never gates the local save, so a mirror failure never
// blocks a device from downloading the image.
type OtaPackageSaved struct {
	event
	UpdateID string
	FilePath string
}

// AckEvent carries the supplemented positive-acknowledgement response for
// an admin write (AddOta/RemoveOta/LinkOta/UnlinkOta). Op names which
// operation the ack belongs to; the admin adapter relays only OK and
// Message, as a wire.AckResponse frame that carries no Op.
type AckEvent struct {
	event
	Op      string
	OK      bool
	Message string
}
