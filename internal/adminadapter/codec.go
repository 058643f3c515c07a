package adminadapter

import (
	"fmt"

	"github.com/nimbic-io/otahub/internal/broker"
	"github.com/nimbic-io/otahub/internal/wire"
)

// decodeFrame implements spec.md §4.4's inbound frame handling: decode
// the CBOR ManagementData envelope, then decode its Msg per Cmd, and
// return the broker.Event it becomes. A non-nil error means the whole
// frame is dropped (logged by the caller) without ever reaching the bus.
func decodeFrame(data []byte) (broker.Event, error) {
	var md wire.ManagementData
	if err := wire.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("decode ManagementData: %w", err)
	}

	switch md.Cmd {
	case wire.ManagementAddOta:
		var update wire.OTAUpdate
		if err := wire.Unmarshal(md.Msg, &update); err != nil {
			return nil, fmt.Errorf("decode AddOta payload: %w", err)
		}
		return broker.OtaNewPackage{Update: update}, nil

	case wire.ManagementRemoveOta:
		return broker.OtaDeletePackage{UpdateID: string(md.Msg)}, nil

	case wire.ManagementLinkOta:
		var link wire.OtaLink
		if err := wire.Unmarshal(md.Msg, &link); err != nil {
			return nil, fmt.Errorf("decode LinkOta payload: %w", err)
		}
		return broker.OtaLinkEvent{Link: link}, nil

	case wire.ManagementUnlinkOta:
		var link wire.OtaLink
		if err := wire.Unmarshal(md.Msg, &link); err != nil {
			return nil, fmt.Errorf("decode UnlinkOta payload: %w", err)
		}
		return broker.OtaUnlinkEvent{Link: link}, nil

	case wire.ManagementGetGroupList:
		return broker.OtaUpdateGroupListRequest{}, nil

	case wire.ManagementGetImageList:
		return broker.OtaUpdateImageListRequest{}, nil

	case wire.ManagementApplication:
		target := ""
		if md.Target != nil {
			target = *md.Target
		}
		return broker.ApplicationManagementRequest{Target: target, Msg: md.Msg}, nil

	default:
		return nil, fmt.Errorf("unknown ManagementData cmd %d", md.Cmd)
	}
}

// encodeOutbound implements spec.md §4.4's outbound relay: CBOR-encode
// one of the response event types the admin adapter forwards to the
// operator. ok is false for any event not addressed to the admin
// channel, so the caller can silently skip it.
func encodeOutbound(ev broker.Event) ([]byte, bool, error) {
	switch e := ev.(type) {
	case broker.OtaUpdateGroupListResponse:
		data, err := wire.Marshal(wire.OtaGroupListResponse{Groups: e.Groups})
		return data, true, err

	case broker.OtaUpdateImageListResponse:
		data, err := wire.Marshal(wire.OtaImageListResponse{Images: e.Images})
		return data, true, err

	case broker.ApplicationManagementResponse:
		data, err := wire.Marshal(wire.ApplicationManagementData{Target: e.Target, Msg: e.Msg})
		return data, true, err

	case broker.AckEvent:
		data, err := wire.Marshal(wire.AckResponse{OK: e.OK, Message: e.Message})
		return data, true, err

	default:
		return nil, false, nil
	}
}
