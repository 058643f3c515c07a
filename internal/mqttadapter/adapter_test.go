package mqttadapter

import (
	"testing"

	"github.com/nimbic-io/otahub/internal/wire"
)

func TestDecodeOtaRequestCmdMapEncoding(t *testing.T) {
	data, err := wire.Marshal(wire.OtaRequest{Cmd: wire.OtaRequestDone})
	if err != nil {
		t.Fatalf("wire.Marshal: %v", err)
	}

	cmd, err := decodeOtaRequestCmd(data)
	if err != nil {
		t.Fatalf("decodeOtaRequestCmd: %v", err)
	}
	if cmd != wire.OtaRequestDone {
		t.Errorf("cmd = %v, want %v", cmd, wire.OtaRequestDone)
	}
}

func TestDecodeOtaRequestCmdLegacyByteEncoding(t *testing.T) {
	data, err := wire.Marshal(wire.OtaRequestCheck)
	if err != nil {
		t.Fatalf("wire.Marshal: %v", err)
	}

	cmd, err := decodeOtaRequestCmd(data)
	if err != nil {
		t.Fatalf("decodeOtaRequestCmd: %v", err)
	}
	if cmd != wire.OtaRequestCheck {
		t.Errorf("cmd = %v, want %v", cmd, wire.OtaRequestCheck)
	}
}

func TestDecodeOtaRequestCmdRejectsGarbage(t *testing.T) {
	if _, err := decodeOtaRequestCmd([]byte("not cbor")); err == nil {
		t.Error("expected error decoding garbage payload")
	}
}
