// Package wire defines the bus↔wire data shapes exchanged with devices
// (over MQTT) and operators (over the admin WebSocket), and the packed
// CBOR codec used to (de)serialize them.
package wire

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode     cbor.EncMode
	encModeOnce sync.Once
)

// encoder returns the shared packed encode mode: canonical (deterministic,
// shortest-form) encoding so integers and map keys are always emitted in
// their most compact representation, matching spec.md's "packed/minimized
// CBOR encoding, preserving integer compactness".
func encoder() cbor.EncMode {
	encModeOnce.Do(func() {
		opts := cbor.CanonicalEncOptions()
		m, err := opts.EncMode()
		if err != nil {
			panic("wire: invalid cbor encode options: " + err.Error())
		}
		encMode = m
	})
	return encMode
}

// Marshal packs v into the canonical CBOR encoding used on every bus↔wire
// boundary (MQTT payloads, admin WebSocket frames).
func Marshal(v any) ([]byte, error) {
	return encoder().Marshal(v)
}

// Unmarshal decodes packed CBOR into v.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
