package legacyv1

import (
	"testing"

	"github.com/nimbic-io/otahub/internal/wire"
)

func TestDecodeAndToV2(t *testing.T) {
	original := Package{
		Version: wire.OTAPackageVersion{Major: 1, Hash: [8]byte{'a', 'b', 'c', 'd', '1', '2', '3', '4'}},
		Host:    "http://legacy.example.com",
		File:    "1.0.0-0-abcd1234.bin",
		Force:   true,
	}

	data, err := wire.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.File != original.File || decoded.Host != original.Host {
		t.Fatalf("decoded = %+v, want %+v", decoded, original)
	}

	v2 := decoded.ToV2()
	if len(v2.Files) != 1 || v2.Files[0].ImageType != wire.ImageTypePrimary {
		t.Fatalf("ToV2 files = %+v, want one primary file", v2.Files)
	}
	if v2.Files[0].File != original.File {
		t.Errorf("ToV2 file = %q, want %q", v2.Files[0].File, original.File)
	}
}
