package wire

import (
	"testing"
	"time"
)

func TestOTAPackageVersionString(t *testing.T) {
	tests := []struct {
		name    string
		version OTAPackageVersion
		want    string
	}{
		{
			name: "utf8 hash",
			version: OTAPackageVersion{
				Major: 1, Minor: 0, Patch: 1, Commit: 0,
				Hash: [8]byte{'6', '7', '3', '9', '6', '5', '3', '9'},
			},
			want: "1.0.1-0-67396539",
		},
		{
			name: "non-utf8 hash falls back to unknown",
			version: OTAPackageVersion{
				Major: 1, Minor: 1, Patch: 3, Commit: 0,
				Hash: [8]byte{0xff, 0xfe, 0, 0, 0, 0, 0, 0},
			},
			want: "1.1.3-0-unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.version.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOTAPackageUpdateID(t *testing.T) {
	pkg := OTAPackage{Version: OTAPackageVersion{Major: 1, Hash: [8]byte{'a', 'b', 'c', 'd', '1', '2', '3', '4'}}}
	want := "1.0.0-0-abcd1234"
	if got := pkg.UpdateID(); got != want {
		t.Errorf("UpdateID() = %q, want %q", got, want)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	pkg := OTAPackage{
		Version: OTAPackageVersion{Major: 1, Minor: 2, Patch: 3, Commit: 4, Hash: [8]byte{'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h'}},
		Files: []OTAPackageFileInfo{
			{ImageType: ImageTypePrimary, Host: "http://example.com", File: "1.2.3-4-abcdefgh/primary-1.2.3-4-abcdefgh.bin"},
		},
		DateAdded: &now,
	}

	data, err := Marshal(pkg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded OTAPackage
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.UpdateID() != pkg.UpdateID() {
		t.Errorf("round trip update id = %q, want %q", decoded.UpdateID(), pkg.UpdateID())
	}
	if len(decoded.Files) != 1 || decoded.Files[0].File != pkg.Files[0].File {
		t.Errorf("round trip files mismatch: %+v", decoded.Files)
	}
}

func TestOtaRequestCmdRoundTrip(t *testing.T) {
	req := OtaRequest{Cmd: OtaRequestDone}
	data, err := Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded OtaRequest
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Cmd != OtaRequestDone {
		t.Errorf("decoded cmd = %v, want %v", decoded.Cmd, OtaRequestDone)
	}
}
