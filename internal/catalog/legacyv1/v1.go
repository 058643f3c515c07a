// Package legacyv1 decodes the legacy single-image OTA package shape
// (lib-shared/src/ota/v1.rs in the original source) for read-only
// interop. The catalog never writes this shape; spec.md §9 resolves the
// source's v1/v2 coexistence in favor of a single v2 schema
// (internal/wire.OTAPackage) and treats v1 as legacy-read-only.
package legacyv1

import "github.com/nimbic-io/otahub/internal/wire"

// Package is the pre-v2 single-image package shape: one file, no
// per-image type tagging, and a force-install flag that v2 dropped.
type Package struct {
	Version wire.OTAPackageVersion `cbor:"version"`
	Host    string                 `cbor:"host"`
	File    string                 `cbor:"file"`
	Force   bool                   `cbor:"force"`
}

// Decode parses a legacy v1-encoded package from data.
func Decode(data []byte) (Package, error) {
	var p Package
	err := wire.Unmarshal(data, &p)
	return p, err
}

// ToV2 upgrades a decoded v1 package into the v2 shape the catalog
// operates on, treating the single file as the primary image. Per
// spec.md §9, "force" has no v2 representation and any assigned update
// is eligible regardless of installed version — the flag is discarded.
func (p Package) ToV2() wire.OTAPackage {
	return wire.OTAPackage{
		Version: p.Version,
		Files: []wire.OTAPackageFileInfo{
			{ImageType: wire.ImageTypePrimary, Host: p.Host, File: p.File},
		},
	}
}
