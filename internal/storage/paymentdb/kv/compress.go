package kv

import (
	"fmt"

	"github.com/pierrec/lz4"
)

// artifactCompressMin is the smallest artifact worth compressing. Signed
// payment blobs below this are stored as-is.
const artifactCompressMin = 256

// setArtifact stores the signed artifact on the record, lz4-compressing it
// when large enough and the block actually shrinks.
func (rec *record) setArtifact(artifact []byte) {
	rec.Artifact = nil
	rec.ArtifactCompressed = false
	rec.ArtifactRawLen = 0
	if len(artifact) == 0 {
		return
	}
	rec.ArtifactRawLen = len(artifact)

	if len(artifact) >= artifactCompressMin {
		compressed := make([]byte, lz4.CompressBlockBound(len(artifact)))
		n, err := lz4.CompressBlock(artifact, compressed, nil)
		// n == 0 means the block is incompressible; fall through to raw.
		if err == nil && n > 0 && n < len(artifact) {
			rec.Artifact = compressed[:n]
			rec.ArtifactCompressed = true
			return
		}
	}

	rec.Artifact = append([]byte(nil), artifact...)
}

// artifact returns the signed artifact, decompressing when needed.
func (rec *record) artifact() ([]byte, error) {
	if len(rec.Artifact) == 0 {
		return nil, nil
	}
	if !rec.ArtifactCompressed {
		return append([]byte(nil), rec.Artifact...), nil
	}

	out := make([]byte, rec.ArtifactRawLen)
	n, err := lz4.UncompressBlock(rec.Artifact, out)
	if err != nil {
		return nil, fmt.Errorf("decompressing artifact for payment %d: %w", rec.ID, err)
	}
	return out[:n], nil
}
