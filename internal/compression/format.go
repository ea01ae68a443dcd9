package compression

import (
	"encoding/base64"
	"fmt"

	"github.com/cityforge/server/internal/worldmap"
)

// MeshFormat names the wire format of CompressedMesh payloads.
const MeshFormat = "binary_zstd"

// CompressedMesh is a compressed vertex stream ready for JSON transport.
type CompressedMesh struct {
	Format           string `json:"format"`
	Data             string `json:"data"` // base64
	Size             int    `json:"size"`
	UncompressedSize int    `json:"uncompressed_size"`
	VertexCount      int    `json:"vertex_count"`
}

// FormatMesh compresses a vertex stream and wraps it for transmission.
func FormatMesh(verts []worldmap.Vec3) (*CompressedMesh, error) {
	compressed, err := CompressMesh(verts)
	if err != nil {
		return nil, err
	}
	return &CompressedMesh{
		Format:           MeshFormat,
		Data:             base64.StdEncoding.EncodeToString(compressed),
		Size:             len(compressed),
		UncompressedSize: len(verts) * 3 * 4, // three quantized int32s per vertex
		VertexCount:      len(verts),
	}, nil
}

// ParseMesh reverses FormatMesh.
func ParseMesh(m *CompressedMesh) ([]worldmap.Vec3, error) {
	if m == nil {
		return nil, fmt.Errorf("mesh payload is nil")
	}
	if m.Format != MeshFormat {
		return nil, fmt.Errorf("unsupported mesh format %q", m.Format)
	}
	raw, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding base64: %w", err)
	}
	return DecompressMesh(raw)
}
