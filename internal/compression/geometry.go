// Package compression packs renderer vertex streams into a quantized
// binary layout compressed with zstd, and provides the raw zstd helpers
// the persistence layer reuses for save-slot blobs.
package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/cityforge/server/internal/worldmap"
)

const (
	// GeometryMagic identifies the mesh stream format.
	GeometryMagic = "MESH"
	// GeometryVersion is the current format version.
	GeometryVersion = 1
)

// Quantization precision in meters.
const (
	QuantizationXZ = 0.01  // 1cm in the ground plane
	QuantizationY  = 0.001 // 1mm vertically (overlay layers differ by cm)
)

// GeometryHeader is the fixed binary prefix of an encoded stream.
type GeometryHeader struct {
	Magic       [4]byte
	Version     uint8
	_           [3]byte // padding keeps the header layout explicit
	VertexCount uint32
	BaseX       int64 // quantized, added back to every X on decode
	BaseZ       int64 // quantized, added back to every Z on decode
}

// CompressMesh quantizes a vertex stream relative to its first vertex
// and compresses the binary layout with zstd. An empty stream encodes to
// a header-only payload.
func CompressMesh(verts []worldmap.Vec3) ([]byte, error) {
	encoded, err := encodeMesh(verts)
	if err != nil {
		return nil, fmt.Errorf("encoding mesh: %w", err)
	}
	compressed, err := Compress(encoded)
	if err != nil {
		return nil, fmt.Errorf("compressing mesh: %w", err)
	}
	return compressed, nil
}

// DecompressMesh reverses CompressMesh.
func DecompressMesh(data []byte) ([]worldmap.Vec3, error) {
	encoded, err := Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompressing mesh: %w", err)
	}
	verts, err := decodeMesh(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding mesh: %w", err)
	}
	return verts, nil
}

func encodeMesh(verts []worldmap.Vec3) ([]byte, error) {
	header := GeometryHeader{
		Version:     GeometryVersion,
		VertexCount: uint32(len(verts)),
	}
	copy(header.Magic[:], GeometryMagic)

	// Positions are stored relative to the first vertex so quantized
	// values stay well inside int32 range far from the origin.
	if len(verts) > 0 {
		header.BaseX = int64(verts[0].X / QuantizationXZ)
		header.BaseZ = int64(verts[0].Z / QuantizationXZ)
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for _, v := range verts {
		q := [3]int32{
			int32(int64(v.X/QuantizationXZ) - header.BaseX),
			int32(v.Y / QuantizationY),
			int32(int64(v.Z/QuantizationXZ) - header.BaseZ),
		}
		if err := binary.Write(&buf, binary.LittleEndian, q); err != nil {
			return nil, fmt.Errorf("writing vertex: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func decodeMesh(data []byte) ([]worldmap.Vec3, error) {
	buf := bytes.NewReader(data)

	var header GeometryHeader
	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if string(header.Magic[:]) != GeometryMagic {
		return nil, fmt.Errorf("bad magic %q", header.Magic)
	}
	if header.Version != GeometryVersion {
		return nil, fmt.Errorf("unsupported version %d", header.Version)
	}

	verts := make([]worldmap.Vec3, header.VertexCount)
	for i := range verts {
		var q [3]int32
		if err := binary.Read(buf, binary.LittleEndian, &q); err != nil {
			return nil, fmt.Errorf("reading vertex %d: %w", i, err)
		}
		verts[i] = worldmap.Vec3{
			X: float64(int64(q[0])+header.BaseX) * QuantizationXZ,
			Y: float64(q[1]) * QuantizationY,
			Z: float64(int64(q[2])+header.BaseZ) * QuantizationXZ,
		}
	}
	return verts, nil
}

// Compress applies zstd at the default level.
func Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
