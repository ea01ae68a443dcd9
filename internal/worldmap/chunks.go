package worldmap

import "math"

// StreamChunkSize is the edge length in meters of the square chunks used
// for instance bucketing and view-distance streaming.
const StreamChunkSize = 64.0

// ChunkCoord identifies a square world chunk. A struct key with structural
// equality is used instead of packing two int32s into a uint64; Go map keys
// make the packed form unnecessary.
type ChunkCoord struct {
	X int32
	Z int32
}

// ChunkAt returns the chunk containing the given world position, flooring
// by the chunk size.
func ChunkAt(p Vec3, chunkSize float64) ChunkCoord {
	return ChunkCoord{
		X: int32(math.Floor(p.X / chunkSize)),
		Z: int32(math.Floor(p.Z / chunkSize)),
	}
}

// ChunkOrigin returns the minimum-corner world position of a chunk.
func ChunkOrigin(c ChunkCoord, chunkSize float64) Vec3 {
	return Vec3{X: float64(c.X) * chunkSize, Z: float64(c.Z) * chunkSize}
}

// ChunksInRadius enumerates the square window of chunks within radius
// chunks of center, row-major. Radius 0 yields only the center chunk.
func ChunksInRadius(center ChunkCoord, radius int) []ChunkCoord {
	if radius < 0 {
		return nil
	}
	out := make([]ChunkCoord, 0, (2*radius+1)*(2*radius+1))
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			out = append(out, ChunkCoord{X: center.X + int32(dx), Z: center.Z + int32(dz)})
		}
	}
	return out
}

// CellCoord identifies a cell on an arbitrary coarse quantization grid
// (occupancy grids, dedup grids, spatial-hash buckets).
type CellCoord struct {
	X int32
	Z int32
}

// CellAt quantizes a world position onto a grid of the given cell size.
func CellAt(p Vec3, cellSize float64) CellCoord {
	return CellCoord{
		X: int32(math.Floor(p.X / cellSize)),
		Z: int32(math.Floor(p.Z / cellSize)),
	}
}
