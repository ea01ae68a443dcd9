// Package streaming buckets placed instances and overlay geometry per
// chunk and exposes the windowed subset a camera can see, plus
// per-client subscriptions with chunk deltas.
package streaming

import (
	"sort"

	"github.com/cityforge/server/internal/assets"
	"github.com/cityforge/server/internal/placement"
	"github.com/cityforge/server/internal/worldmap"
)

// Batch is one (chunk, asset) draw unit: every instance of one asset
// inside one chunk.
type Batch struct {
	Chunk     worldmap.ChunkCoord
	Asset     assets.AssetID
	Instances []placement.Instance
}

// Index holds the chunked world contents between rebuilds.
type Index struct {
	buckets  map[worldmap.ChunkCoord]map[assets.AssetID][]placement.Instance
	overlays map[worldmap.ChunkCoord][]worldmap.Vec3
}

// NewIndex builds an empty index.
func NewIndex() *Index {
	return &Index{
		buckets:  make(map[worldmap.ChunkCoord]map[assets.AssetID][]placement.Instance),
		overlays: make(map[worldmap.ChunkCoord][]worldmap.Vec3),
	}
}

// Reset drops all buckets, keeping the maps allocated.
func (ix *Index) Reset() {
	clear(ix.buckets)
	clear(ix.overlays)
}

// AddInstance buckets an instance under the chunk its position falls in.
func (ix *Index) AddInstance(inst placement.Instance) {
	coord := worldmap.ChunkAt(inst.Position, worldmap.StreamChunkSize)
	byAsset, ok := ix.buckets[coord]
	if !ok {
		byAsset = make(map[assets.AssetID][]placement.Instance)
		ix.buckets[coord] = byAsset
	}
	byAsset[inst.Asset] = append(byAsset[inst.Asset], inst)
}

// AddInstances buckets a whole placement result.
func (ix *Index) AddInstances(insts []placement.Instance) {
	for _, inst := range insts {
		ix.AddInstance(inst)
	}
}

// AddOverlay buckets overlay triangles by the chunk of each triangle's
// first vertex, so preview/zone geometry streams under the same window.
func (ix *Index) AddOverlay(verts []worldmap.Vec3) {
	for i := 0; i+2 < len(verts); i += 3 {
		coord := worldmap.ChunkAt(verts[i], worldmap.StreamChunkSize)
		ix.overlays[coord] = append(ix.overlays[coord], verts[i], verts[i+1], verts[i+2])
	}
}

// InstanceCount returns the total bucketed instance count.
func (ix *Index) InstanceCount() int {
	n := 0
	for _, byAsset := range ix.buckets {
		for _, insts := range byAsset {
			n += len(insts)
		}
	}
	return n
}

// VisibleBatches enumerates the square of chunks within radius of the
// camera chunk and returns one batch per non-empty (chunk, asset) pair.
// Ordering is deterministic: row-major chunks, ascending asset id.
func (ix *Index) VisibleBatches(camera worldmap.ChunkCoord, radiusChunks int) []Batch {
	var out []Batch
	for _, coord := range worldmap.ChunksInRadius(camera, radiusChunks) {
		byAsset, ok := ix.buckets[coord]
		if !ok {
			continue
		}
		ids := make([]assets.AssetID, 0, len(byAsset))
		for id := range byAsset {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			out = append(out, Batch{Chunk: coord, Asset: id, Instances: byAsset[id]})
		}
	}
	return out
}

// VisibleOverlays returns the overlay vertex streams for chunks within
// the window, concatenated in chunk order.
func (ix *Index) VisibleOverlays(camera worldmap.ChunkCoord, radiusChunks int) []worldmap.Vec3 {
	var out []worldmap.Vec3
	for _, coord := range worldmap.ChunksInRadius(camera, radiusChunks) {
		out = append(out, ix.overlays[coord]...)
	}
	return out
}
