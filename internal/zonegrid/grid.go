// Package zonegrid maintains the sparse chunked flag grid that records,
// per sub-meter cell, whether land is buildable, zoned, or blocked. The
// grid is a pure function of current roads + zones + water mask and is
// rebuilt wholesale whenever either changes.
package zonegrid

import (
	"math"

	"github.com/cityforge/server/internal/tuning"
	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
)

// Per-cell flag bits. The two bits above the flags hold the zone type.
const (
	FlagBuildable uint8 = 1 << 0
	FlagZoned     uint8 = 1 << 1
	FlagBlocked   uint8 = 1 << 2

	typeShift       = 3
	typeMask  uint8 = 0b11 << typeShift
)

// WaterMask is the external water collaborator. An empty mask (never
// water) is the documented fallback when no import is available.
type WaterMask interface {
	IsWater(p worldmap.Vec3) bool
}

// Chunk is a fixed-size square tile of cells, one byte each.
type Chunk struct {
	Cells []uint8
}

// Grid is the sparse set of chunks, keyed by integer chunk coordinates
// floored from world position.
type Grid struct {
	cellSize   float64
	chunkCells int
	chunks     map[worldmap.ChunkCoord]*Chunk
}

// NewGrid builds an empty grid sized from the tuning constants.
func NewGrid(tn tuning.Tuning) *Grid {
	return &Grid{
		cellSize:   tn.CellSize(),
		chunkCells: tn.GridChunkCells,
		chunks:     make(map[worldmap.ChunkCoord]*Chunk),
	}
}

// CellSize returns the cell edge length in meters.
func (g *Grid) CellSize() float64 { return g.cellSize }

// ChunkCount returns the number of allocated chunks.
func (g *Grid) ChunkCount() int { return len(g.chunks) }

// Clear drops every chunk.
func (g *Grid) Clear() {
	g.chunks = make(map[worldmap.ChunkCoord]*Chunk)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// locate splits a world position into chunk coordinate and cell index
// within the chunk.
func (g *Grid) locate(p worldmap.Vec3) (worldmap.ChunkCoord, int) {
	cx := int(math.Floor(p.X / g.cellSize))
	cz := int(math.Floor(p.Z / g.cellSize))
	chX := floorDiv(cx, g.chunkCells)
	chZ := floorDiv(cz, g.chunkCells)
	lx := cx - chX*g.chunkCells
	lz := cz - chZ*g.chunkCells
	return worldmap.ChunkCoord{X: int32(chX), Z: int32(chZ)}, lz*g.chunkCells + lx
}

// Flags returns the cell byte at a world position; cells outside any
// allocated chunk read as 0 (not buildable).
func (g *Grid) Flags(p worldmap.Vec3) uint8 {
	coord, idx := g.locate(p)
	ch, ok := g.chunks[coord]
	if !ok {
		return 0
	}
	return ch.Cells[idx]
}

// ZoneTypeAt returns the zone type encoded at a world position. Only
// meaningful when the cell has FlagZoned set.
func (g *Grid) ZoneTypeAt(p worldmap.Vec3) world.ZoneType {
	return world.ZoneType((g.Flags(p) & typeMask) >> typeShift)
}

func (g *Grid) chunkFor(coord worldmap.ChunkCoord) *Chunk {
	ch, ok := g.chunks[coord]
	if !ok {
		ch = &Chunk{Cells: make([]uint8, g.chunkCells*g.chunkCells)}
		g.chunks[coord] = ch
	}
	return ch
}

// markBuildable sets the buildable flag and, when zoned, the zoned flag
// plus type bits. Blocked cells are left alone: road surface and water
// always win over zoning.
func (g *Grid) markBuildable(p worldmap.Vec3, zoned bool, zt world.ZoneType) {
	coord, idx := g.locate(p)
	ch := g.chunkFor(coord)
	cell := ch.Cells[idx]
	if cell&FlagBlocked != 0 {
		return
	}
	cell |= FlagBuildable
	if zoned {
		cell |= FlagZoned
		cell = (cell &^ typeMask) | (uint8(zt) << typeShift)
	}
	ch.Cells[idx] = cell
}

// markBlocked sets the blocked flag and strips buildable/zoned/type.
func (g *Grid) markBlocked(p worldmap.Vec3) {
	coord, idx := g.locate(p)
	ch := g.chunkFor(coord)
	ch.Cells[idx] = FlagBlocked
}

// Rebuild regenerates the whole grid from the world state and water mask.
// A malformed road or a strip referencing a missing road contributes
// nothing; it never aborts the pass.
func (g *Grid) Rebuild(s *world.State, water WaterMask, tn tuning.Tuning) {
	g.Clear()

	halfCell := g.cellSize / 2
	roadHalf := tn.RoadHalfWidth()

	// Pass 1: buildable bands on both sides of every road.
	for _, r := range s.Roads {
		if len(r.Pts) < world.MinRoadPoints || !r.LengthsValid() {
			continue
		}
		total := r.TotalLength()
		if total < worldmap.MinSegmentLength {
			continue
		}
		for d := 0.0; d <= total; d += halfCell {
			pos, tan := r.PointAt(d)
			right := worldmap.RightOfXZ(tan)
			for _, side := range [2]int{-1, +1} {
				strip := s.ZoneAt(r.ID, d, side)
				for k := 0; k < tn.ZoneDepthCells; k++ {
					off := roadHalf + (float64(k)+0.5)*g.cellSize
					cellPos := pos.Add(right.Scale(float64(side) * off))
					if strip != nil {
						g.markBuildable(cellPos, true, strip.Type)
					} else {
						g.markBuildable(cellPos, false, 0)
					}
				}
			}
		}
	}

	// Pass 2: road surface stamps blocked, clearing anything zoned there.
	for _, r := range s.Roads {
		if len(r.Pts) < world.MinRoadPoints || !r.LengthsValid() {
			continue
		}
		total := r.TotalLength()
		if total < worldmap.MinSegmentLength {
			continue
		}
		for d := 0.0; d <= total; d += halfCell {
			pos, tan := r.PointAt(d)
			right := worldmap.RightOfXZ(tan)
			for off := -(roadHalf + g.cellSize); off <= roadHalf+g.cellSize; off += halfCell {
				g.markBlocked(pos.Add(right.Scale(off)))
			}
		}
	}

	// Pass 3: water wins over everything already stamped.
	if water != nil {
		for coord, ch := range g.chunks {
			for idx := range ch.Cells {
				if ch.Cells[idx] == 0 {
					continue
				}
				lx := idx % g.chunkCells
				lz := idx / g.chunkCells
				center := worldmap.Vec3{
					X: (float64(int(coord.X)*g.chunkCells+lx) + 0.5) * g.cellSize,
					Z: (float64(int(coord.Z)*g.chunkCells+lz) + 0.5) * g.cellSize,
				}
				if water.IsWater(center) {
					ch.Cells[idx] = FlagBlocked
				}
			}
		}
	}
}

// RectCoverage samples the interior of an oriented rectangle at half-cell
// resolution and returns the fraction of samples whose flags contain all
// of required. It short-circuits to 0 the moment any sample carries a
// forbidden flag, which is how lots straddling blocked cells are rejected.
func (g *Grid) RectCoverage(center, forward, right worldmap.Vec3, halfLen, halfDepth float64, required, forbidden uint8) float64 {
	step := g.cellSize / 2
	if halfLen <= 0 || halfDepth <= 0 {
		return 0
	}
	hits, total := 0, 0
	for u := -halfLen + step/2; u < halfLen; u += step {
		for v := -halfDepth + step/2; v < halfDepth; v += step {
			p := center.Add(forward.Scale(u)).Add(right.Scale(v))
			flags := g.Flags(p)
			if flags&forbidden != 0 {
				return 0
			}
			if flags&required == required {
				hits++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
