// Package lots scans roads against the zone grid and emits candidate
// building sites. The list is rebuilt wholesale whenever roads or zones
// change; lot cells are derived records and are never edited in place.
package lots

import (
	"math"

	"github.com/cityforge/server/internal/tuning"
	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
	"github.com/cityforge/server/internal/zonegrid"
)

// LotCell is a candidate building site: one fixed-length window on one
// side of a road, with its world-space frame and cached zoning.
type LotCell struct {
	RoadID  world.RoadID
	Side    int // -1 left, +1 right
	D0, D1  float64
	Center  worldmap.Vec3
	Forward worldmap.Vec3
	Right   worldmap.Vec3
	Zoned   bool
	Type    world.ZoneType
}

// Deriver turns world state plus grid coverage into lot cells.
type Deriver struct {
	tn tuning.Tuning
}

// NewDeriver builds a deriver with the given tuning.
func NewDeriver(tn tuning.Tuning) *Deriver {
	return &Deriver{tn: tn}
}

func dedupKey(p worldmap.Vec3, cell float64) [2]int32 {
	return [2]int32{
		int32(math.Floor(p.X / cell)),
		int32(math.Floor(p.Z / cell)),
	}
}

// Derive walks every road in fixed windows on both sides and accepts a
// window when its footprint clears the coverage threshold with no blocked
// cells and its coarse dedup cell is still free. First accepted candidate
// in a dedup cell wins; acceptance order never changes set membership.
func (dv *Deriver) Derive(s *world.State, grid *zonegrid.Grid) []LotCell {
	window := dv.tn.LotWindow()
	lotDepth := dv.tn.ZoneDepth
	centerOff := dv.tn.RoadHalfWidth() + lotDepth/2

	// The road-surface stamp blocks whole grid cells out to one cell past
	// the road edge, and the cell lattice is not aligned to the edge, so
	// the stamp can reach almost two cells beyond it. Coverage sampling
	// starts that far out; the footprint itself still begins at the edge.
	inset := 2 * dv.tn.CellSize()
	covOff := centerOff + inset/2
	covHalfDepth := (lotDepth - inset) / 2

	var out []LotCell
	seen := make(map[[2]int32]struct{})

	for _, r := range s.Roads {
		if len(r.Pts) < world.MinRoadPoints || !r.LengthsValid() {
			continue
		}
		total := r.TotalLength()
		if total < window {
			continue
		}
		for d0 := 0.0; d0+window <= total; d0 += window {
			mid := d0 + window/2
			pos, tan := r.PointAt(mid)
			right := worldmap.RightOfXZ(tan)

			for _, side := range [2]int{-1, +1} {
				center := pos.Add(right.Scale(float64(side) * centerOff))

				key := dedupKey(center, dv.tn.LotDedupCell)
				if _, dup := seen[key]; dup {
					continue
				}
				covCenter := pos.Add(right.Scale(float64(side) * covOff))
				cov := grid.RectCoverage(covCenter, tan, right,
					window/2, covHalfDepth,
					zonegrid.FlagBuildable, zonegrid.FlagBlocked)
				if cov < dv.tn.LotMinCoverage {
					continue
				}
				seen[key] = struct{}{}

				cell := LotCell{
					RoadID:  r.ID,
					Side:    side,
					D0:      d0,
					D1:      d0 + window,
					Center:  center,
					Forward: tan,
					Right:   right,
				}
				if strip := s.ZoneAt(r.ID, mid, side); strip != nil {
					cell.Zoned = true
					cell.Type = strip.Type
				}
				out = append(out, cell)
			}
		}
	}
	return out
}
