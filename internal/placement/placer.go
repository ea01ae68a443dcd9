// Package placement converts zoned lot cells into building instances,
// with collision avoidance against everything already placed and an
// optional spawn animation window.
package placement

import (
	"math"

	"github.com/cityforge/server/internal/assets"
	"github.com/cityforge/server/internal/lots"
	"github.com/cityforge/server/internal/tuning"
	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
	"github.com/cityforge/server/internal/zonegrid"
)

// Instance is one placed building. Position is world space; streaming
// re-buckets it per chunk.
type Instance struct {
	Asset    assets.AssetID
	Position worldmap.Vec3
	Yaw      float64 // radians, 0 = facing +X
	Scale    [3]float64
	Seed     uint32
	RoadID   world.RoadID
	Side     int
}

// SpawnAnimation is a pending instance: it becomes permanent once its
// animation window elapses.
type SpawnAnimation struct {
	Instance  Instance
	SpawnedAt float64 // seconds, already jittered
}

// AnimScale returns the eased uniform scale factor for a pending spawn
// at time now, in [0,1].
func (a *SpawnAnimation) AnimScale(now, duration float64) float64 {
	t := (now - a.SpawnedAt) / duration
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	u := 1 - t
	return 1 - u*u
}

// Result is one placement pass's output.
type Result struct {
	Static  []Instance
	Pending []SpawnAnimation
}

// Placer holds the tuning and asset collaborator for placement passes.
type Placer struct {
	tn      tuning.Tuning
	catalog *assets.Catalog
}

// NewPlacer builds a placer over the given catalog.
func NewPlacer(tn tuning.Tuning, catalog *assets.Catalog) *Placer {
	return &Placer{tn: tn, catalog: catalog}
}

// Seed derives the deterministic per-instance seed from the placement
// position, owning road and side.
func Seed(pos worldmap.Vec3, roadID world.RoadID, side int) uint32 {
	hx := uint32(int32(math.Round(pos.X * 10)))
	hz := uint32(int32(math.Round(pos.Z * 10)))
	return worldmap.Hash32(hx ^ hz*1664525 ^ uint32(roadID)*2654435761 ^ uint32(int32(side)))
}

type gridKey [2]int32

func keyAt(p worldmap.Vec3, cell float64) gridKey {
	return gridKey{
		int32(math.Floor(p.X / cell)),
		int32(math.Floor(p.Z / cell)),
	}
}

// placedRef is an entry in the fine spatial hash.
type placedRef struct {
	pos    worldmap.Vec3
	radius float64
}

// Place runs a full placement pass over the lot cells. With animate set,
// accepted instances are emitted as SpawnAnimations whose start times are
// jittered off now; otherwise they are emitted directly as static.
// The pass is a pure function of its inputs apart from the animation
// timestamps.
func (p *Placer) Place(cells []lots.LotCell, s *world.State, grid *zonegrid.Grid, animate bool, now float64) Result {
	var res Result
	cellSize := grid.CellSize()

	occupied := make(map[gridKey]struct{})
	buckets := make(map[gridKey][]placedRef)

	for _, lc := range cells {
		if !lc.Zoned {
			continue
		}
		if grid.Flags(lc.Center)&zonegrid.FlagBlocked != 0 {
			continue
		}

		assetID := p.catalog.ResolveCategoryAsset(lc.Type.Category())
		def := p.catalog.Find(assetID)
		if def == nil {
			continue
		}

		// Round the footprint up to whole grid cells.
		fw := math.Ceil(def.FootprintM[0]*def.DefaultScale[0]/cellSize) * cellSize
		fd := math.Ceil(def.FootprintM[1]*def.DefaultScale[2]/cellSize) * cellSize
		if fd > p.tn.ZoneDepth {
			continue
		}

		// Edge clearance against every road, not just the owner: this is
		// what keeps houses out of intersections.
		if distSq, ok := nearestRoadDistSq(s, lc.Center); ok {
			clear := math.Sqrt(distSq) - p.tn.RoadHalfWidth()
			if clear < p.tn.EdgeClearance {
				continue
			}
		}

		if _, busy := occupied[keyAt(lc.Center, p.tn.OccupancyCell)]; busy {
			continue
		}

		radius := math.Hypot(fw, fd) / 2
		if p.collides(buckets, lc.Center, radius) {
			continue
		}

		inward := lc.Right.Scale(float64(-lc.Side))
		inst := Instance{
			Asset:    assetID,
			Position: lc.Center,
			Yaw:      math.Atan2(-inward.Z, inward.X),
			Scale:    def.DefaultScale,
			Seed:     Seed(lc.Center, lc.RoadID, lc.Side),
			RoadID:   lc.RoadID,
			Side:     lc.Side,
		}

		if animate {
			jitter := float64(inst.Seed%120) / 1000
			res.Pending = append(res.Pending, SpawnAnimation{
				Instance:  inst,
				SpawnedAt: now + jitter,
			})
		} else {
			res.Static = append(res.Static, inst)
		}

		occupied[keyAt(lc.Center, p.tn.OccupancyCell)] = struct{}{}
		bk := keyAt(lc.Center, p.tn.CollisionBucket)
		buckets[bk] = append(buckets[bk], placedRef{pos: lc.Center, radius: radius})
	}
	return res
}

func nearestRoadDistSq(s *world.State, pos worldmap.Vec3) (float64, bool) {
	found := false
	best := math.MaxFloat64
	for _, r := range s.Roads {
		if len(r.Pts) < world.MinRoadPoints {
			continue
		}
		if _, _, distSq := r.ClosestAlong(pos); distSq < best {
			found, best = true, distSq
		}
	}
	return best, found
}

// collides searches the spatial hash within the candidate's bounding
// radius for any instance closer than the sum of radii plus the margin.
func (p *Placer) collides(buckets map[gridKey][]placedRef, pos worldmap.Vec3, radius float64) bool {
	reach := int(math.Ceil(radius/p.tn.CollisionBucket)) + 1
	center := keyAt(pos, p.tn.CollisionBucket)
	for dz := -reach; dz <= reach; dz++ {
		for dx := -reach; dx <= reach; dx++ {
			for _, ref := range buckets[gridKey{center[0] + int32(dx), center[1] + int32(dz)}] {
				limit := radius + ref.radius + p.tn.CollisionMargin
				if worldmap.DistSqXZ(pos, ref.pos) < limit*limit {
					return true
				}
			}
		}
	}
	return false
}

// Step advances the spawn animations: anything past the duration is
// promoted to static, everything else stays pending. Returns the updated
// pending list, the promoted instances, and the current interpolated
// scale per remaining pending entry (index-aligned).
func Step(pending []SpawnAnimation, now, duration float64) (still []SpawnAnimation, promoted []Instance, scales []float64) {
	for _, a := range pending {
		if now-a.SpawnedAt >= duration {
			promoted = append(promoted, a.Instance)
			continue
		}
		still = append(still, a)
		scales = append(scales, a.AnimScale(now, duration))
	}
	return still, promoted, scales
}
