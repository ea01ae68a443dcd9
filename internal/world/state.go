package world

import (
	"github.com/cityforge/server/internal/worldmap"
)

// State is the authoritative editable world: roads and zone strips plus the
// id counters and dirty flags that drive derived-data rebuilds. It is
// mutated only through command log operations; every derived structure
// (zone grid, lots, buildings) is a pure function of this state.
type State struct {
	NextRoadID RoadID
	NextZoneID ZoneID

	Roads []*Road
	Zones []ZoneStrip

	RoadsDirty  bool
	ZonesDirty  bool
	HousesDirty bool
}

// NewState returns an empty world with id counters starting at 1 and
// everything flagged dirty so the first frame rebuilds from scratch.
func NewState() *State {
	return &State{
		NextRoadID:  1,
		NextZoneID:  1,
		RoadsDirty:  true,
		ZonesDirty:  true,
		HousesDirty: true,
	}
}

// FindRoad returns the road with the given id, or nil if it no longer
// exists. Commands targeting missing roads no-op on nil.
func (s *State) FindRoad(id RoadID) *Road {
	for _, r := range s.Roads {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// RemoveRoad deletes the road with the given id, reporting whether it was
// present.
func (s *State) RemoveRoad(id RoadID) bool {
	for i, r := range s.Roads {
		if r.ID == id {
			s.Roads = append(s.Roads[:i], s.Roads[i+1:]...)
			return true
		}
	}
	return false
}

// ZoneOverlapsExisting reports whether a candidate strip interval on the
// given road overlaps any stored strip that shares at least one side bit.
// Callers check this before constructing an AddZone command; the command
// itself does not re-validate.
func (s *State) ZoneOverlapsExisting(roadID RoadID, sideMask int, d0, d1 float64) bool {
	for i := range s.Zones {
		z := &s.Zones[i]
		if z.RoadID != roadID || z.SideMask&sideMask == 0 {
			continue
		}
		if intervalsOverlap(d0, d1, z.D0, z.D1) {
			return true
		}
	}
	return false
}

// ZonesForRoad returns copies of all strips owned by the given road.
func (s *State) ZonesForRoad(id RoadID) []ZoneStrip {
	var out []ZoneStrip
	for _, z := range s.Zones {
		if z.RoadID == id {
			out = append(out, z)
		}
	}
	return out
}

// ZoneAt returns the strip covering arc length d on the signed side of the
// road, or nil. Used by the lot scan to tag candidates with a zone type.
func (s *State) ZoneAt(roadID RoadID, d float64, side int) *ZoneStrip {
	for i := range s.Zones {
		z := &s.Zones[i]
		if z.RoadID == roadID && z.Contains(d, side) {
			return z
		}
	}
	return nil
}

// MarkRoadsDirty flags roads and everything downstream of them.
func (s *State) MarkRoadsDirty() {
	s.RoadsDirty = true
	s.HousesDirty = true
}

// MarkZonesDirty flags zones and everything downstream of them.
func (s *State) MarkZonesDirty() {
	s.ZonesDirty = true
	s.HousesDirty = true
}

// MarkAllDirty forces a full rebuild, used after load.
func (s *State) MarkAllDirty() {
	s.RoadsDirty = true
	s.ZonesDirty = true
	s.HousesDirty = true
}

// EnsureLengths rebuilds any road whose cumulative-length array fell out of
// sync with its points. Run before geometry queries each frame.
func (s *State) EnsureLengths() {
	for _, r := range s.Roads {
		if !r.LengthsValid() {
			r.RebuildLengths()
		}
	}
}

// ClosestRoad finds the road nearest to a world position within pickRadius,
// returning the road, the arc length of the closest point, and whether any
// road qualified. Roads with fewer than two points never match.
func (s *State) ClosestRoad(p worldmap.Vec3, pickRadius float64) (road *Road, along float64, ok bool) {
	bestSq := pickRadius * pickRadius
	for _, r := range s.Roads {
		if len(r.Pts) < MinRoadPoints || !r.LengthsValid() {
			continue
		}
		d, _, distSq := r.ClosestAlong(p)
		if distSq < bestSq {
			bestSq = distSq
			road = r
			along = d
		}
	}
	return road, along, road != nil
}

// PickRoadPoint finds the closest road point within radius of p, returning
// the owning road id and the point index.
func (s *State) PickRoadPoint(p worldmap.Vec3, radius float64) (RoadID, int, bool) {
	bestSq := radius * radius
	bestRoad := RoadID(0)
	bestIdx := -1
	for _, r := range s.Roads {
		for i, pt := range r.Pts {
			if dsq := worldmap.DistSqXZ(p, pt); dsq < bestSq {
				bestSq = dsq
				bestRoad = r.ID
				bestIdx = i
			}
		}
	}
	return bestRoad, bestIdx, bestIdx >= 0
}

// SnapToEndpoint snaps p to the nearest road endpoint within radius,
// reporting the snapped position, the road, and whether the start endpoint
// won. Degenerate roads are skipped.
func (s *State) SnapToEndpoint(p worldmap.Vec3, radius float64) (snap worldmap.Vec3, roadID RoadID, isStart, ok bool) {
	bestSq := radius * radius
	snap = p
	for _, r := range s.Roads {
		if len(r.Pts) < MinRoadPoints {
			continue
		}
		a, b := r.Pts[0], r.Pts[len(r.Pts)-1]
		if dsq := worldmap.DistSqXZ(p, a); dsq < bestSq {
			bestSq, snap, roadID, isStart, ok = dsq, a, r.ID, true, true
		}
		if dsq := worldmap.DistSqXZ(p, b); dsq < bestSq {
			bestSq, snap, roadID, isStart, ok = dsq, b, r.ID, false, true
		}
	}
	return snap, roadID, isStart, ok
}
