// Package testutil provides world fixture builders shared by package
// tests. Builders return fully-formed world.State values; callers hand
// them to an engine via ReplaceState or use them directly.
package testutil

import (
	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
)

// StraightRoadState returns a world with one road running along +X from
// the origin.
func StraightRoadState(length float64) *world.State {
	s := world.NewState()
	AddRoad(s, worldmap.Vec3{X: 0, Z: 0}, worldmap.Vec3{X: length, Z: 0})
	return s
}

// ZonedRoadState returns a straight +X road with a zone strip covering
// [d0,d1) on the given sides.
func ZonedRoadState(length, d0, d1 float64, sideMask int, zt world.ZoneType) *world.State {
	s := StraightRoadState(length)
	AddZone(s, 1, d0, d1, sideMask, zt)
	return s
}

// LShapedRoadState returns a road running +X then turning to +Z.
func LShapedRoadState(legLength float64) *world.State {
	s := world.NewState()
	AddRoad(s,
		worldmap.Vec3{X: 0, Z: 0},
		worldmap.Vec3{X: legLength, Z: 0},
		worldmap.Vec3{X: legLength, Z: legLength},
	)
	return s
}

// AddRoad appends a road built from the given points, assigning the next
// road id and rebuilding cached lengths.
func AddRoad(s *world.State, pts ...worldmap.Vec3) world.RoadID {
	r := &world.Road{ID: s.NextRoadID, Pts: pts}
	for i := range r.Pts {
		r.Pts[i] = r.Pts[i].Grounded()
	}
	r.RebuildLengths()
	s.NextRoadID++
	s.Roads = append(s.Roads, r)
	s.MarkRoadsDirty()
	return r.ID
}

// AddZone appends a zone strip without overlap checking; fixtures are
// expected to be well-formed.
func AddZone(s *world.State, roadID world.RoadID, d0, d1 float64, sideMask int, zt world.ZoneType) world.ZoneID {
	z := world.ZoneStrip{
		ID:       s.NextZoneID,
		RoadID:   roadID,
		D0:       d0,
		D1:       d1,
		SideMask: sideMask & world.SideBoth,
		Type:     zt,
		Depth:    world.DefaultZoneDepth,
	}
	s.NextZoneID++
	s.Zones = append(s.Zones, z)
	s.MarkZonesDirty()
	return z.ID
}
