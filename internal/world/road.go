package world

import (
	"github.com/cityforge/server/internal/worldmap"
)

// RoadID uniquely identifies a road. IDs are assigned at creation from
// WorldState.NextRoadID and never reused.
type RoadID int32

// Road is an ordered ground-plane polyline with an arc-length
// parameterization. CumLen[i] holds the arc length from point 0 to point i
// and must be consistent with Pts before any geometry query; callers that
// mutate Pts go through RebuildLengths.
type Road struct {
	ID     RoadID
	Pts    []worldmap.Vec3
	CumLen []float64
}

// MinRoadPoints is the smallest point count for which a road is renderable
// and queryable. Shorter roads may exist transiently but produce nothing.
const MinRoadPoints = 2

// RebuildLengths recomputes the cumulative arc-length array from Pts. O(n).
func (r *Road) RebuildLengths() {
	r.CumLen = r.CumLen[:0]
	if len(r.Pts) == 0 {
		return
	}
	if cap(r.CumLen) < len(r.Pts) {
		r.CumLen = make([]float64, 0, len(r.Pts))
	}
	acc := 0.0
	r.CumLen = append(r.CumLen, 0)
	for i := 0; i+1 < len(r.Pts); i++ {
		acc += worldmap.DistXZ(r.Pts[i], r.Pts[i+1])
		r.CumLen = append(r.CumLen, acc)
	}
}

// LengthsValid reports whether the cumulative array matches the point list.
func (r *Road) LengthsValid() bool {
	return len(r.CumLen) == len(r.Pts)
}

// TotalLength returns the road's arc length, 0 for degenerate roads.
func (r *Road) TotalLength() float64 {
	if len(r.CumLen) == 0 {
		return 0
	}
	return r.CumLen[len(r.CumLen)-1]
}

// PointAt resolves a distance along the road to a position and the unit
// ground-plane tangent of the containing segment. The distance is clamped
// to [0, TotalLength]. Degenerate roads return their single point (or the
// origin) with an arbitrary unit tangent.
func (r *Road) PointAt(d float64) (pos, tangent worldmap.Vec3) {
	if len(r.Pts) < MinRoadPoints || !r.LengthsValid() {
		if len(r.Pts) > 0 {
			return r.Pts[0].Grounded(), worldmap.Vec3{X: 1}
		}
		return worldmap.Vec3{}, worldmap.Vec3{X: 1}
	}
	d = worldmap.Clamp(d, 0, r.TotalLength())

	// Linear scan: roads are short polylines and this is called in tight
	// sampling loops that advance monotonically anyway.
	i := 0
	for i+1 < len(r.CumLen) && r.CumLen[i+1] < d {
		i++
	}
	if i+1 >= len(r.Pts) {
		i = len(r.Pts) - 2
	}

	a, b := r.Pts[i], r.Pts[i+1]
	segLen := worldmap.DistXZ(a, b)
	if segLen < worldmap.MinSegmentLength {
		segLen = worldmap.MinSegmentLength
	}
	t := (d - r.CumLen[i]) / segLen

	tangent = b.Sub(a).NormalizedXZ()
	pos = a.Add(b.Sub(a).Scale(t)).Grounded()
	return pos, tangent
}

// ClosestAlong projects a world position onto every segment of the road and
// returns the arc length at the closest point, the tangent of the segment
// containing it, and the squared ground-plane distance to it. Roads with
// fewer than two points report a huge distance so they never win a pick.
func (r *Road) ClosestAlong(p worldmap.Vec3) (along float64, tangent worldmap.Vec3, distSq float64) {
	distSq = 1e30
	tangent = worldmap.Vec3{X: 1}
	if len(r.Pts) < MinRoadPoints {
		return 0, tangent, distSq
	}

	for i := 0; i+1 < len(r.Pts); i++ {
		a, b := r.Pts[i], r.Pts[i+1]
		t, c := worldmap.ClosestParamOnSegmentXZ(p, a, b)
		dsq := worldmap.DistSqXZ(p, c)
		if dsq < distSq {
			distSq = dsq
			segStart := 0.0
			if i < len(r.CumLen) {
				segStart = r.CumLen[i]
			}
			along = segStart + t*worldmap.DistXZ(a, b)
			tangent = b.Sub(a).NormalizedXZ()
		}
	}
	return along, tangent, distSq
}
