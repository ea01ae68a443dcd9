// Package meshgen produces the triangle vertex streams the renderer
// consumes: road surfaces, zone overlay strips, and tool previews.
// Output is a flat list of vertices, three per triangle.
package meshgen

import (
	"math"

	"github.com/cityforge/server/internal/tuning"
	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
)

// Slightly different heights keep overlapping layers from z-fighting.
const (
	roadSurfaceY = 0.03
	zoneOverlayY = 0.04
	previewY     = 0.05

	overlayStep    = 6.0
	minOverlaySpan = 1.0
)

func quad(out []worldmap.Vec3, aL, aR, bL, bR worldmap.Vec3) []worldmap.Vec3 {
	out = append(out, aL, aR, bR)
	out = append(out, aL, bR, bL)
	return out
}

// RoadMesh builds the flat road surface: one quad (two triangles) per
// polyline segment at the configured width. Degenerate segments are
// skipped.
func RoadMesh(roads []*world.Road, tn tuning.Tuning) []worldmap.Vec3 {
	var out []worldmap.Vec3
	half := tn.RoadHalfWidth()
	for _, r := range roads {
		if len(r.Pts) < world.MinRoadPoints {
			continue
		}
		for i := 0; i+1 < len(r.Pts); i++ {
			a, b := r.Pts[i], r.Pts[i+1]
			dir := b.Sub(a).Grounded()
			if dir.LenXZ() < worldmap.MinSegmentLength {
				continue
			}
			off := worldmap.RightOfXZ(dir).Scale(half)

			aL := a.Sub(off)
			aR := a.Add(off)
			bL := b.Sub(off)
			bR := b.Add(off)
			aL.Y, aR.Y, bL.Y, bR.Y = roadSurfaceY, roadSurfaceY, roadSurfaceY, roadSurfaceY
			out = quad(out, aL, aR, bL, bR)
		}
	}
	return out
}

// ZoneStripMesh appends overlay quads for one zone interval on a road,
// stepped along its length and offset one meter beyond the road edge.
// The final segment is clamped to the span end, so any span of at least
// a meter emits a quad; shorter spans emit nothing.
func ZoneStripMesh(out []worldmap.Vec3, r *world.Road, d0, d1 float64, sideMask int, depth float64, tn tuning.Tuning) []worldmap.Vec3 {
	a := math.Min(d0, d1)
	b := math.Max(d0, d1)
	if b-a < minOverlaySpan {
		return out
	}
	setback := tn.RoadHalfWidth() + 1

	emit := func(side float64) {
		for d := a; d < b; d += overlayStep {
			p0, t0 := r.PointAt(d)
			p1, t1 := r.PointAt(math.Min(d+overlayStep, b))
			r0 := worldmap.RightOfXZ(t0)
			r1 := worldmap.RightOfXZ(t1)

			in0 := p0.Add(r0.Scale(side * setback))
			out0 := p0.Add(r0.Scale(side * (setback + depth)))
			in1 := p1.Add(r1.Scale(side * setback))
			out1 := p1.Add(r1.Scale(side * (setback + depth)))
			in0.Y, out0.Y, in1.Y, out1.Y = zoneOverlayY, zoneOverlayY, zoneOverlayY, zoneOverlayY
			out = quad(out, in0, out0, in1, out1)
		}
	}
	if sideMask&world.SideLeft != 0 {
		emit(-1)
	}
	if sideMask&world.SideRight != 0 {
		emit(+1)
	}
	return out
}

// ZoneOverlayMesh builds the committed zone coverage overlay across
// every strip whose road still exists.
func ZoneOverlayMesh(s *world.State, tn tuning.Tuning) []worldmap.Vec3 {
	var out []worldmap.Vec3
	for _, z := range s.Zones {
		r := s.FindRoad(z.RoadID)
		if r == nil || len(r.Pts) < world.MinRoadPoints {
			continue
		}
		out = ZoneStripMesh(out, r, z.D0, z.D1, z.SideMask, z.Depth, tn)
	}
	return out
}

// RoadPreviewMesh builds the single-segment preview quad shown while the
// road tool is dragging. A near-zero segment emits nothing.
func RoadPreviewMesh(a, b worldmap.Vec3, tn tuning.Tuning) []worldmap.Vec3 {
	dir := b.Sub(a).Grounded()
	if dir.LenXZ() < 1e-3 {
		return nil
	}
	off := worldmap.RightOfXZ(dir).Scale(tn.RoadHalfWidth())

	aL := a.Sub(off)
	aR := a.Add(off)
	bL := b.Sub(off)
	bR := b.Add(off)
	aL.Y, aR.Y, bL.Y, bR.Y = previewY, previewY, previewY, previewY
	return quad(nil, aL, aR, bL, bR)
}

// ZonePreviewMesh builds the preview overlay for an in-progress zone
// drag on a single road.
func ZonePreviewMesh(r *world.Road, d0, d1 float64, sideMask int, depth float64, tn tuning.Tuning) []worldmap.Vec3 {
	if r == nil || len(r.Pts) < world.MinRoadPoints {
		return nil
	}
	return ZoneStripMesh(nil, r, d0, d1, sideMask, depth, tn)
}
