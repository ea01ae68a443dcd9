package worldmap

import (
	"fmt"
	"math"
)

// MinSegmentLength is the epsilon below which a segment is treated as
// degenerate: tangents are not derived from it and sampling skips it.
const MinSegmentLength = 1e-6

// Vec3 is a world-space position or direction. The editable plane is XZ;
// Y is height and is pinned to 0 for everything the command log owns.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Grounded returns v with Y forced to 0.
func (v Vec3) Grounded() Vec3 { return Vec3{v.X, 0, v.Z} }

// LenXZ returns the ground-plane length of v.
func (v Vec3) LenXZ() float64 { return math.Hypot(v.X, v.Z) }

// DistXZ returns the ground-plane distance between a and b.
func DistXZ(a, b Vec3) float64 {
	return math.Hypot(b.X-a.X, b.Z-a.Z)
}

// DistSqXZ returns the squared ground-plane distance between a and b.
func DistSqXZ(a, b Vec3) float64 {
	dx := b.X - a.X
	dz := b.Z - a.Z
	return dx*dx + dz*dz
}

// NormalizedXZ returns v projected onto the ground plane and normalized.
// Degenerate inputs fall back to +X so callers always get a unit tangent.
func (v Vec3) NormalizedXZ() Vec3 {
	l := math.Hypot(v.X, v.Z)
	if l < MinSegmentLength {
		return Vec3{1, 0, 0}
	}
	return Vec3{v.X / l, 0, v.Z / l}
}

// RightOfXZ returns the ground-plane normal 90° clockwise (viewed from
// above) of the given direction, i.e. cross(up, dir).
func RightOfXZ(dir Vec3) Vec3 {
	// cross((0,1,0), (x,0,z)) = (z, 0, -x)
	return Vec3{dir.Z, 0, -dir.X}.NormalizedXZ()
}

// ClosestParamOnSegmentXZ projects p onto segment ab in the ground plane
// and returns the clamped parametric position t in [0,1] plus the closest
// point itself.
func ClosestParamOnSegmentXZ(p, a, b Vec3) (t float64, closest Vec3) {
	apx, apz := p.X-a.X, p.Z-a.Z
	abx, abz := b.X-a.X, b.Z-a.Z
	ab2 := abx*abx + abz*abz
	if ab2 > 1e-8 {
		t = (apx*abx + apz*abz) / ab2
	}
	t = Clamp(t, 0, 1)
	closest = Vec3{a.X + abx*t, 0, a.Z + abz*t}
	return t, closest
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Validate rejects NaN/Inf components before they can poison derived state.
func (v Vec3) Validate() error {
	if math.IsNaN(v.X) || math.IsInf(v.X, 0) {
		return fmt.Errorf("invalid x: %f", v.X)
	}
	if math.IsNaN(v.Y) || math.IsInf(v.Y, 0) {
		return fmt.Errorf("invalid y: %f", v.Y)
	}
	if math.IsNaN(v.Z) || math.IsInf(v.Z, 0) {
		return fmt.Errorf("invalid z: %f", v.Z)
	}
	return nil
}
