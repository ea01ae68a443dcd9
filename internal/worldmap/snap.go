package worldmap

import "math"

// SnapToGridXZ snaps p to the nearest multiple of grid in X and Z.
// A non-positive grid disables snapping.
func SnapToGridXZ(p Vec3, grid float64) Vec3 {
	if grid <= 0 {
		return p.Grounded()
	}
	return Vec3{
		X: math.Round(p.X/grid) * grid,
		Z: math.Round(p.Z/grid) * grid,
	}
}

// SnapAngleFromPrev snaps the direction from prev to raw onto the nearest
// multiple of stepDegrees, preserving the segment length. Degenerate
// (zero-length) input is returned unchanged.
func SnapAngleFromPrev(prev, raw Vec3, stepDegrees float64) Vec3 {
	d := raw.Sub(prev).Grounded()
	l := d.LenXZ()
	if l < MinSegmentLength || stepDegrees <= 0 {
		return raw
	}
	step := stepDegrees * math.Pi / 180
	ang := math.Atan2(d.Z, d.X)
	snapped := math.Round(ang/step) * step
	return Vec3{
		X: prev.X + math.Cos(snapped)*l,
		Z: prev.Z + math.Sin(snapped)*l,
	}
}

// Hash32 is a 32-bit integer finalizer used for deterministic placement
// seeds and spawn jitter.
func Hash32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}
