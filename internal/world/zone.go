package world

import "math"

// ZoneID uniquely identifies a zone strip.
type ZoneID int32

// ZoneType classifies what a zone strip may grow into.
type ZoneType uint8

const (
	ZoneResidential ZoneType = iota
	ZoneCommercial
	ZoneIndustrial
	ZoneOffice

	zoneTypeCount
)

// String returns the display name of the zone type.
func (z ZoneType) String() string {
	switch z {
	case ZoneResidential:
		return "residential"
	case ZoneCommercial:
		return "commercial"
	case ZoneIndustrial:
		return "industrial"
	case ZoneOffice:
		return "office"
	}
	return "unknown"
}

// Category maps a zone type to the asset catalog category that supplies its
// representative building.
func (z ZoneType) Category() string {
	switch z {
	case ZoneResidential:
		return "low_density"
	case ZoneCommercial:
		return "commercial"
	case ZoneIndustrial:
		return "industrial"
	case ZoneOffice:
		return "office"
	}
	return "low_density"
}

// ValidZoneType reports whether v names one of the four zone types.
func ValidZoneType(v ZoneType) bool {
	return v < zoneTypeCount
}

// Side mask bits for zone strips.
const (
	SideLeft  = 1
	SideRight = 2
	SideBoth  = SideLeft | SideRight
)

// SideBit converts a signed side (-1 left, +1 right) to its mask bit.
func SideBit(side int) int {
	if side < 0 {
		return SideLeft
	}
	return SideRight
}

// DefaultZoneDepth is the fixed depth in meters a strip extends away from
// the road edge.
const DefaultZoneDepth = 30.0

// ZoneStrip is a user-authored [D0,D1) interval along a road's arc length,
// on one or both sides, assigning a zone type to that span. Intervals are
// normalized (sorted, snapped to cell boundaries) before storage.
type ZoneStrip struct {
	ID       ZoneID
	RoadID   RoadID
	D0       float64
	D1       float64
	SideMask int
	Type     ZoneType
	Depth    float64
}

// CoversSide reports whether the strip applies to the signed side.
func (z *ZoneStrip) CoversSide(side int) bool {
	return z.SideMask&SideBit(side) != 0
}

// Contains reports whether arc length d on the signed side falls inside
// the strip's half-open interval.
func (z *ZoneStrip) Contains(d float64, side int) bool {
	return z.CoversSide(side) && d >= z.D0 && d < z.D1
}

// NormalizeInterval sorts an interval and snaps its endpoints outward to
// multiples of the grid cell size, producing the canonical [d0,d1) stored
// on a strip.
func NormalizeInterval(d0, d1, cellSize float64) (lo, hi float64) {
	lo, hi = math.Min(d0, d1), math.Max(d0, d1)
	if cellSize > 0 {
		lo = math.Floor(lo/cellSize) * cellSize
		hi = math.Ceil(hi/cellSize) * cellSize
	}
	return lo, hi
}

// intervalsOverlap tests two half-open intervals. Strips that touch at a
// shared boundary do not conflict.
func intervalsOverlap(a0, a1, b0, b1 float64) bool {
	lo := math.Max(math.Min(a0, a1), math.Min(b0, b1))
	hi := math.Min(math.Max(a0, a1), math.Max(b0, b1))
	return hi > lo
}
