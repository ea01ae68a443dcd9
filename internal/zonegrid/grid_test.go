package zonegrid

import (
	"testing"

	"github.com/cityforge/server/internal/tuning"
	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
)

type noWater struct{}

func (noWater) IsWater(worldmap.Vec3) bool { return false }

type stripWater struct{ minX, maxX float64 }

func (w stripWater) IsWater(p worldmap.Vec3) bool { return p.X >= w.minX && p.X < w.maxX }

func straightRoadState(length float64) *world.State {
	s := world.NewState()
	r := &world.Road{ID: 1, Pts: []worldmap.Vec3{{X: 0}, {X: length}}}
	r.RebuildLengths()
	s.Roads = append(s.Roads, r)
	s.NextRoadID = 2
	return s
}

func TestRebuildMarksBuildableBands(t *testing.T) {
	tn := tuning.Default()
	s := straightRoadState(100)
	g := NewGrid(tn)
	g.Rebuild(s, noWater{}, tn)

	if g.ChunkCount() == 0 {
		t.Fatal("expected chunks after rebuild")
	}

	// Middle of the right-side band: buildable but not zoned.
	p := worldmap.Vec3{X: 50, Z: tn.RoadHalfWidth() + tn.ZoneDepth/2}
	flags := g.Flags(p)
	if flags&FlagBuildable == 0 {
		t.Fatalf("band cell at %v not buildable (flags=%b)", p, flags)
	}
	if flags&FlagZoned != 0 {
		t.Fatalf("unzoned road produced zoned cell (flags=%b)", flags)
	}

	// Beyond the band depth: untouched.
	far := worldmap.Vec3{X: 50, Z: tn.RoadHalfWidth() + tn.ZoneDepth + 2}
	if g.Flags(far) != 0 {
		t.Fatalf("cell beyond band depth has flags %b", g.Flags(far))
	}
}

func TestRebuildRoadSurfaceBlocked(t *testing.T) {
	tn := tuning.Default()
	s := straightRoadState(100)
	s.Zones = append(s.Zones, world.ZoneStrip{
		ID: 1, RoadID: 1, D0: 0, D1: 100,
		SideMask: world.SideBoth, Type: world.ZoneResidential, Depth: tn.ZoneDepth,
	})
	g := NewGrid(tn)
	g.Rebuild(s, noWater{}, tn)

	// Road centerline: blocked wins over the zoned band.
	center := worldmap.Vec3{X: 50, Z: 0}
	flags := g.Flags(center)
	if flags&FlagBlocked == 0 {
		t.Fatalf("road surface not blocked (flags=%b)", flags)
	}
	if flags&(FlagBuildable|FlagZoned) != 0 {
		t.Fatalf("road surface kept buildable/zoned flags (flags=%b)", flags)
	}
}

func TestRebuildZonedCellsCarryType(t *testing.T) {
	tn := tuning.Default()
	s := straightRoadState(100)
	s.Zones = append(s.Zones, world.ZoneStrip{
		ID: 1, RoadID: 1, D0: 20, D1: 80,
		SideMask: world.SideRight, Type: world.ZoneCommercial, Depth: tn.ZoneDepth,
	})
	g := NewGrid(tn)
	g.Rebuild(s, noWater{}, tn)

	// For a road along +X the right side is negative Z.
	in := worldmap.Vec3{X: 50, Z: -(tn.RoadHalfWidth() + 5)}
	flags := g.Flags(in)
	if flags&FlagZoned == 0 {
		t.Fatalf("cell inside strip not zoned (flags=%b)", flags)
	}
	if got := g.ZoneTypeAt(in); got != world.ZoneCommercial {
		t.Fatalf("zone type = %v, want commercial", got)
	}

	// Left side stays buildable but unzoned.
	left := worldmap.Vec3{X: 50, Z: tn.RoadHalfWidth() + 5}
	if g.Flags(left)&FlagZoned != 0 {
		t.Fatal("left side zoned by a right-only strip")
	}
	if g.Flags(left)&FlagBuildable == 0 {
		t.Fatal("left side lost its buildable band")
	}

	// Outside the [D0, D1) interval.
	out := worldmap.Vec3{X: 90, Z: -(tn.RoadHalfWidth() + 5)}
	if g.Flags(out)&FlagZoned != 0 {
		t.Fatal("cell past strip end is zoned")
	}
}

func TestRebuildWaterBlocks(t *testing.T) {
	tn := tuning.Default()
	s := straightRoadState(100)
	s.Zones = append(s.Zones, world.ZoneStrip{
		ID: 1, RoadID: 1, D0: 0, D1: 100,
		SideMask: world.SideBoth, Type: world.ZoneResidential, Depth: tn.ZoneDepth,
	})
	g := NewGrid(tn)
	g.Rebuild(s, stripWater{minX: 40, maxX: 60}, tn)

	wet := worldmap.Vec3{X: 50, Z: tn.RoadHalfWidth() + 5}
	if flags := g.Flags(wet); flags != FlagBlocked {
		t.Fatalf("water cell flags = %b, want blocked only", flags)
	}
	dry := worldmap.Vec3{X: 20, Z: tn.RoadHalfWidth() + 5}
	if g.Flags(dry)&FlagZoned == 0 {
		t.Fatal("dry cell lost its zoning")
	}
}

func TestRectCoverage(t *testing.T) {
	tn := tuning.Default()
	s := straightRoadState(100)
	s.Zones = append(s.Zones, world.ZoneStrip{
		ID: 1, RoadID: 1, D0: 0, D1: 100,
		SideMask: world.SideRight, Type: world.ZoneResidential, Depth: tn.ZoneDepth,
	})
	g := NewGrid(tn)
	g.Rebuild(s, noWater{}, tn)

	forward := worldmap.Vec3{X: 1}
	right := worldmap.Vec3{Z: -1}

	// A window fully inside the zoned band (right side, negative Z).
	center := worldmap.Vec3{X: 50, Z: -(tn.RoadHalfWidth() + tn.ZoneDepth/2)}
	cov := g.RectCoverage(center, forward, right, 7.5, tn.ZoneDepth/2-1, FlagBuildable|FlagZoned, FlagBlocked)
	if cov < tn.LotMinCoverage {
		t.Fatalf("in-band coverage = %.2f, want >= %.2f", cov, tn.LotMinCoverage)
	}

	// A window straddling the road surface short-circuits on blocked.
	onRoad := worldmap.Vec3{X: 50, Z: 0}
	if cov := g.RectCoverage(onRoad, forward, right, 7.5, 5, FlagBuildable|FlagZoned, FlagBlocked); cov != 0 {
		t.Fatalf("coverage over blocked road = %.2f, want 0", cov)
	}

	// A window far from any road has zero coverage.
	empty := worldmap.Vec3{X: 50, Z: 500}
	if cov := g.RectCoverage(empty, forward, right, 7.5, 5, FlagBuildable, FlagBlocked); cov != 0 {
		t.Fatalf("coverage in empty land = %.2f, want 0", cov)
	}
}

func TestDegenerateRoadSkipped(t *testing.T) {
	tn := tuning.Default()
	s := world.NewState()
	r := &world.Road{ID: 1, Pts: []worldmap.Vec3{{X: 5, Z: 5}}}
	r.RebuildLengths()
	s.Roads = append(s.Roads, r)

	g := NewGrid(tn)
	g.Rebuild(s, noWater{}, tn)
	if g.ChunkCount() != 0 {
		t.Fatalf("single-point road allocated %d chunks", g.ChunkCount())
	}
}

func TestNegativeCoordinateCells(t *testing.T) {
	tn := tuning.Default()
	s := world.NewState()
	r := &world.Road{ID: 1, Pts: []worldmap.Vec3{{X: -200}, {X: -100}}}
	r.RebuildLengths()
	s.Roads = append(s.Roads, r)
	s.NextRoadID = 2

	g := NewGrid(tn)
	g.Rebuild(s, noWater{}, tn)
	p := worldmap.Vec3{X: -150, Z: tn.RoadHalfWidth() + 5}
	if g.Flags(p)&FlagBuildable == 0 {
		t.Fatalf("negative-coordinate band cell not buildable (flags=%b)", g.Flags(p))
	}
}
