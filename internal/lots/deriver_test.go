package lots

import (
	"testing"

	"github.com/cityforge/server/internal/tuning"
	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
	"github.com/cityforge/server/internal/zonegrid"
)

type noWater struct{}

func (noWater) IsWater(worldmap.Vec3) bool { return false }

func buildWorld(t *testing.T, tn tuning.Tuning, zones []world.ZoneStrip) (*world.State, *zonegrid.Grid) {
	t.Helper()
	s := world.NewState()
	r := &world.Road{ID: 1, Pts: []worldmap.Vec3{{X: 0}, {X: 100}}}
	r.RebuildLengths()
	s.Roads = append(s.Roads, r)
	s.NextRoadID = 2
	s.Zones = append(s.Zones, zones...)

	g := zonegrid.NewGrid(tn)
	g.Rebuild(s, noWater{}, tn)
	return s, g
}

func TestDeriveStraightRoadBothSides(t *testing.T) {
	tn := tuning.Default()
	s, g := buildWorld(t, tn, nil)

	cells := NewDeriver(tn).Derive(s, g)
	if len(cells) == 0 {
		t.Fatal("no lot cells on an open 100m road")
	}

	left, right := 0, 0
	for _, c := range cells {
		if c.RoadID != 1 {
			t.Errorf("lot cell references road %d", c.RoadID)
		}
		if c.Zoned {
			t.Error("unzoned road produced a zoned lot cell")
		}
		if c.D1-c.D0 != tn.LotWindow() {
			t.Errorf("window length %.2f, want %.2f", c.D1-c.D0, tn.LotWindow())
		}
		switch c.Side {
		case -1:
			left++
		case +1:
			right++
		default:
			t.Errorf("invalid side %d", c.Side)
		}
	}
	if left == 0 || right == 0 {
		t.Errorf("expected lots on both sides, got left=%d right=%d", left, right)
	}
}

func TestLotCoverageClearsRoadStamp(t *testing.T) {
	tn := tuning.Default()
	s, g := buildWorld(t, tn, nil)

	// The innermost coverage sample of a candidate rect sits half a
	// sample step past the inset inner edge. It must land outside the
	// blocked road stamp, or every window would be rejected outright.
	window := tn.LotWindow()
	innerOff := tn.RoadHalfWidth() + 2*tn.CellSize() + tn.CellSize()/4
	for _, side := range [2]float64{-1, +1} {
		p := worldmap.Vec3{X: window / 2, Z: side * innerOff}
		flags := g.Flags(p)
		if flags&zonegrid.FlagBlocked != 0 {
			t.Errorf("innermost sample at %v falls in the road stamp", p)
		}
		if flags&zonegrid.FlagBuildable == 0 {
			t.Errorf("innermost sample at %v not buildable", p)
		}
	}

	cells := NewDeriver(tn).Derive(s, g)
	left, right := 0, 0
	for _, c := range cells {
		if c.Side == -1 {
			left++
		} else {
			right++
		}
	}
	if left == 0 || right == 0 {
		t.Fatalf("expected lots on both sides of an open road, got left=%d right=%d", left, right)
	}
}

func TestDeriveCachesZoning(t *testing.T) {
	tn := tuning.Default()
	s, g := buildWorld(t, tn, []world.ZoneStrip{{
		ID: 1, RoadID: 1, D0: 0, D1: 100,
		SideMask: world.SideRight, Type: world.ZoneResidential, Depth: tn.ZoneDepth,
	}})

	cells := NewDeriver(tn).Derive(s, g)
	zonedRight := 0
	for _, c := range cells {
		if c.Side == +1 {
			if !c.Zoned || c.Type != world.ZoneResidential {
				t.Errorf("right-side cell at d=%.0f not residential (zoned=%v type=%v)", c.D0, c.Zoned, c.Type)
			}
			zonedRight++
		} else if c.Zoned {
			t.Errorf("left-side cell at d=%.0f zoned by a right-only strip", c.D0)
		}
	}
	if zonedRight == 0 {
		t.Fatal("no zoned right-side lot cells")
	}
}

func TestDeriveSkipsShortAndDegenerateRoads(t *testing.T) {
	tn := tuning.Default()
	s := world.NewState()
	short := &world.Road{ID: 1, Pts: []worldmap.Vec3{{X: 0}, {X: 5}}}
	short.RebuildLengths()
	single := &world.Road{ID: 2, Pts: []worldmap.Vec3{{X: 50, Z: 50}}}
	single.RebuildLengths()
	s.Roads = append(s.Roads, short, single)

	g := zonegrid.NewGrid(tn)
	g.Rebuild(s, noWater{}, tn)
	if cells := NewDeriver(tn).Derive(s, g); len(cells) != 0 {
		t.Fatalf("got %d cells from unusable roads", len(cells))
	}
}

func TestDeriveDedupsOverlappingRoads(t *testing.T) {
	tn := tuning.Default()
	s := world.NewState()
	// Two coincident roads: their candidate centers land in the same
	// dedup cells, so the second road adds nothing.
	for id := world.RoadID(1); id <= 2; id++ {
		r := &world.Road{ID: id, Pts: []worldmap.Vec3{{X: 0}, {X: 100}}}
		r.RebuildLengths()
		s.Roads = append(s.Roads, r)
	}
	g := zonegrid.NewGrid(tn)
	g.Rebuild(s, noWater{}, tn)

	cells := NewDeriver(tn).Derive(s, g)
	for _, c := range cells {
		if c.RoadID != 1 {
			t.Fatalf("duplicate center accepted for road %d", c.RoadID)
		}
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	tn := tuning.Default()
	s, g := buildWorld(t, tn, []world.ZoneStrip{{
		ID: 1, RoadID: 1, D0: 0, D1: 100,
		SideMask: world.SideBoth, Type: world.ZoneCommercial, Depth: tn.ZoneDepth,
	}})

	a := NewDeriver(tn).Derive(s, g)
	b := NewDeriver(tn).Derive(s, g)
	if len(a) != len(b) {
		t.Fatalf("runs differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("cell %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
