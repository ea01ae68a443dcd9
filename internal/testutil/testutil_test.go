package testutil

import (
	"testing"

	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
)

func TestStraightRoadState(t *testing.T) {
	s := StraightRoadState(100)

	if len(s.Roads) != 1 {
		t.Fatalf("Expected 1 road, got %d", len(s.Roads))
	}
	r := s.Roads[0]
	if r.ID != 1 {
		t.Errorf("Expected road id 1, got %d", r.ID)
	}
	if got := r.TotalLength(); got != 100 {
		t.Errorf("Expected length 100, got %f", got)
	}
	if s.NextRoadID != 2 {
		t.Errorf("Expected NextRoadID 2, got %d", s.NextRoadID)
	}
	if !s.RoadsDirty {
		t.Error("New road must mark roads dirty")
	}
}

func TestZonedRoadState(t *testing.T) {
	s := ZonedRoadState(100, 10, 60, world.SideBoth, world.ZoneResidential)

	if len(s.Zones) != 1 {
		t.Fatalf("Expected 1 zone, got %d", len(s.Zones))
	}
	z := s.Zones[0]
	if z.RoadID != 1 || z.D0 != 10 || z.D1 != 60 {
		t.Errorf("Unexpected zone interval: %+v", z)
	}
	if z.Depth != world.DefaultZoneDepth {
		t.Errorf("Expected default depth, got %f", z.Depth)
	}
}

func TestLShapedRoadState(t *testing.T) {
	s := LShapedRoadState(50)

	r := s.Roads[0]
	if len(r.Pts) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(r.Pts))
	}
	if got := r.TotalLength(); got != 100 {
		t.Errorf("Expected total length 100, got %f", got)
	}
}

func TestFixturePointsGrounded(t *testing.T) {
	s := world.NewState()
	AddRoad(s,
		worldmap.Vec3{X: 0, Y: 7, Z: 0},
		worldmap.Vec3{X: 50, Y: -3, Z: 0},
	)

	for i, p := range s.Roads[0].Pts {
		if p.Y != 0 {
			t.Errorf("Point %d not grounded: Y=%f", i, p.Y)
		}
	}
}
