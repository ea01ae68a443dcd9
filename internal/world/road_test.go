package world

import (
	"math"
	"testing"

	"github.com/cityforge/server/internal/worldmap"
)

func newTestRoad(id RoadID, pts ...worldmap.Vec3) *Road {
	r := &Road{ID: id, Pts: pts}
	r.RebuildLengths()
	return r
}

func TestRebuildLengths(t *testing.T) {
	r := newTestRoad(1,
		worldmap.Vec3{X: 0, Z: 0},
		worldmap.Vec3{X: 30, Z: 0},
		worldmap.Vec3{X: 30, Z: 40},
	)
	want := []float64{0, 30, 70}
	if len(r.CumLen) != len(want) {
		t.Fatalf("cumulative length count = %d, want %d", len(r.CumLen), len(want))
	}
	for i, w := range want {
		if math.Abs(r.CumLen[i]-w) > 1e-9 {
			t.Errorf("CumLen[%d] = %f, want %f", i, r.CumLen[i], w)
		}
	}
	if math.Abs(r.TotalLength()-70) > 1e-9 {
		t.Errorf("TotalLength = %f, want 70", r.TotalLength())
	}
}

func TestPointAtEndpoints(t *testing.T) {
	r := newTestRoad(1,
		worldmap.Vec3{X: 5, Z: -2},
		worldmap.Vec3{X: 45, Z: -2},
		worldmap.Vec3{X: 45, Z: 28},
	)

	p0, _ := r.PointAt(0)
	if worldmap.DistXZ(p0, r.Pts[0]) > 1e-9 {
		t.Errorf("PointAt(0) = %+v, want first point %+v", p0, r.Pts[0])
	}

	pEnd, _ := r.PointAt(r.TotalLength())
	if worldmap.DistXZ(pEnd, r.Pts[len(r.Pts)-1]) > 1e-9 {
		t.Errorf("PointAt(total) = %+v, want last point %+v", pEnd, r.Pts[len(r.Pts)-1])
	}
}

func TestPointAtClampsOutOfRange(t *testing.T) {
	r := newTestRoad(1, worldmap.Vec3{}, worldmap.Vec3{X: 10})

	p, _ := r.PointAt(-50)
	if worldmap.DistXZ(p, r.Pts[0]) > 1e-9 {
		t.Errorf("PointAt(-50) = %+v, want clamp to start", p)
	}
	p, _ = r.PointAt(9999)
	if worldmap.DistXZ(p, r.Pts[1]) > 1e-9 {
		t.Errorf("PointAt(9999) = %+v, want clamp to end", p)
	}
}

func TestPointAtTangent(t *testing.T) {
	r := newTestRoad(1,
		worldmap.Vec3{X: 0, Z: 0},
		worldmap.Vec3{X: 10, Z: 0},
		worldmap.Vec3{X: 10, Z: 10},
	)
	_, tan := r.PointAt(5)
	if math.Abs(tan.X-1) > 1e-9 || math.Abs(tan.Z) > 1e-9 {
		t.Errorf("tangent on first segment = %+v, want +X", tan)
	}
	_, tan = r.PointAt(15)
	if math.Abs(tan.Z-1) > 1e-9 || math.Abs(tan.X) > 1e-9 {
		t.Errorf("tangent on second segment = %+v, want +Z", tan)
	}
}

func TestPointAtDegenerate(t *testing.T) {
	r := &Road{ID: 1, Pts: []worldmap.Vec3{{X: 7, Z: 3}}}
	r.RebuildLengths()
	p, tan := r.PointAt(10)
	if worldmap.DistXZ(p, r.Pts[0]) > 1e-9 {
		t.Errorf("degenerate PointAt = %+v, want the single point", p)
	}
	if tan.LenXZ() < 0.99 {
		t.Errorf("degenerate tangent not unit length: %+v", tan)
	}
}

func TestClosestAlongRoundTrip(t *testing.T) {
	// For all d, ClosestAlong(PointAt(d)) must return a distance within one
	// sample step of d.
	r := newTestRoad(1,
		worldmap.Vec3{X: 0, Z: 0},
		worldmap.Vec3{X: 40, Z: 0},
		worldmap.Vec3{X: 40, Z: 30},
		worldmap.Vec3{X: 80, Z: 30},
	)
	const step = 0.5
	for d := 0.0; d <= r.TotalLength(); d += step {
		p, _ := r.PointAt(d)
		along, _, distSq := r.ClosestAlong(p)
		if math.Abs(along-d) > step {
			t.Fatalf("round trip at d=%f gave along=%f", d, along)
		}
		if distSq > 1e-9 {
			t.Fatalf("point on road reported distSq=%g at d=%f", distSq, d)
		}
	}
}

func TestClosestAlongOffsetPoint(t *testing.T) {
	r := newTestRoad(1, worldmap.Vec3{}, worldmap.Vec3{X: 100})
	along, tan, distSq := r.ClosestAlong(worldmap.Vec3{X: 25, Z: 8})
	if math.Abs(along-25) > 1e-9 {
		t.Errorf("along = %f, want 25", along)
	}
	if math.Abs(distSq-64) > 1e-9 {
		t.Errorf("distSq = %f, want 64", distSq)
	}
	if math.Abs(tan.X-1) > 1e-9 {
		t.Errorf("tangent = %+v, want +X", tan)
	}
}

func TestClosestAlongDegenerateRoad(t *testing.T) {
	r := &Road{ID: 1, Pts: []worldmap.Vec3{{X: 1}}}
	r.RebuildLengths()
	_, _, distSq := r.ClosestAlong(worldmap.Vec3{})
	if distSq < 1e20 {
		t.Errorf("degenerate road should report huge distance, got %g", distSq)
	}
}
