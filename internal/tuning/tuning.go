// Package tuning holds the world-generation constants. Values ship with
// compiled-in defaults and can be overridden from a YAML file so terrain
// experiments do not require a rebuild.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the full set of generation knobs consumed by the pipeline.
type Tuning struct {
	// Roads
	RoadWidth        float64 `yaml:"road_width"`
	MinRoadLength    float64 `yaml:"min_road_length"`
	GridSnap         float64 `yaml:"grid_snap"`
	AngleSnapDegrees float64 `yaml:"angle_snap_degrees"`
	EndpointSnap     float64 `yaml:"endpoint_snap_radius"`
	PointPickRadius  float64 `yaml:"point_pick_radius"`
	ZonePickRadius   float64 `yaml:"zone_pick_radius"`

	// Zone grid
	ZoneDepth      float64 `yaml:"zone_depth"`
	ZoneDepthCells int     `yaml:"zone_depth_cells"`
	GridChunkCells int     `yaml:"grid_chunk_cells"`

	// Lots
	LotWindowCells int     `yaml:"lot_window_cells"`
	LotMinCoverage float64 `yaml:"lot_min_coverage"`
	LotDedupCell   float64 `yaml:"lot_dedup_cell"`

	// Placement
	EdgeClearance    float64 `yaml:"edge_clearance"`
	OccupancyCell    float64 `yaml:"occupancy_cell"`
	CollisionBucket  float64 `yaml:"collision_bucket"`
	CollisionMargin  float64 `yaml:"collision_margin"`
	SpawnAnimSeconds float64 `yaml:"spawn_anim_seconds"`

	// Streaming
	ViewRadiusChunks int `yaml:"view_radius_chunks"`
}

// Default returns the tuning the tool ships with.
func Default() Tuning {
	return Tuning{
		RoadWidth:        10.0,
		MinRoadLength:    1.0,
		GridSnap:         2.0,
		AngleSnapDegrees: 15.0,
		EndpointSnap:     10.0,
		PointPickRadius:  6.0,
		ZonePickRadius:   12.0,

		ZoneDepth:      30.0,
		ZoneDepthCells: 40,
		GridChunkCells: 128,

		LotWindowCells: 20,
		LotMinCoverage: 0.7,
		LotDedupCell:   6.0,

		EdgeClearance:    10.0,
		OccupancyCell:    6.0,
		CollisionBucket:  16.0,
		CollisionMargin:  0.5,
		SpawnAnimSeconds: 0.35,

		ViewRadiusChunks: 8,
	}
}

// Load reads overrides from a YAML file on top of the defaults. A missing
// path returns the defaults unchanged.
func Load(path string) (Tuning, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

// CellSize is the zone-grid cell edge in meters, derived from the target
// strip depth and the depth-in-cells constant.
func (t Tuning) CellSize() float64 {
	if t.ZoneDepthCells <= 0 {
		return 1.0
	}
	return t.ZoneDepth / float64(t.ZoneDepthCells)
}

// RoadHalfWidth is half the road surface width.
func (t Tuning) RoadHalfWidth() float64 { return t.RoadWidth / 2 }

// LotWindow is the along-road lot window length in meters.
func (t Tuning) LotWindow() float64 { return float64(t.LotWindowCells) * t.CellSize() }

// Validate rejects values the pipeline cannot work with.
func (t Tuning) Validate() error {
	if t.RoadWidth <= 0 {
		return fmt.Errorf("road_width must be positive")
	}
	if t.ZoneDepth <= 0 || t.ZoneDepthCells <= 0 {
		return fmt.Errorf("zone depth settings must be positive")
	}
	if t.GridChunkCells <= 0 {
		return fmt.Errorf("grid_chunk_cells must be positive")
	}
	if t.LotWindowCells <= 0 {
		return fmt.Errorf("lot_window_cells must be positive")
	}
	if t.LotMinCoverage <= 0 || t.LotMinCoverage > 1 {
		return fmt.Errorf("lot_min_coverage must be in (0,1]")
	}
	if t.ViewRadiusChunks < 0 {
		return fmt.Errorf("view_radius_chunks must not be negative")
	}
	return nil
}
