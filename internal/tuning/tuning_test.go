package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default tuning invalid: %v", err)
	}
}

func TestCellSizeDerivation(t *testing.T) {
	d := Default()
	want := d.ZoneDepth / float64(d.ZoneDepthCells)
	if got := d.CellSize(); got != want {
		t.Errorf("CellSize = %f, want %f", got, want)
	}
	if d.CellSize() >= 1.0 {
		t.Errorf("default cell size %f should be sub-meter", d.CellSize())
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if got != Default() {
		t.Errorf("missing file should yield defaults")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	data := "road_width: 12\nview_radius_chunks: 4\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.RoadWidth != 12 {
		t.Errorf("road_width = %f, want 12", got.RoadWidth)
	}
	if got.ViewRadiusChunks != 4 {
		t.Errorf("view_radius_chunks = %d, want 4", got.ViewRadiusChunks)
	}
	// Untouched values keep their defaults.
	if got.ZoneDepth != Default().ZoneDepth {
		t.Errorf("zone_depth = %f, want default", got.ZoneDepth)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("lot_min_coverage: 2.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for coverage > 1")
	}
}
