package assets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashIDMatchesFNV1a(t *testing.T) {
	// FNV-1a reference vectors.
	tests := []struct {
		in   string
		want AssetID
	}{
		{"", 2166136261},
		{"a", 0xe40c292c},
	}
	for _, tt := range tests {
		if got := HashID(tt.in); got != tt.want {
			t.Errorf("HashID(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestBuiltinFallbackAlwaysPresent(t *testing.T) {
	c := NewCatalog()
	if c.FallbackID() == 0 {
		t.Fatal("fallback id is 0")
	}
	def := c.Find(c.FallbackID())
	if def == nil {
		t.Fatal("fallback definition missing")
	}
	if def.FootprintM != [2]float64{1, 1} {
		t.Errorf("fallback footprint = %v, want 1x1", def.FootprintM)
	}
	// Unknown category resolves to the fallback.
	if got := c.ResolveCategoryAsset("industrial"); got != c.FallbackID() {
		t.Errorf("unknown category resolved to %#x, want fallback", got)
	}
	// low_density defaults to an asset that is not loaded, so it also
	// falls back until a catalog scan registers it.
	if got := c.ResolveCategoryAsset("low_density"); got != c.FallbackID() {
		t.Errorf("unloaded default resolved to %#x, want fallback", got)
	}
}

func writeAsset(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "asset.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAllScansRecursively(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, filepath.Join(root, "buildings", "house_low_01"), `{
		"version": 1,
		"id": "buildings.house_low_01",
		"type": "building",
		"category": "low_density",
		"mesh": "house.glb",
		"footprintM": [8, 10],
		"defaultScale": [1, 1, 1]
	}`)
	writeAsset(t, filepath.Join(root, "broken"), `{not json`)
	writeAsset(t, filepath.Join(root, "incomplete"), `{"id": "x.y", "type": "building"}`)

	c := NewCatalog()
	if err := c.LoadAll(root); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	id := c.FindIDByString("buildings.house_low_01")
	if id == 0 {
		t.Fatal("house_low_01 not registered")
	}
	def := c.Find(id)
	if def.FootprintM != [2]float64{8, 10} {
		t.Errorf("footprint = %v, want [8 10]", def.FootprintM)
	}
	// With the default registered, low_density now resolves to it.
	if got := c.ResolveCategoryAsset("low_density"); got != id {
		t.Errorf("low_density resolved to %#x, want %#x", got, id)
	}
	// Broken and incomplete files must not register anything.
	if c.FindIDByString("x.y") != 0 {
		t.Error("incomplete asset.json registered")
	}
}

func TestLoadAllMissingRoot(t *testing.T) {
	c := NewCatalog()
	if err := c.LoadAll(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
	// Catalog still serves the builtin fallback.
	if c.ResolveCategoryAsset("anything") != c.FallbackID() {
		t.Error("fallback unavailable after failed load")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	c := NewCatalog()
	def := Def{IDStr: "a.b", Type: "building", FootprintM: [2]float64{2, 2}}
	if err := c.Register(def); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := c.Register(def); err == nil {
		t.Fatal("duplicate register succeeded")
	}
	if err := c.Register(Def{}); err == nil {
		t.Fatal("empty id register succeeded")
	}
}
