package persistence

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
)

func sampleState() *world.State {
	s := world.NewState()
	r := &world.Road{ID: 3, Pts: []worldmap.Vec3{{X: 0}, {X: 60}, {X: 60, Z: 40}}}
	r.RebuildLengths()
	s.Roads = append(s.Roads, r)
	s.NextRoadID = 4
	s.Zones = append(s.Zones, world.ZoneStrip{
		ID: 7, RoadID: 3, D0: 10, D1: 55,
		SideMask: world.SideRight, Type: world.ZoneCommercial, Depth: 30,
	})
	s.NextZoneID = 8
	return s
}

func assertSameWorld(t *testing.T, got, want *world.State) {
	t.Helper()
	if got.NextRoadID != want.NextRoadID || got.NextZoneID != want.NextZoneID {
		t.Fatalf("id counters differ: got (%d,%d), want (%d,%d)",
			got.NextRoadID, got.NextZoneID, want.NextRoadID, want.NextZoneID)
	}
	if len(got.Roads) != len(want.Roads) {
		t.Fatalf("road count %d, want %d", len(got.Roads), len(want.Roads))
	}
	for i := range want.Roads {
		if got.Roads[i].ID != want.Roads[i].ID || !reflect.DeepEqual(got.Roads[i].Pts, want.Roads[i].Pts) {
			t.Fatalf("road %d differs: %+v vs %+v", i, got.Roads[i], want.Roads[i])
		}
		if !got.Roads[i].LengthsValid() {
			t.Fatalf("road %d loaded without rebuilt lengths", i)
		}
	}
	if !reflect.DeepEqual(got.Zones, want.Zones) {
		t.Fatalf("zones differ:\n got %+v\nwant %+v", got.Zones, want.Zones)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	s := sampleState()
	data, err := Marshal(Snapshot(s))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	doc, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got, err := Restore(doc)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	assertSameWorld(t, got, s)
	if !got.RoadsDirty || !got.ZonesDirty || !got.HousesDirty {
		t.Fatal("loaded state must have all dirty flags set")
	}
}

func TestRestoreRejectsWrongVersion(t *testing.T) {
	if _, err := Restore(&Document{Version: 2}); err == nil {
		t.Fatal("version 2 accepted")
	}
	if _, err := Restore(&Document{Version: 0}); err == nil {
		t.Fatal("version 0 accepted")
	}
}

func TestRestoreNormalizesBadZones(t *testing.T) {
	doc := Snapshot(sampleState())
	doc.Zones[0].SideMask = 0
	doc.Zones[0].ZoneType = 99
	doc.Zones[0].Depth = -1

	got, err := Restore(doc)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	z := got.Zones[0]
	if z.SideMask != world.SideBoth {
		t.Errorf("side mask = %d, want both", z.SideMask)
	}
	if z.Type != world.ZoneResidential {
		t.Errorf("type = %v, want residential fallback", z.Type)
	}
	if z.Depth != world.DefaultZoneDepth {
		t.Errorf("depth = %v, want default", z.Depth)
	}
}

func TestRestoreGroundsRoadPoints(t *testing.T) {
	doc := Snapshot(sampleState())
	doc.Roads[0].Pts[1][1] = 42 // stray elevation

	got, err := Restore(doc)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got.Roads[0].Pts[1].Y != 0 {
		t.Errorf("point Y = %v, want 0", got.Roads[0].Pts[1].Y)
	}
}

func TestSaveLoadFile(t *testing.T) {
	s := sampleState()
	path := filepath.Join(t.TempDir(), "saves", "world.json")
	if err := SaveFile(s, path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	assertSameWorld(t, got, s)

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("loading a missing file succeeded")
	}
}

func TestStoreSlots(t *testing.T) {
	ctx := context.Background()
	st, err := OpenStore(filepath.Join(t.TempDir(), "slots.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer st.Close()

	s := sampleState()
	if err := st.SaveSlot(ctx, "alpha", s); err != nil {
		t.Fatalf("SaveSlot: %v", err)
	}
	got, err := st.LoadSlot(ctx, "alpha")
	if err != nil {
		t.Fatalf("LoadSlot: %v", err)
	}
	assertSameWorld(t, got, s)

	// Overwriting the same slot keeps a single row.
	s.Zones = nil
	if err := st.SaveSlot(ctx, "alpha", s); err != nil {
		t.Fatalf("SaveSlot overwrite: %v", err)
	}
	slots, err := st.ListSlots(ctx)
	if err != nil {
		t.Fatalf("ListSlots: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("slot count %d, want 1", len(slots))
	}
	if slots[0].Zones != 0 || slots[0].Roads != 1 {
		t.Errorf("slot metadata %+v not updated", slots[0])
	}

	if _, err := st.LoadSlot(ctx, "missing"); err == nil {
		t.Fatal("loading a missing slot succeeded")
	}
	if err := st.SaveSlot(ctx, "", s); err == nil {
		t.Fatal("empty slot name accepted")
	}
	if err := st.DeleteSlot(ctx, "alpha"); err != nil {
		t.Fatalf("DeleteSlot: %v", err)
	}
	if slots, _ := st.ListSlots(ctx); len(slots) != 0 {
		t.Fatalf("%d slots after delete", len(slots))
	}
}
