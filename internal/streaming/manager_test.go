package streaming

import (
	"testing"

	"github.com/cityforge/server/internal/assets"
	"github.com/cityforge/server/internal/placement"
	"github.com/cityforge/server/internal/worldmap"
)

func TestPlanSubscriptionValidation(t *testing.T) {
	manager := NewManager()
	req := SubscriptionRequest{
		Pose:         CameraPose{X: 100, Z: 100},
		RadiusChunks: 2,
	}

	plan, err := manager.PlanSubscription("client-a", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.SubscriptionID == "" {
		t.Fatalf("expected subscription id to be set")
	}
	if len(plan.Chunks) != 25 {
		t.Fatalf("expected 25 chunks for radius 2, got %d", len(plan.Chunks))
	}

	if _, err = manager.PlanSubscription("client-a", SubscriptionRequest{}); err == nil {
		t.Fatalf("expected validation error for empty request")
	}
	if _, err = manager.PlanSubscription("client-a", SubscriptionRequest{RadiusChunks: maxViewRadiusChunks + 1}); err == nil {
		t.Fatalf("expected validation error for oversized radius")
	}
}

func TestUpdatePoseDeltas(t *testing.T) {
	manager := NewManager()
	plan, err := manager.PlanSubscription("client-a", SubscriptionRequest{
		Pose:         CameraPose{X: 0, Z: 0},
		RadiusChunks: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same pose: no delta.
	delta, err := manager.UpdatePose("client-a", plan.SubscriptionID, CameraPose{X: 0, Z: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delta.Added) != 0 || len(delta.Removed) != 0 {
		t.Fatalf("stationary camera produced deltas: +%d -%d", len(delta.Added), len(delta.Removed))
	}

	// One chunk east: one column enters, one leaves.
	delta, err = manager.UpdatePose("client-a", plan.SubscriptionID, CameraPose{X: worldmap.StreamChunkSize, Z: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delta.Added) != 3 || len(delta.Removed) != 3 {
		t.Fatalf("expected 3 added / 3 removed, got +%d -%d", len(delta.Added), len(delta.Removed))
	}
	if len(delta.Current) != 9 {
		t.Fatalf("window size changed to %d", len(delta.Current))
	}
}

func TestUpdatePoseOwnership(t *testing.T) {
	manager := NewManager()
	plan, _ := manager.PlanSubscription("client-a", SubscriptionRequest{
		Pose:         CameraPose{},
		RadiusChunks: 1,
	})
	if _, err := manager.UpdatePose("client-b", plan.SubscriptionID, CameraPose{}); err == nil {
		t.Fatalf("expected ownership error")
	}
	if _, err := manager.UpdatePose("client-a", "missing", CameraPose{}); err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestDropClient(t *testing.T) {
	manager := NewManager()
	plan, _ := manager.PlanSubscription("client-a", SubscriptionRequest{
		Pose:         CameraPose{},
		RadiusChunks: 1,
	})
	manager.DropClient("client-a")
	if _, err := manager.GetSubscription(plan.SubscriptionID); err == nil {
		t.Fatalf("expected subscription to be gone after DropClient")
	}
}

func inst(x, z float64, asset assets.AssetID) placement.Instance {
	return placement.Instance{
		Asset:    asset,
		Position: worldmap.Vec3{X: x, Z: z},
		Scale:    [3]float64{1, 1, 1},
	}
}

func TestVisibleBatchesWindow(t *testing.T) {
	ix := NewIndex()
	ix.AddInstance(inst(10, 10, 7))     // chunk (0,0)
	ix.AddInstance(inst(20, 20, 7))     // chunk (0,0), same asset
	ix.AddInstance(inst(10, 10, 9))     // chunk (0,0), second asset
	ix.AddInstance(inst(1000, 1000, 7)) // far away chunk
	ix.AddInstance(inst(-10, -10, 7))   // chunk (-1,-1)

	if got := ix.InstanceCount(); got != 5 {
		t.Fatalf("instance count = %d, want 5", got)
	}

	batches := ix.VisibleBatches(worldmap.ChunkCoord{}, 1)
	// Chunks (-1,-1) and (0,0) are populated; (0,0) carries two assets.
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	total := 0
	for _, b := range batches {
		if b.Chunk.X > 1 || b.Chunk.Z > 1 {
			t.Fatalf("batch for out-of-window chunk %+v", b.Chunk)
		}
		total += len(b.Instances)
	}
	if total != 4 {
		t.Fatalf("visible instance total = %d, want 4", total)
	}

	// The far chunk persists and streams once the camera reaches it.
	far := ix.VisibleBatches(worldmap.ChunkCoord{X: 15, Z: 15}, 1)
	if len(far) != 1 || len(far[0].Instances) != 1 {
		t.Fatalf("far chunk not streamed when in window: %+v", far)
	}
}

func TestVisibleBatchesDeterministicOrder(t *testing.T) {
	ix := NewIndex()
	for i := 0; i < 8; i++ {
		ix.AddInstance(inst(10, 10, assets.AssetID(8-i)))
	}
	a := ix.VisibleBatches(worldmap.ChunkCoord{}, 0)
	b := ix.VisibleBatches(worldmap.ChunkCoord{}, 0)
	if len(a) != len(b) {
		t.Fatalf("runs differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Asset != b[i].Asset {
			t.Fatalf("batch order differs at %d: %d vs %d", i, a[i].Asset, b[i].Asset)
		}
		if i > 0 && a[i].Asset < a[i-1].Asset {
			t.Fatalf("assets not ascending at %d", i)
		}
	}
}

func TestOverlayBucketing(t *testing.T) {
	ix := NewIndex()
	tri := []worldmap.Vec3{{X: 10, Z: 10}, {X: 12, Z: 10}, {X: 12, Z: 12}}
	farTri := []worldmap.Vec3{{X: 1000, Z: 1000}, {X: 1002, Z: 1000}, {X: 1002, Z: 1002}}
	ix.AddOverlay(append(append([]worldmap.Vec3{}, tri...), farTri...))

	near := ix.VisibleOverlays(worldmap.ChunkCoord{}, 1)
	if len(near) != 3 {
		t.Fatalf("near overlay has %d vertices, want 3", len(near))
	}
	ix.Reset()
	if got := ix.VisibleOverlays(worldmap.ChunkCoord{}, 1); len(got) != 0 {
		t.Fatalf("overlay survived Reset: %d vertices", len(got))
	}
}
