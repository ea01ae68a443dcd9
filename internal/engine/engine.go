// Package engine runs the frame pipeline: commands mutate the world,
// dirty flags trigger the zone grid, lot, placement and mesh rebuild
// passes, and each frame ends in a snapshot the renderer consumes.
package engine

import (
	"fmt"
	"log"

	"github.com/cityforge/server/internal/assets"
	"github.com/cityforge/server/internal/command"
	"github.com/cityforge/server/internal/lots"
	"github.com/cityforge/server/internal/meshgen"
	"github.com/cityforge/server/internal/performance"
	"github.com/cityforge/server/internal/placement"
	"github.com/cityforge/server/internal/streaming"
	"github.com/cityforge/server/internal/tuning"
	"github.com/cityforge/server/internal/watermask"
	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
	"github.com/cityforge/server/internal/zonegrid"
)

// Engine owns the world, its derived structures, and the rebuild order.
// It is single-threaded: callers serialize access (the websocket hub
// drives it from one goroutine).
type Engine struct {
	tn tuning.Tuning

	State *world.State
	Log   *command.Log

	catalog  *assets.Catalog
	water    zonegrid.WaterMask
	grid     *zonegrid.Grid
	deriver  *lots.Deriver
	placer   *placement.Placer
	index    *streaming.Index
	profiler *performance.Profiler

	// Animate controls whether new placements spawn with the scale-in
	// animation or appear immediately.
	Animate bool

	lotCells []lots.LotCell
	static   []placement.Instance
	pending  []placement.SpawnAnimation

	roadMesh    []worldmap.Vec3
	overlayMesh []worldmap.Vec3
}

// PendingSpawn is one animating instance with its interpolated scale.
type PendingSpawn struct {
	Instance placement.Instance
	Scale    float64
}

// FrameSnapshot is the per-frame view handed to the renderer. Slices are
// frame-scoped: the next Step invalidates them.
type FrameSnapshot struct {
	Batches   []streaming.Batch
	RoadMesh  []worldmap.Vec3
	Overlay   []worldmap.Vec3
	Pending   []PendingSpawn
	Instances int
	LotCells  int
}

// New assembles an engine. A nil water mask means land everywhere.
func New(tn tuning.Tuning, catalog *assets.Catalog, water zonegrid.WaterMask, profiler *performance.Profiler) *Engine {
	if water == nil {
		water = watermask.Empty()
	}
	if profiler == nil {
		profiler = performance.NewProfiler(false)
	}
	return &Engine{
		tn:       tn,
		State:    world.NewState(),
		Log:      command.NewLog(),
		catalog:  catalog,
		water:    water,
		grid:     zonegrid.NewGrid(tn),
		deriver:  lots.NewDeriver(tn),
		placer:   placement.NewPlacer(tn, catalog),
		index:    streaming.NewIndex(),
		profiler: profiler,
		Animate:  true,
	}
}

// Grid exposes the zone grid for read-only queries from the API layer.
func (e *Engine) Grid() *zonegrid.Grid { return e.grid }

// Index exposes the chunk index for subscription-window queries.
func (e *Engine) Index() *streaming.Index { return e.index }

// Exec applies a command through the log.
func (e *Engine) Exec(c *command.Command) {
	e.Log.Exec(e.State, c)
}

// Undo reverts the most recent command. Returns false with an empty log.
func (e *Engine) Undo() bool { return e.Log.Undo(e.State) }

// Redo reapplies the most recently undone command.
func (e *Engine) Redo() bool { return e.Log.Redo(e.State) }

// TryAddRoad validates and commits a drawn polyline as a new road.
// Points are grounded and must span at least the minimum road length.
func (e *Engine) TryAddRoad(pts []worldmap.Vec3) (world.RoadID, error) {
	if len(pts) < world.MinRoadPoints {
		return 0, fmt.Errorf("a road needs at least %d points", world.MinRoadPoints)
	}
	r := world.Road{ID: e.State.NextRoadID, Pts: pts}
	r.RebuildLengths()
	if r.TotalLength() < e.tn.MinRoadLength {
		return 0, fmt.Errorf("road length %.2fm below minimum %.2fm", r.TotalLength(), e.tn.MinRoadLength)
	}
	e.State.NextRoadID++
	e.Exec(command.AddRoad(r))
	return r.ID, nil
}

// TryAddZone normalizes the interval and commits a zone strip, declining
// overlaps with existing strips on the same road and side. This check
// runs before the command is constructed, so a declined zone never
// enters the undo history.
func (e *Engine) TryAddZone(roadID world.RoadID, d0, d1 float64, sideMask int, zt world.ZoneType) (world.ZoneID, error) {
	r := e.State.FindRoad(roadID)
	if r == nil {
		return 0, fmt.Errorf("road %d not found", roadID)
	}
	if !world.ValidZoneType(zt) {
		return 0, fmt.Errorf("invalid zone type %d", zt)
	}
	sideMask &= world.SideBoth
	if sideMask == 0 {
		return 0, fmt.Errorf("zone needs at least one side")
	}
	lo, hi := world.NormalizeInterval(d0, d1, e.tn.CellSize())
	if hi-lo < e.tn.CellSize() {
		return 0, fmt.Errorf("zone interval too short")
	}
	if e.State.ZoneOverlapsExisting(roadID, sideMask, lo, hi) {
		return 0, fmt.Errorf("zone overlaps an existing strip on road %d", roadID)
	}
	z := world.ZoneStrip{
		ID:       e.State.NextZoneID,
		RoadID:   roadID,
		D0:       lo,
		D1:       hi,
		SideMask: sideMask,
		Type:     zt,
		Depth:    e.tn.ZoneDepth,
	}
	e.State.NextZoneID++
	e.Exec(command.AddZone(z))
	return z.ID, nil
}

// ReplaceState swaps in a freshly loaded world: all dirty flags are
// forced and the undo history is discarded.
func (e *Engine) ReplaceState(s *world.State) {
	e.State = s
	e.State.MarkAllDirty()
	e.Log.Clear()
	e.pending = nil
	log.Printf("[Engine] World replaced: %d roads, %d zones", len(s.Roads), len(s.Zones))
}

// Step runs the rebuild passes that the dirty flags call for, advances
// spawn animations, and re-buckets the chunk index. now is the frame
// time in seconds.
func (e *Engine) Step(now float64) {
	s := e.State
	s.EnsureLengths()

	geometryDirty := s.RoadsDirty || s.ZonesDirty
	if geometryDirty {
		op := e.profiler.Start(performance.PassZoneGrid)
		e.grid.Rebuild(s, e.water, e.tn)
		op.End()

		op = e.profiler.Start(performance.PassMesh)
		e.roadMesh = meshgen.RoadMesh(s.Roads, e.tn)
		e.overlayMesh = meshgen.ZoneOverlayMesh(s, e.tn)
		op.End()

		s.RoadsDirty = false
		s.ZonesDirty = false
	}

	if s.HousesDirty {
		op := e.profiler.Start(performance.PassLots)
		e.lotCells = e.deriver.Derive(s, e.grid)
		op.End()

		op = e.profiler.Start(performance.PassPlacement)
		res := e.placer.Place(e.lotCells, s, e.grid, e.Animate, now)
		op.End()

		e.static = res.Static
		e.pending = res.Pending
		s.HousesDirty = false
	}

	still, promoted, _ := placement.Step(e.pending, now, e.tn.SpawnAnimSeconds)
	e.pending = still
	e.static = append(e.static, promoted...)

	e.index.Reset()
	e.index.AddInstances(e.static)
	e.index.AddOverlay(e.overlayMesh)
}

// Snapshot exposes the visible subset for a camera pose. Call after
// Step; the returned slices are valid until the next Step.
func (e *Engine) Snapshot(now float64, camera worldmap.Vec3, radiusChunks int) *FrameSnapshot {
	op := e.profiler.Start(performance.PassSnapshot)
	defer op.End()

	cameraChunk := worldmap.ChunkAt(camera, worldmap.StreamChunkSize)
	snap := &FrameSnapshot{
		Batches:   e.index.VisibleBatches(cameraChunk, radiusChunks),
		RoadMesh:  e.roadMesh,
		Overlay:   e.index.VisibleOverlays(cameraChunk, radiusChunks),
		Instances: len(e.static) + len(e.pending),
		LotCells:  len(e.lotCells),
	}
	for _, a := range e.pending {
		snap.Pending = append(snap.Pending, PendingSpawn{
			Instance: a.Instance,
			Scale:    a.AnimScale(now, e.tn.SpawnAnimSeconds),
		})
	}
	return snap
}
