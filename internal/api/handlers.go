package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/cityforge/server/internal/command"
	"github.com/cityforge/server/internal/compression"
	"github.com/cityforge/server/internal/config"
	"github.com/cityforge/server/internal/engine"
	"github.com/cityforge/server/internal/performance"
	"github.com/cityforge/server/internal/persistence"
	"github.com/cityforge/server/internal/streaming"
	"github.com/cityforge/server/internal/world"
	"github.com/cityforge/server/internal/worldmap"
)

// frameTask is queued work executed on the frame-loop goroutine. Every
// engine mutation goes through one of these so the pipeline stays
// single-threaded.
type frameTask func(now float64)

// WebSocketHandlers owns the engine loop and routes renderer messages
// into it.
type WebSocketHandlers struct {
	hub      *WebSocketHub
	engine   *engine.Engine
	streams  *streaming.Manager
	store    *persistence.Store
	config   *config.Config
	profiler *performance.Profiler
	validate *validator.Validate
	upgrader websocket.Upgrader

	commands chan frameTask
	start    time.Time

	// rev counts world mutations; connections compare it against their
	// lastRev to decide whether a frame needs fresh meshes.
	rev uint64

	// roadMeshWire caches the compressed road mesh for the current rev
	// so it is encoded once per change, not once per client.
	roadMeshWire *compression.CompressedMesh
	meshRev      uint64
}

// NewWebSocketHandlers wires the websocket surface around an engine.
// store may be nil when no slot database is configured.
func NewWebSocketHandlers(cfg *config.Config, eng *engine.Engine, store *persistence.Store, profiler *performance.Profiler) *WebSocketHandlers {
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}

	return &WebSocketHandlers{
		hub:      NewWebSocketHub(),
		engine:   eng,
		streams:  streaming.NewManager(),
		store:    store,
		config:   cfg,
		profiler: profiler,
		validate: validator.New(),
		commands: make(chan frameTask, sendBufferSize),
		start:    time.Now(),
		rev:      1,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
	}
}

// Hub exposes the connection hub.
func (h *WebSocketHandlers) Hub() *WebSocketHub { return h.hub }

// now returns the frame clock in seconds since startup.
func (h *WebSocketHandlers) now() float64 {
	return time.Since(h.start).Seconds()
}

// Run drives the frame loop: queued tasks, pipeline steps, and frame
// publication. It blocks until ctx is cancelled.
func (h *WebSocketHandlers) Run(ctx context.Context) {
	go h.hub.Run()

	ticker := time.NewTicker(h.config.Server.FrameInterval())
	defer ticker.Stop()

	log.Printf("[API] Frame loop running at %d fps", h.config.Server.FrameRate)

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-h.commands:
			task(h.now())
		case <-ticker.C:
			now := h.now()
			h.drainTasks(now)
			h.engine.Step(now)
			h.publishFrames(now)
		}
	}
}

// RunFrame executes one tick synchronously. Used by tests and by the
// save handlers, which need a settled world.
func (h *WebSocketHandlers) RunFrame() {
	now := h.now()
	h.drainTasks(now)
	h.engine.Step(now)
	h.publishFrames(now)
}

func (h *WebSocketHandlers) drainTasks(now float64) {
	for {
		select {
		case task := <-h.commands:
			task(now)
		default:
			return
		}
	}
}

// enqueue hands a task to the frame loop. A full queue rejects the task
// rather than blocking the reader goroutine.
func (h *WebSocketHandlers) enqueue(conn *WebSocketConnection, msgID string, task frameTask) {
	select {
	case h.commands <- task:
	default:
		if conn != nil {
			conn.sendError(msgID, "Server busy", "ServerBusy")
		}
		log.Printf("[API] Command queue full; task dropped")
	}
}

// do runs a task on the frame loop and waits for it. Used by the HTTP
// handlers, which live on their own goroutines.
func (h *WebSocketHandlers) do(ctx context.Context, task frameTask) error {
	done := make(chan struct{})
	wrapped := func(now float64) {
		task(now)
		close(done)
	}
	select {
	case h.commands <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// clientGone drops the streaming state of a disconnected client.
func (h *WebSocketHandlers) clientGone(conn *WebSocketConnection) {
	h.streams.DropClient(conn.clientID)
}

// handleMessage routes a parsed message. It runs on the reader
// goroutine; anything touching the engine is enqueued.
func (h *WebSocketHandlers) handleMessage(conn *WebSocketConnection, msg *WebSocketMessage) {
	switch msg.Type {
	case "ping":
		conn.sendJSON(WebSocketMessage{Type: "pong", ID: msg.ID})
	case "road_add":
		h.handleRoadAdd(conn, msg)
	case "road_extend":
		h.handleRoadExtend(conn, msg)
	case "road_move_point":
		h.handleRoadMovePoint(conn, msg)
	case "road_delete_point":
		h.handleRoadDeletePoint(conn, msg)
	case "zone_add":
		h.handleZoneAdd(conn, msg)
	case "zone_clear":
		h.handleZoneClear(conn, msg)
	case "undo":
		h.handleUndo(conn, msg)
	case "redo":
		h.handleRedo(conn, msg)
	case "cursor_query":
		h.handleCursorQuery(conn, msg)
	case "stream_subscribe":
		h.handleStreamSubscribe(conn, msg)
	case "stream_update_pose":
		h.handleStreamUpdatePose(conn, msg)
	case "stream_unsubscribe":
		h.handleStreamUnsubscribe(conn, msg)
	default:
		conn.sendError(msg.ID, "Unknown message type", "UnknownMessageType")
	}
}

// decodePayload unmarshals and validates msg.Data into out, reporting
// failures to the client. Returns false when the payload is unusable.
func (h *WebSocketHandlers) decodePayload(conn *WebSocketConnection, msg *WebSocketMessage, out interface{}) bool {
	if len(msg.Data) == 0 {
		conn.sendError(msg.ID, "Missing payload", "MissingPayload")
		return false
	}
	if err := json.Unmarshal(msg.Data, out); err != nil {
		conn.sendError(msg.ID, "Invalid payload", "InvalidPayload")
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		conn.sendError(msg.ID, err.Error(), "ValidationFailed")
		return false
	}
	return true
}

type wirePoint struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

type roadAddPayload struct {
	Points []wirePoint `json:"points" validate:"required,min=2,max=4096"`
}

type roadExtendPayload struct {
	RoadID  int32       `json:"road_id" validate:"required"`
	Points  []wirePoint `json:"points" validate:"required,min=1,max=4096"`
	AtStart bool        `json:"at_start"`
}

type roadPointPayload struct {
	RoadID int32   `json:"road_id" validate:"required"`
	Index  int     `json:"index" validate:"gte=0"`
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
}

type zoneAddPayload struct {
	RoadID   int32   `json:"road_id" validate:"required"`
	D0       float64 `json:"d0" validate:"gte=0"`
	D1       float64 `json:"d1" validate:"gte=0"`
	SideMask int     `json:"side_mask" validate:"min=1,max=3"`
	ZoneType string  `json:"zone_type" validate:"required,oneof=residential commercial industrial office"`
}

type zoneClearPayload struct {
	RoadID int32 `json:"road_id" validate:"required"`
}

type streamSubscribePayload struct {
	Pose         streaming.CameraPose `json:"pose"`
	RadiusChunks int                  `json:"radius_chunks" validate:"gte=0,lte=64"`
}

type streamPosePayload struct {
	SubscriptionID string               `json:"subscription_id" validate:"required,uuid4"`
	Pose           streaming.CameraPose `json:"pose"`
}

type streamDropPayload struct {
	SubscriptionID string `json:"subscription_id" validate:"required,uuid4"`
}

func wireToVec(points []wirePoint) []worldmap.Vec3 {
	pts := make([]worldmap.Vec3, len(points))
	for i, p := range points {
		pts[i] = worldmap.Vec3{X: p.X, Z: p.Z}
	}
	return pts
}

func parseZoneType(name string) (world.ZoneType, bool) {
	switch name {
	case "residential":
		return world.ZoneResidential, true
	case "commercial":
		return world.ZoneCommercial, true
	case "industrial":
		return world.ZoneIndustrial, true
	case "office":
		return world.ZoneOffice, true
	}
	return 0, false
}

func (h *WebSocketHandlers) handleRoadAdd(conn *WebSocketConnection, msg *WebSocketMessage) {
	var p roadAddPayload
	if !h.decodePayload(conn, msg, &p) {
		return
	}
	h.enqueue(conn, msg.ID, func(now float64) {
		id, err := h.engine.TryAddRoad(wireToVec(p.Points))
		if err != nil {
			conn.sendError(msg.ID, err.Error(), "RoadRejected")
			return
		}
		h.rev++
		conn.sendJSON(struct {
			Type   string `json:"type"`
			ID     string `json:"id,omitempty"`
			RoadID int32  `json:"road_id"`
		}{"road_added", msg.ID, int32(id)})
	})
}

func (h *WebSocketHandlers) handleRoadExtend(conn *WebSocketConnection, msg *WebSocketMessage) {
	var p roadExtendPayload
	if !h.decodePayload(conn, msg, &p) {
		return
	}
	h.enqueue(conn, msg.ID, func(now float64) {
		id := world.RoadID(p.RoadID)
		if h.engine.State.FindRoad(id) == nil {
			conn.sendError(msg.ID, "Road not found", "RoadNotFound")
			return
		}
		h.engine.Exec(command.ExtendRoad(id, wireToVec(p.Points), p.AtStart))
		h.rev++
		conn.sendJSON(WebSocketMessage{Type: "road_extended", ID: msg.ID})
	})
}

func (h *WebSocketHandlers) handleRoadMovePoint(conn *WebSocketConnection, msg *WebSocketMessage) {
	var p roadPointPayload
	if !h.decodePayload(conn, msg, &p) {
		return
	}
	h.enqueue(conn, msg.ID, func(now float64) {
		id := world.RoadID(p.RoadID)
		r := h.engine.State.FindRoad(id)
		if r == nil {
			conn.sendError(msg.ID, "Road not found", "RoadNotFound")
			return
		}
		if p.Index >= len(r.Pts) {
			conn.sendError(msg.ID, "Point index out of range", "IndexOutOfRange")
			return
		}
		old := r.Pts[p.Index]
		h.engine.Exec(command.MoveRoadPoint(id, p.Index, old, worldmap.Vec3{X: p.X, Z: p.Z}))
		h.rev++
		conn.sendJSON(WebSocketMessage{Type: "road_point_moved", ID: msg.ID})
	})
}

func (h *WebSocketHandlers) handleRoadDeletePoint(conn *WebSocketConnection, msg *WebSocketMessage) {
	var p roadPointPayload
	if !h.decodePayload(conn, msg, &p) {
		return
	}
	h.enqueue(conn, msg.ID, func(now float64) {
		id := world.RoadID(p.RoadID)
		r := h.engine.State.FindRoad(id)
		if r == nil {
			conn.sendError(msg.ID, "Road not found", "RoadNotFound")
			return
		}
		if p.Index >= len(r.Pts) {
			conn.sendError(msg.ID, "Point index out of range", "IndexOutOfRange")
			return
		}
		if len(r.Pts) <= world.MinRoadPoints {
			conn.sendError(msg.ID, "Road cannot shrink below two points", "RoadTooShort")
			return
		}
		h.engine.Exec(command.DeleteRoadPoint(id, p.Index))
		h.rev++
		conn.sendJSON(WebSocketMessage{Type: "road_point_deleted", ID: msg.ID})
	})
}

func (h *WebSocketHandlers) handleZoneAdd(conn *WebSocketConnection, msg *WebSocketMessage) {
	var p zoneAddPayload
	if !h.decodePayload(conn, msg, &p) {
		return
	}
	zt, ok := parseZoneType(p.ZoneType)
	if !ok {
		conn.sendError(msg.ID, "Unknown zone type", "InvalidZoneType")
		return
	}
	h.enqueue(conn, msg.ID, func(now float64) {
		id, err := h.engine.TryAddZone(world.RoadID(p.RoadID), p.D0, p.D1, p.SideMask, zt)
		if err != nil {
			conn.sendError(msg.ID, err.Error(), "ZoneRejected")
			return
		}
		h.rev++
		conn.sendJSON(struct {
			Type   string `json:"type"`
			ID     string `json:"id,omitempty"`
			ZoneID int32  `json:"zone_id"`
		}{"zone_added", msg.ID, int32(id)})
	})
}

func (h *WebSocketHandlers) handleZoneClear(conn *WebSocketConnection, msg *WebSocketMessage) {
	var p zoneClearPayload
	if !h.decodePayload(conn, msg, &p) {
		return
	}
	h.enqueue(conn, msg.ID, func(now float64) {
		id := world.RoadID(p.RoadID)
		if h.engine.State.FindRoad(id) == nil {
			conn.sendError(msg.ID, "Road not found", "RoadNotFound")
			return
		}
		h.engine.Exec(command.ClearZonesForRoad(id))
		h.rev++
		conn.sendJSON(WebSocketMessage{Type: "zones_cleared", ID: msg.ID})
	})
}

type cursorQueryPayload struct {
	X          float64 `json:"x"`
	Z          float64 `json:"z"`
	PickRadius float64 `json:"pick_radius" validate:"gte=0,lte=100"`
}

// cursorResponse answers a hover/pick query: the closest road under the
// cursor, a grabbable road point if one is in range, and the endpoint
// snap position for road drawing.
type cursorResponse struct {
	Type       string     `json:"type"`
	ID         string     `json:"id,omitempty"`
	RoadID     int32      `json:"road_id,omitempty"`
	Along      float64    `json:"along,omitempty"`
	PointRoad  int32      `json:"point_road,omitempty"`
	PointIndex int        `json:"point_index"`
	Snap       *wirePoint `json:"snap,omitempty"`
}

// handleCursorQuery serves the renderer's hover and pick queries. Read-only,
// but still hops onto the frame loop so it observes a settled world.
func (h *WebSocketHandlers) handleCursorQuery(conn *WebSocketConnection, msg *WebSocketMessage) {
	var p cursorQueryPayload
	if !h.decodePayload(conn, msg, &p) {
		return
	}
	radius := p.PickRadius
	if radius == 0 {
		radius = 5
	}
	h.enqueue(conn, msg.ID, func(now float64) {
		cursor := worldmap.Vec3{X: p.X, Z: p.Z}
		resp := cursorResponse{Type: "cursor_result", ID: msg.ID, PointIndex: -1}

		if road, along, ok := h.engine.State.ClosestRoad(cursor, radius); ok {
			resp.RoadID = int32(road.ID)
			resp.Along = along
		}
		if roadID, index, ok := h.engine.State.PickRoadPoint(cursor, radius); ok {
			resp.PointRoad = int32(roadID)
			resp.PointIndex = index
		}
		if snap, _, _, ok := h.engine.State.SnapToEndpoint(cursor, radius); ok {
			resp.Snap = &wirePoint{X: snap.X, Z: snap.Z}
		}

		conn.sendJSON(resp)
	})
}

type historyResponse struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	CanUndo bool   `json:"can_undo"`
	CanRedo bool   `json:"can_redo"`
}

func (h *WebSocketHandlers) handleUndo(conn *WebSocketConnection, msg *WebSocketMessage) {
	h.enqueue(conn, msg.ID, func(now float64) {
		if !h.engine.Undo() {
			conn.sendError(msg.ID, "Nothing to undo", "NothingToUndo")
			return
		}
		h.rev++
		conn.sendJSON(historyResponse{"undone", msg.ID, h.engine.Log.CanUndo(), h.engine.Log.CanRedo()})
	})
}

func (h *WebSocketHandlers) handleRedo(conn *WebSocketConnection, msg *WebSocketMessage) {
	h.enqueue(conn, msg.ID, func(now float64) {
		if !h.engine.Redo() {
			conn.sendError(msg.ID, "Nothing to redo", "NothingToRedo")
			return
		}
		h.rev++
		conn.sendJSON(historyResponse{"redone", msg.ID, h.engine.Log.CanUndo(), h.engine.Log.CanRedo()})
	})
}

func (h *WebSocketHandlers) handleStreamSubscribe(conn *WebSocketConnection, msg *WebSocketMessage) {
	var p streamSubscribePayload
	if !h.decodePayload(conn, msg, &p) {
		return
	}
	h.enqueue(conn, msg.ID, func(now float64) {
		if conn.subID != "" {
			h.streams.DropSubscription(conn.subID)
		}
		plan, err := h.streams.PlanSubscription(conn.clientID, streaming.SubscriptionRequest{
			Pose:         p.Pose,
			RadiusChunks: p.RadiusChunks,
		})
		if err != nil {
			conn.sendError(msg.ID, err.Error(), "SubscriptionRejected")
			return
		}
		conn.subID = plan.SubscriptionID
		conn.lastRev = 0
		conn.sendJSON(struct {
			Type string                      `json:"type"`
			ID   string                      `json:"id,omitempty"`
			Plan *streaming.SubscriptionPlan `json:"plan"`
		}{"stream_subscribed", msg.ID, plan})
	})
}

func (h *WebSocketHandlers) handleStreamUpdatePose(conn *WebSocketConnection, msg *WebSocketMessage) {
	var p streamPosePayload
	if !h.decodePayload(conn, msg, &p) {
		return
	}
	h.enqueue(conn, msg.ID, func(now float64) {
		delta, err := h.streams.UpdatePose(conn.clientID, p.SubscriptionID, p.Pose)
		if err != nil {
			conn.sendError(msg.ID, err.Error(), "PoseUpdateRejected")
			return
		}
		if len(delta.Added) > 0 || len(delta.Removed) > 0 {
			// The visible window moved; resend meshes with the next frame.
			conn.lastRev = 0
		}
		conn.sendJSON(struct {
			Type  string                `json:"type"`
			ID    string                `json:"id,omitempty"`
			Delta *streaming.ChunkDelta `json:"delta"`
		}{"stream_delta", msg.ID, delta})
	})
}

func (h *WebSocketHandlers) handleStreamUnsubscribe(conn *WebSocketConnection, msg *WebSocketMessage) {
	var p streamDropPayload
	if !h.decodePayload(conn, msg, &p) {
		return
	}
	h.enqueue(conn, msg.ID, func(now float64) {
		sub, err := h.streams.GetSubscription(p.SubscriptionID)
		if err != nil || sub.ClientID != conn.clientID {
			conn.sendError(msg.ID, "Subscription not found", "SubscriptionNotFound")
			return
		}
		h.streams.DropSubscription(p.SubscriptionID)
		if conn.subID == p.SubscriptionID {
			conn.subID = ""
		}
		conn.sendJSON(WebSocketMessage{Type: "stream_unsubscribed", ID: msg.ID})
	})
}

// publishFrames snapshots the world per subscribed connection and queues
// the frame messages. Runs on the frame-loop goroutine.
func (h *WebSocketHandlers) publishFrames(now float64) {
	conns := h.hub.Connections()
	if len(conns) == 0 {
		return
	}

	for _, conn := range conns {
		if conn.subID == "" {
			continue
		}
		sub, err := h.streams.GetSubscription(conn.subID)
		if err != nil {
			conn.subID = ""
			continue
		}

		camera := worldmap.Vec3{X: sub.Pose.X, Z: sub.Pose.Z}
		snap := h.engine.Snapshot(now, camera, sub.Radius)

		frame, err := h.buildFrame(conn, snap, now)
		if err != nil {
			log.Printf("[API] Frame encoding failed for %s: %v", conn.clientID, err)
			continue
		}
		conn.sendJSON(frame)
	}
}

// frameMessage is one rendered frame on the wire. Meshes are present
// only when the world changed since the client's previous frame.
type frameMessage struct {
	Type           string                      `json:"type"`
	SubscriptionID string                      `json:"subscription_id"`
	Time           float64                     `json:"time"`
	Rev            uint64                      `json:"rev"`
	Batches        []batchWire                 `json:"batches"`
	Pending        []pendingWire               `json:"pending,omitempty"`
	RoadMesh       *compression.CompressedMesh `json:"road_mesh,omitempty"`
	OverlayMesh    *compression.CompressedMesh `json:"overlay_mesh,omitempty"`
	Instances      int                         `json:"instances"`
	LotCells       int                         `json:"lot_cells"`
}

type batchWire struct {
	ChunkX    int32          `json:"chunk_x"`
	ChunkZ    int32          `json:"chunk_z"`
	Asset     uint32         `json:"asset"`
	Instances []instanceWire `json:"instances"`
}

type instanceWire struct {
	X     float64    `json:"x"`
	Z     float64    `json:"z"`
	Yaw   float64    `json:"yaw"`
	Scale [3]float64 `json:"scale"`
	Seed  uint32     `json:"seed"`
}

type pendingWire struct {
	Asset uint32     `json:"asset"`
	X     float64    `json:"x"`
	Z     float64    `json:"z"`
	Yaw   float64    `json:"yaw"`
	Scale [3]float64 `json:"scale"`
	Anim  float64    `json:"anim"`
}

func (h *WebSocketHandlers) buildFrame(conn *WebSocketConnection, snap *engine.FrameSnapshot, now float64) (*frameMessage, error) {
	frame := &frameMessage{
		Type:           "frame",
		SubscriptionID: conn.subID,
		Time:           now,
		Rev:            h.rev,
		Batches:        make([]batchWire, 0, len(snap.Batches)),
		Instances:      snap.Instances,
		LotCells:       snap.LotCells,
	}

	for _, b := range snap.Batches {
		bw := batchWire{
			ChunkX:    b.Chunk.X,
			ChunkZ:    b.Chunk.Z,
			Asset:     uint32(b.Asset),
			Instances: make([]instanceWire, len(b.Instances)),
		}
		for i, inst := range b.Instances {
			bw.Instances[i] = instanceWire{
				X:     inst.Position.X,
				Z:     inst.Position.Z,
				Yaw:   inst.Yaw,
				Scale: inst.Scale,
				Seed:  inst.Seed,
			}
		}
		frame.Batches = append(frame.Batches, bw)
	}

	for _, p := range snap.Pending {
		scale := p.Instance.Scale
		for i := range scale {
			scale[i] *= p.Scale
		}
		frame.Pending = append(frame.Pending, pendingWire{
			Asset: uint32(p.Instance.Asset),
			X:     p.Instance.Position.X,
			Z:     p.Instance.Position.Z,
			Yaw:   p.Instance.Yaw,
			Scale: scale,
			Anim:  p.Scale,
		})
	}

	if conn.lastRev != h.rev {
		if h.meshRev != h.rev {
			wire, err := compression.FormatMesh(snap.RoadMesh)
			if err != nil {
				return nil, err
			}
			h.roadMeshWire = wire
			h.meshRev = h.rev
		}
		frame.RoadMesh = h.roadMeshWire

		overlay, err := compression.FormatMesh(snap.Overlay)
		if err != nil {
			return nil, err
		}
		frame.OverlayMesh = overlay
		conn.lastRev = h.rev
	}

	return frame, nil
}

// worldReplaced is broadcast after a load so every client resets its
// local state and re-requests meshes.
func (h *WebSocketHandlers) worldReplaced() {
	h.rev++
	for _, conn := range h.hub.Connections() {
		conn.lastRev = 0
	}
	payload, err := json.Marshal(WebSocketMessage{Type: "world_reset"})
	if err != nil {
		return
	}
	h.hub.Broadcast(payload)
}
