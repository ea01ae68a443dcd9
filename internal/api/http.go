package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cityforge/server/internal/persistence"
	"github.com/cityforge/server/internal/world"
)

// SetupRoutes registers the HTTP surface: health, save/load, slots and
// stats, plus the websocket upgrade endpoint. The whole mux sits behind
// CORS and IP-keyed rate limiting.
func (h *WebSocketHandlers) SetupRoutes(mux *http.ServeMux) {
	rateLimited := RateLimitMiddleware(200, 1*time.Minute)

	mux.HandleFunc("/ws", h.HandleWebSocket)
	mux.Handle("/api/health", rateLimited(http.HandlerFunc(h.HandleHealth)))
	mux.Handle("/api/world/save", rateLimited(http.HandlerFunc(h.HandleSaveFile)))
	mux.Handle("/api/world/load", rateLimited(http.HandlerFunc(h.HandleLoadFile)))
	mux.Handle("/api/slots", rateLimited(http.HandlerFunc(h.HandleSlots)))
	mux.Handle("/api/slots/", rateLimited(http.HandlerFunc(h.HandleSlot)))
	mux.Handle("/api/stats", rateLimited(http.HandlerFunc(h.HandleStats)))
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Roads   int    `json:"roads"`
	Zones   int    `json:"zones"`
	Uptime  string `json:"uptime"`
}

// HandleHealth reports liveness and basic world counts.
func (h *WebSocketHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var roads, zones int
	if err := h.do(r.Context(), func(now float64) {
		roads = len(h.engine.State.Roads)
		zones = len(h.engine.State.Zones)
	}); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "Engine unavailable")
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Clients: h.hub.Count(),
		Roads:   roads,
		Zones:   zones,
		Uptime:  time.Since(h.start).Truncate(time.Second).String(),
	})
}

// HandleSaveFile writes the world document to the configured save path.
// POST /api/world/save
func (h *WebSocketHandlers) HandleSaveFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := h.config.Saves.FilePath
	var saveErr error
	if err := h.do(r.Context(), func(now float64) {
		saveErr = persistence.SaveFile(h.engine.State, path)
	}); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "Engine unavailable")
		return
	}
	if saveErr != nil {
		log.Printf("[API] Save failed: %v", saveErr)
		respondWithError(w, http.StatusInternalServerError, "Failed to save world")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "path": path})
}

// HandleLoadFile replaces the world with the configured save file.
// POST /api/world/load
func (h *WebSocketHandlers) HandleLoadFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state, err := persistence.LoadFile(h.config.Saves.FilePath)
	if err != nil {
		log.Printf("[API] Load failed: %v", err)
		respondWithError(w, http.StatusBadRequest, "Failed to load world")
		return
	}

	h.replaceWorld(w, r, state)
}

// replaceWorld swaps in a loaded state on the frame loop and notifies
// every client.
func (h *WebSocketHandlers) replaceWorld(w http.ResponseWriter, r *http.Request, state *world.State) {
	var roads, zones int
	if err := h.do(r.Context(), func(now float64) {
		h.engine.ReplaceState(state)
		h.worldReplaced()
		roads = len(state.Roads)
		zones = len(state.Zones)
	}); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "Engine unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "loaded",
		"roads":  roads,
		"zones":  zones,
	})
}

// HandleSlots lists save slots.
// GET /api/slots
func (h *WebSocketHandlers) HandleSlots(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondWithError(w, http.StatusNotImplemented, "Save slots not configured")
		return
	}
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	slots, err := h.store.ListSlots(r.Context())
	if err != nil {
		log.Printf("[API] ListSlots failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list slots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"slots": slots,
		"count": len(slots),
	})
}

// HandleSlot saves, loads or deletes one named slot.
// POST /api/slots/{name}/save, POST /api/slots/{name}/load,
// DELETE /api/slots/{name}
func (h *WebSocketHandlers) HandleSlot(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondWithError(w, http.StatusNotImplemented, "Save slots not configured")
		return
	}

	name, action, err := parseSlotPath(r.URL.Path)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case r.Method == http.MethodPost && action == "save":
		var saveErr error
		if err := h.do(r.Context(), func(now float64) {
			saveErr = h.store.SaveSlot(r.Context(), name, h.engine.State)
		}); err != nil {
			respondWithError(w, http.StatusServiceUnavailable, "Engine unavailable")
			return
		}
		if saveErr != nil {
			log.Printf("[API] SaveSlot %q failed: %v", name, saveErr)
			respondWithError(w, http.StatusInternalServerError, "Failed to save slot")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "slot": name})

	case r.Method == http.MethodPost && action == "load":
		state, err := h.store.LoadSlot(r.Context(), name)
		if err != nil {
			log.Printf("[API] LoadSlot %q failed: %v", name, err)
			respondWithError(w, http.StatusNotFound, "Failed to load slot")
			return
		}
		h.replaceWorld(w, r, state)

	case r.Method == http.MethodDelete && action == "":
		if err := h.store.DeleteSlot(r.Context(), name); err != nil {
			log.Printf("[API] DeleteSlot %q failed: %v", name, err)
			respondWithError(w, http.StatusInternalServerError, "Failed to delete slot")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleStats exposes the per-pass rebuild timings.
// GET /api/stats
func (h *WebSocketHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if h.profiler == nil || !h.profiler.IsEnabled() {
		respondWithError(w, http.StatusNotFound, "Profiling disabled")
		return
	}

	report, err := h.profiler.JSONReport()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(report); err != nil {
		log.Printf("[API] Failed to write stats: %v", err)
	}
}

// parseSlotPath splits /api/slots/{name}[/{action}].
func parseSlotPath(path string) (name, action string, err error) {
	trimmed := strings.Trim(strings.TrimPrefix(path, "/api/slots"), "/")
	if trimmed == "" {
		return "", "", errSlotName
	}
	parts := strings.Split(trimmed, "/")
	name = parts[0]
	if name == "" {
		return "", "", errSlotName
	}
	if len(parts) > 1 {
		action = parts[1]
	}
	if len(parts) > 2 {
		return "", "", errSlotPath
	}
	return name, action, nil
}

var (
	errSlotName = &slotPathError{"missing slot name"}
	errSlotPath = &slotPathError{"invalid slot path"}
)

type slotPathError struct{ msg string }

func (e *slotPathError) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
