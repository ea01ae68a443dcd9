package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// ProtocolVersion1 is the renderer protocol spoken over the socket.
	ProtocolVersion1 = "cityforge.v1"

	writeTimeout        = 10 * time.Second
	pongWait            = 60 * time.Second
	defaultPingInterval = 30 * time.Second
	sendBufferSize      = 256
)

// WebSocketMessage is the envelope for every client-to-server message.
// Data carries the type-specific payload.
type WebSocketMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WebSocketError is the envelope for error responses.
type WebSocketError struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// WebSocketConnection is one renderer client.
type WebSocketConnection struct {
	conn     *websocket.Conn
	clientID string
	version  string
	send     chan []byte
	hub      *WebSocketHub

	// Streaming state. Touched only from the frame-loop goroutine.
	subID   string
	lastRev uint64
}

// ClientID returns the server-assigned id for this connection.
func (c *WebSocketConnection) ClientID() string { return c.clientID }

// WebSocketHub tracks the set of active connections.
type WebSocketHub struct {
	connections map[*WebSocketConnection]bool
	broadcast   chan []byte
	register    chan *WebSocketConnection
	unregister  chan *WebSocketConnection
	mu          sync.RWMutex
}

// NewWebSocketHub creates an empty hub. Call Run on its own goroutine.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		connections: make(map[*WebSocketConnection]bool),
		broadcast:   make(chan []byte, sendBufferSize),
		register:    make(chan *WebSocketConnection),
		unregister:  make(chan *WebSocketConnection),
	}
}

// Run processes register/unregister/broadcast events until the register
// channel is closed.
func (h *WebSocketHub) Run() {
	for {
		select {
		case conn, ok := <-h.register:
			if !ok {
				return
			}
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()
			log.Printf("[WebSocket] Client connected: %s (%d active)", conn.clientID, h.Count())

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, exists := h.connections[conn]; exists {
				delete(h.connections, conn)
				close(conn.send)
			}
			h.mu.Unlock()
			log.Printf("[WebSocket] Client disconnected: %s (%d active)", conn.clientID, h.Count())

		case message := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.connections {
				select {
				case conn.send <- message:
				default:
					log.Printf("[WebSocket] Dropping broadcast to %s: send buffer full", conn.clientID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues a message for every connected client.
func (h *WebSocketHub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Printf("[WebSocket] Broadcast queue full; message dropped")
	}
}

// Connections returns a snapshot of the active connections.
func (h *WebSocketHub) Connections() []*WebSocketConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*WebSocketConnection, 0, len(h.connections))
	for conn := range h.connections {
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the number of active connections.
func (h *WebSocketHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HandleWebSocket upgrades the HTTP request and starts the read/write
// pumps for the new client.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	requestedVersions := r.Header.Get("Sec-WebSocket-Protocol")
	selectedVersion := negotiateVersion(requestedVersions)
	if selectedVersion == "" {
		log.Printf("[WebSocket] Version negotiation failed: requested=%s", requestedVersions)
		http.Error(w, "Unsupported protocol version", http.StatusBadRequest)
		return
	}

	responseHeaders := http.Header{}
	responseHeaders.Set("Sec-WebSocket-Protocol", selectedVersion)

	conn, err := h.upgrader.Upgrade(w, r, responseHeaders)
	if err != nil {
		log.Printf("[WebSocket] Upgrade failed: %v", err)
		return
	}

	wsConn := &WebSocketConnection{
		conn:     conn,
		clientID: uuid.NewString(),
		version:  selectedVersion,
		send:     make(chan []byte, sendBufferSize),
		hub:      h.hub,
	}

	h.hub.register <- wsConn

	go wsConn.writePump()
	go wsConn.readPump(h)
}

// negotiateVersion selects the highest mutually supported protocol
// version from the comma-separated subprotocol list.
func negotiateVersion(requested string) string {
	if requested == "" {
		return ProtocolVersion1
	}

	requestedVersions := strings.Split(requested, ",")
	for i := range requestedVersions {
		requestedVersions[i] = strings.TrimSpace(requestedVersions[i])
	}

	supportedVersions := []string{ProtocolVersion1}
	for _, supported := range supportedVersions {
		for _, req := range requestedVersions {
			if req == supported {
				return supported
			}
		}
	}

	return ""
}

// readPump parses incoming messages and hands them to the handlers until
// the connection drops.
func (c *WebSocketConnection) readPump(handlers *WebSocketHandlers) {
	defer func() {
		handlers.clientGone(c)
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			log.Printf("[WebSocket] Failed to close connection: %v", err)
		}
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[WebSocket] Failed to set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WebSocket] Read error: %v", err)
			}
			break
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.sendError("", "Invalid message format", "InvalidMessageFormat")
			continue
		}

		handlers.handleMessage(c, &msg)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *WebSocketConnection) writePump() {
	ticker := time.NewTicker(defaultPingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			log.Printf("[WebSocket] Failed to close connection: %v", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					log.Printf("[WebSocket] Failed to write close message: %v", err)
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendJSON marshals and queues a message, dropping it when the send
// buffer is full.
func (c *WebSocketConnection) sendJSON(payload interface{}) {
	messageBytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[WebSocket] Failed to marshal message: %v", err)
		return
	}

	select {
	case c.send <- messageBytes:
	default:
		log.Printf("[WebSocket] Send buffer full for %s; message dropped", c.clientID)
	}
}

// sendError queues an error response for the client.
func (c *WebSocketConnection) sendError(id, errorMsg, code string) {
	c.sendJSON(WebSocketError{
		Type:    "error",
		ID:      id,
		Error:   errorMsg,
		Message: errorMsg,
		Code:    code,
	})
}
