// Package realtime streams saga progress to WebSocket observers on the
// ops surface.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Notice is one saga progress update pushed to observers.
type Notice struct {
	EventType string    `json:"event_type"`
	StudentID int       `json:"student_id"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Hub manages WebSocket clients and broadcasts saga notices to them.
type Hub struct {
	connections map[*websocket.Conn]struct{}
	Register    chan *websocket.Conn
	Unregister  chan *websocket.Conn
	Broadcast   chan []byte
	logger      *slog.Logger
	mu          sync.Mutex
}

// NewHub constructs a Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		Register:    make(chan *websocket.Conn),
		Unregister:  make(chan *websocket.Conn),
		Broadcast:   make(chan []byte),
		logger:      logger,
	}
}

// Run processes register/unregister/broadcast events until ctx ends,
// then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.connections {
				conn.Close()
				delete(h.connections, conn)
			}
			h.mu.Unlock()
			return
		case conn := <-h.Register:
			h.mu.Lock()
			h.connections[conn] = struct{}{}
			h.mu.Unlock()
		case conn := <-h.Unregister:
			h.mu.Lock()
			delete(h.connections, conn)
			h.mu.Unlock()
			conn.Close()
		case msg := <-h.Broadcast:
			h.mu.Lock()
			for conn := range h.connections {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Notify broadcasts a saga notice. It never blocks; if the hub is not
// draining, the notice is dropped.
func (h *Hub) Notify(eventType string, studentID int, detail string) {
	payload, err := json.Marshal(Notice{
		EventType: eventType,
		StudentID: studentID,
		Detail:    detail,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return
	}
	select {
	case h.Broadcast <- payload:
	default:
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.Register <- conn

	// Drain reads so close frames are seen and the client can be
	// unregistered.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.Unregister <- conn
				return
			}
		}
	}()
}
