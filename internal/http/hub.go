package http

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GMosna/ContabilApp/internal/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// EventStateChanged tells the pages to reload what they show.
	EventStateChanged = "state:changed"
)

// Event is pushed to every connected page.
type Event struct {
	Type    string `json:"type"`
	Version int64  `json:"version"`
}

// Hub keeps the websocket connections of open pages and tells them when the
// application state changed. All writes happen on the hub goroutine.
type Hub struct {
	logger     *log.Logger
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	changed    chan struct{}
	version    atomic.Int64
	count      atomic.Int64
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &Hub{
		logger:     logger.WithComponent(log.ComponentWebSocket),
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		changed:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Notify records a new state version. It never blocks: versions arriving
// faster than they can be sent are coalesced into the latest one.
func (h *Hub) Notify(version int64) {
	h.version.Store(version)
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Run serves the hub until ctx is done or Stop is called.
func (h *Hub) Run(ctx context.Context) {
	defer h.Stop()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer h.closeAll()

	for {
		select {
		case conn := <-h.register:
			h.clients[conn] = true
			h.count.Store(int64(len(h.clients)))
			h.send(conn, websocket.TextMessage, h.event())
			h.logger.Debug("WebSocket client connected", "clients", len(h.clients))

		case conn := <-h.unregister:
			h.drop(conn)

		case <-h.changed:
			msg := h.event()
			for conn := range h.clients {
				h.send(conn, websocket.TextMessage, msg)
			}

		case <-ticker.C:
			for conn := range h.clients {
				h.send(conn, websocket.PingMessage, nil)
			}

		case <-ctx.Done():
			return
		case <-h.done:
			return
		}
	}
}

// Stop ends Run and closes every connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) event() []byte {
	msg, _ := json.Marshal(Event{Type: EventStateChanged, Version: h.version.Load()})
	return msg
}

func (h *Hub) send(conn *websocket.Conn, messageType int, data []byte) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(messageType, data); err != nil {
		h.logger.Debug("WebSocket write failed, dropping client", "error", err)
		h.drop(conn)
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	h.count.Store(int64(len(h.clients)))
	_ = conn.Close()
	h.logger.Debug("WebSocket client disconnected", "clients", len(h.clients))
}

func (h *Hub) closeAll() {
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		h.drop(conn)
	}
}

// serve registers conn and reads from it until the page goes away. Pages
// never send anything meaningful; reading keeps pongs and close frames flowing.
func (h *Hub) serve(conn *websocket.Conn) {
	select {
	case h.register <- conn:
	case <-h.done:
		_ = conn.Close()
		return
	}

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}
