package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/curlcount/internal/app"
	"github.com/ayusman/curlcount/internal/detector"
)

const (
	writeWait      = 5 * time.Second
	sendBufferSize = 32
)

// MessageLandmarks is the client message type carrying one pose frame.
const MessageLandmarks = "landmarks"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// clientMessage is sent by the browser. Landmarks is null when no person
// was detected in the frame.
type clientMessage struct {
	Type      string           `json:"type"`
	Landmarks []detector.Joint `json:"landmarks"`
	Timestamp int64            `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes session events to WebSocket clients and accepts landmark
// frames from them when the session uses the remote source.
type Hub struct {
	app         *app.App
	clients     map[*client]bool
	mu          sync.RWMutex
	unsubscribe func()
}

// NewHub creates a Hub subscribed to a's events.
func NewHub(a *app.App) *Hub {
	h := &Hub{
		app:     a,
		clients: make(map[*client]bool),
	}
	h.unsubscribe = a.Subscribe(h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}

	// Greet with the current state so the UI can render immediately. The
	// greeting is queued before any broadcast can reach c.
	h.mu.Lock()
	snap := h.app.Snapshot()
	if msg, err := json.Marshal(app.Event{
		Type:      app.EventState,
		SessionID: snap.SessionID,
		Time:      time.Now(),
		Snapshot:  &snap,
	}); err == nil {
		c.send <- msg
	}
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)

	defer h.remove(c)
	h.readPump(c)
}

// readPump consumes client messages until the connection fails.
func (h *Hub) readPump(c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Ignoring malformed websocket message: %v", err)
			continue
		}

		switch msg.Type {
		case MessageLandmarks:
			h.handleLandmarks(msg)
		default:
			log.Printf("Ignoring websocket message of type %q", msg.Type)
		}
	}
}

func (h *Hub) handleLandmarks(msg clientMessage) {
	if h.app.Source() != app.SourceRemote {
		log.Printf("Ignoring remote landmarks: session uses the %s source", h.app.Source())
		return
	}

	frame, err := detector.NewLandmarkFrame(msg.Landmarks, msg.Timestamp)
	if err != nil {
		log.Printf("Ignoring landmarks: %v", err)
		return
	}

	h.app.ProcessFrame(frame)
}

// writePump is the only writer for c.conn.
func (h *Hub) writePump(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("websocket write error: %v", err)
			// Unblock readPump so the client is removed.
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}

	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// broadcast queues ev for every client. Slow clients drop events rather
// than stall the frame pipeline.
func (h *Hub) broadcast(ev app.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error encoding event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("Dropping %s event for slow websocket client", ev.Type)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the app and disconnects every client.
func (h *Hub) Close() {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
