package socket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer is how many events a subscriber may fall behind before it is dropped
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// subscriber is one websocket connection. Its writer goroutine owns the
// conn for writes and exits when send is closed.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps raw websocket subscribers per session
type Hub struct {
	mu       sync.Mutex
	sessions map[string]map[*subscriber]bool
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[*subscriber]bool),
	}
}

func (h *Hub) subscribe(sessionID string, conn *websocket.Conn) *subscriber {
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*subscriber]bool)
	}
	h.sessions[sessionID][sub] = true
	log.Printf("ws: client connected to session %s (total: %d)", sessionID, len(h.sessions[sessionID]))
	return sub
}

func (h *Hub) unsubscribe(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.drop(sessionID, sub) {
		log.Printf("ws: client disconnected from session %s", sessionID)
	}
}

// drop unregisters sub and stops its writer. Callers hold h.mu.
func (h *Hub) drop(sessionID string, sub *subscriber) bool {
	subs, ok := h.sessions[sessionID]
	if !ok || !subs[sub] {
		return false
	}
	delete(subs, sub)
	close(sub.send)
	if len(subs) == 0 {
		delete(h.sessions, sessionID)
	}
	return true
}

// Subscribers returns how many connections listen on a session
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}

// Publish queues the event for every connection of the session. It never
// waits on a connection: a subscriber whose queue is full is dropped.
func (h *Hub) Publish(sessionID, event string, payload interface{}) {
	data, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		log.Printf("ws: marshal error: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.sessions[sessionID] {
		select {
		case sub.send <- data:
		default:
			log.Printf("⚠️ ws: subscriber of session %s is not reading, dropping it", sessionID)
			h.drop(sessionID, sub)
		}
	}
}

// writePump writes queued events until send is closed, then closes the conn
func (sub *subscriber) writePump() {
	defer sub.conn.Close()

	for data := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("ws: write error: %v", err)
			return
		}
	}
	sub.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(writeWait))
}

// ServeSession upgrades the request and subscribes it to sessionID until the
// client goes away. Incoming frames are read and discarded.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	sub := h.subscribe(sessionID, conn)
	go sub.writePump()
	defer h.unsubscribe(sessionID, sub)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Close drops every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID, subs := range h.sessions {
		for sub := range subs {
			h.drop(sessionID, sub)
		}
	}
}
