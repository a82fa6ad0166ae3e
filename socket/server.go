package socket

import (
	"log"
	"net/http"

	socketio "github.com/googollee/go-socket.io"
)

// joinRequest is the payload of the client "join" event
type joinRequest struct {
	SessionID string `json:"sessionId"`
}

// SocketServer is the socket.io transport. Each session is a room inside
// one namespace; clients pick their room with a "join" event.
type SocketServer struct {
	server    *socketio.Server
	namespace string
}

// NewSocketServer initializes the Socket.IO server and its event handlers
func NewSocketServer(namespace string) *SocketServer {
	server := socketio.NewServer(nil)

	// Handle connection events
	server.OnConnect(namespace, func(c socketio.Conn) error {
		log.Println("✅ Socket connected:", c.ID())
		return nil
	})

	// Handle join events
	server.OnEvent(namespace, "join", func(c socketio.Conn, req joinRequest) {
		if req.SessionID == "" {
			log.Println("❌ Invalid sessionId in join request")
			return
		}
		log.Printf("👥 Socket %s joined session %s\n", c.ID(), req.SessionID)
		c.Join(req.SessionID)
		c.Emit("joined", map[string]string{"sessionId": req.SessionID})
	})

	server.OnError(namespace, func(c socketio.Conn, err error) {
		log.Printf("❌ Socket error: %v", err)
	})

	// Handle disconnection
	server.OnDisconnect(namespace, func(c socketio.Conn, reason string) {
		log.Println("❌ Socket disconnected:", c.ID(), reason)
	})

	return &SocketServer{server: server, namespace: namespace}
}

// Publish broadcasts the event to the session room
func (s *SocketServer) Publish(sessionID, event string, payload interface{}) {
	if !s.server.BroadcastToRoom(s.namespace, sessionID, event, payload) {
		log.Printf("⚠️ No socket.io room for session %s (%s dropped)", sessionID, event)
	}
}

// Serve runs the engine.io loop until Close
func (s *SocketServer) Serve() {
	if err := s.server.Serve(); err != nil {
		log.Printf("❌ Socket.IO server stopped: %v", err)
	}
}

func (s *SocketServer) Close() error {
	return s.server.Close()
}

// Handler serves the socket.io transport, mounted at /socket.io/
func (s *SocketServer) Handler() http.Handler {
	return s.server
}
