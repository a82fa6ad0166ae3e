package socket

import (
	"log"
	"sync"
)

// Realtime owns the process-wide realtime transports. It is created once at
// start-up, handed to services as a Publisher, and torn down with Close.
type Realtime struct {
	Socket *SocketServer
	Hub    *Hub

	publisher MultiPublisher
	closeOnce sync.Once
}

// NewRealtime builds the socket.io server and, when withHub is set, the raw
// websocket hub
func NewRealtime(namespace string, withHub bool) *Realtime {
	rt := &Realtime{Socket: NewSocketServer(namespace)}
	rt.publisher = MultiPublisher{rt.Socket}
	if withHub {
		rt.Hub = NewHub()
		rt.publisher = append(rt.publisher, rt.Hub)
	}
	return rt
}

// Start runs the socket.io loop in the background
func (rt *Realtime) Start() {
	go rt.Socket.Serve()
	log.Println("✅ Realtime transports started")
}

func (rt *Realtime) Publish(sessionID, event string, payload interface{}) {
	rt.publisher.Publish(sessionID, event, payload)
}

func (rt *Realtime) Close() error {
	var err error
	rt.closeOnce.Do(func() {
		if rt.Hub != nil {
			rt.Hub.Close()
		}
		err = rt.Socket.Close()
		log.Println("✅ Realtime transports closed")
	})
	return err
}
