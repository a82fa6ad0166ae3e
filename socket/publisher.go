package socket

import "log"

// Publisher delivers an event to everyone subscribed to a session.
// Delivery is best effort: Publish never blocks on subscribers and never fails
// the caller.
type Publisher interface {
	Publish(sessionID, event string, payload interface{})
}

// Message is the envelope written to raw websocket subscribers
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// MultiPublisher fans one event out to several transports
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(sessionID, event string, payload interface{}) {
	for _, p := range m {
		publishSafely(p, sessionID, event, payload)
	}
}

// publishSafely keeps a panicking transport from taking the request down with it
func publishSafely(p Publisher, sessionID, event string, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Publish %s to session %s panicked: %v", event, sessionID, r)
		}
	}()
	p.Publish(sessionID, event, payload)
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(string, string, interface{}) {}
