package socket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *Hub, sessionID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeSession(w, r, sessionID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(sessionID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered with the hub")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestHubPublishReachesSessionSubscribers(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "session-1")

	hub.Publish("session-1", "match:update", map[string]interface{}{"venueId": "v1", "yesCount": 2})

	var msg struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Event != "match:update" {
		t.Errorf("event = %q, want match:update", msg.Event)
	}
	if msg.Data["venueId"] != "v1" {
		t.Errorf("venueId = %v, want v1", msg.Data["venueId"])
	}
}

func TestHubPublishIgnoresOtherSessions(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "session-1")

	hub.Publish("session-2", "session:update", map[string]string{"sessionId": "session-2"})
	hub.Publish("session-1", "session:update", map[string]string{"sessionId": "session-1"})

	var msg Message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	data, _ := msg.Data.(map[string]interface{})
	if data["sessionId"] != "session-1" {
		t.Errorf("received event for %v, want session-1 only", data["sessionId"])
	}
}

func TestHubCloseDropsSubscribers(t *testing.T) {
	hub := NewHub()
	dialHub(t, hub, "session-1")

	hub.Close()
	if n := hub.Subscribers("session-1"); n != 0 {
		t.Errorf("subscribers after close = %d, want 0", n)
	}
}

func TestHubPublishDoesNotWaitForStalledSubscriber(t *testing.T) {
	hub := NewHub()
	dialHub(t, hub, "stalled") // never read from
	live := dialHub(t, hub, "session-1")

	payload := strings.Repeat("x", 256<<10)
	var worst time.Duration
	for i := 0; i < 200; i++ {
		start := time.Now()
		hub.Publish("stalled", "session:update", payload)
		if d := time.Since(start); d > worst {
			worst = d
		}
	}
	if worst > time.Second {
		t.Errorf("slowest Publish took %s with a stalled subscriber", worst)
	}
	if n := hub.Subscribers("stalled"); n != 0 {
		t.Errorf("stalled subscribers = %d, want 0 after its queue overflowed", n)
	}

	hub.Publish("session-1", "session:update", map[string]string{"sessionId": "session-1"})
	var msg Message
	live.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := live.ReadJSON(&msg); err != nil {
		t.Fatalf("live subscriber read: %v", err)
	}
	if msg.Event != "session:update" {
		t.Errorf("event = %q, want session:update", msg.Event)
	}
}
