package controllers

import (
	"net/http"

	"tablematch_server/socket"

	"github.com/gorilla/mux"
)

// RealtimeController subscribes raw websocket clients to a session
type RealtimeController struct {
	Hub *socket.Hub
}

func NewRealtimeController(hub *socket.Hub) *RealtimeController {
	return &RealtimeController{Hub: hub}
}

// Subscribe handles GET /ws/sessions/{id}
func (rc *RealtimeController) Subscribe(w http.ResponseWriter, r *http.Request) {
	rc.Hub.ServeSession(w, r, mux.Vars(r)["id"])
}
