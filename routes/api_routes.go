package routes

import (
	"net/http"

	"tablematch_server/controllers"
	"tablematch_server/services"
	"tablematch_server/socket"

	"github.com/gorilla/mux"
)

// Dependencies carries everything the HTTP surface needs
type Dependencies struct {
	Sessions  *services.SessionService
	Decks     *services.DeckService
	Swipes    *services.SwipeService
	Shortlist *services.ShortlistService
	Realtime  *socket.Realtime
	Auth      func(http.Handler) http.Handler
}

// RegisterRoutes sets up the routes for the application
func RegisterRoutes(r *mux.Router, deps Dependencies) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")

	if deps.Realtime != nil {
		r.PathPrefix("/socket.io/").Handler(deps.Realtime.Socket.Handler())
		if deps.Realtime.Hub != nil {
			RegisterRealtimeRoutes(r, deps.Realtime.Hub)
		}
	}

	// Everything under /api/sessions requires a bearer token
	api := r.PathPrefix("/api/sessions").Subrouter()
	api.Use(deps.Auth)

	RegisterSessionRoutes(api, deps.Sessions)
	RegisterDeckRoutes(api, deps.Decks)
	RegisterSwipeRoutes(api, deps.Swipes, deps.Shortlist)
}

// RegisterRealtimeRoutes exposes raw websocket subscriptions at /ws/sessions/{id}
func RegisterRealtimeRoutes(r *mux.Router, hub *socket.Hub) {
	controller := controllers.NewRealtimeController(hub)
	r.HandleFunc("/ws/sessions/{id}", controller.Subscribe).Methods("GET")
}
